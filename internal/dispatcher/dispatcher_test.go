package dispatcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/outputcheck"
	"conduit/internal/ports"
	"conduit/internal/session"
	"conduit/internal/toolregistry"
)

type scriptedTool struct {
	name      string
	failures  int
	calls     int
	sleep     time.Duration
	content   string
	schema    ports.ParameterSchema
	meta      ports.ToolMeta
	lastArgs  map[string]any
	execError error
}

func (s *scriptedTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	s.calls++
	s.lastArgs = call.Arguments
	if s.sleep > 0 {
		select {
		case <-time.After(s.sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.calls <= s.failures {
		if s.execError != nil {
			return nil, s.execError
		}
		return nil, fmt.Errorf("transient failure %d", s.calls)
	}
	content := s.content
	if content == "" {
		content = "ok"
	}
	return &ports.ToolResult{CallID: call.ID, Kind: ports.ResultSuccess, Content: content}, nil
}

func (s *scriptedTool) Definition() ports.ToolDefinition {
	schema := s.schema
	if schema.Type == "" {
		schema = ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}}
	}
	return ports.ToolDefinition{Name: s.name, Description: "scripted", Parameters: schema}
}

func (s *scriptedTool) Metadata() ports.ToolMeta {
	meta := s.meta
	meta.Name = s.name
	return meta
}

func newTestDispatcher(t *testing.T, tools ...ports.ToolExecutor) (*Dispatcher, *toolregistry.Registry, *session.AgentStats) {
	t.Helper()
	registry := toolregistry.New(nil)
	for _, tool := range tools {
		registry.Register("test", tool)
	}
	stats := &session.AgentStats{}
	d := New(registry, outputcheck.New(nil), Options{
		DefaultTimeout:    2 * time.Second,
		DefaultMaxRetries: 3,
		Stats:             stats,
	})
	return d, registry, stats
}

func TestDispatchSuccess(t *testing.T) {
	tool := &scriptedTool{name: "echo"}
	d, registry, _ := newTestDispatcher(t, tool)

	result := d.Dispatch(context.Background(), "test_echo", nil)
	if result.Kind != ports.ResultSuccess {
		t.Fatalf("expected success, got %s (%v)", result.Kind, result.Error)
	}
	if result.Duration < 0 {
		t.Fatalf("negative duration")
	}
	snap := registry.Snapshot()
	if snap.TotalCalls != 1 || snap.Successes != 1 {
		t.Fatalf("registry counters mismatch: %+v", snap)
	}
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	tool := &scriptedTool{
		name:     "flaky",
		failures: 2,
		meta:     ports.ToolMeta{MaxRetries: 3, RetryBaseDelay: 10 * time.Millisecond},
	}
	d, _, stats := newTestDispatcher(t, tool)

	started := time.Now()
	result := d.Dispatch(context.Background(), "test_flaky", nil)
	elapsed := time.Since(started)

	if result.Kind != ports.ResultSuccess {
		t.Fatalf("expected success after retries, got %s (%v)", result.Kind, result.Error)
	}
	if result.Retries != 2 {
		t.Fatalf("expected retry_count 2, got %d", result.Retries)
	}
	// Linear backoff waited base*1 + base*2 before the third attempt.
	if elapsed < 30*time.Millisecond {
		t.Fatalf("expected at least 30ms elapsed, got %v", elapsed)
	}
	if tool.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", tool.calls)
	}
	snap := stats.Snapshot()
	if snap["retries_total"].(int64) != 2 {
		t.Fatalf("stats retries mismatch: %v", snap["retries_total"])
	}
}

func TestDispatchExhaustsRetries(t *testing.T) {
	tool := &scriptedTool{
		name:     "dead",
		failures: 10,
		meta:     ports.ToolMeta{MaxRetries: 2, RetryBaseDelay: time.Millisecond},
	}
	d, _, _ := newTestDispatcher(t, tool)

	result := d.Dispatch(context.Background(), "test_dead", nil)
	if result.Kind != ports.ResultError {
		t.Fatalf("expected error, got %s", result.Kind)
	}
	if tool.calls != 3 {
		t.Fatalf("expected max_retries+1 attempts, got %d", tool.calls)
	}
	if result.Retries > 2 {
		t.Fatalf("retry count exceeds max: %d", result.Retries)
	}
}

func TestDispatchMissingRequiredSkipsExecutor(t *testing.T) {
	tool := &scriptedTool{
		name: "strict",
		schema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"target": {Type: "string", Description: "required input"},
			},
			Required: []string{"target"},
		},
	}
	d, _, stats := newTestDispatcher(t, tool)

	result := d.Dispatch(context.Background(), "test_strict", map[string]any{})
	if result.Kind != ports.ResultError {
		t.Fatalf("expected error, got %s", result.Kind)
	}
	if len(result.ValidationErrors) == 0 {
		t.Fatalf("expected non-empty validation errors")
	}
	if tool.calls != 0 {
		t.Fatalf("executor must not run on validation failure")
	}
	if stats.Snapshot()["validation_errors"].(int64) == 0 {
		t.Fatalf("validation errors not recorded")
	}
}

func TestDispatchCoercesDeclaredTypes(t *testing.T) {
	tool := &scriptedTool{
		name: "typed",
		schema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"count": {Type: "integer"},
				"ratio": {Type: "number"},
				"on":    {Type: "boolean"},
				"items": {Type: "array"},
			},
		},
	}
	d, _, _ := newTestDispatcher(t, tool)

	result := d.Dispatch(context.Background(), "test_typed", map[string]any{
		"count": "7",
		"ratio": "2.5",
		"on":    "true",
		"items": "a, b, c",
		"drop":  "",
	})
	if result.Kind != ports.ResultSuccess {
		t.Fatalf("expected success, got %v", result.Error)
	}
	if tool.lastArgs["count"] != 7 {
		t.Fatalf("count not coerced: %v", tool.lastArgs["count"])
	}
	if tool.lastArgs["ratio"] != 2.5 {
		t.Fatalf("ratio not coerced: %v", tool.lastArgs["ratio"])
	}
	if tool.lastArgs["on"] != true {
		t.Fatalf("on not coerced: %v", tool.lastArgs["on"])
	}
	items, ok := tool.lastArgs["items"].([]any)
	if !ok || len(items) != 3 {
		t.Fatalf("items not coerced: %v", tool.lastArgs["items"])
	}
	if _, present := tool.lastArgs["drop"]; present {
		t.Fatalf("empty string parameter should be dropped")
	}
}

func TestDispatchTimeoutIsDistinct(t *testing.T) {
	tool := &scriptedTool{
		name:  "slow",
		sleep: 500 * time.Millisecond,
		meta:  ports.ToolMeta{Timeout: 30 * time.Millisecond, MaxRetries: 1, RetryBaseDelay: time.Millisecond},
	}
	d, _, _ := newTestDispatcher(t, tool)

	result := d.Dispatch(context.Background(), "test_slow", nil)
	if result.Kind != ports.ResultError {
		t.Fatalf("expected error, got %s", result.Kind)
	}
	if result.Error == nil || !conduiterrors.IsTimeout(result.Error) {
		t.Fatalf("expected timeout error kind, got %v", result.Error)
	}
	if len(result.ValidationErrors) != 0 {
		t.Fatalf("timeout must not be a validation failure")
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	result := d.Dispatch(context.Background(), "missing", nil)
	if result.Kind != ports.ResultError {
		t.Fatalf("expected error for unknown tool")
	}
}

func TestPostValidationFlipsResultKind(t *testing.T) {
	tool := &scriptedTool{
		name:    "execute_command",
		content: "Exit Code: 1\n--- STDOUT ---\n\n--- STDERR ---\nls: cannot access 'x'\n",
		schema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"command": {Type: "string"},
			},
		},
	}
	d, _, _ := newTestDispatcher(t, tool)

	result := d.Dispatch(context.Background(), "test_execute_command", map[string]any{"command": "ls x"})
	if result.Kind != ports.ResultError {
		t.Fatalf("expected post-validation to flip kind, got %s", result.Kind)
	}
	if result.Content == "" {
		t.Fatalf("payload must be preserved")
	}
}
