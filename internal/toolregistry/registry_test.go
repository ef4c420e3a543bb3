package toolregistry

import (
	"context"
	"testing"
	"time"

	"conduit/internal/ports"
)

type stubTool struct {
	name     string
	category string
	desc     string
	tags     []string
}

func (s *stubTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	return &ports.ToolResult{CallID: call.ID, Kind: ports.ResultSuccess, Content: "ok"}, nil
}

func (s *stubTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        s.name,
		Description: s.desc,
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"value": {Type: "string", Description: "input value"},
			},
		},
	}
}

func (s *stubTool) Metadata() ports.ToolMeta {
	return ports.ToolMeta{Name: s.name, Category: s.category, Version: "1.0.0", Tags: s.tags}
}

func TestRegisterAndLookupRoundTrip(t *testing.T) {
	r := New(nil)
	name := r.Register("calc", &stubTool{name: "calculate", category: "mathematics"})
	if name != "calc_calculate" {
		t.Fatalf("expected qualified name calc_calculate, got %q", name)
	}

	entry, err := r.Get("calc_calculate")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if entry.Provider != "calc" {
		t.Fatalf("expected provider calc, got %q", entry.Provider)
	}

	// Unqualified lookup resolves when unique.
	if _, err := r.Get("calculate"); err != nil {
		t.Fatalf("unqualified lookup failed: %v", err)
	}

	defs := r.Definitions()
	if len(defs) != 1 || defs[0].Name != "calc_calculate" {
		t.Fatalf("Definitions mismatch: %+v", defs)
	}
}

func TestReregisterOverwritesKeepsSize(t *testing.T) {
	r := New(nil)
	first := &stubTool{name: "calculate", category: "mathematics"}
	second := &stubTool{name: "calculate", category: "mathematics", desc: "replacement"}
	r.Register("calc", first)
	r.Register("calc", second)

	if r.Size() != 1 {
		t.Fatalf("expected registry size 1 after overwrite, got %d", r.Size())
	}
	entry, err := r.Get("calc_calculate")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if entry.Definition.Description != "replacement" {
		t.Fatalf("expected replacement binding, got %q", entry.Definition.Description)
	}
}

func TestUnregisterProviderRemovesAllTools(t *testing.T) {
	r := New(nil)
	r.Register("web", &stubTool{name: "search", category: "network"})
	r.Register("web", &stubTool{name: "fetch", category: "network"})
	r.Register("calc", &stubTool{name: "calculate", category: "mathematics"})

	removed := r.UnregisterProvider("web")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if r.Size() != 1 {
		t.Fatalf("expected 1 remaining, got %d", r.Size())
	}
	if _, err := r.Get("web_search"); err == nil {
		t.Fatalf("web_search should be gone")
	}
}

func TestStatsMovingAverage(t *testing.T) {
	r := New(nil)
	r.RecordCall(true, 100*time.Millisecond)
	r.RecordCall(false, 300*time.Millisecond)

	snap := r.Snapshot()
	if snap.TotalCalls != 2 || snap.Successes != 1 || snap.Failures != 1 {
		t.Fatalf("counter mismatch: %+v", snap)
	}
	if snap.AvgElapsed != 200*time.Millisecond {
		t.Fatalf("expected 200ms average, got %v", snap.AvgElapsed)
	}
}

func TestGetUnknownTool(t *testing.T) {
	r := New(nil)
	if _, err := r.Get("nope"); err == nil {
		t.Fatalf("expected error for unknown tool")
	}
}
