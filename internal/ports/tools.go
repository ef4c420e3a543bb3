package ports

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ToolExecutor executes a single tool call.
type ToolExecutor interface {
	// Execute runs the tool with given arguments.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)

	// Definition returns the tool's schema for the LLM.
	Definition() ToolDefinition

	// Metadata returns tool metadata.
	Metadata() ToolMeta
}

// Provider groups related tools under a shared lifecycle.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Tools() []ToolExecutor
}

// ToolDefinition describes a tool for the LLM.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ToolMeta carries dispatch-relevant metadata alongside the definition.
// Timeout, MaxRetries and RetryBaseDelay drive the reliable dispatcher;
// zero values fall back to the dispatcher defaults.
type ToolMeta struct {
	Name           string        `json:"name"`
	Provider       string        `json:"provider"`
	Category       string        `json:"category"`
	Version        string        `json:"version"`
	Tags           []string      `json:"tags,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty"`
	MaxRetries     int           `json:"max_retries,omitempty"`
	RetryBaseDelay time.Duration `json:"retry_base_delay,omitempty"`
	RequiresAuth   bool          `json:"requires_auth,omitempty"`
}

// ParameterSchema defines tool parameters (JSON Schema format).
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
}

// ToolCall represents a request to execute a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Deadline  time.Time      `json:"deadline,omitempty"`
}

// ResultKind classifies a tool outcome.
type ResultKind string

const (
	ResultSuccess ResultKind = "success"
	ResultError   ResultKind = "error"
	ResultPartial ResultKind = "partial"
)

// ToolResult is the execution outcome handed back to the caller.
type ToolResult struct {
	CallID           string         `json:"call_id"`
	Kind             ResultKind     `json:"kind"`
	Content          string         `json:"content"`
	Message          string         `json:"message,omitempty"`
	Error            error          `json:"error,omitempty"`
	Duration         time.Duration  `json:"duration"`
	Retries          int            `json:"retries"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

// Succeeded reports whether the result kind is success.
func (r *ToolResult) Succeeded() bool {
	return r != nil && r.Kind == ResultSuccess
}

// MarshalJSON customizes ToolResult encoding to support the error interface.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	type alias struct {
		CallID           string         `json:"call_id"`
		Kind             ResultKind     `json:"kind"`
		Content          string         `json:"content"`
		Message          string         `json:"message,omitempty"`
		Error            string         `json:"error,omitempty"`
		DurationMS       int64          `json:"duration_ms"`
		Retries          int            `json:"retries"`
		ValidationErrors []string       `json:"validation_errors,omitempty"`
		Metadata         map[string]any `json:"metadata,omitempty"`
		Timestamp        time.Time      `json:"timestamp"`
	}
	a := alias{
		CallID:           r.CallID,
		Kind:             r.Kind,
		Content:          r.Content,
		Message:          r.Message,
		DurationMS:       r.Duration.Milliseconds(),
		Retries:          r.Retries,
		ValidationErrors: r.ValidationErrors,
		Metadata:         r.Metadata,
		Timestamp:        r.Timestamp,
	}
	if r.Error != nil {
		a.Error = r.Error.Error()
	}
	return json.Marshal(a)
}

// UnmarshalJSON accepts both string and object error representations.
func (r *ToolResult) UnmarshalJSON(data []byte) error {
	type alias struct {
		CallID           string          `json:"call_id"`
		Kind             ResultKind      `json:"kind"`
		Content          string          `json:"content"`
		Message          string          `json:"message"`
		Error            json.RawMessage `json:"error"`
		DurationMS       int64           `json:"duration_ms"`
		Retries          int             `json:"retries"`
		ValidationErrors []string        `json:"validation_errors"`
		Metadata         map[string]any  `json:"metadata"`
		Timestamp        time.Time       `json:"timestamp"`
	}
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.CallID = aux.CallID
	r.Kind = aux.Kind
	r.Content = aux.Content
	r.Message = aux.Message
	r.Duration = time.Duration(aux.DurationMS) * time.Millisecond
	r.Retries = aux.Retries
	r.ValidationErrors = aux.ValidationErrors
	r.Metadata = aux.Metadata
	r.Timestamp = aux.Timestamp
	r.Error = nil

	raw := strings.TrimSpace(string(aux.Error))
	if raw == "" || raw == "null" {
		return nil
	}
	var errStr string
	if err := json.Unmarshal(aux.Error, &errStr); err == nil {
		if errStr != "" {
			r.Error = errors.New(errStr)
		}
		return nil
	}
	var errObj map[string]any
	if err := json.Unmarshal(aux.Error, &errObj); err == nil {
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			r.Error = errors.New(msg)
			return nil
		}
	}
	r.Error = errors.New(raw)
	return nil
}
