// Package providers contains the capability provider groups and the small
// helper used to declare their tools.
package providers

import (
	"context"

	"conduit/internal/ports"
)

// FuncTool adapts a declaration plus a run function to ports.ToolExecutor.
// Provider groups declare their tools with it instead of one struct per
// tool.
type FuncTool struct {
	Def  ports.ToolDefinition
	Meta ports.ToolMeta
	Run  func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)
}

func (t *FuncTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	return t.Run(ctx, call)
}

func (t *FuncTool) Definition() ports.ToolDefinition {
	return t.Def
}

func (t *FuncTool) Metadata() ports.ToolMeta {
	meta := t.Meta
	if meta.Name == "" {
		meta.Name = t.Def.Name
	}
	if meta.Version == "" {
		meta.Version = "1.0.0"
	}
	return meta
}

// Text builds a success result with plain text content.
func Text(call ports.ToolCall, content string) *ports.ToolResult {
	return &ports.ToolResult{CallID: call.ID, Kind: ports.ResultSuccess, Content: content}
}

// Fail builds an error result carrying err and a human message.
func Fail(call ports.ToolCall, err error, message string) *ports.ToolResult {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &ports.ToolResult{CallID: call.ID, Kind: ports.ResultError, Error: err, Message: message, Content: message}
}

// StringArg extracts an optional string argument.
func StringArg(call ports.ToolCall, name string) string {
	if v, ok := call.Arguments[name].(string); ok {
		return v
	}
	return ""
}

// IntArg extracts an integer argument with a default.
func IntArg(call ports.ToolCall, name string, def int) int {
	switch v := call.Arguments[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
