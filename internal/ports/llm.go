package ports

import "context"

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a chat completion request.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// CompletionResponse carries the model output and usage accounting.
type CompletionResponse struct {
	Content          string `json:"content"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// LLMClient is the minimal contract the interaction loop needs.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Model() string
}

// FunctionCallParser extracts tool calls from model output.
type FunctionCallParser interface {
	Parse(content string) ([]ToolCall, error)
	Validate(call ToolCall, definition ToolDefinition) error
}
