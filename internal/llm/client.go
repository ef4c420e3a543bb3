// Package llm wraps the chat completion API behind the minimal client
// contract the interaction loop needs.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"conduit/internal/logging"
	"conduit/internal/ports"
)

// Config selects the endpoint and model.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Logger     logging.Logger
}

// Client is the production ports.LLMClient over the OpenAI-compatible API.
type Client struct {
	api        *openai.Client
	model      string
	maxRetries int
	log        logging.Logger
}

func NewClient(cfg Config) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		api:        openai.NewClientWithConfig(apiConfig),
		model:      cfg.Model,
		maxRetries: maxRetries,
		log:        logging.OrNop(cfg.Logger),
	}
}

func (c *Client) Model() string { return c.model }

// Complete issues one chat completion, retrying transient API failures
// with exponential backoff.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}

	var response openai.ChatCompletionResponse
	operation := func() error {
		var err error
		response, err = c.api.CreateChatCompletion(ctx, request)
		if err != nil {
			c.log.Warn("completion attempt failed: %v", err)
		}
		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(10*time.Second),
	), uint64(c.maxRetries))
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}
	return &ports.CompletionResponse{
		Content:          response.Choices[0].Message.Content,
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
	}, nil
}
