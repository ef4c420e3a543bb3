package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"conduit/internal/ports"
)

func completionBody(content string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-test",
		"model": "test-model",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7},
	}
}

func TestCompleteAgainstCompatibleEndpoint(t *testing.T) {
	var sawModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		sawModel, _ = req["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody("hello from the model"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Model: "test-model"})
	resp, err := c.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if resp.Content != "hello from the model" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 7 {
		t.Fatalf("usage not carried: %+v", resp)
	}
	if sawModel != "test-model" {
		t.Fatalf("model not sent, got %q", sawModel)
	}
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody("eventually"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Model: "m", MaxRetries: 3})
	resp, err := c.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("complete failed after retries: %v", err)
	}
	if resp.Content != "eventually" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestCompleteGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"down"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Model: "m", MaxRetries: 1})
	_, err := c.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}
