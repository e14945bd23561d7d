package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newAnthropicTestServer(t *testing.T, capture *anthropicRequest, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicAPIVersion {
			t.Errorf("unexpected version header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
			t.Errorf("decode request body: %v", err)
		}

		resp := map[string]interface{}{
			"model": capture.Model,
			"content": []map[string]string{
				{"type": "text", "text": reply},
			},
			"usage": map[string]int{"input_tokens": 12, "output_tokens": 7},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func TestAnthropic_Send(t *testing.T) {
	var captured anthropicRequest
	srv := newAnthropicTestServer(t, &captured, "greetings")
	defer srv.Close()

	adapter := NewAnthropic("test-key", "claude-3-5-sonnet-20241022")
	adapter.baseURL = srv.URL

	resp, err := adapter.Send(context.Background(), ChatRequest{
		Message:      "hi",
		SystemPrompt: "be kind",
		History: []PromptMessage{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if resp.Reply != "greetings" {
		t.Errorf("unexpected reply %q", resp.Reply)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 7 {
		t.Errorf("unexpected usage %d/%d", resp.PromptTokens, resp.CompletionTokens)
	}
	if captured.System != "be kind" {
		t.Errorf("expected system prompt in top-level field, got %q", captured.System)
	}
	if captured.MaxTokens == 0 {
		t.Error("max_tokens is required by the messages API")
	}
	// History plus the current message; no system role in the sequence.
	if len(captured.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(captured.Messages))
	}
	for _, msg := range captured.Messages {
		if msg.Role == "system" {
			t.Errorf("system role must not appear in the message sequence")
		}
	}
}

func TestAnthropic_Send_ContextNoteBecomesUserMessage(t *testing.T) {
	var captured anthropicRequest
	srv := newAnthropicTestServer(t, &captured, "ok")
	defer srv.Close()

	adapter := NewAnthropic("test-key", "claude-3-5-sonnet-20241022")
	adapter.baseURL = srv.URL

	_, err := adapter.Send(context.Background(), ChatRequest{
		Message:      "hi",
		SystemPrompt: "be kind",
		ContextNote:  "learner prefers short answers",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("expected context note + user message, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "user" {
		t.Errorf("context note must be folded into a user message, got role %s", captured.Messages[0].Role)
	}
	if captured.Messages[0].Content != "[context] learner prefers short answers" {
		t.Errorf("unexpected folded note %q", captured.Messages[0].Content)
	}
}

func TestAnthropic_Send_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	adapter := NewAnthropic("test-key", "claude-3-5-sonnet-20241022")
	adapter.baseURL = srv.URL

	_, err := adapter.Send(context.Background(), ChatRequest{Message: "hi"})
	if err == nil {
		t.Fatal("expected error from 429 response")
	}

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if provErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", provErr.StatusCode)
	}
	if provErr.Message != "rate limited" {
		t.Errorf("expected upstream message preserved, got %q", provErr.Message)
	}
}

func TestSplitAnthropicPrompt(t *testing.T) {
	system, messages := splitAnthropicPrompt([]PromptMessage{
		{Role: "system", Content: "primary"},
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "system", Content: "note"},
		{Role: "user", Content: "q2"},
	})

	if system != "primary" {
		t.Errorf("expected leading system entry lifted, got %q", system)
	}
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[2].Role != "user" || messages[2].Content != "[context] note" {
		t.Errorf("expected folded context note, got %+v", messages[2])
	}
}

func TestRegistry_New(t *testing.T) {
	registry := NewRegistry()

	openai, err := registry.New(Selection{ServiceName: ServiceOpenAI, APIKey: "k"})
	if err != nil {
		t.Fatalf("New(openai) failed: %v", err)
	}
	if openai.Name() != ServiceOpenAI {
		t.Errorf("expected openai adapter, got %s", openai.Name())
	}

	anthropic, err := registry.New(Selection{ServiceName: "Anthropic", APIKey: "k"})
	if err != nil {
		t.Fatalf("New(anthropic) failed: %v", err)
	}
	if anthropic.Name() != ServiceAnthropic {
		t.Errorf("expected anthropic adapter, got %s", anthropic.Name())
	}

	if _, err := registry.New(Selection{ServiceName: "mystery"}); err == nil {
		t.Error("expected error for unknown service")
	}
}
