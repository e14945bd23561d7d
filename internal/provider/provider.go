// Package provider abstracts the LLM backends the tutor can dispatch to.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Supported backend service names. These match the service_name column
// of the provider_configs table.
const (
	ServiceOpenAI    = "openai"
	ServiceAnthropic = "anthropic"
)

// PromptMessage is one entry of the ordered prompt sequence.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one backend call. The prompt sequence is built
// as [system, if any] -> [history, oldest first] -> [context note, if
// any] -> [current user message].
type ChatRequest struct {
	Message       string
	SystemPrompt  string
	ContextNote   string
	History       []PromptMessage
	ModelOverride string
	// Temperature is passed through only when the caller supplied one.
	// Adapters never invent a default value at this layer.
	Temperature *float64
}

// ChatResponse is the normalized result of a backend call.
type ChatResponse struct {
	Reply            string
	Model            string
	ResponseTimeMs   int64
	PromptTokens     int
	CompletionTokens int
}

// Adapter invokes one LLM backend.
type Adapter interface {
	// Name returns the backend service name.
	Name() string

	// Send performs a single provider call. Failures are returned as
	// *Error; no retry is attempted at this layer.
	Send(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Error reports an upstream backend failure with the upstream message
// preserved.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

// buildPrompt assembles the ordered prompt sequence shared by all
// adapters. The context note is injected as an auxiliary system entry
// between history and the current message.
func buildPrompt(req ChatRequest) []PromptMessage {
	msgs := make([]PromptMessage, 0, len(req.History)+3)
	if req.SystemPrompt != "" {
		msgs = append(msgs, PromptMessage{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, req.History...)
	if req.ContextNote != "" {
		msgs = append(msgs, PromptMessage{Role: "system", Content: req.ContextNote})
	}
	msgs = append(msgs, PromptMessage{Role: "user", Content: req.Message})
	return msgs
}

// Registry is a dispatch table mapping service names to adapter
// constructors. Adding a backend means registering one constructor, not
// touching call sites.
type Registry struct {
	constructors map[string]func(Selection) Adapter
}

// NewRegistry returns a registry with the built-in backends registered.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]func(Selection) Adapter)}
	r.Register(ServiceOpenAI, func(sel Selection) Adapter { return NewOpenAI(sel.APIKey, sel.Model) })
	r.Register(ServiceAnthropic, func(sel Selection) Adapter { return NewAnthropic(sel.APIKey, sel.Model) })
	return r
}

// Register installs a constructor for a service name.
func (r *Registry) Register(name string, construct func(Selection) Adapter) {
	r.constructors[strings.ToLower(name)] = construct
}

// New builds an adapter for the given selection.
func (r *Registry) New(sel Selection) (Adapter, error) {
	construct, ok := r.constructors[strings.ToLower(sel.ServiceName)]
	if !ok {
		return nil, fmt.Errorf("unknown provider service %q", sel.ServiceName)
	}
	return construct(sel), nil
}
