package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
)

// Anthropic invokes the Anthropic messages API.
type Anthropic struct {
	apiKey       string
	defaultModel string
	baseURL      string
	httpClient   *http.Client
}

// NewAnthropic creates an Anthropic adapter.
func NewAnthropic(apiKey, defaultModel string) *Anthropic {
	return &Anthropic{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		baseURL:      anthropicBaseURL,
		httpClient:   &http.Client{Timeout: callTimeout},
	}
}

// Name returns the backend service name.
func (a *Anthropic) Name() string { return ServiceAnthropic }

type anthropicRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []PromptMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send performs one messages API call.
func (a *Anthropic) Send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.ModelOverride
	if model == "" {
		model = a.defaultModel
	}

	system, messages := splitAnthropicPrompt(buildPrompt(req))
	payload := anthropicRequest{
		Model:       model,
		System:      system,
		Messages:    messages,
		MaxTokens:   defaultTokenBudget,
		Temperature: req.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create anthropic request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Provider: ServiceAnthropic, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, a.wrapError(resp)
	}

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Provider: ServiceAnthropic, Message: "malformed response: " + err.Error()}
	}

	var reply strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return nil, &Error{Provider: ServiceAnthropic, Message: "response contained no text content"}
	}

	usedModel := result.Model
	if usedModel == "" {
		usedModel = model
	}
	return &ChatResponse{
		Reply:            reply.String(),
		Model:            usedModel,
		ResponseTimeMs:   time.Since(start).Milliseconds(),
		PromptTokens:     result.Usage.InputTokens,
		CompletionTokens: result.Usage.OutputTokens,
	}, nil
}

// splitAnthropicPrompt adapts the generic prompt sequence to the
// messages API: the leading system entry becomes the top-level system
// field, and any auxiliary system entry (the context note) is folded
// into a user message, since the API rejects mid-conversation system
// roles.
func splitAnthropicPrompt(prompt []PromptMessage) (string, []PromptMessage) {
	var system string
	messages := make([]PromptMessage, 0, len(prompt))
	for i, msg := range prompt {
		if msg.Role == "system" {
			if i == 0 {
				system = msg.Content
				continue
			}
			messages = append(messages, PromptMessage{Role: "user", Content: "[context] " + msg.Content})
			continue
		}
		messages = append(messages, msg)
	}
	return system, messages
}

func (a *Anthropic) wrapError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Provider: ServiceAnthropic, StatusCode: resp.StatusCode, Message: "failed to read error response"}
	}

	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &Error{Provider: ServiceAnthropic, StatusCode: resp.StatusCode, Message: errResp.Error.Message}
	}
	return &Error{Provider: ServiceAnthropic, StatusCode: resp.StatusCode, Message: string(body)}
}
