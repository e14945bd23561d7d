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

const openAIBaseURL = "https://api.openai.com/v1"

// callTimeout bounds a single provider call in addition to whatever
// deadline the inbound request context carries.
const callTimeout = 90 * time.Second

// reasoningPrefixes identify the reasoning-optimized model family.
// These models reject the temperature parameter and take their token
// budget via max_completion_tokens instead of max_tokens.
var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// OpenAI invokes the OpenAI chat completions API.
type OpenAI struct {
	apiKey       string
	defaultModel string
	baseURL      string
	httpClient   *http.Client
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(apiKey, defaultModel string) *OpenAI {
	return &OpenAI{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		baseURL:      openAIBaseURL,
		httpClient:   &http.Client{Timeout: callTimeout},
	}
}

// Name returns the backend service name.
func (o *OpenAI) Name() string { return ServiceOpenAI }

// IsReasoningModel reports whether the model name indicates the
// reasoning-optimized family.
func IsReasoningModel(model string) bool {
	for _, prefix := range reasoningPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

type openAIRequest struct {
	Model               string          `json:"model"`
	Messages            []PromptMessage `json:"messages"`
	Temperature         *float64        `json:"temperature,omitempty"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// defaultTokenBudget bounds completion length for both model families.
const defaultTokenBudget = 2048

// Send performs one chat completion call.
func (o *OpenAI) Send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.ModelOverride
	if model == "" {
		model = o.defaultModel
	}

	payload := openAIRequest{
		Model:    model,
		Messages: buildPrompt(req),
	}
	if IsReasoningModel(model) {
		payload.MaxCompletionTokens = defaultTokenBudget
	} else {
		payload.MaxTokens = defaultTokenBudget
		payload.Temperature = req.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create openai request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Provider: ServiceOpenAI, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, o.wrapError(resp)
	}

	var result openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Provider: ServiceOpenAI, Message: "malformed response: " + err.Error()}
	}
	if len(result.Choices) == 0 {
		return nil, &Error{Provider: ServiceOpenAI, Message: "response contained no choices"}
	}

	usedModel := result.Model
	if usedModel == "" {
		usedModel = model
	}
	return &ChatResponse{
		Reply:            result.Choices[0].Message.Content,
		Model:            usedModel,
		ResponseTimeMs:   time.Since(start).Milliseconds(),
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
	}, nil
}

func (o *OpenAI) wrapError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Provider: ServiceOpenAI, StatusCode: resp.StatusCode, Message: "failed to read error response"}
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &Error{Provider: ServiceOpenAI, StatusCode: resp.StatusCode, Message: errResp.Error.Message}
	}
	return &Error{Provider: ServiceOpenAI, StatusCode: resp.StatusCode, Message: string(body)}
}
