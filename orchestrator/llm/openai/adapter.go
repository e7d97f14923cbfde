// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

// Package openai provides a model adapter for OpenAI chat models.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"forge1/platform/orchestrator/llm"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions.
	DefaultMaxTokens = 4096

	// DefaultModel is used when the config names no model.
	DefaultModel = "gpt-4o-mini"
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config contains configuration for the OpenAI adapter.
type Config struct {
	APIKey       string         // Required: OpenAI API key
	BaseURL      string         // Optional: API base URL
	Model        string         // Optional: model (default: gpt-4o-mini)
	Timeout      time.Duration  // Optional: HTTP timeout (default: 120s)
	Capabilities []llm.TaskType // Optional: served task types (default: all)
	CostPer1K    float64        // Optional: blended cents per 1K tokens
}

// Adapter implements llm.Adapter for OpenAI chat completions.
type Adapter struct {
	apiKey       string
	baseURL      string
	model        string
	capabilities []llm.TaskType
	costPer1K    float64
	client       HTTPClient
}

// New creates a new OpenAI adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.Capabilities) == 0 {
		cfg.Capabilities = llm.ValidTaskTypes
	}

	return &Adapter{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		model:        cfg.Model,
		capabilities: cfg.Capabilities,
		costPer1K:    cfg.CostPer1K,
		client:       &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SetHTTPClient replaces the HTTP client, used by tests.
func (a *Adapter) SetHTTPClient(client HTTPClient) {
	a.client = client
}

// ModelName implements llm.Adapter.
func (a *Adapter) ModelName() string {
	return "openai-" + a.model
}

// Capabilities implements llm.Adapter.
func (a *Adapter) Capabilities() []llm.TaskType {
	return a.capabilities
}

// CostPer1KTokensCents implements llm.CostEstimator when pricing was
// configured; zero defers to the shared pricing table.
func (a *Adapter) CostPer1KTokensCents() float64 {
	return a.costPer1K
}

// chatRequest is the Chat Completions API request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the Chat Completions API response body.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type chatError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements llm.Adapter against the Chat Completions API.
func (a *Adapter) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (*llm.GenerateResult, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var messages []chatMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	apiReq := chatRequest{
		Model:     a.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if opts.Temperature > 0 {
		apiReq.Temperature = &opts.Temperature
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr chatError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("openai API error (status %d, %s): %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("openai API error (status %d)", resp.StatusCode)
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("openai API returned no choices")
	}

	return &llm.GenerateResult{
		Content:          apiResp.Choices[0].Message.Content,
		Model:            apiResp.Model,
		PromptTokens:     apiResp.Usage.PromptTokens,
		CompletionTokens: apiResp.Usage.CompletionTokens,
		Metadata: map[string]any{
			"provider":      "openai",
			"finish_reason": apiResp.Choices[0].FinishReason,
		},
	}, nil
}

// Ensure Adapter implements the routing interfaces.
var (
	_ llm.Adapter       = (*Adapter)(nil)
	_ llm.CostEstimator = (*Adapter)(nil)
)
