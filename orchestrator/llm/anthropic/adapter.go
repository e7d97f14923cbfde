// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

// Package anthropic provides a model adapter for Anthropic's Claude models.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"forge1/platform/orchestrator/llm"
)

const (
	// DefaultBaseURL is the default Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAPIVersion is the Anthropic API version.
	DefaultAPIVersion = "2023-06-01"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions.
	DefaultMaxTokens = 4096

	// DefaultModel is used when the config names no model.
	DefaultModel = "claude-3-5-sonnet-20241022"
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config contains configuration for the Anthropic adapter.
type Config struct {
	APIKey       string         // Required: Anthropic API key
	BaseURL      string         // Optional: API base URL (default: https://api.anthropic.com)
	APIVersion   string         // Optional: API version (default: 2023-06-01)
	Model        string         // Optional: model (default: claude-3-5-sonnet-20241022)
	Timeout      time.Duration  // Optional: HTTP timeout (default: 120s)
	Capabilities []llm.TaskType // Optional: served task types (default: all)
	CostPer1K    float64        // Optional: blended cents per 1K tokens
}

// Adapter implements llm.Adapter for Anthropic Claude.
type Adapter struct {
	apiKey       string
	baseURL      string
	apiVersion   string
	model        string
	capabilities []llm.TaskType
	costPer1K    float64
	client       HTTPClient
}

// New creates a new Anthropic adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
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
		apiVersion:   cfg.APIVersion,
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
	return "anthropic-" + a.model
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

// anthropicRequest is the Messages API request body.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the Messages API response body.
type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements llm.Adapter against the Messages API.
func (a *Adapter) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (*llm.GenerateResult, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	apiReq := anthropicRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
		System: opts.SystemPrompt,
	}
	if opts.Temperature > 0 {
		apiReq.Temperature = &opts.Temperature
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", a.apiVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr anthropicError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("anthropic API error (status %d, %s): %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("anthropic API error (status %d)", resp.StatusCode)
	}

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var content strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &llm.GenerateResult{
		Content:          content.String(),
		Model:            apiResp.Model,
		PromptTokens:     apiResp.Usage.InputTokens,
		CompletionTokens: apiResp.Usage.OutputTokens,
		Metadata: map[string]any{
			"provider":    "anthropic",
			"stop_reason": apiResp.StopReason,
		},
	}, nil
}

// Ensure Adapter implements the routing interfaces.
var (
	_ llm.Adapter       = (*Adapter)(nil)
	_ llm.CostEstimator = (*Adapter)(nil)
)
