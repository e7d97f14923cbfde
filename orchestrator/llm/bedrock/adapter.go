// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

// Package bedrock provides a model adapter for AWS Bedrock managed models,
// using the AWS SDK for Signature V4 authentication via IAM roles.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"forge1/platform/orchestrator/llm"
)

const (
	// DefaultRegion is used when the config names no region.
	DefaultRegion = "us-east-1"

	// DefaultModel is used when the config names no model.
	DefaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"

	// DefaultMaxTokens is the default max tokens for completions.
	DefaultMaxTokens = 4096
)

// InvokeClient is the subset of the Bedrock runtime client the adapter uses
// (enables testing without AWS credentials).
type InvokeClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config contains configuration for the Bedrock adapter.
type Config struct {
	Region       string         // Optional: AWS region (default: us-east-1)
	Model        string         // Optional: Bedrock model ID
	Capabilities []llm.TaskType // Optional: served task types (default: all)
	CostPer1K    float64        // Optional: blended cents per 1K tokens
}

// Adapter implements llm.Adapter for AWS Bedrock.
type Adapter struct {
	client       InvokeClient
	region       string
	model        string
	capabilities []llm.TaskType
	costPer1K    float64
}

// New creates a Bedrock adapter. It returns an error if AWS configuration
// loading fails; callers should surface this rather than registering a
// half-initialized adapter.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if len(cfg.Capabilities) == 0 {
		cfg.Capabilities = llm.ValidTaskTypes
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", cfg.Region, err)
	}

	return &Adapter{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		region:       cfg.Region,
		model:        cfg.Model,
		capabilities: cfg.Capabilities,
		costPer1K:    cfg.CostPer1K,
	}, nil
}

// NewWithClient creates an adapter around an existing client, used by tests.
func NewWithClient(client InvokeClient, cfg Config) *Adapter {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if len(cfg.Capabilities) == 0 {
		cfg.Capabilities = llm.ValidTaskTypes
	}
	return &Adapter{
		client:       client,
		region:       cfg.Region,
		model:        cfg.Model,
		capabilities: cfg.Capabilities,
		costPer1K:    cfg.CostPer1K,
	}
}

// ModelName implements llm.Adapter.
func (a *Adapter) ModelName() string {
	return "bedrock-" + a.model
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

// Generate implements llm.Adapter by invoking the Bedrock model with a
// request body matching its model family.
func (a *Adapter) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (*llm.GenerateResult, error) {
	requestBody, err := a.buildRequestBody(prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock API error: %w", err)
	}

	result, err := a.parseResponseBody(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result.Model = a.model
	result.Metadata["provider"] = "bedrock"
	result.Metadata["region"] = a.region

	return result, nil
}

// modelFamily returns the vendor prefix of the Bedrock model ID.
func (a *Adapter) modelFamily() string {
	if i := strings.Index(a.model, "."); i > 0 {
		return a.model[:i]
	}
	return ""
}

// buildRequestBody builds the invocation payload per model family.
func (a *Adapter) buildRequestBody(prompt string, opts llm.GenerateOptions) (map[string]any, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	switch a.modelFamily() {
	case "anthropic":
		body := map[string]any{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        maxTokens,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
		}
		if opts.SystemPrompt != "" {
			body["system"] = opts.SystemPrompt
		}
		if opts.Temperature > 0 {
			body["temperature"] = opts.Temperature
		}
		return body, nil
	case "amazon":
		return map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": maxTokens,
				"temperature":   opts.Temperature,
			},
		}, nil
	case "meta":
		return map[string]any{
			"prompt":      prompt,
			"max_gen_len": maxTokens,
			"temperature": opts.Temperature,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported bedrock model family in %q", a.model)
	}
}

// anthropicBody is the response shape for Anthropic models on Bedrock.
type anthropicBody struct {
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

// titanBody is the response shape for Amazon Titan models.
type titanBody struct {
	Results []struct {
		OutputText string `json:"outputText"`
		TokenCount int    `json:"tokenCount"`
	} `json:"results"`
	InputTextTokenCount int `json:"inputTextTokenCount"`
}

// llamaBody is the response shape for Meta Llama models.
type llamaBody struct {
	Generation           string `json:"generation"`
	PromptTokenCount     int    `json:"prompt_token_count"`
	GenerationTokenCount int    `json:"generation_token_count"`
}

// parseResponseBody decodes the invocation output per model family.
func (a *Adapter) parseResponseBody(body []byte) (*llm.GenerateResult, error) {
	switch a.modelFamily() {
	case "anthropic":
		var resp anthropicBody
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		var content strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				content.WriteString(block.Text)
			}
		}
		return &llm.GenerateResult{
			Content:          content.String(),
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			Metadata:         map[string]any{"stop_reason": resp.StopReason},
		}, nil
	case "amazon":
		var resp titanBody
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		if len(resp.Results) == 0 {
			return nil, fmt.Errorf("titan response contained no results")
		}
		return &llm.GenerateResult{
			Content:          resp.Results[0].OutputText,
			PromptTokens:     resp.InputTextTokenCount,
			CompletionTokens: resp.Results[0].TokenCount,
			Metadata:         map[string]any{},
		}, nil
	case "meta":
		var resp llamaBody
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		return &llm.GenerateResult{
			Content:          resp.Generation,
			PromptTokens:     resp.PromptTokenCount,
			CompletionTokens: resp.GenerationTokenCount,
			Metadata:         map[string]any{},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported bedrock model family in %q", a.model)
	}
}

// Ensure Adapter implements the routing interfaces.
var (
	_ llm.Adapter       = (*Adapter)(nil)
	_ llm.CostEstimator = (*Adapter)(nil)
)
