// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"forge1/platform/orchestrator/llm"
)

// mockInvokeClient returns a canned response body or error.
type mockInvokeClient struct {
	response  []byte
	err       error
	lastInput *bedrockruntime.InvokeModelInput
}

func (m *mockInvokeClient) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	m.lastInput = params
	if m.err != nil {
		return nil, m.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: m.response}, nil
}

func TestNewWithClientDefaults(t *testing.T) {
	a := NewWithClient(&mockInvokeClient{}, Config{})

	if a.ModelName() != "bedrock-"+DefaultModel {
		t.Errorf("unexpected model name: %s", a.ModelName())
	}
	if len(a.Capabilities()) != len(llm.ValidTaskTypes) {
		t.Errorf("expected all task types by default, got %v", a.Capabilities())
	}
}

func TestGenerateAnthropicFamily(t *testing.T) {
	client := &mockInvokeClient{
		response: []byte(`{
			"content": [{"type": "text", "text": "bedrock says hi"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 8, "output_tokens": 4}
		}`),
	}
	a := NewWithClient(client, Config{Model: "anthropic.claude-3-5-sonnet-20241022-v2:0"})

	result, err := a.Generate(context.Background(), "hello", llm.GenerateOptions{
		MaxTokens:    128,
		SystemPrompt: "be brief",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if result.Content != "bedrock says hi" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.PromptTokens != 8 || result.CompletionTokens != 4 {
		t.Errorf("unexpected token counts: %d/%d", result.PromptTokens, result.CompletionTokens)
	}
	if result.Metadata["provider"] != "bedrock" {
		t.Errorf("expected provider metadata, got %v", result.Metadata["provider"])
	}

	var body map[string]any
	if err := json.Unmarshal(client.lastInput.Body, &body); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	if body["anthropic_version"] != "bedrock-2023-05-31" {
		t.Errorf("expected bedrock anthropic version, got %v", body["anthropic_version"])
	}
	if body["system"] != "be brief" {
		t.Errorf("expected system prompt, got %v", body["system"])
	}
	if body["max_tokens"] != float64(128) {
		t.Errorf("expected max_tokens 128, got %v", body["max_tokens"])
	}
}

func TestGenerateTitanFamily(t *testing.T) {
	client := &mockInvokeClient{
		response: []byte(`{
			"results": [{"outputText": "titan output", "tokenCount": 6}],
			"inputTextTokenCount": 10
		}`),
	}
	a := NewWithClient(client, Config{Model: "amazon.titan-text-express-v1"})

	result, err := a.Generate(context.Background(), "hello", llm.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if result.Content != "titan output" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.PromptTokens != 10 || result.CompletionTokens != 6 {
		t.Errorf("unexpected token counts: %d/%d", result.PromptTokens, result.CompletionTokens)
	}

	var body map[string]any
	if err := json.Unmarshal(client.lastInput.Body, &body); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	if body["inputText"] != "hello" {
		t.Errorf("expected titan inputText, got %v", body["inputText"])
	}
}

func TestGenerateLlamaFamily(t *testing.T) {
	client := &mockInvokeClient{
		response: []byte(`{
			"generation": "llama output",
			"prompt_token_count": 5,
			"generation_token_count": 3
		}`),
	}
	a := NewWithClient(client, Config{Model: "meta.llama3-70b-instruct-v1:0"})

	result, err := a.Generate(context.Background(), "hello", llm.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if result.Content != "llama output" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.PromptTokens != 5 || result.CompletionTokens != 3 {
		t.Errorf("unexpected token counts: %d/%d", result.PromptTokens, result.CompletionTokens)
	}
}

func TestGenerateUnsupportedFamily(t *testing.T) {
	a := NewWithClient(&mockInvokeClient{}, Config{Model: "cohere.command-text-v14"})

	_, err := a.Generate(context.Background(), "hello", llm.GenerateOptions{})
	if err == nil {
		t.Fatal("expected error for unsupported model family")
	}
	if !strings.Contains(err.Error(), "unsupported bedrock model family") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGenerateInvokeError(t *testing.T) {
	client := &mockInvokeClient{err: errors.New("throttled")}
	a := NewWithClient(client, Config{})

	_, err := a.Generate(context.Background(), "hello", llm.GenerateOptions{})
	if err == nil {
		t.Fatal("expected error from invoke failure")
	}
	if !strings.Contains(err.Error(), "throttled") {
		t.Errorf("unexpected error: %v", err)
	}
}
