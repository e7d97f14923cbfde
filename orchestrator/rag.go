// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package orchestrator

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

// Document is one retrieved snippet from the RAG collaborator.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Retriever is the query-side contract with the external RAG subsystem.
// Ingestion, chunking, and embedding live outside this core; the
// orchestrator only issues queries and treats any error as "no results".
type Retriever interface {
	Query(ctx context.Context, query string, topK int) ([]Document, error)
}

// HTTPRetriever queries a RAG service over HTTP. The service owns the index
// and embeddings; this client just posts the query.
type HTTPRetriever struct {
	endpoint string
	client   *http.Client
}

// NewHTTPRetriever creates a retriever against the given query endpoint.
func NewHTTPRetriever(endpoint string, timeout time.Duration) *HTTPRetriever {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRetriever{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type retrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type retrieveResponse struct {
	Results []Document `json:"results"`
}

// Query implements Retriever.
func (r *HTTPRetriever) Query(ctx context.Context, query string, topK int) ([]Document, error) {
	reqBody, err := json.Marshal(retrieveRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retrieval request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("retrieval service error (status %d): %s", resp.StatusCode, string(body))
	}

	var result retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode retrieval response: %w", err)
	}

	return result.Results, nil
}

// buildAugmentedPrompt prepends retrieved snippets to the task text.
func buildAugmentedPrompt(taskText string, docs []Document) string {
	var b strings.Builder
	b.WriteString("Relevant context:\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, doc.Content)
	}
	b.WriteString("\nTask: ")
	b.WriteString(taskText)
	return b.String()
}

// Ensure HTTPRetriever implements Retriever.
var _ Retriever = (*HTTPRetriever)(nil)
