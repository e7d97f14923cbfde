// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPRetrieverQuery(t *testing.T) {
	var gotReq retrieveRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"results": [
				{"id": "d1", "content": "first snippet", "score": 0.91},
				{"id": "d2", "content": "second snippet", "score": 0.72}
			]
		}`))
	}))
	defer server.Close()

	r := NewHTTPRetriever(server.URL, 0)
	docs, err := r.Query(context.Background(), "what is forge1", 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if gotReq.Query != "what is forge1" || gotReq.TopK != 5 {
		t.Errorf("unexpected request: %+v", gotReq)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "d1" || docs[0].Score != 0.91 {
		t.Errorf("unexpected first document: %+v", docs[0])
	}
}

func TestHTTPRetrieverServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("index unavailable"))
	}))
	defer server.Close()

	r := NewHTTPRetriever(server.URL, 0)
	_, err := r.Query(context.Background(), "q", 3)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "index unavailable") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildAugmentedPrompt(t *testing.T) {
	docs := []Document{
		{ID: "d1", Content: "alpha"},
		{ID: "d2", Content: "beta"},
	}

	prompt := buildAugmentedPrompt("do the thing", docs)

	if !strings.HasPrefix(prompt, "Relevant context:") {
		t.Errorf("expected context header, got %q", prompt)
	}
	if !strings.Contains(prompt, "[1] alpha") || !strings.Contains(prompt, "[2] beta") {
		t.Errorf("expected numbered snippets, got %q", prompt)
	}
	if !strings.HasSuffix(prompt, "Task: do the thing") {
		t.Errorf("expected task text at the end, got %q", prompt)
	}
}
