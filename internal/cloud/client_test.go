// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return NewClient("openai", serverURL, "sk-test-key").
		WithHTTPClient(&http.Client{Timeout: 5 * time.Second}).
		WithRateLimit(1000)
}

func TestChatSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Temperature != 0.3 {
			t.Errorf("temperature = %v", req.Temperature)
		}
		if req.MaxTokens != 1500 {
			t.Errorf("max_tokens = %d", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "resp-1",
			"model": req.Model,
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "hello back"}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Chat(context.Background(), "gpt-4o-mini",
		[]ChatMessage{NewUserMessage("hello")}, 0.3, 1500)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got := resp.GetContent(); got != "hello back" {
		t.Errorf("content = %q", got)
	}
}

func TestGenerateReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "42"}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	out, err := client.Generate(context.Background(), "gpt-4o", "meaning of life", 0.7, 500)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "42" {
		t.Errorf("output = %q", out)
	}
}

func TestChatNotConfigured(t *testing.T) {
	client := NewClient("openai", "http://localhost:0", "")
	_, err := client.Chat(context.Background(), "gpt-4o", []ChatMessage{NewUserMessage("hi")}, 0.7, 100)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestChatAuthFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "invalid_api_key", "message": "bad key"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Chat(context.Background(), "gpt-4o", []ChatMessage{NewUserMessage("hi")}, 0.7, 100)
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("error = %v, want ErrAuthFailed", err)
	}
	if !strings.Contains(err.Error(), "bad key") {
		t.Errorf("error %q should include API message", err)
	}
}

func TestChatModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Chat(context.Background(), "no-such-model", []ChatMessage{NewUserMessage("hi")}, 0.7, 100)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("error = %v, want ErrModelNotFound", err)
	}
}

func TestChatRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"message": "upstream hiccup"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "recovered"}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Chat(context.Background(), "gpt-4o", []ChatMessage{NewUserMessage("hi")}, 0.7, 100)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.GetContent() != "recovered" {
		t.Errorf("content = %q", resp.GetContent())
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("call count = %d, want 3", got)
	}
}

func TestChatDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Chat(context.Background(), "gpt-4o", []ChatMessage{NewUserMessage("hi")}, 0.7, 100)
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("error = %v, want ErrAuthFailed", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("call count = %d, want 1 (no retries)", got)
	}
}

func TestChatExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL).WithMaxRetries(2)
	_, err := client.Chat(context.Background(), "gpt-4o", []ChatMessage{NewUserMessage("hi")}, 0.7, 100)
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want wrapped ErrRateLimited", err)
	}
}

func TestAPIKeyMasked(t *testing.T) {
	client := NewClient("openai", "https://api.openai.com/v1", "sk-secret-key-value")
	masked := client.APIKeyMasked()
	if strings.Contains(masked, "secret") {
		t.Errorf("masked key %q leaks key material", masked)
	}
	if !strings.Contains(masked, "REDACTED") {
		t.Errorf("masked key = %q, want [REDACTED, ...]", masked)
	}

	empty := NewClient("openai", "", "")
	if got := empty.APIKeyMasked(); got != "[not set]" {
		t.Errorf("empty key masked = %q", got)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1 * time.Second},
		{3, 2 * time.Second},
		{10, retryMaxDelay},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
