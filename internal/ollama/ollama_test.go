// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL})
}

func TestCheckRunning(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if err := c.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() error = %v", err)
	}
}

func TestCheckRunningDown(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://127.0.0.1:1"})

	err := c.CheckRunning(context.Background())
	if !IsNotRunning(err) {
		t.Errorf("CheckRunning() error = %v, want not-running", err)
	}
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ListModelsResponse{Models: []ModelInfo{
			{Name: "llama3.1:8b"},
			{Name: "qwen2.5-coder:14b"},
		}})
	})

	names, err := c.ModelNames(context.Background())
	if err != nil {
		t.Fatalf("ModelNames() error = %v", err)
	}
	if len(names) != 2 || names[0] != "llama3.1:8b" || names[1] != "qwen2.5-coder:14b" {
		t.Errorf("ModelNames() = %v", names)
	}
}

func TestChat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("Chat must not request streaming")
		}
		if req.Options == nil || req.Options.NumPredict != 500 {
			t.Errorf("options not forwarded: %+v", req.Options)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Model:   req.Model,
			Message: Message{Role: "assistant", Content: "hello back"},
			Done:    true,
		})
	})

	text, err := c.Generate(context.Background(), "llama3.1:8b", "hello", 0.7, 500)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "hello back" {
		t.Errorf("Generate() = %q", text)
	}
}

func TestChatModelNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Chat(context.Background(), "missing:1b", []Message{NewUserMessage("hi")}, nil)
	if !IsModelNotFound(err) {
		t.Errorf("Chat() error = %v, want model-not-found", err)
	}
}

func TestChatAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(APIError{Error: "model requires more memory"})
	})

	_, err := c.Chat(context.Background(), "llama3.3:70b", []Message{NewUserMessage("hi")}, nil)
	if err == nil {
		t.Fatal("Chat() expected error")
	}
	if got := err.Error(); got != "model requires more memory" {
		t.Errorf("Chat() error = %q, want API error message", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{})

	cfg := c.GetConfig()
	if cfg.BaseURL == "" || cfg.Timeout == 0 || cfg.ProbeTimeout == 0 || cfg.DefaultModel == "" {
		t.Errorf("zero-value config not filled: %+v", cfg)
	}
}
