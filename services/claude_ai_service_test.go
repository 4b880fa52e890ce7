package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClaudeComplete(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" || r.Header.Get("anthropic-version") != anthropicVersion {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"m","content":[{"type":"text","text":"Synthèse. "},{"type":"text","text":"Suite."}],"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	svc := NewClaudeAIService("key", "m").WithBaseURL(srv.URL)
	out, err := svc.Complete(context.Background(), "system", "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Synthèse. Suite." {
		t.Fatalf("unexpected completion %q", out)
	}
	if got.System != "system" || len(got.Messages) != 1 || got.Messages[0].Content != "prompt" || got.MaxTokens != insightsMaxTokens {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestClaudeComplete_Errors(t *testing.T) {
	if _, err := NewClaudeAIService("", "").Complete(context.Background(), "", "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	var calls int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
	}))
	defer bad.Close()
	_, err := NewClaudeAIService("key", "").WithBaseURL(bad.URL).WithRetry(2, time.Millisecond).Complete(context.Background(), "", "x")
	var apiErr *AnthropicError
	if !errors.As(err, &apiErr) || apiErr.Type != "invalid_request_error" || apiErr.Message != "max_tokens too large" {
		t.Fatalf("expected parsed AnthropicError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("client errors must not be retried, got %d calls", calls)
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer empty.Close()
	if _, err := NewClaudeAIService("key", "").WithBaseURL(empty.URL).Complete(context.Background(), "", "x"); err == nil {
		t.Fatal("expected an error on empty content")
	}
}

func TestClaudeComplete_RetriesWhenOverloaded(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(529)
			w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	out, err := NewClaudeAIService("key", "").WithBaseURL(srv.URL).WithRetry(1, time.Millisecond).Complete(context.Background(), "", "x")
	if err != nil || out != "ok" {
		t.Fatalf("expected success after retry, got %q, %v", out, err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestEstimateCost(t *testing.T) {
	cost := NewClaudeAIService("k", "").EstimateCost(1_000_000, 1_000_000)
	if cost < 17.99 || cost > 18.01 {
		t.Fatalf("unexpected cost %v", cost)
	}
}
