package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/summarization"
)

func newServer(t *testing.T, calls *atomic.Int32, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSummarize(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 || req.Messages[1].Content != "we agreed to ship friday" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  - Ship on Friday\n"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":20,"completion_tokens":5,"total_tokens":25}}`))
	})

	p := New(summarization.Config{Enabled: true, APIKey: "sk-test", BaseURL: srv.URL + "/v1/"}, logger.NewDefault("test"))
	sum, err := p.Summarize(context.Background(), "we agreed to ship friday")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Text != "- Ship on Friday" || sum.Model != "gpt-4o-mini" {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestSummarizeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[]}`))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newServer(t, &calls, tc.handler)
			p := New(summarization.Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, logger.NewDefault("test"))

			_, err := p.Summarize(context.Background(), "text")
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Code != apperrors.ErrCodeSummarization {
				t.Fatalf("expected SUMMARIZATION_ERROR, got %v", err)
			}
			if calls.Load() != 1 {
				t.Errorf("expected exactly one attempt, got %d", calls.Load())
			}
		})
	}
}

func TestIsAvailable(t *testing.T) {
	if New(summarization.Config{}, logger.NewDefault("test")).IsAvailable(context.Background()) {
		t.Error("expected unavailable without api key")
	}
}

func TestConfigActive(t *testing.T) {
	tests := []struct {
		cfg  summarization.Config
		want bool
	}{
		{summarization.Config{Enabled: true, APIKey: "k"}, true},
		{summarization.Config{Enabled: true}, false},
		{summarization.Config{APIKey: "k"}, false},
	}
	for _, tc := range tests {
		if got := tc.cfg.Active(); got != tc.want {
			t.Errorf("Active(%+v) = %v, want %v", tc.cfg, got, tc.want)
		}
	}
}
