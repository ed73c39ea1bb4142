package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bryanwahyu/signaware/internal/domain/ai"
)

func TestMaskPostsNonStreamingGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		io.WriteString(w, `{"model":"deepseek-r1:8b","response":"<think>hmm</think>[NAME] signed","done":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "deepseek-r1:8b", time.Second, nil)
	out, err := c.Mask(context.Background(), "John signed")
	if err != nil {
		t.Fatalf("mask: %v", err)
	}
	if out != "<think>hmm</think>[NAME] signed" {
		t.Fatalf("raw reply should be returned untouched, got %q", out)
	}
	if got.Stream || got.Model != "deepseek-r1:8b" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Options.Temperature != 0.1 || got.Options.TopP != 0.9 {
		t.Fatalf("unexpected options %+v", got.Options)
	}
	if !strings.Contains(got.Prompt, "John signed") {
		t.Fatalf("prompt should embed the text")
	}
	if c.Model() != "deepseek-r1:8b" {
		t.Fatalf("unexpected model %q", c.Model())
	}
}

func TestMaskErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantQuota bool
		wantText  string
	}{
		{"model missing", http.StatusNotFound, `{"error":"model 'x' not found"}`, false, "model 'x' not found"},
		{"overloaded", http.StatusTooManyRequests, `{}`, true, "429"},
		{"bad json", http.StatusOK, `not json`, false, "decode ollama response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "x", time.Second, nil).Mask(context.Background(), "text")
			if err == nil {
				t.Fatalf("expected error")
			}
			if errors.Is(err, ai.ErrQuotaExceeded) != tt.wantQuota {
				t.Fatalf("quota mapping mismatch: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Fatalf("error %q should mention %q", err, tt.wantText)
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("  ", "m", 0, nil)
	if c.baseURL != defaultBaseURL || c.httpClient.Timeout != 60*time.Second {
		t.Fatalf("unexpected defaults: %s %s", c.baseURL, c.httpClient.Timeout)
	}
}
