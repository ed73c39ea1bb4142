package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/signaware/internal/domain/ai"
)

type capturedRequest struct {
	Model          string  `json:"model"`
	Stream         bool    `json:"stream"`
	Temperature    float32 `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("sk-test", srv.URL+"/v1", "gpt-4o", 5*time.Second, nil)
}

func TestAnalyzeSendsJSONModeRequest(t *testing.T) {
	var got capturedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o",
"choices":[{"index":0,"message":{"role":"assistant","content":"{\"summary\":\"ok\"}"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	})

	out, err := client.Analyze(context.Background(), ai.AnalysisRequest{Title: "ToS", DocType: "contract", Content: "body", Masked: true})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out != `{"summary":"ok"}` {
		t.Fatalf("unexpected content %q", out)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format, got %+v", got.ResponseFormat)
	}
	if got.Temperature != analysisTemp {
		t.Fatalf("temperature = %v, want %v", got.Temperature, analysisTemp)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || !strings.Contains(got.Messages[1].Content, "masked content") {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestAnalyzeMapsQuotaError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	})

	_, err := client.Analyze(context.Background(), ai.AnalysisRequest{Title: "x"})
	if !errors.Is(err, ai.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestAnalyzeEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	})
	if _, err := client.Analyze(context.Background(), ai.AnalysisRequest{}); !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestChatStreamForwardsFragmentsInOrder(t *testing.T) {
	var got capturedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "", "lo", " there"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		io.WriteString(w, "data: [DONE]\n\n")
	})

	ch, err := client.ChatStream(context.Background(), []ai.Message{
		{Role: "system", Content: "ctx"},
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("chat stream: %v", err)
	}
	var parts []string
	for tok := range ch {
		if tok.Err != nil {
			t.Fatalf("unexpected stream error: %v", tok.Err)
		}
		parts = append(parts, tok.Content)
	}
	if strings.Join(parts, "|") != "Hel|lo| there" {
		t.Fatalf("unexpected fragments %q", parts)
	}
	if !got.Stream || got.Temperature != chatTemp || len(got.Messages) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestChatStreamOpenError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})
	if _, err := client.ChatStream(context.Background(), []ai.Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReasoningModelsSkipTemperature(t *testing.T) {
	c := NewClient("k", "", "o3-mini", 0, nil)
	req := openai.ChatCompletionRequest{Model: c.Model}
	c.tune(&req, chatTemp)
	if req.MaxCompletionTokens != maxTokens || req.MaxTokens != 0 || req.Temperature != 0 {
		t.Fatalf("reasoning model tuned wrong: %+v", req)
	}
	c = NewClient("k", "", "", 0, nil)
	if c.Model != defaultModel {
		t.Fatalf("expected default model, got %q", c.Model)
	}
}
