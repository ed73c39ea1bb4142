package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/signaware/internal/domain/ai"
	"github.com/bryanwahyu/signaware/internal/infra/ai/prompt"
)

const defaultBaseURL = "http://localhost:11434"

// Client calls Ollama /api/generate (non-streaming) for PII masking.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, model string, timeout time.Duration, log *zap.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Named("ollama"),
	}
}

func (c *Client) Model() string { return c.model }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

// sampling rendah supaya output masking stabil
type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Mask returns the raw model reply. Cleanup of reasoning blocks and chatter is left to the caller.
func (c *Client) Mask(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt.MaskingPrompt(text),
		Stream:  false,
		Options: generateOptions{Temperature: 0.1, TopP: 0.9},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: ollama: %s", ai.ErrQuotaExceeded, msg)
		}
		return "", fmt.Errorf("ollama api error: %s", msg)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	c.log.Debug("masking generate",
		zap.String("model", c.model),
		zap.Duration("took", time.Since(start)),
		zap.Int("chars", len(out.Response)),
	)
	return out.Response, nil
}
