package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bryanwahyu/signaware/internal/domain/ai"
	"github.com/bryanwahyu/signaware/internal/infra/ai/prompt"
)

const (
	maxTokens         = 4096
	analysisTemp      = 0.3
	chatTemp          = 0.7
	defaultModel      = "gpt-4-turbo-preview"
	streamChannelSize = 16
)

type Client struct {
	*openai.Client
	Model string
	log   *zap.Logger
}

// NewClient baseURL kosong berarti api.openai.com; timeout berlaku per request (termasuk stream).
func NewClient(apiKey, baseURL, model string, timeout time.Duration, log *zap.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if model == "" {
		model = defaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, log: log.Named("openai")}
}

// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens and leave temperature at default
func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func (c *Client) tune(req *openai.ChatCompletionRequest, temperature float32) {
	if isReasoningModel(req.Model) {
		req.MaxCompletionTokens = maxTokens
		return
	}
	req.MaxTokens = maxTokens
	req.Temperature = temperature
}

// Analyze asks for one JSON object; validation happens in the caller.
func (c *Client) Analyze(ctx context.Context, in ai.AnalysisRequest) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.AnalysisSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.AnalysisUserPrompt(in)},
		},
	}
	c.tune(&req, analysisTemp)

	start := time.Now()
	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", mapError(err))
	}
	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}
	c.log.Debug("analysis completion",
		zap.String("model", c.Model),
		zap.Duration("took", time.Since(start)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// ChatStream forwards delta fragments in arrival order. The channel is closed after the
// last fragment; a stream error is delivered as the final token.
func (c *Client) ChatStream(ctx context.Context, msgs []ai.Message) (<-chan ai.StreamToken, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.Model,
		Stream:   true,
		Messages: make([]openai.ChatCompletionMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	c.tune(&req, chatTemp)

	stream, err := c.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat stream: %w", mapError(err))
	}

	out := make(chan ai.StreamToken, streamChannelSize)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				send(ctx, out, ai.StreamToken{Err: fmt.Errorf("chat stream: %w", mapError(err))})
				return
			}
			for _, ch := range resp.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				if !send(ctx, out, ai.StreamToken{Content: ch.Delta.Content}) {
					return
				}
			}
		}
	}()
	return out, nil
}

func send(ctx context.Context, out chan<- ai.StreamToken, tok ai.StreamToken) bool {
	select {
	case out <- tok:
		return true
	case <-ctx.Done():
		return false
	}
}

// mapError ngubah 429 / insufficient_quota jadi ai.ErrQuotaExceeded
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.Code == "insufficient_quota" {
			return fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, apiErr.Message)
		}
		return err
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
	}
	return err
}
