package masking

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/bryanwahyu/signaware/internal/application"
	"github.com/bryanwahyu/signaware/internal/domain/ai"
	"github.com/bryanwahyu/signaware/internal/domain/documents"
)

// Service masks PII with the local model. Masking is independent of the analysis status machine.
type Service struct {
	Docs   documents.Repository
	Masker ai.Masker
	Clock  application.Clock
	Log    *zap.Logger
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Result of masking free text. Lengths are in characters.
type Result struct {
	MaskedContent  string `json:"masked_content"`
	OriginalLength int    `json:"original_length"`
	MaskedLength   int    `json:"masked_length"`
}

// DocumentResult is what MaskDocument and MaskedContent return for a document.
type DocumentResult struct {
	DocumentID     string    `json:"document_id"`
	MaskedContent  string    `json:"masked_content"`
	OriginalLength int       `json:"original_length"`
	MaskedLength   int       `json:"masked_length"`
	MaskedAt       time.Time `json:"masked_at"`
	ModelUsed      string    `json:"model_used,omitempty"`
}

func (s *Service) mask(ctx context.Context, text string) (string, error) {
	raw, err := s.Masker.Mask(ctx, text)
	if err != nil {
		return "", err
	}
	return CleanOutput(raw), nil
}

func (s *Service) MaskText(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", documents.ErrInvalidInput)
	}
	masked, err := s.mask(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to mask PII: %w", err)
	}
	return &Result{
		MaskedContent:  masked,
		OriginalLength: utf8.RuneCountInString(text),
		MaskedLength:   utf8.RuneCountInString(masked),
	}, nil
}

// MaskDocument masks the document content and stores the result next to the original.
func (s *Service) MaskDocument(ctx context.Context, documentID, userID string) (*DocumentResult, error) {
	doc, err := s.Docs.Get(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	masked, err := s.mask(ctx, doc.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to mask document content: %w", err)
	}

	now := s.Clock.Now()
	mc := &documents.MaskedContent{
		OriginalContent: doc.Content,
		MaskedContent:   masked,
		OriginalLength:  utf8.RuneCountInString(doc.Content),
		MaskedLength:    utf8.RuneCountInString(masked),
		MaskedAt:        now,
		ModelUsed:       s.Masker.Model(),
	}
	if err := s.Docs.SaveMasked(ctx, documentID, userID, mc, now); err != nil {
		return nil, err
	}
	s.logger().Info("document masked",
		zap.String("document_id", documentID),
		zap.String("model", mc.ModelUsed),
		zap.Int("original_length", mc.OriginalLength),
		zap.Int("masked_length", mc.MaskedLength),
		zap.Duration("took", time.Since(start)),
	)
	return resultOf(documentID, mc), nil
}

func (s *Service) MaskedContent(ctx context.Context, documentID, userID string) (*DocumentResult, error) {
	doc, err := s.Docs.Get(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc.Masked == nil {
		return nil, documents.ErrNotMasked
	}
	return resultOf(documentID, doc.Masked), nil
}

func resultOf(documentID string, mc *documents.MaskedContent) *DocumentResult {
	return &DocumentResult{
		DocumentID:     documentID,
		MaskedContent:  mc.MaskedContent,
		OriginalLength: mc.OriginalLength,
		MaskedLength:   mc.MaskedLength,
		MaskedAt:       mc.MaskedAt,
		ModelUsed:      mc.ModelUsed,
	}
}
