package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/signaware/internal/application"
	"github.com/bryanwahyu/signaware/internal/domain/ai"
	domain "github.com/bryanwahyu/signaware/internal/domain/documents"
	"github.com/bryanwahyu/signaware/internal/domain/users"
)

// Service implements use-cases untuk Document, termasuk status machine analisis.
// Tidak ada mutex in-process: serialisasi hanya lewat conditional update di store.
type Service struct {
	Repo      domain.Repository
	Users     users.Repository
	Objects   domain.ObjectStore // optional, nil berarti file asli tidak disimpan
	Extractor domain.TextExtractor
	Analyzer  ai.Analyzer
	Clock     application.Clock
	Log       *zap.Logger

	// ProcessingLease: run PROCESSING yang lebih tua dari ini boleh diambil alih oleh force.
	// Nol berarti tidak pernah diambil alih.
	ProcessingLease time.Duration
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

//
// ==== USE CASES: CRUD ====
//

// Command untuk create dokumen dari JSON body
type CreateCommand struct {
	UserID           string
	Title            string
	Content          string
	Type             string
	OriginalFileName string
	MimeType         string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*domain.Document, error) {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(cmd.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrInvalidInput)
	}
	docType, err := domain.ParseType(cmd.Type)
	if err != nil {
		return nil, err
	}
	if _, err := s.Users.Get(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	d := &domain.Document{
		ID:               uuid.NewString(),
		UserID:           cmd.UserID,
		Title:            title,
		Content:          cmd.Content,
		OriginalFileName: cmd.OriginalFileName,
		MimeType:         cmd.MimeType,
		Type:             docType,
		Status:           domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Command untuk upload file multipart
type UploadCommand struct {
	UserID      string
	Title       string
	Type        string
	FileName    string
	ContentType string
	Data        []byte
}

// Upload extracts text from the file, keeps the original in object storage when configured,
// and creates a PENDING document.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (*domain.Document, error) {
	if len(cmd.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	docType, err := domain.ParseType(cmd.Type)
	if err != nil {
		return nil, err
	}
	if _, err := s.Users.Get(ctx, cmd.UserID); err != nil {
		return nil, err
	}
	text, err := s.Extractor.Extract(cmd.FileName, cmd.ContentType, cmd.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(cmd.FileName), filepath.Ext(cmd.FileName))
	}
	now := s.Clock.Now()
	d := &domain.Document{
		ID:               uuid.NewString(),
		UserID:           cmd.UserID,
		Title:            title,
		Content:          text,
		OriginalFileName: filepath.Base(cmd.FileName),
		FileSize:         int64(len(cmd.Data)),
		MimeType:         cmd.ContentType,
		Type:             docType,
		Status:           domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if s.Objects != nil {
		key := fmt.Sprintf("documents/%s/%s/%s", d.UserID, d.ID, d.OriginalFileName)
		if err := s.Objects.Put(ctx, key, bytes.NewReader(cmd.Data), d.FileSize, cmd.ContentType); err != nil {
			return nil, fmt.Errorf("store original file: %w", err)
		}
		d.StorageKey = key
	}

	if err := s.Repo.Create(ctx, d); err != nil {
		if d.StorageKey != "" {
			// jangan tinggalkan object yatim kalau insert gagal
			if derr := s.Objects.Delete(context.WithoutCancel(ctx), d.StorageKey); derr != nil {
				s.logger().Warn("failed to remove orphan object", zap.String("key", d.StorageKey), zap.Error(derr))
			}
		}
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id, userID string) (*domain.Document, error) {
	return s.Repo.Get(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, f domain.ListFilter) ([]*domain.Document, error) {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return s.Repo.List(ctx, f)
}

// Delete removes the document (messages cascade) and then its stored file, best effort.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	d, err := s.Repo.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	if d.StorageKey != "" && s.Objects != nil {
		if err := s.Objects.Delete(ctx, d.StorageKey); err != nil {
			s.logger().Warn("failed to delete stored file",
				zap.String("document_id", id), zap.String("key", d.StorageKey), zap.Error(err))
		}
	}
	return nil
}

//
// ==== USE CASES: ANALYSIS STATUS MACHINE ====
//

// AnalysisOutcome is returned for both successful and failed runs. A failed run is a
// normal result carrying ErrorMessage, not an error.
type AnalysisOutcome struct {
	DocumentID            string           `json:"document_id"`
	Status                domain.Status    `json:"status"`
	Analysis              *domain.Analysis `json:"analysis,omitempty"`
	ProcessingStartedAt   *time.Time       `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time       `json:"processing_completed_at,omitempty"`
	ErrorMessage          string           `json:"error_message,omitempty"`

	// Ran is true when this call invoked the provider, false for a stored result.
	Ran bool `json:"-"`
}

func outcomeOf(d *domain.Document) *AnalysisOutcome {
	return &AnalysisOutcome{
		DocumentID:            d.ID,
		Status:                d.Status,
		Analysis:              d.Analysis,
		ProcessingStartedAt:   d.ProcessingStartedAt,
		ProcessingCompletedAt: d.ProcessingCompletedAt,
		ErrorMessage:          d.ErrorMessage,
	}
}

// RequestAnalysis runs PENDING|FAILED -> PROCESSING -> COMPLETED|FAILED.
// An analyzed document is returned as is with no provider call unless force is set.
// The provider is called once, without retry.
func (s *Service) RequestAnalysis(ctx context.Context, id, userID string, force bool) (*AnalysisOutcome, error) {
	log := s.logger().With(zap.String("document_id", id), zap.Bool("force", force))

	doc, err := s.Repo.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if doc.Analyzed() && !force {
		return outcomeOf(doc), nil
	}

	startedAt := s.Clock.Now()
	var staleBefore time.Time
	if force && s.ProcessingLease > 0 {
		staleBefore = startedAt.Add(-s.ProcessingLease)
	}
	acquired, err := s.Repo.BeginProcessing(ctx, id, userID, startedAt, force, staleBefore)
	if err != nil {
		return nil, err
	}
	if !acquired {
		cur, err := s.Repo.Get(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		if cur.Analyzed() && !force {
			return outcomeOf(cur), nil
		}
		log.Info("analysis rejected, document already processing")
		return nil, domain.ErrAnalysisInProgress
	}

	// dari sini dokumen sudah PROCESSING: lepas dari cancel caller supaya selalu sampai status akhir
	runCtx := context.WithoutCancel(ctx)

	content, masked := doc.AnalysisContent()
	log.Info("analysis started", zap.Bool("masked_content", masked), zap.Int("content_chars", len(content)))

	analysis, runErr := s.runAnalysis(runCtx, doc, content, masked)
	completedAt := s.Clock.Now()

	if runErr != nil {
		reason := runErr.Error()
		if err := s.Repo.MarkFailed(runCtx, id, reason, completedAt); err != nil {
			return nil, err
		}
		log.Warn("analysis failed", zap.Error(runErr))
		return &AnalysisOutcome{
			DocumentID:            id,
			Status:                domain.StatusFailed,
			ProcessingStartedAt:   &startedAt,
			ProcessingCompletedAt: &completedAt,
			ErrorMessage:          reason,
			Ran:                   true,
		}, nil
	}

	if err := s.Repo.MarkCompleted(runCtx, id, analysis, completedAt); err != nil {
		// jangan biarkan dokumen nyangkut di PROCESSING
		reason := "persist analysis: " + err.Error()
		if ferr := s.Repo.MarkFailed(runCtx, id, reason, completedAt); ferr != nil {
			log.Error("failed to record analysis failure", zap.Error(ferr))
		}
		log.Error("analysis result not persisted", zap.Error(err))
		return nil, fmt.Errorf("persist analysis: %w", err)
	}
	log.Info("analysis completed",
		zap.Float64("risk_score", analysis.RiskScore),
		zap.Duration("took", completedAt.Sub(startedAt)),
	)
	return &AnalysisOutcome{
		DocumentID:            id,
		Status:                domain.StatusCompleted,
		Analysis:              analysis,
		ProcessingStartedAt:   &startedAt,
		ProcessingCompletedAt: &completedAt,
		Ran:                   true,
	}, nil
}

func (s *Service) runAnalysis(ctx context.Context, doc *domain.Document, content string, masked bool) (*domain.Analysis, error) {
	raw, err := s.Analyzer.Analyze(ctx, ai.AnalysisRequest{
		Title:   doc.Title,
		DocType: string(doc.Type),
		Content: content,
		Masked:  masked,
	})
	if err != nil {
		return nil, err
	}
	a, err := domain.ParseAnalysis(raw, s.Clock.Now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAnalysis) {
			return nil, fmt.Errorf("analysis response rejected: %w", err)
		}
		return nil, err
	}
	return a, nil
}

// GetAnalysis returns the current state of the document's analysis.
func (s *Service) GetAnalysis(ctx context.Context, id, userID string) (*AnalysisOutcome, error) {
	d, err := s.Repo.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return outcomeOf(d), nil
}
