package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	domain "github.com/bryanwahyu/signaware/internal/domain/documents"
)

type DocumentRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

type documentRow struct {
	ID                    string         `db:"id"`
	UserID                string         `db:"user_id"`
	Title                 string         `db:"title"`
	Content               string         `db:"content"`
	OriginalFileName      sql.NullString `db:"original_file_name"`
	StorageKey            sql.NullString `db:"storage_key"`
	FileSize              sql.NullInt64  `db:"file_size"`
	MimeType              sql.NullString `db:"mime_type"`
	Type                  string         `db:"type"`
	Status                string         `db:"status"`
	Analysis              []byte         `db:"analysis"`
	MaskedContent         []byte         `db:"masked_content"`
	ProcessingStartedAt   sql.NullTime   `db:"processing_started_at"`
	ProcessingCompletedAt sql.NullTime   `db:"processing_completed_at"`
	ErrorMessage          sql.NullString `db:"error_message"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

func (r documentRow) toDomain() (*domain.Document, error) {
	d := &domain.Document{
		ID:                    r.ID,
		UserID:                r.UserID,
		Title:                 r.Title,
		Content:               r.Content,
		OriginalFileName:      r.OriginalFileName.String,
		StorageKey:            r.StorageKey.String,
		FileSize:              r.FileSize.Int64,
		MimeType:              r.MimeType.String,
		Type:                  domain.Type(r.Type),
		Status:                domain.Status(r.Status),
		ProcessingStartedAt:   timePtr(r.ProcessingStartedAt),
		ProcessingCompletedAt: timePtr(r.ProcessingCompletedAt),
		ErrorMessage:          r.ErrorMessage.String,
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
	if len(r.Analysis) > 0 && string(r.Analysis) != "null" {
		var a domain.Analysis
		if err := json.Unmarshal(r.Analysis, &a); err != nil {
			return nil, fmt.Errorf("decode analysis for %s: %w", r.ID, err)
		}
		d.Analysis = &a
	}
	if len(r.MaskedContent) > 0 && string(r.MaskedContent) != "null" {
		var m domain.MaskedContent
		if err := json.Unmarshal(r.MaskedContent, &m); err != nil {
			return nil, fmt.Errorf("decode masked content for %s: %w", r.ID, err)
		}
		d.Masked = &m
	}
	return d, nil
}

const documentColumns = `id, user_id, title, content, original_file_name, storage_key, file_size, mime_type,
  type, status, analysis, masked_content, processing_started_at, processing_completed_at,
  error_message, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents
  (id, user_id, title, content, original_file_name, storage_key, file_size, mime_type,
   type, status, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	size := sql.NullInt64{Int64: d.FileSize, Valid: d.FileSize > 0}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		d.ID, d.UserID, d.Title, d.Content,
		nullString(d.OriginalFileName), nullString(d.StorageKey), size, nullString(d.MimeType),
		string(d.Type), string(d.Status), d.CreatedAt.UTC(), d.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, id, userID string) (*domain.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = ? AND user_id = ?`
	var row documentRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return row.toDomain()
}

// List returns newest first, filtered by optional type/status.
func (r *DocumentRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Document, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{f.UserID}
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, f.Skip)

	q := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	var rows []documentRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]*domain.Document, 0, len(rows))
	for _, row := range rows {
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Delete relies on ON DELETE CASCADE for chat messages.
func (r *DocumentRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM documents WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Conditional update jadi satu-satunya titik serialisasi: siapa yang dapat 1 row, dia yang jalan.
const (
	beginProcessingQuery = `
UPDATE documents
SET status = ?, processing_started_at = ?, error_message = NULL, updated_at = ?
WHERE id = ? AND user_id = ? AND status <> ?
  AND NOT (status = ? AND analysis IS NOT NULL)`

	beginForcedProcessingQuery = `
UPDATE documents
SET status = ?, processing_started_at = ?, error_message = NULL, updated_at = ?
WHERE id = ? AND user_id = ? AND status <> ?`

	// forced claim yang boleh ambil alih run yang sudah lewat lease
	reclaimProcessingQuery = `
UPDATE documents
SET status = ?, processing_started_at = ?, error_message = NULL, updated_at = ?
WHERE id = ? AND user_id = ?
  AND (status <> ? OR processing_started_at IS NULL OR processing_started_at < ?)`
)

func (r *DocumentRepository) BeginProcessing(ctx context.Context, id, userID string, at time.Time, force bool, staleBefore time.Time) (bool, error) {
	processing := string(domain.StatusProcessing)
	var (
		res sql.Result
		err error
	)
	switch {
	case force && !staleBefore.IsZero():
		res, err = r.db.ExecContext(ctx, r.db.Rebind(reclaimProcessingQuery),
			processing, at.UTC(), at.UTC(), id, userID, processing, staleBefore.UTC())
	case force:
		res, err = r.db.ExecContext(ctx, r.db.Rebind(beginForcedProcessingQuery),
			processing, at.UTC(), at.UTC(), id, userID, processing)
	default:
		res, err = r.db.ExecContext(ctx, r.db.Rebind(beginProcessingQuery),
			processing, at.UTC(), at.UTC(), id, userID, processing, string(domain.StatusCompleted))
	}
	if err != nil {
		return false, fmt.Errorf("begin processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("begin processing rows: %w", err)
	}
	return n == 1, nil
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, a *domain.Analysis, at time.Time) error {
	payload, err := jsonParam(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	const q = `
UPDATE documents
SET status = ?, analysis = ?, error_message = NULL, processing_completed_at = ?, updated_at = ?
WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		string(domain.StatusCompleted), payload, at.UTC(), at.UTC(), id, string(domain.StatusProcessing))
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return r.expectOne(res, id)
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	const q = `
UPDATE documents
SET status = ?, analysis = NULL, error_message = ?, processing_completed_at = ?, updated_at = ?
WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		string(domain.StatusFailed), reason, at.UTC(), at.UTC(), id, string(domain.StatusProcessing))
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return r.expectOne(res, id)
}

func (r *DocumentRepository) expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		r.log.Warn("status transition skipped, document left processing", zap.String("document_id", id))
		return domain.ErrNotProcessing
	}
	return nil
}

func (r *DocumentRepository) SaveMasked(ctx context.Context, id, userID string, m *domain.MaskedContent, at time.Time) error {
	payload, err := jsonParam(m)
	if err != nil {
		return fmt.Errorf("encode masked content: %w", err)
	}
	const q = `UPDATE documents SET masked_content = ?, updated_at = ? WHERE id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), payload, at.UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("save masked content: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
