package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	domain "github.com/bryanwahyu/signaware/internal/domain/chat"
)

type MessageRepository struct {
	db *sqlx.DB
}

type messageRow struct {
	ID         string    `db:"id"`
	DocumentID string    `db:"document_id"`
	UserID     string    `db:"user_id"`
	SessionID  string    `db:"session_id"`
	Role       string    `db:"role"`
	Content    string    `db:"content"`
	Metadata   []byte    `db:"metadata"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r messageRow) toDomain() (*domain.Message, error) {
	m := &domain.Message{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		UserID:     r.UserID,
		SessionID:  r.SessionID,
		Role:       domain.Role(r.Role),
		Content:    r.Content,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if len(r.Metadata) > 0 && string(r.Metadata) != "null" {
		if err := json.Unmarshal(r.Metadata, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
		}
	}
	return m, nil
}

func (r *MessageRepository) Save(ctx context.Context, m *domain.Message) error {
	var meta any
	if len(m.Metadata) > 0 {
		meta = m.Metadata
	}
	payload, err := jsonParam(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	// seq diisi database (auto increment) untuk tie-break urutan
	const q = `
INSERT INTO chat_messages (id, document_id, user_id, session_id, role, content, metadata, created_at)
VALUES (?,?,?,?,?,?,?,?)`
	_, err = r.db.ExecContext(ctx, r.db.Rebind(q),
		m.ID, m.DocumentID, m.UserID, m.SessionID, string(m.Role), m.Content, payload, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

const messageColumns = `id, document_id, user_id, session_id, role, content, metadata, created_at`

func (r *MessageRepository) ListSession(ctx context.Context, sessionID, documentID, userID string) ([]*domain.Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM chat_messages
WHERE session_id = ? AND document_id = ? AND user_id = ?
ORDER BY created_at ASC, seq ASC`
	return r.selectMessages(ctx, q, sessionID, documentID, userID)
}

func (r *MessageRepository) ListDocument(ctx context.Context, documentID, userID string) ([]*domain.Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM chat_messages
WHERE document_id = ? AND user_id = ?
ORDER BY created_at ASC, seq ASC`
	return r.selectMessages(ctx, q, documentID, userID)
}

func (r *MessageRepository) selectMessages(ctx context.Context, q string, args ...any) ([]*domain.Message, error) {
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	out := make([]*domain.Message, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *MessageRepository) DeleteSession(ctx context.Context, sessionID, documentID, userID string) (int64, error) {
	const q = `DELETE FROM chat_messages WHERE session_id = ? AND document_id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), sessionID, documentID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete chat session: %w", err)
	}
	return res.RowsAffected()
}
