// Package sqlstore holds the sqlx repositories shared by the postgres and mysql drivers.
// Queries are written with '?' placeholders and rebound per driver.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Dialect captures what differs between the supported SQL drivers.
type Dialect struct {
	Name              string
	IsUniqueViolation func(error) bool
}

type Store struct {
	db      *sqlx.DB
	dialect Dialect
	log     *zap.Logger
}

func New(db *sqlx.DB, dialect Dialect, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	return &Store{db: db, dialect: dialect, log: log.Named("sqlstore")}
}

func (s *Store) Users() *UserRepository         { return &UserRepository{db: s.db, dialect: s.dialect} }
func (s *Store) Documents() *DocumentRepository { return &DocumentRepository{db: s.db, log: s.log} }
func (s *Store) Messages() *MessageRepository   { return &MessageRepository{db: s.db} }

// Check dipakai health handler
func (s *Store) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// jsonParam encodes v for a JSON/JSONB column. lib/pq sends []byte as bytea, so the
// value goes over the wire as text.
func jsonParam(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
