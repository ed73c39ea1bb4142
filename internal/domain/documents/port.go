package documents

import (
	"context"
	"io"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, d *Document) error
	// Get returns ErrNotFound when the id does not exist or is owned by someone else.
	Get(ctx context.Context, id, userID string) (*Document, error)
	List(ctx context.Context, f ListFilter) ([]*Document, error)
	Delete(ctx context.Context, id, userID string) error

	// BeginProcessing is the compare-and-swap into PROCESSING. It reports false when
	// another request already holds the document or it is already analyzed (unless force).
	// A forced claim may also take over a PROCESSING row started before staleBefore;
	// zero staleBefore disables the takeover.
	BeginProcessing(ctx context.Context, id, userID string, at time.Time, force bool, staleBefore time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id string, a *Analysis, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) error

	SaveMasked(ctx context.Context, id, userID string, m *MaskedContent, at time.Time) error
}

// ObjectStore port (interface untuk penyimpanan file asli)
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// TextExtractor turns an uploaded file into plain text.
type TextExtractor interface {
	Extract(filename, contentType string, data []byte) (string, error)
}
