package chat

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, m *Message) error
	// ListSession returns messages ordered by creation time, then insertion order.
	ListSession(ctx context.Context, sessionID, documentID, userID string) ([]*Message, error)
	ListDocument(ctx context.Context, documentID, userID string) ([]*Message, error)
	DeleteSession(ctx context.Context, sessionID, documentID, userID string) (int64, error)
}
