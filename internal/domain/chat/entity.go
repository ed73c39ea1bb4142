package chat

import "time"

// Role enum
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message satu baris percakapan dalam sebuah session
type Message struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Session summary, diturunkan dari pesan-pesan dalam session
type Session struct {
	SessionID    string    `json:"session_id"`
	DocumentID   string    `json:"document_id"`
	FirstMessage string    `json:"first_message"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
