package ai

import "context"

// AnalysisRequest input untuk analisis dokumen
type AnalysisRequest struct {
	Title   string
	DocType string
	Content string
	// Masked is true when Content has already gone through PII masking.
	Masked bool
}

// Message role-tagged, role: "system" | "user" | "assistant"
type Message struct {
	Role    string
	Content string
}

// StreamToken is one fragment of a streamed reply. A token with Err set is the last one.
type StreamToken struct {
	Content string
	Err     error
}

// Analyzer is the hosted structured model used for document analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (string, error)
}

// Chatter streams a conversational reply. The channel is closed when the reply ends.
type Chatter interface {
	ChatStream(ctx context.Context, msgs []Message) (<-chan StreamToken, error)
}

// Masker is the local model that rewrites text with PII replaced by placeholders.
type Masker interface {
	Mask(ctx context.Context, text string) (string, error)
	Model() string
}
