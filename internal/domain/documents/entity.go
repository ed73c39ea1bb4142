package documents

import (
	"fmt"
	"strings"
	"time"
)

// Type enum
type Type string

const (
	TypeTermsOfService Type = "terms_of_service"
	TypePrivacyPolicy  Type = "privacy_policy"
	TypeContract       Type = "contract"
	TypeAgreement      Type = "agreement"
	TypeOther          Type = "other"
)

var typeNames = map[string]Type{
	"TERMS_OF_SERVICE": TypeTermsOfService,
	"PRIVACY_POLICY":   TypePrivacyPolicy,
	"CONTRACT":         TypeContract,
	"AGREEMENT":        TypeAgreement,
	"OTHER":            TypeOther,
}

// ParseType menerima value ("privacy_policy") atau nama konstanta ("PRIVACY_POLICY"), case-insensitive.
// Empty input falls back to TypeOther.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeOther, nil
	}
	lower := Type(strings.ToLower(s))
	for _, t := range typeNames {
		if t == lower {
			return t, nil
		}
	}
	if t, ok := typeNames[strings.ToUpper(s)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, s)
}

// Status enum
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown document status %q", ErrInvalidInput, s)
}

// MaskedContent value object, disimpan utuh sebagai JSON di kolom masked_content
type MaskedContent struct {
	OriginalContent string    `json:"original_content"`
	MaskedContent   string    `json:"masked_content"`
	OriginalLength  int       `json:"original_length"`
	MaskedLength    int       `json:"masked_length"`
	MaskedAt        time.Time `json:"masked_at"`
	ModelUsed       string    `json:"model_used"`
}

// Aggregate Root: Document
type Document struct {
	ID                    string         `json:"id"`
	UserID                string         `json:"user_id"`
	Title                 string         `json:"title"`
	Content               string         `json:"content"`
	OriginalFileName      string         `json:"original_file_name,omitempty"`
	StorageKey            string         `json:"storage_key,omitempty"`
	FileSize              int64          `json:"file_size,omitempty"`
	MimeType              string         `json:"mime_type,omitempty"`
	Type                  Type           `json:"type"`
	Status                Status         `json:"status"`
	Analysis              *Analysis      `json:"analysis,omitempty"`
	Masked                *MaskedContent `json:"-"`
	ProcessingStartedAt   *time.Time     `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time     `json:"processing_completed_at,omitempty"`
	ErrorMessage          string         `json:"error_message,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// Analyzed reports whether the document holds a finished analysis.
func (d *Document) Analyzed() bool {
	return d.Status == StatusCompleted && d.Analysis != nil
}

// AnalysisContent returns the text that goes to the analyzer: masked content when the
// document was masked, the raw content otherwise.
func (d *Document) AnalysisContent() (string, bool) {
	if d.Masked != nil && d.Masked.MaskedContent != "" {
		return d.Masked.MaskedContent, true
	}
	return d.Content, false
}

// ListFilter untuk query list dokumen per user
type ListFilter struct {
	UserID string
	Type   Type
	Status Status
	Skip   int
	Limit  int
}
