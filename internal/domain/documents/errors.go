package documents

import "errors"

var (
	ErrNotFound           = errors.New("document not found or access denied")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrNotMasked          = errors.New("document has not been processed for PII masking")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrNotProcessing: a completion was recorded for a document that left PROCESSING meanwhile.
	ErrNotProcessing = errors.New("document is not processing")
)
