package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/signaware/internal/domain/ai"
	domain "github.com/bryanwahyu/signaware/internal/domain/chat"
	"github.com/bryanwahyu/signaware/internal/domain/documents"
)

const (
	// ContextNotFound is returned instead of an error; callers must treat it as one.
	ContextNotFound = "No document found or access denied."

	notAnalyzedFormat = "Document '%s' has not been analyzed yet. Please analyze the document first to get detailed insights."
)

// BuildContext renders the grounding block for a conversation about one document.
func (s *Service) BuildContext(ctx context.Context, documentID, callerID string) string {
	doc, err := s.Docs.Get(ctx, documentID, callerID)
	if err != nil {
		if !errors.Is(err, documents.ErrNotFound) {
			s.logger().Warn("build context: load document", zap.String("document_id", documentID), zap.Error(err))
		}
		return ContextNotFound
	}
	return renderContext(doc)
}

func renderContext(doc *documents.Document) string {
	if doc.Analysis == nil {
		return fmt.Sprintf(notAnalyzedFormat, doc.Title)
	}
	a := doc.Analysis

	var b strings.Builder
	b.WriteString("\nDocument Information:\n")
	fmt.Fprintf(&b, "- Title: %s\n", doc.Title)
	fmt.Fprintf(&b, "- Type: %s\n", doc.Type)
	fmt.Fprintf(&b, "- Status: %s\n", doc.Status)

	b.WriteString("\nDocument Analysis Summary:\n")
	fmt.Fprintf(&b, "- Summary: %s\n", orNotAvailable(a.Summary))
	fmt.Fprintf(&b, "- Risk Score: %s/5\n", formatNumber(a.RiskScore))
	fmt.Fprintf(&b, "- Confidence Rating: %s%%\n", formatNumber(a.ConfidenceRating))
	fmt.Fprintf(&b, "- Risk Assessment: %s\n", orNotAvailable(a.RiskAssessment))

	writeBullets(&b, "Hidden Clauses", a.HiddenClauses)
	writeBullets(&b, "Loopholes", a.Loopholes)
	writeBullets(&b, "Red Flags", a.RedFlags)
	writeBullets(&b, "Key Concerns", a.KeyConcerns)

	analyzedAt := "Unknown"
	if !a.AnalyzedAt.IsZero() {
		analyzedAt = a.AnalyzedAt.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "\nAnalysis Date: %s\n", analyzedAt)
	return b.String()
}

// empty list tetap tulis header, tanpa bullet
func writeBullets(b *strings.Builder, header string, items []string) {
	fmt.Fprintf(b, "\n%s:\n", header)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not available"
	}
	return s
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildHistory returns the user and assistant messages of the session in creation order.
// No windowing is applied.
func (s *Service) BuildHistory(ctx context.Context, sessionID, documentID, callerID string) ([]ai.Message, error) {
	return s.history(ctx, sessionID, documentID, callerID, "")
}

// history is BuildHistory minus the message skipID; Turn uses it to leave out the message it just saved.
func (s *Service) history(ctx context.Context, sessionID, documentID, callerID, skipID string) ([]ai.Message, error) {
	msgs, err := s.Messages.ListSession(ctx, sessionID, documentID, callerID)
	if err != nil {
		return nil, err
	}
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == skipID {
			continue
		}
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return out, nil
}

// conversation builds the provider request: system context, prior turns, then the new user message.
func conversation(systemPrompt string, prior []ai.Message, userMessage string) []ai.Message {
	out := make([]ai.Message, 0, len(prior)+2)
	out = append(out, ai.Message{Role: string(domain.RoleSystem), Content: systemPrompt})
	out = append(out, prior...)
	return append(out, ai.Message{Role: string(domain.RoleUser), Content: userMessage})
}
