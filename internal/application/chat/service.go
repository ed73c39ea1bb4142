package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/signaware/internal/application"
	"github.com/bryanwahyu/signaware/internal/domain/ai"
	domain "github.com/bryanwahyu/signaware/internal/domain/chat"
	"github.com/bryanwahyu/signaware/internal/domain/documents"
	"github.com/bryanwahyu/signaware/internal/infra/ai/prompt"
)

// ErrorReplyPrefix starts the assistant message stored when the provider fails mid-turn.
const ErrorReplyPrefix = "Sorry, I encountered an error: "

const previewLen = 100

// Service implements use-cases untuk chat yang di-ground ke hasil analisis dokumen.
type Service struct {
	Docs     documents.Repository
	Messages domain.Repository
	Chatter  ai.Chatter
	Clock    application.Clock
	Log      *zap.Logger
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

//
// ==== USE CASES: CONVERSATIONAL TURN ====
//

type TurnCommand struct {
	Message    string
	SessionID  string
	DocumentID string
	UserID     string
}

type TurnResult struct {
	Reply     string
	SessionID string
	MessageID string
	// Failed marks a reply that carries a provider error instead of model output.
	Failed bool
}

// Turn persists the user message, streams the reply fragment by fragment to emit, and persists
// exactly one assistant message. Provider failures become the reply text, not an error.
func (s *Service) Turn(ctx context.Context, cmd TurnCommand, emit func(string) error) (*TurnResult, error) {
	if strings.TrimSpace(cmd.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	if cmd.SessionID == "" {
		cmd.SessionID = uuid.NewString()
	}
	log := s.logger().With(
		zap.String("document_id", cmd.DocumentID),
		zap.String("session_id", cmd.SessionID),
	)

	doc, err := s.Docs.Get(ctx, cmd.DocumentID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	// simpan pesan user dulu, supaya input tidak hilang kalau inference crash
	userMsg, err := s.save(ctx, cmd, domain.RoleUser, cmd.Message)
	if err != nil {
		return nil, err
	}

	// dari sini turn harus selesai walau client putus
	runCtx := context.WithoutCancel(ctx)

	// context dan history lewat jalur yang sama dengan BuildContext / BuildHistory
	prior, err := s.history(runCtx, cmd.SessionID, cmd.DocumentID, cmd.UserID, userMsg.ID)
	if err != nil {
		return nil, err
	}
	msgs := conversation(prompt.ChatSystemPrompt(renderContext(doc)), prior, cmd.Message)

	send := emitter(emit, log)
	reply, streamErr := s.stream(runCtx, msgs, send)
	failed := streamErr != nil
	if failed {
		log.Warn("chat stream failed", zap.Error(streamErr))
		reply = ErrorReplyPrefix + streamErr.Error()
		send(reply)
	}

	assistant, err := s.save(runCtx, cmd, domain.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}
	log.Info("chat turn completed",
		zap.Int("history", len(msgs)-2),
		zap.Int("reply_chars", len(reply)),
		zap.Bool("failed", failed),
	)
	return &TurnResult{
		Reply:     reply,
		SessionID: cmd.SessionID,
		MessageID: assistant.ID,
		Failed:    failed,
	}, nil
}

func (s *Service) stream(ctx context.Context, msgs []ai.Message, send func(string)) (string, error) {
	tokens, err := s.Chatter.ChatStream(ctx, msgs)
	if err != nil {
		return "", err
	}
	var full strings.Builder
	for tok := range tokens {
		if tok.Err != nil {
			// drain supaya goroutine producer bisa selesai
			for range tokens {
			}
			return "", tok.Err
		}
		if tok.Content == "" {
			continue
		}
		full.WriteString(tok.Content)
		send(tok.Content)
	}
	return full.String(), nil
}

// emitter forwards fragments until the first emit error, which is logged once.
func emitter(emit func(string) error, log *zap.Logger) func(string) {
	if emit == nil {
		return func(string) {}
	}
	broken := false
	return func(fragment string) {
		if broken {
			return
		}
		if err := emit(fragment); err != nil {
			broken = true
			log.Info("client stopped receiving, finishing turn server-side", zap.Error(err))
		}
	}
}

func (s *Service) save(ctx context.Context, cmd TurnCommand, role domain.Role, content string) (*domain.Message, error) {
	now := s.Clock.Now()
	m := &domain.Message{
		ID:         uuid.NewString(),
		DocumentID: cmd.DocumentID,
		UserID:     cmd.UserID,
		SessionID:  cmd.SessionID,
		Role:       role,
		Content:    content,
		Metadata:   map[string]any{"timestamp": now.Format(time.RFC3339Nano)},
		CreatedAt:  now,
	}
	if err := s.Messages.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save %s message: %w", role, err)
	}
	return m, nil
}

//
// ==== USE CASES: HISTORY & SESSIONS ====
//

// History returns the session transcript. The document must be visible to the caller.
func (s *Service) History(ctx context.Context, sessionID, documentID, userID string) ([]*domain.Message, error) {
	if _, err := s.Docs.Get(ctx, documentID, userID); err != nil {
		return nil, err
	}
	return s.Messages.ListSession(ctx, sessionID, documentID, userID)
}

// Sessions summarises every session on the document, most recently active first.
func (s *Service) Sessions(ctx context.Context, documentID, userID string) ([]domain.Session, error) {
	if _, err := s.Docs.Get(ctx, documentID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.Messages.ListDocument(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}

	// msgs sudah urut created_at ASC, jadi pesan pertama per session = first message
	byID := make(map[string]*domain.Session)
	order := make([]string, 0)
	for _, m := range msgs {
		if m.SessionID == "" {
			continue
		}
		sess, ok := byID[m.SessionID]
		if !ok {
			sess = &domain.Session{
				SessionID:    m.SessionID,
				DocumentID:   documentID,
				FirstMessage: preview(m.Content),
				CreatedAt:    m.CreatedAt,
			}
			byID[m.SessionID] = sess
			order = append(order, m.SessionID)
		}
		sess.MessageCount++
		sess.UpdatedAt = m.CreatedAt
	}

	out := make([]domain.Session, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLen {
		return content
	}
	return string(r[:previewLen]) + "..."
}

// DeleteSession removes every message of the session and reports how many were deleted.
func (s *Service) DeleteSession(ctx context.Context, sessionID, documentID, userID string) (int64, error) {
	if _, err := s.Docs.Get(ctx, documentID, userID); err != nil {
		return 0, err
	}
	n, err := s.Messages.DeleteSession(ctx, sessionID, documentID, userID)
	if err != nil {
		return 0, err
	}
	s.logger().Info("chat session deleted",
		zap.String("session_id", sessionID), zap.String("document_id", documentID), zap.Int64("messages", n))
	return n, nil
}
