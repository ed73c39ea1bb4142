package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appchat "github.com/bryanwahyu/signaware/internal/application/chat"
	domainchat "github.com/bryanwahyu/signaware/internal/domain/chat"
	"github.com/bryanwahyu/signaware/internal/logger"
	"github.com/bryanwahyu/signaware/internal/middleware"
)

type chatRequest struct {
	Message    string `json:"message"`
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
}

func (r *Router) decodeChat(req *http.Request) (appchat.TurnCommand, error) {
	var body chatRequest
	if err := decodeJSON(req, &body); err != nil {
		return appchat.TurnCommand{}, err
	}
	if err := middleware.ValidateUUID("document_id", body.DocumentID); err != nil {
		return appchat.TurnCommand{}, badRequest("%v", err)
	}
	if err := middleware.ValidateUUID("user_id", body.UserID); err != nil {
		return appchat.TurnCommand{}, badRequest("%v", err)
	}
	if err := middleware.ValidateSessionID(body.SessionID); err != nil {
		return appchat.TurnCommand{}, badRequest("%v", err)
	}
	return appchat.TurnCommand{
		Message:    middleware.SanitizeString(body.Message),
		SessionID:  body.SessionID,
		DocumentID: body.DocumentID,
		UserID:     body.UserID,
	}, nil
}

// sseWriter writes server-sent events. Headers go out with the first event, so errors
// found before streaming starts can still be answered as plain JSON.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *sseWriter) event(name string, payload any) error {
	s.start()
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (r *Router) handleChatStream(w http.ResponseWriter, req *http.Request) error {
	cmd, err := r.decodeChat(req)
	if err != nil {
		return err
	}
	// session id dibuat di sini supaya event pertama sudah membawa id yang sama dengan yang disimpan
	if cmd.SessionID == "" {
		cmd.SessionID = uuid.NewString()
	}

	sse := newSSEWriter(w)
	res, err := r.chat.Turn(req.Context(), cmd, func(fragment string) error {
		return sse.event("message", map[string]string{
			"content":     fragment,
			"session_id":  cmd.SessionID,
			"document_id": cmd.DocumentID,
		})
	})
	if err != nil {
		if !sse.started {
			return err
		}
		logger.FromContext(req.Context(), r.log).Error("chat stream aborted", zap.Error(err))
		_ = sse.event("error", map[string]string{"error": err.Error()})
		return nil
	}
	middleware.RecordChatTurn(res.Failed)

	// client yang sudah putus cukup diabaikan, turn sudah tersimpan
	_ = sse.event("end", map[string]string{
		"session_id":  res.SessionID,
		"document_id": cmd.DocumentID,
		"message_id":  res.MessageID,
	})
	return nil
}

func (r *Router) handleChatMessage(w http.ResponseWriter, req *http.Request) error {
	cmd, err := r.decodeChat(req)
	if err != nil {
		return err
	}
	res, err := r.chat.Turn(req.Context(), cmd, nil)
	if err != nil {
		return err
	}
	middleware.RecordChatTurn(res.Failed)
	return writeJSON(w, http.StatusOK, map[string]string{
		"response":   res.Reply,
		"session_id": res.SessionID,
		"message_id": res.MessageID,
	})
}

func (r *Router) handleChatHistory(w http.ResponseWriter, req *http.Request) error {
	sessionID := chi.URLParam(req, "session_id")
	if sessionID == "" {
		return badRequest("session_id is required")
	}
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		return badRequest("%v", err)
	}
	documentID, err := queryUUID(req, "document_id")
	if err != nil {
		return err
	}
	userID, err := queryUUID(req, "user_id")
	if err != nil {
		return err
	}
	msgs, err := r.chat.History(req.Context(), sessionID, documentID, userID)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []*domainchat.Message{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"session_id":     sessionID,
		"document_id":    documentID,
		"messages":       msgs,
		"total_messages": len(msgs),
	})
}

func (r *Router) handleChatSessions(w http.ResponseWriter, req *http.Request) error {
	documentID, err := pathUUID(req, "document_id")
	if err != nil {
		return err
	}
	userID, err := queryUUID(req, "user_id")
	if err != nil {
		return err
	}
	sessions, err := r.chat.Sessions(req.Context(), documentID, userID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"document_id":    documentID,
		"sessions":       sessions,
		"total_sessions": len(sessions),
	})
}

func (r *Router) handleDeleteChatSession(w http.ResponseWriter, req *http.Request) error {
	sessionID := chi.URLParam(req, "session_id")
	if err := middleware.ValidateSessionID(sessionID); err != nil || sessionID == "" {
		return badRequest("invalid session_id")
	}
	documentID, err := queryUUID(req, "document_id")
	if err != nil {
		return err
	}
	userID, err := queryUUID(req, "user_id")
	if err != nil {
		return err
	}
	n, err := r.chat.DeleteSession(req.Context(), sessionID, documentID, userID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Chat session deleted successfully",
		"session_id":       sessionID,
		"document_id":      documentID,
		"deleted_messages": n,
	})
}
