// Package memory is an in-process store. It backs the "memory" database driver
// and doubles as the repository used by service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/signaware/internal/domain/chat"
	"github.com/bryanwahyu/signaware/internal/domain/documents"
	"github.com/bryanwahyu/signaware/internal/domain/users"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]*users.User
	docs     map[string]*documents.Document
	messages []*storedMessage
	seq      int64
}

type storedMessage struct {
	seq int64
	msg chat.Message
}

func New() *Store {
	return &Store{
		users: make(map[string]*users.User),
		docs:  make(map[string]*documents.Document),
	}
}

func (s *Store) Users() *UserRepository         { return &UserRepository{s: s} }
func (s *Store) Documents() *DocumentRepository { return &DocumentRepository{s: s} }
func (s *Store) Messages() *MessageRepository   { return &MessageRepository{s: s} }

// Check memenuhi HealthChecker
func (s *Store) Check(context.Context) error { return nil }

//
// ==== USERS ====
//

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, u *users.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return users.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r *UserRepository) Get(_ context.Context, id string) (*users.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*users.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *UserRepository) Update(_ context.Context, u *users.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return users.ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return users.ErrEmailTaken
		}
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

// Delete cascades ke dokumen dan pesan milik user
func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return users.ErrNotFound
	}
	delete(r.s.users, id)
	for docID, d := range r.s.docs {
		if d.UserID == id {
			delete(r.s.docs, docID)
		}
	}
	r.s.dropMessages(func(m *chat.Message) bool { return m.UserID == id })
	return nil
}

//
// ==== DOCUMENTS ====
//

type DocumentRepository struct{ s *Store }

func cloneDocument(d *documents.Document) *documents.Document {
	cp := *d
	if d.Analysis != nil {
		a := *d.Analysis
		a.HiddenClauses = append([]string(nil), d.Analysis.HiddenClauses...)
		a.Loopholes = append([]string(nil), d.Analysis.Loopholes...)
		a.RedFlags = append([]string(nil), d.Analysis.RedFlags...)
		a.KeyConcerns = append([]string(nil), d.Analysis.KeyConcerns...)
		cp.Analysis = &a
	}
	if d.Masked != nil {
		m := *d.Masked
		cp.Masked = &m
	}
	if d.ProcessingStartedAt != nil {
		t := *d.ProcessingStartedAt
		cp.ProcessingStartedAt = &t
	}
	if d.ProcessingCompletedAt != nil {
		t := *d.ProcessingCompletedAt
		cp.ProcessingCompletedAt = &t
	}
	return &cp
}

func (r *DocumentRepository) Create(_ context.Context, d *documents.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[d.UserID]; !ok {
		return users.ErrNotFound
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	r.s.docs[d.ID] = cloneDocument(d)
	return nil
}

func (r *DocumentRepository) Get(_ context.Context, id, userID string) (*documents.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok || d.UserID != userID {
		return nil, documents.ErrNotFound
	}
	return cloneDocument(d), nil
}

func (r *DocumentRepository) List(_ context.Context, f documents.ListFilter) ([]*documents.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*documents.Document
	for _, d := range r.s.docs {
		if d.UserID != f.UserID {
			continue
		}
		if f.Type != "" && d.Type != f.Type {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, cloneDocument(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Skip >= len(out) {
		return []*documents.Document{}, nil
	}
	out = out[f.Skip:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *DocumentRepository) Delete(_ context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok || d.UserID != userID {
		return documents.ErrNotFound
	}
	delete(r.s.docs, id)
	r.s.dropMessages(func(m *chat.Message) bool { return m.DocumentID == id })
	return nil
}

func (r *DocumentRepository) BeginProcessing(_ context.Context, id, userID string, at time.Time, force bool, staleBefore time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok || d.UserID != userID {
		return false, nil
	}
	if d.Status == documents.StatusProcessing && !(force && stale(d, staleBefore)) {
		return false, nil
	}
	if !force && d.Analyzed() {
		return false, nil
	}
	t := at
	d.Status = documents.StatusProcessing
	d.ProcessingStartedAt = &t
	d.ErrorMessage = ""
	d.UpdatedAt = at
	return true, nil
}

// stale: run yang mulai sebelum staleBefore dianggap mati
func stale(d *documents.Document, staleBefore time.Time) bool {
	return !staleBefore.IsZero() && (d.ProcessingStartedAt == nil || d.ProcessingStartedAt.Before(staleBefore))
}

func (r *DocumentRepository) MarkCompleted(_ context.Context, id string, a *documents.Analysis, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	if d.Status != documents.StatusProcessing {
		return documents.ErrNotProcessing
	}
	cp := *a
	t := at
	d.Status = documents.StatusCompleted
	d.Analysis = &cp
	d.ErrorMessage = ""
	d.ProcessingCompletedAt = &t
	d.UpdatedAt = at
	return nil
}

func (r *DocumentRepository) MarkFailed(_ context.Context, id string, reason string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	if d.Status != documents.StatusProcessing {
		return documents.ErrNotProcessing
	}
	t := at
	d.Status = documents.StatusFailed
	d.Analysis = nil
	d.ErrorMessage = reason
	d.ProcessingCompletedAt = &t
	d.UpdatedAt = at
	return nil
}

func (r *DocumentRepository) SaveMasked(_ context.Context, id, userID string, m *documents.MaskedContent, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok || d.UserID != userID {
		return documents.ErrNotFound
	}
	cp := *m
	d.Masked = &cp
	d.UpdatedAt = at
	return nil
}

//
// ==== CHAT MESSAGES ====
//

type MessageRepository struct{ s *Store }

func (r *MessageRepository) Save(_ context.Context, m *chat.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[m.DocumentID]
	if !ok || d.UserID != m.UserID {
		return documents.ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	r.s.seq++
	r.s.messages = append(r.s.messages, &storedMessage{seq: r.s.seq, msg: *m})
	return nil
}

func (r *MessageRepository) ListSession(_ context.Context, sessionID, documentID, userID string) ([]*chat.Message, error) {
	return r.list(func(m *chat.Message) bool {
		return m.SessionID == sessionID && m.DocumentID == documentID && m.UserID == userID
	}), nil
}

func (r *MessageRepository) ListDocument(_ context.Context, documentID, userID string) ([]*chat.Message, error) {
	return r.list(func(m *chat.Message) bool {
		return m.DocumentID == documentID && m.UserID == userID
	}), nil
}

func (r *MessageRepository) DeleteSession(_ context.Context, sessionID, documentID, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := r.s.dropMessages(func(m *chat.Message) bool {
		return m.SessionID == sessionID && m.DocumentID == documentID && m.UserID == userID
	})
	return int64(n), nil
}

func (r *MessageRepository) list(match func(*chat.Message) bool) []*chat.Message {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var picked []*storedMessage
	for _, sm := range r.s.messages {
		if match(&sm.msg) {
			picked = append(picked, sm)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		a, b := picked[i], picked[j]
		if a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.seq < b.seq
		}
		return a.msg.CreatedAt.Before(b.msg.CreatedAt)
	})
	out := make([]*chat.Message, 0, len(picked))
	for _, sm := range picked {
		cp := sm.msg
		out = append(out, &cp)
	}
	return out
}

// dropMessages harus dipanggil dengan mu terkunci
func (s *Store) dropMessages(match func(*chat.Message) bool) int {
	kept := s.messages[:0]
	dropped := 0
	for _, sm := range s.messages {
		if match(&sm.msg) {
			dropped++
			continue
		}
		kept = append(kept, sm)
	}
	s.messages = kept
	return dropped
}
