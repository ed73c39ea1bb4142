package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bryanwahyu/signaware/internal/application"
	"github.com/bryanwahyu/signaware/internal/domain/ai"
	domain "github.com/bryanwahyu/signaware/internal/domain/chat"
	"github.com/bryanwahyu/signaware/internal/domain/documents"
	"github.com/bryanwahyu/signaware/internal/domain/users"
	"github.com/bryanwahyu/signaware/internal/infra/ai/prompt"
	"github.com/bryanwahyu/signaware/internal/infra/db/memory"
)

type fakeChatter struct {
	fragments []string
	openErr   error
	streamErr error
	calls     [][]ai.Message
}

func (f *fakeChatter) ChatStream(_ context.Context, msgs []ai.Message) (<-chan ai.StreamToken, error) {
	f.calls = append(f.calls, msgs)
	if f.openErr != nil {
		return nil, f.openErr
	}
	out := make(chan ai.StreamToken, len(f.fragments)+1)
	for _, p := range f.fragments {
		out <- ai.StreamToken{Content: p}
	}
	if f.streamErr != nil {
		out <- ai.StreamToken{Err: f.streamErr}
	}
	close(out)
	return out, nil
}

// tickClock maju satu detik tiap panggilan
type tickClock struct{ t time.Time }

func (c *tickClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

var _ application.Clock = (*tickClock)(nil)

var base = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, analysis *documents.Analysis) (*memory.Store, *documents.Document) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.Users().Create(ctx, &users.User{ID: "user-1", Email: "u@example.com"}); err != nil {
		t.Fatal(err)
	}
	doc := &documents.Document{
		ID: "doc-1", UserID: "user-1", Title: "Lease", Content: "Tenant pays rent.",
		Type: documents.TypeContract, Status: documents.StatusPending, CreatedAt: base, UpdatedAt: base,
	}
	if err := store.Documents().Create(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if analysis != nil {
		if ok, err := store.Documents().BeginProcessing(ctx, doc.ID, "user-1", base, false, time.Time{}); err != nil || !ok {
			t.Fatalf("begin processing = %v, %v", ok, err)
		}
		if err := store.Documents().MarkCompleted(ctx, doc.ID, analysis, base); err != nil {
			t.Fatal(err)
		}
	}
	return store, doc
}

func newService(store *memory.Store, chatter ai.Chatter) *Service {
	return &Service{
		Docs:     store.Documents(),
		Messages: store.Messages(),
		Chatter:  chatter,
		Clock:    &tickClock{t: base},
	}
}

var sampleAnalysis = &documents.Analysis{
	Summary:          "Residential lease",
	HiddenClauses:    []string{"Automatic renewal", "Late fee compounding"},
	RiskAssessment:   "Moderate risk",
	Loopholes:        []string{},
	RedFlags:         []string{"Deposit is non-refundable"},
	RiskScore:        3,
	ConfidenceRating: 87.5,
	KeyConcerns:      nil,
	AnalyzedAt:       time.Date(2025, 3, 30, 12, 0, 0, 0, time.UTC),
}

func TestBuildContext(t *testing.T) {
	store, doc := seed(t, sampleAnalysis)
	svc := newService(store, &fakeChatter{})
	ctx := context.Background()

	want := `
Document Information:
- Title: Lease
- Type: contract
- Status: completed

Document Analysis Summary:
- Summary: Residential lease
- Risk Score: 3/5
- Confidence Rating: 87.5%
- Risk Assessment: Moderate risk

Hidden Clauses:
- Automatic renewal
- Late fee compounding

Loopholes:

Red Flags:
- Deposit is non-refundable

Key Concerns:

Analysis Date: 2025-03-30T12:00:00Z
`
	if got := svc.BuildContext(ctx, doc.ID, "user-1"); got != want {
		t.Fatalf("context mismatch:\n%s\n--- want ---\n%s", got, want)
	}
	if got := svc.BuildContext(ctx, doc.ID, "user-2"); got != ContextNotFound {
		t.Fatalf("unowned document: got %q", got)
	}
	if got := svc.BuildContext(ctx, "missing", "user-1"); got != ContextNotFound {
		t.Fatalf("missing document: got %q", got)
	}
}

func TestBuildContextNotAnalyzed(t *testing.T) {
	store, doc := seed(t, nil)
	svc := newService(store, &fakeChatter{})
	got := svc.BuildContext(context.Background(), doc.ID, "user-1")
	want := "Document 'Lease' has not been analyzed yet. Please analyze the document first to get detailed insights."
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestTurnStreamsAndPersistsTwoMessages(t *testing.T) {
	store, doc := seed(t, sampleAnalysis)
	chatter := &fakeChatter{fragments: []string{"The ", "deposit ", "", "is at risk."}}
	svc := newService(store, chatter)
	ctx := context.Background()

	var emitted []string
	res, err := svc.Turn(ctx, TurnCommand{Message: "Is my deposit safe?", SessionID: "s1", DocumentID: doc.ID, UserID: "user-1"},
		func(s string) error { emitted = append(emitted, s); return nil })
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if strings.Join(emitted, "|") != "The |deposit |is at risk." {
		t.Fatalf("fragments out of order: %q", emitted)
	}
	if res.Reply != "The deposit is at risk." || res.Failed || res.SessionID != "s1" || res.MessageID == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	msgs, err := store.Messages().ListSession(ctx, "s1", doc.ID, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected transcript %+v", msgs)
	}
	if msgs[1].ID != res.MessageID || msgs[1].Content != res.Reply {
		t.Fatalf("assistant message mismatch %+v", msgs[1])
	}
	if _, ok := msgs[0].Metadata["timestamp"]; !ok {
		t.Fatalf("missing timestamp metadata")
	}

	sent := chatter.calls[0]
	if len(sent) != 2 || sent[0].Role != "system" || !strings.Contains(sent[0].Content, "Residential lease") {
		t.Fatalf("unexpected provider request %+v", sent)
	}
	if sent[1].Role != "user" || sent[1].Content != "Is my deposit safe?" {
		t.Fatalf("new user message must be last: %+v", sent[1])
	}
}

func TestTurnIncludesPriorHistoryOnce(t *testing.T) {
	store, doc := seed(t, sampleAnalysis)
	chatter := &fakeChatter{fragments: []string{"ok"}}
	svc := newService(store, chatter)
	ctx := context.Background()

	cmd := TurnCommand{SessionID: "s1", DocumentID: doc.ID, UserID: "user-1"}
	for _, q := range []string{"first", "second", "third"} {
		cmd.Message = q
		if _, err := svc.Turn(ctx, cmd, nil); err != nil {
			t.Fatalf("turn %q: %v", q, err)
		}
	}

	last := chatter.calls[2]
	var roles, contents []string
	for _, m := range last {
		roles = append(roles, m.Role)
		contents = append(contents, m.Content)
	}
	if strings.Join(roles, ",") != "system,user,assistant,user,assistant,user" {
		t.Fatalf("unexpected roles %v", roles)
	}
	if strings.Join(contents[1:], ",") != "first,ok,second,ok,third" {
		t.Fatalf("unexpected contents %v", contents[1:])
	}

	hist, err := svc.BuildHistory(ctx, "s1", doc.ID, "user-1")
	if err != nil || len(hist) != 6 {
		t.Fatalf("history = %d, %v", len(hist), err)
	}
	// request terakhir = prompt dari BuildContext + BuildHistory sebelum balasan ketiga
	if want := prompt.ChatSystemPrompt(svc.BuildContext(ctx, doc.ID, "user-1")); last[0].Content != want {
		t.Fatalf("system prompt differs from BuildContext output")
	}
	for i, m := range hist[:5] {
		if last[i+1] != m {
			t.Fatalf("message %d = %+v, BuildHistory has %+v", i, last[i+1], m)
		}
	}
}

func TestTurnProviderFailureBecomesReply(t *testing.T) {
	tests := []struct {
		name    string
		chatter *fakeChatter
	}{
		{"open fails", &fakeChatter{openErr: errors.New("connection refused")}},
		{"stream breaks", &fakeChatter{fragments: []string{"partial"}, streamErr: errors.New("connection refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, doc := seed(t, sampleAnalysis)
			svc := newService(store, tt.chatter)
			ctx := context.Background()

			var emitted []string
			res, err := svc.Turn(ctx, TurnCommand{Message: "hi", SessionID: "s1", DocumentID: doc.ID, UserID: "user-1"},
				func(s string) error { emitted = append(emitted, s); return nil })
			if err != nil {
				t.Fatalf("provider failure must not be an error: %v", err)
			}
			want := ErrorReplyPrefix + "connection refused"
			if !res.Failed || res.Reply != want {
				t.Fatalf("unexpected result %+v", res)
			}
			if emitted[len(emitted)-1] != want {
				t.Fatalf("error reply not emitted: %q", emitted)
			}

			msgs, _ := store.Messages().ListSession(ctx, "s1", doc.ID, "user-1")
			if len(msgs) != 2 || msgs[1].Content != want {
				t.Fatalf("expected user + error reply, got %+v", msgs)
			}
		})
	}
}

func TestTurnEmptyStreamStillPersistsAssistant(t *testing.T) {
	store, doc := seed(t, sampleAnalysis)
	svc := newService(store, &fakeChatter{})
	ctx := context.Background()

	res, err := svc.Turn(ctx, TurnCommand{Message: "hi", SessionID: "s1", DocumentID: doc.ID, UserID: "user-1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	msgs, _ := store.Messages().ListSession(ctx, "s1", doc.ID, "user-1")
	if len(msgs) != 2 || msgs[1].Content != "" || msgs[1].ID != res.MessageID {
		t.Fatalf("unexpected transcript %+v", msgs)
	}
}

func TestTurnKeepsGoingWhenClientLeaves(t *testing.T) {
	store, doc := seed(t, sampleAnalysis)
	svc := newService(store, &fakeChatter{fragments: []string{"a", "b", "c"}})

	calls := 0
	res, err := svc.Turn(context.Background(), TurnCommand{Message: "hi", SessionID: "s1", DocumentID: doc.ID, UserID: "user-1"},
		func(string) error { calls++; return errors.New("broken pipe") })
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("emit called %d times after failing, want 1", calls)
	}
	if res.Reply != "abc" {
		t.Fatalf("reply = %q", res.Reply)
	}
}

func TestTurnRejects(t *testing.T) {
	store, doc := seed(t, sampleAnalysis)
	chatter := &fakeChatter{}
	svc := newService(store, chatter)
	ctx := context.Background()

	if _, err := svc.Turn(ctx, TurnCommand{Message: "hi", DocumentID: doc.ID, UserID: "user-2"}, nil); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Turn(ctx, TurnCommand{Message: "  ", DocumentID: doc.ID, UserID: "user-1"}, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(chatter.calls) != 0 {
		t.Fatalf("provider called for rejected turns")
	}
	msgs, _ := store.Messages().ListDocument(ctx, doc.ID, "user-1")
	if len(msgs) != 0 {
		t.Fatalf("rejected turns persisted %d messages", len(msgs))
	}
}

func TestTurnGeneratesSessionID(t *testing.T) {
	store, doc := seed(t, sampleAnalysis)
	svc := newService(store, &fakeChatter{fragments: []string{"x"}})
	res, err := svc.Turn(context.Background(), TurnCommand{Message: "hi", DocumentID: doc.ID, UserID: "user-1"}, nil)
	if err != nil || res.SessionID == "" {
		t.Fatalf("result = %+v, %v", res, err)
	}
}

func TestSessionsAndDelete(t *testing.T) {
	store, doc := seed(t, sampleAnalysis)
	svc := newService(store, &fakeChatter{fragments: []string{"ok"}})
	ctx := context.Background()

	long := strings.Repeat("a", 120)
	turns := []TurnCommand{
		{Message: long, SessionID: "old"},
		{Message: "short", SessionID: "new"},
		{Message: "again", SessionID: "old"},
		{Message: "latest", SessionID: "new"},
	}
	for _, c := range turns {
		c.DocumentID, c.UserID = doc.ID, "user-1"
		if _, err := svc.Turn(ctx, c, nil); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := svc.Sessions(ctx, doc.ID, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].SessionID != "new" || sessions[1].SessionID != "old" {
		t.Fatalf("unexpected sessions order %+v", sessions)
	}
	if sessions[1].FirstMessage != strings.Repeat("a", 100)+"..." || sessions[1].MessageCount != 4 {
		t.Fatalf("unexpected old session %+v", sessions[1])
	}
	if sessions[0].FirstMessage != "short" || !sessions[0].UpdatedAt.After(sessions[0].CreatedAt) {
		t.Fatalf("unexpected new session %+v", sessions[0])
	}

	hist, err := svc.History(ctx, "old", doc.ID, "user-1")
	if err != nil || len(hist) != 4 {
		t.Fatalf("history = %d, %v", len(hist), err)
	}

	n, err := svc.DeleteSession(ctx, "old", doc.ID, "user-1")
	if err != nil || n != 4 {
		t.Fatalf("delete = %d, %v", n, err)
	}
	if _, err := svc.Sessions(ctx, doc.ID, "user-2"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	sessions, _ = svc.Sessions(ctx, doc.ID, "user-1")
	if len(sessions) != 1 {
		t.Fatalf("expected one session left, got %d", len(sessions))
	}
}
