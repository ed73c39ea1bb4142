package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/signaware/internal/application"
	domain "github.com/bryanwahyu/signaware/internal/domain/users"
	"github.com/bryanwahyu/signaware/internal/infra/db/memory"
)

func newTestService() *Service {
	return &Service{
		Repo:     memory.New().Users(),
		Clock:    application.FixedClock{T: time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)},
		HashCost: bcrypt.MinCost,
	}
}

func TestCreateHashesPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Create(ctx, CreateCommand{Email: " Ana@Example.com ", Password: "s3cret", Role: "LEGAL_ADVISOR"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "ana@example.com" || u.Role != domain.RoleLegalAdvisor || !u.IsActive {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.PasswordHash == "s3cret" || !CheckPassword(u, "s3cret") || CheckPassword(u, "wrong") {
		t.Fatalf("password not hashed correctly")
	}
	if u.IsEmailVerified {
		t.Fatalf("password accounts start unverified")
	}

	g, err := svc.Create(ctx, CreateCommand{Email: "g@example.com", GoogleID: "g-123"})
	if err != nil {
		t.Fatal(err)
	}
	if !g.IsEmailVerified || g.Role != domain.RoleCustomer || CheckPassword(g, "") {
		t.Fatalf("google user = %+v", g)
	}

	if _, err := svc.Create(ctx, CreateCommand{Email: "ANA@example.com"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := newTestService()
	for _, cmd := range []CreateCommand{
		{Email: "not-an-email"},
		{Email: "Ana <ana@example.com>"},
		{Email: "a@example.com", Role: "superuser"},
	} {
		if _, err := svc.Create(context.Background(), cmd); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", cmd, err)
		}
	}
}

func TestUpdatePartial(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u, err := svc.Create(ctx, CreateCommand{Email: "a@example.com", FirstName: "Ana", LastName: "Lee"})
	if err != nil {
		t.Fatal(err)
	}

	first := "Anna"
	role := "admin"
	got, err := svc.Update(ctx, u.ID, UpdateCommand{FirstName: &first, Role: &role})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.FirstName != "Anna" || got.LastName != "Lee" || got.Role != domain.RoleAdmin {
		t.Fatalf("unexpected user %+v", got)
	}

	byEmail, err := svc.GetByEmail(ctx, "A@EXAMPLE.COM")
	if err != nil || byEmail.ID != u.ID {
		t.Fatalf("get by email = %+v, %v", byEmail, err)
	}

	if _, err := svc.Update(ctx, "missing", UpdateCommand{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u, _ := svc.Create(ctx, CreateCommand{Email: "a@example.com"})

	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, u.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, u.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
