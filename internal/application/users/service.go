package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/signaware/internal/application"
	domain "github.com/bryanwahyu/signaware/internal/domain/users"
)

// Service implements use-cases untuk User
type Service struct {
	Repo  domain.Repository
	Clock application.Clock
	Log   *zap.Logger
	// HashCost defaults to bcrypt.DefaultCost; tests lower it.
	HashCost int
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

type CreateCommand struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	GoogleID  string
	Avatar    string
}

// Create registers a user. Accounts without a password (Google sign-in) are marked verified.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*domain.User, error) {
	email, err := normalizeEmail(cmd.Email)
	if err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(cmd.Role)
	if err != nil {
		return nil, err
	}
	hash, err := s.hash(cmd.Password)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	u := &domain.User{
		ID:              uuid.NewString(),
		Email:           email,
		PasswordHash:    hash,
		FirstName:       strings.TrimSpace(cmd.FirstName),
		LastName:        strings.TrimSpace(cmd.LastName),
		Role:            role,
		GoogleID:        cmd.GoogleID,
		Avatar:          cmd.Avatar,
		IsEmailVerified: cmd.Password == "",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger().Info("user created", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.Repo.Get(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.Repo.GetByEmail(ctx, normalized)
}

// UpdateCommand: nil berarti field tidak diubah
type UpdateCommand struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Role      *string
	GoogleID  *string
	Avatar    *string
}

func (s *Service) Update(ctx context.Context, id string, cmd UpdateCommand) (*domain.User, error) {
	u, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cmd.Email != nil {
		email, err := normalizeEmail(*cmd.Email)
		if err != nil {
			return nil, err
		}
		u.Email = email
	}
	if cmd.Password != nil {
		hash, err := s.hash(*cmd.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if cmd.FirstName != nil {
		u.FirstName = strings.TrimSpace(*cmd.FirstName)
	}
	if cmd.LastName != nil {
		u.LastName = strings.TrimSpace(*cmd.LastName)
	}
	if cmd.Role != nil {
		role, err := domain.ParseRole(*cmd.Role)
		if err != nil {
			return nil, err
		}
		u.Role = role
	}
	if cmd.GoogleID != nil {
		u.GoogleID = *cmd.GoogleID
	}
	if cmd.Avatar != nil {
		u.Avatar = *cmd.Avatar
	}
	u.UpdatedAt = s.Clock.Now()
	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes the user; documents and chat messages go with it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger().Info("user deleted", zap.String("user_id", id))
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(u *domain.User, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (s *Service) hash(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	cost := s.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password is longer than 72 bytes", domain.ErrInvalidInput)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", fmt.Errorf("%w: invalid email %q", domain.ErrInvalidInput, raw)
	}
	return strings.ToLower(addr.Address), nil
}
