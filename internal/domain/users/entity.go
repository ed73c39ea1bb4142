package users

import (
	"fmt"
	"strings"
	"time"
)

// Role enum
type Role string

const (
	RoleLegalAdvisor Role = "legal_advisor"
	RoleCustomer     Role = "customer"
	RoleAdmin        Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleCustomer, nil
	case RoleLegalAdvisor, RoleCustomer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// Aggregate Root: User
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	Role            Role       `json:"role"`
	GoogleID        string     `json:"google_id,omitempty"`
	Avatar          string     `json:"avatar,omitempty"`
	IsEmailVerified bool       `json:"is_email_verified"`
	IsActive        bool       `json:"is_active"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
