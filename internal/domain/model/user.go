package model

import (
	"time"

	"quiz-subscription-billing/internal/domain"

	"github.com/google/uuid"
)

// User carries the effective "current subscription" projection. PlanID and
// PlanExpiresAt always equal the most recently activated Subscription's
// values; they are derived, never the source of truth.
type User struct {
	ID            string
	Email         string
	PlanID        *string
	PlanExpiresAt *time.Time
	RegisteredAt  time.Time
	UpdatedAt     time.Time
}

func NewUser(id, email string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{ID: id, Email: email, RegisteredAt: now, UpdatedAt: now}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
