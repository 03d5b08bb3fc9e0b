package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hospital-booking-api/internal/auth"
	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

type Registration struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

type Accounts struct {
	users store.UserStore
	log   *logrus.Logger
}

func NewAccounts(users store.UserStore, log *logrus.Logger) *Accounts {
	return &Accounts{users: users, log: log}
}

// Register creates a user and returns its id. The email is normalized
// before the uniqueness check.
func (s *Accounts) Register(ctx context.Context, r Registration) (string, error) {
	email := auth.NormalizeEmail(r.Email)

	// fast path; the unique constraint decides under contention
	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return "", ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("lookup email: %w", err)
	}

	hash, err := auth.HashPassword(r.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Name:         r.Name,
		Email:        email,
		Phone:        r.Phone,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	s.log.WithField("user_id", u.ID).Info("user registered")
	return u.ID, nil
}

// Authenticate returns ErrInvalidCredentials for both an unknown email and
// a wrong password.
func (s *Accounts) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.users.UserByEmail(ctx, auth.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		auth.BurnCompare(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
