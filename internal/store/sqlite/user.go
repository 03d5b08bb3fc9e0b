package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

const userColumns = `user_id, name, email, phone, password_hash, created_at`

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicateEmail
	}
	return err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return userOrNotFound(&u, err)
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, id)
	return userOrNotFound(&u, err)
}

func userOrNotFound(u *model.User, err error) (*model.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
