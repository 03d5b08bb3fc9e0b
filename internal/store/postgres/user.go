package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id, name, email, phone, password_hash, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.CreatedAt,
	)
	if isUniqueViolation(err, emailKey) {
		return store.ErrDuplicateEmail
	}
	return err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT user_id, name, email, phone, password_hash, created_at
		 FROM users WHERE lower(email) = lower($1)`, email,
	))
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT user_id, name, email, phone, password_hash, created_at
		 FROM users WHERE user_id = $1`, id,
	))
}

func (s *Store) scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
