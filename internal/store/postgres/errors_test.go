package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	emailDup := &pgconn.PgError{Code: uniqueViolation, ConstraintName: emailKey}
	pkDup := &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_pkey"}
	fkMissing := &pgconn.PgError{Code: "23503", ConstraintName: "appointments_user_id_fkey"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"email index", emailDup, emailKey, true},
		{"wrapped", fmt.Errorf("insert: %w", emailDup), emailKey, true},
		{"other index", emailDup, bookedSlotKey, false},
		{"primary key", pkDup, emailKey, false},
		{"not unique", fkMissing, bookedSlotKey, false},
		{"plain error", errors.New("boom"), emailKey, false},
		{"nil", nil, emailKey, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err, tt.constraint))
		})
	}
}
