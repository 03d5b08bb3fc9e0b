// Package store defines the persistence contracts shared by the postgres,
// sqlite and dynamodb backends.
package store

import (
	"context"
	"errors"

	"hospital-booking-api/internal/model"
)

var (
	ErrNotFound       = errors.New("store: not found")
	ErrDuplicateEmail = errors.New("store: email already registered")
	// ErrSlotTaken means a booked appointment already holds the
	// (doctor, date, time) key.
	ErrSlotTaken = errors.New("store: slot already booked")
)

type UserStore interface {
	// CreateUser returns ErrDuplicateEmail when the normalized email exists.
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type DoctorStore interface {
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	DoctorByID(ctx context.Context, id string) (*model.Doctor, error)
	UpsertDoctor(ctx context.Context, d *model.Doctor) error
}

type AppointmentStore interface {
	SlotBooked(ctx context.Context, doctorID, date, time string) (bool, error)
	// CreateAppointment is the atomic check-and-write for a slot; a
	// concurrent holder of the same key yields ErrSlotTaken.
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	AppointmentByID(ctx context.Context, id string) (*model.Appointment, error)
	AppointmentsByUser(ctx context.Context, userID string) ([]model.Appointment, error)
}

// Backend is a complete storage implementation.
type Backend interface {
	UserStore
	DoctorStore
	AppointmentStore
	Ping(ctx context.Context) error
	Close() error
	Name() string
}
