// Package service holds the account, directory and booking use cases. It
// translates storage errors into the domain errors below.
package service

import "errors"

var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrSlotConflict        = errors.New("time slot already booked")
	ErrAppointmentNotFound = errors.New("appointment not found")
)
