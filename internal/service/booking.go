package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hospital-booking-api/internal/metrics"
	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

// Notifier is told about each committed booking. It must not block.
type Notifier interface {
	NotifyBooked(u model.User, d model.Doctor, a model.Appointment)
}

type BookingRequest struct {
	UserID   string
	DoctorID string
	Date     string
	Time     string
}

// Confirmation carries the new appointment with the records it refers to.
type Confirmation struct {
	Appointment model.Appointment
	User        model.User
	Doctor      model.Doctor
}

type Booking struct {
	users    store.UserStore
	doctors  store.DoctorStore
	appts    store.AppointmentStore
	notifier Notifier
	log      *logrus.Logger
}

func NewBooking(users store.UserStore, doctors store.DoctorStore, appts store.AppointmentStore, notifier Notifier, log *logrus.Logger) *Booking {
	return &Booking{users: users, doctors: doctors, appts: appts, notifier: notifier, log: log}
}

func (s *Booking) Book(ctx context.Context, req BookingRequest) (*Confirmation, error) {
	u, err := s.users.UserByID(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	d, err := s.doctors.DoctorByID(ctx, req.DoctorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}

	taken, err := s.appts.SlotBooked(ctx, req.DoctorID, req.Date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		metrics.BookingConflicts.Inc()
		return nil, ErrSlotConflict
	}

	a := model.Appointment{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		DoctorID:  d.ID,
		Date:      req.Date,
		Time:      req.Time,
		Status:    model.StatusBooked,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.appts.CreateAppointment(ctx, &a); err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			metrics.BookingConflicts.Inc()
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	metrics.AppointmentsBooked.Inc()

	s.log.WithFields(logrus.Fields{
		"appointment_id": a.ID,
		"doctor_id":      a.DoctorID,
		"date":           a.Date,
		"time":           a.Time,
	}).Info("appointment booked")

	if s.notifier != nil {
		s.notifier.NotifyBooked(*u, *d, a)
	}

	return &Confirmation{Appointment: a, User: *u, Doctor: *d}, nil
}

// ForUser lists the user's appointments, newest first.
func (s *Booking) ForUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	list, err := s.appts.AppointmentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if list == nil {
		list = []model.Appointment{}
	}
	return list, nil
}

// Get returns one of the user's appointments. Appointments owned by someone
// else are reported as not found.
func (s *Booking) Get(ctx context.Context, userID, appointmentID string) (*model.Appointment, error) {
	a, err := s.appts.AppointmentByID(ctx, appointmentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if a.UserID != userID {
		return nil, ErrAppointmentNotFound
	}
	return a, nil
}
