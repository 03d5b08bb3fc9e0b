package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

func (s *Store) SlotBooked(ctx context.Context, doctorID, date, time string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND appointment_date = $2
			  AND appointment_time = $3
			  AND status = 'booked')`,
		doctorID, date, time,
	).Scan(&exists)
	return exists, err
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO appointments
		   (appointment_id, user_id, doctor_id, appointment_date, appointment_time, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.UserID, a.DoctorID, a.Date, a.Time, string(a.Status), a.CreatedAt,
	)
	if err != nil {
		// partial unique index caught a concurrent booking
		if isUniqueViolation(err, bookedSlotKey) {
			return store.ErrSlotTaken
		}
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) AppointmentByID(ctx context.Context, id string) (*model.Appointment, error) {
	a := &model.Appointment{}
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT appointment_id, user_id, doctor_id, appointment_date, appointment_time, status, created_at
		 FROM appointments WHERE appointment_id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.DoctorID, &a.Date, &a.Time, &status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = model.AppointmentStatus(status)
	return a, nil
}

func (s *Store) AppointmentsByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT appointment_id, user_id, doctor_id, appointment_date, appointment_time, status, created_at
		 FROM appointments
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		var a model.Appointment
		var status string
		if err := rows.Scan(&a.ID, &a.UserID, &a.DoctorID, &a.Date, &a.Time, &status, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Status = model.AppointmentStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}
