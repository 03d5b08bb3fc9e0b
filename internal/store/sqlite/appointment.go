package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

const appointmentColumns = `appointment_id, user_id, doctor_id, appointment_date, appointment_time, status, created_at`

func (s *Store) SlotBooked(ctx context.Context, doctorID, date, time string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = ? AND appointment_date = ? AND appointment_time = ? AND status = 'booked')`,
		doctorID, date, time,
	)
	return exists, err
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (`+appointmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.DoctorID, a.Date, a.Time, string(a.Status), a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrSlotTaken
	}
	return err
}

func (s *Store) AppointmentByID(ctx context.Context, id string) (*model.Appointment, error) {
	var a model.Appointment
	err := s.db.GetContext(ctx, &a,
		`SELECT `+appointmentColumns+` FROM appointments WHERE appointment_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) AppointmentsByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	out := []model.Appointment{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, err
	}
	return out, nil
}
