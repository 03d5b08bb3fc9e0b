package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

// slots are kept as a JSON array column
type doctorRow struct {
	ID             string `db:"doctor_id"`
	Name           string `db:"name"`
	Specialization string `db:"specialization"`
	Slots          string `db:"available_slots"`
}

func (r doctorRow) toModel() (model.Doctor, error) {
	d := model.Doctor{ID: r.ID, Name: r.Name, Specialization: r.Specialization, AvailableSlots: []string{}}
	if r.Slots != "" {
		if err := json.Unmarshal([]byte(r.Slots), &d.AvailableSlots); err != nil {
			return d, fmt.Errorf("doctor %s slots: %w", r.ID, err)
		}
	}
	return d, nil
}

func (s *Store) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	var rows []doctorRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT doctor_id, name, specialization, available_slots FROM doctors ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	out := make([]model.Doctor, 0, len(rows))
	for _, r := range rows {
		d, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) DoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	var r doctorRow
	err := s.db.GetContext(ctx, &r,
		`SELECT doctor_id, name, specialization, available_slots FROM doctors WHERE doctor_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d, err := r.toModel()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) UpsertDoctor(ctx context.Context, d *model.Doctor) error {
	slots := d.AvailableSlots
	if slots == nil {
		slots = []string{}
	}
	b, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO doctors (doctor_id, name, specialization, available_slots)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (doctor_id) DO UPDATE
		 SET name = excluded.name,
		     specialization = excluded.specialization,
		     available_slots = excluded.available_slots`,
		d.ID, d.Name, d.Specialization, string(b),
	)
	return err
}
