package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

func (s *Store) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doctor_id, name, specialization, available_slots
		 FROM doctors ORDER BY position`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Doctor{}
	for rows.Next() {
		var d model.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization, &d.AvailableSlots); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	d := &model.Doctor{}
	err := s.pool.QueryRow(ctx,
		`SELECT doctor_id, name, specialization, available_slots
		 FROM doctors WHERE doctor_id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Specialization, &d.AvailableSlots)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpsertDoctor keeps the original listing position on update.
func (s *Store) UpsertDoctor(ctx context.Context, d *model.Doctor) error {
	slots := d.AvailableSlots
	if slots == nil {
		slots = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO doctors (doctor_id, name, specialization, available_slots)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (doctor_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     specialization = EXCLUDED.specialization,
		     available_slots = EXCLUDED.available_slots`,
		d.ID, d.Name, d.Specialization, slots,
	)
	return err
}
