package service

import (
	"context"
	"errors"
	"fmt"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

type Directory struct {
	doctors store.DoctorStore
}

func NewDirectory(doctors store.DoctorStore) *Directory {
	return &Directory{doctors: doctors}
}

func (s *Directory) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	list, err := s.doctors.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	if list == nil {
		list = []model.Doctor{}
	}
	return list, nil
}

func (s *Directory) Doctor(ctx context.Context, id string) (*model.Doctor, error) {
	d, err := s.doctors.DoctorByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}
