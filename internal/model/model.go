package model

import "time"

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusCancelled AppointmentStatus = "cancelled"
)

type User struct {
	ID           string    `json:"user_id" db:"user_id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Doctor struct {
	ID             string   `json:"doctor_id"`
	Name           string   `json:"name"`
	Specialization string   `json:"specialization"`
	AvailableSlots []string `json:"available_slots"`
}

type Appointment struct {
	ID        string            `json:"appointment_id" db:"appointment_id"`
	UserID    string            `json:"user_id" db:"user_id"`
	DoctorID  string            `json:"doctor_id" db:"doctor_id"`
	Date      string            `json:"date" db:"appointment_date"`
	Time      string            `json:"time" db:"appointment_time"`
	Status    AppointmentStatus `json:"status" db:"status"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
