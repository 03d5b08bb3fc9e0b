// Package notify delivers booking confirmations. Delivery is best effort:
// the Dispatcher runs senders in the background and only logs failures.
package notify

import (
	"context"
	"fmt"
	"time"

	"hospital-booking-api/internal/model"
)

const EventAppointmentBooked = "appointment.booked"

// BookedEvent is the machine-readable form of a confirmation, published as
// JSON by event-bus senders.
type BookedEvent struct {
	EventType      string    `json:"event_type"`
	AppointmentID  string    `json:"appointment_id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	Email          string    `json:"email"`
	DoctorID       string    `json:"doctor_id"`
	DoctorName     string    `json:"doctor_name"`
	Specialization string    `json:"specialization"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	BookedAt       time.Time `json:"booked_at"`
}

type Message struct {
	To      string
	Subject string
	Body    string
	Event   BookedEvent
}

type Sender interface {
	Send(ctx context.Context, m Message) error
	Close() error
}

// Compose builds the confirmation letter for a booked appointment.
func Compose(hospital string, u model.User, d model.Doctor, a model.Appointment) Message {
	body := fmt.Sprintf(`Dear %s,

Your appointment has been confirmed!

Appointment Details:
- Doctor: Dr. %s
- Specialization: %s
- Date: %s
- Time: %s
- Appointment ID: %s

Thank you for choosing %s.`,
		u.Name, d.Name, d.Specialization, a.Date, a.Time, a.ID, hospital)

	return Message{
		To:      u.Email,
		Subject: "Appointment Confirmation - " + hospital,
		Body:    body,
		Event: BookedEvent{
			EventType:      EventAppointmentBooked,
			AppointmentID:  a.ID,
			UserID:         u.ID,
			UserName:       u.Name,
			Email:          u.Email,
			DoctorID:       d.ID,
			DoctorName:     d.Name,
			Specialization: d.Specialization,
			Date:           a.Date,
			Time:           a.Time,
			BookedAt:       a.CreatedAt,
		},
	}
}
