package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"hospital-booking-api/internal/metrics"
	"hospital-booking-api/internal/model"
)

// Dispatcher sends confirmations off the request path. A circuit breaker
// stops hammering a transport that keeps failing.
type Dispatcher struct {
	sender   Sender
	hospital string
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker
	log      *logrus.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(sender Sender, hospital string, timeout time.Duration, log *logrus.Logger) *Dispatcher {
	st := gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("circuit breaker state changed")
		},
	}
	return &Dispatcher{
		sender:   sender,
		hospital: hospital,
		timeout:  timeout,
		cb:       gobreaker.NewCircuitBreaker(st),
		log:      log,
	}
}

// NotifyBooked returns immediately; the message is sent on its own goroutine.
func (d *Dispatcher) NotifyBooked(u model.User, doc model.Doctor, a model.Appointment) {
	msg := Compose(d.hospital, u, doc, a)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.Notifications.WithLabelValues("failed").Inc()
				d.log.WithField("appointment_id", a.ID).Errorf("notification panic: %v", r)
			}
		}()
		d.send(msg)
	}()
}

func (d *Dispatcher) send(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	_, err := d.cb.Execute(func() (interface{}, error) {
		return nil, d.sender.Send(ctx, msg)
	})

	entry := d.log.WithFields(logrus.Fields{
		"appointment_id": msg.Event.AppointmentID,
		"to":             msg.To,
	})
	switch {
	case err == nil:
		metrics.Notifications.WithLabelValues("sent").Inc()
		entry.Debug("notification sent")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.Notifications.WithLabelValues("rejected").Inc()
		entry.WithError(err).Warn("notification skipped")
	default:
		metrics.Notifications.WithLabelValues("failed").Inc()
		entry.WithError(err).Error("notification failed")
	}
}

// Close waits for in-flight notifications, giving up when ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
