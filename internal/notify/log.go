package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender writes the confirmation to the log instead of delivering it.
type LogSender struct {
	log *logrus.Logger
}

func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, m Message) error {
	s.log.WithFields(logrus.Fields{
		"to":             m.To,
		"subject":        m.Subject,
		"appointment_id": m.Event.AppointmentID,
	}).Info("notification (mock): " + m.Body)
	return nil
}

func (s *LogSender) Close() error { return nil }
