package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsSender publishes BookedEvent JSON on a subject.
type NatsSender struct {
	conn    *nats.Conn
	subject string
}

func NewNatsSender(natsURL, subject string) (*NatsSender, error) {
	nc, err := nats.Connect(natsURL, nats.Name("hospital-booking-api"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NatsSender{conn: nc, subject: subject}, nil
}

func (s *NatsSender) Send(ctx context.Context, m Message) error {
	eventJSON, err := json.Marshal(m.Event)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, eventJSON); err != nil {
		return fmt.Errorf("nats publish %s: %w", s.subject, err)
	}
	return s.conn.FlushWithContext(ctx)
}

// Close drains pending publishes before closing the connection.
func (s *NatsSender) Close() error {
	return s.conn.Drain()
}
