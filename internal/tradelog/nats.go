package tradelog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the JetStream subject prefix trades are published under.
const DefaultSubject = "trades"

// NATSPublisher publishes every trade as a JSON event on subject.<PAIR>.
type NATSPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	const op = "tradelog.NewNATSPublisher"
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url, nats.Name("confluence-bot"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &NATSPublisher{nc: nc, js: js, subject: subject}, nil
}

func (p *NATSPublisher) Record(ctx context.Context, t Trade) error {
	const op = "tradelog.NATSPublisher.Record"
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	opts := []nats.PubOpt{nats.Context(ctx)}
	if t.OrderID != "" {
		opts = append(opts, nats.MsgId(t.OrderID))
	}
	if _, err := p.js.Publish(subjectFor(p.subject, t), data, opts...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

func subjectFor(prefix string, t Trade) string {
	return prefix + "." + t.Pair
}
