package eventsink

import (
	"context"
	"fmt"
)

// Publisher is satisfied by messaging.Service.
type Publisher interface {
	Publish(subject string, data interface{}) error
	Flush() error
}

// NATS publishes every record as JSON. The connection stays owned by the caller.
type NATS struct {
	pub     Publisher
	subject string
}

func NewNATS(pub Publisher, subject string) *NATS {
	return &NATS{pub: pub, subject: subject}
}

func (n *NATS) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.pub.Publish(n.subject, rec); err != nil {
		return fmt.Errorf("publish to %s: %w", n.subject, err)
	}
	return nil
}

// Close flushes pending publishes.
func (n *NATS) Close() error {
	return n.pub.Flush()
}
