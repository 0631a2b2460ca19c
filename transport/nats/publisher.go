// Package nats backs event.Publisher with a real github.com/nats-io/nats.go
// connection, the broker-agnostic message bus the core engine only ever sees
// through the event.Publisher interface.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/cylab/gammaray/event"
)

// Publisher publishes to a NATS subject equal to the topic name. The wire
// payload is topic + NUL + document, matching the external contract exactly
// even though NATS itself routes on the subject, not the payload prefix.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials url and returns a ready Publisher.
func Connect(url string, opts ...nats.Option) (*Publisher, error) {
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}
	return &Publisher{conn: conn}, nil
}

// New wraps an already-established connection, for callers that manage
// connection lifecycle themselves.
func New(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// Publish implements event.Publisher. Non-blocking: nats.go's Publish only
// enqueues onto the client's outbound buffer.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wire := make([]byte, 0, len(topic)+1+len(payload))
	wire = append(wire, topic...)
	wire = append(wire, 0)
	wire = append(wire, payload...)

	if err := p.conn.Publish(topic, wire); err != nil {
		if err == nats.ErrConnectionClosed || err == nats.ErrInvalidConnection {
			return fmt.Errorf("%w: %v", event.ErrPublishFatal, err)
		}
		return fmt.Errorf("%w: %v", event.ErrPublishTransient, err)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (p *Publisher) Close() {
	p.conn.Close()
}
