// Package memory provides an in-process event.Publisher that fans messages
// out over a Go channel, for tests and for callers that don't want a network
// broker in the loop.
package memory

import (
	"context"
	"fmt"
)

// Message is one published event as the memory transport delivers it:
// the topic it was sent to and the raw document payload.
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher is an event.Publisher backed by a buffered channel. Publish
// never blocks past the channel's capacity; once full it reports
// ErrChannelFull, equivalent in the current contract to a transient publish
// failure from a real broker.
type Publisher struct {
	messages chan Message
}

// New returns a Publisher with the given channel capacity. A capacity of 0
// means Publish succeeds only when a reader is already waiting to receive;
// otherwise it reports ErrChannelFull immediately, same as a full buffer.
func New(capacity int) *Publisher {
	return &Publisher{messages: make(chan Message, capacity)}
}

// Messages returns the channel callers read published messages from.
func (p *Publisher) Messages() <-chan Message {
	return p.messages
}

// Publish implements event.Publisher.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case p.messages <- Message{Topic: topic, Payload: payload}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("memory: publish canceled: %w", ctx.Err())
	default:
		return ErrChannelFull
	}
}

// Close closes the underlying channel. Callers must stop publishing before
// calling Close.
func (p *Publisher) Close() {
	close(p.messages)
}

// ErrChannelFull reports that the in-memory channel has no free capacity;
// treated as event.ErrPublishTransient by callers that map it.
var ErrChannelFull = fmt.Errorf("memory: channel full")
