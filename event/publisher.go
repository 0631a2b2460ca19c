package event

import (
	"context"
	"errors"
)

// ErrPublishTransient reports a transport that refused a publish temporarily
// (backpressure). Fatal in the current contract; an adapter may
// choose to retry internally before surfacing this.
var ErrPublishTransient = errors.New("event: publish refused temporarily")

// ErrPublishFatal reports a transport that terminated or an invalid socket.
// Always fatal.
var ErrPublishFatal = errors.New("event: publish failed fatally")

// Publisher is the sole side effect the inspector and differ perform:
// sending an already encoded document to a topic. Implementations take
// ownership of payload for
// the duration of the call and must release any transport-owned framing
// buffer exactly once, whether the send succeeds or fails.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}
