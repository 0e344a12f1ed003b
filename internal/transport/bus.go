package transport

import (
	"errors"

	"timercard/internal/protocol"
)

// ErrNotReady is returned by Send while the underlying connection is down.
// Callers recover by retrying through their own loops; it is never fatal.
var ErrNotReady = errors.New("transport: connection not ready")

// Bus is the live-connection handle the host supplies to the card: a
// fire-and-forget command sender plus an inbound event subscription.
// Delivery is best-effort in both directions and responses may arrive out
// of order relative to requests.
type Bus interface {
	// Send transmits one command event. Success means the payload was
	// written, not that the backend acted on it.
	Send(cmd protocol.Command) error
	// Events yields inbound response events. The channel is buffered;
	// events are dropped rather than blocking the reader when the consumer
	// falls behind.
	Events() <-chan protocol.Response
	// Ready reports whether the connection is currently usable.
	Ready() bool
	Close() error
}
