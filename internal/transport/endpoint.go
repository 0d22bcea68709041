package transport

import (
	"context"
	"errors"

	"dm-service/internal/models"
)

// ErrConnClosed is returned by Send after the connection has been torn down.
var ErrConnClosed = errors.New("connection closed")

// Event is one inbound frame fanned out from the read pump. Exactly one
// field is set.
type Event struct {
	Roster  []int
	Message *models.Message
}

// Conn is one established session with the messaging endpoint.
type Conn interface {
	// Events delivers roster and message frames in arrival order. The channel
	// is closed when the connection fails or is closed; Err then reports why.
	Events() <-chan Event
	// Err reports the terminal error after Events is closed.
	Err() error
	// Send transmits one message frame. The ack callback is invoked at most
	// once with the relay's acknowledgment; it never fires after Close.
	Send(msg models.Message, ack func(models.Ack)) error
	Close() error
}

// Endpoint dials the messaging service with an authentication token.
type Endpoint interface {
	Dial(ctx context.Context, token string) (Conn, error)
}
