package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dm-service/internal/models"
)

const defaultHandshakeTimeout = 10 * time.Second

// WebsocketEndpoint dials the relay's websocket route.
type WebsocketEndpoint struct {
	URL              string
	HandshakeTimeout time.Duration
}

// Dial connects and authenticates, returning a ready Conn with its read pump
// running.
func (e *WebsocketEndpoint) Dial(ctx context.Context, token string) (Conn, error) {
	timeout := e.HandshakeTimeout
	if timeout == 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := dialer.DialContext(ctx, e.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	conn := &wsConn{
		ws:      ws,
		events:  make(chan Event, 32),
		pending: map[uint64]func(models.Ack){},
	}
	go conn.readPump()
	return conn, nil
}

type wsConn struct {
	ws     *websocket.Conn
	events chan Event

	writeMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]func(models.Ack)
	closed  bool
	err     error
}

func (c *wsConn) Events() <-chan Event { return c.events }

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send writes one message frame and registers the ack callback under a fresh
// seq. A write error unregisters the callback so it can never fire.
func (c *wsConn) Send(msg models.Message, ack func(models.Ack)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	c.seq++
	seq := c.seq
	if ack != nil {
		c.pending[seq] = ack
	}
	c.mu.Unlock()

	frame := models.ClientFrame{
		Type:          models.EventMessage,
		Seq:           seq,
		RecipientID:   msg.RecipientID,
		Body:          msg.Body,
		AttachmentURL: msg.AttachmentURL,
		SentAt:        msg.SentAt,
	}

	c.writeMu.Lock()
	err := c.ws.WriteJSON(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.pending = map[uint64]func(models.Ack){}
	c.mu.Unlock()
	return c.ws.Close()
}

// readPump decodes inbound frames until the socket fails. Acks are routed to
// their registered callback; an ack for an unknown seq is dropped. Pending
// callbacks are discarded on teardown rather than invoked.
func (c *wsConn) readPump() {
	defer close(c.events)
	for {
		var ev models.ServerEvent
		if err := c.ws.ReadJSON(&ev); err != nil {
			c.mu.Lock()
			if !c.closed {
				c.err = err
				c.closed = true
				c.pending = map[uint64]func(models.Ack){}
			}
			c.mu.Unlock()
			c.ws.Close()
			return
		}

		switch ev.Type {
		case models.EventAck:
			c.mu.Lock()
			ack, ok := c.pending[ev.Seq]
			delete(c.pending, ev.Seq)
			c.mu.Unlock()
			if ok {
				ack(models.Ack{OK: ev.OK, SentAt: ev.SentAt, Error: ev.Error})
			}
		case models.EventRoster:
			c.events <- Event{Roster: ev.PeerIDs}
		case models.EventMessage:
			if ev.Message != nil {
				c.events <- Event{Message: ev.Message}
			}
		}
	}
}
