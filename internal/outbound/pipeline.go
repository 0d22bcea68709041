package outbound

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"dm-service/internal/connection"
	"dm-service/internal/live"
	"dm-service/internal/models"
	"dm-service/internal/observability"
)

// Validation errors surfaced to the caller. Rejection has no side effects.
var (
	ErrNotConnected   = errors.New("not connected")
	ErrNoPeerSelected = errors.New("no peer selected")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrUnknownMessage = errors.New("message not found")
)

const defaultAckTimeout = 10 * time.Second

// Transport is the slice of the connection manager the pipeline needs.
type Transport interface {
	State() connection.State
	Send(msg models.Message, ack func(models.Ack)) error
}

// Recorder durably stores an acknowledged message. Fire-and-forget from the
// pipeline's perspective: failures are logged, never retried here.
type Recorder interface {
	Record(ctx context.Context, msg models.Message) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAckTimeout overrides the acknowledgment window.
func WithAckTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.ackTimeout = d }
}

// WithClock overrides the timestamp source (Unix milliseconds).
func WithClock(now func() int64) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline turns a send action into an optimistic, retryable operation. A
// message appears in the live stream before any network round trip; its
// delivery state tracks the acknowledgment outcome.
type Pipeline struct {
	transport  Transport
	stream     *live.Stream
	recorder   Recorder
	localID    int
	ackTimeout time.Duration
	now        func() int64

	mu         sync.Mutex
	inflight   map[models.MessageKey]*time.Timer
	lastSentAt int64
}

// NewPipeline builds a pipeline for the local user.
func NewPipeline(transport Transport, stream *live.Stream, recorder Recorder, localID int, opts ...Option) *Pipeline {
	p := &Pipeline{
		transport:  transport,
		stream:     stream,
		recorder:   recorder,
		localID:    localID,
		ackTimeout: defaultAckTimeout,
		now:        func() int64 { return time.Now().UnixMilli() },
		inflight:   map[models.MessageKey]*time.Timer{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send validates the intent, appends an optimistic pending record, and
// transmits it. The client-assigned timestamp doubles as the idempotency key
// alongside the sender id.
func (p *Pipeline) Send(peerID int, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if p.transport.State() != connection.StateConnected {
		return models.Message{}, ErrNotConnected
	}
	if peerID == 0 {
		return models.Message{}, ErrNoPeerSelected
	}
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	msg := models.Message{
		SenderID:    p.localID,
		RecipientID: peerID,
		Body:        text,
		SentAt:      p.nextSentAt(),
		Delivery:    models.DeliveryPending,
	}
	p.stream.Append(msg)
	p.transmit(msg)
	return msg, nil
}

// Retry re-sends a failed record under its original identity, so a late ack
// for a previous attempt can never create a second visible entry.
func (p *Pipeline) Retry(key models.MessageKey) error {
	msg, ok := p.stream.Get(key)
	if !ok {
		return ErrUnknownMessage
	}
	if p.transport.State() != connection.StateConnected {
		return ErrNotConnected
	}
	p.stream.Resolve(key, msg.SentAt, models.DeliveryPending)
	msg.Delivery = models.DeliveryPending
	p.transmit(msg)
	return nil
}

// nextSentAt assigns a strictly increasing timestamp. The timestamp doubles
// as message identity, so two sends inside the same millisecond must not
// share one.
func (p *Pipeline) nextSentAt() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.now()
	if t <= p.lastSentAt {
		t = p.lastSentAt + 1
	}
	p.lastSentAt = t
	return t
}

// transmit sends the frame and arms the ack timeout. At most one outstanding
// attempt exists per message key.
func (p *Pipeline) transmit(msg models.Message) {
	key := msg.Key()

	p.mu.Lock()
	if _, dup := p.inflight[key]; dup {
		p.mu.Unlock()
		return
	}
	p.inflight[key] = time.AfterFunc(p.ackTimeout, func() { p.expire(key) })
	p.mu.Unlock()

	observability.IncMessageSent()
	if err := p.transport.Send(msg, func(ack models.Ack) { p.acked(msg, ack) }); err != nil {
		log.Printf("outbound: send failed: %v", err)
		p.expire(key)
	}
}

// acked settles the in-flight attempt. An ack arriving after the timeout, or
// for a message no longer tracked, is a no-op.
func (p *Pipeline) acked(msg models.Message, ack models.Ack) {
	key := msg.Key()

	p.mu.Lock()
	timer, ok := p.inflight[key]
	if ok {
		timer.Stop()
		delete(p.inflight, key)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	if ack.OK {
		sentAt := msg.SentAt
		if ack.SentAt != 0 {
			// The server clock is authoritative; adopting its timestamp keeps
			// ordering consistent with the persisted store.
			sentAt = ack.SentAt
		}
		p.stream.Resolve(key, sentAt, models.DeliverySent)
		msg.SentAt = sentAt
		// An adopted server timestamp also advances the local clock, so a
		// later send cannot be assigned an identity already in the stream.
		p.mu.Lock()
		if sentAt > p.lastSentAt {
			p.lastSentAt = sentAt
		}
		p.mu.Unlock()
		observability.IncMessageAck("ok")
	} else {
		p.stream.MarkFailed(key)
		observability.IncMessageAck("error")
	}

	// The relay observed the frame by the time it acked, so record it even on
	// an error ack; the store upsert is idempotent, so a duplicate attempt
	// cannot produce a second row.
	p.record(msg)
}

func (p *Pipeline) record(msg models.Message) {
	msg.Delivery = ""
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := p.recorder.Record(ctx, msg); err != nil {
			log.Printf("outbound: record message failed: %v", err)
		}
	}()
}

// expire marks the attempt failed after the ack window or a transport error.
func (p *Pipeline) expire(key models.MessageKey) {
	p.mu.Lock()
	timer, ok := p.inflight[key]
	if ok {
		timer.Stop()
		delete(p.inflight, key)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	p.stream.MarkFailed(key)
	observability.IncMessageAck("timeout")
}
