package live

import (
	"sync"

	"dm-service/internal/models"
)

// Stream buffers messages known to this client only through the active
// transport session. Entries keep insertion order; messages are never
// reordered relative to each other.
type Stream struct {
	mu   sync.RWMutex
	msgs []models.Message
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{}
}

// Append adds a message to the end of the stream.
func (s *Stream) Append(msg models.Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

// Get looks a message up by its identity key.
func (s *Stream) Get(key models.MessageKey) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.msgs {
		if m.Key() == key {
			return m, true
		}
	}
	return models.Message{}, false
}

// Resolve updates the message matching key with the given timestamp and
// delivery state, keeping its position. Matching is by identity, not by
// position, since acks can arrive out of submission order. Returns false
// when no entry matches; the caller treats that as a no-op.
func (s *Stream) Resolve(key models.MessageKey, sentAt int64, delivery string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		if s.msgs[i].Key() == key {
			s.msgs[i].SentAt = sentAt
			s.msgs[i].Delivery = delivery
			return true
		}
	}
	return false
}

// MarkFailed flags the message matching key as failed, leaving it visible
// and retriable.
func (s *Stream) MarkFailed(key models.MessageKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		if s.msgs[i].Key() == key {
			s.msgs[i].Delivery = models.DeliveryFailed
			return true
		}
	}
	return false
}

// ForPeer returns the messages between the two users in insertion order.
func (s *Stream) ForPeer(localID, peerID int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for _, m := range s.msgs {
		if m.Between(localID, peerID) {
			out = append(out, m)
		}
	}
	return out
}

// Len reports the number of buffered messages.
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Clear drops the session buffer.
func (s *Stream) Clear() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
}
