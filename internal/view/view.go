package view

import (
	"context"
	"sync"

	"dm-service/internal/history"
	"dm-service/internal/live"
	"dm-service/internal/models"
	"dm-service/internal/session"
)

// Conversation is the read-side composition for the active peer: it merges
// persisted history with the live stream and manages pagination without
// disturbing the viewport. It never mutates either store.
type Conversation struct {
	history *history.Store
	stream  *live.Stream
	state   *session.State

	mu      sync.Mutex
	loading bool

	// Anchor is driven by the embedding UI around its layout pass; front
	// ends without a pixel viewport (such as the CLI) leave it idle.
	Anchor ScrollAnchor
}

// NewConversation composes the view over the shared stores.
func NewConversation(hist *history.Store, stream *live.Stream, state *session.State) *Conversation {
	return &Conversation{history: hist, stream: stream, state: state}
}

// Messages recomputes the merged, deduplicated sequence for the selected
// peer. Nil when no peer is selected.
func (v *Conversation) Messages() []models.Message {
	peerID := v.state.SelectedPeer()
	if peerID == 0 {
		return nil
	}
	persisted := v.history.Messages(peerID)
	buffered := v.stream.ForPeer(v.state.LocalID(), peerID)
	return Merge(persisted, buffered)
}

// LoadOlder pages older history in for the selected peer. Auto-scroll to the
// newest message is suppressed while the fetch is in flight so loading never
// yanks the viewport away from what the user was reading.
func (v *Conversation) LoadOlder(ctx context.Context) (added int, hasMore bool, err error) {
	peerID := v.state.SelectedPeer()
	if peerID == 0 {
		return 0, false, nil
	}

	v.mu.Lock()
	if v.loading {
		v.mu.Unlock()
		return 0, v.history.HasMore(peerID), nil
	}
	v.loading = true
	v.mu.Unlock()

	v.state.SetAutoScroll(false)
	defer func() {
		v.mu.Lock()
		v.loading = false
		v.mu.Unlock()
		v.state.SetAutoScroll(true)
	}()

	return v.history.LoadOlder(ctx, peerID)
}

// Loading reports whether a pagination fetch is in flight.
func (v *Conversation) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}
