package presence

import (
	"sort"
	"sync"
)

// Tracker holds the latest known set of reachable peers. It is updated only
// by whole-roster replacement; a stale roster is corrected by the next
// broadcast.
type Tracker struct {
	mu     sync.RWMutex
	online map[int]struct{}
}

// NewTracker starts with an empty roster.
func NewTracker() *Tracker {
	return &Tracker{online: map[int]struct{}{}}
}

// Replace swaps the roster wholesale.
func (t *Tracker) Replace(peerIDs []int) {
	next := make(map[int]struct{}, len(peerIDs))
	for _, id := range peerIDs {
		next[id] = struct{}{}
	}
	t.mu.Lock()
	t.online = next
	t.mu.Unlock()
}

// IsOnline reports whether the peer appeared in the latest roster.
func (t *Tracker) IsOnline(peerID int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[peerID]
	return ok
}

// Snapshot returns the current roster sorted ascending.
func (t *Tracker) Snapshot() []int {
	t.mu.RLock()
	ids := make([]int, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Ints(ids)
	return ids
}
