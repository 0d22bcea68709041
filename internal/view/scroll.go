package view

import "sync"

// ScrollAnchor keeps the viewport stable across a content prepend. Capture
// records the scroll metrics before older messages are inserted; Restore,
// called after layout has settled, returns the compensated offset so the
// previously visible messages stay in place.
type ScrollAnchor struct {
	mu       sync.Mutex
	height   float64
	offset   float64
	captured bool
}

// Capture records the container height and scroll offset before the update.
func (a *ScrollAnchor) Capture(height, offset float64) {
	a.mu.Lock()
	a.height = height
	a.offset = offset
	a.captured = true
	a.mu.Unlock()
}

// Restore returns the adjusted offset for the new content height and clears
// the capture. Without a prior Capture, ok is false and the caller leaves
// the offset alone.
func (a *ScrollAnchor) Restore(newHeight float64) (offset float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.captured {
		return 0, false
	}
	a.captured = false
	return a.offset + (newHeight - a.height), true
}
