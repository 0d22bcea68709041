package session

import "sync"

// State is the single owned bag of mutable chat-session state: the selected
// peer and the view flags shared across components. Mutation goes through
// methods only; components receive the State by reference.
type State struct {
	mu           sync.RWMutex
	localID      int
	selectedPeer int
	autoScroll   bool
	shrunk       bool
}

// NewState builds session state for the local user. Auto-scroll starts
// enabled.
func NewState(localID int) *State {
	return &State{localID: localID, autoScroll: true}
}

// LocalID returns the stable local user identifier.
func (s *State) LocalID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localID
}

// SelectPeer switches the active conversation. Zero means none selected.
func (s *State) SelectPeer(peerID int) {
	s.mu.Lock()
	s.selectedPeer = peerID
	s.autoScroll = true
	s.mu.Unlock()
}

// SelectedPeer returns the active conversation's peer, zero when none.
func (s *State) SelectedPeer() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedPeer
}

// SetAutoScroll toggles follow-newest behaviour for the view.
func (s *State) SetAutoScroll(enabled bool) {
	s.mu.Lock()
	s.autoScroll = enabled
	s.mu.Unlock()
}

// AutoScroll reports whether the view follows the newest message.
func (s *State) AutoScroll() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoScroll
}

// SetShrunk toggles the collapsed chat panel flag. The embedding UI calls
// this from its panel controls; the CLI front end never collapses the panel.
func (s *State) SetShrunk(shrunk bool) {
	s.mu.Lock()
	s.shrunk = shrunk
	s.mu.Unlock()
}

// Shrunk reports whether the chat panel is collapsed.
func (s *State) Shrunk() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shrunk
}
