package models

// ConversationKey identifies the thread between two users independent of
// who is local and who is the peer.
type ConversationKey struct {
	Low  int
	High int
}

// NewConversationKey normalizes an unordered user pair.
func NewConversationKey(a, b int) ConversationKey {
	if a > b {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

// Peer is an entry in the selectable conversation list.
type Peer struct {
	ID       int    `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}
