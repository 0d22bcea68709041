package models

// Delivery states for a message originated on this client. Persisted records
// fetched from history carry no delivery state.
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

// Message is the unit of conversation content. SentAt is Unix milliseconds
// assigned by the sender and, together with SenderID, identifies the logical
// message across its live and persisted copies.
type Message struct {
	SenderID      int    `db:"sender_id" json:"sender_id"`
	RecipientID   int    `db:"recipient_id" json:"recipient_id"`
	Body          string `db:"body" json:"body"`
	AttachmentURL string `db:"attachment_url" json:"attachment_url,omitempty"`
	SentAt        int64  `db:"sent_at" json:"sent_at"`
	Delivery      string `db:"-" json:"delivery,omitempty"`
}

// MessageKey identifies a logical message regardless of provenance. Retries
// of a failed send reuse the original key.
type MessageKey struct {
	SenderID int
	SentAt   int64
}

// Key returns the identity used to match live and persisted copies.
func (m Message) Key() MessageKey {
	return MessageKey{SenderID: m.SenderID, SentAt: m.SentAt}
}

// Between reports whether the message belongs to the conversation between
// users a and b.
func (m Message) Between(a, b int) bool {
	return (m.SenderID == a && m.RecipientID == b) ||
		(m.SenderID == b && m.RecipientID == a)
}
