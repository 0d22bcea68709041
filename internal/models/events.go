package models

// Event types exchanged over the messaging websocket.
const (
	EventRoster  = "roster"
	EventMessage = "message"
	EventAck     = "ack"
)

// ServerEvent is a frame sent by the relay to a client.
type ServerEvent struct {
	Type    string   `json:"type"`
	PeerIDs []int    `json:"peer_ids,omitempty"`
	Message *Message `json:"message,omitempty"`
	Seq     uint64   `json:"seq,omitempty"`
	OK      bool     `json:"ok,omitempty"`
	SentAt  int64    `json:"sent_at,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ClientFrame is a frame sent by a client to the relay. Seq correlates the
// relay's ack to one in-flight send; it never crosses the transport boundary
// as message identity.
type ClientFrame struct {
	Type          string `json:"type"`
	Seq           uint64 `json:"seq"`
	RecipientID   int    `json:"recipient_id"`
	Body          string `json:"body"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	SentAt        int64  `json:"sent_at"`
}

// Ack is the relay's acknowledgment of one outbound message frame. SentAt
// carries the server-assigned timestamp when present.
type Ack struct {
	OK     bool
	SentAt int64
	Error  string
}
