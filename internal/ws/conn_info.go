package ws

import "time"

// ConnInfo carries the identity and correlation metadata of one websocket
// connection, captured at handshake time for lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Age reports how long the connection has been open.
func (i ConnInfo) Age() time.Duration {
	return time.Since(i.ConnectedAt)
}
