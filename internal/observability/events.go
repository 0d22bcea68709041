package observability

import "time"

// EventEnvelope wraps one published observability event. EventType routes the
// event class ("ws_events"), EventName identifies the specific occurrence.
type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt string      `json:"occurred_at,omitempty"`
	Payload    interface{} `json:"payload"`
}

// Stamped returns a copy of the envelope with the occurrence time filled in.
func (e EventEnvelope) Stamped() EventEnvelope {
	if e.OccurredAt == "" {
		e.OccurredAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return e
}

// BuildHeaders assembles AMQP headers for request correlation. Empty values
// are omitted.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
