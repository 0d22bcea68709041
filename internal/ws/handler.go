package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"dm-service/internal/identity"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
)

// Handler owns the websocket route of the messaging endpoint: relaying
// direct messages, acknowledging sends with the server-assigned timestamp,
// and broadcasting the roster.
type Handler struct {
	hub      *Hub
	provider identity.Provider
	peerRepo repositories.PeerRepository

	mu       sync.Mutex
	lastSent map[int]int64
}

// NewHandler constructs a websocket Handler.
func NewHandler(hub *Hub, provider identity.Provider, peerRepo repositories.PeerRepository) *Handler {
	return &Handler{hub: hub, provider: provider, peerRepo: peerRepo, lastSent: map[int]int64{}}
}

// assignSentAt hands out the authoritative timestamp for one relayed
// message. Timestamps are strictly increasing per sender even within a
// millisecond, since (sender, sent_at) is the message identity and the
// persistence upsert silently drops a colliding row.
func (h *Handler) assignSentAt(senderID int) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := time.Now().UnixMilli()
	if last := h.lastSent[senderID]; t <= last {
		t = last + 1
	}
	h.lastSent[senderID] = t
	return t
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades, registers the client, and pumps inbound
// frames until the connection closes.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("dm-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(userID, conn, info)
	h.hub.BroadcastRoster()

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	headers := observability.BuildHeaders(requestID, traceID)
	_ = observability.PublishEvent(ctx, rosterRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsEventPayload("ws_connect", info, 0, ""),
	}, headers)

	go h.readPump(context.Background(), conn, info)
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveClient(info.UserID, conn)
		conn.Close()
		h.hub.BroadcastRoster()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		headers := observability.BuildHeaders(info.RequestID, info.TraceID)
		_ = observability.PublishEvent(ctx, rosterRoutingKey, observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload:   wsEventPayload("ws_disconnect", info, info.Age(), closeReason),
		}, headers)
	}()

	for {
		var frame models.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		if frame.Type != models.EventMessage {
			continue
		}
		h.relay(ctx, conn, info, frame)
	}
}

// relay validates one message frame, forwards it to the recipient, and acks
// the sender. The server clock is authoritative for ordering, so the ack
// carries the assigned timestamp for the client to adopt.
func (h *Handler) relay(ctx context.Context, conn *websocket.Conn, info ConnInfo, frame models.ClientFrame) {
	nack := func(reason string) {
		h.writeEvent(conn, info, models.ServerEvent{
			Type:  models.EventAck,
			Seq:   frame.Seq,
			OK:    false,
			Error: reason,
		})
	}

	if strings.TrimSpace(frame.Body) == "" {
		nack("body is empty")
		return
	}
	if frame.RecipientID == info.UserID {
		nack("cannot message yourself")
		return
	}
	if _, err := h.peerRepo.GetUser(ctx, frame.RecipientID); err != nil {
		nack("unknown recipient")
		return
	}

	msg := models.Message{
		SenderID:      info.UserID,
		RecipientID:   frame.RecipientID,
		Body:          frame.Body,
		AttachmentURL: frame.AttachmentURL,
		SentAt:        h.assignSentAt(info.UserID),
	}
	h.hub.SendToUser(frame.RecipientID, models.ServerEvent{Type: models.EventMessage, Message: &msg})
	h.writeEvent(conn, info, models.ServerEvent{
		Type:   models.EventAck,
		Seq:    frame.Seq,
		OK:     true,
		SentAt: msg.SentAt,
	})
	observability.IncWSEvent("message_relayed")
}

func (h *Handler) writeEvent(conn *websocket.Conn, info ConnInfo, event models.ServerEvent) {
	if err := conn.WriteJSON(event); err != nil {
		conn.Close()
		h.hub.RemoveClient(info.UserID, conn)
	}
}

func (h *Handler) validateToken(header string) (int, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.provider.Verify(parts[1])
	}
	return 0, identity.ErrInvalidToken
}
