package ws

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dm-service/internal/models"
	"dm-service/internal/observability"
)

const rosterRoutingKey = "ws_events.roster"

// Hub maintains the active websocket connections keyed by user. A user with
// at least one open connection counts as reachable.
type Hub struct {
	mu    sync.RWMutex
	users map[int]map[*websocket.Conn]ConnInfo
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{users: make(map[int]map[*websocket.Conn]ConnInfo)}
}

// AddClient registers a connection for the user.
func (h *Hub) AddClient(userID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.users[userID][conn] = info
}

// RemoveClient removes a connection, dropping the user entry when it was the
// last one.
func (h *Hub) RemoveClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
}

// Roster returns the ids of all currently connected users, sorted.
func (h *Hub) Roster() []int {
	h.mu.RLock()
	ids := make([]int, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// SendToUser delivers an event to every connection of the user.
func (h *Hub) SendToUser(userID int, event models.ServerEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.users[userID]))
	for conn := range h.users[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveClient(userID, conn)
			h.publishWSError(userID, conn, err)
		}
	}
}

// BroadcastRoster replaces every client's roster wholesale with the current
// set of connected users.
func (h *Hub) BroadcastRoster() {
	roster := h.Roster()
	event := models.ServerEvent{Type: models.EventRoster, PeerIDs: roster}
	for _, userID := range roster {
		h.SendToUser(userID, event)
	}
	observability.IncWSEvent("roster_broadcast")
}

func (h *Hub) publishWSError(userID int, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(userID, conn)
	if !ok {
		return
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), rosterRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   wsEventPayload("ws_error", info, info.Age(), err.Error()),
	}, headers)
	observability.IncWSEvent("ws_error")
}

func (h *Hub) getConnInfo(userID int, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.users[userID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

func wsEventPayload(event string, info ConnInfo, duration time.Duration, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": duration.Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
