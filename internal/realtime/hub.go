package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatneto/internal/models"
	"chatneto/internal/observability"
)

// Hub maintains active websocket rooms, one per chat.
type Hub struct {
	rooms    map[int]map[*websocket.Conn]bool
	connInfo map[int]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
}

// ConnInfo carries identity and trace context for a relay connection.
type ConnInfo struct {
	ConnID      string
	UserID      int
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[int]map[*websocket.Conn]bool),
		connInfo: make(map[int]map[*websocket.Conn]ConnInfo),
	}
}

// AddClient registers a websocket connection to a chat room.
func (h *Hub) AddClient(chatID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[chatID][conn] = true
	if _, ok := h.connInfo[chatID]; !ok {
		h.connInfo[chatID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[chatID][conn] = info
}

// RemoveClient removes a chat websocket connection.
func (h *Hub) RemoveClient(chatID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[chatID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, chatID)
		}
	}
	if infos, ok := h.connInfo[chatID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, chatID)
		}
	}
}

// Broadcast sends a newly inserted message to every client in its chat room.
func (h *Hub) Broadcast(chatID int, msg models.Message) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[chatID]))
	for conn := range h.rooms[chatID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	event := models.ChatEvent{Type: "message", Message: &msg}
	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.publishWSError(chatID, conn, err)
			h.RemoveClient(chatID, conn)
		}
	}
}

func (h *Hub) publishWSError(chatID int, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(chatID, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"chat_id":     chatID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id": info.UserID,
			"ip":      info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}

func (h *Hub) getConnInfo(chatID int, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[chatID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}
