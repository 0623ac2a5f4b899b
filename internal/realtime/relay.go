package realtime

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"chatneto/internal/middleware"
	"chatneto/internal/observability"
	"chatneto/internal/repositories"
)

// RelayHandler upgrades websocket connections and joins them to chat rooms so
// they receive message-insert notifications from the store.
type RelayHandler struct {
	hub      *Hub
	chatRepo repositories.ChatRepository
	verifier middleware.TokenVerifier
}

// NewRelayHandler constructs a RelayHandler.
func NewRelayHandler(hub *Hub, chatRepo repositories.ChatRepository, verifier middleware.TokenVerifier) *RelayHandler {
	return &RelayHandler{hub: hub, chatRepo: chatRepo, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client with its chat room.
func (h *RelayHandler) Handle(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("chatneto/realtime").Start(c.Request.Context(), "relay.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.verifier.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.chatRepo.IsParticipant(ctx, chatID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(chatID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycle(ctx, "ws_connect", chatID, info, "")

	// The request context dies when the handler returns; lifecycle publishes
	// for the connection's lifetime keep only the trace linkage.
	lifecycleCtx := trace.ContextWithSpanContext(context.Background(), span.SpanContext())
	go h.readUntilClose(lifecycleCtx, chatID, conn, info)
}

// readUntilClose drains the connection so pings and close frames are
// processed, then removes the client.
func (h *RelayHandler) readUntilClose(ctx context.Context, chatID int, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveClient(chatID, conn)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycle(ctx, "ws_disconnect", chatID, info, closeReason)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycle(ctx, "ws_error", chatID, info, closeReason)
			}
			return
		}
	}
}

func (h *RelayHandler) publishLifecycle(ctx context.Context, event string, chatID int, info ConnInfo, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"chat_id":     chatID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id": info.UserID,
			"ip":      info.IP,
		},
	}
	if err := observability.PublishEvent(ctx, "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID, info.TraceID)); err != nil {
		log.Printf("publish %s event failed: %v", event, err)
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return c.Query("token")
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
