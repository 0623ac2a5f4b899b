package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"chatneto/internal/models"
)

// WSNotifier implements Notifier by dialing the relay's websocket endpoint.
// Used by clients that do not sit next to the database.
type WSNotifier struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer
}

// NewWSNotifier builds a notifier for the given relay base URL
// (e.g. ws://host:8083).
func NewWSNotifier(baseURL, token string) *WSNotifier {
	return &WSNotifier{baseURL: baseURL, token: token, dialer: websocket.DefaultDialer}
}

// Subscribe dials the relay and streams message events for the chat until the
// subscription is closed or the context ends.
func (n *WSNotifier) Subscribe(ctx context.Context, chatID int) (*Subscription, error) {
	url := fmt.Sprintf("%s/ws/chats/%d", n.baseURL, chatID)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+n.token)

	conn, _, err := n.dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	ch := make(chan models.Message, 16)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			conn.Close()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	go func() {
		defer close(ch)
		defer cancel()
		for {
			var event models.ChatEvent
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			if event.Type != "message" || event.Message == nil {
				continue
			}
			select {
			case ch <- *event.Message:
			case <-done:
				return
			}
		}
	}()

	return NewSubscription(ch, cancel), nil
}
