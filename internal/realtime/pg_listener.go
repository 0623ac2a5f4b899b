package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"chatneto/internal/models"
)

const messageChannel = "message_inserts"

// allChats subscribes a consumer to inserts for every chat; used by the relay
// bridge to fan out to websocket rooms.
const allChats = 0

// PGNotifier delivers message-insert notifications from the Postgres NOTIFY
// channel fed by the messages insert trigger.
type PGNotifier struct {
	listener *pq.Listener

	mu   sync.Mutex
	subs map[int]map[int]chan models.Message
	next int
	done chan struct{}
}

// NewPGNotifier opens the listener and starts dispatching.
func NewPGNotifier(dsn string) (*PGNotifier, error) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("pg listener event %d: %v", event, err)
		}
	})
	if err := listener.Listen(messageChannel); err != nil {
		listener.Close()
		return nil, err
	}

	n := &PGNotifier{
		listener: listener,
		subs:     make(map[int]map[int]chan models.Message),
		done:     make(chan struct{}),
	}
	go n.dispatch()
	return n, nil
}

func (n *PGNotifier) dispatch() {
	for {
		select {
		case <-n.done:
			return
		case notification, ok := <-n.listener.Notify:
			if !ok {
				return
			}
			if notification == nil {
				// Reconnect marker; subscribers recover through polling.
				continue
			}
			var msg models.Message
			if err := json.Unmarshal([]byte(notification.Extra), &msg); err != nil {
				log.Printf("drop malformed notification payload: %v", err)
				continue
			}
			n.deliver(msg)
		}
	}
}

func (n *PGNotifier) deliver(msg models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, chatID := range []int{msg.ChatID, allChats} {
		for _, ch := range n.subs[chatID] {
			select {
			case ch <- msg:
			default:
				// Slow consumer; it catches up on the next polling refresh.
			}
		}
	}
}

// Subscribe registers for inserts scoped to one chat. The subscription ends
// when Close is called or the context is cancelled, whichever comes first.
func (n *PGNotifier) Subscribe(ctx context.Context, chatID int) (*Subscription, error) {
	return n.subscribe(ctx, chatID)
}

// SubscribeAll registers for inserts across every chat.
func (n *PGNotifier) SubscribeAll(ctx context.Context) (*Subscription, error) {
	return n.subscribe(ctx, allChats)
}

func (n *PGNotifier) subscribe(ctx context.Context, chatID int) (*Subscription, error) {
	ch := make(chan models.Message, 16)

	n.mu.Lock()
	id := n.next
	n.next++
	if n.subs[chatID] == nil {
		n.subs[chatID] = make(map[int]chan models.Message)
	}
	n.subs[chatID][id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			if subs, ok := n.subs[chatID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(n.subs, chatID)
				}
			}
			n.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-n.done:
			cancel()
		}
	}()

	return NewSubscription(ch, cancel), nil
}

// Close stops dispatching and closes the underlying listener.
func (n *PGNotifier) Close() error {
	close(n.done)
	return n.listener.Close()
}
