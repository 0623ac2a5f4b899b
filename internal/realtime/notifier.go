package realtime

import (
	"context"

	"chatneto/internal/models"
)

// Notifier exposes row-insert notifications for the messages table as
// cancellable per-chat subscriptions.
type Notifier interface {
	Subscribe(ctx context.Context, chatID int) (*Subscription, error)
}

// Subscription is a push stream of newly inserted messages for one chat.
// Close is idempotent; after Close the channel is drained and closed and no
// further deliveries happen.
type Subscription struct {
	C      <-chan models.Message
	cancel func()
}

// NewSubscription wraps a channel and its teardown. Exposed for fakes.
func NewSubscription(ch <-chan models.Message, cancel func()) *Subscription {
	return &Subscription{C: ch, cancel: cancel}
}

// Close tears the subscription down.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
