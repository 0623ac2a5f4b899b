package chatview

import (
	"context"
	"time"

	"chatneto/internal/models"
	"chatneto/internal/observability"
	"chatneto/internal/realtime"
)

// run is the synchronizer loop: notification deliveries, the polling
// fallback, and the coarser presence refresh all funnel through here until
// teardown.
func (v *ChatView) run(ctx context.Context, sub *realtime.Subscription) {
	defer v.wg.Done()
	if sub != nil {
		defer sub.Close()
	}

	poll := time.NewTicker(v.cfg.PollInterval)
	defer poll.Stop()
	presenceTick := time.NewTicker(v.cfg.PresenceRefresh)
	defer presenceTick.Stop()

	var notifications <-chan models.Message
	if sub != nil {
		notifications = sub.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			v.applyRemote(msg)
		case <-poll.C:
			v.poll(ctx)
		case <-presenceTick.C:
			v.refreshPresence(ctx)
		}
	}
}

// applyRemote decides INSERT vs IGNORE for a notification-delivered message.
// A server id already present is dropped silently; this is what keeps the
// optimistic reconciliation and the notification path from double-inserting
// the same message.
func (v *ChatView) applyRemote(msg models.Message) {
	if msg.ChatID != v.chatID {
		return
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if v.containsID(msg.ID) {
		v.mu.Unlock()
		observability.IncDuplicateDrop()
		return
	}
	v.sortedInsert(VisibleMessage{Message: msg})
	inbound := msg.SenderID != v.userID
	v.mu.Unlock()

	if inbound {
		go func() { _ = v.messages.MarkRead(context.Background(), v.chatID, v.userID) }()
	}
	v.notifyUpdate()
}

// poll re-fetches the full history and replaces local state only when the
// fetched count exceeds the confirmed count we hold: a cheap did-anything-
// change heuristic. A full re-fetch always wins on ordering since it is the
// server's own order. Fetch errors are silent; polling is a fallback hint,
// not an authority.
func (v *ChatView) poll(ctx context.Context) {
	fetched, err := v.messages.ListMessages(ctx, v.chatID)
	if err != nil {
		return
	}

	v.mu.Lock()
	if v.closed || len(fetched) <= v.confirmedCount() {
		v.mu.Unlock()
		return
	}
	rebuilt := make([]VisibleMessage, 0, len(fetched)+4)
	for _, msg := range fetched {
		rebuilt = append(rebuilt, VisibleMessage{Message: msg})
	}
	// Optimistic entries ride along untouched; they are resolved only by
	// reconciliation or an explicit failure.
	for _, m := range v.visible {
		if !m.confirmed() {
			rebuilt = append(rebuilt, m)
		}
	}
	v.visible = rebuilt
	v.mu.Unlock()

	observability.IncPollRefresh()
	v.notifyUpdate()
}
