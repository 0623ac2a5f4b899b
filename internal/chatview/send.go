package chatview

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"chatneto/internal/models"
	"chatneto/internal/observability"
)

var (
	ErrViewClosed   = errors.New("chat view is closed")
	ErrEmptyMessage = errors.New("message text is empty")
)

// Send appends an optimistic placeholder immediately, then issues the real
// write under the send timeout. On success the placeholder is reconciled with
// the server-confirmed row; on failure or timeout it stays visible flagged as
// failed until retried or the view closes. Sends are serialized so each
// reconciliation runs against a settled placeholder list.
func (v *ChatView) Send(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	v.sendMu.Lock()
	defer v.sendMu.Unlock()

	tempID := uuid.NewString()
	placeholder := VisibleMessage{
		Message: models.Message{
			ChatID:    v.chatID,
			SenderID:  v.userID,
			Text:      text,
			CreatedAt: timeNow(),
		},
		TempID:  tempID,
		Sending: true,
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return models.Message{}, ErrViewClosed
	}
	v.visible = append(v.visible, placeholder)
	v.mu.Unlock()
	v.notifyUpdate()

	// Sending counts as activity.
	go func() { _ = v.profiles.TouchLastSeen(context.Background(), v.userID) }()

	return v.write(ctx, tempID, text)
}

// RetrySend re-issues the write behind a failed placeholder. The placeholder
// flips back to sending for the duration of the attempt.
func (v *ChatView) RetrySend(ctx context.Context, tempID string) (models.Message, error) {
	v.sendMu.Lock()
	defer v.sendMu.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return models.Message{}, ErrViewClosed
	}
	idx := v.indexOfTemp(tempID)
	if idx < 0 || !v.visible[idx].Failed {
		v.mu.Unlock()
		return models.Message{}, errors.New("no failed message to retry")
	}
	text := v.visible[idx].Text
	v.visible[idx].Failed = false
	v.visible[idx].Sending = true
	v.mu.Unlock()
	v.notifyUpdate()

	return v.write(ctx, tempID, text)
}

func (v *ChatView) write(ctx context.Context, tempID, text string) (models.Message, error) {
	sendCtx, cancel := context.WithTimeout(ctx, v.cfg.SendTimeout)
	defer cancel()

	msg, err := v.messages.Append(sendCtx, v.chatID, v.userID, text)
	if err != nil {
		v.markFailed(tempID)
		observability.IncSendFailure()
		v.emitAudit(ctx, "WARN", "message send failed")
		return models.Message{}, err
	}

	observability.IncMessageSent()
	v.reconcile(tempID, msg)
	return msg, nil
}

// reconcile replaces the placeholder, matched by its temp id, with the
// server-confirmed row. If the notification for the same message already
// landed, the placeholder is simply removed: duplicate suppression by server
// id keeps exactly one visible copy either way.
func (v *ChatView) reconcile(tempID string, confirmed models.Message) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if idx := v.indexOfTemp(tempID); idx >= 0 {
		v.visible = append(v.visible[:idx], v.visible[idx+1:]...)
	}
	if v.containsID(confirmed.ID) {
		v.mu.Unlock()
		observability.IncDuplicateDrop()
		v.notifyUpdate()
		return
	}
	v.sortedInsert(VisibleMessage{Message: confirmed})
	v.mu.Unlock()

	observability.IncReconciliation()
	v.notifyUpdate()
}

// markFailed flips the placeholder into its error state. The entry is never
// silently removed; it stays until retried or the view closes.
func (v *ChatView) markFailed(tempID string) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if idx := v.indexOfTemp(tempID); idx >= 0 {
		v.visible[idx].Sending = false
		v.visible[idx].Failed = true
	}
	v.mu.Unlock()
	v.notifyUpdate()
}

// indexOfTemp finds a placeholder by temp id. Callers hold mu.
func (v *ChatView) indexOfTemp(tempID string) int {
	for i, m := range v.visible {
		if m.TempID == tempID {
			return i
		}
	}
	return -1
}
