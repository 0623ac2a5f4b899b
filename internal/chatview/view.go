package chatview

import (
	"context"
	"log"
	"sync"

	"chatneto/internal/config"
	"chatneto/internal/models"
	"chatneto/internal/presence"
	"chatneto/internal/realtime"
	"chatneto/internal/repositories"
	"chatneto/internal/telemetry"
)

// VisibleMessage is one entry of the visible message list. Server-confirmed
// entries carry a server id and an empty TempID; optimistic entries carry a
// TempID until they are reconciled or flagged failed. Optimistic entries are
// never persisted.
type VisibleMessage struct {
	models.Message
	TempID  string `json:"temp_id,omitempty"`
	Sending bool   `json:"sending,omitempty"`
	Failed  bool   `json:"failed,omitempty"`
}

func (m VisibleMessage) confirmed() bool {
	return m.TempID == ""
}

// ChatView owns the live state of one open chat: the visible message list,
// the realtime subscription with its polling fallback, and the counterpart's
// derived presence. All mutation goes through the view's lock and both
// mutators (the send pipeline and the synchronizer) apply the same
// dedup-by-server-id discipline.
type ChatView struct {
	chatID        int
	userID        int
	counterpartID int
	cfg           config.Config

	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	profiles repositories.ProfileRepository
	notifier realtime.Notifier
	audit    *telemetry.AuditEmitter

	mu      sync.Mutex
	visible []VisibleMessage
	online  bool
	closed  bool

	sendMu sync.Mutex

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	onUpdate func()
}

// NewChatView builds a view for an existing chat. Open must be called before
// the view is live.
func NewChatView(chatID, userID int, cfg config.Config,
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	profiles repositories.ProfileRepository,
	notifier realtime.Notifier) *ChatView {
	return &ChatView{
		chatID:   chatID,
		userID:   userID,
		cfg:      cfg,
		chats:    chats,
		messages: messages,
		profiles: profiles,
		notifier: notifier,
	}
}

// SetOnUpdate registers a callback invoked after every visible-state change.
// Must be set before Open.
func (v *ChatView) SetOnUpdate(fn func()) {
	v.onUpdate = fn
}

// Open loads the history, marks inbound messages read, and starts the
// synchronizer. Read failures yield an empty history rather than an error;
// only a missing chat aborts the open.
func (v *ChatView) Open(ctx context.Context) error {
	chat, err := v.chats.GetChat(ctx, v.chatID)
	if err != nil {
		return err
	}
	v.counterpartID = chat.Participant1ID
	if v.counterpartID == v.userID {
		v.counterpartID = chat.Participant2ID
	}

	// Entering a chat counts as activity.
	go func() { _ = v.profiles.TouchLastSeen(context.Background(), v.userID) }()

	history, err := v.messages.ListMessages(ctx, v.chatID)
	if err != nil {
		log.Printf("load history for chat %d failed, starting empty: %v", v.chatID, err)
		history = nil
	}

	v.mu.Lock()
	v.visible = make([]VisibleMessage, 0, len(history))
	for _, msg := range history {
		v.visible = append(v.visible, VisibleMessage{Message: msg})
	}
	v.mu.Unlock()

	go func() { _ = v.messages.MarkRead(context.Background(), v.chatID, v.userID) }()

	runCtx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel

	var sub *realtime.Subscription
	if v.notifier != nil {
		sub, err = v.notifier.Subscribe(runCtx, v.chatID)
		if err != nil {
			// Polling keeps the view current until the channel recovers.
			log.Printf("subscribe to chat %d failed, relying on polling: %v", v.chatID, err)
			sub = nil
		}
	}

	v.refreshPresence(runCtx)

	v.wg.Add(1)
	go v.run(runCtx, sub)
	return nil
}

// Close tears the view down: the subscription is cancelled and both timers
// stopped before Close returns. Any callback that fires afterwards is a no-op
// guarded by the closed flag.
func (v *ChatView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
	}
	v.wg.Wait()
}

// Messages returns a snapshot of the visible message list.
func (v *ChatView) Messages() []VisibleMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]VisibleMessage, len(v.visible))
	copy(out, v.visible)
	return out
}

// CounterpartID returns the other participant's user id.
func (v *ChatView) CounterpartID() int {
	return v.counterpartID
}

// CounterpartOnline reports the most recently derived presence of the
// counterpart.
func (v *ChatView) CounterpartOnline() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.online
}

func (v *ChatView) notifyUpdate() {
	if v.onUpdate != nil {
		v.onUpdate()
	}
}

func (v *ChatView) emitAudit(ctx context.Context, level, text string) {
	if v.audit == nil {
		return
	}
	userID := v.userID
	v.audit.Emit(ctx, level, text, &userID)
}

// containsID reports whether a server id is already visible. Callers hold mu.
func (v *ChatView) containsID(id int) bool {
	for _, m := range v.visible {
		if m.confirmed() && m.ID == id {
			return true
		}
	}
	return false
}

// confirmedCount counts server-confirmed entries. Callers hold mu.
func (v *ChatView) confirmedCount() int {
	count := 0
	for _, m := range v.visible {
		if m.confirmed() {
			count++
		}
	}
	return count
}

// sortedInsert places a confirmed message so that confirmed entries stay a
// sorted prefix in server creation order (created_at, then server id) while
// optimistic entries keep floating at the tail in send order. Callers hold mu.
func (v *ChatView) sortedInsert(entry VisibleMessage) {
	pos := -1
	for i, m := range v.visible {
		if !m.confirmed() || laterThan(m.Message, entry.Message) {
			pos = i
			break
		}
	}
	if pos == -1 {
		v.visible = append(v.visible, entry)
		return
	}
	v.visible = append(v.visible, VisibleMessage{})
	copy(v.visible[pos+1:], v.visible[pos:])
	v.visible[pos] = entry
}

func laterThan(a, b models.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (v *ChatView) refreshPresence(ctx context.Context) {
	profile, err := v.profiles.GetProfile(ctx, v.counterpartID)
	if err != nil {
		return
	}
	online := presence.IsOnline(profile.LastSeen, timeNow(), v.cfg.PresenceThreshold)

	v.mu.Lock()
	if !v.closed {
		v.online = online
	}
	v.mu.Unlock()
}
