package chatview

import (
	"context"
	"log"
	"sync"
	"time"

	"chatneto/internal/config"
	"chatneto/internal/models"
	"chatneto/internal/presence"
	"chatneto/internal/repositories"
)

// ChatList is the live chat directory for one viewer: summaries with unread
// counts and derived counterpart presence, re-fetched on a coarse interval.
type ChatList struct {
	viewerID int
	cfg      config.Config
	chats    repositories.ChatRepository

	mu        sync.Mutex
	summaries []models.ChatSummary
	closed    bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	onUpdate func()
}

// NewChatList builds the directory view. Open must be called before use.
func NewChatList(viewerID int, cfg config.Config, chats repositories.ChatRepository) *ChatList {
	return &ChatList{viewerID: viewerID, cfg: cfg, chats: chats}
}

// SetOnUpdate registers a callback invoked after every refresh. Must be set
// before Open.
func (l *ChatList) SetOnUpdate(fn func()) {
	l.onUpdate = fn
}

// Open performs the initial refresh and starts the periodic one.
func (l *ChatList) Open(ctx context.Context) {
	l.refresh(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)
	go l.run(runCtx)
}

// Close stops the refresh loop before returning.
func (l *ChatList) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

// Chats returns a snapshot of the current summaries.
func (l *ChatList) Chats() []models.ChatSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ChatSummary, len(l.summaries))
	copy(out, l.summaries)
	return out
}

func (l *ChatList) run(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.ListRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.refresh(ctx)
		}
	}
}

// refresh re-derives the directory. A fetch failure keeps the previous
// snapshot: list reads degrade to stale-or-empty, they never error out.
func (l *ChatList) refresh(ctx context.Context) {
	summaries, err := l.chats.ListChats(ctx, l.viewerID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("chat list refresh failed: %v", err)
		}
		return
	}

	now := timeNow()
	for i := range summaries {
		summaries[i].Online = presence.IsOnline(summaries[i].FriendLastSeen, now, l.cfg.PresenceThreshold)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.summaries = summaries
	l.mu.Unlock()

	if l.onUpdate != nil {
		l.onUpdate()
	}
}
