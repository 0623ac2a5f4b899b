package chatview

import (
	"context"

	"chatneto/internal/config"
	"chatneto/internal/presence"
	"chatneto/internal/realtime"
	"chatneto/internal/repositories"
	"chatneto/internal/telemetry"
)

// Engine ties the sync workflow together for one signed-in user: ensure the
// chat exists, open live views, keep the directory fresh.
type Engine struct {
	userID   int
	cfg      config.Config
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	profiles repositories.ProfileRepository
	notifier realtime.Notifier
	audit    *telemetry.AuditEmitter
}

// NewEngine constructs an Engine for the signed-in user.
func NewEngine(userID int, cfg config.Config,
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	profiles repositories.ProfileRepository,
	notifier realtime.Notifier,
	audit *telemetry.AuditEmitter) *Engine {
	return &Engine{
		userID:   userID,
		cfg:      cfg,
		chats:    chats,
		messages: messages,
		profiles: profiles,
		notifier: notifier,
		audit:    audit,
	}
}

// OpenChatWith ensures the single chat with the other user exists and opens a
// live view on it. A creation failure propagates: the caller must not
// navigate into a chat that failed to create.
func (e *Engine) OpenChatWith(ctx context.Context, otherUserID int) (*ChatView, error) {
	chat, err := e.chats.CreateOrGetChat(ctx, e.userID, otherUserID)
	if err != nil {
		return nil, err
	}
	return e.OpenChat(ctx, chat.ID)
}

// OpenChat opens a live view on an existing chat.
func (e *Engine) OpenChat(ctx context.Context, chatID int) (*ChatView, error) {
	view := NewChatView(chatID, e.userID, e.cfg, e.chats, e.messages, e.profiles, e.notifier)
	view.audit = e.audit
	if err := view.Open(ctx); err != nil {
		return nil, err
	}
	return view, nil
}

// ChatList builds the live directory for the user.
func (e *Engine) ChatList() *ChatList {
	return NewChatList(e.userID, e.cfg, e.chats)
}

// RunPresence keeps the user's last_seen fresh for as long as the context
// lives. Run it once per signed-in session.
func (e *Engine) RunPresence(ctx context.Context) {
	presence.NewToucher(e.profiles, e.userID, e.cfg.TouchInterval).Run(ctx)
}
