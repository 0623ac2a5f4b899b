package repositories

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"

	"chatneto/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	ListMessages(ctx context.Context, chatID int) ([]models.Message, error)
	Append(ctx context.Context, chatID int, senderID int, text string) (models.Message, error)
	MarkRead(ctx context.Context, chatID int, viewerID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// ListMessages returns the chat's messages in server creation order. Ties on
// created_at break on the server-assigned id, never on client clocks.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, chat_id, sender_id, text, read, created_at
         FROM messages WHERE chat_id=$1 ORDER BY created_at ASC, id ASC`, chatID)
	return msgs, err
}

// Append inserts the message and denormalizes last_message onto the parent
// chat. The insert is authoritative; the summary update is best-effort and a
// failure there never fails the send.
func (r *MessageRepo) Append(ctx context.Context, chatID int, senderID int, text string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, text) VALUES ($1, $2, $3)
         RETURNING id, chat_id, sender_id, text, read, created_at`,
		chatID, senderID, text).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE chats SET last_message=$1, last_message_at=$2 WHERE id=$3`,
		msg.Text, msg.CreatedAt, chatID); err != nil {
		log.Printf("chat summary update failed for chat %d: %v", chatID, err)
	}

	return msg, nil
}

// MarkRead flags every message in the chat not authored by the viewer as
// read. Idempotent; safe to call on every chat open and inbound message.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID int, viewerID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET read = TRUE WHERE chat_id=$1 AND sender_id <> $2 AND read = FALSE`,
		chatID, viewerID)
	return err
}
