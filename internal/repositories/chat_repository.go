package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chatneto/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	ListChats(ctx context.Context, viewerID int) ([]models.ChatSummary, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateOrGetChat returns the single chat for the unordered user pair,
// creating it if absent. Concurrent callers racing to create the same pair are
// resolved by the unique constraint: a duplicate-key failure means someone
// else just created it, so the row is re-read instead of failing.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, error) {
	if userID == friendID {
		return models.Chat{}, errors.New("cannot create chat with self")
	}
	participants := []int{userID, friendID}
	sort.Ints(participants)
	p1, p2 := participants[0], participants[1]

	chat, err := r.getByPair(ctx, p1, p2)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, ErrChatNotFound) {
		return models.Chat{}, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO chats (participant1_id, participant2_id) VALUES ($1, $2)
         RETURNING id, participant1_id, participant2_id, last_message, last_message_at, created_at`,
		p1, p2).StructScan(&chat)
	if err != nil {
		if isUniqueViolation(err) {
			return r.getByPair(ctx, p1, p2)
		}
		return models.Chat{}, err
	}
	return chat, nil
}

func (r *ChatRepo) getByPair(ctx context.Context, p1, p2 int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT id, participant1_id, participant2_id, last_message, last_message_at, created_at
         FROM chats WHERE participant1_id=$1 AND participant2_id=$2`, p1, p2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT id, participant1_id, participant2_id, last_message, last_message_at, created_at
         FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND (participant1_id=$2 OR participant2_id=$2))`,
		chatID, userID)
	return exists, err
}

// ListChats returns the viewer's chats, newest activity first. Chats with no
// messages fall back to creation time for ordering. The counterpart's display
// fields and the unread count are joined in; online status is derived by the
// caller from friend_last_seen.
func (r *ChatRepo) ListChats(ctx context.Context, viewerID int) ([]models.ChatSummary, error) {
	query := `SELECT c.id,
            p.id AS friend_id,
            p.name AS friend_name,
            p.avatar AS friend_avatar,
            p.last_seen AS friend_last_seen,
            c.last_message,
            COALESCE(c.last_message_at, c.created_at) AS last_message_at,
            (SELECT COUNT(*) FROM messages m
                WHERE m.chat_id = c.id AND m.read = FALSE AND m.sender_id <> $1) AS unread
        FROM chats c
        JOIN profiles p
            ON p.id = CASE WHEN c.participant1_id = $1 THEN c.participant2_id ELSE c.participant1_id END
        WHERE c.participant1_id = $1 OR c.participant2_id = $1
        ORDER BY COALESCE(c.last_message_at, c.created_at) DESC`

	var summaries []models.ChatSummary
	err := r.db.SelectContext(ctx, &summaries, query, viewerID)
	return summaries, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
