package models

import "time"

// Chat represents a private chat between exactly two users. The participant
// pair is stored normalized (participant1_id < participant2_id) so the unique
// constraint covers the unordered pair.
type Chat struct {
	ID             int        `db:"id" json:"id"`
	Participant1ID int        `db:"participant1_id" json:"participant1_id"`
	Participant2ID int        `db:"participant2_id" json:"participant2_id"`
	LastMessage    string     `db:"last_message" json:"last_message"`
	LastMessageAt  *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ChatSummary is the per-viewer view of a chat used by the chat list: the
// counterpart's display data joined in, plus the unread count.
type ChatSummary struct {
	ChatID         int        `db:"id" json:"chat_id"`
	FriendID       int        `db:"friend_id" json:"friend_id"`
	FriendName     string     `db:"friend_name" json:"friend_name"`
	FriendAvatar   string     `db:"friend_avatar" json:"friend_avatar"`
	FriendLastSeen *time.Time `db:"friend_last_seen" json:"friend_last_seen,omitempty"`
	Online         bool       `json:"online"`
	LastMessage    string     `db:"last_message" json:"last_message"`
	LastMessageAt  time.Time  `db:"last_message_at" json:"last_message_at"`
	Unread         int        `db:"unread" json:"unread"`
}
