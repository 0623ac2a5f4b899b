package models

import "time"

// Message represents a chat message. Rows are immutable once created except
// for the read flag, which only ever transitions false to true.
type Message struct {
	ID        int       `db:"id" json:"id"`
	ChatID    int       `db:"chat_id" json:"chat_id"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Text      string    `db:"text" json:"text"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatEvent is broadcast through the realtime channel.
type ChatEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}
