package models

import "time"

// Profile is a user record. last_seen is stamped by the liveness toucher and
// never read back as an online flag directly; online is derived at read time.
type Profile struct {
	ID        int        `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Name      string     `db:"name" json:"name"`
	Avatar    string     `db:"avatar" json:"avatar"`
	Bio       string     `db:"bio" json:"bio"`
	LastSeen  *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ProfileUpdate carries the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
	Bio    *string `json:"bio,omitempty"`
}
