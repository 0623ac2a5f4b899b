package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// SessionStore persists the session to a local file so a process restart
// resumes the signed-in state without re-authenticating.
type SessionStore struct {
	path string
}

// NewSessionStore builds a store rooted at the given path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Save writes the session, creating parent directories as needed.
func (s *SessionStore) Save(session Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Load reads the persisted session. ErrNoSession when none is stored.
func (s *SessionStore) Load() (Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, ErrNoSession
	}
	if session.Token == "" {
		return Session{}, ErrNoSession
	}
	return session, nil
}

// Clear removes the persisted session. Missing file is not an error.
func (s *SessionStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
