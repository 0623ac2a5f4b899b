package auth

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNoSession          = errors.New("no stored session")
)

// Session is the signed-in state. The token is what gets persisted locally so
// a restart resumes without re-authenticating.
type Session struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// Event is emitted on the session-change stream.
type Event struct {
	Type    string // "signed_in" or "signed_out"
	Session *Session
}

// Service implements email/password auth against the profiles table and owns
// the local session persistence. The store is optional: embedded clients pass
// one so restarts resume signed in, the relay runs without.
type Service struct {
	db     *sqlx.DB
	secret []byte
	store  *SessionStore

	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewService constructs the auth service.
func NewService(db *sqlx.DB, secret string, store *SessionStore) *Service {
	return &Service{
		db:     db,
		secret: []byte(secret),
		store:  store,
		subs:   make(map[int]chan Event),
	}
}

// SignUp registers a new user and signs them in.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}

	var userID int
	err = s.db.QueryRowxContext(ctx,
		`INSERT INTO profiles (email, password_hash, name) VALUES ($1, $2, $3) RETURNING id`,
		email, string(hash), name).Scan(&userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return Session{}, ErrEmailTaken
		}
		return Session{}, err
	}

	return s.establish(userID, email)
}

// SignIn authenticates an existing user.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	var row struct {
		ID           int    `db:"id"`
		PasswordHash string `db:"password_hash"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, password_hash FROM profiles WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	return s.establish(row.ID, email)
}

func (s *Service) establish(userID int, email string) (Session, error) {
	token, err := issueToken(s.secret, userID, email)
	if err != nil {
		return Session{}, err
	}
	session := Session{UserID: userID, Email: email, Token: token}
	if s.store != nil {
		if err := s.store.Save(session); err != nil {
			return Session{}, err
		}
	}
	s.broadcast(Event{Type: "signed_in", Session: &session})
	return session, nil
}

// SignOut clears the persisted session and notifies listeners.
func (s *Service) SignOut() error {
	var err error
	if s.store != nil {
		err = s.store.Clear()
	}
	s.broadcast(Event{Type: "signed_out"})
	return err
}

// Restore is the sign-in bootstrap: it resumes the persisted session under
// the given timeout (config.DefaultAuthTimeout unless overridden). Every
// failure mode — no stored session, invalid token, deleted account, a store
// that never answers — resolves to the signed-out state; restore never blocks
// startup past its deadline.
func (s *Service) Restore(ctx context.Context, timeout time.Duration) (Session, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := s.CurrentSession(ctx)
	if err != nil {
		return Session{}, false
	}
	s.broadcast(Event{Type: "signed_in", Session: &session})
	return session, true
}

// CurrentSession restores the persisted session and validates its token.
// Callers guard this with a deadline context; on timeout or any failure the
// safe fallback is the signed-out state.
func (s *Service) CurrentSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if s.store == nil {
		return Session{}, ErrNoSession
	}
	session, err := s.store.Load()
	if err != nil {
		return Session{}, err
	}
	userID, email, err := parseToken(s.secret, session.Token)
	if err != nil {
		_ = s.store.Clear()
		return Session{}, ErrNoSession
	}
	session.UserID = userID
	session.Email = email

	// Confirm the account still exists before resuming.
	var exists bool
	if err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE id=$1)`, userID); err != nil {
		return Session{}, err
	}
	if !exists {
		_ = s.store.Clear()
		return Session{}, ErrNoSession
	}
	return session, nil
}

// VerifyToken validates a bearer token and returns the user id. Used by the
// relay's auth middleware.
func (s *Service) VerifyToken(token string) (int, error) {
	userID, _, err := parseToken(s.secret, token)
	return userID, err
}

// OnChange subscribes to session-change events. The returned cancel func must
// be called to release the subscription.
func (s *Service) OnChange() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan Event, 4)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *Service) broadcast(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
