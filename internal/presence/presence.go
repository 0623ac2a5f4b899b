package presence

import (
	"context"
	"time"
)

// IsOnline reports whether a last-seen timestamp is fresh enough to count as
// online. A missing timestamp is offline. Online is derived at read time and
// never stored.
func IsOnline(lastSeen *time.Time, now time.Time, threshold time.Duration) bool {
	if lastSeen == nil {
		return false
	}
	return now.Sub(*lastSeen) < threshold
}

// Toucher stamps a user's last_seen on a fixed cadence and on demand. All
// touches are fire-and-forget: liveness is advisory and a failed touch is
// swallowed.
type Toucher struct {
	store    LastSeenStore
	userID   int
	interval time.Duration
}

// LastSeenStore is the slice of the profile store the toucher needs.
type LastSeenStore interface {
	TouchLastSeen(ctx context.Context, userID int) error
}

// NewToucher builds a Toucher for the given user.
func NewToucher(store LastSeenStore, userID int, interval time.Duration) *Toucher {
	return &Toucher{store: store, userID: userID, interval: interval}
}

// Run touches immediately, then on every tick until the context is cancelled.
func (t *Toucher) Run(ctx context.Context) {
	t.Touch(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Touch(ctx)
		}
	}
}

// Touch stamps last_seen once, ignoring failures.
func (t *Toucher) Touch(ctx context.Context) {
	_ = t.store.TouchLastSeen(ctx, t.userID)
}
