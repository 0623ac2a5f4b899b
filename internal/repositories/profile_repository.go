package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chatneto/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository abstracts user profile persistence.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID int) (models.Profile, error)
	ListProfiles(ctx context.Context, excludeUserID int) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, userID int, update models.ProfileUpdate) (models.Profile, error)
	TouchLastSeen(ctx context.Context, userID int) error
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetProfile fetches a profile by user id.
func (r *ProfileRepo) GetProfile(ctx context.Context, userID int) (models.Profile, error) {
	var profile models.Profile
	err := r.db.GetContext(ctx, &profile,
		`SELECT id, email, name, avatar, bio, last_seen, created_at, updated_at
         FROM profiles WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return profile, err
}

// ListProfiles returns every profile except the viewer's own, for contact
// discovery. Ordered by name so the contact list is stable.
func (r *ProfileRepo) ListProfiles(ctx context.Context, excludeUserID int) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.SelectContext(ctx, &profiles,
		`SELECT id, email, name, avatar, bio, last_seen, created_at, updated_at
         FROM profiles WHERE id <> $1 ORDER BY name ASC, id ASC`, excludeUserID)
	return profiles, err
}

// UpdateProfile patches the editable fields and stamps updated_at.
func (r *ProfileRepo) UpdateProfile(ctx context.Context, userID int, update models.ProfileUpdate) (models.Profile, error) {
	var profile models.Profile
	err := r.db.QueryRowxContext(ctx,
		`UPDATE profiles SET
            name = COALESCE($2, name),
            avatar = COALESCE($3, avatar),
            bio = COALESCE($4, bio),
            updated_at = NOW()
         WHERE id=$1
         RETURNING id, email, name, avatar, bio, last_seen, created_at, updated_at`,
		userID, update.Name, update.Avatar, update.Bio).StructScan(&profile)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return profile, err
}

// TouchLastSeen stamps the liveness timestamp. Callers treat failures as
// advisory and never block on the result.
func (r *ProfileRepo) TouchLastSeen(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET last_seen = NOW() WHERE id=$1`, userID)
	return err
}
