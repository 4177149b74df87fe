package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/shinobi/internal/game/character"
	"github.com/cory-johannsen/shinobi/internal/game/powerstate"
)

// ErrProfileNotFound is returned when a profile lookup or update matches no row.
var ErrProfileNotFound = errors.New("profile not found")

// ErrProfileExists is returned when creating a profile whose ID is already taken.
var ErrProfileExists = errors.New("profile already exists")

const profileColumns = `id, name, attributes, elements, techniques, equipped_items, current_health,
	cursed_seal_tier, cursed_seal_at, awakened_eye_tier, awakened_eye_at, boss,
	created_at, updated_at`

// ProfileRepository provides profile persistence operations.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a ProfileRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a new profile and returns it with timestamps set.
//
// Precondition: p.ID and p.Name must be non-empty.
// Postcondition: Returns the stored profile, or ErrProfileExists on a duplicate ID.
func (r *ProfileRepository) Create(ctx context.Context, p *character.Profile) (*character.Profile, error) {
	sealTier, sealAt := activationArgs(p.CursedSeal)
	eyeTier, eyeAt := activationArgs(p.AwakenedEye)
	row := r.db.QueryRow(ctx, `
		INSERT INTO profiles
			(id, name, attributes, elements, techniques, equipped_items, current_health,
			 cursed_seal_tier, cursed_seal_at, awakened_eye_tier, awakened_eye_at, boss)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+profileColumns,
		p.ID, p.Name,
		nonNil(p.Attributes), nonNil(p.Elements), nonNil(p.Techniques), nonNilSlice(p.EquippedItems),
		p.CurrentHealth, sealTier, sealAt, eyeTier, eyeAt, p.Boss,
	)
	out, err := scanProfile(row)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrProfileExists
		}
		return nil, fmt.Errorf("inserting profile: %w", err)
	}
	return out, nil
}

// GetByID retrieves a profile by its primary key.
//
// Precondition: id must be non-empty.
// Postcondition: Returns the Profile or ErrProfileNotFound.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*character.Profile, error) {
	row := r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

// SaveHealth persists a profile's current health.
//
// Precondition: id must be non-empty; hp >= 0.
// Postcondition: Returns nil on success, ErrProfileNotFound if no row updated.
func (r *ProfileRepository) SaveHealth(ctx context.Context, id string, hp int) error {
	return saveHealth(ctx, r.db, id, hp)
}

// ActivatePower records an activation of power state kind at tier.
// Activating one kind leaves the other kind's record untouched; the snapshot
// builder keeps only the most recent one in force.
//
// Precondition: kind is powerstate.CursedSeal or powerstate.AwakenedEye; tier >= 1.
// Postcondition: Returns nil on success, ErrProfileNotFound if no row updated.
func (r *ProfileRepository) ActivatePower(ctx context.Context, id, kind string, tier int, at time.Time) error {
	var query string
	switch kind {
	case powerstate.CursedSeal:
		query = `UPDATE profiles SET cursed_seal_tier = $2, cursed_seal_at = $3, updated_at = NOW() WHERE id = $1`
	case powerstate.AwakenedEye:
		query = `UPDATE profiles SET awakened_eye_tier = $2, awakened_eye_at = $3, updated_at = NOW() WHERE id = $1`
	default:
		return fmt.Errorf("unknown power state kind %q", kind)
	}
	if tier < 1 {
		return fmt.Errorf("power state tier must be >= 1, got %d", tier)
	}
	tag, err := r.db.Exec(ctx, query, id, tier, at)
	if err != nil {
		return fmt.Errorf("activating %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func saveHealth(ctx context.Context, db execer, id string, hp int) error {
	tag, err := db.Exec(ctx, `
		UPDATE profiles SET current_health = $2, updated_at = NOW()
		WHERE id = $1`,
		id, hp,
	)
	if err != nil {
		return fmt.Errorf("saving profile health: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*character.Profile, error) {
	var (
		p                 character.Profile
		sealTier, eyeTier *int
		sealAt, eyeAt     *time.Time
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Attributes, &p.Elements, &p.Techniques, &p.EquippedItems, &p.CurrentHealth,
		&sealTier, &sealAt, &eyeTier, &eyeAt, &p.Boss,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.CursedSeal = activation(sealTier, sealAt)
	p.AwakenedEye = activation(eyeTier, eyeAt)
	return &p, nil
}

func activation(tier *int, at *time.Time) *character.Activation {
	if tier == nil || at == nil {
		return nil
	}
	return &character.Activation{Tier: *tier, ActivatedAt: *at}
}

func activationArgs(a *character.Activation) (*int, *time.Time) {
	if a == nil {
		return nil, nil
	}
	return &a.Tier, &a.ActivatedAt
}

func nonNil[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
