package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/engagement"
)

// ErrEngagementNotFound is returned when an engagement lookup yields no results.
var ErrEngagementNotFound = errors.New("engagement not found")

const engagementColumns = `id, attacker_id, defender_id, mode, state, winner, turns, cap_reached,
	attacker_health, defender_health, seed, log, created_at`

// EngagementRepository persists engagement outcomes.
type EngagementRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewEngagementRepository creates an EngagementRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool. A nil logger disables logging.
func NewEngagementRepository(db *pgxpool.Pool, logger *zap.Logger) *EngagementRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngagementRepository{db: db, logger: logger}
}

// Record stores rec and writes both final health values back to the profiles in
// a single transaction. Either everything is written or nothing is. Both profile
// rows stay locked until the transaction ends, so concurrent engagements over a
// shared profile are serialized; when rec.Prior is set and either profile's
// health no longer matches it, nothing is written and engagement.ErrStale is returned.
//
// Precondition: rec.ID must be set; both profiles must exist.
// Postcondition: Returns nil on success, ErrProfileNotFound if either profile is
// missing, or engagement.ErrStale.
func (r *EngagementRepository) Record(ctx context.Context, rec *engagement.Record) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning engagement transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.logger.Warn("rolling back engagement transaction", zap.Error(rbErr))
			}
		}
	}()

	health, err := lockHealth(ctx, tx, rec.AttackerID, rec.DefenderID)
	if err != nil {
		return err
	}
	attHP, attFound := health[rec.AttackerID]
	defHP, defFound := health[rec.DefenderID]
	if !attFound || !defFound {
		return ErrProfileNotFound
	}
	if rec.Prior != nil && !rec.Prior.Matches(attHP, defHP) {
		return engagement.ErrStale
	}

	var seed *int64
	if rec.Seed != nil {
		s := int64(*rec.Seed)
		seed = &s
	}
	entries := rec.Log
	if entries == nil {
		entries = []combat.LogEntry{}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO engagements
			(id, attacker_id, defender_id, mode, state, winner, turns, cap_reached,
			 attacker_health, defender_health, seed, log, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		rec.ID, rec.AttackerID, rec.DefenderID,
		rec.Mode.String(), string(rec.State), rec.Winner.String(),
		rec.Turns, rec.CapReached, rec.AttackerHealth, rec.DefenderHealth,
		seed, entries, rec.CreatedAt,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("inserting engagement: %w", err)
	}

	if err = saveHealth(ctx, tx, rec.AttackerID, rec.AttackerHealth); err != nil {
		return err
	}
	if err = saveHealth(ctx, tx, rec.DefenderID, rec.DefenderHealth); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing engagement: %w", err)
	}
	r.logger.Debug("engagement recorded",
		zap.String("engagement_id", rec.ID.String()),
		zap.String("attacker", rec.AttackerID),
		zap.String("defender", rec.DefenderID),
	)
	return nil
}

// lockHealth locks the given profile rows for the rest of tx, in ID order, and
// returns their current health keyed by ID. Missing profiles are absent from the map.
func lockHealth(ctx context.Context, tx pgx.Tx, ids ...string) (map[string]*int, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, current_health FROM profiles
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("locking profiles: %w", err)
	}
	defer rows.Close()

	health := make(map[string]*int, len(ids))
	for rows.Next() {
		var (
			id string
			hp *int
		)
		if err := rows.Scan(&id, &hp); err != nil {
			return nil, fmt.Errorf("scanning locked profile: %w", err)
		}
		health[id] = hp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("locking profiles: %w", err)
	}
	return health, nil
}

// Get retrieves an engagement by ID.
//
// Postcondition: Returns the Record or ErrEngagementNotFound.
func (r *EngagementRepository) Get(ctx context.Context, id uuid.UUID) (*engagement.Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+engagementColumns+` FROM engagements WHERE id = $1`, id)
	rec, err := scanEngagement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEngagementNotFound
		}
		return nil, fmt.Errorf("querying engagement: %w", err)
	}
	return rec, nil
}

// ListByProfile returns up to limit engagements in which profileID took part,
// most recent first.
//
// Precondition: limit > 0.
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *EngagementRepository) ListByProfile(ctx context.Context, profileID string, limit int) ([]*engagement.Record, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+engagementColumns+`
		FROM engagements
		WHERE attacker_id = $1 OR defender_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`,
		profileID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing engagements: %w", err)
	}
	defer rows.Close()

	recs := make([]*engagement.Record, 0)
	for rows.Next() {
		rec, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning engagement row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanEngagement(row pgx.Row) (*engagement.Record, error) {
	var (
		rec                 engagement.Record
		mode, state, winner string
		seed                *int64
	)
	if err := row.Scan(
		&rec.ID, &rec.AttackerID, &rec.DefenderID, &mode, &state, &winner,
		&rec.Turns, &rec.CapReached, &rec.AttackerHealth, &rec.DefenderHealth,
		&seed, &rec.Log, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := rec.Mode.UnmarshalText([]byte(mode)); err != nil {
		return nil, fmt.Errorf("decoding engagement mode: %w", err)
	}
	if err := rec.Winner.UnmarshalText([]byte(winner)); err != nil {
		return nil, fmt.Errorf("decoding engagement winner: %w", err)
	}
	rec.State = combat.State(state)
	if seed != nil {
		s := uint64(*seed)
		rec.Seed = &s
	}
	return &rec, nil
}
