// Package battle wires profile storage, the snapshot builder and the combat
// engine into the engagement use cases served over gRPC and HTTP.
package battle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shinobi/internal/game/character"
	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/dice"
	"github.com/cory-johannsen/shinobi/internal/game/engagement"
)

// ErrInvalidRequest is returned for requests that fail validation before any
// storage access.
var ErrInvalidRequest = errors.New("invalid request")

// DefaultHistoryLimit caps History when the caller passes a non-positive limit.
const DefaultHistoryLimit = 20

// ProfileStore loads persisted profiles.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*character.Profile, error)
}

// EngagementStore persists engagement outcomes. Record must write the record and
// both final health values atomically.
type EngagementStore interface {
	Record(ctx context.Context, rec *engagement.Record) error
	Get(ctx context.Context, id uuid.UUID) (*engagement.Record, error)
	ListByProfile(ctx context.Context, profileID string, limit int) ([]*engagement.Record, error)
}

// EngageRequest asks for a persisted engagement between two stored profiles.
type EngageRequest struct {
	AttackerID string
	DefenderID string
	// Mode overrides the mode derived from the defender's boss flag.
	Mode *combat.Mode
	// Seed makes the engagement reproducible; nil draws from crypto/rand.
	Seed *uint64
}

// SimulateRequest asks for an engagement between caller-provided snapshots.
// Nothing is persisted.
type SimulateRequest struct {
	Attacker *combat.Combatant
	Defender *combat.Combatant
	Mode     combat.Mode
	Seed     *uint64
	// At is the instant power-state expiry is evaluated against; zero means now.
	At time.Time
}

// Outcome is the result of a persisted engagement.
type Outcome struct {
	ID     uuid.UUID     `json:"id"`
	Result combat.Result `json:"result"`
}

// Service runs engagements.
type Service struct {
	engine      *combat.Engine
	builder     *character.Builder
	profiles    ProfileStore
	engagements EngagementStore
	logger      *zap.Logger
	now         func() time.Time
	random      dice.Source
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom replaces the crypto/rand source used for unseeded engagements.
func WithRandom(src dice.Source) Option {
	return func(s *Service) { s.random = src }
}

// NewService creates a Service.
//
// Precondition: engine, builder, profiles and engagements must be non-nil.
// A nil logger disables logging.
// Postcondition: Returns a non-nil Service.
func NewService(engine *combat.Engine, builder *character.Builder, profiles ProfileStore, engagements EngagementStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		engine:      engine,
		builder:     builder,
		profiles:    profiles,
		engagements: engagements,
		logger:      logger,
		now:         time.Now,
		random:      dice.NewCryptoSource(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// maxEngageAttempts bounds how often Engage reruns an engagement whose profiles
// were changed by a concurrent writer.
const maxEngageAttempts = 3

// Engage loads both profiles, snapshots them, runs the engine and records the
// outcome, writing both final health values back. When another writer changes
// either profile's health before the outcome is recorded, the engagement is
// rerun from fresh snapshots, up to maxEngageAttempts times.
//
// Precondition: req.AttackerID and req.DefenderID must be non-empty and distinct.
// Postcondition: Returns the recorded Outcome, or a non-nil error and nothing
// persisted; engagement.ErrStale once every attempt lost the race.
func (s *Service) Engage(ctx context.Context, req EngageRequest) (*Outcome, error) {
	if req.AttackerID == "" || req.DefenderID == "" {
		return nil, fmt.Errorf("%w: attacker and defender ids are required", ErrInvalidRequest)
	}
	if req.AttackerID == req.DefenderID {
		return nil, fmt.Errorf("%w: a profile cannot engage itself", ErrInvalidRequest)
	}

	for attempt := 1; ; attempt++ {
		out, err := s.engage(ctx, req)
		if !errors.Is(err, engagement.ErrStale) || attempt == maxEngageAttempts {
			return out, err
		}
		s.logger.Warn("profile health changed during engagement, retrying",
			zap.String("attacker", req.AttackerID),
			zap.String("defender", req.DefenderID),
			zap.Int("attempt", attempt),
		)
	}
}

func (s *Service) engage(ctx context.Context, req EngageRequest) (*Outcome, error) {
	attProfile, err := s.profiles.GetByID(ctx, req.AttackerID)
	if err != nil {
		return nil, fmt.Errorf("loading attacker %q: %w", req.AttackerID, err)
	}
	defProfile, err := s.profiles.GetByID(ctx, req.DefenderID)
	if err != nil {
		return nil, fmt.Errorf("loading defender %q: %w", req.DefenderID, err)
	}

	now := s.now()
	attacker, err := s.builder.Snapshot(attProfile, now)
	if err != nil {
		return nil, fmt.Errorf("building attacker snapshot: %w", err)
	}
	defender, err := s.builder.Snapshot(defProfile, now)
	if err != nil {
		return nil, fmt.Errorf("building defender snapshot: %w", err)
	}

	mode := character.ModeFor(defProfile)
	if req.Mode != nil {
		mode = *req.Mode
	}

	res := s.engine.Run(attacker, defender, mode, s.source(req.Seed), now)
	rec := engagement.New(attacker.ID, defender.ID, res, req.Seed, now)
	rec.Prior = &engagement.Prior{Attacker: attProfile.CurrentHealth, Defender: defProfile.CurrentHealth}
	if err := s.engagements.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording engagement: %w", err)
	}

	s.logger.Info("engagement recorded",
		zap.String("engagement_id", rec.ID.String()),
		zap.String("attacker", attacker.ID),
		zap.String("defender", defender.ID),
		zap.String("mode", mode.String()),
		zap.String("state", string(res.State)),
		zap.Int("turns", res.Turns),
	)
	return &Outcome{ID: rec.ID, Result: res}, nil
}

// Simulate runs an engagement between the request's snapshots without touching storage.
//
// Precondition: req.Attacker and req.Defender must be non-nil.
// Postcondition: Returns a terminal Result or ErrInvalidRequest.
func (s *Service) Simulate(ctx context.Context, req SimulateRequest) (combat.Result, error) {
	if req.Attacker == nil || req.Defender == nil {
		return combat.Result{}, fmt.Errorf("%w: attacker and defender snapshots are required", ErrInvalidRequest)
	}
	if err := validateSnapshots(req.Attacker, req.Defender); err != nil {
		return combat.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return combat.Result{}, err
	}
	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	return s.engine.Run(req.Attacker, req.Defender, req.Mode, s.source(req.Seed), at), nil
}

// Engagement returns a recorded engagement.
func (s *Service) Engagement(ctx context.Context, id uuid.UUID) (*engagement.Record, error) {
	rec, err := s.engagements.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading engagement %s: %w", id, err)
	}
	return rec, nil
}

// History returns the most recent engagements of profileID, newest first.
// A non-positive limit uses DefaultHistoryLimit.
func (s *Service) History(ctx context.Context, profileID string, limit int) ([]*engagement.Record, error) {
	if profileID == "" {
		return nil, fmt.Errorf("%w: profile id is required", ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	recs, err := s.engagements.ListByProfile(ctx, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing engagements of %q: %w", profileID, err)
	}
	return recs, nil
}

// source returns a fresh seeded source for seed, or the shared random source.
// Either way draws are logged at debug.
func (s *Service) source(seed *uint64) dice.Source {
	var src dice.Source = s.random
	if seed != nil {
		src = dice.NewSeededSource(*seed)
	}
	return dice.NewLoggedSource(src, s.logger)
}
