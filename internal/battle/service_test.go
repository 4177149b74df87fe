package battle_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/shinobi/internal/battle"
	"github.com/cory-johannsen/shinobi/internal/game/character"
	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/content"
	"github.com/cory-johannsen/shinobi/internal/game/engagement"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

var (
	errNotFound = errors.New("not found")
	now         = time.Date(2026, 8, 8, 8, 0, 0, 0, time.UTC)
)

// memStore is an in-memory ProfileStore and EngagementStore.
type memStore struct {
	mu        sync.Mutex
	profiles  map[string]*character.Profile
	records   []*engagement.Record
	lookups   int
	recordErr error
	// beforeRecord runs under the lock at the start of Record.
	beforeRecord func(m *memStore)
}

func newMemStore(profiles ...*character.Profile) *memStore {
	m := &memStore{profiles: map[string]*character.Profile{}}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *memStore) GetByID(_ context.Context, id string) (*character.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	p, ok := m.profiles[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) Record(_ context.Context, rec *engagement.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeRecord != nil {
		m.beforeRecord(m)
	}
	if m.recordErr != nil {
		return m.recordErr
	}
	a, d := m.profiles[rec.AttackerID], m.profiles[rec.DefenderID]
	if a == nil || d == nil {
		return errNotFound
	}
	if rec.Prior != nil && !rec.Prior.Matches(a.CurrentHealth, d.CurrentHealth) {
		return engagement.ErrStale
	}
	ah, dh := rec.AttackerHealth, rec.DefenderHealth
	a.CurrentHealth, d.CurrentHealth = &ah, &dh
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*engagement.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errNotFound
}

func (m *memStore) ListByProfile(_ context.Context, profileID string, limit int) ([]*engagement.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*engagement.Record
	for _, r := range m.records {
		if r.AttackerID == profileID || r.DefenderID == profileID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func seedPtr(v uint64) *uint64 { return &v }

func profiles() (*character.Profile, *character.Profile) {
	a := &character.Profile{
		ID: "naruto", Name: "Naruto",
		Attributes:    map[stats.Attribute]int{stats.Vitality: 20, stats.Physical: 30, stats.Energy: 25},
		Techniques:    map[string]int{"leaf_hurricane": 1},
		EquippedItems: []string{"kunai"},
	}
	d := &character.Profile{
		ID: "neji", Name: "Neji",
		Attributes: map[stats.Attribute]int{stats.Vitality: 18, stats.Physical: 32, stats.Illusion: 12},
	}
	return a, d
}

func newService(t *testing.T, store *memStore) *battle.Service {
	t.Helper()
	c := content.Default()
	eng := combat.NewEngine(c, combat.DefaultTuning(), combat.UniformSelector{}, zaptest.NewLogger(t))
	return battle.NewService(eng, character.NewBuilder(c), store, store, zaptest.NewLogger(t),
		battle.WithClock(func() time.Time { return now }))
}

func TestEngage_RecordsOutcomeAndHealth(t *testing.T) {
	a, d := profiles()
	store := newMemStore(a, d)
	svc := newService(t, store)

	out, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "neji", Seed: seedPtr(7)})
	require.NoError(t, err)
	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, rec.ID, out.ID)
	assert.Equal(t, combat.ModeStandard, rec.Mode)
	assert.Equal(t, out.Result.State, rec.State)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, uint64(7), *rec.Seed)
	assert.NotEqual(t, combat.StateOngoing, out.Result.State)

	assert.Equal(t, out.Result.AttackerHealth, *store.profiles["naruto"].CurrentHealth)
	assert.Equal(t, out.Result.DefenderHealth, *store.profiles["neji"].CurrentHealth)

	got, err := svc.Engagement(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestEngage_SeededIsReproducible(t *testing.T) {
	run := func() combat.Result {
		a, d := profiles()
		svc := newService(t, newMemStore(a, d))
		out, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "neji", Seed: seedPtr(2024)})
		require.NoError(t, err)
		return out.Result
	}
	assert.Equal(t, run(), run())
}

func TestEngage_ModeFromBossFlag(t *testing.T) {
	a, d := profiles()
	d.Boss = true
	store := newMemStore(a, d)
	svc := newService(t, store)

	out, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "neji", Seed: seedPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, combat.ModeBoss, out.Result.Mode)

	standard := combat.ModeStandard
	out, err = svc.Engage(context.Background(), battle.EngageRequest{
		AttackerID: "naruto", DefenderID: "neji", Seed: seedPtr(1), Mode: &standard,
	})
	require.NoError(t, err)
	assert.Equal(t, combat.ModeStandard, out.Result.Mode)
}

func TestEngage_CarriesHealthBetweenEngagements(t *testing.T) {
	a, d := profiles()
	store := newMemStore(a, d)
	svc := newService(t, store)

	first, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "neji", Seed: seedPtr(3)})
	require.NoError(t, err)
	second, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "neji", Seed: seedPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, first.Result.AttackerHealth, second.Result.AttackerStart)
	assert.Equal(t, first.Result.DefenderHealth, second.Result.DefenderStart)
}

func TestEngage_InvalidRequests(t *testing.T) {
	a, d := profiles()
	store := newMemStore(a, d)
	svc := newService(t, store)

	for _, req := range []battle.EngageRequest{
		{AttackerID: "", DefenderID: "neji"},
		{AttackerID: "naruto", DefenderID: ""},
		{AttackerID: "naruto", DefenderID: "naruto"},
	} {
		_, err := svc.Engage(context.Background(), req)
		assert.ErrorIs(t, err, battle.ErrInvalidRequest)
	}
	assert.Zero(t, store.lookups)
}

func TestEngage_MissingProfile(t *testing.T) {
	a, _ := profiles()
	store := newMemStore(a)
	svc := newService(t, store)

	_, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "gaara"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errNotFound)
	assert.Contains(t, err.Error(), "gaara")
	assert.Empty(t, store.records)
}

func TestEngage_RecordFailure(t *testing.T) {
	a, d := profiles()
	store := newMemStore(a, d)
	store.recordErr = errors.New("connection reset")
	svc := newService(t, store)

	out, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "neji"})
	assert.Nil(t, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Nil(t, store.profiles["naruto"].CurrentHealth)
}

func TestEngage_RerunsWhenHealthChangesConcurrently(t *testing.T) {
	a, d := profiles()
	store := newMemStore(a, d)
	store.beforeRecord = func(m *memStore) {
		hp := 7
		m.profiles["naruto"].CurrentHealth = &hp
		m.beforeRecord = nil
	}
	svc := newService(t, store)

	out, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "neji", Seed: seedPtr(3)})
	require.NoError(t, err)
	require.Len(t, store.records, 1)
	assert.Equal(t, out.ID, store.records[0].ID)
	assert.Equal(t, 7, out.Result.AttackerStart)
	assert.Equal(t, 4, store.lookups)
}

func TestEngage_GivesUpAfterRepeatedConflicts(t *testing.T) {
	a, d := profiles()
	store := newMemStore(a, d)
	hp := 0
	store.beforeRecord = func(m *memStore) {
		hp++
		v := hp
		m.profiles["neji"].CurrentHealth = &v
	}
	svc := newService(t, store)

	_, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "neji"})
	assert.ErrorIs(t, err, engagement.ErrStale)
	assert.Empty(t, store.records)
	assert.Equal(t, 6, store.lookups)
}

func TestEngage_ConcurrentEngagementsKeepEveryHealthUpdate(t *testing.T) {
	a, d := profiles()
	c := &character.Profile{ID: "sakura", Name: "Sakura", Attributes: map[stats.Attribute]int{stats.Vitality: 15, stats.Physical: 20}}
	store := newMemStore(a, d, c)
	svc := newService(t, store)

	var wg sync.WaitGroup
	for _, attacker := range []string{"naruto", "sakura"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: attacker, DefenderID: "neji", Seed: seedPtr(9)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The second engagement must have started from the health the first one wrote.
	require.Len(t, store.records, 2)
	first, second := store.records[0], store.records[1]
	assert.Nil(t, first.Prior.Defender)
	require.NotNil(t, second.Prior.Defender)
	assert.Equal(t, first.DefenderHealth, *second.Prior.Defender)
	assert.Equal(t, second.DefenderHealth, *store.profiles["neji"].CurrentHealth)
}

func TestSimulate(t *testing.T) {
	svc := newService(t, newMemStore())
	a := &combat.Combatant{ID: "a", Name: "A", Base: stats.Block{Physical: 30, Vitality: 10}}
	d := &combat.Combatant{ID: "d", Name: "D", Base: stats.Block{Energy: 30, Vitality: 10}}

	first, err := svc.Simulate(context.Background(), battle.SimulateRequest{Attacker: a, Defender: d, Seed: seedPtr(5)})
	require.NoError(t, err)
	second, err := svc.Simulate(context.Background(), battle.SimulateRequest{Attacker: a, Defender: d, Seed: seedPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	unseeded, err := svc.Simulate(context.Background(), battle.SimulateRequest{Attacker: a, Defender: d, Mode: combat.ModeBoss})
	require.NoError(t, err)
	assert.Equal(t, combat.ModeBoss, unseeded.Mode)

	_, err = svc.Simulate(context.Background(), battle.SimulateRequest{Attacker: a})
	assert.ErrorIs(t, err, battle.ErrInvalidRequest)

	huge := &combat.Combatant{ID: "h", Name: "H", Base: stats.Block{Vitality: stats.MaxAttribute + 1}}
	_, err = svc.Simulate(context.Background(), battle.SimulateRequest{Attacker: a, Defender: huge, Seed: seedPtr(1)})
	assert.ErrorIs(t, err, battle.ErrInvalidRequest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Simulate(ctx, battle.SimulateRequest{Attacker: a, Defender: d})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHistory(t *testing.T) {
	a, d := profiles()
	store := newMemStore(a, d)
	svc := newService(t, store)
	for i := 0; i < 3; i++ {
		_, err := svc.Engage(context.Background(), battle.EngageRequest{AttackerID: "naruto", DefenderID: "neji", Seed: seedPtr(uint64(i))})
		require.NoError(t, err)
	}

	recs, err := svc.History(context.Background(), "neji", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	recs, err = svc.History(context.Background(), "naruto", 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = svc.History(context.Background(), "", 5)
	assert.ErrorIs(t, err, battle.ErrInvalidRequest)

	_, err = svc.Engagement(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errNotFound)
}
