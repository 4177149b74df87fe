// Package testutil provides test helpers for running repositories against a
// disposable PostgreSQL container.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/shinobi/internal/config"
	"github.com/cory-johannsen/shinobi/internal/storage/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// Schema is the DDL the repositories expect. Production schema management is
// handled outside this module.
const Schema = `
	CREATE TABLE IF NOT EXISTS profiles (
		id                TEXT         PRIMARY KEY,
		name              TEXT         NOT NULL,
		attributes        JSONB        NOT NULL DEFAULT '{}',
		elements          JSONB        NOT NULL DEFAULT '{}',
		techniques        JSONB        NOT NULL DEFAULT '{}',
		equipped_items    TEXT[]       NOT NULL DEFAULT '{}',
		current_health    INTEGER,
		cursed_seal_tier  INTEGER,
		cursed_seal_at    TIMESTAMPTZ,
		awakened_eye_tier INTEGER,
		awakened_eye_at   TIMESTAMPTZ,
		boss              BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS engagements (
		id              UUID         PRIMARY KEY,
		attacker_id     TEXT         NOT NULL REFERENCES profiles (id),
		defender_id     TEXT         NOT NULL REFERENCES profiles (id),
		mode            TEXT         NOT NULL,
		state           TEXT         NOT NULL,
		winner          TEXT         NOT NULL,
		turns           INTEGER      NOT NULL,
		cap_reached     BOOLEAN      NOT NULL,
		attacker_health INTEGER      NOT NULL,
		defender_health INTEGER      NOT NULL,
		seed            BIGINT,
		log             JSONB        NOT NULL,
		created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_engagements_attacker ON engagements (attacker_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_engagements_defender ON engagements (defender_id, created_at DESC);
`

// NewPool starts a container, applies Schema and returns its raw pool.
// The test is skipped under -short.
//
// Precondition: Docker must be available unless testing.Short().
// Postcondition: Returns a pool on a fresh, migrated database, or skips/fails the test.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := NewPostgresContainer(t)
	pc.ApplySchema(t)
	return pc.RawPool
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool. The test is skipped under -short.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "shinobi",
			"POSTGRES_PASSWORD": "shinobi",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "shinobi",
		Password:        "shinobi",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	pc := &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	return pc
}

// ApplySchema runs Schema directly against the container.
//
// Precondition: Pool must be connected.
// Postcondition: The profiles and engagements tables exist in the test database.
func (pc *PostgresContainer) ApplySchema(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	_, err := pc.RawPool.Exec(ctx, Schema)
	if err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	t.Logf("schema applied [%s]", time.Since(start))
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return pc.Config.DSN()
}
