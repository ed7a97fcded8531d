// Package dbtest provides migrated PostgreSQL pools for integration tests.
//
// By default each test gets a throwaway container and is skipped when Docker
// is not available. Setting STICKERS_TEST_DB makes the database mandatory:
//
//	STICKERS_TEST_DB=docker          container required, missing Docker fails
//	STICKERS_TEST_DB=postgres://...  existing server, one schema per test
package dbtest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"sticker-rank-bot/internal/pkg/db"
)

// EnvVar selects how integration tests reach PostgreSQL.
const EnvVar = "STICKERS_TEST_DB"

type mode int

const (
	modeSkip mode = iota
	modeContainer
	modeFailNoDocker
	modeDSN
)

func dockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// resolveMode picks the database source from the environment value and
// Docker availability. A set variable never resolves to modeSkip.
func resolveMode(env string, docker bool) mode {
	env = strings.TrimSpace(env)
	switch {
	case env == "":
		if docker {
			return modeContainer
		}
		return modeSkip
	case strings.EqualFold(env, "docker"):
		if docker {
			return modeContainer
		}
		return modeFailNoDocker
	default:
		return modeDSN
	}
}

// Setup returns a migrated, empty pool. Resources are released when the test
// finishes.
func Setup(t testing.TB) *pgxpool.Pool {
	t.Helper()
	env := os.Getenv(EnvVar)

	switch resolveMode(env, dockerAvailable()) {
	case modeSkip:
		t.Skip("Docker is not available, skipping integration test (set " + EnvVar + " to require a database)")
	case modeFailNoDocker:
		t.Fatalf("%s=docker but Docker is not available", EnvVar)
	case modeDSN:
		return setupSchema(t, env)
	}
	return setupContainer(t)
}

func setupContainer(t testing.TB) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return connect(t, connStr, "")
}

// setupSchema isolates the test in a fresh schema on an existing server.
func setupSchema(t testing.TB, dsn string) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("%s is set but the database is unreachable: %v", EnvVar, err)
	}
	defer admin.Close(context.Background())

	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn, err := pgx.Connect(context.Background(), dsn)
		if err != nil {
			return
		}
		defer conn.Close(context.Background())
		_, _ = conn.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
	})

	return connect(t, dsn, schema)
}

func connect(t testing.TB, connStr, schema string) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	cfg, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	cfg.MaxConns = 20
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx), "database unreachable")
	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

// SeedPlayer inserts a player and a catalog sticker so holdings can
// reference them.
func SeedPlayer(t testing.TB, pool *pgxpool.Pool, userID int64, stickerIDs ...string) {
	t.Helper()
	ctx := context.Background()

	_, err := pool.Exec(ctx,
		`INSERT INTO players (telegram_id, username) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, "player")
	require.NoError(t, err)

	for _, id := range stickerIDs {
		_, err := pool.Exec(ctx,
			`INSERT INTO stickers (id, name, base_rarity) VALUES ($1, $2, 3) ON CONFLICT DO NOTHING`,
			id, id)
		require.NoError(t, err)
	}
}
