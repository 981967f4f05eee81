// Package testutil holds helpers for Postgres-backed tests. Those tests are
// skipped unless TEST_DATABASE_URL points at a reachable database.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-admission/internal/database"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
)

const testDBLockID int64 = 730412991

// NewTestPool connects to TEST_DATABASE_URL, applies the schema and holds
// the shared test lock until the test ends.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	cfg.MaxConns = 16

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	t.Cleanup(pool.Close)

	lockTestDB(t, pool)
	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return pool
}

// TruncateAll empties every table.
func TruncateAll(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(ctx, `TRUNCATE badges, waitlist_entries, registrations, participants, events`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

// InsertEvent writes e directly, standing in for the event service.
func InsertEvent(t *testing.T, ctx context.Context, pool *pgxpool.Pool, e model.Event) {
	t.Helper()
	var start *time.Time
	if !e.StartTime.IsZero() {
		start = &e.StartTime
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO events (id, title, location, start_time, capacity, status, waitlist_enabled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Title, e.Location, start, e.Capacity, e.Status, e.WaitlistEnabled)
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
}

// InsertParticipant writes p directly.
func InsertParticipant(t *testing.T, ctx context.Context, pool *pgxpool.Pool, p model.Participant) {
	t.Helper()
	_, err := pool.Exec(ctx, `INSERT INTO participants (id, name, email) VALUES ($1, $2, $3)`, p.ID, p.Name, p.Email)
	if err != nil {
		t.Fatalf("insert participant: %v", err)
	}
}

// lockTestDB serialises test packages sharing one database.
func lockTestDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		conn.Release()
		t.Fatalf("acquire test lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		conn.Release()
	})
}
