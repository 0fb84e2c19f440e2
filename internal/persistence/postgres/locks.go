package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Lock keys for periodic jobs. Each job takes its lock before running and
// no-ops when another instance already holds it.
const (
	LockExtractionPass = int64(0x66697470) // "fitp" extraction pass
	LockSessionCleanup = LockExtractionPass + 1
	LockDashboardRoll  = LockExtractionPass + 2
	LockDailySummary   = LockExtractionPass + 3
	LockWeeklySummary  = LockExtractionPass + 4
)

// TryAdvisoryLock attempts a session-level advisory lock on key. On success
// it returns true plus a release function; on contention it returns false
// with a nil release. The lock is tied to a dedicated connection, so release
// must always be called when acquired.
func TryAdvisoryLock(ctx context.Context, pool *pgxpool.Pool, key int64) (bool, func(), error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return false, nil, err
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return false, nil, err
	}
	if !acquired {
		conn.Release()
		return false, nil, nil
	}

	release := func() {
		// Unlock on a background context: the job's context may already be
		// cancelled by the time we release.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}
	return true, release, nil
}
