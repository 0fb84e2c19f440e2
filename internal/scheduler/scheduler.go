// Package scheduler runs the periodic pipeline jobs on cron intervals with
// database-level mutual exclusion across worker replicas.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"github.com/dataX-ai/fitness-pal/internal/persistence/postgres"
)

// Scheduler wraps a cron runner. Every job takes a postgres advisory lock
// before running and silently yields when another replica holds it, so the
// jobs stay single-flight across the fleet without any coordination service.
type Scheduler struct {
	cron   *cron.Cron
	pool   *pgxpool.Pool
	logger *log.Logger
}

// New constructs a Scheduler over the shared connection pool.
func New(pool *pgxpool.Pool) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		pool:   pool,
		logger: log.New(log.Writer(), "[scheduler] ", log.LstdFlags|log.Lshortfile),
	}
}

// AddLockedJob registers a job to run every interval under the given
// advisory lock key.
func (s *Scheduler) AddLockedJob(name string, interval time.Duration, lockKey int64, run func(ctx context.Context) error) error {
	return s.AddLockedJobSpec(name, fmt.Sprintf("@every %s", interval), lockKey, run)
}

// AddLockedJobSpec registers a job on a cron spec (e.g. "0 21 * * *") under
// the given advisory lock key. Used by the recap jobs, which fire at a time
// of day rather than on an interval.
func (s *Scheduler) AddLockedJobSpec(name, spec string, lockKey int64, run func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()

		acquired, release, err := postgres.TryAdvisoryLock(ctx, s.pool, lockKey)
		if err != nil {
			s.logger.Printf("%s: lock acquisition failed: %v", name, err)
			return
		}
		if !acquired {
			s.logger.Printf("%s: another instance holds the lock, skipping", name)
			return
		}
		defer release()

		if err := run(ctx); err != nil {
			s.logger.Printf("%s: %v", name, err)
		}
	})
	return err
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that closes once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
