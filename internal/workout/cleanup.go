package workout

import (
	"context"
	"log"
	"time"
)

// StaleSessionDeleter purges incomplete sessions in batches.
type StaleSessionDeleter interface {
	DeleteStaleSessions(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// Cleaner is the periodic retention job for sessions that never produced
// usable exercises.
type Cleaner struct {
	store     StaleSessionDeleter
	retention time.Duration
	batchSize int
	logger    *log.Logger
}

// NewCleaner constructs a Cleaner. Sessions older than retention that were
// never finalized are eligible for deletion.
func NewCleaner(store StaleSessionDeleter, retention time.Duration, batchSize int) *Cleaner {
	return &Cleaner{
		store:     store,
		retention: retention,
		batchSize: batchSize,
		logger:    log.New(log.Writer(), "[cleanup] ", log.LstdFlags|log.Lshortfile),
	}
}

// Run deletes one pass of stale incomplete sessions and returns the count.
func (c *Cleaner) Run(ctx context.Context) (int64, error) {
	deleted, err := c.store.DeleteStaleSessions(ctx, time.Now().Add(-c.retention), c.batchSize)
	if err != nil {
		return deleted, err
	}
	if deleted > 0 {
		c.logger.Printf("deleted %d stale incomplete sessions", deleted)
	}
	return deleted, nil
}
