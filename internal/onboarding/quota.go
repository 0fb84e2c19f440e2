package onboarding

import (
	"context"
	"time"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

// MessageCounter counts a user's inbound messages since an instant.
type MessageCounter interface {
	CountIncomingSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// Quota enforces the daily message ceiling for unpaid users. Days roll over
// at local midnight in a fixed reference timezone. Paid users bypass the
// quota unconditionally.
type Quota struct {
	counter MessageCounter
	ceiling int
	loc     *time.Location
	now     func() time.Time
}

// NewQuota constructs a Quota. tz must be a valid IANA zone name; an
// unloadable zone falls back to UTC.
func NewQuota(counter MessageCounter, ceiling int, tz string) *Quota {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return &Quota{counter: counter, ceiling: ceiling, loc: loc, now: time.Now}
}

func (q *Quota) midnight() time.Time {
	now := q.now().In(q.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, q.loc)
}

// Allow reports whether the user's current message is within quota. The
// inbound message has already been recorded when this runs, so the count
// includes it: a user may send exactly the ceiling of messages per day and
// is refused from the next one on.
func (q *Quota) Allow(ctx context.Context, user domain.User) (bool, error) {
	if user.Paid {
		return true, nil
	}
	count, err := q.counter.CountIncomingSince(ctx, user.ID, q.midnight())
	if err != nil {
		return false, err
	}
	return count <= q.ceiling, nil
}

// Remaining returns how many messages the user may still send today.
// Paid users get -1 (unlimited).
func (q *Quota) Remaining(ctx context.Context, user domain.User) (int, error) {
	if user.Paid {
		return -1, nil
	}
	count, err := q.counter.CountIncomingSince(ctx, user.ID, q.midnight())
	if err != nil {
		return 0, err
	}
	if remaining := q.ceiling - count; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}
