// Package summary sends end-of-day and end-of-week workout recaps to users
// over the chat transport.
package summary

import (
	"context"
	"log"
	"time"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

// Digests is the read surface the recap jobs need.
type Digests interface {
	SessionDigests(ctx context.Context, from, to time.Time) ([]domain.SessionDigest, error)
}

// Messenger delivers recap messages.
type Messenger interface {
	SendText(ctx context.Context, user domain.User, body string) error
}

// Sender builds and delivers per-user workout recaps. Day and week
// boundaries follow a fixed reference timezone, same as the quota rollover.
type Sender struct {
	store     Digests
	messenger Messenger
	loc       *time.Location
	logger    *log.Logger
	now       func() time.Time
}

// NewSender constructs a Sender. tz must be a valid IANA zone name; an
// unloadable zone falls back to UTC.
func NewSender(store Digests, messenger Messenger, tz string) *Sender {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return &Sender{
		store:     store,
		messenger: messenger,
		loc:       loc,
		logger:    log.New(log.Writer(), "[summary] ", log.LstdFlags|log.Lshortfile),
		now:       time.Now,
	}
}

// SendDaily messages every user who completed a workout today. One user's
// delivery failure never blocks the rest; it returns how many recaps went
// out.
func (s *Sender) SendDaily(ctx context.Context) (int, error) {
	from, to := dayRange(s.now().In(s.loc))
	return s.send(ctx, from, to, dailyMessage)
}

// SendWeekly covers the previous Monday-to-Sunday week.
func (s *Sender) SendWeekly(ctx context.Context) (int, error) {
	from, to := previousWeekRange(s.now().In(s.loc))
	return s.send(ctx, from, to, weeklyMessage)
}

func (s *Sender) send(ctx context.Context, from, to time.Time, format func([]domain.SessionDigest) string) (int, error) {
	digests, err := s.store.SessionDigests(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if len(digests) == 0 {
		s.logger.Printf("no completed sessions between %s and %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
		return 0, nil
	}

	sent := 0
	for _, group := range groupByUser(digests) {
		user := domain.User{ID: group[0].UserID, PhoneNumber: group[0].PhoneNumber}
		if err := s.messenger.SendText(ctx, user, format(group)); err != nil {
			s.logger.Printf("recap to user %s failed: %v", user.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

// groupByUser splits digests into per-user runs. Digests arrive ordered by
// user, so consecutive folding is enough.
func groupByUser(digests []domain.SessionDigest) [][]domain.SessionDigest {
	var groups [][]domain.SessionDigest
	for _, d := range digests {
		if len(groups) == 0 || groups[len(groups)-1][0].UserID != d.UserID {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], d)
	}
	return groups
}

// dayRange is [local midnight, next midnight) for now's calendar day.
func dayRange(now time.Time) (time.Time, time.Time) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return from, from.AddDate(0, 0, 1)
}

// previousWeekRange is the Monday-to-Sunday week before the one containing
// now, as [monday midnight, next monday midnight).
func previousWeekRange(now time.Time) (time.Time, time.Time) {
	weekday := (int(now.Weekday()) + 6) % 7 // Monday = 0
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monday := midnight.AddDate(0, 0, -weekday-7)
	return monday, monday.AddDate(0, 0, 7)
}
