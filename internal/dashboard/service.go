package dashboard

import (
	"context"
	"time"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

// DetailsStore is the read surface behind dashboard queries.
type DetailsStore interface {
	GetDetails(ctx context.Context, userID string) (domain.DashboardDetails, error)
	WeekStreak(ctx context.Context, userID string, now time.Time) (domain.WeekStreak, error)
}

// Overview bundles everything the dashboard endpoint returns for one user.
type Overview struct {
	Details domain.DashboardDetails
	Streak  domain.WeekStreak
	Rating  string
}

// Service serves dashboard reads over the precomputed rollups.
type Service struct {
	store DetailsStore
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store DetailsStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Overview returns the user's rollup, current-week streak and rating blurb.
func (s *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	details, err := s.store.GetDetails(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	streak, err := s.store.WeekStreak(ctx, userID, s.now())
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Details: details,
		Streak:  streak,
		Rating:  RatingDescription(details.FitnessScore, details.HasFitnessScore),
	}, nil
}
