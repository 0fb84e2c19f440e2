// Package onboarding implements the conversational state machine that
// collects a user's profile and routes post-onboarding messages into the
// workout pipeline.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dataX-ai/fitness-pal/internal/domain"
	"github.com/dataX-ai/fitness-pal/internal/nlp"
	"github.com/dataX-ai/fitness-pal/internal/observability"
	"github.com/dataX-ai/fitness-pal/internal/units"
)

const (
	minHeightCm = 80
	maxHeightCm = 250
	minWeightKg = 30
	maxWeightKg = 200
)

// ProfileStore captures the persistence operations the machine needs.
type ProfileStore interface {
	SetUserName(ctx context.Context, userID, name string) error
	LatestSnapshot(ctx context.Context, userID string) (*domain.ProfileSnapshot, error)
	CreateSnapshot(ctx context.Context, snap domain.ProfileSnapshot) (domain.ProfileSnapshot, error)
	CreateRawMessage(ctx context.Context, userID, body string, incoming bool) (domain.RawMessage, error)
}

// SessionStore is the live-message half of the session repository: the only
// writer of session membership outside the periodic pipeline.
type SessionStore interface {
	ActiveSession(ctx context.Context, userID string, window time.Duration) (*domain.WorkoutSession, error)
	CreateSession(ctx context.Context, userID string) (domain.WorkoutSession, error)
	AttachMessage(ctx context.Context, sessionID, messageID string) error
}

// Machine classifies each inbound message against the user's derived
// profile-completion state and advances the profile or asks for a retry.
type Machine struct {
	store     ProfileStore
	sessions  SessionStore
	extractor nlp.Extractor
	quota     *Quota
	window    time.Duration
	logger    *log.Logger
}

// Option configures optional behaviour for the Machine.
type Option func(*Machine)

// WithLogger overrides the logger used to report extraction misses.
func WithLogger(logger *log.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// NewMachine constructs a Machine. window is the session affinity window for
// workout-log messages.
func NewMachine(store ProfileStore, sessions SessionStore, extractor nlp.Extractor, quota *Quota, window time.Duration, opts ...Option) *Machine {
	m := &Machine{
		store:     store,
		sessions:  sessions,
		extractor: extractor,
		quota:     quota,
		window:    window,
		logger:    log.New(log.Writer(), "[onboarding] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle processes one inbound message and returns the outbound reply
// sequence. Extraction-service failures never propagate: they degrade to
// retry prompts or the generic fallback.
func (m *Machine) Handle(ctx context.Context, user domain.User, body string) ([]Reply, error) {
	raw, err := m.store.CreateRawMessage(ctx, user.ID, body, true)
	if err != nil {
		return nil, err
	}

	latest, err := m.store.LatestSnapshot(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	state := domain.ProjectState(user, latest)
	observability.RecordMessage(state.String())

	if state != domain.StateReady && isGreeting(body) {
		return m.welcome(state), nil
	}

	switch state {
	case domain.StateNeedsName:
		return m.handleName(ctx, user, latest, body)
	case domain.StateNeedsActivity:
		return m.handleActivity(ctx, user, body)
	case domain.StateNeedsMeasurements:
		return m.handleMeasurements(ctx, user, latest, body)
	case domain.StateNeedsGoal:
		return m.handleGoal(ctx, user, body)
	}

	// Ready: quota first, then greetings, then workout routing.
	allowed, err := m.quota.Allow(ctx, user)
	if err != nil {
		return nil, err
	}
	if !allowed {
		observability.RecordQuotaRefusal()
		return []Reply{{Body: quotaNotice}}, nil
	}

	replies, err := m.handleReady(ctx, user, raw, body)
	if err != nil {
		return nil, err
	}
	return m.appendQuotaWarning(ctx, user, replies), nil
}

func (m *Machine) handleReady(ctx context.Context, user domain.User, raw domain.RawMessage, body string) ([]Reply, error) {
	if isGreeting(body) {
		return m.welcome(domain.StateReady), nil
	}

	intent, cerr := m.extractor.ClassifyIntent(ctx, body)
	if cerr != nil {
		m.logger.Printf("intent classification degraded to unknown: %v", cerr)
	}
	if intent == nlp.IntentExercise {
		if err := m.attachWorkoutMessage(ctx, user, raw); err != nil {
			return nil, err
		}
		return []Reply{{Body: workoutAck}}, nil
	}

	return []Reply{{Body: fallbackMessage}}, nil
}

// lowQuotaThreshold is the remaining-message count at which unpaid users get
// a heads-up appended to the reply.
const lowQuotaThreshold = 3

func (m *Machine) appendQuotaWarning(ctx context.Context, user domain.User, replies []Reply) []Reply {
	remaining, err := m.quota.Remaining(ctx, user)
	if err != nil {
		m.logger.Printf("quota remaining lookup failed: %v", err)
		return replies
	}
	if remaining < 0 || remaining > lowQuotaThreshold {
		return replies
	}
	return append(replies, Reply{Body: fmt.Sprintf(lowQuotaFormat, remaining)})
}

func (m *Machine) welcome(state domain.OnboardingState) []Reply {
	return []Reply{{Body: welcomeMessage}, promptFor(state)}
}

func (m *Machine) handleName(ctx context.Context, user domain.User, latest *domain.ProfileSnapshot, body string) ([]Reply, error) {
	name, err := m.extractor.ExtractName(ctx, body)
	if err != nil {
		if !errors.Is(err, nlp.ErrNoData) {
			m.logger.Printf("name extraction failed: %v", err)
		}
		return []Reply{promptFor(domain.StateNeedsName)}, nil
	}
	if !validName(name) {
		return []Reply{promptFor(domain.StateNeedsName)}, nil
	}

	if err := m.store.SetUserName(ctx, user.ID, name); err != nil {
		return nil, err
	}
	user.Name = name

	success := Reply{Body: "Thanks " + name + "!!"}
	return []Reply{success, promptFor(domain.ProjectState(user, latest))}, nil
}

func validName(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "null", "none":
		return false
	}
	return true
}

func (m *Machine) handleActivity(ctx context.Context, user domain.User, body string) ([]Reply, error) {
	label := normalizeChoice(body)
	activity := domain.ActivityLevel(label)
	description, ok := domain.ActivityChoices[activity]
	if !ok {
		return []Reply{promptFor(domain.StateNeedsActivity)}, nil
	}

	merged, err := m.store.CreateSnapshot(ctx, domain.ProfileSnapshot{UserID: user.ID, Activity: &activity})
	if err != nil {
		return nil, err
	}

	success := Reply{Body: thanks(user, "Your activity level has been set to "+description)}
	return []Reply{success, promptFor(domain.ProjectState(user, &merged))}, nil
}

func (m *Machine) handleGoal(ctx context.Context, user domain.User, body string) ([]Reply, error) {
	label := normalizeChoice(body)
	goal := domain.Goal(label)
	description, ok := domain.GoalChoices[goal]
	if !ok {
		return []Reply{promptFor(domain.StateNeedsGoal)}, nil
	}

	merged, err := m.store.CreateSnapshot(ctx, domain.ProfileSnapshot{UserID: user.ID, Goal: &goal})
	if err != nil {
		return nil, err
	}

	success := Reply{Body: thanks(user, "Your fitness goal has been set to "+description)}
	return []Reply{success, promptFor(domain.ProjectState(user, &merged))}, nil
}

func normalizeChoice(body string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(body, "\n", " ")))
}

func (m *Machine) handleMeasurements(ctx context.Context, user domain.User, latest *domain.ProfileSnapshot, body string) ([]Reply, error) {
	heightCm, weightKg := m.extractMeasurements(ctx, body)

	current := latest
	if heightCm != nil || weightKg != nil {
		merged, err := m.store.CreateSnapshot(ctx, domain.ProfileSnapshot{
			UserID:   user.ID,
			HeightCm: heightCm,
			WeightKg: weightKg,
		})
		if err != nil {
			return nil, err
		}
		current = &merged
	}

	switch {
	case current == nil, current.HeightCm == nil && current.WeightKg == nil:
		return []Reply{promptFor(domain.StateNeedsMeasurements)}, nil
	case current.HeightCm == nil:
		return []Reply{{Body: heightPrompt}}, nil
	case current.WeightKg == nil:
		return []Reply{{Body: weightPrompt}}, nil
	}

	success := Reply{Body: "Thanks! Your measurements have been recorded."}
	return []Reply{success, promptFor(domain.ProjectState(user, current))}, nil
}

// extractMeasurements runs the external extractor plus unit normalization
// and plausibility bounds. A value that fails either step is dropped, never
// guessed at.
func (m *Machine) extractMeasurements(ctx context.Context, body string) (heightCm, weightKg *float64) {
	meas, err := m.extractor.ExtractMeasurements(ctx, body)
	if err != nil {
		if !errors.Is(err, nlp.ErrNoData) {
			m.logger.Printf("measurement extraction failed: %v", err)
		}
		return nil, nil
	}

	if !meas.Height.Value.IsZero() {
		cm, err := units.HeightToCm(meas.Height.Value.String(), meas.Height.Unit)
		if err != nil {
			m.logger.Printf("dropping height %q %q: %v", meas.Height.Value, meas.Height.Unit, err)
		} else if cm >= minHeightCm && cm <= maxHeightCm {
			heightCm = &cm
		}
	}

	if !meas.Weight.Value.IsZero() {
		kg, err := units.WeightToKg(meas.Weight.Value.String(), meas.Weight.Unit)
		if err != nil {
			m.logger.Printf("dropping weight %q %q: %v", meas.Weight.Value, meas.Weight.Unit, err)
		} else if kg >= minWeightKg && kg <= maxWeightKg {
			weightKg = &kg
		}
	}
	return heightCm, weightKg
}

func (m *Machine) attachWorkoutMessage(ctx context.Context, user domain.User, raw domain.RawMessage) error {
	session, err := m.sessions.ActiveSession(ctx, user.ID, m.window)
	if err != nil {
		return err
	}
	if session == nil {
		created, err := m.sessions.CreateSession(ctx, user.ID)
		if err != nil {
			return err
		}
		session = &created
	}
	return m.sessions.AttachMessage(ctx, session.ID, raw.ID)
}
