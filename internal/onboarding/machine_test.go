package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataX-ai/fitness-pal/internal/domain"
	"github.com/dataX-ai/fitness-pal/internal/nlp"
)

type stubStore struct {
	latest     *domain.ProfileSnapshot
	savedName  string
	messages   []domain.RawMessage
	countToday int
}

func (s *stubStore) SetUserName(_ context.Context, _, name string) error {
	s.savedName = name
	return nil
}

func (s *stubStore) LatestSnapshot(_ context.Context, _ string) (*domain.ProfileSnapshot, error) {
	return s.latest, nil
}

func (s *stubStore) CreateSnapshot(_ context.Context, snap domain.ProfileSnapshot) (domain.ProfileSnapshot, error) {
	snap.Merge(s.latest)
	snap.ComputeBMI()
	s.latest = &snap
	return snap, nil
}

func (s *stubStore) CreateRawMessage(_ context.Context, userID, body string, incoming bool) (domain.RawMessage, error) {
	msg := domain.RawMessage{ID: "msg-1", UserID: userID, Body: body, Incoming: incoming, CreatedAt: time.Now()}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *stubStore) CountIncomingSince(_ context.Context, _ string, _ time.Time) (int, error) {
	return s.countToday, nil
}

type stubSessions struct {
	active   *domain.WorkoutSession
	created  int
	attached []string
}

func (s *stubSessions) ActiveSession(_ context.Context, _ string, _ time.Duration) (*domain.WorkoutSession, error) {
	return s.active, nil
}

func (s *stubSessions) CreateSession(_ context.Context, userID string) (domain.WorkoutSession, error) {
	s.created++
	sess := domain.WorkoutSession{ID: "sess-1", UserID: userID, CreatedAt: time.Now()}
	s.active = &sess
	return sess, nil
}

func (s *stubSessions) AttachMessage(_ context.Context, sessionID, messageID string) error {
	s.attached = append(s.attached, sessionID+"/"+messageID)
	return nil
}

type stubExtractor struct {
	intent       nlp.Intent
	name         string
	nameErr      error
	measurements nlp.Measurements
	measErr      error
}

func (e *stubExtractor) ClassifyIntent(_ context.Context, _ string) (nlp.Intent, error) {
	return e.intent, nil
}

func (e *stubExtractor) ExtractName(_ context.Context, _ string) (string, error) {
	return e.name, e.nameErr
}

func (e *stubExtractor) ExtractMeasurements(_ context.Context, _ string) (nlp.Measurements, error) {
	return e.measurements, e.measErr
}

func (e *stubExtractor) ExtractExercises(_ context.Context, _ string) ([]nlp.ParsedExercise, error) {
	return nil, nlp.ErrNoData
}

func newTestMachine(store *stubStore, sessions *stubSessions, extractor *stubExtractor) *Machine {
	quota := NewQuota(store, 30, "Asia/Kolkata")
	return NewMachine(store, sessions, extractor, quota, 6*time.Hour)
}

func profileWith(name string, fields domain.ProfileSnapshot) (domain.User, *domain.ProfileSnapshot) {
	user := domain.User{ID: "user-1", PhoneNumber: "+15550001", Name: name}
	return user, &fields
}

func floatPtr(v float64) *float64 { return &v }

func TestGreetingStartsOnboarding(t *testing.T) {
	store := &stubStore{}
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{})

	replies, err := m.Handle(context.Background(), domain.User{ID: "user-1"}, "hi")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Body, "Welcome to GymTracker")
	assert.Equal(t, namePrompt, replies[1].Body)
	require.Len(t, store.messages, 1)
	assert.True(t, store.messages[0].Incoming)
}

func TestGreetingMidFlowRepromptsCurrentField(t *testing.T) {
	activity := domain.ActivityModerate
	user, latest := profileWith("Sam", domain.ProfileSnapshot{Activity: &activity})
	store := &stubStore{latest: latest}
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{})

	replies, err := m.Handle(context.Background(), user, "help")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Body, "Welcome to GymTracker")
	assert.Equal(t, measurementsPrompt, replies[1].Body)
}

func TestNameAccepted(t *testing.T) {
	store := &stubStore{}
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{name: "Sam"})

	replies, err := m.Handle(context.Background(), domain.User{ID: "user-1"}, "I'm Sam")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "Thanks Sam!!", replies[0].Body)
	assert.Contains(t, replies[1].Body, "How active are you?")
	assert.Equal(t, "Sam", store.savedName)
}

func TestNameExtractionMissReprompts(t *testing.T) {
	store := &stubStore{}
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{nameErr: nlp.ErrNoData})

	replies, err := m.Handle(context.Background(), domain.User{ID: "user-1"}, "the weather is nice")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, namePrompt, replies[0].Body)
	assert.Empty(t, store.savedName)
}

func TestNullNameRejected(t *testing.T) {
	store := &stubStore{}
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{name: "null"})

	replies, err := m.Handle(context.Background(), domain.User{ID: "user-1"}, "nah")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, namePrompt, replies[0].Body)
	assert.Empty(t, store.savedName)
}

func TestActivityRetryOnUnknownLabel(t *testing.T) {
	user := domain.User{ID: "user-1", Name: "Sam"}
	store := &stubStore{}
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{})

	replies, err := m.Handle(context.Background(), user, "super active")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Body, "How active are you?")
	assert.Nil(t, store.latest)
}

func TestActivityAccepted(t *testing.T) {
	user := domain.User{ID: "user-1", Name: "Sam"}
	store := &stubStore{}
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{})

	replies, err := m.Handle(context.Background(), user, " Moderate ")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Body, "Thanks Sam!")
	assert.Contains(t, replies[0].Body, "Moderately Active")
	assert.Equal(t, measurementsPrompt, replies[1].Body)
	require.NotNil(t, store.latest)
	assert.Equal(t, domain.ActivityModerate, *store.latest.Activity)
}

func TestMeasurementsBothAccepted(t *testing.T) {
	activity := domain.ActivityLight
	user, latest := profileWith("Sam", domain.ProfileSnapshot{Activity: &activity})
	store := &stubStore{latest: latest}
	extractor := &stubExtractor{measurements: nlp.Measurements{
		Height: nlp.Measurement{Value: "5'11", Unit: "feet"},
		Weight: nlp.Measurement{Value: "165", Unit: "lbs"},
	}}
	m := newTestMachine(store, &stubSessions{}, extractor)

	replies, err := m.Handle(context.Background(), user, "5'11 and 165 lbs")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Body, "measurements have been recorded")
	assert.Contains(t, replies[1].Body, "What's your fitness goal?")
	require.NotNil(t, store.latest.HeightCm)
	require.NotNil(t, store.latest.WeightKg)
	assert.InDelta(t, 180.34, *store.latest.HeightCm, 0.01)
	assert.InDelta(t, 74.84, *store.latest.WeightKg, 0.01)
	require.NotNil(t, store.latest.BMI)
}

func TestMeasurementsWeightOnlyAsksForHeight(t *testing.T) {
	activity := domain.ActivityLight
	user, latest := profileWith("Sam", domain.ProfileSnapshot{Activity: &activity})
	store := &stubStore{latest: latest}
	extractor := &stubExtractor{measurements: nlp.Measurements{
		Weight: nlp.Measurement{Value: "75", Unit: "kg"},
	}}
	m := newTestMachine(store, &stubSessions{}, extractor)

	replies, err := m.Handle(context.Background(), user, "75 kg")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, heightPrompt, replies[0].Body)
	require.NotNil(t, store.latest.WeightKg)
	assert.Nil(t, store.latest.HeightCm)
}

func TestMeasurementsOutOfBoundsDropped(t *testing.T) {
	activity := domain.ActivityLight
	user, latest := profileWith("Sam", domain.ProfileSnapshot{Activity: &activity})
	store := &stubStore{latest: latest}
	extractor := &stubExtractor{measurements: nlp.Measurements{
		Height: nlp.Measurement{Value: "40", Unit: "cm"},
		Weight: nlp.Measurement{Value: "500", Unit: "kg"},
	}}
	m := newTestMachine(store, &stubSessions{}, extractor)

	replies, err := m.Handle(context.Background(), user, "40 cm 500 kg")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, measurementsPrompt, replies[0].Body)
	assert.Nil(t, store.latest.HeightCm)
	assert.Nil(t, store.latest.WeightKg)
}

func TestGoalAcceptedCompletesOnboarding(t *testing.T) {
	activity := domain.ActivityModerate
	user, latest := profileWith("Sam", domain.ProfileSnapshot{
		Activity: &activity,
		HeightCm: floatPtr(180),
		WeightKg: floatPtr(75),
	})
	store := &stubStore{latest: latest}
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{})

	replies, err := m.Handle(context.Background(), user, "athletic")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Body, "fitness goal has been set to Athletic")
	assert.Equal(t, readySummary, replies[1].Body)
	require.NotNil(t, store.latest.Goal)
	assert.Equal(t, domain.GoalAthletic, *store.latest.Goal)
}

func readyUser(t *testing.T) (domain.User, *stubStore) {
	t.Helper()
	activity := domain.ActivityModerate
	goal := domain.GoalAthletic
	user, latest := profileWith("Sam", domain.ProfileSnapshot{
		Activity: &activity,
		HeightCm: floatPtr(180),
		WeightKg: floatPtr(75),
		Goal:     &goal,
	})
	return user, &stubStore{latest: latest, countToday: 1}
}

func TestWorkoutMessageOpensSession(t *testing.T) {
	user, store := readyUser(t)
	sessions := &stubSessions{}
	m := newTestMachine(store, sessions, &stubExtractor{intent: nlp.IntentExercise})

	replies, err := m.Handle(context.Background(), user, "bench press 3x8 at 60kg")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, workoutAck, replies[0].Body)
	assert.Equal(t, 1, sessions.created)
	require.Len(t, sessions.attached, 1)
	assert.Equal(t, "sess-1/msg-1", sessions.attached[0])
}

func TestWorkoutMessageJoinsActiveSession(t *testing.T) {
	user, store := readyUser(t)
	sessions := &stubSessions{active: &domain.WorkoutSession{ID: "sess-0", UserID: user.ID}}
	m := newTestMachine(store, sessions, &stubExtractor{intent: nlp.IntentExercise})

	_, err := m.Handle(context.Background(), user, "squats 5x5")
	require.NoError(t, err)
	assert.Zero(t, sessions.created)
	require.Len(t, sessions.attached, 1)
	assert.Equal(t, "sess-0/msg-1", sessions.attached[0])
}

func TestUnknownIntentFallsBack(t *testing.T) {
	user, store := readyUser(t)
	sessions := &stubSessions{}
	m := newTestMachine(store, sessions, &stubExtractor{intent: nlp.IntentUnknown})

	replies, err := m.Handle(context.Background(), user, "what's the capital of France?")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, fallbackMessage, replies[0].Body)
	assert.Empty(t, sessions.attached)
}

func TestQuotaRefusesOverLimit(t *testing.T) {
	user, store := readyUser(t)
	store.countToday = 31
	sessions := &stubSessions{}
	m := newTestMachine(store, sessions, &stubExtractor{intent: nlp.IntentExercise})

	replies, err := m.Handle(context.Background(), user, "bench press 3x8")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, quotaNotice, replies[0].Body)
	assert.Empty(t, sessions.attached)
}

func TestQuotaAllowsExactCeiling(t *testing.T) {
	user, store := readyUser(t)
	store.countToday = 30
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{intent: nlp.IntentUnknown})

	replies, err := m.Handle(context.Background(), user, "hello there")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.NotEqual(t, quotaNotice, replies[0].Body)
	assert.Equal(t, "You have 0 free messages left today.", replies[1].Body)
}

func TestLowQuotaWarningAppended(t *testing.T) {
	user, store := readyUser(t)
	store.countToday = 28
	sessions := &stubSessions{}
	m := newTestMachine(store, sessions, &stubExtractor{intent: nlp.IntentExercise})

	replies, err := m.Handle(context.Background(), user, "bench press 3x8")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, workoutAck, replies[0].Body)
	assert.Equal(t, "You have 2 free messages left today.", replies[1].Body)
	require.Len(t, sessions.attached, 1)
}

func TestPaidUserBypassesQuota(t *testing.T) {
	user, store := readyUser(t)
	user.Paid = true
	store.countToday = 1000
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{intent: nlp.IntentUnknown})

	replies, err := m.Handle(context.Background(), user, "hello there")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.NotEqual(t, quotaNotice, replies[0].Body)
}

func TestStoreErrorPropagates(t *testing.T) {
	store := &stubStore{}
	m := newTestMachine(store, &stubSessions{}, &stubExtractor{nameErr: errors.New("service down")})

	replies, err := m.Handle(context.Background(), domain.User{ID: "user-1"}, "I'm Sam")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, namePrompt, replies[0].Body)
}
