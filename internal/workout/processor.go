package workout

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dataX-ai/fitness-pal/internal/domain"
	"github.com/dataX-ai/fitness-pal/internal/nlp"
)

// SessionStore is the persistence surface the extraction pass needs.
type SessionStore interface {
	PendingSessions(ctx context.Context, window time.Duration) ([]domain.PendingSession, error)
	SessionMessages(ctx context.Context, sessionID string) ([]domain.RawMessage, error)
	ReplaceExercisesAndMark(ctx context.Context, session domain.WorkoutSession, messageIDs []string, exercises []domain.Exercise, metrics domain.SessionMetrics) error
}

// ExerciseExtractor is the extraction-service call the pass depends on.
type ExerciseExtractor interface {
	ExtractExercises(ctx context.Context, body string) ([]nlp.ParsedExercise, error)
}

// PassSummary reports one extraction pass. Skipped counts sessions whose
// concatenated blob was blank.
type PassSummary struct {
	Scanned   int
	Succeeded int
	Failed    int
	Skipped   int
}

// Processor runs the periodic extraction pass over pending sessions.
type Processor struct {
	store       SessionStore
	extractor   ExerciseExtractor
	calculator  *Calculator
	window      time.Duration
	concurrency int
	logger      *log.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger overrides the pass logger.
func WithProcessorLogger(logger *log.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

// NewProcessor constructs a Processor. window bounds the pending scan;
// concurrency caps how many sessions are extracted in parallel.
func NewProcessor(store SessionStore, extractor ExerciseExtractor, calculator *Calculator, window time.Duration, concurrency int, opts ...ProcessorOption) *Processor {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &Processor{
		store:       store,
		extractor:   extractor,
		calculator:  calculator,
		window:      window,
		concurrency: concurrency,
		logger:      log.New(log.Writer(), "[pipeline] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one extraction pass. Sessions are processed independently
// through a bounded worker pool; one session's failure never aborts the
// others. The pass is idempotent: a failed session stays pending and a
// reprocessed one gets its exercise set replaced wholesale.
func (p *Processor) Run(ctx context.Context) (PassSummary, error) {
	pending, err := p.store.PendingSessions(ctx, p.window)
	if err != nil {
		return PassSummary{}, err
	}
	summary := PassSummary{Scanned: len(pending)}
	if len(pending) == 0 {
		return summary, nil
	}
	p.logger.Printf("found %d sessions with pending messages", len(pending))

	type result struct {
		skipped bool
		err     error
	}
	results := make([]result, len(pending))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for i, session := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, session domain.PendingSession) {
			defer wg.Done()
			defer func() { <-sem }()
			skipped, err := p.processSession(ctx, session)
			results[i] = result{skipped: skipped, err: err}
		}(i, session)
	}
	wg.Wait()

	for i, r := range results {
		switch {
		case r.err != nil:
			p.logger.Printf("session %s failed: %v", pending[i].SessionID, r.err)
			summary.Failed++
		case r.skipped:
			summary.Skipped++
		default:
			summary.Succeeded++
		}
	}
	p.logger.Printf("extraction pass done: scanned=%d succeeded=%d failed=%d skipped=%d",
		summary.Scanned, summary.Succeeded, summary.Failed, summary.Skipped)
	return summary, nil
}

// processSession extracts and stores one session. Returns skipped=true when
// the session had no message content.
func (p *Processor) processSession(ctx context.Context, pending domain.PendingSession) (bool, error) {
	messages, err := p.store.SessionMessages(ctx, pending.SessionID)
	if err != nil {
		return false, err
	}

	// Only the messages read here may be marked processed later; anything
	// attached by the live path after this point is not in the blob.
	messageIDs := make([]string, 0, len(messages))
	bodies := make([]string, 0, len(messages))
	for _, m := range messages {
		messageIDs = append(messageIDs, m.ID)
		bodies = append(bodies, m.Body)
	}
	blob := strings.Join(bodies, "\n")
	if strings.TrimSpace(blob) == "" {
		p.logger.Printf("session %s: no message content, skipping", pending.SessionID)
		return true, nil
	}

	parsed, err := p.extractor.ExtractExercises(ctx, blob)
	if err != nil {
		return false, err
	}

	exercises, metrics, err := p.calculator.Compute(pending.SessionID, parsed)
	if err != nil {
		return false, err
	}

	session := domain.WorkoutSession{ID: pending.SessionID, UserID: pending.UserID}
	return false, p.store.ReplaceExercisesAndMark(ctx, session, messageIDs, exercises, metrics)
}
