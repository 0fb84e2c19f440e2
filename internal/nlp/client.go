package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoData signals that the service returned nothing usable for the
// request. Callers treat it as "no data extracted", never as fatal.
var ErrNoData = errors.New("no data extracted")

// Extractor is the language-understanding interface consumed by the
// onboarding machine and the workout pipeline.
type Extractor interface {
	ClassifyIntent(ctx context.Context, text string) (Intent, error)
	ExtractName(ctx context.Context, text string) (string, error)
	ExtractMeasurements(ctx context.Context, text string) (Measurements, error)
	ExtractExercises(ctx context.Context, text string) ([]ParsedExercise, error)
}

// Config holds connection settings for the extraction service.
type Config struct {
	BaseURL string // empty means the provider default
	APIKey  string
	Model   string
	Timeout time.Duration // per-call ceiling; the dominant latency source
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	logger  *log.Logger
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithLogger overrides the logger used to report extraction misses.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient constructs a Client.
func NewClient(cfg Config, opts ...Option) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		timeout: timeout,
		logger:  log.New(log.Writer(), "[nlp] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoData
	}
	return resp.Choices[0].Message.Content, nil
}

// ClassifyIntent buckets a message into name/height_weight/exercise/unknown.
// Any service failure degrades to IntentUnknown with a logged error.
func (c *Client) ClassifyIntent(ctx context.Context, text string) (Intent, error) {
	content, err := c.complete(ctx, intentSystemPrompt, text)
	if err != nil {
		c.logger.Printf("intent classification failed: %v", err)
		return IntentUnknown, err
	}

	switch Intent(strings.ToLower(strings.TrimSpace(content))) {
	case IntentName:
		return IntentName, nil
	case IntentHeightWeight:
		return IntentHeightWeight, nil
	case IntentExercise:
		return IntentExercise, nil
	default:
		return IntentUnknown, nil
	}
}

// ExtractName pulls a person's name out of the message. Returns ErrNoData
// when the service finds none.
func (c *Client) ExtractName(ctx context.Context, text string) (string, error) {
	content, err := c.complete(ctx, nameSystemPrompt, text)
	if err != nil {
		return "", err
	}

	raw, ok := firstJSON(content)
	if !ok {
		return "", ErrNoData
	}
	var payload struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", fmt.Errorf("decode name response: %w", err)
	}
	if payload.Name == nil || strings.TrimSpace(*payload.Name) == "" {
		return "", ErrNoData
	}
	return strings.TrimSpace(*payload.Name), nil
}

// ExtractMeasurements pulls raw height/weight values with their reported
// units. No unit conversion happens here; see the units package.
func (c *Client) ExtractMeasurements(ctx context.Context, text string) (Measurements, error) {
	content, err := c.complete(ctx, measurementSystemPrompt, text)
	if err != nil {
		return Measurements{}, err
	}

	raw, ok := firstJSON(content)
	if !ok {
		return Measurements{}, ErrNoData
	}
	var payload Measurements
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Measurements{}, fmt.Errorf("decode measurements response: %w", err)
	}
	if payload.Height.Value.IsZero() && payload.Weight.Value.IsZero() {
		return Measurements{}, ErrNoData
	}
	return payload, nil
}

// ExtractExercises parses a concatenated workout blob into exercise records.
func (c *Client) ExtractExercises(ctx context.Context, text string) ([]ParsedExercise, error) {
	content, err := c.complete(ctx, exerciseSystemPrompt, text)
	if err != nil {
		return nil, err
	}

	raw, ok := firstJSON(content)
	if !ok {
		return nil, ErrNoData
	}
	var payload struct {
		Exercises []ParsedExercise `json:"exercises"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode exercises response: %w", err)
	}
	if len(payload.Exercises) == 0 {
		return nil, ErrNoData
	}
	return payload.Exercises, nil
}
