// Package provider holds the AI extraction capability clients. An Extractor
// takes the questionnaire and rendered documents and returns the model's raw
// text; parsing happens in package extraction.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"intake-backend/extraction"
	"intake-backend/models"
)

const (
	NameOpenAI = "openai"
	NameGemini = "gemini"
)

var (
	ErrMissingAPIKey   = errors.New("provider API key is required")
	ErrUnknownProvider = errors.New("unknown extraction provider")
	ErrEmptyResponse   = errors.New("provider returned no content")
)

// QuestionSpec is the part of a question the model needs to see.
type QuestionSpec struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	AnswerType models.AnswerType `json:"answerType"`
}

// Request is one extraction call.
type Request struct {
	Questions []QuestionSpec
	Documents []extraction.DocumentDescription
}

// Extractor invokes a generative model and returns its raw text output.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, req Request) (string, error)
}

// Config selects and tunes a provider.
type Config struct {
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration

	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int
}

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 4000
	defaultTimeout     = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// SpecsFor projects a question list onto what the model is shown.
func SpecsFor(qs models.Questions) []QuestionSpec {
	out := make([]QuestionSpec, 0, len(qs))
	for _, q := range qs {
		out = append(out, QuestionSpec{ID: q.ID, Text: q.Text, AnswerType: q.AnswerType})
	}
	return out
}

// New builds the configured extractor, wrapped in a rate limiter when
// RequestsPerSecond is positive. Callers should Close the result if it
// implements io.Closer.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (Extractor, error) {
	cfg = cfg.withDefaults()

	var (
		ex  Extractor
		err error
	)
	switch cfg.Name {
	case NameOpenAI, "":
		ex, err = NewOpenAIExtractor(cfg)
	case NameGemini:
		ex, err = NewGeminiExtractor(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("provider", ex.Name()).
		Str("model", cfg.Model).
		Dur("timeout", cfg.Timeout).
		Float64("rps", cfg.RequestsPerSecond).
		Msg("extraction provider configured")

	if cfg.RequestsPerSecond > 0 {
		return NewRateLimited(ex, cfg.RequestsPerSecond, cfg.Burst), nil
	}
	return ex, nil
}

// Close releases ex if it holds resources.
func Close(ex Extractor) error {
	if c, ok := ex.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
