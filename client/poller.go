// Package client drives the upload completion endpoint from the caller's side.
//
// Documents become ready asynchronously, so a finished batch is reported
// repeatedly until the server stops answering "still processing". Poller does
// that with capped exponential backoff.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultInitialDelay = 5 * time.Second
	DefaultMaxDelay     = 60 * time.Second
	DefaultFactor       = 2.0
	DefaultMaxAttempts  = 12
	DefaultTimeout      = 10 * time.Minute

	completePath = "/api/uploads/complete"
)

// ErrProcessingTimeout is returned when documents are still processing after
// the attempt or time budget is spent.
var ErrProcessingTimeout = errors.New("documents still processing")

// TimeoutError carries what was still pending when polling gave up.
type TimeoutError struct {
	Attempts       int
	UnprocessedIDs []int64
	// LastErr is the transport error of the final attempt, if it failed.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%v after %d attempts", ErrProcessingTimeout, e.Attempts)
	if len(e.UnprocessedIDs) > 0 {
		msg += fmt.Sprintf(" (unprocessed: %v)", e.UnprocessedIDs)
	}
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrProcessingTimeout }

func (e *TimeoutError) Unwrap() error { return e.LastErr }

// APIError is a non-retryable error response from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// CompleteRequest is the batch being reported.
type CompleteRequest struct {
	PatientID   string  `json:"patientId,omitempty"`
	DocumentIDs []int64 `json:"documentIds"`
}

// CompleteResult mirrors the completion endpoint's response.
type CompleteResult struct {
	Success          bool            `json:"success"`
	Message          string          `json:"message,omitempty"`
	ProcessedCount   *int            `json:"processedCount,omitempty"`
	UnprocessedCount *int            `json:"unprocessedCount,omitempty"`
	UnprocessedIDs   []int64         `json:"unprocessedIds,omitempty"`
	FormID           int64           `json:"formId,omitempty"`
	AnalysisResult   json.RawMessage `json:"analysisResult,omitempty"`
	Error            string          `json:"error,omitempty"`
	Details          string          `json:"details,omitempty"`
}

// Pending reports whether the server asked the caller to come back later.
func (r *CompleteResult) Pending() bool {
	return !r.Success && r.UnprocessedCount != nil
}

// Poller reports a finished batch until it has been analyzed
type Poller struct {
	baseURL      string
	httpClient   *http.Client
	initialDelay time.Duration
	maxDelay     time.Duration
	factor       float64
	maxAttempts  int
	timeout      time.Duration
	logger       zerolog.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

// PollerOption configures a Poller
type PollerOption func(*Poller)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) PollerOption {
	return func(p *Poller) {
		p.httpClient = c
	}
}

// WithBackoff sets the first delay, the multiplier and the cap.
func WithBackoff(initial time.Duration, factor float64, max time.Duration) PollerOption {
	return func(p *Poller) {
		p.initialDelay = initial
		p.factor = factor
		p.maxDelay = max
	}
}

// WithMaxAttempts bounds the number of requests.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithTimeout bounds the total time spent polling.
func WithTimeout(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// withSleep replaces the wait between attempts.
func withSleep(fn func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *Poller) {
		p.sleep = fn
	}
}

// NewPoller creates a poller for the server at baseURL.
func NewPoller(baseURL string, opts ...PollerOption) *Poller {
	p := &Poller{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		initialDelay: DefaultInitialDelay,
		maxDelay:     DefaultMaxDelay,
		factor:       DefaultFactor,
		maxAttempts:  DefaultMaxAttempts,
		timeout:      DefaultTimeout,
		logger:       zerolog.Nop(),
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AwaitCompletion posts the batch, then re-posts it while the server reports
// unprocessed documents. It returns the first non-pending response.
//
// Server errors and transport failures are retried like pending responses.
// 4xx responses are returned at once as *APIError. When the budget runs out
// the error is a *TimeoutError matching ErrProcessingTimeout.
func (p *Poller) AwaitCompletion(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		lastPending []int64
		lastErr     error
		delay       = p.initialDelay
	)
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		result, err := p.complete(ctx, req)
		switch {
		case err != nil:
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, p.timedOut(attempt, lastPending, err)
			}
			lastErr = err
			p.logger.Warn().Err(err).Int("attempt", attempt).Msg("completion request failed")
		case result.Pending():
			lastPending, lastErr = result.UnprocessedIDs, nil
			p.logger.Info().
				Int("attempt", attempt).
				Ints64("unprocessed_ids", result.UnprocessedIDs).
				Dur("next_delay", delay).
				Msg("documents still processing")
		case !result.Success:
			return result, fmt.Errorf("upload completion failed: %s", result.Message)
		default:
			return result, nil
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			return nil, p.timedOut(attempt, lastPending, lastErr)
		}
		delay = p.nextDelay(delay)
	}
	return nil, p.timedOut(p.maxAttempts, lastPending, lastErr)
}

func (p *Poller) timedOut(attempts int, pending []int64, last error) error {
	return &TimeoutError{Attempts: attempts, UnprocessedIDs: pending, LastErr: last}
}

func (p *Poller) nextDelay(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * p.factor)
	if p.maxDelay > 0 && next > p.maxDelay {
		return p.maxDelay
	}
	return next
}

func (p *Poller) complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+completePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}

	var result CompleteResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
