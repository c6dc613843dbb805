package fetcher

import (
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
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// Failure reasons reported to the Observer. Callers of Fetch never see them.
const (
	ReasonTransport = "transport"
	ReasonStatus    = "status"
	ReasonDecode    = "decode"
)

// Options parameterise the retrying fetcher.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	UserAgent   string
}

// Observer receives per-attempt outcomes, typically for metrics.
type Observer interface {
	AttemptFailed(endpoint, reason string)
	FetchCompleted(endpoint string, attempts int, ok bool)
}

// Retrying performs GET requests with bounded exponential backoff.
type Retrying struct {
	opts     Options
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetrying constructs a retrying fetcher. A nil observer is allowed.
func NewRetrying(opts Options, observer Observer, logger zerolog.Logger) *Retrying {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}

	return &Retrying{
		opts:     opts,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		client:   &http.Client{Timeout: opts.Timeout},
		logger:   logger.With().Str("component", "fetcher").Logger(),
		observer: observer,
		sleep:    sleepContext,
	}
}

// Fetch requests endpoint up to MaxAttempts times, waiting BaseDelay*2^i
// after the i-th failure. Transport errors, non-2xx responses and bodies
// that do not decode into dst are all retried the same way.
func (r *Retrying) Fetch(ctx context.Context, endpoint string, dst any) bool {
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		err := r.attempt(ctx, endpoint, dst)
		if err == nil {
			r.completed(endpoint, attempt+1, true)
			return true
		}

		r.logger.Warn().Err(err).
			Int("attempt", attempt+1).
			Str("endpoint", endpoint).
			Msg("fetch attempt failed")
		if r.observer != nil {
			r.observer.AttemptFailed(endpoint, reasonOf(err))
		}

		if attempt+1 == r.opts.MaxAttempts {
			break
		}
		if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
			r.completed(endpoint, attempt+1, false)
			return false
		}
	}

	r.logger.Error().Str("endpoint", endpoint).
		Int("attempts", r.opts.MaxAttempts).
		Msg("endpoint unavailable after retries")
	r.completed(endpoint, r.opts.MaxAttempts, false)
	return false
}

func (r *Retrying) backoff(attempt int) time.Duration {
	return r.opts.BaseDelay << attempt
}

func (r *Retrying) completed(endpoint string, attempts int, ok bool) {
	if r.observer != nil {
		r.observer.FetchCompleted(endpoint, attempts, ok)
	}
}

func (r *Retrying) attempt(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url(endpoint), nil)
	if err != nil {
		return &attemptError{reason: ReasonTransport, err: err}
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &attemptError{reason: ReasonTransport, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &attemptError{reason: ReasonStatus, err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &attemptError{reason: ReasonTransport, err: fmt.Errorf("read body: %w", err)}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &attemptError{reason: ReasonDecode, err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func (r *Retrying) url(endpoint string) string {
	return r.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

type attemptError struct {
	reason string
	err    error
}

func (e *attemptError) Error() string { return e.reason + ": " + e.err.Error() }

func (e *attemptError) Unwrap() error { return e.err }

func reasonOf(err error) string {
	var ae *attemptError
	if errors.As(err, &ae) {
		return ae.reason
	}
	return ReasonTransport
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Fetcher = (*Retrying)(nil)
