// Package fetch holds the upstream HTTP clients: MLB Stats API for
// schedule, lineups and linescores, Baseball Savant for pitch events,
// The Odds API for prices, and Open-Meteo for stadium weather. Every
// client shares one transport wrapper with a circuit breaker, optional
// rate limiting and bounded retries. A fetch that ultimately fails
// surfaces as an error the pipeline converts to a risk flag, never a
// crash.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ballparklabs/mlbedge/internal/metrics"
)

// ErrUpstreamStatus marks a non-2xx response after retries.
var ErrUpstreamStatus = errors.New("upstream status")

const (
	breakerFailures = 5
	breakerCooldown = 60 * time.Second
	maxBodyBytes    = 64 << 20
)

// client is the shared HTTP wrapper. One instance per upstream so each
// host trips its own breaker.
type client struct {
	name    string
	base    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	retries int
	log     zerolog.Logger
}

func newClient(name, base string, timeout time.Duration, retries int, limiter *rate.Limiter, logger zerolog.Logger) *client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries <= 0 {
		retries = 3
	}
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
	}
	return &client{
		name:    name,
		base:    base,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: limiter,
		retries: retries,
		log:     logger.With().Str("component", "fetch").Str("upstream", name).Logger(),
	}
}

// get runs one GET with rate limiting, breaker accounting and
// exponential backoff. 4xx responses other than 429 are terminal.
func (c *client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, err := c.breaker.Execute(func() (interface{}, error) {
			return c.attempt(ctx, u)
		})
		if err == nil {
			return body.([]byte), nil
		}
		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || !retryable(err) {
			break
		}
		c.log.Warn().Err(err).Int("attempt", attempt+1).Str("url", path).Msg("fetch retry")
	}
	metrics.FetchErrors.WithLabelValues(c.name).Inc()
	return nil, fmt.Errorf("%s %s: %w", c.name, path, lastErr)
}

func (c *client) attempt(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("upstream status %d", e.code) }

func (e *statusError) Is(target error) bool { return target == ErrUpstreamStatus }

// retryable: network errors, 5xx and 429 retry; other statuses do not.
func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return true
	}
	return se.code >= 500 || se.code == http.StatusTooManyRequests
}
