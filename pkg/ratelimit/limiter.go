// Package ratelimit implements the request spacing gate for NCBI
// E-utilities. The service permits 3 requests per second without an API key
// and 10 per second with one; the limiter enforces a minimum interval
// between successive outbound requests so concurrent callers never exceed
// that rate.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Request intervals published by the E-utilities usage policy.
const (
	// DefaultInterval spaces requests for keyless callers (3 req/s).
	DefaultInterval = 334 * time.Millisecond

	// APIKeyInterval spaces requests for callers with an API key (10 req/s).
	APIKeyInterval = 100 * time.Millisecond
)

// Prometheus metrics for limiter behavior.
var (
	waitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pubmed_rate_limit_waits_total",
		Help: "Total acquisitions that had to wait for the spacing interval",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pubmed_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit slot",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
)

// IntervalFor returns the spacing interval for the given credential: the
// keyed interval when apiKey is non-empty, the keyless one otherwise.
func IntervalFor(apiKey string) time.Duration {
	if apiKey != "" {
		return APIKeyInterval
	}
	return DefaultInterval
}

// Limiter is a minimum-spacing gate: Acquire blocks until the configured
// interval has elapsed since the previous grant. No burst credit
// accumulates while idle, and a blocked acquisition always eventually
// succeeds; there is no cancellation.
//
// Safe for concurrent use. Waiting callers queue on the internal mutex, so
// grants are serialized and never closer together than the interval.
type Limiter struct {
	mu        sync.Mutex
	interval  time.Duration
	lastGrant time.Time
	logger    zerolog.Logger
}

// New creates a limiter with the given minimum interval between grants.
// A non-positive interval disables spacing entirely.
func New(interval time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{
		interval: interval,
		logger:   logger,
	}
}

// Acquire blocks until at least the configured interval has elapsed since
// the previous grant, then records the new grant timestamp and returns.
func (l *Limiter) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.interval <= 0 {
		l.lastGrant = time.Now()
		return
	}

	now := time.Now()
	if !l.lastGrant.IsZero() {
		if wait := l.interval - now.Sub(l.lastGrant); wait > 0 {
			waitsTotal.Inc()
			waitSeconds.Observe(wait.Seconds())
			l.logger.Debug().
				Dur("wait", wait).
				Msg("Rate limit spacing - waiting for slot")

			// Sleeping under the lock is the point: the next caller
			// must not be granted a slot until this one has been.
			time.Sleep(wait)
			now = time.Now()
		}
	}

	l.lastGrant = now
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
