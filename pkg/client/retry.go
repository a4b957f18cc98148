package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmed_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pubmed_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmed_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// retryPolicy holds the bounds for exponential backoff.
type retryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff growth.
	MaxBackoff time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64
}

// retryWithBackoff executes fn until it succeeds, fails permanently, or the
// policy's attempts are exhausted. Backoff grows exponentially with ±20%
// jitter to avoid synchronized retries. Only errors whose class is
// retryable (server, rate limit, network) trigger another attempt.
//
// On exhaustion the last error is surfaced wrapped with ErrRetryExhausted,
// so the caller still sees the originating status and cause.
func retryWithBackoff(ctx context.Context, policy retryPolicy, logger zerolog.Logger, fn func() error) error {
	var lastErr error
	backoff := policy.InitialBackoff

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		class := classOf(err)

		if !shouldRetry(class) {
			return err
		}

		if attempt >= policy.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(class)).Inc()

		// ±20% jitter.
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(jitter.Seconds())

		logger.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return &Error{
				Class:   class,
				Message: "context cancelled during retry backoff",
				Err:     ctx.Err(),
			}
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * policy.Multiplier)
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	class := classOf(lastErr)
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()
	logger.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", policy.MaxAttempts).
		Msg("Retry attempts exhausted")

	return &Error{
		Class:      class,
		StatusCode: statusOf(lastErr),
		Message:    fmt.Sprintf("after %d attempts", policy.MaxAttempts),
		Err:        fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr),
	}
}

// statusOf extracts the HTTP status from a client error, or 0.
func statusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
