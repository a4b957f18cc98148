// Package metrics provides the centralized Prometheus metrics registry for
// the PubMed client. All metrics are defined in their respective packages
// (client, cache, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the PubMed client.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pubmed_rate_limit_waits_total (Counter): Acquisitions that had to
//     wait for the spacing interval
//   - pubmed_rate_limit_wait_seconds (Histogram): Time spent waiting for a
//     rate limit slot
//
// Cache Metrics (pkg/cache):
//   - pubmed_cache_hits_total{backend} (Counter): Cache hits by backend
//     (memory, redis)
//   - pubmed_cache_misses_total (Counter): Cache misses, including lazy
//     expiries
//   - pubmed_cache_errors_total{operation} (Counter): Backend operation
//     errors
//
// Request Metrics (pkg/client):
//   - pubmed_requests_total{endpoint, status} (Counter): Requests by
//     E-utilities endpoint and HTTP status
//   - pubmed_request_duration_seconds{endpoint} (Histogram): Request
//     duration by endpoint
//   - pubmed_errors_total{class} (Counter): Errors by class (validation,
//     client, server, rate_limit, network, parse)
//
// Retry Metrics (pkg/client):
//   - pubmed_retries_total{error_class} (Counter): Retry attempts by error
//     class
//   - pubmed_retry_backoff_seconds{error_class} (Histogram): Backoff
//     duration by error class
//   - pubmed_retry_exhausted_total{error_class} (Counter): Requests that
//     exhausted max attempts
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pubmed_cache_hits_total[5m])) /
//   (sum(rate(pubmed_cache_hits_total[5m])) + sum(rate(pubmed_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(pubmed_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(pubmed_request_duration_seconds_bucket[5m]))
//
//   # Time Lost To Rate Limiting
//   rate(pubmed_rate_limit_wait_seconds_sum[5m])
