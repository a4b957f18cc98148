// Package client provides the PubMed E-utilities client with rate
// limiting, caching, retries, and typed errors.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/pubmed-client/pkg/cache"
	"github.com/Sternrassler/pubmed-client/pkg/eutils"
	"github.com/Sternrassler/pubmed-client/pkg/ratelimit"
	"github.com/Sternrassler/pubmed-client/pkg/types"
)

// DefaultBaseURL is the production E-utilities endpoint. Tests point the
// client at an httptest server instead.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// dateFormat is the calendar format accepted for search date bounds.
const dateFormat = "2006/01/02"

// Prometheus metrics for request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmed_requests_total",
		Help: "Total E-utilities requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pubmed_request_duration_seconds",
		Help:    "E-utilities request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pubmed_errors_total",
		Help: "Total client errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the E-utilities base address (default DefaultBaseURL).
	BaseURL string

	// APIKey is the optional NCBI API key. When present it is forwarded
	// on every request and raises the permitted rate from 3 to 10
	// requests per second. It is never validated client-side.
	APIKey string

	// Tool and Email identify the calling application to NCBI, per the
	// E-utilities usage policy.
	Tool  string
	Email string

	// MaxAttempts is the total number of attempts per request, including
	// the first (default 3).
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt; it grows by
	// BackoffMultiplier per retry, capped at MaxBackoff.
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// ConnectTimeout bounds connection establishment; ReadTimeout bounds
	// the whole request including the response body.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// ChunkSize is the maximum number of ids per efetch request; larger
	// fetches are split into sequential batches (default 200).
	ChunkSize int

	// Cache enables response caching when non-nil. Disabled by default.
	Cache cache.Store

	// CacheTTL is the lifetime of cached entries (default 1 hour).
	CacheTTL time.Duration

	// RequestInterval overrides the rate limit spacing. Zero derives the
	// interval from APIKey per the usage policy. Tests use a negative
	// value to disable spacing.
	RequestInterval time.Duration

	// HTTPClient overrides the internal pooled client when non-nil.
	HTTPClient *http.Client
}

// DefaultConfig returns the documented default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Tool:              "pubmed-client",
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		ConnectTimeout:    10 * time.Second,
		ReadTimeout:       30 * time.Second,
		ChunkSize:         200,
		CacheTTL:          time.Hour,
	}
}

// SearchOptions carries the optional search parameters.
type SearchOptions struct {
	// MinDate and MaxDate bound the publication date range, in YYYY/MM/DD
	// format. Both must be set together or not at all per E-utilities
	// semantics; the client validates the format, the service the range.
	MinDate string
	MaxDate string
}

// Client is a PubMed E-utilities client. Safe for concurrent use: the rate
// limiter and cache are the only shared mutable state and both are
// internally synchronized.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	cache      cache.Store
	config     Config
	logger     zerolog.Logger
}

// New creates a client. Zero-valued config fields fall back to the
// DefaultConfig values, so Config{} is a working keyless configuration.
func New(cfg Config) (*Client, error) {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Tool == "" {
		cfg.Tool = defaults.Tool
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}

	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	logger := log.With().Str("component", "pubmed-client").Logger()

	interval := cfg.RequestInterval
	if interval == 0 {
		interval = ratelimit.IntervalFor(cfg.APIKey)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Pooled transport: connections are reused across calls, with a
		// connect timeout on dialing and an overall deadline on the
		// client so no attempt can block indefinitely.
		httpClient = &http.Client{
			Timeout: cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   cfg.ConnectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    ratelimit.New(interval, logger),
		cache:      cfg.Cache,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Search queries PubMed for the term and returns the matching PMIDs in
// service order plus the total match count. maxResults caps the returned
// ids; the count may exceed it.
//
// Validation failures (non-positive maxResults, malformed date bounds)
// surface before any network call.
func (c *Client) Search(ctx context.Context, term string, maxResults int, opts *SearchOptions) (*types.SearchResult, error) {
	if maxResults <= 0 {
		return nil, newValidationError("maxResults must be positive, got %d", maxResults)
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "json")

	if opts != nil && (opts.MinDate != "" || opts.MaxDate != "") {
		for _, d := range []string{opts.MinDate, opts.MaxDate} {
			if d == "" {
				continue
			}
			if _, err := time.Parse(dateFormat, d); err != nil {
				return nil, newValidationError("date %q does not match YYYY/MM/DD", d)
			}
		}
		params.Set("datetype", "pdat")
		if opts.MinDate != "" {
			params.Set("mindate", opts.MinDate)
		}
		if opts.MaxDate != "" {
			params.Set("maxdate", opts.MaxDate)
		}
	}

	key := cache.Key{Endpoint: "esearch", Params: params}.String()
	if cached, ok := c.cacheGet(ctx, key); ok {
		var result types.SearchResult
		if err := json.Unmarshal(cached, &result); err == nil {
			c.logger.Debug().Str("term", term).Msg("Search served from cache")
			return &result, nil
		}
	}

	body, err := c.doGet(ctx, "esearch", params)
	if err != nil {
		return nil, err
	}

	result, err := eutils.ParseSearchResult(body)
	if err != nil {
		return nil, wrapParseError(err)
	}

	if data, err := json.Marshal(result); err == nil {
		c.cachePut(ctx, key, data)
	}

	c.logger.Debug().
		Str("term", term).
		Int("ids", len(result.IDs)).
		Int("count", result.Count).
		Msg("Search complete")

	return result, nil
}

// Fetch retrieves full records for the given PMIDs, preserving the
// caller's id order in the result. Cached records are served without
// network traffic; the remaining ids are fetched in sequential batches of
// at most ChunkSize. Ids unknown to the service are skipped.
func (c *Client) Fetch(ctx context.Context, ids []string) ([]types.Article, error) {
	if len(ids) == 0 {
		return nil, newValidationError("ids must not be empty")
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, newValidationError("ids must not contain empty values")
		}
	}

	found := make(map[string]types.Article, len(ids))

	// Partition into cached vs missing, preserving first-seen order of
	// the misses and requesting each id only once.
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if data, ok := c.cacheGet(ctx, cache.ArticleKey(id)); ok {
			var a types.Article
			if err := json.Unmarshal(data, &a); err == nil {
				found[id] = a
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(found) > 0 {
		c.logger.Debug().
			Int("cached", len(found)).
			Int("missing", len(missing)).
			Msg("Fetch partial cache hit")
	}

	for _, chunk := range chunkIDs(missing, c.config.ChunkSize) {
		articles, err := c.fetchChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for _, a := range articles {
			found[a.PMID] = a
			if data, err := json.Marshal(a); err == nil {
				c.cachePut(ctx, cache.ArticleKey(a.PMID), data)
			}
		}
	}

	// Reassemble in the caller's original order regardless of which
	// records came from cache vs network.
	result := make([]types.Article, 0, len(ids))
	for _, id := range ids {
		a, ok := found[id]
		if !ok {
			c.logger.Warn().Str("pmid", id).Msg("PMID missing from fetch response")
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

// SearchAndFetch composes Search and Fetch: it returns full records for
// the ids matching the term, capped at maxResults.
func (c *Client) SearchAndFetch(ctx context.Context, term string, maxResults int, opts *SearchOptions) ([]types.Article, error) {
	result, err := c.Search(ctx, term, maxResults, opts)
	if err != nil {
		return nil, err
	}
	if len(result.IDs) == 0 {
		return []types.Article{}, nil
	}
	return c.Fetch(ctx, result.IDs)
}

// ClearCache removes all cached entries immediately. A no-op when caching
// is disabled.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// fetchChunk issues one efetch request for up to ChunkSize ids.
func (c *Client) fetchChunk(ctx context.Context, ids []string) ([]types.Article, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")

	body, err := c.doGet(ctx, "efetch", params)
	if err != nil {
		return nil, err
	}

	articles, err := eutils.ParseArticleSet(body)
	if err != nil {
		return nil, wrapParseError(err)
	}
	return articles, nil
}

// doGet performs one rate-limited, retried GET against an E-utilities
// endpoint and returns the response body.
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	reqURL := c.requestURL(endpoint, params)

	var body []byte
	err := retryWithBackoff(ctx, retryPolicy{
		MaxAttempts:    c.config.MaxAttempts,
		InitialBackoff: c.config.InitialBackoff,
		MaxBackoff:     c.config.MaxBackoff,
		Multiplier:     c.config.BackoffMultiplier,
	}, c.logger, func() error {
		// Every attempt takes a fresh rate limit slot so retries stay
		// inside the permitted request rate.
		c.limiter.Acquire()

		var attemptErr error
		body, attemptErr = c.attempt(ctx, endpoint, reqURL)
		return attemptErr
	})
	if err != nil {
		if class := classOf(err); class != "" {
			errorsTotal.WithLabelValues(string(class)).Inc()
		}
		return nil, err
	}

	return body, nil
}

// attempt executes a single HTTP GET and classifies the outcome.
func (c *Client) attempt(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{Class: ErrorClassValidation, Message: "create request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &Error{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		// Drain so the pooled connection can be reused.
		io.Copy(io.Discard, resp.Body)

		class := classifyStatus(resp.StatusCode)
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("E-utilities request error")

		return nil, &Error{
			Class:      class,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Class: ErrorClassNetwork, Message: "read response body", Err: err}
	}
	return body, nil
}

// requestURL builds the endpoint URL with identity and credential
// parameters appended.
func (c *Client) requestURL(endpoint string, params url.Values) string {
	full := url.Values{}
	for name, values := range params {
		full[name] = values
	}

	if c.config.Tool != "" {
		full.Set("tool", c.config.Tool)
	}
	if c.config.Email != "" {
		full.Set("email", c.config.Email)
	}
	if c.config.APIKey != "" {
		full.Set("api_key", c.config.APIKey)
	}

	return fmt.Sprintf("%s/%s.fcgi?%s",
		strings.TrimRight(c.config.BaseURL, "/"), endpoint, full.Encode())
}

// classifyStatus maps an HTTP error status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// wrapParseError lifts a eutils parse failure into the client error root.
func wrapParseError(err error) error {
	var pe *eutils.ParseError
	if errors.As(err, &pe) {
		return &Error{Class: ErrorClassParse, Message: "malformed response document", Err: err}
	}
	return err
}

// cacheGet reads a key from the cache, reporting a miss when caching is
// disabled.
func (c *Client) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache get error")
		}
		return nil, false
	}
	return data, true
}

// cachePut stores a key, silently skipping when caching is disabled. Cache
// failures never fail the request that produced the value.
func (c *Client) cachePut(ctx context.Context, key string, data []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.config.CacheTTL); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache set error")
	}
}

// chunkIDs splits ids into ceil(len/size) ordered slices of at most size.
func chunkIDs(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
