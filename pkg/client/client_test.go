package client

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/Sternrassler/pubmed-client/internal/testutil"
	"github.com/Sternrassler/pubmed-client/pkg/cache"
)

// newTestClient creates a client pointed at the mock server, with rate
// limit spacing disabled and fast backoff.
func newTestClient(t *testing.T, mock *testutil.MockEutils, cfg Config) *Client {
	t.Helper()

	cfg.BaseURL = mock.URL()
	cfg.RequestInterval = -1
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Millisecond
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSearchValidation(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	c := newTestClient(t, mock, Config{})

	ctx := context.Background()

	tests := []struct {
		name       string
		maxResults int
		opts       *SearchOptions
	}{
		{"zero maxResults", 0, nil},
		{"negative maxResults", -5, nil},
		{"bad min date", 10, &SearchOptions{MinDate: "2024-01-01"}},
		{"bad max date", 10, &SearchOptions{MinDate: "2024/01/01", MaxDate: "Jan 2024"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Search(ctx, "cancer", tt.maxResults, tt.opts)
			if !IsValidation(err) {
				t.Errorf("Search returned %v, want validation error", err)
			}
		})
	}

	// Validation failures must never reach the network.
	if total, _, _ := mock.Counts(); total != 0 {
		t.Errorf("validation failures made %d requests, want 0", total)
	}
}

func TestSearch(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.SetSearchResult([]string{"39344136", "39344137"}, 1542)

	c := newTestClient(t, mock, Config{
		APIKey: "secret-key",
		Tool:   "mytool",
		Email:  "dev@example.com",
	})

	result, err := c.Search(context.Background(), "cancer", 2, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if !reflect.DeepEqual(result.IDs, []string{"39344136", "39344137"}) {
		t.Errorf("IDs = %v", result.IDs)
	}
	if result.Count != 1542 {
		t.Errorf("Count = %d, want 1542", result.Count)
	}

	query := mock.LastQuery
	for param, want := range map[string]string{
		"db":      "pubmed",
		"term":    "cancer",
		"retmax":  "2",
		"retmode": "json",
		"tool":    "mytool",
		"email":   "dev@example.com",
		"api_key": "secret-key",
	} {
		if got := query.Get(param); got != want {
			t.Errorf("query param %s = %q, want %q", param, got, want)
		}
	}
}

func TestSearchDateBounds(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.SetSearchResult([]string{"1"}, 1)

	c := newTestClient(t, mock, Config{})

	_, err := c.Search(context.Background(), "CRISPR", 5, &SearchOptions{
		MinDate: "2024/01/01",
		MaxDate: "2024/12/31",
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	query := mock.LastQuery
	if got := query.Get("datetype"); got != "pdat" {
		t.Errorf("datetype = %q, want pdat", got)
	}
	if got := query.Get("mindate"); got != "2024/01/01" {
		t.Errorf("mindate = %q", got)
	}
	if got := query.Get("maxdate"); got != "2024/12/31" {
		t.Errorf("maxdate = %q", got)
	}
}

func TestSearchCached(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.SetSearchResult([]string{"1", "2"}, 2)

	c := newTestClient(t, mock, Config{Cache: cache.NewMemoryStore()})
	ctx := context.Background()

	first, err := c.Search(ctx, "cancer", 5, nil)
	if err != nil {
		t.Fatalf("first Search failed: %v", err)
	}

	second, err := c.Search(ctx, "cancer", 5, nil)
	if err != nil {
		t.Fatalf("second Search failed: %v", err)
	}

	if _, esearch, _ := mock.Counts(); esearch != 1 {
		t.Errorf("esearch requests = %d, want 1 (second search cached)", esearch)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}

	// A different retmax is a different key.
	if _, err := c.Search(ctx, "cancer", 10, nil); err != nil {
		t.Fatalf("third Search failed: %v", err)
	}
	if _, esearch, _ := mock.Counts(); esearch != 2 {
		t.Errorf("esearch requests = %d, want 2 after changed retmax", esearch)
	}
}

func TestFetchValidation(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	c := newTestClient(t, mock, Config{})

	ctx := context.Background()

	if _, err := c.Fetch(ctx, nil); !IsValidation(err) {
		t.Errorf("Fetch(nil) returned %v, want validation error", err)
	}
	if _, err := c.Fetch(ctx, []string{"1", " ", "2"}); !IsValidation(err) {
		t.Errorf("Fetch with blank id returned %v, want validation error", err)
	}

	if total, _, _ := mock.Counts(); total != 0 {
		t.Errorf("validation failures made %d requests, want 0", total)
	}
}

func TestFetchPreservesCallerOrder(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()

	// Serve the articles in reversed order to prove the client reorders.
	mock.SetResponse("/efetch.fcgi", testutil.MockResponse{
		Body: testutil.ArticleSetXML(
			testutil.ArticleXML("30", "Third"),
			testutil.ArticleXML("20", "Second"),
			testutil.ArticleXML("10", "First"),
		),
	})

	c := newTestClient(t, mock, Config{})

	articles, err := c.Fetch(context.Background(), []string{"10", "20", "30"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	var pmids []string
	for _, a := range articles {
		pmids = append(pmids, a.PMID)
	}
	if !reflect.DeepEqual(pmids, []string{"10", "20", "30"}) {
		t.Errorf("result order = %v, want caller order [10 20 30]", pmids)
	}
}

func TestFetchChunking(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.ServeArticles()

	c := newTestClient(t, mock, Config{ChunkSize: 2})

	ids := []string{"1", "2", "3", "4", "5"}
	articles, err := c.Fetch(context.Background(), ids)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(articles) != 5 {
		t.Fatalf("got %d articles, want 5", len(articles))
	}
	for i, a := range articles {
		if a.PMID != ids[i] {
			t.Errorf("articles[%d].PMID = %s, want %s", i, a.PMID, ids[i])
		}
	}

	if _, _, efetch := mock.Counts(); efetch != 3 {
		t.Errorf("efetch requests = %d, want 3 (5 ids in chunks of 2)", efetch)
	}

	wantBatches := [][]string{{"1", "2"}, {"3", "4"}, {"5"}}
	if !reflect.DeepEqual(mock.EfetchIDs, wantBatches) {
		t.Errorf("batches = %v, want %v", mock.EfetchIDs, wantBatches)
	}
}

func TestFetchDeduplicatesRequest(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.ServeArticles()

	c := newTestClient(t, mock, Config{})

	articles, err := c.Fetch(context.Background(), []string{"1", "1", "2"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// Each id is requested once, but the caller's positions are all served.
	if !reflect.DeepEqual(mock.EfetchIDs, [][]string{{"1", "2"}}) {
		t.Errorf("requested ids = %v, want [[1 2]]", mock.EfetchIDs)
	}
	if len(articles) != 3 || articles[0].PMID != "1" || articles[1].PMID != "1" || articles[2].PMID != "2" {
		t.Errorf("articles = %v", articles)
	}
}

func TestFetchSkipsUnknownIDs(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()

	// The service returns records only for ids it knows.
	mock.SetResponse("/efetch.fcgi", testutil.MockResponse{
		Body: testutil.ArticleSetXML(testutil.ArticleXML("1", "Known")),
	})

	c := newTestClient(t, mock, Config{})

	articles, err := c.Fetch(context.Background(), []string{"1", "99999"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(articles) != 1 || articles[0].PMID != "1" {
		t.Errorf("articles = %v, want just PMID 1", articles)
	}
}

func TestFetchCached(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.ServeArticles()

	c := newTestClient(t, mock, Config{Cache: cache.NewMemoryStore()})
	ctx := context.Background()

	first, err := c.Fetch(ctx, []string{"1", "2"})
	if err != nil {
		t.Fatalf("first Fetch failed: %v", err)
	}

	second, err := c.Fetch(ctx, []string{"1", "2"})
	if err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}

	if _, _, efetch := mock.Counts(); efetch != 1 {
		t.Errorf("efetch requests = %d, want 1 (second fetch fully cached)", efetch)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached fetch differs from original")
	}
}

func TestFetchPartialCacheHit(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.ServeArticles()

	c := newTestClient(t, mock, Config{Cache: cache.NewMemoryStore()})
	ctx := context.Background()

	if _, err := c.Fetch(ctx, []string{"1", "2"}); err != nil {
		t.Fatalf("first Fetch failed: %v", err)
	}

	articles, err := c.Fetch(ctx, []string{"1", "2", "3"})
	if err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("got %d articles, want 3", len(articles))
	}

	// Only the uncached id goes over the wire.
	wantBatches := [][]string{{"1", "2"}, {"3"}}
	if !reflect.DeepEqual(mock.EfetchIDs, wantBatches) {
		t.Errorf("batches = %v, want %v", mock.EfetchIDs, wantBatches)
	}
}

func TestClearCache(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.ServeArticles()

	c := newTestClient(t, mock, Config{Cache: cache.NewMemoryStore()})
	ctx := context.Background()

	if _, err := c.Fetch(ctx, []string{"1"}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if err := c.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	if _, err := c.Fetch(ctx, []string{"1"}); err != nil {
		t.Fatalf("Fetch after clear failed: %v", err)
	}

	if _, _, efetch := mock.Counts(); efetch != 2 {
		t.Errorf("efetch requests = %d, want 2 (cache was cleared)", efetch)
	}
}

func TestClearCacheDisabled(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	c := newTestClient(t, mock, Config{})

	if err := c.ClearCache(context.Background()); err != nil {
		t.Errorf("ClearCache without cache returned %v, want nil", err)
	}
}

func TestSearchAndFetch(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.SetSearchResult([]string{"2", "1"}, 50)
	mock.ServeArticles()

	c := newTestClient(t, mock, Config{})

	articles, err := c.SearchAndFetch(context.Background(), "cancer", 2, nil)
	if err != nil {
		t.Fatalf("SearchAndFetch failed: %v", err)
	}

	// Result follows the search ranking order.
	if len(articles) != 2 || articles[0].PMID != "2" || articles[1].PMID != "1" {
		t.Errorf("articles = %v, want search order [2 1]", articles)
	}
}

func TestSearchAndFetchNoMatches(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.SetSearchResult(nil, 0)

	c := newTestClient(t, mock, Config{})

	articles, err := c.SearchAndFetch(context.Background(), "zzzznotaterm", 5, nil)
	if err != nil {
		t.Fatalf("SearchAndFetch failed: %v", err)
	}
	if articles == nil || len(articles) != 0 {
		t.Errorf("articles = %v, want empty non-nil slice", articles)
	}
	if _, _, efetch := mock.Counts(); efetch != 0 {
		t.Errorf("efetch requests = %d, want 0 for empty search", efetch)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.SetResponse("/esearch.fcgi", testutil.MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error":"invalid query"}`,
	})

	c := newTestClient(t, mock, Config{MaxAttempts: 3})

	_, err := c.Search(context.Background(), "cancer", 5, nil)
	if err == nil {
		t.Fatal("Search succeeded, want client error")
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error type %T, want *Error", err)
	}
	if e.Class != ErrorClassClient {
		t.Errorf("Class = %s, want client", e.Class)
	}
	if e.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", e.StatusCode)
	}

	if total, _, _ := mock.Counts(); total != 1 {
		t.Errorf("requests = %d, want 1 (4xx is not retried)", total)
	}
}

func TestMalformedFetchResponse(t *testing.T) {
	mock := testutil.NewMockEutils()
	defer mock.Close()
	mock.SetResponse("/efetch.fcgi", testutil.MockResponse{
		Body: "<PubmedArticleSet><PubmedArticle>",
	})

	c := newTestClient(t, mock, Config{})

	_, err := c.Fetch(context.Background(), []string{"1"})
	if !IsParse(err) {
		t.Errorf("Fetch returned %v, want parse error", err)
	}

	if total, _, _ := mock.Counts(); total != 1 {
		t.Errorf("requests = %d, want 1 (parse errors are not retried)", total)
	}
}

func TestChunkIDs(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		size int
		want [][]string
	}{
		{"empty", nil, 3, nil},
		{"single partial", []string{"1"}, 3, [][]string{{"1"}}},
		{"exact multiple", []string{"1", "2", "3", "4"}, 2, [][]string{{"1", "2"}, {"3", "4"}}},
		{"trailing partial", []string{"1", "2", "3"}, 2, [][]string{{"1", "2"}, {"3"}}},
		{"chunk larger than input", []string{"1", "2"}, 10, [][]string{{"1", "2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunkIDs(tt.ids, tt.size)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("chunkIDs(%v, %d) = %v, want %v", tt.ids, tt.size, got, tt.want)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if c.config.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %s", c.config.BaseURL)
	}
	if c.config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", c.config.MaxAttempts)
	}
	if c.config.ChunkSize != 200 {
		t.Errorf("ChunkSize = %d, want 200", c.config.ChunkSize)
	}
	if c.limiter.Interval() != 334*time.Millisecond {
		t.Errorf("keyless interval = %v, want 334ms", c.limiter.Interval())
	}
}

func TestNewAPIKeyRaisesRate(t *testing.T) {
	c, err := New(Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if c.limiter.Interval() != 100*time.Millisecond {
		t.Errorf("keyed interval = %v, want 100ms", c.limiter.Interval())
	}
}
