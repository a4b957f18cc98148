// Package testutil provides testing utilities for the PubMed client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock E-utilities endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockEutils is a configurable mock E-utilities server for testing. It
// serves /esearch.fcgi and /efetch.fcgi and records every request for
// assertions.
type MockEutils struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	EfetchCount  int
	EsearchCount int
	LastQuery    url.Values
	EfetchIDs    [][]string
}

// NewMockEutils creates a new mock E-utilities server.
func NewMockEutils() *MockEutils {
	mock := &MockEutils{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		switch r.URL.Path {
		case "/esearch.fcgi":
			mock.EsearchCount++
		case "/efetch.fcgi":
			mock.EfetchCount++
			if ids := r.URL.Query().Get("id"); ids != "" {
				mock.EfetchIDs = append(mock.EfetchIDs, strings.Split(ids, ","))
			}
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockEutils) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockEutils) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockEutils) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.EsearchCount = 0
	m.EfetchCount = 0
	m.LastQuery = nil
	m.EfetchIDs = nil
}

// Counts returns the current request counters under the lock.
func (m *MockEutils) Counts() (total, esearch, efetch int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount, m.EsearchCount, m.EfetchCount
}

// SetHandler sets a custom handler for a path ("/esearch.fcgi" or
// "/efetch.fcgi").
func (m *MockEutils) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a static response for a path.
func (m *MockEutils) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		fmt.Fprint(w, resp.Body)
	})
}

// SetSearchResult serves an esearch JSON response carrying the given ids
// and total count.
func (m *MockEutils) SetSearchResult(ids []string, count int) {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	body := fmt.Sprintf(`{"esearchresult":{"count":"%d","retmax":"%d","idlist":[%s]}}`,
		count, len(ids), strings.Join(quoted, ","))
	m.SetResponse("/esearch.fcgi", MockResponse{Body: body})
}

// ServeArticles serves efetch responses built from the requested ids: each
// id in the request's id parameter gets a minimal article subtree with a
// derived title. Unknown behavior can be injected with SetHandler instead.
func (m *MockEutils) ServeArticles() {
	m.SetHandler("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		var sb strings.Builder
		sb.WriteString("<PubmedArticleSet>")
		for _, id := range ids {
			sb.WriteString(ArticleXML(id, "Article "+id))
		}
		sb.WriteString("</PubmedArticleSet>")
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, sb.String())
	})
}

// ArticleXML builds a minimal PubmedArticle subtree for canned responses.
func ArticleXML(pmid, title string) string {
	return fmt.Sprintf(`<PubmedArticle>
  <MedlineCitation>
    <PMID>%s</PMID>
    <Article>
      <Journal>
        <Title>Test Journal</Title>
        <JournalIssue><PubDate><Year>2024</Year><Month>Jan</Month><Day>15</Day></PubDate></JournalIssue>
      </Journal>
      <ArticleTitle>%s</ArticleTitle>
      <Abstract><AbstractText>Abstract for %s.</AbstractText></Abstract>
      <AuthorList>
        <Author><LastName>Doe</LastName><ForeName>Jane</ForeName></Author>
      </AuthorList>
    </Article>
  </MedlineCitation>
</PubmedArticle>`, pmid, title, pmid)
}

// ArticleSetXML wraps article subtrees in the document root.
func ArticleSetXML(articles ...string) string {
	return "<PubmedArticleSet>" + strings.Join(articles, "") + "</PubmedArticleSet>"
}
