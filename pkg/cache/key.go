package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached E-utilities response: the endpoint name plus the
// request parameters that shape the result. Two requests with the same
// endpoint and parameters always produce the same key regardless of
// parameter order.
type Key struct {
	// Endpoint is the E-utilities endpoint name (e.g. "esearch").
	Endpoint string

	// Params are the request parameters. Credential and identity
	// parameters (api_key, tool, email) do not change the result and
	// should be excluded by the caller.
	Params url.Values
}

// String generates a deterministic key string.
// Format: endpoint:param1=val1:param2=val2 with parameters sorted by name.
//
// Example:
//
//	esearch:retmax=5:term=cancer
func (k Key) String() string {
	parts := []string{k.Endpoint}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params.Get(name)))
		}
	}

	return strings.Join(parts, ":")
}

// ArticleKey returns the cache key for a single fetched article.
func ArticleKey(pmid string) string {
	return "efetch:pubmed:" + pmid
}
