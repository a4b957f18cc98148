package eutils

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pubmed-client/pkg/types"
)

// ParseError indicates a structurally malformed response document. It is
// never retried: the payload is already received, retrying cannot fix it.
type ParseError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Message, e.Err)
	}
	return "parse " + e.Message
}

// Unwrap returns the underlying decoder error.
func (e *ParseError) Unwrap() error { return e.Err }

// months maps lowercase three-letter month prefixes to calendar months.
// The document may carry months as numbers ("1", "12"), short names
// ("Jan"), or full names ("January"); names are matched case-insensitively
// on the first three letters.
var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseArticleSet decodes an efetch XML payload into domain articles in
// document order.
//
// A payload that is not well-formed XML fails the whole call with a
// *ParseError. Within a well-formed document the decoding is deliberately
// lenient: absent optional fields become zero values, and an unrecognized
// or missing publication month falls back to January with the article's
// DatesApproximate flag set. The fallback preserves the upstream service's
// behavior; callers that need exact dates must check the flag.
func ParseArticleSet(data []byte) ([]types.Article, error) {
	var set pubmedArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, &ParseError{Message: "article set", Err: err}
	}

	articles := make([]types.Article, 0, len(set.Articles))
	for _, wire := range set.Articles {
		articles = append(articles, mapArticle(wire))
	}
	return articles, nil
}

// ParseSearchResult decodes an esearch retmode=json payload.
func ParseSearchResult(data []byte) (*types.SearchResult, error) {
	var env esearchEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ParseError{Message: "search result", Err: err}
	}

	// Count is a decimal string in the NCBI payload; a missing or garbled
	// count degrades to the returned id count rather than failing.
	count, err := strconv.Atoi(env.Result.Count)
	if err != nil {
		count = len(env.Result.IDList)
	}

	return &types.SearchResult{
		IDs:   env.Result.IDList,
		Count: count,
	}, nil
}

// mapArticle converts one article subtree into the domain model.
func mapArticle(wire pubmedArticle) types.Article {
	cit := wire.MedlineCitation

	a := types.Article{
		PMID:     strings.TrimSpace(cit.PMID),
		Title:    strings.TrimSpace(cit.Article.Title),
		Abstract: joinAbstract(cit.Article.Abstract.Sections),
		Journal:  strings.TrimSpace(cit.Article.Journal.Title),
	}

	for _, au := range cit.Article.Authors {
		if name := authorName(au); name != "" {
			a.Authors = append(a.Authors, name)
		}
	}

	for _, mh := range cit.MeshHeadings {
		if d := strings.TrimSpace(mh.Descriptor); d != "" {
			a.MeSHTerms = append(a.MeSHTerms, d)
		}
	}

	for _, kw := range cit.Keywords {
		if k := strings.TrimSpace(kw); k != "" {
			a.Keywords = append(a.Keywords, k)
		}
	}

	for _, loc := range cit.Article.ELocationIDs {
		if strings.EqualFold(loc.IDType, "doi") && loc.ValidYN != "N" {
			a.DOI = strings.TrimSpace(loc.Value)
			break
		}
	}

	var approx bool
	a.PublicationDate, approx = parseDate(cit.Article.ArticleDate)
	a.DatesApproximate = a.DatesApproximate || approx

	a.JournalDate, approx = parseDate(cit.Article.Journal.PubDate)
	a.DatesApproximate = a.DatesApproximate || approx

	return a
}

// joinAbstract concatenates abstract sections with a single space in
// document order. Section labels are dropped; that structure is not
// representable in the flat Abstract field.
func joinAbstract(sections []abstractSection) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// authorName renders an author as "ForeName LastName". Group authors carry
// only a CollectiveName, which is passed through verbatim.
func authorName(au author) string {
	if cn := strings.TrimSpace(au.CollectiveName); cn != "" {
		return cn
	}

	last := strings.TrimSpace(au.LastName)
	fore := strings.TrimSpace(au.ForeName)
	if fore == "" {
		fore = strings.TrimSpace(au.Initials)
	}

	switch {
	case fore != "" && last != "":
		return fore + " " + last
	case last != "":
		return last
	default:
		return ""
	}
}

// parseDate converts a loosely-typed wire date into a calendar date.
//
// The returned bool reports whether the month was defaulted to January
// because it was missing or unrecognized. A missing or non-numeric year
// makes the whole date absent, as does a day that is present but invalid
// for the resolved year and month. A missing day defaults to the first of
// the month.
func parseDate(d wireDat) (*time.Time, bool) {
	yearStr := strings.TrimSpace(d.Year)
	if yearStr == "" {
		return nil, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return nil, false
	}

	month, monthOK := parseMonth(d.Month)

	day := 1
	if dayStr := strings.TrimSpace(d.Day); dayStr != "" {
		day, err = strconv.Atoi(dayStr)
		if err != nil {
			return nil, !monthOK
		}
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		// time.Date normalized an out-of-range day (e.g. Feb 30).
		return nil, !monthOK
	}

	return &t, !monthOK
}

// parseMonth resolves a numeric or named month. The second return value is
// false when the month was missing or unrecognized and January was used.
func parseMonth(s string) (time.Month, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.January, false
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n), true
		}
		return time.January, false
	}

	name := strings.ToLower(s)
	if len(name) > 3 {
		name = name[:3]
	}
	if m, ok := months[name]; ok {
		return m, true
	}
	return time.January, false
}
