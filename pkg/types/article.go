// Package types defines the domain value objects returned by the PubMed
// client: articles and search results. Values carry no back-references and
// are safe to copy.
package types

import "time"

// ArticleURLBase is the public PubMed page prefix used to derive article URLs.
const ArticleURLBase = "https://pubmed.ncbi.nlm.nih.gov/"

// Article is a single PubMed record.
//
// PMID is the only required field. Every other field defaults to its zero
// value when absent from the source document; absence is never a parse
// failure.
type Article struct {
	// PMID is the unique PubMed identifier (non-empty).
	PMID string `json:"pmid"`

	// Title is the article title.
	Title string `json:"title"`

	// Abstract is the full abstract text. Structured abstracts are joined
	// with a single space in section order; section labels ("Background",
	// "Methods", ...) are not retained.
	Abstract string `json:"abstract"`

	// Authors lists author names in citation order ("ForeName LastName",
	// or the collective name for group authors).
	Authors []string `json:"authors"`

	// Journal is the full journal title.
	Journal string `json:"journal"`

	// MeSHTerms are the MeSH descriptor names attached to the citation.
	MeSHTerms []string `json:"mesh_terms"`

	// Keywords are the author-supplied keywords.
	Keywords []string `json:"keywords"`

	// DOI is the Digital Object Identifier, empty when not assigned.
	DOI string `json:"doi,omitempty"`

	// PublicationDate is the electronic publication date (ArticleDate in
	// the source document). Nil when absent or unparseable.
	PublicationDate *time.Time `json:"publication_date,omitempty"`

	// JournalDate is the print publication date (the journal issue
	// PubDate). Nil when absent or unparseable.
	JournalDate *time.Time `json:"journal_date,omitempty"`

	// DatesApproximate is set when a publication month was missing or
	// unrecognized and defaulted to January. The dates above are then a
	// best-effort approximation, not an exact publication date.
	DatesApproximate bool `json:"dates_approximate,omitempty"`
}

// URL returns the public PubMed page for the article, derived from the PMID.
func (a Article) URL() string {
	return ArticleURLBase + a.PMID + "/"
}

// SearchResult is the outcome of a term search: the matching PMIDs in
// service order, capped at the caller's maximum, and the total match count,
// which may exceed len(IDs).
type SearchResult struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}
