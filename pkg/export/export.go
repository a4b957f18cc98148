// Package export serializes article lists to JSON and CSV and reads them
// back. The CSV layout keeps the abstract near the end because it is often
// long, joins list fields with "; ", and starts with a UTF-8 BOM so
// spreadsheet tools detect the encoding.
//
// A JSON round trip preserves every article field. The CSV format does not
// carry the DatesApproximate flag; re-imported articles lose it.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/pubmed-client/pkg/types"
)

// csvColumns is the CSV column order.
var csvColumns = []string{
	"pmid", "title", "authors", "journal",
	"publication_date", "journal_date",
	"abstract", "doi", "url",
	"mesh_terms", "keywords",
}

const (
	// listSeparator joins list fields (authors, mesh_terms, keywords).
	listSeparator = "; "

	// bom is the UTF-8 byte order mark prepended to CSV output.
	bom = "\uFEFF"

	// csvDateFormat is the ISO date layout used in CSV cells.
	csvDateFormat = "2006-01-02"
)

// record is the JSON wire form of an article, extended with the derived
// URL so exported files are useful on their own.
type record struct {
	types.Article
	URL string `json:"url"`
}

// ToJSON renders articles as a JSON array.
func ToJSON(articles []types.Article) ([]byte, error) {
	records := make([]record, len(articles))
	for i, a := range articles {
		records[i] = record{Article: a, URL: a.URL()}
	}
	return json.Marshal(records)
}

// FromJSON parses a JSON array produced by ToJSON. The stored URL is
// discarded; it is derived from the PMID.
func FromJSON(data []byte) ([]types.Article, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse JSON export: %w", err)
	}

	articles := make([]types.Article, len(records))
	for i, r := range records {
		articles[i] = r.Article
	}
	return articles, nil
}

// SaveJSON writes articles to a JSON file.
func SaveJSON(articles []types.Article, path string) error {
	data, err := ToJSON(articles)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadJSON reads articles from a JSON file written by SaveJSON.
func LoadJSON(path string) ([]types.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromJSON(data)
}

// ToCSV renders articles as CSV with a UTF-8 BOM and a header row.
func ToCSV(articles []types.Article) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(bom)

	w := csv.NewWriter(&buf)
	if err := w.Write(csvColumns); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	for _, a := range articles {
		if err := w.Write(csvRow(a)); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// FromCSV parses CSV produced by ToCSV. A leading BOM is stripped.
func FromCSV(data []byte) ([]types.Article, error) {
	text := strings.TrimPrefix(string(data), bom)

	r := csv.NewReader(strings.NewReader(text))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV export: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("parse CSV export: missing header row")
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[name] = i
	}
	for _, name := range csvColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("parse CSV export: missing column %q", name)
		}
	}

	articles := make([]types.Article, 0, len(rows)-1)
	for _, row := range rows[1:] {
		a, err := rowArticle(row, index)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// SaveCSV writes articles to a CSV file.
func SaveCSV(articles []types.Article, path string) error {
	data, err := ToCSV(articles)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadCSV reads articles from a CSV file written by SaveCSV.
func LoadCSV(path string) ([]types.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromCSV(data)
}

// csvRow renders one article in csvColumns order.
func csvRow(a types.Article) []string {
	return []string{
		a.PMID,
		a.Title,
		strings.Join(a.Authors, listSeparator),
		a.Journal,
		formatDate(a.PublicationDate),
		formatDate(a.JournalDate),
		a.Abstract,
		a.DOI,
		a.URL(),
		strings.Join(a.MeSHTerms, listSeparator),
		strings.Join(a.Keywords, listSeparator),
	}
}

// rowArticle converts one CSV row back into an article. The url column is
// ignored; it is derived from the PMID.
func rowArticle(row []string, index map[string]int) (types.Article, error) {
	cell := func(name string) string {
		i := index[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	pubDate, err := parseDate(cell("publication_date"))
	if err != nil {
		return types.Article{}, err
	}
	journalDate, err := parseDate(cell("journal_date"))
	if err != nil {
		return types.Article{}, err
	}

	return types.Article{
		PMID:            cell("pmid"),
		Title:           cell("title"),
		Abstract:        cell("abstract"),
		Authors:         splitList(cell("authors")),
		Journal:         cell("journal"),
		MeSHTerms:       splitList(cell("mesh_terms")),
		Keywords:        splitList(cell("keywords")),
		DOI:             cell("doi"),
		PublicationDate: pubDate,
		JournalDate:     journalDate,
	}, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(csvDateFormat)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(csvDateFormat, s)
	if err != nil {
		return nil, fmt.Errorf("parse CSV date %q: %w", s, err)
	}
	return &t, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}
