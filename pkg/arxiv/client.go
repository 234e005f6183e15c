// Package arxiv is the arXiv Atom API adapter. arXiv reports no citation
// counts; its records mostly contribute abstracts, categories and OA links
// to merged papers.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/httpclient"
	"github.com/litscout/backend/internal/normalize"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"

const maxResults = 100

type Client struct {
	http    *httpclient.Client
	baseURL string
}

func NewClient() *Client {
	return &Client{
		http:    httpclient.New("litscout/1.0 (research aggregation)"),
		baseURL: defaultBaseURL,
	}
}

func (c *Client) Name() domain.Source {
	return domain.SourceArxiv
}

type feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []entry  `xml:"entry"`
}

type entry struct {
	ID         string       `xml:"id"`
	Title      string       `xml:"title"`
	Summary    string       `xml:"summary"`
	Published  string       `xml:"published"`
	Authors    []feedAuthor `xml:"author"`
	Links      []link       `xml:"link"`
	Categories []category   `xml:"category"`
	JournalRef string       `xml:"journal_ref"`
	DOI        string       `xml:"doi"`
}

type feedAuthor struct {
	Name string `xml:"name"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

type category struct {
	Term string `xml:"term,attr"`
}

// Search queries the arXiv API. Year bounds become a submittedDate range
// clause appended to the query.
func (c *Client) Search(ctx context.Context, query string, limit, yearMin, yearMax int) ([]*domain.PaperRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxResults {
		limit = maxResults
	}

	searchQuery := fmt.Sprintf("all:%s", query)
	if clause := dateClause(yearMin, yearMax); clause != "" {
		searchQuery += " AND " + clause
	}

	params := url.Values{}
	params.Set("search_query", searchQuery)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", limit))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	return c.fetch(ctx, fmt.Sprintf("%s?%s", c.baseURL, params.Encode()))
}

// Get resolves a single paper by arXiv ID.
func (c *Client) Get(ctx context.Context, id string) (*domain.PaperRecord, error) {
	params := url.Values{}
	params.Set("id_list", normalize.ArxivID(id))
	params.Set("max_results", "1")

	records, err := c.fetch(ctx, fmt.Sprintf("%s?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	rec := records[0]
	rec.RelevanceScore = 1.0
	return rec, nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]*domain.PaperRecord, error) {
	body, err := c.http.GetBytes(ctx, reqURL, nil)
	if err != nil {
		if errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("arxiv query: %w", err)
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, nil
	}

	records := make([]*domain.PaperRecord, 0, len(f.Entries))
	for i := range f.Entries {
		rec := entryToRecord(&f.Entries[i])
		if rec == nil {
			continue
		}
		rec.RelevanceScore = domain.PositionRelevance(len(records), len(f.Entries))
		records = append(records, rec)
	}
	return records, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func entryToRecord(e *entry) *domain.PaperRecord {
	arxivID := extractArxivID(e.ID)
	title := whitespaceRe.ReplaceAllString(strings.TrimSpace(e.Title), " ")
	if arxivID == "" || title == "" {
		return nil
	}

	rec := &domain.PaperRecord{
		Title:        title,
		Source:       domain.SourceArxiv,
		SourceID:     arxivID,
		ArxivID:      arxivID,
		DOI:          e.DOI,
		Abstract:     whitespaceRe.ReplaceAllString(strings.TrimSpace(e.Summary), " "),
		Venue:        strings.TrimSpace(e.JournalRef),
		IsOpenAccess: true,
		OAURL:        fmt.Sprintf("https://arxiv.org/pdf/%s", arxivID),
		PublisherURL: fmt.Sprintf("https://arxiv.org/abs/%s", arxivID),
	}

	// Published is RFC3339; the leading four digits are the year.
	if len(e.Published) >= 10 {
		rec.PublicationDate = e.Published[:10]
		var year int
		if _, err := fmt.Sscanf(e.Published[:4], "%d", &year); err == nil {
			rec.Year = &year
		}
	}

	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			rec.Authors = append(rec.Authors, domain.Author{Name: name})
		}
	}
	for _, cat := range e.Categories {
		if cat.Term != "" {
			rec.Keywords = append(rec.Keywords, cat.Term)
		}
	}
	for _, l := range e.Links {
		if l.Title == "pdf" && l.Href != "" {
			rec.OAURL = l.Href
		}
	}

	normalize.Record(rec)
	return rec
}

// extractArxivID pulls the bare ID out of an Atom entry ID like
// "http://arxiv.org/abs/1706.03762v5", dropping the version suffix.
func extractArxivID(entryID string) string {
	idx := strings.Index(entryID, "/abs/")
	if idx == -1 {
		return ""
	}
	return normalize.ArxivID(entryID[idx+5:])
}

func dateClause(yearMin, yearMax int) string {
	if yearMin <= 0 && yearMax <= 0 {
		return ""
	}
	from := "190001010000"
	if yearMin > 0 {
		from = fmt.Sprintf("%d01010000", yearMin)
	}
	to := "210012312359"
	if yearMax > 0 {
		to = fmt.Sprintf("%d12312359", yearMax)
	}
	return fmt.Sprintf("submittedDate:[%s TO %s]", from, to)
}
