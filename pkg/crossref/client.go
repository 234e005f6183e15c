// Package crossref is the Crossref works API adapter. Crossref abstracts
// arrive as JATS XML fragments and are stripped to plain text.
package crossref

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/httpclient"
	"github.com/litscout/backend/internal/normalize"
)

const defaultBaseURL = "https://api.crossref.org"

const maxRows = 100

type Client struct {
	http    *httpclient.Client
	baseURL string
	email   string
}

// NewClient builds the adapter. email joins Crossref's polite pool.
func NewClient(email string) *Client {
	ua := "litscout/1.0 (research aggregation)"
	if email != "" {
		ua = fmt.Sprintf("litscout/1.0 (mailto:%s)", email)
	}
	return &Client{
		http:    httpclient.New(ua),
		baseURL: defaultBaseURL,
		email:   email,
	}
}

func (c *Client) Name() domain.Source {
	return domain.SourceCrossref
}

type worksResponse struct {
	Message struct {
		TotalResults int        `json:"total-results"`
		Items        []workItem `json:"items"`
	} `json:"message"`
}

type workResponse struct {
	Message workItem `json:"message"`
}

type workItem struct {
	DOI             string     `json:"DOI"`
	Title           []string   `json:"title"`
	Abstract        string     `json:"abstract"`
	Author          []person   `json:"author"`
	ContainerTitle  []string   `json:"container-title"`
	PublishedPrint  *dateParts `json:"published-print"`
	PublishedOnline *dateParts `json:"published-online"`
	Issued          *dateParts `json:"issued"`
	Published       *dateParts `json:"published"`
	ReferencedBy    int        `json:"is-referenced-by-count"`
	Type            string     `json:"type"`
	URL             string     `json:"URL"`
	Subject         []string   `json:"subject"`
}

type person struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type dateParts struct {
	DateParts [][]int `json:"date-parts"`
}

func (d *dateParts) year() int {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// Search runs a bibliographic query against /works. Year bounds map to
// from/until publication date filters.
func (c *Client) Search(ctx context.Context, query string, limit, yearMin, yearMax int) ([]*domain.PaperRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxRows {
		limit = maxRows
	}

	params := url.Values{}
	params.Set("query.bibliographic", query)
	params.Set("rows", fmt.Sprintf("%d", limit))
	var filters []string
	if yearMin > 0 {
		filters = append(filters, fmt.Sprintf("from-pub-date:%d-01-01", yearMin))
	}
	if yearMax > 0 {
		filters = append(filters, fmt.Sprintf("until-pub-date:%d-12-31", yearMax))
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}
	if c.email != "" {
		params.Set("mailto", c.email)
	}

	reqURL := fmt.Sprintf("%s/works?%s", c.baseURL, params.Encode())

	var resp worksResponse
	if err := c.http.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		if errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrBadPayload) {
			return nil, nil
		}
		return nil, fmt.Errorf("crossref works: %w", err)
	}

	records := make([]*domain.PaperRecord, 0, len(resp.Message.Items))
	for i := range resp.Message.Items {
		rec := itemToRecord(&resp.Message.Items[i])
		if rec == nil {
			continue
		}
		rec.RelevanceScore = domain.PositionRelevance(len(records), len(resp.Message.Items))
		records = append(records, rec)
	}
	return records, nil
}

// Get resolves a single work by DOI.
func (c *Client) Get(ctx context.Context, doi string) (*domain.PaperRecord, error) {
	params := url.Values{}
	if c.email != "" {
		params.Set("mailto", c.email)
	}
	reqURL := fmt.Sprintf("%s/works/%s", c.baseURL, url.PathEscape(normalize.DOI(doi)))
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var resp workResponse
	if err := c.http.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		if errors.Is(err, httpclient.ErrNotFound) ||
			errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrBadPayload) {
			return nil, nil
		}
		return nil, fmt.Errorf("crossref get %s: %w", doi, err)
	}
	rec := itemToRecord(&resp.Message)
	if rec != nil {
		rec.RelevanceScore = 1.0
	}
	return rec, nil
}

func itemToRecord(item *workItem) *domain.PaperRecord {
	if len(item.Title) == 0 || strings.TrimSpace(item.Title[0]) == "" {
		return nil
	}

	rec := &domain.PaperRecord{
		Title:         strings.TrimSpace(item.Title[0]),
		Source:        domain.SourceCrossref,
		SourceID:      item.DOI,
		DOI:           item.DOI,
		Abstract:      stripJATS(item.Abstract),
		CitationCount: domain.IntPtr(item.ReferencedBy),
		PublisherURL:  item.URL,
		Keywords:      item.Subject,
	}
	if len(item.ContainerTitle) > 0 {
		rec.Venue = item.ContainerTitle[0]
	}

	// Print date is the most reliable; registration-time "issued" can
	// predate actual publication by years.
	for _, d := range []*dateParts{item.PublishedPrint, item.PublishedOnline, item.Issued, item.Published} {
		if y := d.year(); y > 0 {
			rec.Year = domain.IntPtr(y)
			break
		}
	}

	for _, a := range item.Author {
		name := strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
		if name != "" {
			rec.Authors = append(rec.Authors, domain.Author{Name: name})
		}
	}

	switch item.Type {
	case "book":
		rec.WorkType = domain.WorkTypeBook
	case "book-chapter":
		rec.WorkType = domain.WorkTypeChapter
	case "proceedings-article":
		rec.WorkType = domain.WorkTypeConference
	case "review", "book-review":
		rec.IsSurvey = true
	}

	normalize.Record(rec)
	return rec
}

var jatsTagRe = regexp.MustCompile(`<[^>]+>`)

// stripJATS flattens a JATS XML abstract fragment to plain text.
func stripJATS(abstract string) string {
	if abstract == "" {
		return ""
	}
	text := jatsTagRe.ReplaceAllString(abstract, " ")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	return strings.Join(strings.Fields(text), " ")
}
