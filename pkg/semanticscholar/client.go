// Package semanticscholar is the Semantic Scholar Graph API adapter.
package semanticscholar

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/httpclient"
	"github.com/litscout/backend/internal/normalize"
)

const defaultBaseURL = "https://api.semanticscholar.org/graph/v1"

// paperFields is the field list requested on every paper-shaped response.
const paperFields = "paperId,externalIds,url,title,abstract,venue,year,publicationDate,citationCount,isOpenAccess,openAccessPdf,fieldsOfStudy,publicationTypes,journal,authors"

const maxPageSize = 100

type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
}

// NewClient builds the adapter. apiKey is optional; without one the shared
// public pool applies.
func NewClient(apiKey string) *Client {
	return &Client{
		http:    httpclient.New("litscout/1.0 (research aggregation)"),
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
	}
}

func (c *Client) Name() domain.Source {
	return domain.SourceSemanticScholar
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": c.apiKey}
}

type searchResponse struct {
	Total int          `json:"total"`
	Data  []paperEntry `json:"data"`
}

// externalIDs decodes the string ids only; externalIds also carries a
// numeric CorpusId.
type externalIDs struct {
	ArXiv  string `json:"ArXiv"`
	DOI    string `json:"DOI"`
	PubMed string `json:"PubMed"`
	PMCID  string `json:"PMCID"`
}

type paperEntry struct {
	PaperID         string       `json:"paperId"`
	ExternalIDs     *externalIDs `json:"externalIds"`
	URL             string       `json:"url"`
	Title           string       `json:"title"`
	Abstract        string       `json:"abstract"`
	Venue           string       `json:"venue"`
	Year            *int         `json:"year"`
	PublicationDate string       `json:"publicationDate"`
	CitationCount   *int         `json:"citationCount"`
	IsOpenAccess    bool         `json:"isOpenAccess"`
	OpenAccessPdf   *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
	FieldsOfStudy    []string `json:"fieldsOfStudy"`
	PublicationTypes []string `json:"publicationTypes"`
	Journal          *struct {
		Name string `json:"name"`
	} `json:"journal"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

type citationsResponse struct {
	Data []struct {
		CitingPaper *paperEntry `json:"citingPaper"`
		CitedPaper  *paperEntry `json:"citedPaper"`
	} `json:"data"`
}

// Search queries the paper search endpoint. Rate limiting and unparseable
// payloads degrade to an empty result so one flaky source never fails the
// whole request.
func (c *Client) Search(ctx context.Context, query string, limit, yearMin, yearMax int) ([]*domain.PaperRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("fields", paperFields)
	if yearRange := formatYearRange(yearMin, yearMax); yearRange != "" {
		params.Set("year", yearRange)
	}

	reqURL := fmt.Sprintf("%s/paper/search?%s", c.baseURL, params.Encode())

	var resp searchResponse
	if err := c.http.GetJSON(ctx, reqURL, c.headers(), &resp); err != nil {
		if errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrBadPayload) {
			return nil, nil
		}
		return nil, fmt.Errorf("semantic scholar search: %w", err)
	}

	records := make([]*domain.PaperRecord, 0, len(resp.Data))
	for i := range resp.Data {
		rec := entryToRecord(&resp.Data[i])
		if rec == nil {
			continue
		}
		rec.RelevanceScore = domain.PositionRelevance(len(records), len(resp.Data))
		records = append(records, rec)
	}
	return records, nil
}

// Get resolves a single paper by S2 id, "DOI:..." or "arXiv:..." form.
func (c *Client) Get(ctx context.Context, id string) (*domain.PaperRecord, error) {
	params := url.Values{}
	params.Set("fields", paperFields)
	reqURL := fmt.Sprintf("%s/paper/%s?%s", c.baseURL, url.PathEscape(id), params.Encode())

	var entry paperEntry
	if err := c.http.GetJSON(ctx, reqURL, c.headers(), &entry); err != nil {
		if errors.Is(err, httpclient.ErrNotFound) ||
			errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrBadPayload) {
			return nil, nil
		}
		return nil, fmt.Errorf("semantic scholar get %s: %w", id, err)
	}
	rec := entryToRecord(&entry)
	if rec != nil {
		rec.RelevanceScore = 1.0
	}
	return rec, nil
}

// Citations returns papers citing the given S2 id, for the related-papers
// endpoint.
func (c *Client) Citations(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error) {
	return c.linked(ctx, id, "citations", limit)
}

// References returns papers the given S2 id cites.
func (c *Client) References(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error) {
	return c.linked(ctx, id, "references", limit)
}

func (c *Client) linked(ctx context.Context, id, kind string, limit int) ([]*domain.PaperRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("fields", paperFields)
	reqURL := fmt.Sprintf("%s/paper/%s/%s?%s", c.baseURL, url.PathEscape(id), kind, params.Encode())

	var resp citationsResponse
	if err := c.http.GetJSON(ctx, reqURL, c.headers(), &resp); err != nil {
		if errors.Is(err, httpclient.ErrNotFound) ||
			errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrBadPayload) {
			return nil, nil
		}
		return nil, fmt.Errorf("semantic scholar %s for %s: %w", kind, id, err)
	}

	records := make([]*domain.PaperRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		entry := item.CitingPaper
		if entry == nil {
			entry = item.CitedPaper
		}
		if entry == nil {
			continue
		}
		rec := entryToRecord(entry)
		if rec == nil {
			continue
		}
		rec.RelevanceScore = domain.PositionRelevance(len(records), len(resp.Data))
		records = append(records, rec)
	}
	return records, nil
}

func entryToRecord(entry *paperEntry) *domain.PaperRecord {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return nil
	}

	rec := &domain.PaperRecord{
		Title:           title,
		Source:          domain.SourceSemanticScholar,
		SourceID:        entry.PaperID,
		Abstract:        strings.TrimSpace(entry.Abstract),
		Year:            entry.Year,
		PublicationDate: entry.PublicationDate,
		Venue:           entry.Venue,
		CitationCount:   entry.CitationCount,
		PublisherURL:    entry.URL,
		IsOpenAccess:    entry.IsOpenAccess,
		Topics:          entry.FieldsOfStudy,
	}
	if len(rec.Topics) > 10 {
		rec.Topics = rec.Topics[:10]
	}
	if entry.Journal != nil && rec.Venue == "" {
		rec.Venue = entry.Journal.Name
	}
	if entry.OpenAccessPdf != nil {
		rec.OAURL = entry.OpenAccessPdf.URL
	}
	for _, a := range entry.Authors {
		if a.Name != "" {
			rec.Authors = append(rec.Authors, domain.Author{Name: strings.TrimSpace(a.Name)})
		}
	}
	if ids := entry.ExternalIDs; ids != nil {
		rec.DOI = ids.DOI
		rec.ArxivID = ids.ArXiv
		rec.PMID = ids.PubMed
	}
	for _, pt := range entry.PublicationTypes {
		if pt == "Review" || pt == "Survey" {
			rec.IsSurvey = true
		}
	}

	normalize.Record(rec)
	return rec
}

func formatYearRange(yearMin, yearMax int) string {
	switch {
	case yearMin > 0 && yearMax > 0:
		return fmt.Sprintf("%d-%d", yearMin, yearMax)
	case yearMin > 0:
		return fmt.Sprintf("%d-", yearMin)
	case yearMax > 0:
		return fmt.Sprintf("-%d", yearMax)
	}
	return ""
}
