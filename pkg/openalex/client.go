// Package openalex is the OpenAlex works API adapter.
//
// OpenAlex has no hard rate limit in the polite pool (mailto set) and is the
// second-most-trusted citation source after Semantic Scholar.
package openalex

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

const defaultBaseURL = "https://api.openalex.org"

const maxPerPage = 200

type Client struct {
	http    *httpclient.Client
	baseURL string
	email   string
}

// NewClient builds the adapter. email is optional but recommended; it puts
// requests in the polite pool.
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
	return domain.SourceOpenAlex
}

type listResponse struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Results []workResult `json:"results"`
}

type workResult struct {
	ID                    string                 `json:"id"`
	DOI                   string                 `json:"doi"`
	Title                 string                 `json:"title"`
	DisplayName           string                 `json:"display_name"`
	PublicationYear       int                    `json:"publication_year"`
	PublicationDate       string                 `json:"publication_date"`
	Type                  string                 `json:"type"`
	CitedByCount          int                    `json:"cited_by_count"`
	RelevanceScore        float64                `json:"relevance_score"`
	Authorships           []authorship           `json:"authorships"`
	PrimaryLocation       *location              `json:"primary_location"`
	BestOALocation        *location              `json:"best_oa_location"`
	OpenAccess            *openAccess            `json:"open_access"`
	IDs                   map[string]interface{} `json:"ids"`
	AbstractInvertedIndex map[string][]int       `json:"abstract_inverted_index"`
	Concepts              []concept              `json:"concepts"`
	Keywords              []keyword              `json:"keywords"`
}

type authorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
	Institutions []struct {
		DisplayName string `json:"display_name"`
	} `json:"institutions"`
}

type location struct {
	IsOA           bool   `json:"is_oa"`
	LandingPageURL string `json:"landing_page_url"`
	PDFURL         string `json:"pdf_url"`
	Source         *struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}

type openAccess struct {
	IsOA  bool   `json:"is_oa"`
	OAURL string `json:"oa_url"`
}

type concept struct {
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

type keyword struct {
	DisplayName string `json:"display_name"`
}

// Search queries the works endpoint with a fulltext search. Year bounds map
// to publication_year filters.
func (c *Client) Search(ctx context.Context, query string, limit, yearMin, yearMax int) ([]*domain.PaperRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per_page", fmt.Sprintf("%d", limit))
	if filter := yearFilter(yearMin, yearMax); filter != "" {
		params.Set("filter", filter)
	}
	if c.email != "" {
		params.Set("mailto", c.email)
	}

	return c.list(ctx, fmt.Sprintf("%s/works?%s", c.baseURL, params.Encode()))
}

// Get resolves a single work by OpenAlex ID ("W...") or bare DOI.
func (c *Client) Get(ctx context.Context, id string) (*domain.PaperRecord, error) {
	ref := id
	if strings.HasPrefix(id, "10.") {
		ref = "https://doi.org/" + id
	}
	params := url.Values{}
	if c.email != "" {
		params.Set("mailto", c.email)
	}
	reqURL := fmt.Sprintf("%s/works/%s", c.baseURL, url.PathEscape(ref))
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var work workResult
	if err := c.http.GetJSON(ctx, reqURL, nil, &work); err != nil {
		if errors.Is(err, httpclient.ErrNotFound) ||
			errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrBadPayload) {
			return nil, nil
		}
		return nil, fmt.Errorf("openalex get %s: %w", id, err)
	}
	rec := workToRecord(&work)
	if rec != nil {
		rec.RelevanceScore = 1.0
	}
	return rec, nil
}

// Related returns works OpenAlex links to the given work ID.
func (c *Client) Related(ctx context.Context, openalexID string, limit int) ([]*domain.PaperRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	params := url.Values{}
	params.Set("filter", "related_to:"+openalexID)
	params.Set("per_page", fmt.Sprintf("%d", limit))
	if c.email != "" {
		params.Set("mailto", c.email)
	}
	return c.list(ctx, fmt.Sprintf("%s/works?%s", c.baseURL, params.Encode()))
}

func (c *Client) list(ctx context.Context, reqURL string) ([]*domain.PaperRecord, error) {
	var resp listResponse
	if err := c.http.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		if errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrBadPayload) {
			return nil, nil
		}
		return nil, fmt.Errorf("openalex works: %w", err)
	}

	records := make([]*domain.PaperRecord, 0, len(resp.Results))
	for i := range resp.Results {
		rec := workToRecord(&resp.Results[i])
		if rec == nil {
			continue
		}
		rec.RelevanceScore = domain.PositionRelevance(len(records), len(resp.Results))
		records = append(records, rec)
	}
	return records, nil
}

func workToRecord(w *workResult) *domain.PaperRecord {
	title := strings.TrimSpace(w.Title)
	if title == "" {
		title = strings.TrimSpace(w.DisplayName)
	}
	if title == "" {
		return nil
	}

	rec := &domain.PaperRecord{
		Title:           title,
		Source:          domain.SourceOpenAlex,
		SourceID:        strings.TrimPrefix(w.ID, "https://openalex.org/"),
		DOI:             w.DOI,
		ArxivID:         extractArxivID(w),
		PMID:            extractPMID(w),
		Abstract:        reconstructAbstract(w.AbstractInvertedIndex),
		PublicationDate: w.PublicationDate,
	}
	if w.PublicationYear > 0 {
		rec.Year = domain.IntPtr(w.PublicationYear)
	}
	rec.CitationCount = domain.IntPtr(w.CitedByCount)

	for _, a := range w.Authorships {
		if a.Author.DisplayName == "" {
			continue
		}
		author := domain.Author{Name: strings.TrimSpace(a.Author.DisplayName)}
		for _, inst := range a.Institutions {
			if inst.DisplayName != "" {
				author.Affiliations = append(author.Affiliations, inst.DisplayName)
			}
		}
		rec.Authors = append(rec.Authors, author)
	}

	if w.PrimaryLocation != nil {
		if w.PrimaryLocation.Source != nil {
			rec.Venue = w.PrimaryLocation.Source.DisplayName
		}
		rec.PublisherURL = w.PrimaryLocation.LandingPageURL
	}
	if w.OpenAccess != nil {
		rec.IsOpenAccess = w.OpenAccess.IsOA
		rec.OAURL = w.OpenAccess.OAURL
	}
	if rec.OAURL == "" && w.BestOALocation != nil {
		if w.BestOALocation.PDFURL != "" {
			rec.OAURL = w.BestOALocation.PDFURL
		} else {
			rec.OAURL = w.BestOALocation.LandingPageURL
		}
	}

	for _, con := range w.Concepts {
		if con.Score >= 0.3 && con.DisplayName != "" {
			rec.Topics = append(rec.Topics, con.DisplayName)
		}
		if len(rec.Topics) >= 10 {
			break
		}
	}
	for _, kw := range w.Keywords {
		if kw.DisplayName != "" {
			rec.Keywords = append(rec.Keywords, kw.DisplayName)
		}
	}
	if w.Type == "review" {
		rec.IsSurvey = true
	}

	normalize.Record(rec)
	return rec
}

// extractArxivID recovers an arXiv ID from the ids map, the 10.48550 DOI
// namespace, or an arXiv-hosted primary location, in that order.
func extractArxivID(w *workResult) string {
	if v, ok := w.IDs["arxiv"]; ok {
		if s, ok := v.(string); ok && s != "" {
			s = strings.TrimPrefix(s, "https://arxiv.org/abs/")
			return strings.Trim(s, "/")
		}
	}
	if w.DOI != "" {
		doi := strings.TrimPrefix(w.DOI, "https://doi.org/")
		lower := strings.ToLower(doi)
		if strings.HasPrefix(lower, "10.48550/arxiv.") {
			return doi[len("10.48550/arxiv."):]
		}
	}
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		srcName := strings.ToLower(w.PrimaryLocation.Source.DisplayName)
		if strings.Contains(srcName, "arxiv") && w.PrimaryLocation.LandingPageURL != "" {
			u := w.PrimaryLocation.LandingPageURL
			if idx := strings.Index(u, "/abs/"); idx != -1 {
				return strings.TrimRight(u[idx+5:], "/")
			}
		}
	}
	return ""
}

func extractPMID(w *workResult) string {
	if pmid, ok := w.IDs["pmid"]; ok {
		if pmidStr, ok := pmid.(string); ok {
			id := strings.TrimPrefix(pmidStr, "https://pubmed.ncbi.nlm.nih.gov/")
			return strings.Trim(id, "/")
		}
	}
	return ""
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted index,
// which maps each word to its positions in the abstract.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	maxPos := 0
	for _, positions := range invertedIndex {
		for _, pos := range positions {
			if pos > maxPos {
				maxPos = pos
			}
		}
	}

	words := make([]string, maxPos+1)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			if pos >= 0 && pos <= maxPos {
				words[pos] = word
			}
		}
	}

	var sb strings.Builder
	for _, word := range words {
		if word == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(word)
	}
	return sb.String()
}

func yearFilter(yearMin, yearMax int) string {
	switch {
	case yearMin > 0 && yearMax > 0:
		return fmt.Sprintf("publication_year:%d-%d", yearMin, yearMax)
	case yearMin > 0:
		return fmt.Sprintf("from_publication_date:%d-01-01", yearMin)
	case yearMax > 0:
		return fmt.Sprintf("to_publication_date:%d-12-31", yearMax)
	}
	return ""
}
