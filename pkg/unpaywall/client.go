// Package unpaywall is the Unpaywall open-access lookup adapter. It is an
// enrichment source only; lookups that fail for any reason yield no data
// rather than an error.
package unpaywall

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/litscout/backend/internal/httpclient"
	"github.com/litscout/backend/internal/normalize"
)

const defaultBaseURL = "https://api.unpaywall.org/v2"

// Location is one host of an open-access copy.
type Location struct {
	URL               string `json:"url"`
	URLForPDF         string `json:"url_for_pdf"`
	URLForLandingPage string `json:"url_for_landing_page"`
	Version           string `json:"version"`
	HostType          string `json:"host_type"`
}

// Result is the OA status for one DOI.
type Result struct {
	DOI            string     `json:"doi"`
	IsOA           bool       `json:"is_oa"`
	OAStatus       string     `json:"oa_status"`
	BestOALocation *Location  `json:"best_oa_location"`
	OALocations    []Location `json:"oa_locations"`
}

// BestURL picks the most direct link to the open copy: PDF, then the raw
// URL, then the landing page, falling back across locations.
func (r *Result) BestURL() string {
	if r == nil || !r.IsOA {
		return ""
	}
	locations := r.OALocations
	if r.BestOALocation != nil {
		locations = append([]Location{*r.BestOALocation}, locations...)
	}
	for _, pick := range []func(*Location) string{
		func(l *Location) string { return l.URLForPDF },
		func(l *Location) string { return l.URL },
		func(l *Location) string { return l.URLForLandingPage },
	} {
		for i := range locations {
			if u := pick(&locations[i]); u != "" {
				return u
			}
		}
	}
	return ""
}

type Client struct {
	http    *httpclient.Client
	baseURL string
	email   string
}

// NewClient builds the adapter. Unpaywall requires an email on every call.
func NewClient(email string) *Client {
	return &Client{
		http:    httpclient.New(fmt.Sprintf("litscout/1.0 (mailto:%s)", email)),
		baseURL: defaultBaseURL,
		email:   email,
	}
}

// Lookup fetches the OA record for a DOI. Unknown DOIs, malformed DOIs and
// rate limiting all return (nil, nil).
func (c *Client) Lookup(ctx context.Context, doi string) (*Result, error) {
	doi = normalize.DOI(doi)
	if doi == "" || c.email == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("email", c.email)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(doi), params.Encode())

	var result Result
	if err := c.http.GetJSON(ctx, reqURL, nil, &result); err != nil {
		if errors.Is(err, httpclient.ErrNotFound) ||
			errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrBadPayload) {
			return nil, nil
		}
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 422 {
			return nil, nil
		}
		return nil, fmt.Errorf("unpaywall lookup %s: %w", doi, err)
	}
	return &result, nil
}
