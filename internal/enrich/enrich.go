// Package enrich fills derived and external fields on merged papers after
// dedup: DOI links, open-access locations from Unpaywall, and the flattened
// URL and database lists the API returns.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/pkg/unpaywall"
)

// OALookup resolves the open-access status for a DOI.
type OALookup interface {
	Lookup(ctx context.Context, doi string) (*unpaywall.Result, error)
}

type Enricher struct {
	oa     OALookup
	logger *log.Logger
}

// New builds an Enricher. oa may be nil when no Unpaywall contact email is
// configured; derived-field enrichment still runs.
func New(oa OALookup, logger *log.Logger) *Enricher {
	return &Enricher{oa: oa, logger: logger}
}

// Enrich completes every paper in place. Unpaywall failures are logged and
// skipped; enrichment never fails a search.
func (e *Enricher) Enrich(ctx context.Context, papers []*domain.MergedPaper) {
	for _, p := range papers {
		Derive(p)
		if e.oa == nil || p.IsOpenAccess || p.DOI == "" {
			continue
		}
		result, err := e.oa.Lookup(ctx, p.DOI)
		if err != nil {
			e.logger.Warn("unpaywall lookup failed", "doi", p.DOI, "error", err)
			continue
		}
		if result == nil || !result.IsOA {
			continue
		}
		if u := result.BestURL(); u != "" {
			p.IsOpenAccess = true
			p.OAURL = u
		}
	}
}

// Derive fills the fields computable from the paper itself.
func Derive(p *domain.MergedPaper) {
	if p.DOI != "" && p.DOIURL == "" {
		p.DOIURL = "https://doi.org/" + p.DOI
	}
	if p.PublisherURL == "" && p.DOIURL != "" {
		p.PublisherURL = p.DOIURL
	}
	if p.ArxivID != "" && p.OAURL == "" {
		p.IsOpenAccess = true
		p.OAURL = fmt.Sprintf("https://arxiv.org/pdf/%s", p.ArxivID)
	}
	p.Databases = databaseNames(p.Sources)
	p.URLs = collectURLs(p)
}

var databaseLabels = map[domain.Source]string{
	domain.SourceSemanticScholar: "Semantic Scholar",
	domain.SourceOpenAlex:        "OpenAlex",
	domain.SourcePubMed:          "PubMed",
	domain.SourceArxiv:           "arXiv",
	domain.SourceCrossref:        "Crossref",
}

func databaseNames(sources []domain.Source) []string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		label := databaseLabels[s]
		if label == "" {
			label = string(s)
		}
		if !containsString(names, label) {
			names = append(names, label)
		}
	}
	return names
}

func collectURLs(p *domain.MergedPaper) []string {
	var urls []string
	for _, u := range []string{p.OAURL, p.DOIURL, p.PublisherURL} {
		u = strings.TrimSpace(u)
		if u != "" && !containsString(urls, u) {
			urls = append(urls, u)
		}
	}
	return urls
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
