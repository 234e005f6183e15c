// Package pubmed is the NCBI E-utilities adapter. Search is a two-step
// esearch (PMIDs) then efetch (article XML) pipeline.
package pubmed

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/httpclient"
	"github.com/litscout/backend/internal/normalize"
)

const (
	defaultESearchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	defaultEFetchURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

const maxBatch = 100

type Client struct {
	http       *httpclient.Client
	esearchURL string
	efetchURL  string
	apiKey     string
}

// NewClient builds the adapter. apiKey raises the NCBI rate limit from 3
// to 10 requests per second; empty is fine for low volume.
func NewClient(apiKey string) *Client {
	return &Client{
		http:       httpclient.New("litscout/1.0 (research aggregation)"),
		esearchURL: defaultESearchURL,
		efetchURL:  defaultEFetchURL,
		apiKey:     apiKey,
	}
}

func (c *Client) Name() domain.Source {
	return domain.SourcePubMed
}

type eSearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID struct {
			Value string `xml:",chardata"`
		} `xml:"PMID"`
		Article article `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		ArticleIDs []articleID `xml:"ArticleIdList>ArticleId"`
	} `xml:"PubmedData"`
}

type article struct {
	Journal struct {
		Title   string `xml:"Title"`
		PubDate struct {
			Year  string `xml:"Year"`
			Month string `xml:"Month"`
			Day   string `xml:"Day"`
		} `xml:"JournalIssue>PubDate"`
	} `xml:"Journal"`
	ArticleTitle string `xml:"ArticleTitle"`
	Abstract     struct {
		Texts []abstractText `xml:"AbstractText"`
	} `xml:"Abstract"`
	Authors          []pubmedAuthor `xml:"AuthorList>Author"`
	PublicationTypes []string       `xml:"PublicationTypeList>PublicationType"`
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type pubmedAuthor struct {
	LastName     string   `xml:"LastName"`
	ForeName     string   `xml:"ForeName"`
	Affiliations []string `xml:"AffiliationInfo>Affiliation"`
}

type articleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

// Search runs esearch for PMIDs sorted by relevance, then efetch for the
// article records. Year bounds map to mindate/maxdate publication filters.
func (c *Client) Search(ctx context.Context, query string, limit, yearMin, yearMax int) ([]*domain.PaperRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxBatch {
		limit = maxBatch
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", fmt.Sprintf("%d", limit))
	params.Set("sort", "relevance")
	params.Set("retmode", "xml")
	if yearMin > 0 || yearMax > 0 {
		params.Set("datetype", "pdat")
		if yearMin > 0 {
			params.Set("mindate", fmt.Sprintf("%d", yearMin))
		}
		if yearMax > 0 {
			params.Set("maxdate", fmt.Sprintf("%d", yearMax))
		}
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.http.GetBytes(ctx, fmt.Sprintf("%s?%s", c.esearchURL, params.Encode()), nil)
	if err != nil {
		if errors.Is(err, httpclient.ErrRateLimited) {
			return nil, nil
		}
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}

	var searchResult eSearchResult
	if err := xml.Unmarshal(body, &searchResult); err != nil {
		return nil, nil
	}
	if len(searchResult.IDList.IDs) == 0 {
		return nil, nil
	}

	return c.fetchArticles(ctx, searchResult.IDList.IDs)
}

// Get resolves a single article by PMID.
func (c *Client) Get(ctx context.Context, pmid string) (*domain.PaperRecord, error) {
	records, err := c.fetchArticles(ctx, []string{pmid})
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

func (c *Client) fetchArticles(ctx context.Context, pmids []string) ([]*domain.PaperRecord, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")
	params.Set("rettype", "abstract")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.http.GetBytes(ctx, fmt.Sprintf("%s?%s", c.efetchURL, params.Encode()), nil)
	if err != nil {
		if errors.Is(err, httpclient.ErrRateLimited) || errors.Is(err, httpclient.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("pubmed efetch: %w", err)
	}

	var articleSet pubmedArticleSet
	if err := xml.Unmarshal(body, &articleSet); err != nil {
		return nil, nil
	}

	records := make([]*domain.PaperRecord, 0, len(articleSet.Articles))
	for i := range articleSet.Articles {
		rec := articleToRecord(&articleSet.Articles[i])
		if rec == nil {
			continue
		}
		rec.RelevanceScore = domain.PositionRelevance(len(records), len(articleSet.Articles))
		records = append(records, rec)
	}
	return records, nil
}

func articleToRecord(art *pubmedArticle) *domain.PaperRecord {
	pmid := strings.TrimSpace(art.MedlineCitation.PMID.Value)
	title := strings.TrimSpace(art.MedlineCitation.Article.ArticleTitle)
	if pmid == "" || title == "" {
		return nil
	}

	rec := &domain.PaperRecord{
		Title:        strings.TrimSuffix(title, "."),
		Source:       domain.SourcePubMed,
		SourceID:     pmid,
		PMID:         pmid,
		Venue:        art.MedlineCitation.Article.Journal.Title,
		PublisherURL: fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid),
	}

	// Structured abstracts keep their section labels.
	var parts []string
	for _, text := range art.MedlineCitation.Article.Abstract.Texts {
		t := strings.TrimSpace(text.Text)
		if t == "" {
			continue
		}
		if text.Label != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", text.Label, t))
		} else {
			parts = append(parts, t)
		}
	}
	rec.Abstract = strings.Join(parts, "\n\n")

	for _, a := range art.MedlineCitation.Article.Authors {
		name := strings.TrimSpace(fmt.Sprintf("%s %s", a.ForeName, a.LastName))
		if name == "" {
			continue
		}
		rec.Authors = append(rec.Authors, domain.Author{
			Name:         name,
			Affiliations: a.Affiliations,
		})
	}

	pubDate := art.MedlineCitation.Article.Journal.PubDate
	if pubDate.Year != "" {
		var year int
		if _, err := fmt.Sscanf(pubDate.Year, "%d", &year); err == nil {
			rec.Year = &year
		}
		rec.PublicationDate = formatPubDate(pubDate.Year, pubDate.Month, pubDate.Day)
	}

	var pmcID string
	for _, id := range art.PubmedData.ArticleIDs {
		switch id.IDType {
		case "doi":
			rec.DOI = id.Value
		case "pmc":
			pmcID = id.Value
		}
	}
	if pmcID != "" {
		rec.IsOpenAccess = true
		rec.OAURL = fmt.Sprintf("https://www.ncbi.nlm.nih.gov/pmc/articles/%s/", pmcID)
	}

	for _, pt := range art.MedlineCitation.Article.PublicationTypes {
		if pt == "Review" || pt == "Systematic Review" {
			rec.IsSurvey = true
		}
	}

	normalize.Record(rec)
	return rec
}

var monthNumbers = map[string]string{
	"Jan": "01", "Feb": "02", "Mar": "03", "Apr": "04", "May": "05", "Jun": "06",
	"Jul": "07", "Aug": "08", "Sep": "09", "Oct": "10", "Nov": "11", "Dec": "12",
}

// formatPubDate renders the PubDate parts as an ISO-ish date. PubMed months
// are English abbreviations; missing parts truncate the result.
func formatPubDate(year, month, day string) string {
	out := year
	m, ok := monthNumbers[month]
	if !ok {
		return out
	}
	out += "-" + m
	if len(day) == 1 {
		day = "0" + day
	}
	if day != "" {
		out += "-" + day
	}
	return out
}
