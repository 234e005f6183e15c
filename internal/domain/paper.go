package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrPaperNotFound = errors.New("paper not found")

// Source identifies a bibliographic database.
type Source string

const (
	SourceSemanticScholar Source = "semantic_scholar"
	SourceOpenAlex        Source = "openalex"
	SourcePubMed          Source = "pubmed"
	SourceArxiv           Source = "arxiv"
	SourceCrossref        Source = "crossref"
)

// WorkType classifies what kind of publication a record is.
type WorkType string

const (
	WorkTypeJournal    WorkType = "journal"
	WorkTypeConference WorkType = "conference"
	WorkTypeBook       WorkType = "book"
	WorkTypeChapter    WorkType = "chapter"
	WorkTypePreprint   WorkType = "preprint"
	WorkTypeSurvey     WorkType = "survey"
	WorkTypeUnknown    WorkType = "unknown"
)

// QualityFlag marks a metadata problem detected on a record. Flags never
// cause a hard failure; downstream stages use them to filter or deprioritize.
type QualityFlag string

const (
	FlagBadYear                QualityFlag = "bad_year"
	FlagImplausibleCitationAge QualityFlag = "implausible_citation_age"
	FlagYearCorrected          QualityFlag = "year_corrected"
	FlagYearUncorrectable      QualityFlag = "year_uncorrectable"
)

// FlagSet is a small set of quality flags.
type FlagSet map[QualityFlag]bool

func (f FlagSet) Add(flag QualityFlag) FlagSet {
	if f == nil {
		f = FlagSet{}
	}
	f[flag] = true
	return f
}

func (f FlagSet) Has(flag QualityFlag) bool {
	return f[flag]
}

func (f FlagSet) Union(other FlagSet) FlagSet {
	if len(other) == 0 {
		return f
	}
	if f == nil {
		f = FlagSet{}
	}
	for flag := range other {
		f[flag] = true
	}
	return f
}

func (f FlagSet) List() []string {
	out := make([]string, 0, len(f))
	for flag := range f {
		out = append(out, string(flag))
	}
	return out
}

type Author struct {
	Name         string   `json:"name"`
	Affiliations []string `json:"affiliations,omitempty"`
}

// PaperRecord is the raw per-source record emitted by an adapter. It exists
// only for the duration of a request; merged papers are built from it.
type PaperRecord struct {
	Title           string
	Source          Source
	SourceID        string
	DOI             string
	ArxivID         string
	PMID            string
	Abstract        string
	Year            *int
	PublicationDate string
	Venue           string
	Authors         []Author
	CitationCount   *int
	OAURL           string
	PublisherURL    string
	Topics          []string
	Keywords        []string
	IsSurvey        bool
	IsOpenAccess    bool
	WorkType        WorkType
	RelevanceScore  float64
	Flags           FlagSet
}

// MergedPaper is one canonical work aggregated from one or more records.
type MergedPaper struct {
	ID              uuid.UUID
	Title           string
	Abstract        string
	DOI             string
	ArxivID         string
	PMID            string
	Year            *int
	PublicationDate string
	Venue           string
	Authors         []Author
	CitationCount   *int
	CitationSource  Source
	OAURL           string
	PublisherURL    string
	DOIURL          string
	Topics          []string
	Keywords        []string
	Categories      map[string][]string
	Databases       []string
	URLs            []string
	IsSurvey        bool
	IsOpenAccess    bool
	WorkType        WorkType
	RelevanceScore  float64
	Score           float64
	Sources         []Source
	SourceIDs       map[Source]string
	WorkKey         string
	FieldProvenance map[string]Source
	Flags           FlagSet
	WhyRecommended  []string
	Selected        *bool
	Comments        *string
}

// HasSource reports whether the given source contributed to this paper.
func (p *MergedPaper) HasSource(s Source) bool {
	for _, src := range p.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// SourceAdapter is implemented by each bibliographic API client.
// yearMin/yearMax of 0 mean unbounded. Search never returns a rate-limit
// error to the caller; rate-limited adapters return an empty list.
type SourceAdapter interface {
	Name() Source
	Search(ctx context.Context, query string, limit, yearMin, yearMax int) ([]*PaperRecord, error)
	Get(ctx context.Context, id string) (*PaperRecord, error)
}

// IntPtr is a convenience for optional int fields.
func IntPtr(v int) *int { return &v }

// PositionRelevance derives a relevance signal from ranked position when a
// source reports order but no score: the top result gets 1.0, the last 0.5.
func PositionRelevance(idx, total int) float64 {
	if total < 1 {
		total = 1
	}
	return 1.0 - (float64(idx)/float64(total))*0.5
}
