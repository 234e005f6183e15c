package domain

// Mode selects the scoring model.
type Mode string

const (
	ModeFoundational Mode = "foundational"
	ModeRecent       Mode = "recent"
)

// SortBy orders a cached result set on retrieval. It is not part of the
// cache key.
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortCitations SortBy = "citations"
	SortYear      SortBy = "year"
)

// SearchRequest is a validated search query. Zero year bounds mean
// unbounded.
type SearchRequest struct {
	Query            string
	Mode             Mode
	Limit            int
	SortBy           SortBy
	YearMin          int
	YearMax          int
	Since            string // YYYY-MM-DD
	Until            string // YYYY-MM-DD
	LimitPerDatabase int
	PublicationTypes []string
	OAOnly           bool
	SurveyOnly       bool
	IncludePubMed    bool
	IncludeArxiv     bool
	BypassCache      bool
}

// SearchResult is the full ranked candidate set for one canonical query,
// before sort_by/limit are applied.
type SearchResult struct {
	Papers          []*MergedPaper
	Query           string
	Mode            Mode
	TotalCandidates int
	SourceStats     map[Source]int
}
