package http

import (
	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/usecase"
)

// PaperResponse is the wire form of a merged paper.
type PaperResponse struct {
	ID              string                   `json:"id"`
	Title           string                   `json:"title"`
	Abstract        string                   `json:"abstract,omitempty"`
	DOI             string                   `json:"doi,omitempty"`
	DOIURL          string                   `json:"doiUrl,omitempty"`
	ArxivID         string                   `json:"arxivId,omitempty"`
	PMID            string                   `json:"pmid,omitempty"`
	Year            *int                     `json:"year"`
	PublicationDate string                   `json:"publicationDate,omitempty"`
	Venue           string                   `json:"venue,omitempty"`
	Authors         []domain.Author          `json:"authors"`
	CitationCount   *int                     `json:"citationCount"`
	CitationSource  string                   `json:"citationSource,omitempty"`
	OAURL           string                   `json:"oaUrl,omitempty"`
	PublisherURL    string                   `json:"publisherUrl,omitempty"`
	URLs            []string                 `json:"urls,omitempty"`
	Databases       []string                 `json:"databases"`
	Topics          []string                 `json:"topics,omitempty"`
	Keywords        []string                 `json:"keywords,omitempty"`
	IsSurvey        bool                     `json:"isSurvey"`
	IsOpenAccess    bool                     `json:"isOpenAccess"`
	WorkType        string                   `json:"workType"`
	Score           float64                  `json:"score"`
	WhyRecommended  []string                 `json:"whyRecommended,omitempty"`
	SourceIDs       map[domain.Source]string `json:"sourceIds,omitempty"`
	CitationKey     string                   `json:"citationKey"`
	Flags           []string                 `json:"flags,omitempty"`
	Selected        *bool                    `json:"selected,omitempty"`
	Comments        *string                  `json:"comments,omitempty"`
}

func toPaperResponse(p *domain.MergedPaper) *PaperResponse {
	return &PaperResponse{
		ID:              p.ID.String(),
		Title:           p.Title,
		Abstract:        p.Abstract,
		DOI:             p.DOI,
		DOIURL:          p.DOIURL,
		ArxivID:         p.ArxivID,
		PMID:            p.PMID,
		Year:            p.Year,
		PublicationDate: p.PublicationDate,
		Venue:           p.Venue,
		Authors:         p.Authors,
		CitationCount:   p.CitationCount,
		CitationSource:  string(p.CitationSource),
		OAURL:           p.OAURL,
		PublisherURL:    p.PublisherURL,
		URLs:            p.URLs,
		Databases:       p.Databases,
		Topics:          p.Topics,
		Keywords:        p.Keywords,
		IsSurvey:        p.IsSurvey,
		IsOpenAccess:    p.IsOpenAccess,
		WorkType:        string(p.WorkType),
		Score:           p.Score,
		WhyRecommended:  p.WhyRecommended,
		SourceIDs:       p.SourceIDs,
		CitationKey:     usecase.CitationKey(p),
		Flags:           p.Flags.List(),
		Selected:        p.Selected,
		Comments:        p.Comments,
	}
}

func toPaperResponses(papers []*domain.MergedPaper) []*PaperResponse {
	out := make([]*PaperResponse, 0, len(papers))
	for _, p := range papers {
		out = append(out, toPaperResponse(p))
	}
	return out
}

// searchResponse is the /search envelope.
type searchResponse struct {
	Results         []*PaperResponse      `json:"results"`
	Query           string                `json:"query"`
	Mode            string                `json:"mode"`
	SortBy          string                `json:"sortBy"`
	Limit           int                   `json:"limit"`
	TotalCandidates int                   `json:"totalCandidates"`
	SourceStats     map[domain.Source]int `json:"sourceStats"`
	CacheHit        bool                  `json:"cacheHit"`
}

type annotationResponse struct {
	PaperID       string          `json:"paperId"`
	DOI           string          `json:"doi,omitempty"`
	Title         string          `json:"title"`
	Abstract      string          `json:"abstract,omitempty"`
	Year          *int            `json:"year"`
	Venue         string          `json:"venue,omitempty"`
	Authors       []domain.Author `json:"authors,omitempty"`
	CitationCount *int            `json:"citationCount"`
	OAURL         string          `json:"oaUrl,omitempty"`
	Selected      bool            `json:"selected"`
	Comments      string          `json:"comments,omitempty"`
	UpdatedAt     string          `json:"updatedAt"`
}

func toAnnotationResponses(anns []*domain.PaperAnnotation) []*annotationResponse {
	out := make([]*annotationResponse, 0, len(anns))
	for _, a := range anns {
		out = append(out, &annotationResponse{
			PaperID:       a.PaperID,
			DOI:           a.DOI,
			Title:         a.Title,
			Abstract:      a.Abstract,
			Year:          a.Year,
			Venue:         a.Venue,
			Authors:       a.Authors,
			CitationCount: a.CitationCount,
			OAURL:         a.OAURL,
			Selected:      a.Selected,
			Comments:      a.Comments,
			UpdatedAt:     a.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return out
}
