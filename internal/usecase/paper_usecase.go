package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/litscout/backend/internal/cache"
	"github.com/litscout/backend/internal/dedup"
	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/enrich"
	"github.com/litscout/backend/internal/normalize"
	"github.com/litscout/backend/internal/ranking"
)

const relatedFetchLimit = 30

// PaperSource resolves single papers and their citation graph. The Semantic
// Scholar adapter implements it.
type PaperSource interface {
	Get(ctx context.Context, id string) (*domain.PaperRecord, error)
	Citations(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error)
	References(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error)
}

// RelatedSource resolves single papers and OpenAlex-style related works.
type RelatedSource interface {
	Get(ctx context.Context, id string) (*domain.PaperRecord, error)
	Related(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error)
}

type PaperUsecase struct {
	primary     PaperSource
	secondary   RelatedSource
	cache       *cache.Cache
	enricher    *enrich.Enricher
	annotations domain.AnnotationRepository
	logger      *log.Logger
}

// NewPaperUsecase wires paper detail and related-paper lookups. annotations
// may be nil when no database is configured.
func NewPaperUsecase(
	primary PaperSource,
	secondary RelatedSource,
	c *cache.Cache,
	enricher *enrich.Enricher,
	annotations domain.AnnotationRepository,
	logger *log.Logger,
) *PaperUsecase {
	return &PaperUsecase{
		primary:     primary,
		secondary:   secondary,
		cache:       c,
		enricher:    enricher,
		annotations: annotations,
		logger:      logger,
	}
}

// GetPaper resolves one paper by internal id, DOI, arXiv id or source id.
// The cache is checked first; on miss Semantic Scholar is tried, then
// OpenAlex. Stored annotations overlay the result.
func (u *PaperUsecase) GetPaper(ctx context.Context, id string) (*domain.MergedPaper, error) {
	if paper, ok := u.cache.GetPaper(ctx, id); ok {
		u.overlayAnnotation(ctx, paper)
		return paper, nil
	}
	if strings.HasPrefix(id, "10.") {
		if paper, ok := u.cache.GetPaperByDOI(ctx, id); ok {
			u.overlayAnnotation(ctx, paper)
			return paper, nil
		}
	}

	rec, err := u.primary.Get(ctx, sourceLookupID(id))
	if err != nil {
		u.logger.Warn("primary paper lookup failed", "id", id, "error", err)
	}
	if rec == nil && u.secondary != nil {
		rec, err = u.secondary.Get(ctx, id)
		if err != nil {
			u.logger.Warn("secondary paper lookup failed", "id", id, "error", err)
		}
	}
	if rec == nil {
		return nil, domain.ErrPaperNotFound
	}

	papers := dedup.Merge([]*domain.PaperRecord{rec})
	if len(papers) == 0 {
		return nil, domain.ErrPaperNotFound
	}
	paper := papers[0]
	u.enricher.Enrich(ctx, papers)

	u.cache.SetPaper(ctx, paper)
	u.overlayAnnotation(ctx, paper)
	return paper, nil
}

// Related assembles a neighborhood for a paper from Semantic Scholar
// citations and references plus OpenAlex related works, then runs the
// standard merge and foundational ranking over it.
func (u *PaperUsecase) Related(ctx context.Context, s2ID, openalexID, query string, limit int) ([]*domain.MergedPaper, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []*domain.PaperRecord
	if s2ID != "" {
		if citing, err := u.primary.Citations(ctx, s2ID, relatedFetchLimit); err == nil {
			records = append(records, citing...)
		} else {
			u.logger.Warn("citations lookup failed", "id", s2ID, "error", err)
		}
		if cited, err := u.primary.References(ctx, s2ID, relatedFetchLimit); err == nil {
			records = append(records, cited...)
		} else {
			u.logger.Warn("references lookup failed", "id", s2ID, "error", err)
		}
	}
	if openalexID != "" && u.secondary != nil {
		if related, err := u.secondary.Related(ctx, openalexID, relatedFetchLimit); err == nil {
			records = append(records, related...)
		} else {
			u.logger.Warn("related works lookup failed", "id", openalexID, "error", err)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}

	papers := dedup.Merge(records)
	dedup.CitationAgeSanity(papers)
	papers = dedup.SafeDedup(papers)
	u.enricher.Enrich(ctx, papers)

	ranked := ranking.Rank(papers, query, domain.ModeFoundational, limit, false)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (u *PaperUsecase) overlayAnnotation(ctx context.Context, paper *domain.MergedPaper) {
	if u.annotations == nil {
		return
	}
	for _, key := range annotationKeys(paper) {
		ann, err := u.annotations.Get(ctx, key)
		if err != nil || ann == nil {
			continue
		}
		selected := ann.Selected
		paper.Selected = &selected
		if ann.Comments != "" {
			comments := ann.Comments
			paper.Comments = &comments
		}
		return
	}
}

func annotationKeys(paper *domain.MergedPaper) []string {
	keys := []string{paper.ID.String()}
	if paper.DOI != "" {
		keys = append(keys, paper.DOI)
	}
	return keys
}

var arxivIDForm = regexp.MustCompile(`^\d{4}\.\d{4,5}$`)

// sourceLookupID maps our external id forms to Semantic Scholar's prefixed
// lookup syntax.
func sourceLookupID(id string) string {
	switch {
	case strings.HasPrefix(id, "10."):
		return "DOI:" + id
	case arxivIDForm.MatchString(normalize.ArxivID(id)):
		return "ARXIV:" + normalize.ArxivID(id)
	}
	return id
}

// CitationKey builds a BibTeX-style key: first author surname, year (XXXX
// when unknown), first title word, all non-alphanumerics stripped.
func CitationKey(paper *domain.MergedPaper) string {
	surname := "unknown"
	if len(paper.Authors) > 0 {
		if s := normalize.FirstAuthorSurname(paper.Authors[0].Name); s != "" {
			surname = s
		}
	}

	year := "XXXX"
	if paper.Year != nil {
		year = fmt.Sprintf("%d", *paper.Year)
	}

	// The first word comes from the raw title, articles included.
	firstWord := "unknown"
	if words := strings.Fields(paper.Title); len(words) > 0 {
		firstWord = strings.ToLower(words[0])
	}

	return stripNonAlnum(surname) + year + stripNonAlnum(firstWord)
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
