package usecase

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/litscout/backend/internal/domain"
)

const maxAnnotationList = 500

// AnnotationUsecase persists per-paper selections and comments. The store is
// optional; without one, writes report persisted=false and lists are empty.
type AnnotationUsecase struct {
	repo   domain.AnnotationRepository
	papers *PaperUsecase
	logger *log.Logger
}

func NewAnnotationUsecase(repo domain.AnnotationRepository, papers *PaperUsecase, logger *log.Logger) *AnnotationUsecase {
	return &AnnotationUsecase{repo: repo, papers: papers, logger: logger}
}

// Available reports whether annotations are durably stored.
func (u *AnnotationUsecase) Available() bool {
	return u.repo != nil
}

// SetSelected marks a paper as selected or not. Returns whether the write
// was persisted.
func (u *AnnotationUsecase) SetSelected(ctx context.Context, paperID string, selected bool) (bool, error) {
	if u.repo == nil {
		return false, nil
	}
	if err := u.ensureAnnotation(ctx, paperID); err != nil {
		return false, err
	}
	if err := u.repo.SetSelected(ctx, paperID, selected); err != nil {
		return false, err
	}
	return true, nil
}

// SetComment stores a free-text comment on a paper. An empty comment clears
// it. Returns whether the write was persisted.
func (u *AnnotationUsecase) SetComment(ctx context.Context, paperID, comment string) (bool, error) {
	if u.repo == nil {
		return false, nil
	}
	if err := u.ensureAnnotation(ctx, paperID); err != nil {
		return false, err
	}
	if err := u.repo.SetComment(ctx, paperID, comment); err != nil {
		return false, err
	}
	return true, nil
}

// ensureAnnotation creates the annotation row from the paper's metadata so
// selections survive cache expiry. A paper we cannot resolve still gets a
// bare row keyed by id.
func (u *AnnotationUsecase) ensureAnnotation(ctx context.Context, paperID string) error {
	existing, err := u.repo.Get(ctx, paperID)
	if err == nil && existing != nil {
		return nil
	}

	ann := &domain.PaperAnnotation{
		PaperID:   paperID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if u.papers != nil {
		if paper, perr := u.papers.GetPaper(ctx, paperID); perr == nil && paper != nil {
			ann.DOI = paper.DOI
			ann.Title = paper.Title
			ann.Abstract = paper.Abstract
			ann.Year = paper.Year
			ann.Venue = paper.Venue
			ann.Authors = paper.Authors
			ann.CitationCount = paper.CitationCount
			ann.OAURL = paper.OAURL
		} else if perr != nil {
			u.logger.Debug("annotation metadata lookup failed", "id", paperID, "error", perr)
		}
	}
	return u.repo.Upsert(ctx, ann)
}

// Bookmarked lists selected papers, most recently touched first.
func (u *AnnotationUsecase) Bookmarked(ctx context.Context, limit int) ([]*domain.PaperAnnotation, error) {
	if u.repo == nil {
		return nil, nil
	}
	return u.repo.ListBookmarked(ctx, clampListLimit(limit))
}

// WithNotes lists papers carrying a non-empty comment.
func (u *AnnotationUsecase) WithNotes(ctx context.Context, limit int) ([]*domain.PaperAnnotation, error) {
	if u.repo == nil {
		return nil, nil
	}
	return u.repo.ListWithNotes(ctx, clampListLimit(limit))
}

func clampListLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > maxAnnotationList {
		return maxAnnotationList
	}
	return limit
}
