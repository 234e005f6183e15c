// Package postgres holds the pgx-backed stores. The database is optional:
// the server runs without one, losing only annotations and request logging.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/litscout/backend/internal/domain"
)

type AnnotationRepository struct {
	db *pgxpool.Pool
}

func NewAnnotationRepository(db *pgxpool.Pool) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// EnsureSchema creates the annotation table. Called once at startup.
func (r *AnnotationRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS paper (
			paper_id TEXT PRIMARY KEY,
			doi TEXT,
			title TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			year INT,
			venue TEXT NOT NULL DEFAULT '',
			authors JSONB NOT NULL DEFAULT '[]',
			citation_count INT,
			oa_url TEXT NOT NULL DEFAULT '',
			selected BOOLEAN NOT NULL DEFAULT FALSE,
			comments TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *AnnotationRepository) Upsert(ctx context.Context, ann *domain.PaperAnnotation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	authors, err := json.Marshal(ann.Authors)
	if err != nil {
		return err
	}
	if ann.CreatedAt.IsZero() {
		ann.CreatedAt = time.Now()
	}
	ann.UpdatedAt = time.Now()

	query := `
		INSERT INTO paper (paper_id, doi, title, abstract, year, venue, authors, citation_count, oa_url, selected, comments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (paper_id) DO UPDATE SET
			doi = EXCLUDED.doi,
			title = EXCLUDED.title,
			abstract = EXCLUDED.abstract,
			year = EXCLUDED.year,
			venue = EXCLUDED.venue,
			authors = EXCLUDED.authors,
			citation_count = EXCLUDED.citation_count,
			oa_url = EXCLUDED.oa_url,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.Exec(ctx, query,
		ann.PaperID,
		ann.DOI,
		ann.Title,
		ann.Abstract,
		ann.Year,
		ann.Venue,
		authors,
		ann.CitationCount,
		ann.OAURL,
		ann.Selected,
		ann.Comments,
		ann.CreatedAt,
		ann.UpdatedAt,
	)
	return err
}

func (r *AnnotationRepository) SetSelected(ctx context.Context, paperID string, selected bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx,
		`UPDATE paper SET selected = $2, updated_at = NOW() WHERE paper_id = $1`,
		paperID, selected)
	return err
}

func (r *AnnotationRepository) SetComment(ctx context.Context, paperID string, comment string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx,
		`UPDATE paper SET comments = $2, updated_at = NOW() WHERE paper_id = $1`,
		paperID, comment)
	return err
}

func (r *AnnotationRepository) Get(ctx context.Context, paperID string) (*domain.PaperAnnotation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT paper_id, doi, title, abstract, year, venue, authors, citation_count, oa_url, selected, comments, created_at, updated_at
		FROM paper WHERE paper_id = $1
	`, paperID)

	ann, err := scanAnnotation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ann, nil
}

func (r *AnnotationRepository) ListBookmarked(ctx context.Context, limit int) ([]*domain.PaperAnnotation, error) {
	return r.list(ctx, `selected = TRUE`, limit)
}

func (r *AnnotationRepository) ListWithNotes(ctx context.Context, limit int) ([]*domain.PaperAnnotation, error) {
	return r.list(ctx, `comments <> ''`, limit)
}

func (r *AnnotationRepository) list(ctx context.Context, where string, limit int) ([]*domain.PaperAnnotation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT paper_id, doi, title, abstract, year, venue, authors, citation_count, oa_url, selected, comments, created_at, updated_at
		FROM paper WHERE `+where+`
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PaperAnnotation
	for rows.Next() {
		ann, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ann)
	}
	return out, rows.Err()
}

func scanAnnotation(row pgx.Row) (*domain.PaperAnnotation, error) {
	ann := &domain.PaperAnnotation{}
	var authors []byte
	err := row.Scan(
		&ann.PaperID,
		&ann.DOI,
		&ann.Title,
		&ann.Abstract,
		&ann.Year,
		&ann.Venue,
		&authors,
		&ann.CitationCount,
		&ann.OAURL,
		&ann.Selected,
		&ann.Comments,
		&ann.CreatedAt,
		&ann.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(authors) > 0 {
		_ = json.Unmarshal(authors, &ann.Authors)
	}
	return ann, nil
}
