package domain

import (
	"context"
	"time"
)

// PaperAnnotation is the persisted copy of a paper the user has selected or
// commented on. Papers are otherwise ephemeral; this row is the only durable
// record of one.
type PaperAnnotation struct {
	PaperID       string    `json:"paper_id"`
	DOI           string    `json:"doi,omitempty"`
	Title         string    `json:"title"`
	Abstract      string    `json:"abstract,omitempty"`
	Year          *int      `json:"year,omitempty"`
	Venue         string    `json:"venue,omitempty"`
	Authors       []Author  `json:"authors,omitempty"`
	CitationCount *int      `json:"citation_count,omitempty"`
	OAURL         string    `json:"oa_url,omitempty"`
	Selected      bool      `json:"selected"`
	Comments      string    `json:"comments,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type AnnotationRepository interface {
	Upsert(ctx context.Context, ann *PaperAnnotation) error
	SetSelected(ctx context.Context, paperID string, selected bool) error
	SetComment(ctx context.Context, paperID string, comment string) error
	Get(ctx context.Context, paperID string) (*PaperAnnotation, error)
	ListBookmarked(ctx context.Context, limit int) ([]*PaperAnnotation, error)
	ListWithNotes(ctx context.Context, limit int) ([]*PaperAnnotation, error)
}

// RequestLogEntry records one search request for operator diagnostics.
type RequestLogEntry struct {
	Query       string
	Mode        string
	ResultCount int
	CacheHit    bool
	LatencyMS   int64
	CreatedAt   time.Time
}

type RequestLogRepository interface {
	Insert(ctx context.Context, entry *RequestLogEntry) error
}
