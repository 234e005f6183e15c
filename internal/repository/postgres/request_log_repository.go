package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/litscout/backend/internal/domain"
)

type RequestLogRepository struct {
	db *pgxpool.Pool
}

func NewRequestLogRepository(db *pgxpool.Pool) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

func (r *RequestLogRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS request_log (
			id BIGSERIAL PRIMARY KEY,
			query TEXT NOT NULL,
			mode TEXT NOT NULL,
			result_count INT NOT NULL,
			cache_hit BOOLEAN NOT NULL,
			latency_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *RequestLogRepository) Insert(ctx context.Context, entry *domain.RequestLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO request_log (query, mode, result_count, cache_hit, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		entry.Query,
		entry.Mode,
		entry.ResultCount,
		entry.CacheHit,
		entry.LatencyMS,
		entry.CreatedAt,
	)
	return err
}
