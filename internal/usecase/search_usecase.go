package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/litscout/backend/internal/breaker"
	"github.com/litscout/backend/internal/cache"
	"github.com/litscout/backend/internal/dedup"
	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/enrich"
	"github.com/litscout/backend/internal/ranking"
)

var ErrEmptyQuery = errors.New("query must not be empty")

const (
	defaultLimit = 20
	maxLimit     = 100
)

type SearchUsecase struct {
	adapters   []domain.SourceAdapter
	breakers   *breaker.Registry
	cache      *cache.Cache
	enricher   *enrich.Enricher
	requestLog domain.RequestLogRepository
	logger     *log.Logger

	candidatesPerSource int
	sourceTimeout       time.Duration
}

// NewSearchUsecase wires the search pipeline. requestLog may be nil when no
// database is configured.
func NewSearchUsecase(
	adapters []domain.SourceAdapter,
	breakers *breaker.Registry,
	c *cache.Cache,
	enricher *enrich.Enricher,
	requestLog domain.RequestLogRepository,
	logger *log.Logger,
	candidatesPerSource int,
	sourceTimeout time.Duration,
) *SearchUsecase {
	if candidatesPerSource <= 0 {
		candidatesPerSource = 100
	}
	if sourceTimeout <= 0 {
		sourceTimeout = 30 * time.Second
	}
	return &SearchUsecase{
		adapters:            adapters,
		breakers:            breakers,
		cache:               c,
		enricher:            enricher,
		requestLog:          requestLog,
		logger:              logger,
		candidatesPerSource: candidatesPerSource,
		sourceTimeout:       sourceTimeout,
	}
}

// Search runs the full pipeline for a request: cache, parallel source
// fan-out, merge, sanity, dedup, filter, enrich, rank. The second return
// reports whether the result came from cache.
func (u *SearchUsecase) Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResult, bool, error) {
	start := time.Now()
	u.applyDefaults(req)
	if strings.TrimSpace(req.Query) == "" {
		return nil, false, ErrEmptyQuery
	}

	if !req.BypassCache {
		if cached, ok := u.cache.GetSearch(ctx, req); ok {
			u.logRequest(ctx, req, len(cached.Papers), true, start)
			return present(cached, req), true, nil
		}
	}

	records, stats := u.gather(ctx, req)

	papers := dedup.Merge(records)
	dedup.CitationAgeSanity(papers)
	papers = dedup.SafeDedup(papers)
	papers = filterPapers(papers, req)

	u.enricher.Enrich(ctx, papers)

	// Rank at the cache cap, not the request limit, so one cached set
	// serves every limit identically. present applies req.Limit.
	ranked := ranking.Rank(papers, req.Query, req.Mode, maxLimit, req.SurveyOnly)

	result := &domain.SearchResult{
		Papers:          ranked,
		Query:           req.Query,
		Mode:            req.Mode,
		TotalCandidates: len(records),
		SourceStats:     stats,
	}
	u.cache.SetSearch(ctx, req, result)
	for _, p := range ranked {
		u.cache.SetPaper(ctx, p)
	}

	u.logRequest(ctx, req, len(ranked), false, start)
	return present(result, req), false, nil
}

func (u *SearchUsecase) applyDefaults(req *domain.SearchRequest) {
	if req.Mode == "" {
		req.Mode = domain.ModeFoundational
	}
	if req.SortBy == "" {
		req.SortBy = domain.SortRelevance
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	if req.LimitPerDatabase <= 0 {
		req.LimitPerDatabase = u.candidatesPerSource
	}
	if req.LimitPerDatabase > 200 {
		req.LimitPerDatabase = 200
	}
}

// gather fans out to every enabled source in parallel. A source failure
// trips its breaker and drops its results; it never fails the search.
func (u *SearchUsecase) gather(ctx context.Context, req *domain.SearchRequest) ([]*domain.PaperRecord, map[domain.Source]int) {
	var (
		mu      sync.Mutex
		records []*domain.PaperRecord
		stats   = map[domain.Source]int{}
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range u.adapters {
		adapter := adapter
		name := adapter.Name()
		if name == domain.SourcePubMed && !req.IncludePubMed {
			continue
		}
		if name == domain.SourceArxiv && !req.IncludeArxiv {
			continue
		}

		br := u.breakers.Get(string(name))
		if !br.Allow() {
			u.logger.Warn("source skipped, circuit open", "source", name)
			stats[name] = 0
			continue
		}

		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, u.sourceTimeout)
			defer cancel()

			found, err := adapter.Search(sctx, req.Query, req.LimitPerDatabase, req.YearMin, req.YearMax)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				br.RecordFailure()
				u.logger.Warn("source search failed", "source", name, "error", err)
				stats[name] = 0
				return nil
			}
			br.RecordSuccess()
			records = append(records, found...)
			stats[name] = len(found)
			return nil
		})
	}
	_ = g.Wait()
	return records, stats
}

// filterPapers applies the request's hard filters between dedup and ranking.
func filterPapers(papers []*domain.MergedPaper, req *domain.SearchRequest) []*domain.MergedPaper {
	types := map[domain.WorkType]bool{}
	for _, t := range req.PublicationTypes {
		types[domain.WorkType(strings.ToLower(strings.TrimSpace(t)))] = true
	}

	out := papers[:0]
	for _, p := range papers {
		if req.YearMin > 0 && (p.Year == nil || *p.Year < req.YearMin) {
			continue
		}
		if req.YearMax > 0 && p.Year != nil && *p.Year > req.YearMax {
			continue
		}
		if req.Since != "" && p.PublicationDate != "" && p.PublicationDate < req.Since {
			continue
		}
		if req.Until != "" && p.PublicationDate != "" && p.PublicationDate > req.Until {
			continue
		}
		if req.OAOnly && !p.IsOpenAccess {
			continue
		}
		if req.SurveyOnly && !p.IsSurvey {
			continue
		}
		if len(types) > 0 && !types[p.WorkType] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// present applies sort_by and limit to a cached or fresh result without
// mutating the stored copy. Relevance keeps the ranked order.
func present(result *domain.SearchResult, req *domain.SearchRequest) *domain.SearchResult {
	papers := append([]*domain.MergedPaper(nil), result.Papers...)

	switch req.SortBy {
	case domain.SortCitations:
		sort.SliceStable(papers, func(i, j int) bool {
			ci, cj := citationOf(papers[i]), citationOf(papers[j])
			if ci != cj {
				return ci > cj
			}
			return papers[i].Score > papers[j].Score
		})
	case domain.SortYear:
		sort.SliceStable(papers, func(i, j int) bool {
			yi, yj := yearOf(papers[i]), yearOf(papers[j])
			if yi != yj {
				return yi > yj
			}
			return papers[i].Score > papers[j].Score
		})
	}

	if len(papers) > req.Limit {
		papers = papers[:req.Limit]
	}
	return &domain.SearchResult{
		Papers:          papers,
		Query:           result.Query,
		Mode:            result.Mode,
		TotalCandidates: result.TotalCandidates,
		SourceStats:     result.SourceStats,
	}
}

func citationOf(p *domain.MergedPaper) int {
	if p.CitationCount == nil {
		return -1
	}
	return *p.CitationCount
}

func yearOf(p *domain.MergedPaper) int {
	if p.Year == nil {
		return -1
	}
	return *p.Year
}

func (u *SearchUsecase) logRequest(ctx context.Context, req *domain.SearchRequest, results int, cacheHit bool, start time.Time) {
	if u.requestLog == nil {
		return
	}
	entry := &domain.RequestLogEntry{
		Query:       req.Query,
		Mode:        string(req.Mode),
		ResultCount: results,
		CacheHit:    cacheHit,
		LatencyMS:   time.Since(start).Milliseconds(),
		CreatedAt:   time.Now(),
	}
	if err := u.requestLog.Insert(ctx, entry); err != nil {
		u.logger.Debug("request log insert failed", "error", err)
	}
}
