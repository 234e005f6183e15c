// Package cache holds the versioned query-keyed search-result cache and
// the single-paper cache. Both live in one in-process ristretto store;
// entries are JSON snapshots so cached results are immune to later mutation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	gocache "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"

	"github.com/litscout/backend/internal/domain"
)

// version is baked into every search key; bump it when ranking or
// normalization changes so stale entries stop matching.
const version = "v2"

const (
	DefaultSearchTTL = 24 * time.Hour
	DefaultPaperTTL  = 7 * 24 * time.Hour
)

type Cache struct {
	entries   *gocache.Cache[[]byte]
	ristretto *ristretto.Cache
	searchTTL time.Duration
	paperTTL  time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func New(searchTTL, paperTTL time.Duration) (*Cache, error) {
	if searchTTL <= 0 {
		searchTTL = DefaultSearchTTL
	}
	if paperTTL <= 0 {
		paperTTL = DefaultPaperTTL
	}
	r, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     256 << 20, // 256 MiB of serialized entries
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("init ristretto: %w", err)
	}
	return &Cache{
		entries:   gocache.New[[]byte](ristretto_store.NewRistretto(r)),
		ristretto: r,
		searchTTL: searchTTL,
		paperTTL:  paperTTL,
	}, nil
}

// keyPayload is the canonical form of everything that determines a search
// result. sort_by and limit are deliberately absent: they are applied to
// the cached list on retrieval.
type keyPayload struct {
	Version          string   `json:"version"`
	Query            string   `json:"query"`
	Mode             string   `json:"mode"`
	YearMin          int      `json:"year_min"`
	YearMax          int      `json:"year_max"`
	Since            string   `json:"since"`
	Until            string   `json:"until"`
	LimitPerDatabase int      `json:"limit_per_database"`
	PublicationTypes []string `json:"publication_types"`
	OAOnly           bool     `json:"oa_only"`
	SurveyOnly       bool     `json:"survey_only"`
	IncludePubMed    bool     `json:"include_pubmed"`
	IncludeArxiv     bool     `json:"include_arxiv"`
}

// SearchKey builds the deterministic cache key for a request.
func SearchKey(req *domain.SearchRequest) string {
	types := append([]string(nil), req.PublicationTypes...)
	sort.Strings(types)
	payload := keyPayload{
		Version:          version,
		Query:            strings.ToLower(strings.TrimSpace(req.Query)),
		Mode:             string(req.Mode),
		YearMin:          req.YearMin,
		YearMax:          req.YearMax,
		Since:            req.Since,
		Until:            req.Until,
		LimitPerDatabase: req.LimitPerDatabase,
		PublicationTypes: types,
		OAOnly:           req.OAOnly,
		SurveyOnly:       req.SurveyOnly,
		IncludePubMed:    req.IncludePubMed,
		IncludeArxiv:     req.IncludeArxiv,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("search:%s:%s", version, hex.EncodeToString(sum[:])[:24])
}

// GetSearch returns the cached full ranked result set for a request.
func (c *Cache) GetSearch(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResult, bool) {
	raw, err := c.entries.Get(ctx, SearchKey(req))
	if err != nil || len(raw) == 0 {
		c.misses.Add(1)
		return nil, false
	}
	var result domain.SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

// SetSearch stores the full ranked result set under the request's key.
func (c *Cache) SetSearch(ctx context.Context, req *domain.SearchRequest, result *domain.SearchResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = c.entries.Set(ctx, SearchKey(req), raw,
		store.WithExpiration(c.searchTTL), store.WithCost(int64(len(raw))))
}

func paperKey(id string) string {
	return "paper:" + strings.ToLower(strings.TrimSpace(id))
}

// GetPaper looks a single paper up by any of its cached keys (id or DOI).
func (c *Cache) GetPaper(ctx context.Context, id string) (*domain.MergedPaper, bool) {
	raw, err := c.entries.Get(ctx, paperKey(id))
	if err != nil || len(raw) == 0 {
		c.misses.Add(1)
		return nil, false
	}
	var paper domain.MergedPaper
	if err := json.Unmarshal(raw, &paper); err != nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &paper, true
}

// SetPaper stores a paper under its id and, when present, its DOI, so both
// lookups hit the same snapshot.
func (c *Cache) SetPaper(ctx context.Context, paper *domain.MergedPaper) {
	raw, err := json.Marshal(paper)
	if err != nil {
		return
	}
	keys := []string{paperKey(paper.ID.String())}
	if paper.DOI != "" {
		keys = append(keys, paperKey("doi:"+paper.DOI))
	}
	for _, key := range keys {
		_ = c.entries.Set(ctx, key, raw,
			store.WithExpiration(c.paperTTL), store.WithCost(int64(len(raw))))
	}
}

// GetPaperByDOI is the DOI alias lookup.
func (c *Cache) GetPaperByDOI(ctx context.Context, doi string) (*domain.MergedPaper, bool) {
	return c.GetPaper(ctx, "doi:"+doi)
}

// Wait flushes pending writes. Ristretto applies sets asynchronously; the
// pipeline never needs read-your-write, but tests and the stats endpoint do.
func (c *Cache) Wait() {
	c.ristretto.Wait()
}

// Stats reports hit/miss counters and the store's own metrics.
func (c *Cache) Stats() map[string]interface{} {
	m := c.ristretto.Metrics
	return map[string]interface{}{
		"hits":          c.hits.Load(),
		"misses":        c.misses.Load(),
		"keys_added":    m.KeysAdded(),
		"keys_evicted":  m.KeysEvicted(),
		"cost_added":    m.CostAdded(),
		"cost_evicted":  m.CostEvicted(),
		"search_ttl_s":  int(c.searchTTL.Seconds()),
		"paper_ttl_s":   int(c.paperTTL.Seconds()),
		"cache_version": version,
	}
}
