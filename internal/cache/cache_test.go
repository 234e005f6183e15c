package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/backend/internal/domain"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(time.Hour, time.Hour)
	require.NoError(t, err)
	return c
}

func baseRequest() *domain.SearchRequest {
	return &domain.SearchRequest{
		Query:            "transformer models",
		Mode:             domain.ModeFoundational,
		Limit:            20,
		SortBy:           domain.SortRelevance,
		LimitPerDatabase: 100,
		IncludePubMed:    true,
		IncludeArxiv:     true,
	}
}

func TestSearchKeyIgnoresSortAndLimit(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.SortBy = domain.SortCitations
	b.Limit = 5
	assert.Equal(t, SearchKey(a), SearchKey(b))
}

func TestSearchKeyCanonicalizesQuery(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.Query = "  Transformer Models "
	assert.Equal(t, SearchKey(a), SearchKey(b))
}

func TestSearchKeyChangesWithFilters(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.OAOnly = true
	assert.NotEqual(t, SearchKey(a), SearchKey(b))

	c := baseRequest()
	c.YearMin = 2015
	assert.NotEqual(t, SearchKey(a), SearchKey(c))

	d := baseRequest()
	d.Mode = domain.ModeRecent
	assert.NotEqual(t, SearchKey(a), SearchKey(d))
}

func TestSearchKeyPublicationTypeOrderIrrelevant(t *testing.T) {
	a := baseRequest()
	a.PublicationTypes = []string{"Journal", "Conference Proceedings"}
	b := baseRequest()
	b.PublicationTypes = []string{"Conference Proceedings", "Journal"}
	assert.Equal(t, SearchKey(a), SearchKey(b))
}

func TestSearchRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	req := baseRequest()

	_, ok := c.GetSearch(ctx, req)
	assert.False(t, ok)

	year := 2017
	citations := 120000
	result := &domain.SearchResult{
		Papers: []*domain.MergedPaper{{
			ID:             uuid.New(),
			Title:          "Attention Is All You Need",
			Year:           &year,
			CitationCount:  &citations,
			Sources:        []domain.Source{domain.SourceSemanticScholar},
			Score:          0.91,
			WhyRecommended: []string{"Top-cited within the candidate set"},
		}},
		Query:           "transformer models",
		Mode:            domain.ModeFoundational,
		TotalCandidates: 42,
		SourceStats:     map[domain.Source]int{domain.SourceSemanticScholar: 40},
	}
	c.SetSearch(ctx, req, result)
	c.Wait()

	got, ok := c.GetSearch(ctx, req)
	require.True(t, ok)
	assert.Equal(t, 42, got.TotalCandidates)
	require.Len(t, got.Papers, 1)
	assert.Equal(t, "Attention Is All You Need", got.Papers[0].Title)
	assert.Equal(t, 120000, *got.Papers[0].CitationCount)
	assert.Equal(t, 40, got.SourceStats[domain.SourceSemanticScholar])
}

func TestPaperRoundTripWithDOIAlias(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	paper := &domain.MergedPaper{
		ID:    uuid.New(),
		Title: "Deep Residual Learning",
		DOI:   "10.1109/CVPR.2016.90",
	}
	c.SetPaper(ctx, paper)
	c.Wait()

	byID, ok := c.GetPaper(ctx, paper.ID.String())
	require.True(t, ok)
	assert.Equal(t, paper.Title, byID.Title)

	byDOI, ok := c.GetPaperByDOI(ctx, "10.1109/CVPR.2016.90")
	require.True(t, ok)
	assert.Equal(t, paper.Title, byDOI.Title)
}

func TestStatsCountsHitsAndMisses(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	req := baseRequest()

	c.GetSearch(ctx, req)
	c.SetSearch(ctx, req, &domain.SearchResult{Query: req.Query})
	c.Wait()
	c.GetSearch(ctx, req)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
}
