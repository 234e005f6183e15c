package usecase

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/backend/internal/cache"
	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/enrich"
)

type fakePaperSource struct {
	papers     map[string]*domain.PaperRecord
	citations  []*domain.PaperRecord
	references []*domain.PaperRecord
	getCalls   int
}

func (f *fakePaperSource) Get(ctx context.Context, id string) (*domain.PaperRecord, error) {
	f.getCalls++
	return f.papers[id], nil
}

func (f *fakePaperSource) Citations(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error) {
	return f.citations, nil
}

func (f *fakePaperSource) References(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error) {
	return f.references, nil
}

type fakeRelatedSource struct {
	papers  map[string]*domain.PaperRecord
	related []*domain.PaperRecord
}

func (f *fakeRelatedSource) Get(ctx context.Context, id string) (*domain.PaperRecord, error) {
	return f.papers[id], nil
}

func (f *fakeRelatedSource) Related(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error) {
	return f.related, nil
}

func newPaperUsecase(t *testing.T, primary PaperSource, secondary RelatedSource) (*PaperUsecase, *cache.Cache) {
	t.Helper()
	c, err := cache.New(time.Hour, time.Hour)
	require.NoError(t, err)
	logger := log.New(io.Discard)
	return NewPaperUsecase(primary, secondary, c, enrich.New(nil, logger), nil, logger), c
}

func TestGetPaperByDOIUsesPrefixedLookup(t *testing.T) {
	primary := &fakePaperSource{papers: map[string]*domain.PaperRecord{
		"DOI:10.1000/x": record(domain.SourceSemanticScholar, "Found Paper", 2018, 100),
	}}
	u, _ := newPaperUsecase(t, primary, &fakeRelatedSource{})

	paper, err := u.GetPaper(context.Background(), "10.1000/x")
	require.NoError(t, err)
	assert.Equal(t, "Found Paper", paper.Title)
	assert.NotEmpty(t, paper.Databases)
}

func TestGetPaperFallsBackToSecondary(t *testing.T) {
	primary := &fakePaperSource{papers: map[string]*domain.PaperRecord{}}
	secondary := &fakeRelatedSource{papers: map[string]*domain.PaperRecord{
		"W123": record(domain.SourceOpenAlex, "OpenAlex Only", 2020, 10),
	}}
	u, _ := newPaperUsecase(t, primary, secondary)

	paper, err := u.GetPaper(context.Background(), "W123")
	require.NoError(t, err)
	assert.Equal(t, "OpenAlex Only", paper.Title)
}

func TestGetPaperNotFound(t *testing.T) {
	u, _ := newPaperUsecase(t, &fakePaperSource{papers: map[string]*domain.PaperRecord{}}, &fakeRelatedSource{})
	_, err := u.GetPaper(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrPaperNotFound)
}

func TestGetPaperCachesResult(t *testing.T) {
	primary := &fakePaperSource{papers: map[string]*domain.PaperRecord{
		"abc": record(domain.SourceSemanticScholar, "Cache Me", 2019, 5),
	}}
	u, c := newPaperUsecase(t, primary, &fakeRelatedSource{})

	first, err := u.GetPaper(context.Background(), "abc")
	require.NoError(t, err)
	c.Wait()

	second, err := u.GetPaper(context.Background(), first.ID.String())
	require.NoError(t, err)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, 1, primary.getCalls)
}

func TestRelatedMergesNeighborhood(t *testing.T) {
	shared := record(domain.SourceSemanticScholar, "Shared Neighbor", 2015, 3000)
	shared.DOI = "10.1000/shared"
	sharedAgain := record(domain.SourceOpenAlex, "Shared Neighbor", 2015, 2800)
	sharedAgain.DOI = "10.1000/shared"

	primary := &fakePaperSource{
		citations:  []*domain.PaperRecord{shared, record(domain.SourceSemanticScholar, "Citing Work", 2021, 40)},
		references: []*domain.PaperRecord{record(domain.SourceSemanticScholar, "Referenced Work", 2010, 900)},
	}
	secondary := &fakeRelatedSource{related: []*domain.PaperRecord{sharedAgain}}
	u, _ := newPaperUsecase(t, primary, secondary)

	related, err := u.Related(context.Background(), "s2id", "W1", "topic", 10)
	require.NoError(t, err)
	require.Len(t, related, 3)

	var sharedPaper *domain.MergedPaper
	for _, p := range related {
		if p.DOI == "10.1000/shared" {
			sharedPaper = p
		}
	}
	require.NotNil(t, sharedPaper)
	assert.Len(t, sharedPaper.Sources, 2)
}

func TestRelatedWithNoIDs(t *testing.T) {
	u, _ := newPaperUsecase(t, &fakePaperSource{}, &fakeRelatedSource{})
	related, err := u.Related(context.Background(), "", "", "topic", 10)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestCitationKey(t *testing.T) {
	year := 2017
	paper := &domain.MergedPaper{
		Title:   "Attention Is All You Need",
		Year:    &year,
		Authors: []domain.Author{{Name: "Ashish Vaswani"}},
	}
	assert.Equal(t, "vaswani2017attention", CitationKey(paper))

	// The first title word is taken verbatim, articles included.
	lotteryYear := 2019
	lottery := &domain.MergedPaper{
		Title:   "The Lottery Ticket Hypothesis",
		Year:    &lotteryYear,
		Authors: []domain.Author{{Name: "Jonathan Frankle"}},
	}
	assert.Equal(t, "frankle2019the", CitationKey(lottery))

	noYear := &domain.MergedPaper{
		Title:   "The Unknown Work",
		Authors: []domain.Author{{Name: "O'Brien, Patrick"}},
	}
	assert.Equal(t, "obrienXXXXthe", CitationKey(noYear))

	anonymous := &domain.MergedPaper{Title: "Results"}
	assert.Equal(t, "unknownXXXXresults", CitationKey(anonymous))

	untitled := &domain.MergedPaper{}
	assert.Equal(t, "unknownXXXXunknown", CitationKey(untitled))
}

func TestSourceLookupID(t *testing.T) {
	assert.Equal(t, "DOI:10.1000/x", sourceLookupID("10.1000/x"))
	assert.Equal(t, "ARXIV:1706.03762", sourceLookupID("arXiv:1706.03762v3"))
	assert.Equal(t, "abc123", sourceLookupID("abc123"))
}
