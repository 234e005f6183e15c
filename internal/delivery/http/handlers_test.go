package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/backend/internal/breaker"
	"github.com/litscout/backend/internal/cache"
	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/enrich"
	"github.com/litscout/backend/internal/usecase"
)

type stubAdapter struct {
	name    domain.Source
	records []*domain.PaperRecord
}

func (s *stubAdapter) Name() domain.Source { return s.name }

func (s *stubAdapter) Search(ctx context.Context, query string, limit, yearMin, yearMax int) ([]*domain.PaperRecord, error) {
	return s.records, nil
}

func (s *stubAdapter) Get(ctx context.Context, id string) (*domain.PaperRecord, error) {
	for _, rec := range s.records {
		if rec.SourceID == id {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *stubAdapter) Citations(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error) {
	return nil, nil
}

func (s *stubAdapter) References(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error) {
	return nil, nil
}

func (s *stubAdapter) Related(ctx context.Context, id string, limit int) ([]*domain.PaperRecord, error) {
	return nil, nil
}

func testRecord(title string, year, citations int) *domain.PaperRecord {
	return &domain.PaperRecord{
		Title:          title,
		Source:         domain.SourceSemanticScholar,
		SourceID:       "s2:" + title,
		Year:           &year,
		CitationCount:  &citations,
		Authors:        []domain.Author{{Name: "Jane Doe"}},
		RelevanceScore: 0.9,
	}
}

func newTestServer(t *testing.T, records ...*domain.PaperRecord) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard)
	c, err := cache.New(time.Hour, time.Hour)
	require.NoError(t, err)
	breakers := breaker.NewRegistry()
	enricher := enrich.New(nil, logger)

	adapter := &stubAdapter{name: domain.SourceSemanticScholar, records: records}
	search := usecase.NewSearchUsecase(
		[]domain.SourceAdapter{adapter}, breakers, c, enricher, nil, logger, 100, time.Second)
	papers := usecase.NewPaperUsecase(adapter, adapter, c, enricher, nil, logger)
	annotations := usecase.NewAnnotationUsecase(nil, papers, logger)

	handler := NewHandler(search, papers, annotations, c, breakers)
	srv := httptest.NewServer(NewRouter(handler, []string{"*"}, 1000))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t,
		testRecord("Attention Is All You Need", 2017, 120000),
		testRecord("Deep Residual Learning", 2016, 90000),
	)

	var body searchResponse
	status := getJSON(t, srv.URL+"/search?q=deep+learning&mode=foundational&limit=10", &body)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "deep learning", body.Query)
	assert.Equal(t, "foundational", body.Mode)
	assert.Equal(t, 2, body.TotalCandidates)
	require.Len(t, body.Results, 2)
	assert.NotEmpty(t, body.Results[0].CitationKey)
	assert.Equal(t, 2, body.SourceStats[domain.SourceSemanticScholar])
}

func TestSearchValidation(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, srv.URL+"/search", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, srv.URL+"/search?q=x&mode=recent", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, srv.URL+"/search?q=topic", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, srv.URL+"/search?q=topic&mode=wrong", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, srv.URL+"/search?q=topic&mode=recent&sort_by=wrong", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/search?q=topic&mode=recent&year_min=abc", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/search?q=topic&mode=recent&year_min=2020&year_max=2010", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/search?q=topic&mode=recent&since=20-01-01", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/search?q=topic&mode=recent&publication_types=novel", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/search?q=topic&mode=recent&publication_types=journal,conference", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/search?q=topic&mode=recent&publication_types=Journal,Conference+Proceedings,Book", nil))
}

func TestSearchSortByCitations(t *testing.T) {
	srv := newTestServer(t,
		testRecord("Low Citations Recent", 2023, 10),
		testRecord("High Citations Classic", 2005, 50000),
	)

	var body searchResponse
	status := getJSON(t, srv.URL+"/search?q=topic&mode=foundational&sort_by=citations", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "High Citations Classic", body.Results[0].Title)
}

func TestPaperDetailEndpoint(t *testing.T) {
	target := testRecord("Lookup Target", 2019, 77)
	target.SourceID = "abc123"
	srv := newTestServer(t, target)

	var paper PaperResponse
	status := getJSON(t, srv.URL+"/paper/abc123", &paper)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Lookup Target", paper.Title)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/paper/missing", nil))
}

func TestSelectWithoutStoreReportsNotPersisted(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/paper/abc/select?selected=true", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["selected"])
	assert.Equal(t, false, body["persisted"])
}

func TestSelectRejectsBadParam(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/paper/abc/select?selected=maybe", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPublicationNotImplemented(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusNotImplemented, getJSON(t, srv.URL+"/publication/some-id", nil))
}

func TestHealthAndOpsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]interface{}
	status := getJSON(t, srv.URL+"/ops/cache-stats", &stats)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, stats, "cache")
	assert.Contains(t, stats, "breakers")
}

func TestBookmarkedWithoutStoreIsEmpty(t *testing.T) {
	srv := newTestServer(t)

	var body map[string][]*annotationResponse
	status := getJSON(t, srv.URL+"/papers/bookmarked", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["results"])
}
