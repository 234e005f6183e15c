package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/litscout/backend/internal/breaker"
	"github.com/litscout/backend/internal/cache"
	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/usecase"
)

type Handler struct {
	search      *usecase.SearchUsecase
	papers      *usecase.PaperUsecase
	annotations *usecase.AnnotationUsecase
	cache       *cache.Cache
	breakers    *breaker.Registry
}

func NewHandler(
	search *usecase.SearchUsecase,
	papers *usecase.PaperUsecase,
	annotations *usecase.AnnotationUsecase,
	c *cache.Cache,
	breakers *breaker.Registry,
) *Handler {
	return &Handler{
		search:      search,
		papers:      papers,
		annotations: annotations,
		cache:       c,
		breakers:    breakers,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// publicationTypeAliases maps request labels, including the canonical
// "Conference Proceedings" form, to internal work types.
var publicationTypeAliases = map[string]string{
	"journal":                "journal",
	"conference":             "conference",
	"conference proceedings": "conference",
	"book":                   "book",
	"chapter":                "chapter",
	"preprint":               "preprint",
	"survey":                 "survey",
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := &domain.SearchRequest{
		Query:         strings.TrimSpace(q.Get("q")),
		Mode:          domain.Mode(q.Get("mode")),
		SortBy:        domain.SortBy(q.Get("sort_by")),
		Since:         q.Get("since"),
		Until:         q.Get("until"),
		OAOnly:        boolParam(q.Get("oa_only"), false),
		SurveyOnly:    boolParam(q.Get("survey_only"), false),
		IncludePubMed: boolParam(q.Get("include_pubmed"), true),
		IncludeArxiv:  boolParam(q.Get("include_arxiv"), true),
		BypassCache:   boolParam(q.Get("bypass_cache"), false),
	}

	if len(req.Query) < 2 {
		writeError(w, http.StatusUnprocessableEntity, "q must be at least 2 characters")
		return
	}
	if req.Mode != domain.ModeFoundational && req.Mode != domain.ModeRecent {
		writeError(w, http.StatusUnprocessableEntity, "mode must be 'foundational' or 'recent'")
		return
	}
	if req.SortBy != "" && req.SortBy != domain.SortRelevance &&
		req.SortBy != domain.SortCitations && req.SortBy != domain.SortYear {
		writeError(w, http.StatusUnprocessableEntity, "sort_by must be 'relevance', 'citations' or 'year'")
		return
	}

	var err error
	if req.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if req.YearMin, err = intParam(q.Get("year_min"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "year_min must be an integer")
		return
	}
	if req.YearMax, err = intParam(q.Get("year_max"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "year_max must be an integer")
		return
	}
	if req.LimitPerDatabase, err = intParam(q.Get("limit_per_database"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "limit_per_database must be an integer")
		return
	}
	if req.YearMin > 0 && req.YearMax > 0 && req.YearMin > req.YearMax {
		writeError(w, http.StatusBadRequest, "year_min must not exceed year_max")
		return
	}
	for _, field := range []string{req.Since, req.Until} {
		if field != "" && !validDate(field) {
			writeError(w, http.StatusBadRequest, "since/until must be YYYY-MM-DD dates")
			return
		}
	}

	if raw := q.Get("publication_types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			mapped, ok := publicationTypeAliases[t]
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown publication type: "+t)
				return
			}
			req.PublicationTypes = append(req.PublicationTypes, mapped)
		}
	}

	result, cacheHit, err := h.search.Search(r.Context(), req)
	if errors.Is(err, usecase.ErrEmptyQuery) {
		writeError(w, http.StatusUnprocessableEntity, "q must be at least 2 characters")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results:         toPaperResponses(result.Papers),
		Query:           result.Query,
		Mode:            string(result.Mode),
		SortBy:          string(req.SortBy),
		Limit:           req.Limit,
		TotalCandidates: result.TotalCandidates,
		SourceStats:     result.SourceStats,
		CacheHit:        cacheHit,
	})
}

// GetPaper handles GET /paper/{id}.
func (h *Handler) GetPaper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	paper, err := h.papers.GetPaper(r.Context(), id)
	if errors.Is(err, domain.ErrPaperNotFound) {
		writeError(w, http.StatusNotFound, "paper not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "paper lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toPaperResponse(paper))
}

// GetRelated handles GET /paper/{id}/related.
func (h *Handler) GetRelated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	// The id path segment doubles as the S2 id unless s2_id overrides it.
	s2ID := q.Get("s2_id")
	if s2ID == "" {
		s2ID = chi.URLParam(r, "id")
	}
	related, err := h.papers.Related(r.Context(), s2ID, q.Get("oa_id"), q.Get("query"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "related lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": toPaperResponses(related),
	})
}

// SetSelected handles PUT /paper/{id}/select.
func (h *Handler) SetSelected(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("selected")
	selected, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "selected must be true or false")
		return
	}

	persisted, err := h.annotations.SetSelected(r.Context(), chi.URLParam(r, "id"), selected)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store selection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"selected":  selected,
		"persisted": persisted,
	})
}

// SetComment handles PUT /paper/{id}/comment.
func (h *Handler) SetComment(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("comment") {
		writeError(w, http.StatusBadRequest, "comment parameter is required")
		return
	}
	comment := r.URL.Query().Get("comment")

	persisted, err := h.annotations.SetComment(r.Context(), chi.URLParam(r, "id"), comment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store comment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"comment":   comment,
		"persisted": persisted,
	})
}

// Bookmarked handles GET /papers/bookmarked.
func (h *Handler) Bookmarked(w http.ResponseWriter, r *http.Request) {
	h.listAnnotations(w, r, h.annotations.Bookmarked)
}

// WithNotes handles GET /papers/with-notes.
func (h *Handler) WithNotes(w http.ResponseWriter, r *http.Request) {
	h.listAnnotations(w, r, h.annotations.WithNotes)
}

func (h *Handler) listAnnotations(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, limit int) ([]*domain.PaperAnnotation, error),
) {
	limit, err := intParam(r.URL.Query().Get("limit"), 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	anns, err := list(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": toAnnotationResponses(anns),
	})
}

// GetPublication handles GET /publication/{id}. Full-text retrieval is not
// implemented.
func (h *Handler) GetPublication(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "publication retrieval is not implemented")
}

// CacheStats handles GET /ops/cache-stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.cache.Wait()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache":    h.cache.Stats(),
		"breakers": h.breakers.States(),
	})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func boolParam(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
