package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

func NewRouter(handler *Handler, allowedOrigins []string, requestsPerMinute int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(rateLimit(requestsPerMinute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Get("/search", handler.Search)

	r.Route("/paper/{id}", func(r chi.Router) {
		r.Get("/", handler.GetPaper)
		r.Get("/related", handler.GetRelated)
		r.Put("/select", handler.SetSelected)
		r.Put("/comment", handler.SetComment)
	})

	r.Route("/papers", func(r chi.Router) {
		r.Get("/bookmarked", handler.Bookmarked)
		r.Get("/with-notes", handler.WithNotes)
	})

	r.Get("/publication/{id}", handler.GetPublication)

	r.Get("/ops/cache-stats", handler.CacheStats)

	return r
}

// rateLimit applies one shared token bucket across all clients.
func rateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 100
	}
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
