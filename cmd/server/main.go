package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/litscout/backend/internal/breaker"
	"github.com/litscout/backend/internal/cache"
	"github.com/litscout/backend/internal/config"
	delivery "github.com/litscout/backend/internal/delivery/http"
	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/enrich"
	"github.com/litscout/backend/internal/repository/postgres"
	"github.com/litscout/backend/internal/usecase"
	"github.com/litscout/backend/pkg/arxiv"
	"github.com/litscout/backend/pkg/crossref"
	"github.com/litscout/backend/pkg/openalex"
	"github.com/litscout/backend/pkg/pubmed"
	"github.com/litscout/backend/pkg/semanticscholar"
	"github.com/litscout/backend/pkg/unpaywall"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "litscout",
	})
	logger.Info("starting")

	cfg := config.Load()

	// The database is optional. Without one, annotations fall back to
	// persisted=false responses and request logging is disabled.
	var (
		pool           *pgxpool.Pool
		annotationRepo domain.AnnotationRepository
		requestLogRepo domain.RequestLogRepository
	)
	if cfg.Database.URL != "" {
		pool = connectWithRetry(cfg.Database.URL, logger)
	}
	if pool != nil {
		defer pool.Close()
		annRepo := postgres.NewAnnotationRepository(pool)
		logRepo := postgres.NewRequestLogRepository(pool)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := annRepo.EnsureSchema(ctx); err != nil {
			logger.Error("annotation schema setup failed", "error", err)
		} else if err := logRepo.EnsureSchema(ctx); err != nil {
			logger.Error("request log schema setup failed", "error", err)
		} else {
			annotationRepo = annRepo
			requestLogRepo = logRepo
		}
		cancel()
	} else {
		logger.Warn("running without database, annotations will not persist")
	}

	resultCache, err := cache.New(cfg.Cache.SearchTTL, cfg.Cache.PaperTTL)
	if err != nil {
		logger.Fatal("cache init failed", "error", err)
	}
	breakers := breaker.NewRegistry()

	s2Client := semanticscholar.NewClient(cfg.Sources.SemanticScholarAPIKey)
	openalexClient := openalex.NewClient(cfg.Sources.ContactEmail)
	pubmedClient := pubmed.NewClient(cfg.Sources.NCBIAPIKey)
	arxivClient := arxiv.NewClient()
	crossrefClient := crossref.NewClient(cfg.Sources.ContactEmail)

	adapters := []domain.SourceAdapter{
		s2Client,
		openalexClient,
		pubmedClient,
		arxivClient,
		crossrefClient,
	}

	var oaLookup enrich.OALookup
	if cfg.Sources.ContactEmail != "" {
		oaLookup = unpaywall.NewClient(cfg.Sources.ContactEmail)
	} else {
		logger.Warn("CONTACT_EMAIL unset, unpaywall enrichment disabled")
	}
	enricher := enrich.New(oaLookup, logger)

	searchUsecase := usecase.NewSearchUsecase(
		adapters, breakers, resultCache, enricher, requestLogRepo, logger,
		cfg.Search.CandidatesPerSource, cfg.Search.SourceTimeout,
	)
	paperUsecase := usecase.NewPaperUsecase(
		s2Client, openalexClient, resultCache, enricher, annotationRepo, logger,
	)
	annotationUsecase := usecase.NewAnnotationUsecase(annotationRepo, paperUsecase, logger)

	handler := delivery.NewHandler(searchUsecase, paperUsecase, annotationUsecase, resultCache, breakers)
	router := delivery.NewRouter(handler, cfg.CORS.AllowedOrigins, cfg.Server.RequestsPerMinute)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("forced shutdown", "error", err)
	}
	logger.Info("stopped")
}

// connectWithRetry tries the database a few times before giving up. A
// missing database is not fatal.
func connectWithRetry(url string, logger *log.Logger) *pgxpool.Pool {
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := pgxpool.New(ctx, url)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				logger.Info("connected to postgres")
				return pool
			} else {
				pool.Close()
				err = pingErr
			}
		}
		cancel()
		logger.Warn("database connection failed", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	return nil
}
