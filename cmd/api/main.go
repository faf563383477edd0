package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/copanyhq/revenue-sync/internal/api/handlers"
	"github.com/copanyhq/revenue-sync/internal/api/middleware"
	"github.com/copanyhq/revenue-sync/internal/appstore"
	"github.com/copanyhq/revenue-sync/internal/credentials"
	"github.com/copanyhq/revenue-sync/internal/currency"
	"github.com/copanyhq/revenue-sync/internal/gcsstore"
	infraBQ "github.com/copanyhq/revenue-sync/internal/infra/bigquery"
	"github.com/copanyhq/revenue-sync/internal/jobs"
	"github.com/copanyhq/revenue-sync/internal/jobs/inmemory"
	"github.com/copanyhq/revenue-sync/internal/logger"
	"github.com/copanyhq/revenue-sync/internal/notionexport"
	"github.com/copanyhq/revenue-sync/internal/syncer"
)

func main() {
	// Load .env if present; environment variables win in production.
	_ = godotenv.Load()

	var (
		port   = flag.String("port", "8080", "HTTP server port")
		bucket = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for raw report archival (or set GCS_BUCKET env)")
	)
	flag.Parse()

	log := logger.New()

	key, err := credentials.KeyFromHex(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		log.Fatal().Err(err).Msg("ENCRYPTION_KEY must be 64 hex characters")
	}

	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - raw report archival disabled")
	}

	ctx := context.Background()

	repo, err := infraBQ.NewSyncRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sync repository")
	}
	defer repo.Close()

	converter := currency.NewConverter(log,
		currency.NewFrankfurterProvider(),
		currency.NewExchangerateHostProvider(),
	)

	var exporter syncer.AggregateExporter
	if token, dbID := os.Getenv("NOTION_TOKEN"), os.Getenv("NOTION_DATABASE_ID"); token != "" && dbID != "" {
		exporter = notionexport.NewExporter(notionexport.NewNotionClient(token), dbID, log)
		log.Info().Msg("Notion aggregate export enabled")
	}

	svc := syncer.NewService(
		repo,
		appstore.NewClient(log),
		converter,
		gcsstore.New(*bucket),
		exporter,
		syncer.Config{EncryptionKey: key},
		log,
	)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		syncJob, ok := job.(*jobs.SyncTenantJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("tenant_id", syncJob.TenantID).
			Msg("Processing sync job")

		tr := svc.SyncTenant(ctx, syncJob.TenantID)
		syncJob.NewReports = tr.NewReports
		syncJob.NewChartData = tr.NewChartData
		if tr.Err != nil {
			log.Error().
				Err(tr.Err).
				Str("job_id", syncJob.JobID).
				Str("tenant_id", syncJob.TenantID).
				Msg("Tenant sync failed")
			return tr.Err
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("tenant_id", syncJob.TenantID).
			Int("new_reports", tr.NewReports).
			Int("new_chart_data", tr.NewChartData).
			Bool("skipped", tr.Skipped).
			Msg("Tenant sync completed")

		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	syncHandler := handlers.NewSyncHandler(svc, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.RunSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sync/tenants", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.EnqueueTenantSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// RequestID runs before Logger so the access log carries the ID.
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
