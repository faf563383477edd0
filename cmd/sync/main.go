package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/copanyhq/revenue-sync/internal/appstore"
	"github.com/copanyhq/revenue-sync/internal/credentials"
	"github.com/copanyhq/revenue-sync/internal/currency"
	"github.com/copanyhq/revenue-sync/internal/gcsstore"
	infraBQ "github.com/copanyhq/revenue-sync/internal/infra/bigquery"
	"github.com/copanyhq/revenue-sync/internal/logger"
	"github.com/copanyhq/revenue-sync/internal/notionexport"
	"github.com/copanyhq/revenue-sync/internal/syncer"
)

// One-shot batch sync across all tenants, for cron or manual runs.
func main() {
	_ = godotenv.Load()

	log := logger.New()

	var (
		tenantID = flag.String("tenant", "", "Sync a single tenant instead of the full batch")
		bucket   = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for raw report archival (or set GCS_BUCKET env)")
		timeout  = flag.Duration("timeout", 30*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	key, err := credentials.KeyFromHex(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		log.Fatal().Err(err).Msg("ENCRYPTION_KEY must be 64 hex characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ctx = logger.WithContext(ctx, log)

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

	if *tenantID != "" {
		tr := svc.SyncTenant(ctx, *tenantID)
		if tr.Err != nil {
			log.Fatal().Err(tr.Err).Str("tenant_id", *tenantID).Msg("Sync failed")
		}
		fmt.Printf("Tenant %s: %d new reports, %d new chart months, %d fetch errors\n",
			*tenantID, tr.NewReports, tr.NewChartData, len(tr.FetchErrors))
		return
	}

	result, err := svc.RunBatch(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch sync failed")
	}

	fmt.Printf("Processed %d tenants (%d ok, %d failed, %d skipped): %d new reports, %d new chart months\n",
		result.Processed, result.Successful, result.Failed, result.Skipped,
		result.TotalNewReports, result.TotalNewChartData)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e.String())
	}
}
