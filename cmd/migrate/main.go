package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/bigquery"
)

// Creates the BigQuery tables the sync pipeline owns. Statements are
// idempotent, so re-running against an existing dataset is safe.

var (
	projectID = flag.String("project", os.Getenv("BIGQUERY_PROJECT"), "GCP project ID (or set BIGQUERY_PROJECT)")
	datasetID = flag.String("dataset", envOr("BIGQUERY_DATASET", "revenue"), "BigQuery dataset ID")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func tableStatements(project, dataset string) []struct{ name, sql string } {
	qualify := func(table string) string {
		return fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
	}

	return []struct{ name, sql string }{
		{
			name: "credentials",
			sql: `CREATE TABLE IF NOT EXISTS ` + qualify("credentials") + ` (
				tenant_id           STRING NOT NULL,
				enc_private_key     STRING NOT NULL,
				enc_key_id          STRING NOT NULL,
				enc_issuer_id       STRING NOT NULL,
				enc_vendor_number   STRING NOT NULL,
				enc_sku             STRING,
				created_ts          TIMESTAMP NOT NULL
			)`,
		},
		{
			name: "raw_reports",
			sql: `CREATE TABLE IF NOT EXISTS ` + qualify("raw_reports") + ` (
				report_id       STRING NOT NULL,
				tenant_id       STRING NOT NULL,
				report_type     STRING NOT NULL,
				region_code     STRING NOT NULL,
				report_date     STRING NOT NULL,
				raw_gcs_uri     STRING,
				raw_text        STRING,
				parsed_json     STRING,
				filtered_json   STRING,
				created_ts      TIMESTAMP NOT NULL
			)`,
		},
		{
			name: "monthly_aggregates",
			sql: `CREATE TABLE IF NOT EXISTS ` + qualify("monthly_aggregates") + ` (
				tenant_id           STRING NOT NULL,
				month               STRING NOT NULL,
				amount_usd          FLOAT64 NOT NULL,
				transaction_count   INT64 NOT NULL,
				transactions_json   STRING,
				updated_ts          TIMESTAMP NOT NULL
			)`,
		},
	}
}

func main() {
	flag.Parse()

	if *projectID == "" {
		log.Fatal("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx := context.Background()

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatalf("Failed to create BigQuery client: %v", err)
	}
	defer client.Close()

	log.Printf("Connected to BigQuery project: %s, dataset: %s", *projectID, *datasetID)

	for _, stmt := range tableStatements(*projectID, *datasetID) {
		log.Printf("  [RUN]  %s", stmt.name)
		if err := runStatement(ctx, client, stmt.sql); err != nil {
			log.Fatalf("Failed to create table %s: %v", stmt.name, err)
		}
		log.Printf("  [OK]   %s", stmt.name)
	}

	log.Println("All sync tables are in place.")
}

func runStatement(ctx context.Context, client *bigquery.Client, sql string) error {
	query := client.Query(sql)
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
