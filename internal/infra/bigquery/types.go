package bigquery

import (
	"os"
	"time"
)

// Table names within the revenue dataset.
const (
	credentialsTable = "credentials"
	rawReportsTable  = "raw_reports"
	aggregatesTable  = "monthly_aggregates"
)

var (
	projectID = envOr("BIGQUERY_PROJECT", "copany-platform")
	datasetID = envOr("BIGQUERY_DATASET", "revenue")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// CredentialRow mirrors revenue.credentials. All Enc* fields hold
// AES-256-GCM sealed values in iv:ciphertext:tag form; plaintext never
// reaches this table.
type CredentialRow struct {
	TenantID        string    `bigquery:"tenant_id"`
	EncPrivateKey   string    `bigquery:"enc_private_key"`
	EncKeyID        string    `bigquery:"enc_key_id"`
	EncIssuerID     string    `bigquery:"enc_issuer_id"`
	EncVendorNumber string    `bigquery:"enc_vendor_number"`
	EncSKU          string    `bigquery:"enc_sku"`
	CreatedTS       time.Time `bigquery:"created_ts"`
}

// RawReportRow mirrors revenue.raw_reports. One row per
// (tenant, report type, region, report month); the tuple is the
// idempotence key and rows are immutable once inserted. The decompressed
// report text lives in GCS, referenced by RawGCSURI; when no bucket is
// configured it is stored inline in RawText instead.
type RawReportRow struct {
	ReportID     string    `bigquery:"report_id"`
	TenantID     string    `bigquery:"tenant_id"`
	ReportType   string    `bigquery:"report_type"`
	RegionCode   string    `bigquery:"region_code"`
	ReportDate   string    `bigquery:"report_date"` // YYYY-MM
	RawGCSURI    string    `bigquery:"raw_gcs_uri"`
	RawText      string    `bigquery:"raw_text"`
	ParsedJSON   string    `bigquery:"parsed_json"`
	FilteredJSON string    `bigquery:"filtered_json"`
	CreatedTS    time.Time `bigquery:"created_ts"`
}

// MonthlyAggregateRow mirrors revenue.monthly_aggregates, upserted on
// (tenant_id, month) with replace semantics.
type MonthlyAggregateRow struct {
	TenantID         string    `bigquery:"tenant_id"`
	Month            string    `bigquery:"month"` // YYYY-MM
	AmountUSD        float64   `bigquery:"amount_usd"`
	TransactionCount int64     `bigquery:"transaction_count"`
	TransactionsJSON string    `bigquery:"transactions_json"`
	UpdatedTS        time.Time `bigquery:"updated_ts"`
}
