package syncer

import (
	"context"

	"github.com/copanyhq/revenue-sync/internal/aggregate"
	"github.com/copanyhq/revenue-sync/internal/appstore"
	infra "github.com/copanyhq/revenue-sync/internal/infra/bigquery"
)

// Repository is the persistence surface the sync pipeline needs.
// Implemented by infra/bigquery.SyncRepository; tests use fakes.
type Repository interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
	GetCredentials(ctx context.Context, tenantID string) (*infra.CredentialRow, error)
	LatestAggregateMonth(ctx context.Context, tenantID string) (string, error)
	RawReportExists(ctx context.Context, tenantID, reportType, regionCode, reportDate string) (bool, error)
	InsertRawReport(ctx context.Context, row *infra.RawReportRow) error
	UpsertMonthlyAggregate(ctx context.Context, row *infra.MonthlyAggregateRow) error
}

// ReportSource mints API tokens and fetches reports. Implemented by
// appstore.Client.
type ReportSource interface {
	MintToken(privateKeyPEM, keyID, issuerID string) (string, error)
	FetchAll(ctx context.Context, token string, reqs []appstore.ReportRequest) []appstore.ReportResult
}

// BlobStore persists raw report text outside the warehouse.
// Implemented by gcsstore.Store.
type BlobStore interface {
	Enabled() bool
	SaveReportText(ctx context.Context, tenantID, reportType, regionCode, reportDate, text string) (string, error)
}

// AggregateExporter mirrors freshly written monthly aggregates to an
// external surface. Export failures never fail a tenant's run.
type AggregateExporter interface {
	ExportMonthly(ctx context.Context, tenantID string, months []aggregate.Monthly) error
}
