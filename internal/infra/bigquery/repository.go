package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// SyncRepository is the concrete BigQuery-backed store used by the sync
// pipeline. It holds a shared client to avoid creating a new connection
// for each operation.
type SyncRepository struct {
	client *bigquery.Client
}

// NewSyncRepository creates a repository with a shared BigQuery client.
func NewSyncRepository(ctx context.Context) (*SyncRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewSyncRepository: creating client: %w", err)
	}
	return &SyncRepository{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *SyncRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListTenantIDs delegates to ListTenantIDsWithClient with the shared client.
func (r *SyncRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	return ListTenantIDsWithClient(ctx, r.client)
}

// GetCredentials delegates to GetCredentialsWithClient with the shared client.
func (r *SyncRepository) GetCredentials(ctx context.Context, tenantID string) (*CredentialRow, error) {
	return GetCredentialsWithClient(ctx, r.client, tenantID)
}

// InsertCredentials delegates to InsertCredentialsWithClient with the shared client.
func (r *SyncRepository) InsertCredentials(ctx context.Context, row *CredentialRow) error {
	return InsertCredentialsWithClient(ctx, r.client, row)
}

// LatestAggregateMonth delegates to LatestAggregateMonthWithClient with the shared client.
func (r *SyncRepository) LatestAggregateMonth(ctx context.Context, tenantID string) (string, error) {
	return LatestAggregateMonthWithClient(ctx, r.client, tenantID)
}

// RawReportExists delegates to RawReportExistsWithClient with the shared client.
func (r *SyncRepository) RawReportExists(ctx context.Context, tenantID, reportType, regionCode, reportDate string) (bool, error) {
	return RawReportExistsWithClient(ctx, r.client, tenantID, reportType, regionCode, reportDate)
}

// InsertRawReport delegates to InsertRawReportWithClient with the shared client.
func (r *SyncRepository) InsertRawReport(ctx context.Context, row *RawReportRow) error {
	return InsertRawReportWithClient(ctx, r.client, row)
}

// UpsertMonthlyAggregate delegates to UpsertMonthlyAggregateWithClient with the shared client.
func (r *SyncRepository) UpsertMonthlyAggregate(ctx context.Context, row *MonthlyAggregateRow) error {
	return UpsertMonthlyAggregateWithClient(ctx, r.client, row)
}
