package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// ListTenantIDs returns the IDs of all tenants that have stored
// App Store Connect credentials.
func ListTenantIDs(ctx context.Context) ([]string, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListTenantIDs: bigquery client: %w", err)
	}
	defer client.Close()

	return ListTenantIDsWithClient(ctx, client)
}

// ListTenantIDsWithClient returns tenant IDs using the provided client.
func ListTenantIDsWithClient(ctx context.Context, client *bigquery.Client) ([]string, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT tenant_id
		FROM %s.%s
		ORDER BY created_ts
	`, datasetID, credentialsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTenantIDs: query read: %w", err)
	}

	var ids []string
	for {
		var row struct {
			TenantID string `bigquery:"tenant_id"`
		}
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTenantIDs: iter next: %w", err)
		}
		ids = append(ids, row.TenantID)
	}

	return ids, nil
}

// GetCredentialsWithClient fetches the encrypted credential row for a
// tenant. Returns (nil, nil) when the tenant has no stored credentials;
// callers translate that into a "not configured" outcome.
func GetCredentialsWithClient(ctx context.Context, client *bigquery.Client, tenantID string) (*CredentialRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			tenant_id,
			enc_private_key,
			enc_key_id,
			enc_issuer_id,
			enc_vendor_number,
			enc_sku,
			created_ts
		FROM %s.%s
		WHERE tenant_id = @tenant_id
		LIMIT 1
	`, datasetID, credentialsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetCredentials: query read: %w", err)
	}

	var row CredentialRow
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetCredentials: iter next: %w", err)
	}

	return &row, nil
}

// InsertCredentialsWithClient stores an encrypted credential row,
// replacing any existing row for the tenant.
func InsertCredentialsWithClient(ctx context.Context, client *bigquery.Client, row *CredentialRow) error {
	del := client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE tenant_id = @tenant_id
	`, datasetID, credentialsTable))
	del.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: row.TenantID},
	}

	job, err := del.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertCredentials: delete run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertCredentials: delete wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertCredentials: delete job: %w", err)
	}

	inserter := client.Dataset(datasetID).Table(credentialsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertCredentials: put: %w", err)
	}

	return nil
}
