package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// LatestAggregateMonthWithClient returns the most recent aggregated
// month (YYYY-MM) for a tenant, or "" when the tenant has no aggregates
// yet. The sync requests only months strictly after this one.
func LatestAggregateMonthWithClient(ctx context.Context, client *bigquery.Client, tenantID string) (string, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT month
		FROM %s.%s
		WHERE tenant_id = @tenant_id
		ORDER BY month DESC
		LIMIT 1
	`, datasetID, aggregatesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("LatestAggregateMonth: query read: %w", err)
	}

	var row struct {
		Month string `bigquery:"month"`
	}
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("LatestAggregateMonth: iter next: %w", err)
	}

	return row.Month, nil
}

// UpsertMonthlyAggregateWithClient writes a monthly aggregate row with
// replace semantics on (tenant_id, month). Re-running a month overwrites
// the previous aggregate, it never accumulates.
func UpsertMonthlyAggregateWithClient(ctx context.Context, client *bigquery.Client, row *MonthlyAggregateRow) error {
	if row.UpdatedTS.IsZero() {
		row.UpdatedTS = time.Now()
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s.%s T
		USING (SELECT @tenant_id AS tenant_id, @month AS month) S
		ON T.tenant_id = S.tenant_id AND T.month = S.month
		WHEN MATCHED THEN UPDATE SET
			amount_usd = @amount_usd,
			transaction_count = @transaction_count,
			transactions_json = @transactions_json,
			updated_ts = @updated_ts
		WHEN NOT MATCHED THEN INSERT (
			tenant_id, month, amount_usd, transaction_count, transactions_json, updated_ts
		) VALUES (
			@tenant_id, @month, @amount_usd, @transaction_count, @transactions_json, @updated_ts
		)
	`, datasetID, aggregatesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: row.TenantID},
		{Name: "month", Value: row.Month},
		{Name: "amount_usd", Value: row.AmountUSD},
		{Name: "transaction_count", Value: row.TransactionCount},
		{Name: "transactions_json", Value: row.TransactionsJSON},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpsertMonthlyAggregate: running merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpsertMonthlyAggregate: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("UpsertMonthlyAggregate: job error: %w", err)
	}

	return nil
}
