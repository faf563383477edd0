package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// RawReportExistsWithClient reports whether a raw report row already
// exists for the (tenant, type, region, month) key. A retried batch must
// not duplicate raw rows.
func RawReportExistsWithClient(ctx context.Context, client *bigquery.Client, tenantID, reportType, regionCode, reportDate string) (bool, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s.%s
		WHERE tenant_id = @tenant_id
		  AND report_type = @report_type
		  AND region_code = @region_code
		  AND report_date = @report_date
	`, datasetID, rawReportsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
		{Name: "report_type", Value: reportType},
		{Name: "region_code", Value: regionCode},
		{Name: "report_date", Value: reportDate},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("RawReportExists: query read: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("RawReportExists: iter next: %w", err)
	}

	return row.N > 0, nil
}

// InsertRawReportWithClient inserts a single raw report row. Rows are
// immutable once created.
func InsertRawReportWithClient(ctx context.Context, client *bigquery.Client, row *RawReportRow) error {
	if row.ReportID == "" {
		row.ReportID = uuid.NewString()
	}
	if row.CreatedTS.IsZero() {
		row.CreatedTS = time.Now()
	}

	inserter := client.Dataset(datasetID).Table(rawReportsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertRawReport: inserting row: %w", err)
	}

	return nil
}
