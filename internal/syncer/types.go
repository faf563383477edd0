package syncer

import "fmt"

// FetchError is one failed (report type, region, month) fetch, captured
// without aborting the other in-flight fetches for the tenant.
type FetchError struct {
	ReportType string `json:"reportType"`
	RegionCode string `json:"regionCode"`
	ReportDate string `json:"reportDate"`
	Error      string `json:"error"`
}

func (e FetchError) String() string {
	return fmt.Sprintf("%s/%s/%s: %s", e.ReportType, e.RegionCode, e.ReportDate, e.Error)
}

// TenantResult is the outcome of one tenant's sync run.
type TenantResult struct {
	TenantID     string
	Skipped      bool // tenant has no configured credentials
	NewReports   int
	NewChartData int
	FetchErrors  []FetchError
	Err          error // fatal for this tenant; never aborts the batch
}

// TenantError is a per-tenant failure reason surfaced in the batch
// response envelope.
type TenantError struct {
	TenantID string `json:"tenant_id"`
	Reason   string `json:"reason"`
}

func (e TenantError) String() string {
	return fmt.Sprintf("%s: %s", e.TenantID, e.Reason)
}

// BatchResult summarizes a full batch run across all tenants.
type BatchResult struct {
	Processed         int
	Successful        int
	Failed            int
	Skipped           int
	TotalNewReports   int
	TotalNewChartData int
	Errors            []TenantError
}
