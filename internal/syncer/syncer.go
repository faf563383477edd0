package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/copanyhq/revenue-sync/internal/aggregate"
	"github.com/copanyhq/revenue-sync/internal/appstore"
	"github.com/copanyhq/revenue-sync/internal/credentials"
	infra "github.com/copanyhq/revenue-sync/internal/infra/bigquery"
	"github.com/copanyhq/revenue-sync/internal/report"
	"github.com/rs/zerolog"

	"github.com/copanyhq/revenue-sync/internal/currency"
)

// Config holds the batch-wide sync settings.
type Config struct {
	// EncryptionKey is the process-wide 256-bit credential key.
	EncryptionKey []byte

	// ReportTypes to request per tenant. Defaults to FINANCIAL.
	ReportTypes []string

	// RegionCodes to request per tenant. Defaults to ZZ (all regions).
	RegionCodes []string

	// TrailingMonths requested when a tenant has no aggregates yet.
	// Defaults to 12.
	TrailingMonths int
}

func (c Config) withDefaults() Config {
	if len(c.ReportTypes) == 0 {
		c.ReportTypes = []string{"FINANCIAL"}
	}
	if len(c.RegionCodes) == 0 {
		c.RegionCodes = []string{"ZZ"}
	}
	if c.TrailingMonths == 0 {
		c.TrailingMonths = 12
	}
	return c
}

// Service runs the per-tenant report sync pipeline: decrypt credentials,
// mint a token, fan out report fetches, parse and filter, normalize to
// USD, aggregate by month, persist.
type Service struct {
	repo      Repository
	source    ReportSource
	converter *currency.Converter
	blobs     BlobStore         // optional
	exporter  AggregateExporter // optional
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires the pipeline. blobs and exporter may be nil.
func NewService(repo Repository, source ReportSource, converter *currency.Converter, blobs BlobStore, exporter AggregateExporter, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		source:    source,
		converter: converter,
		blobs:     blobs,
		exporter:  exporter,
		cfg:       cfg.withDefaults(),
		log:       log,
		now:       time.Now,
	}
}

// RunBatch syncs every tenant that has stored credentials, sequentially.
// Per-tenant failures are captured in the result and never abort the
// batch; the returned error is reserved for systemic setup failure
// (inability to list tenants).
func (s *Service) RunBatch(ctx context.Context) (*BatchResult, error) {
	tenants, err := s.repo.ListTenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("RunBatch: listing tenants: %w", err)
	}

	res := &BatchResult{}
	for _, tenantID := range tenants {
		tr := s.SyncTenant(ctx, tenantID)

		if tr.Skipped {
			res.Skipped++
			continue
		}
		res.Processed++

		if tr.Err != nil {
			res.Failed++
			res.Errors = append(res.Errors, TenantError{TenantID: tenantID, Reason: tr.Err.Error()})
			continue
		}

		res.Successful++
		res.TotalNewReports += tr.NewReports
		res.TotalNewChartData += tr.NewChartData
		for _, fe := range tr.FetchErrors {
			res.Errors = append(res.Errors, TenantError{TenantID: tenantID, Reason: fe.String()})
		}
	}

	s.log.Info().
		Int("processed", res.Processed).
		Int("successful", res.Successful).
		Int("failed", res.Failed).
		Int("new_reports", res.TotalNewReports).
		Int("new_chart_data", res.TotalNewChartData).
		Msg("Batch sync finished")

	return res, nil
}

// SyncTenant runs the full pipeline for one tenant. All failures are
// folded into the result; the method never panics outward.
func (s *Service) SyncTenant(ctx context.Context, tenantID string) (tr *TenantResult) {
	tr = &TenantResult{TenantID: tenantID}
	defer func() {
		if r := recover(); r != nil {
			tr.Err = fmt.Errorf("SyncTenant: panic: %v", r)
		}
	}()

	log := s.log.With().Str("tenant_id", tenantID).Logger()

	row, err := s.repo.GetCredentials(ctx, tenantID)
	if err != nil {
		tr.Err = fmt.Errorf("SyncTenant: loading credentials: %w", err)
		return tr
	}

	bundle, err := credentials.DecryptBundle(s.cfg.EncryptionKey, row)
	if errors.Is(err, credentials.ErrNotConfigured) {
		log.Info().Msg("Tenant has no App Store credentials, skipping")
		tr.Skipped = true
		return tr
	}
	if err != nil {
		tr.Err = fmt.Errorf("SyncTenant: decrypting credentials: %w", err)
		return tr
	}

	// Minted fresh each run; the 20-minute window makes caching useless.
	token, err := s.source.MintToken(bundle.PrivateKey, bundle.KeyID, bundle.IssuerID)
	if err != nil {
		tr.Err = fmt.Errorf("SyncTenant: minting token: %w", err)
		return tr
	}

	latest, err := s.repo.LatestAggregateMonth(ctx, tenantID)
	if err != nil {
		tr.Err = fmt.Errorf("SyncTenant: finding latest month: %w", err)
		return tr
	}

	months := monthWindow(latest, s.now(), s.cfg.TrailingMonths)
	if len(months) == 0 {
		log.Info().Str("latest_month", latest).Msg("No new months to sync")
		return tr
	}

	var reqs []appstore.ReportRequest
	for _, month := range months {
		for _, reportType := range s.cfg.ReportTypes {
			for _, region := range s.cfg.RegionCodes {
				reqs = append(reqs, appstore.ReportRequest{
					VendorNumber: bundle.VendorNumber,
					ReportType:   reportType,
					RegionCode:   region,
					ReportDate:   month,
				})
			}
		}
	}

	log.Info().
		Str("latest_month", latest).
		Int("requests", len(reqs)).
		Msg("Fetching reports")

	results := s.source.FetchAll(ctx, token, reqs)

	var txs []aggregate.Transaction
	for _, r := range results {
		if r.Err != nil {
			tr.FetchErrors = append(tr.FetchErrors, FetchError{
				ReportType: r.ReportType,
				RegionCode: r.RegionCode,
				ReportDate: r.ReportDate,
				Error:      r.Err.Error(),
			})
			continue
		}

		parsed := report.Parse(r.Text)
		filtered := report.FilterBySKU(parsed, bundle.SKU, log)
		if len(filtered.Rows) == 0 {
			continue
		}

		txs = append(txs, s.transactionsFromTable(ctx, filtered, r.ReportDate)...)

		if n := s.persistRawReport(ctx, log, tenantID, r, parsed, filtered); n {
			tr.NewReports++
		}
	}

	for _, m := range aggregate.GroupByMonth(txs) {
		detail, err := json.Marshal(m.Transactions)
		if err != nil {
			log.Error().Err(err).Str("month", m.Month).Msg("Failed to marshal transaction detail")
			continue
		}

		aggRow := &infra.MonthlyAggregateRow{
			TenantID:         tenantID,
			Month:            m.Month,
			AmountUSD:        m.AmountUSD.InexactFloat64(),
			TransactionCount: int64(m.Count),
			TransactionsJSON: string(detail),
		}
		if err := s.repo.UpsertMonthlyAggregate(ctx, aggRow); err != nil {
			log.Error().Err(err).Str("month", m.Month).Msg("Failed to upsert monthly aggregate")
			continue
		}
		tr.NewChartData++
	}

	if s.exporter != nil && tr.NewChartData > 0 {
		if err := s.exporter.ExportMonthly(ctx, tenantID, aggregate.GroupByMonth(txs)); err != nil {
			log.Warn().Err(err).Msg("Aggregate export failed")
		}
	}

	log.Info().
		Int("new_reports", tr.NewReports).
		Int("new_chart_data", tr.NewChartData).
		Int("fetch_errors", len(tr.FetchErrors)).
		Msg("Tenant sync finished")

	return tr
}

// persistRawReport inserts the raw report row unless one already exists
// for the (tenant, type, region, month) key. Returns whether a new row
// was written. Persistence failures degrade the run, they don't fail it.
func (s *Service) persistRawReport(ctx context.Context, log zerolog.Logger, tenantID string, r appstore.ReportResult, parsed, filtered *report.Table) bool {
	exists, err := s.repo.RawReportExists(ctx, tenantID, r.ReportType, r.RegionCode, r.ReportDate)
	if err != nil {
		log.Error().Err(err).
			Str("report_type", r.ReportType).
			Str("region_code", r.RegionCode).
			Str("report_date", r.ReportDate).
			Msg("Failed to check raw report existence")
		return false
	}
	if exists {
		return false
	}

	parsedJSON, err := json.Marshal(parsed)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal parsed report")
		return false
	}
	filteredJSON, err := json.Marshal(filtered)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal filtered report")
		return false
	}

	row := &infra.RawReportRow{
		TenantID:     tenantID,
		ReportType:   r.ReportType,
		RegionCode:   r.RegionCode,
		ReportDate:   r.ReportDate,
		ParsedJSON:   string(parsedJSON),
		FilteredJSON: string(filteredJSON),
	}

	if s.blobs != nil && s.blobs.Enabled() {
		uri, err := s.blobs.SaveReportText(ctx, tenantID, r.ReportType, r.RegionCode, r.ReportDate, r.Text)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to store raw report text, keeping it inline")
			row.RawText = r.Text
		} else {
			row.RawGCSURI = uri
		}
	} else {
		row.RawText = r.Text
	}

	if err := s.repo.InsertRawReport(ctx, row); err != nil {
		log.Error().Err(err).
			Str("report_type", r.ReportType).
			Str("region_code", r.RegionCode).
			Str("report_date", r.ReportDate).
			Msg("Failed to insert raw report")
		return false
	}

	return true
}
