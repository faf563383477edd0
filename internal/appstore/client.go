package appstore

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the finance reports endpoint of the App Store
// Connect API.
const DefaultBaseURL = "https://api.appstoreconnect.apple.com/v1/financeReports"

// ReportRequest identifies one (report type, region, month) report.
type ReportRequest struct {
	VendorNumber string
	ReportType   string
	RegionCode   string
	ReportDate   string // YYYY-MM
}

// ReportResult is the settled outcome of a single report fetch. Either
// Text holds the decompressed report or Err holds the folded failure
// (HTTP status, API error detail, or transport error).
type ReportResult struct {
	ReportType string
	RegionCode string
	ReportDate string
	Text       string
	Err        error
}

// Client fetches gzip-compressed finance reports with bearer-token auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewClient creates a report client against the production endpoint.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    DefaultBaseURL,
		log:        log,
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint.
// Used by tests to point at a local server.
func NewClientWithBaseURL(log zerolog.Logger, baseURL string) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

// MintToken delegates to the package-level minter so the client can
// stand in as the syncer's report source.
func (c *Client) MintToken(privateKeyPEM, keyID, issuerID string) (string, error) {
	return MintToken(privateKeyPEM, keyID, issuerID)
}

// FetchReport issues one report request and decompresses the response.
func (c *Client) FetchReport(ctx context.Context, token string, req ReportRequest) (string, error) {
	params := url.Values{}
	params.Set("filter[vendorNumber]", req.VendorNumber)
	params.Set("filter[reportType]", req.ReportType)
	params.Set("filter[regionCode]", req.RegionCode)
	params.Set("filter[reportDate]", req.ReportDate)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("FetchReport: building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/a-gzip")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("FetchReport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("FetchReport: HTTP %d: %s", resp.StatusCode, readAPIError(resp.Body))
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("FetchReport: opening gzip: %w", err)
	}
	defer gz.Close()

	text, err := io.ReadAll(gz)
	if err != nil {
		return "", fmt.Errorf("FetchReport: decompressing: %w", err)
	}

	return string(text), nil
}

// FetchAll requests every report concurrently and waits for all of them
// to settle. A slow or failing request never blocks the others; failures
// are carried in the per-result Err, not escalated, and nothing retries.
func (c *Client) FetchAll(ctx context.Context, token string, reqs []ReportRequest) []ReportResult {
	results := make([]ReportResult, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req ReportRequest) {
			defer wg.Done()
			text, err := c.FetchReport(ctx, token, req)
			if err != nil {
				c.log.Warn().
					Str("report_type", req.ReportType).
					Str("region_code", req.RegionCode).
					Str("report_date", req.ReportDate).
					Err(err).
					Msg("Report fetch failed")
			}
			results[i] = ReportResult{
				ReportType: req.ReportType,
				RegionCode: req.RegionCode,
				ReportDate: req.ReportDate,
				Text:       text,
				Err:        err,
			}
		}(i, req)
	}
	wg.Wait()

	return results
}

// readAPIError extracts errors[0].detail from a JSON error body, falling
// back to the raw text.
func readAPIError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "empty response body"
	}

	var parsed struct {
		Errors []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 && parsed.Errors[0].Detail != "" {
		return parsed.Errors[0].Detail
	}

	return string(raw)
}
