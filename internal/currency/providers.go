package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RateProvider looks up the historical USD rate for one currency on one
// day. Providers are capability-equivalent and tried in order.
type RateProvider interface {
	// Name identifies the provider in logs.
	Name() string
	// RateToUSD returns how many USD one unit of the currency was worth
	// on the given date (YYYY-MM-DD, or "" for the latest rate).
	RateToUSD(ctx context.Context, currencyCode, date string) (float64, error)
}

const defaultProviderTimeout = 5 * time.Second

// frankfurterProvider queries the Frankfurter API. Its responses are a
// USD-based rate table (units of target currency per USD), so the rate
// is inverted to get USD per unit.
type frankfurterProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewFrankfurterProvider returns the primary rate provider.
func NewFrankfurterProvider() RateProvider {
	return &frankfurterProvider{
		httpClient: &http.Client{},
		baseURL:    "https://api.frankfurter.app",
	}
}

// NewFrankfurterProviderWithBaseURL points the provider at a custom
// endpoint, used by tests.
func NewFrankfurterProviderWithBaseURL(baseURL string) RateProvider {
	return &frankfurterProvider{httpClient: &http.Client{}, baseURL: baseURL}
}

func (p *frankfurterProvider) Name() string { return "frankfurter" }

func (p *frankfurterProvider) RateToUSD(ctx context.Context, currencyCode, date string) (float64, error) {
	if date == "" {
		date = "latest"
	}
	url := fmt.Sprintf("%s/%s?from=USD&to=%s", p.baseURL, date, currencyCode)

	var parsed struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := getJSON(ctx, p.httpClient, url, &parsed); err != nil {
		return 0, fmt.Errorf("frankfurter: %w", err)
	}

	perUSD, ok := parsed.Rates[currencyCode]
	if !ok || perUSD == 0 {
		return 0, fmt.Errorf("frankfurter: no rate for %s on %s", currencyCode, date)
	}

	return 1 / perUSD, nil
}

// exchangerateHostProvider queries exchangerate.host, which returns the
// target-to-USD rate directly.
type exchangerateHostProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewExchangerateHostProvider returns the alternate rate provider.
func NewExchangerateHostProvider() RateProvider {
	return &exchangerateHostProvider{
		httpClient: &http.Client{},
		baseURL:    "https://api.exchangerate.host",
	}
}

// NewExchangerateHostProviderWithBaseURL points the provider at a custom
// endpoint, used by tests.
func NewExchangerateHostProviderWithBaseURL(baseURL string) RateProvider {
	return &exchangerateHostProvider{httpClient: &http.Client{}, baseURL: baseURL}
}

func (p *exchangerateHostProvider) Name() string { return "exchangerate.host" }

func (p *exchangerateHostProvider) RateToUSD(ctx context.Context, currencyCode, date string) (float64, error) {
	if date == "" {
		date = "latest"
	}
	url := fmt.Sprintf("%s/%s?base=%s&symbols=USD", p.baseURL, date, currencyCode)

	var parsed struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := getJSON(ctx, p.httpClient, url, &parsed); err != nil {
		return 0, fmt.Errorf("exchangerate.host: %w", err)
	}

	rate, ok := parsed.Rates["USD"]
	if !ok || rate == 0 {
		return 0, fmt.Errorf("exchangerate.host: no USD rate for %s on %s", currencyCode, date)
	}

	return rate, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
