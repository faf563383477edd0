package currency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// countingProvider wraps a fixed rate and counts lookups.
type countingProvider struct {
	rate  float64
	err   error
	calls atomic.Int64
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) RateToUSD(ctx context.Context, currencyCode, date string) (float64, error) {
	p.calls.Add(1)
	if p.err != nil {
		return 0, p.err
	}
	return p.rate, nil
}

func TestRateToUSD_Identity(t *testing.T) {
	c := NewConverter(zerolog.Nop())

	for _, code := range []string{"USD", "usd", " USD ", ""} {
		if rate := c.RateToUSD(context.Background(), code, "2026-01-15"); rate != 1 {
			t.Errorf("RateToUSD(%q) = %v, want 1", code, rate)
		}
	}
}

func TestRateToUSD_ProviderOrder(t *testing.T) {
	primary := &countingProvider{err: errors.New("down")}
	secondary := &countingProvider{rate: 1.1}

	c := NewConverter(zerolog.Nop(), primary, secondary)

	rate := c.RateToUSD(context.Background(), "EUR", "2026-01-15")
	if rate != 1.1 {
		t.Errorf("Expected secondary provider rate 1.1, got %v", rate)
	}
	if primary.calls.Load() != 1 {
		t.Errorf("Expected primary to be tried first, calls = %d", primary.calls.Load())
	}
}

func TestRateToUSD_AllProvidersFail(t *testing.T) {
	down := &countingProvider{err: errors.New("down")}

	c := NewConverter(zerolog.Nop(), down, down)

	if rate := c.RateToUSD(context.Background(), "EUR", "2026-01-15"); rate != 1 {
		t.Errorf("Expected 1:1 fallback, got %v", rate)
	}
}

func TestRateToUSD_CachesByCurrencyAndDate(t *testing.T) {
	p := &countingProvider{rate: 0.25}
	c := NewConverter(zerolog.Nop(), p)
	ctx := context.Background()

	c.RateToUSD(ctx, "PLN", "2026-01-15")
	c.RateToUSD(ctx, "PLN", "2026-01-15")
	if p.calls.Load() != 1 {
		t.Errorf("Expected 1 provider call for repeated lookup, got %d", p.calls.Load())
	}

	c.RateToUSD(ctx, "PLN", "2026-01-16")
	c.RateToUSD(ctx, "EUR", "2026-01-15")
	if p.calls.Load() != 3 {
		t.Errorf("Expected distinct (currency, date) keys to miss, calls = %d", p.calls.Load())
	}
}

func TestRateToUSD_FailureNotCached(t *testing.T) {
	p := &countingProvider{err: errors.New("down")}
	c := NewConverter(zerolog.Nop(), p)
	ctx := context.Background()

	c.RateToUSD(ctx, "EUR", "2026-01-15")
	c.RateToUSD(ctx, "EUR", "2026-01-15")

	if p.calls.Load() != 2 {
		t.Errorf("Expected fallback rate to be re-looked-up, calls = %d", p.calls.Load())
	}
}

func TestFrankfurterProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2026-01-15" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("from"); got != "USD" {
			t.Errorf("Expected from=USD, got %s", got)
		}
		if got := r.URL.Query().Get("to"); got != "EUR" {
			t.Errorf("Expected to=EUR, got %s", got)
		}
		fmt.Fprint(w, `{"base":"USD","date":"2026-01-15","rates":{"EUR":0.8}}`)
	}))
	defer server.Close()

	p := NewFrankfurterProviderWithBaseURL(server.URL)

	rate, err := p.RateToUSD(context.Background(), "EUR", "2026-01-15")
	if err != nil {
		t.Fatalf("RateToUSD failed: %v", err)
	}
	// Frankfurter reports EUR per USD; the provider inverts it.
	if rate != 1.25 {
		t.Errorf("Expected inverted rate 1.25, got %v", rate)
	}
}

func TestFrankfurterProvider_MissingRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates":{}}`)
	}))
	defer server.Close()

	p := NewFrankfurterProviderWithBaseURL(server.URL)

	if _, err := p.RateToUSD(context.Background(), "EUR", "2026-01-15"); err == nil {
		t.Error("Expected error for missing rate")
	}
}

func TestExchangerateHostProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2026-01-15" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("base"); got != "EUR" {
			t.Errorf("Expected base=EUR, got %s", got)
		}
		fmt.Fprint(w, `{"rates":{"USD":1.25}}`)
	}))
	defer server.Close()

	p := NewExchangerateHostProviderWithBaseURL(server.URL)

	rate, err := p.RateToUSD(context.Background(), "EUR", "2026-01-15")
	if err != nil {
		t.Fatalf("RateToUSD failed: %v", err)
	}
	if rate != 1.25 {
		t.Errorf("Expected direct rate 1.25, got %v", rate)
	}
}

func TestProvider_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	providers := []RateProvider{
		NewFrankfurterProviderWithBaseURL(server.URL),
		NewExchangerateHostProviderWithBaseURL(server.URL),
	}
	for _, p := range providers {
		if _, err := p.RateToUSD(context.Background(), "EUR", "2026-01-15"); err == nil {
			t.Errorf("%s: expected error for HTTP 429", p.Name())
		}
	}
}

func TestConvert(t *testing.T) {
	p := &countingProvider{rate: 1.25}
	c := NewConverter(zerolog.Nop(), p)

	got := c.Convert(context.Background(), decimal.NewFromFloat(4), "EUR", "2026-01-15")
	if !got.Equal(decimal.NewFromFloat(5)) {
		t.Errorf("Convert(4 EUR) = %s, want 5", got)
	}

	// USD passes through untouched.
	usd := decimal.NewFromFloat(3.14)
	if got := c.Convert(context.Background(), usd, "USD", "2026-01-15"); !got.Equal(usd) {
		t.Errorf("Convert(USD) = %s, want %s", got, usd)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1.40", "1.4", false},
		{"1,234.56", "1234.56", false},
		{"-2.50", "-2.5", false},
		{" 3.00 ", "3", false},
		{"", "0", false},
		{"abc", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) failed: %v", tt.input, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}
