package currency

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReferenceCurrency is the currency every amount is normalized to.
const ReferenceCurrency = "USD"

const (
	cacheCapacity = 1024
	cacheTTL      = 12 * time.Hour
)

// Converter normalizes amounts to USD using an ordered list of rate
// providers with a bounded TTL cache keyed by (currency, date).
// Successful lookups are shared across all tenants within a process.
type Converter struct {
	providers []RateProvider
	cache     *expirable.LRU[string, float64]
	timeout   time.Duration
	log       zerolog.Logger
}

// NewConverter creates a converter trying providers in the given order.
func NewConverter(log zerolog.Logger, providers ...RateProvider) *Converter {
	return &Converter{
		providers: providers,
		cache:     expirable.NewLRU[string, float64](cacheCapacity, nil, cacheTTL),
		timeout:   defaultProviderTimeout,
		log:       log,
	}
}

// RateToUSD returns the USD rate for one unit of the currency on the
// given date. USD is the identity. When every provider fails, the rate
// degrades to 1:1 rather than failing the row; that branch is explicit
// and logged, not a silent default.
func (c *Converter) RateToUSD(ctx context.Context, currencyCode, date string) float64 {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if code == "" || code == ReferenceCurrency {
		return 1
	}

	cacheKey := code + "|" + date
	if rate, ok := c.cache.Get(cacheKey); ok {
		return rate
	}

	for _, p := range c.providers {
		lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
		rate, err := p.RateToUSD(lookupCtx, code, date)
		cancel()
		if err != nil {
			c.log.Debug().
				Str("provider", p.Name()).
				Str("currency", code).
				Str("date", date).
				Err(err).
				Msg("Rate lookup failed, trying next provider")
			continue
		}
		c.cache.Add(cacheKey, rate)
		return rate
	}

	c.log.Warn().
		Str("currency", code).
		Str("date", date).
		Msg("All rate providers failed, falling back to 1:1")
	return 1
}

// Convert normalizes an amount to USD for the currency/date pair.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, currencyCode, date string) decimal.Decimal {
	rate := c.RateToUSD(ctx, currencyCode, date)
	if rate == 1 {
		return amount
	}
	return amount.Mul(decimal.NewFromFloat(rate))
}

// ParseAmount parses a report amount string, tolerating thousands
// separators and surrounding whitespace.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if cleaned == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(cleaned)
}
