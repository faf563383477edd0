package report

import (
	"strings"

	"github.com/rs/zerolog"
)

// skuHeaderVariants are the known header spellings of the product
// identifier column across report types.
var skuHeaderVariants = []string{"sku", "vendor identifier", "product identifier"}

// MatchStrategy names the strategy that matched a row's SKU. Vendor SKU
// formatting is inconsistent across report types, so matching is
// deliberately permissive; everything except exact is a "loose" match.
type MatchStrategy string

const (
	MatchNone        MatchStrategy = ""
	MatchExact       MatchStrategy = "exact"
	MatchSubstring   MatchStrategy = "substring"
	MatchSuperstring MatchStrategy = "superstring"
	MatchDotPrefix   MatchStrategy = "dot_prefix"
	MatchDotSuffix   MatchStrategy = "dot_suffix"
)

// Loose reports whether the strategy is broader than an exact match.
func (s MatchStrategy) Loose() bool {
	return s != MatchNone && s != MatchExact
}

// MatchSKU reports whether a row's SKU value matches the tenant's
// configured SKU, which may itself be a comma-separated list. Comparison
// is case-insensitive.
func MatchSKU(rowSKU, configured string) MatchStrategy {
	row := strings.ToLower(strings.TrimSpace(rowSKU))
	if row == "" {
		return MatchNone
	}

	for _, part := range strings.Split(configured, ",") {
		cand := strings.ToLower(strings.TrimSpace(part))
		if cand == "" {
			continue
		}
		switch {
		case row == cand:
			return MatchExact
		case strings.HasPrefix(row, cand+".") || strings.HasSuffix(row, "."+cand):
			return MatchDotPrefix
		case strings.HasPrefix(cand, row+".") || strings.HasSuffix(cand, "."+row):
			return MatchDotSuffix
		case strings.Contains(row, cand):
			return MatchSubstring
		case strings.Contains(cand, row):
			return MatchSuperstring
		}
	}

	return MatchNone
}

// FilterBySKU keeps only the rows whose SKU column matches the tenant's
// configured SKU. When no SKU-like column exists the filter is a no-op
// and the input table is returned unchanged. Loose matches are retained
// but logged, since short configured SKUs can over-match.
func FilterBySKU(t *Table, configuredSKU string, log zerolog.Logger) *Table {
	if strings.TrimSpace(configuredSKU) == "" {
		return t
	}
	col := FindColumn(t.Headers, skuHeaderVariants...)
	if col == -1 {
		return t
	}

	filtered := &Table{Headers: t.Headers}
	for _, row := range t.Rows {
		strategy := MatchSKU(Cell(row, col), configuredSKU)
		if strategy == MatchNone {
			continue
		}
		if strategy.Loose() {
			log.Warn().
				Str("row_sku", Cell(row, col)).
				Str("configured_sku", configuredSKU).
				Str("strategy", string(strategy)).
				Msg("Loose SKU match retained row")
		}
		filtered.Rows = append(filtered.Rows, row)
	}

	return filtered
}
