package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one normalized report row. Month is derived from the
// row's own transaction date when parseable, falling back to the
// report's nominal month; reporting lag routinely places a transaction
// dated in month M inside a report covering M+1.
type Transaction struct {
	Month     string          `json:"month"` // YYYY-MM
	Date      string          `json:"date"`  // display date as found in the report
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Category  string          `json:"category,omitempty"`
}

// Monthly is one calendar month's rollup with its constituent rows.
type Monthly struct {
	Month        string          `json:"month"`
	AmountUSD    decimal.Decimal `json:"amount_usd"`
	Count        int             `json:"transaction_count"`
	Transactions []Transaction   `json:"transactions"`
}

// dateLayouts are the transaction-date formats seen across report types.
var dateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"01/02/06",
	"2006-01",
}

// MonthOf derives the YYYY-MM month from a row's transaction date,
// falling back to the report's nominal month when the date is absent or
// unparseable.
func MonthOf(dateStr, fallbackMonth string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t.Format("2006-01")
		}
	}
	return fallbackMonth
}

// GroupByMonth groups transactions by their month, summing USD amounts
// and counting rows. Summing a fixed input is idempotent per run; the
// persistence layer's upsert keeps re-runs from accumulating. Results
// are sorted by month ascending.
func GroupByMonth(txs []Transaction) []Monthly {
	byMonth := make(map[string]*Monthly)
	for _, tx := range txs {
		m, ok := byMonth[tx.Month]
		if !ok {
			m = &Monthly{Month: tx.Month}
			byMonth[tx.Month] = m
		}
		m.AmountUSD = m.AmountUSD.Add(tx.AmountUSD)
		m.Count++
		m.Transactions = append(m.Transactions, tx)
	}

	months := make([]Monthly, 0, len(byMonth))
	for _, m := range byMonth {
		months = append(months, *m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })

	return months
}
