package syncer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/copanyhq/revenue-sync/internal/aggregate"
	"github.com/copanyhq/revenue-sync/internal/currency"
	"github.com/copanyhq/revenue-sync/internal/report"
	"github.com/shopspring/decimal"
)

// reportColumns are the resolved column indices of one report table.
// Any index may be -1; header naming varies across report types.
type reportColumns struct {
	date     int
	amount   int
	currency int
	quantity int
	category int

	// amountExtended marks an amount column that is already multiplied
	// by quantity, like "Extended Partner Share".
	amountExtended bool
}

func resolveColumns(headers []string) reportColumns {
	cols := reportColumns{
		date:     report.FindColumn(headers, "transaction date", "begin date", "start date"),
		currency: report.FindColumn(headers, "partner share currency", "currency of proceeds", "customer currency"),
		quantity: report.FindColumn(headers, "quantity", "units"),
		category: report.FindColumn(headers, "product type identifier", "sales or return"),
	}

	// "Partner Share Currency" also contains "partner share", so the
	// currency column must be excluded when locating the amount.
	for _, v := range []string{"extended partner share", "partner share", "developer proceeds", "customer price"} {
		for i, h := range headers {
			if i == cols.currency {
				continue
			}
			if strings.Contains(strings.ToLower(h), v) {
				cols.amount = i
				cols.amountExtended = v == "extended partner share"
				return cols
			}
		}
	}
	cols.amount = -1
	return cols
}

// txDateLayouts are the transaction-date formats seen in vendor reports.
var txDateLayouts = []string{"01/02/2006", "2006-01-02", "01/02/06"}

// transactionsFromTable converts a filtered report table into normalized
// transactions, converting each amount to USD at the row's own date.
func (s *Service) transactionsFromTable(ctx context.Context, t *report.Table, reportMonth string) []aggregate.Transaction {
	cols := resolveColumns(t.Headers)
	if cols.amount == -1 {
		s.log.Debug().Str("report_month", reportMonth).Msg("No amount column found, skipping table")
		return nil
	}

	var txs []aggregate.Transaction
	for _, row := range t.Rows {
		amount, err := currency.ParseAmount(report.Cell(row, cols.amount))
		if err != nil {
			s.log.Debug().Str("value", report.Cell(row, cols.amount)).Msg("Unparseable amount, skipping row")
			continue
		}

		// Extended columns already carry quantity times the unit share;
		// multiplying those again would inflate the monthly sums.
		if !cols.amountExtended {
			if qty := strings.TrimSpace(report.Cell(row, cols.quantity)); qty != "" {
				if n, err := strconv.ParseInt(qty, 10, 64); err == nil && n != 0 {
					amount = amount.Mul(decimal.NewFromInt(n))
				}
			}
		}

		code := strings.TrimSpace(report.Cell(row, cols.currency))
		if code == "" {
			code = currency.ReferenceCurrency
		}

		dateStr := strings.TrimSpace(report.Cell(row, cols.date))
		rateDate := isoDate(dateStr, reportMonth)

		txs = append(txs, aggregate.Transaction{
			Month:     aggregate.MonthOf(dateStr, reportMonth),
			Date:      dateStr,
			Amount:    amount,
			Currency:  strings.ToUpper(code),
			AmountUSD: s.converter.Convert(ctx, amount, code, rateDate),
			Category:  strings.TrimSpace(report.Cell(row, cols.category)),
		})
	}

	return txs
}

// isoDate renders the row's date as YYYY-MM-DD for rate lookups,
// defaulting to the first day of the report's nominal month.
func isoDate(dateStr, reportMonth string) string {
	for _, layout := range txDateLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return reportMonth + "-01"
}
