// Package report derives read-time views from a record sequence. All
// functions are pure: they never touch the ledger and convert amounts
// only for display.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"sumal/internal/core"
	"sumal/internal/rates"
)

// DefaultHistoryLen is the history window shown when the caller does
// not ask for a specific length.
const DefaultHistoryLen = 5

// MonthTotal is one row of the monthly summary.
type MonthTotal struct {
	Label  string
	Amount decimal.Decimal
}

// DisplayRecord is a record re-expressed in the display currency.
type DisplayRecord struct {
	core.Record
	DisplayCurrency string
	DisplayAmount   decimal.Decimal
}

// TotalsByType sums canonical amounts per type and converts each sum
// once, on the aggregate. Every type appears in the result, zero when
// absent, so callers render a stable set of metrics.
func TotalsByType(records []core.Record, displayCurrency string, table *rates.Table) (map[core.Type]decimal.Decimal, error) {
	sums := map[core.Type]decimal.Decimal{
		core.Income:   decimal.Zero,
		core.Expense:  decimal.Zero,
		core.Transfer: decimal.Zero,
	}
	for _, r := range records {
		sums[r.Type] = sums[r.Type].Add(r.AmountCanonical)
	}

	out := make(map[core.Type]decimal.Decimal, len(sums))
	for typ, sum := range sums {
		converted, err := table.Convert(sum, rates.Canonical, displayCurrency)
		if err != nil {
			return nil, err
		}
		out[typ] = converted
	}
	return out, nil
}

// SavedBalance is Income minus Expense in the display currency.
// Transfers are excluded.
func SavedBalance(records []core.Record, displayCurrency string, table *rates.Table) (decimal.Decimal, error) {
	totals, err := TotalsByType(records, displayCurrency, table)
	if err != nil {
		return decimal.Zero, err
	}
	return totals[core.Income].Sub(totals[core.Expense]), nil
}

// MonthlyTotals groups canonical sums by short month label. Different
// years sharing a label are merged, a known simplification carried
// over from observed behavior. Label order follows first appearance in
// the input; byCalendar orders Jan through Dec instead.
func MonthlyTotals(records []core.Record, displayCurrency string, table *rates.Table, byCalendar bool) ([]MonthTotal, error) {
	sums := make(map[string]decimal.Decimal)
	var order []string
	for _, r := range records {
		label := r.Date.Format("Jan")
		if _, seen := sums[label]; !seen {
			order = append(order, label)
		}
		sums[label] = sums[label].Add(r.AmountCanonical)
	}

	if byCalendar {
		order = order[:0]
		for m := time.January; m <= time.December; m++ {
			label := time.Date(2000, m, 1, 0, 0, 0, 0, time.UTC).Format("Jan")
			if _, ok := sums[label]; ok {
				order = append(order, label)
			}
		}
	}

	out := make([]MonthTotal, 0, len(order))
	for _, label := range order {
		converted, err := table.Convert(sums[label], rates.Canonical, displayCurrency)
		if err != nil {
			return nil, err
		}
		out = append(out, MonthTotal{Label: label, Amount: converted})
	}
	return out, nil
}

// RecentHistory returns up to n records, last appended first. Recency
// follows storage order, not the date field; backdated entries keep
// their append position.
func RecentHistory(records []core.Record, n int, displayCurrency string, table *rates.Table) ([]DisplayRecord, error) {
	if n <= 0 {
		n = DefaultHistoryLen
	}
	if n > len(records) {
		n = len(records)
	}

	out := make([]DisplayRecord, 0, n)
	for i := len(records) - 1; i >= len(records)-n; i-- {
		r := records[i]
		amount, err := table.Convert(r.AmountCanonical, rates.Canonical, displayCurrency)
		if err != nil {
			return nil, err
		}
		out = append(out, DisplayRecord{
			Record:          r,
			DisplayCurrency: displayCurrency,
			DisplayAmount:   amount,
		})
	}
	return out, nil
}

// Breakdown returns each type's share of the canonical total, for the
// chart series. Proportions need no currency conversion. An empty
// ledger yields an empty map.
func Breakdown(records []core.Record) map[core.Type]decimal.Decimal {
	total := decimal.Zero
	sums := make(map[core.Type]decimal.Decimal)
	for _, r := range records {
		sums[r.Type] = sums[r.Type].Add(r.AmountCanonical)
		total = total.Add(r.AmountCanonical)
	}
	if !total.IsPositive() {
		return map[core.Type]decimal.Decimal{}
	}

	out := make(map[core.Type]decimal.Decimal, len(sums))
	for typ, sum := range sums {
		out[typ] = sum.Div(total)
	}
	return out
}
