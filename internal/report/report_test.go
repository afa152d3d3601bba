package report

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sumal/internal/core"
	"sumal/internal/rates"
)

func record(date time.Time, typ core.Type, canonical int64) core.Record {
	return core.Record{
		Date:            date,
		UserID:          "alice",
		Type:            typ,
		Category:        "Other",
		AmountCanonical: decimal.NewFromInt(canonical),
		InputCurrency:   "MMK",
		InputAmount:     decimal.NewFromInt(canonical),
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Scenario from the ledger contract: USD records at rate 3500 come
// back out as their input amounts when displayed in USD.
func TestTotalsByTypeScenario(t *testing.T) {
	table := rates.DefaultTable()
	records := []core.Record{
		record(day(2025, time.January, 1), core.Income, 350000),
		record(day(2025, time.January, 2), core.Expense, 70000),
	}

	totals, err := TotalsByType(records, "USD", table)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if !totals[core.Income].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected Income=100, got %s", totals[core.Income])
	}
	if !totals[core.Expense].Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected Expense=20, got %s", totals[core.Expense])
	}
	if !totals[core.Transfer].IsZero() {
		t.Fatalf("expected Transfer=0, got %s", totals[core.Transfer])
	}

	saved, err := SavedBalance(records, "USD", table)
	if err != nil {
		t.Fatalf("saved: %v", err)
	}
	if !saved.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected saved=80, got %s", saved)
	}
}

func TestSavedBalanceMatchesTotalsForAnyCurrency(t *testing.T) {
	table := rates.DefaultTable()
	records := []core.Record{
		record(day(2025, time.January, 1), core.Income, 123457),
		record(day(2025, time.February, 1), core.Expense, 99999),
		record(day(2025, time.March, 1), core.Transfer, 500000),
	}

	for _, currency := range table.Codes() {
		totals, err := TotalsByType(records, currency, table)
		if err != nil {
			t.Fatalf("%s totals: %v", currency, err)
		}
		saved, err := SavedBalance(records, currency, table)
		if err != nil {
			t.Fatalf("%s saved: %v", currency, err)
		}
		want := totals[core.Income].Sub(totals[core.Expense])
		if !saved.Equal(want) {
			t.Fatalf("%s: saved=%s, totals diff=%s", currency, saved, want)
		}
	}
}

func TestMonthlyTotalsMergesYearsAndKeepsFirstAppearanceOrder(t *testing.T) {
	table := rates.DefaultTable()
	records := []core.Record{
		record(day(2024, time.March, 5), core.Expense, 100),
		record(day(2024, time.January, 5), core.Income, 10),
		record(day(2025, time.March, 9), core.Expense, 50),
	}

	got, err := MonthlyTotals(records, "MMK", table, false)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(got))
	}
	if got[0].Label != "Mar" || got[1].Label != "Jan" {
		t.Fatalf("expected first-appearance order [Mar Jan], got [%s %s]", got[0].Label, got[1].Label)
	}
	// Mar 2024 and Mar 2025 merge under one label.
	if !got[0].Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected merged Mar total 150, got %s", got[0].Amount)
	}
}

func TestMonthlyTotalsCalendarOrder(t *testing.T) {
	table := rates.DefaultTable()
	records := []core.Record{
		record(day(2025, time.March, 5), core.Expense, 1),
		record(day(2025, time.January, 5), core.Income, 2),
		record(day(2025, time.December, 5), core.Income, 3),
	}

	got, err := MonthlyTotals(records, "MMK", table, true)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	want := []string{"Jan", "Mar", "Dec"}
	for i, label := range want {
		if got[i].Label != label {
			t.Fatalf("position %d: expected %s, got %s", i, label, got[i].Label)
		}
	}
}

func TestRecentHistoryReverseStorageOrder(t *testing.T) {
	table := rates.DefaultTable()
	// R3 is backdated before R1; storage order still wins.
	records := []core.Record{
		record(day(2025, time.May, 1), core.Income, 1),
		record(day(2025, time.May, 2), core.Income, 2),
		record(day(2025, time.April, 1), core.Income, 3),
	}

	got, err := RecentHistory(records, 2, "MMK", table)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !got[0].AmountCanonical.Equal(decimal.NewFromInt(3)) || !got[1].AmountCanonical.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected [R3 R2], got [%s %s]", got[0].AmountCanonical, got[1].AmountCanonical)
	}
}

func TestRecentHistoryDefaultsAndClamps(t *testing.T) {
	table := rates.DefaultTable()
	var records []core.Record
	for i := 1; i <= 7; i++ {
		records = append(records, record(day(2025, time.May, i), core.Income, int64(i)))
	}

	got, err := RecentHistory(records, 0, "MMK", table)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != DefaultHistoryLen {
		t.Fatalf("expected default window %d, got %d", DefaultHistoryLen, len(got))
	}

	got, err = RecentHistory(records[:2], 10, "MMK", table)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected clamp to 2, got %d", len(got))
	}
}

func TestHistoryConvertsPerRecord(t *testing.T) {
	table := rates.DefaultTable()
	records := []core.Record{record(day(2025, time.May, 1), core.Income, 350000)}

	got, err := RecentHistory(records, 1, "USD", table)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !got[0].DisplayAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected display amount 100, got %s", got[0].DisplayAmount)
	}
}

func TestAggregationAbortsOnUnknownCurrency(t *testing.T) {
	table := rates.DefaultTable()
	records := []core.Record{record(day(2025, time.May, 1), core.Income, 1)}

	if _, err := TotalsByType(records, "XYZ", table); !errors.Is(err, core.ErrUnknownCurrency) {
		t.Fatalf("totals: expected ErrUnknownCurrency, got %v", err)
	}
	if _, err := MonthlyTotals(records, "XYZ", table, false); !errors.Is(err, core.ErrUnknownCurrency) {
		t.Fatalf("monthly: expected ErrUnknownCurrency, got %v", err)
	}
	if _, err := RecentHistory(records, 1, "XYZ", table); !errors.Is(err, core.ErrUnknownCurrency) {
		t.Fatalf("history: expected ErrUnknownCurrency, got %v", err)
	}
}

func TestBreakdownProportions(t *testing.T) {
	records := []core.Record{
		record(day(2025, time.May, 1), core.Income, 75),
		record(day(2025, time.May, 2), core.Expense, 25),
	}

	got := Breakdown(records)
	if !got[core.Income].Equal(decimal.RequireFromString("0.75")) {
		t.Fatalf("expected Income share 0.75, got %s", got[core.Income])
	}
	if !got[core.Expense].Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("expected Expense share 0.25, got %s", got[core.Expense])
	}

	if got := Breakdown(nil); len(got) != 0 {
		t.Fatalf("empty ledger should produce empty breakdown, got %v", got)
	}
}
