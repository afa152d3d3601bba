// Package rates holds the process-wide currency table and its refresh
// path. Rates are expressed as canonical units per 1 unit of the keyed
// currency; the canonical currency itself is fixed at 1 and never
// rewritten by a refresh.
package rates

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"sumal/internal/core"
)

// Canonical is the storage currency. Every stored amount is
// denominated in it regardless of display preference.
const Canonical = "MMK"

// ErrRateRefreshFailed marks a soft refresh failure. Callers keep the
// stale table and carry on.
var ErrRateRefreshFailed = errors.New("rate refresh failed")

// Table is a mutable mapping from currency code to its canonical rate.
// Safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewTable builds a table from seed rates. The canonical entry is
// forced to 1 whether or not the seed carries it.
func NewTable(seed map[string]decimal.Decimal) *Table {
	t := &Table{rates: make(map[string]decimal.Decimal, len(seed)+1)}
	for code, r := range seed {
		if r.IsPositive() {
			t.rates[code] = r
		}
	}
	t.rates[Canonical] = decimal.NewFromInt(1)
	return t
}

// DefaultTable returns the table seeded with the supported currencies.
func DefaultTable() *Table {
	return NewTable(map[string]decimal.Decimal{
		"THB": decimal.NewFromInt(145),
		"USD": decimal.NewFromInt(3500),
		"EUR": decimal.NewFromInt(3800),
		"SGD": decimal.NewFromInt(2600),
	})
}

// Rate returns the canonical rate for code. Unregistered codes fail
// loudly; all supported currencies are registered at startup.
func (t *Table) Rate(code string) (decimal.Decimal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", core.ErrUnknownCurrency, code)
	}
	return r, nil
}

// Convert re-expresses amount from one currency in another:
// amount * rate(from) / rate(to).
func (t *Table) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	fromRate, err := t.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := t.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(fromRate).Div(toRate), nil
}

// Apply merges updates into the table under a single lock. Entries the
// caller omitted keep their previous value; the canonical entry and
// non-positive updates are ignored.
func (t *Table) Apply(updates map[string]decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for code, r := range updates {
		if code == Canonical || !r.IsPositive() {
			continue
		}
		t.rates[code] = r
	}
}

// Codes returns the registered currency codes, sorted.
func (t *Table) Codes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.rates))
	for code := range t.rates {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Snapshot copies the current rates, for diagnostics and admin output.
func (t *Table) Snapshot() map[string]decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(t.rates))
	for code, r := range t.rates {
		out[code] = r
	}
	return out
}
