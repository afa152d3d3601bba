package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"sumal/internal/core"
	"sumal/internal/rates"
	"sumal/internal/report"
)

type summaryPayload struct {
	Currency  string            `json:"currency"`
	Totals    map[string]string `json:"totals"`
	Saved     string            `json:"saved"`
	Breakdown map[string]string `json:"breakdown"`
	Formatted map[string]string `json:"formatted"`
}

type monthlyPayload struct {
	Currency string       `json:"currency"`
	Months   []monthEntry `json:"months"`
}

type monthEntry struct {
	Label     string `json:"label"`
	Amount    string `json:"amount"`
	Formatted string `json:"formatted"`
}

func (s *Server) summaryCacheKey(user, currency string) string {
	return user + ":summary:" + currency
}

func (s *Server) monthlyCacheKey(user, currency string, byCalendar bool) string {
	return user + ":monthly:" + currency + ":" + strconv.FormatBool(byCalendar)
}

// invalidateUser drops every cached view for one user.
func (s *Server) invalidateUser(user string) {
	s.summaryCache.DeletePrefix(user + ":")
	s.monthlyCache.DeletePrefix(user + ":")
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user := currentUser(r)
	currency := queryCurrency(r, rates.Canonical)

	key := s.summaryCacheKey(user, currency)
	if payload, found := s.summaryCache.Get(key); found {
		slog.DebugContext(r.Context(), "Summary cache hit", "user", user, "currency", currency)
		writeJSON(w, http.StatusOK, payload)
		return
	}

	records, err := s.ledger.Records(r.Context(), user)
	if err != nil {
		slog.ErrorContext(r.Context(), "Records read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read ledger")
		return
	}

	totals, err := report.TotalsByType(records, currency, s.table)
	if err != nil {
		if errors.Is(err, core.ErrUnknownCurrency) {
			writeError(w, http.StatusUnprocessableEntity, "unknown currency")
			return
		}
		slog.ErrorContext(r.Context(), "Totals failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not build summary")
		return
	}
	saved, err := report.SavedBalance(records, currency, s.table)
	if err != nil {
		slog.ErrorContext(r.Context(), "Saved balance failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not build summary")
		return
	}

	payload := summaryPayload{
		Currency:  currency,
		Totals:    make(map[string]string, len(totals)),
		Saved:     saved.StringFixed(2),
		Breakdown: make(map[string]string),
		Formatted: make(map[string]string, len(totals)+1),
	}
	for typ, amount := range totals {
		payload.Totals[string(typ)] = amount.StringFixed(2)
		payload.Formatted[string(typ)] = core.FormatAmount(amount, currency)
	}
	payload.Formatted["Saved"] = core.FormatAmount(saved, currency)
	for typ, share := range report.Breakdown(records) {
		payload.Breakdown[string(typ)] = share.StringFixed(4)
	}

	s.summaryCache.Set(key, payload)
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user := currentUser(r)
	currency := queryCurrency(r, rates.Canonical)
	byCalendar := parseBool(r.URL.Query(), "calendar")

	key := s.monthlyCacheKey(user, currency, byCalendar)
	if payload, found := s.monthlyCache.Get(key); found {
		slog.DebugContext(r.Context(), "Monthly cache hit", "user", user, "currency", currency)
		writeJSON(w, http.StatusOK, payload)
		return
	}

	records, err := s.ledger.Records(r.Context(), user)
	if err != nil {
		slog.ErrorContext(r.Context(), "Records read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read ledger")
		return
	}

	months, err := report.MonthlyTotals(records, currency, s.table, byCalendar)
	if err != nil {
		if errors.Is(err, core.ErrUnknownCurrency) {
			writeError(w, http.StatusUnprocessableEntity, "unknown currency")
			return
		}
		slog.ErrorContext(r.Context(), "Monthly totals failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not build monthly summary")
		return
	}

	payload := monthlyPayload{Currency: currency, Months: make([]monthEntry, 0, len(months))}
	for _, m := range months {
		payload.Months = append(payload.Months, monthEntry{
			Label:     m.Label,
			Amount:    m.Amount.StringFixed(2),
			Formatted: core.FormatAmount(m.Amount, currency),
		})
	}

	s.monthlyCache.Set(key, payload)
	writeJSON(w, http.StatusOK, payload)
}

// handleRatesRefresh pulls fresh rates from the provider. Failures are
// reported but never change the table.
func (s *Server) handleRatesRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.provider == nil {
		writeError(w, http.StatusServiceUnavailable, "rate provider not configured")
		return
	}

	if err := rates.Refresh(r.Context(), s.table, s.provider); err != nil {
		slog.WarnContext(r.Context(), "Rate refresh failed, keeping current table", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"refreshed": false,
			"error":     "refresh failed, previous rates kept",
		})
		return
	}

	snapshot := s.table.Snapshot()
	out := make(map[string]string, len(snapshot))
	for code, rate := range snapshot {
		out[code] = rate.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"refreshed": true,
		"rates":     out,
	})
}

func parseBool(q url.Values, key string) bool {
	v, err := strconv.ParseBool(q.Get(key))
	return err == nil && v
}
