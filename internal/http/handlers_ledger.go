package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sumal/internal/core"
	"sumal/internal/rates"
	"sumal/internal/report"
)

const dateLayout = "2006-01-02"

type transactionRequest struct {
	Date     string `json:"date"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Note     string `json:"note"`
}

type transactionResponse struct {
	Date            string `json:"date"`
	Type            string `json:"type"`
	Category        string `json:"category"`
	AmountCanonical string `json:"amount_canonical"`
	Canonical       string `json:"canonical_currency"`
	InputAmount     string `json:"input_amount"`
	InputCurrency   string `json:"input_currency"`
	Note            string `json:"note,omitempty"`
	Formatted       string `json:"formatted"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date := time.Now().Truncate(24 * time.Hour)
	if v := strings.TrimSpace(req.Date); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid date, want YYYY-MM-DD")
			return
		}
		date = parsed
	}

	typ, err := core.ParseType(req.Type)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unknown transaction type")
		return
	}

	category := sanitizeInput(req.Category)
	if !core.CategoryAllowed(typ, category) {
		writeError(w, http.StatusUnprocessableEntity, "category not allowed for type")
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = rates.Canonical
	}

	rec, err := s.ledger.Append(r.Context(), core.Candidate{
		Date:          date,
		UserID:        currentUser(r),
		Type:          typ,
		Category:      category,
		InputAmount:   amount,
		InputCurrency: currency,
		Note:          sanitizeInput(req.Note),
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnknownCurrency):
			writeError(w, http.StatusUnprocessableEntity, "unknown currency")
		case errors.Is(err, core.ErrInvalidAmount),
			errors.Is(err, core.ErrInvalidDate),
			errors.Is(err, core.ErrUnknownType),
			errors.Is(err, core.ErrInvalidCategory):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			slog.ErrorContext(r.Context(), "Transaction append failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not record transaction")
		}
		return
	}

	// Cached summaries for this user are now stale.
	s.invalidateUser(currentUser(r))

	writeJSON(w, http.StatusCreated, transactionResponse{
		Date:            rec.Date.Format(dateLayout),
		Type:            string(rec.Type),
		Category:        rec.Category,
		AmountCanonical: rec.AmountCanonical.StringFixed(2),
		Canonical:       rates.Canonical,
		InputAmount:     rec.InputAmount.String(),
		InputCurrency:   rec.InputCurrency,
		Note:            rec.Note,
		Formatted:       core.FormatAmount(rec.AmountCanonical, rates.Canonical),
	})
}

type recentRow struct {
	Date      string `json:"date"`
	Type      string `json:"type"`
	Category  string `json:"category"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Note      string `json:"note,omitempty"`
	Formatted string `json:"formatted"`
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	n := report.DefaultHistoryLen
	if v := strings.TrimSpace(r.URL.Query().Get("n")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid n")
			return
		}
		n = parsed
	}
	currency := queryCurrency(r, rates.Canonical)

	records, err := s.ledger.Records(r.Context(), currentUser(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Records read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read ledger")
		return
	}

	history, err := report.RecentHistory(records, n, currency, s.table)
	if err != nil {
		if errors.Is(err, core.ErrUnknownCurrency) {
			writeError(w, http.StatusUnprocessableEntity, "unknown currency")
			return
		}
		slog.ErrorContext(r.Context(), "Recent history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not build history")
		return
	}

	rows := make([]recentRow, 0, len(history))
	for _, h := range history {
		rows = append(rows, recentRow{
			Date:      h.Date.Format(dateLayout),
			Type:      string(h.Type),
			Category:  h.Category,
			Amount:    h.DisplayAmount.StringFixed(2),
			Currency:  h.DisplayCurrency,
			Note:      h.Note,
			Formatted: core.FormatAmount(h.DisplayAmount, h.DisplayCurrency),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": rows})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	types := make([]string, 0, len(core.Types))
	categories := make(map[string][]string, len(core.Types))
	for _, t := range core.Types {
		types = append(types, string(t))
		categories[string(t)] = core.Categories[t]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"types":      types,
		"categories": categories,
	})
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshot := s.table.Snapshot()
	ratesOut := make(map[string]string, len(snapshot))
	for code, rate := range snapshot {
		ratesOut[code] = rate.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"canonical": rates.Canonical,
		"codes":     s.table.Codes(),
		"rates":     ratesOut,
		"symbols":   core.CurrencySymbols,
	})
}
