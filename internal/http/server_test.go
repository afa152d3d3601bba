package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sumal/internal/accounts"
	"sumal/internal/ledger"
	"sumal/internal/rates"
	"sumal/internal/session"
)

func newTestServer(t *testing.T, authEnabled bool) (*Server, *httptest.Server) {
	t.Helper()

	table := rates.DefaultTable()
	svc := ledger.NewService(ledger.NewMemoryStore(), table, nil)
	srv := NewServer(":0", Deps{
		Ledger:      svc,
		Accounts:    accounts.NewMemoryStore(),
		Sessions:    session.NewManager("test-secret", time.Hour),
		Table:       table,
		AuthEnabled: authEnabled,
	})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func getJSON(t *testing.T, url string, out any, cookies ...*http.Cookie) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateTransaction(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/transactions", transactionRequest{
		Date:     "2026-01-05",
		Type:     "Income",
		Category: "Salary",
		Amount:   "100",
		Currency: "USD",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var got transactionResponse
	decodeInto(t, resp, &got)
	if got.AmountCanonical != "350000.00" {
		t.Fatalf("amount_canonical = %s, want 350000.00", got.AmountCanonical)
	}
	if got.Canonical != "MMK" {
		t.Fatalf("canonical_currency = %s, want MMK", got.Canonical)
	}
	if got.InputCurrency != "USD" || got.InputAmount != "100" {
		t.Fatalf("input echo = %s %s", got.InputAmount, got.InputCurrency)
	}
}

func TestCreateTransactionRejections(t *testing.T) {
	_, ts := newTestServer(t, false)

	tests := []struct {
		name string
		req  transactionRequest
		want int
	}{
		{
			name: "zero amount",
			req:  transactionRequest{Type: "Expense", Category: "Food", Amount: "0", Currency: "MMK"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "negative amount",
			req:  transactionRequest{Type: "Expense", Category: "Food", Amount: "-5", Currency: "MMK"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown type",
			req:  transactionRequest{Type: "Loan", Category: "Food", Amount: "5", Currency: "MMK"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "category from wrong type",
			req:  transactionRequest{Type: "Income", Category: "Food", Amount: "5", Currency: "MMK"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown currency",
			req:  transactionRequest{Type: "Expense", Category: "Food", Amount: "5", Currency: "XYZ"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "malformed date",
			req:  transactionRequest{Date: "05-01-2026", Type: "Expense", Category: "Food", Amount: "5", Currency: "MMK"},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/transactions", tt.req)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	// Nothing should be visible after the rejected appends.
	var recent struct {
		Transactions []recentRow `json:"transactions"`
	}
	if code := getJSON(t, ts.URL+"/transactions/recent", &recent); code != http.StatusOK {
		t.Fatalf("recent status = %d", code)
	}
	if len(recent.Transactions) != 0 {
		t.Fatalf("ledger has %d transactions, want 0", len(recent.Transactions))
	}
}

func TestSummaryComputesSavedBalance(t *testing.T) {
	_, ts := newTestServer(t, false)

	for _, req := range []transactionRequest{
		{Date: "2026-01-05", Type: "Income", Category: "Salary", Amount: "100", Currency: "USD"},
		{Date: "2026-01-10", Type: "Expense", Category: "Food", Amount: "70000", Currency: "MMK"},
	} {
		resp := postJSON(t, ts.URL+"/transactions", req)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("append status = %d", resp.StatusCode)
		}
	}

	var got summaryPayload
	if code := getJSON(t, ts.URL+"/summary?currency=USD", &got); code != http.StatusOK {
		t.Fatalf("summary status = %d", code)
	}
	if got.Totals["Income"] != "100.00" {
		t.Fatalf("Income = %s, want 100.00", got.Totals["Income"])
	}
	if got.Totals["Expense"] != "20.00" {
		t.Fatalf("Expense = %s, want 20.00", got.Totals["Expense"])
	}
	if got.Saved != "80.00" {
		t.Fatalf("Saved = %s, want 80.00", got.Saved)
	}
}

func TestSummaryCacheInvalidatedOnAppend(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/transactions", transactionRequest{
		Date: "2026-01-05", Type: "Income", Category: "Salary", Amount: "100000", Currency: "MMK",
	})
	resp.Body.Close()

	var first summaryPayload
	getJSON(t, ts.URL+"/summary", &first)
	if first.Totals["Income"] != "100000.00" {
		t.Fatalf("Income = %s, want 100000.00", first.Totals["Income"])
	}

	resp = postJSON(t, ts.URL+"/transactions", transactionRequest{
		Date: "2026-01-06", Type: "Income", Category: "Bonus", Amount: "50000", Currency: "MMK",
	})
	resp.Body.Close()

	var second summaryPayload
	getJSON(t, ts.URL+"/summary", &second)
	if second.Totals["Income"] != "150000.00" {
		t.Fatalf("Income after append = %s, want 150000.00 (stale cache?)", second.Totals["Income"])
	}
}

func TestMonthlySummaryMergesYears(t *testing.T) {
	_, ts := newTestServer(t, false)

	for _, req := range []transactionRequest{
		{Date: "2025-03-01", Type: "Expense", Category: "Food", Amount: "100", Currency: "MMK"},
		{Date: "2026-01-15", Type: "Expense", Category: "Bills", Amount: "200", Currency: "MMK"},
		{Date: "2026-03-20", Type: "Expense", Category: "Food", Amount: "50", Currency: "MMK"},
	} {
		resp := postJSON(t, ts.URL+"/transactions", req)
		resp.Body.Close()
	}

	var got monthlyPayload
	if code := getJSON(t, ts.URL+"/summary/monthly", &got); code != http.StatusOK {
		t.Fatalf("monthly status = %d", code)
	}
	if len(got.Months) != 2 {
		t.Fatalf("months = %d, want 2 (Mar merged across years)", len(got.Months))
	}
	if got.Months[0].Label != "Mar" || got.Months[0].Amount != "150.00" {
		t.Fatalf("first month = %+v, want Mar 150.00", got.Months[0])
	}
	if got.Months[1].Label != "Jan" || got.Months[1].Amount != "200.00" {
		t.Fatalf("second month = %+v, want Jan 200.00", got.Months[1])
	}
}

func TestRecentRespectsLimitAndOrder(t *testing.T) {
	_, ts := newTestServer(t, false)

	for i := 1; i <= 3; i++ {
		resp := postJSON(t, ts.URL+"/transactions", transactionRequest{
			Date: fmt.Sprintf("2026-01-%02d", i), Type: "Expense", Category: "Food",
			Amount: fmt.Sprintf("%d00", i), Currency: "MMK", Note: fmt.Sprintf("R%d", i),
		})
		resp.Body.Close()
	}

	var got struct {
		Transactions []recentRow `json:"transactions"`
	}
	if code := getJSON(t, ts.URL+"/transactions/recent?n=2", &got); code != http.StatusOK {
		t.Fatalf("recent status = %d", code)
	}
	if len(got.Transactions) != 2 {
		t.Fatalf("got %d rows, want 2", len(got.Transactions))
	}
	if got.Transactions[0].Note != "R3" || got.Transactions[1].Note != "R2" {
		t.Fatalf("order = [%s %s], want [R3 R2]", got.Transactions[0].Note, got.Transactions[1].Note)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	_, ts := newTestServer(t, false)

	var got struct {
		Types      []string            `json:"types"`
		Categories map[string][]string `json:"categories"`
	}
	if code := getJSON(t, ts.URL+"/categories", &got); code != http.StatusOK {
		t.Fatalf("categories status = %d", code)
	}
	if len(got.Types) != 3 {
		t.Fatalf("types = %v, want 3 entries", got.Types)
	}
	if len(got.Categories["Expense"]) == 0 {
		t.Fatal("Expense categories missing")
	}
}

func TestCurrenciesEndpoint(t *testing.T) {
	_, ts := newTestServer(t, false)

	var got struct {
		Canonical string            `json:"canonical"`
		Codes     []string          `json:"codes"`
		Rates     map[string]string `json:"rates"`
	}
	if code := getJSON(t, ts.URL+"/currencies", &got); code != http.StatusOK {
		t.Fatalf("currencies status = %d", code)
	}
	if got.Canonical != "MMK" {
		t.Fatalf("canonical = %s, want MMK", got.Canonical)
	}
	if got.Rates["MMK"] != "1" {
		t.Fatalf("MMK rate = %s, want 1", got.Rates["MMK"])
	}
}

func TestAuthRequiredWhenEnabled(t *testing.T) {
	_, ts := newTestServer(t, true)

	resp := postJSON(t, ts.URL+"/transactions", transactionRequest{
		Type: "Expense", Category: "Food", Amount: "5", Currency: "MMK",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without session = %d, want 401", resp.StatusCode)
	}
}

func TestSignupLoginFlow(t *testing.T) {
	_, ts := newTestServer(t, true)

	resp := postJSON(t, ts.URL+"/signup", credentialsRequest{Username: "alice", Password: "s3cret"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", resp.StatusCode)
	}

	// Duplicate usernames are rejected.
	resp = postJSON(t, ts.URL+"/signup", credentialsRequest{Username: "alice", Password: "other"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409", resp.StatusCode)
	}

	// Wrong password and unknown user fail identically.
	for _, creds := range []credentialsRequest{
		{Username: "alice", Password: "wrong"},
		{Username: "nobody", Password: "s3cret"},
	} {
		resp = postJSON(t, ts.URL+"/login", creds)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("login(%s) status = %d, want 401", creds.Username, resp.StatusCode)
		}
	}

	resp = postJSON(t, ts.URL+"/login", credentialsRequest{Username: "alice", Password: "s3cret"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("no session cookie set on login")
	}

	created := postJSON(t, ts.URL+"/transactions", transactionRequest{
		Date: "2026-01-05", Type: "Expense", Category: "Food", Amount: "5000", Currency: "MMK",
	}, sessionCookie)
	created.Body.Close()
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("authed append status = %d, want 201", created.StatusCode)
	}

	var recent struct {
		Transactions []recentRow `json:"transactions"`
	}
	if code := getJSON(t, ts.URL+"/transactions/recent", &recent, sessionCookie); code != http.StatusOK {
		t.Fatalf("recent status = %d", code)
	}
	if len(recent.Transactions) != 1 {
		t.Fatalf("alice sees %d transactions, want 1", len(recent.Transactions))
	}
}

func TestUsersAreIsolated(t *testing.T) {
	_, ts := newTestServer(t, true)

	login := func(username string) *http.Cookie {
		resp := postJSON(t, ts.URL+"/signup", credentialsRequest{Username: username, Password: "pw-" + username})
		resp.Body.Close()
		resp = postJSON(t, ts.URL+"/login", credentialsRequest{Username: username, Password: "pw-" + username})
		defer resp.Body.Close()
		for _, c := range resp.Cookies() {
			if c.Name == session.CookieName {
				return c
			}
		}
		t.Fatalf("no session cookie for %s", username)
		return nil
	}

	alice := login("alice")
	bob := login("bob")

	resp := postJSON(t, ts.URL+"/transactions", transactionRequest{
		Date: "2026-01-05", Type: "Income", Category: "Salary", Amount: "1000", Currency: "MMK",
	}, alice)
	resp.Body.Close()

	var bobSummary summaryPayload
	if code := getJSON(t, ts.URL+"/summary", &bobSummary, bob); code != http.StatusOK {
		t.Fatalf("bob summary status = %d", code)
	}
	if bobSummary.Totals["Income"] != "0.00" {
		t.Fatalf("bob sees Income %s, want 0.00", bobSummary.Totals["Income"])
	}
}

func TestRatesRefreshWithoutProvider(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/rates/refresh", struct{}{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestRatesRefreshSoftFailureKeepsTable(t *testing.T) {
	table := rates.DefaultTable()
	svc := ledger.NewService(ledger.NewMemoryStore(), table, nil)
	// Provider pointing at a dead endpoint.
	provider := rates.NewProvider("http://127.0.0.1:1", time.Second)

	srv := NewServer(":0", Deps{
		Ledger:   svc,
		Accounts: accounts.NewMemoryStore(),
		Sessions: session.NewManager("test-secret", time.Hour),
		Table:    table,
		Provider: provider,
	})
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	before := table.Snapshot()

	resp := postJSON(t, ts.URL+"/rates/refresh", struct{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got struct {
		Refreshed bool `json:"refreshed"`
	}
	decodeInto(t, resp, &got)
	if got.Refreshed {
		t.Fatal("refreshed = true, want false on provider failure")
	}

	after := table.Snapshot()
	for code, rate := range before {
		if !after[code].Equal(rate) {
			t.Fatalf("rate %s changed on failed refresh", code)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, ts := newTestServer(t, false)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
