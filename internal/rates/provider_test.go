package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRefreshSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/latest/MMK" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// units per 1 MMK: 1/4000 USD per MMK -> 4000 MMK per USD
		_, _ = w.Write([]byte(`{"base":"MMK","rates":{"USD":0.00025,"THB":0.008,"JPY":0.033}}`))
	}))
	defer srv.Close()

	table := DefaultTable()
	p := NewProvider(srv.URL, 2*time.Second)

	if err := Refresh(context.Background(), table, p); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if r, _ := table.Rate("USD"); r.String() != "4000" {
		t.Fatalf("expected USD rate 4000, got %s", r)
	}
	if r, _ := table.Rate("THB"); r.String() != "125" {
		t.Fatalf("expected THB rate 125, got %s", r)
	}
	// EUR was not quoted: previous value kept.
	if r, _ := table.Rate("EUR"); r.String() != "3800" {
		t.Fatalf("expected EUR rate 3800, got %s", r)
	}
	// JPY is not registered and must not appear.
	if _, err := table.Rate("JPY"); err == nil {
		t.Fatalf("JPY should stay unregistered")
	}
}

func TestRefreshFailureLeavesTableUnchanged(t *testing.T) {
	cases := []http.HandlerFunc{
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not json")) },
		func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"rates":{}}`)) },
	}
	for i, h := range cases {
		srv := httptest.NewServer(h)
		table := DefaultTable()
		before := table.Snapshot()

		p := NewProvider(srv.URL, 2*time.Second)
		err := Refresh(context.Background(), table, p)
		srv.Close()

		if !errors.Is(err, ErrRateRefreshFailed) {
			t.Fatalf("case %d: expected ErrRateRefreshFailed, got %v", i, err)
		}
		after := table.Snapshot()
		if len(before) != len(after) {
			t.Fatalf("case %d: table size changed", i)
		}
		for code, r := range before {
			if !after[code].Equal(r) {
				t.Fatalf("case %d: rate %s changed from %s to %s", i, code, r, after[code])
			}
		}
	}
}

func TestRefreshNetworkErrorIsSoft(t *testing.T) {
	table := DefaultTable()
	p := NewProvider("http://127.0.0.1:1", time.Second)

	err := Refresh(context.Background(), table, p)
	if !errors.Is(err, ErrRateRefreshFailed) {
		t.Fatalf("expected ErrRateRefreshFailed, got %v", err)
	}
}

func TestProviderResponseCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"base":"MMK","rates":{"USD":0.00025}}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, 2*time.Second)
	first, err := p.Latest(context.Background())
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := p.Latest(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", hits)
	}
	if len(first) != len(second) || !first["USD"].Equal(second["USD"]) {
		t.Fatalf("cached response differs")
	}
}
