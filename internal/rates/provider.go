package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const latestCacheKey = "latest"

// Provider fetches live quotes from an exchangerate-api style endpoint.
// A request for the canonical base returns units of each quote currency
// per 1 canonical unit; the refresh path inverts those into canonical
// rates. Responses are cached briefly so back-to-back refreshes don't
// hammer the upstream.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
}

type latestResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// NewProvider builds a provider with a bounded request timeout.
func NewProvider(baseURL string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      gocache.New(time.Minute, 5*time.Minute),
	}
}

// Latest returns the raw quotes for the canonical base, keyed by
// currency code. Network, status, and decode problems all surface as
// ErrRateRefreshFailed.
func (p *Provider) Latest(ctx context.Context) (map[string]decimal.Decimal, error) {
	if cached, ok := p.cache.Get(latestCacheKey); ok {
		return cached.(map[string]decimal.Decimal), nil
	}

	url := fmt.Sprintf("%s/v4/latest/%s", p.baseURL, Canonical)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRateRefreshFailed, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRateRefreshFailed, resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRateRefreshFailed, err)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("%w: empty rates in response", ErrRateRefreshFailed)
	}

	quotes := make(map[string]decimal.Decimal, len(body.Rates))
	for code, q := range body.Rates {
		quotes[code] = decimal.NewFromFloat(q)
	}
	p.cache.Set(latestCacheKey, quotes, gocache.DefaultExpiration)
	return quotes, nil
}

// Refresh fetches live quotes and merges them into the table. Only
// currencies already registered in the table are touched; a currency
// the provider omitted keeps its previous rate. On any failure the
// table is left entirely unchanged.
func Refresh(ctx context.Context, t *Table, p *Provider) error {
	quotes, err := p.Latest(ctx)
	if err != nil {
		return err
	}

	one := decimal.NewFromInt(1)
	updates := make(map[string]decimal.Decimal)
	for _, code := range t.Codes() {
		if code == Canonical {
			continue
		}
		q, ok := quotes[code]
		if !ok || !q.IsPositive() {
			continue
		}
		// Provider quotes units-per-canonical; the table stores
		// canonical-per-unit.
		updates[code] = one.Div(q)
	}
	if len(updates) == 0 {
		return fmt.Errorf("%w: no usable quotes for registered currencies", ErrRateRefreshFailed)
	}

	t.Apply(updates)
	slog.InfoContext(ctx, "Currency rates refreshed", "updated", len(updates))
	return nil
}
