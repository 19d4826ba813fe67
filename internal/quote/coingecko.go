package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"crashcore/internal/money"
)

// coinGeckoIDs maps our Currency enum to CoinGecko's /simple/price
// coin ids (spec.md §6.2 "quote source... {currency_id: {usd: number}}").
var coinGeckoIDs = map[money.Currency]string{
	money.BTC: "bitcoin",
	money.ETH: "ethereum",
	money.LTC: "litecoin",
	money.ADA: "cardano",
	money.DOT: "polkadot",
}

var idToCurrency = func() map[string]money.Currency {
	m := make(map[string]money.Currency, len(coinGeckoIDs))
	for cur, id := range coinGeckoIDs {
		m[id] = cur
	}
	return m
}()

// CoinGeckoSource implements Source over net/http against CoinGecko's
// batched /simple/price endpoint. No ecosystem HTTP client in the
// retrieval pack fits a single-GET JSON fetch better than net/http +
// context — see DESIGN.md's stdlib justification for this file.
type CoinGeckoSource struct {
	baseURL string
	client  *http.Client
}

// NewCoinGeckoSource builds a CoinGeckoSource against baseURL (spec.md
// §6.3 COINGECKO_API_URL).
func NewCoinGeckoSource(baseURL string) *CoinGeckoSource {
	return &CoinGeckoSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// FetchAll retrieves USD prices for every supported currency in a
// single request.
func (s *CoinGeckoSource) FetchAll(ctx context.Context) (map[money.Currency]decimal.Decimal, error) {
	ids := make([]string, 0, len(coinGeckoIDs))
	for _, cur := range money.Supported {
		ids = append(ids, coinGeckoIDs[cur])
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	reqURL := s.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote source returned status %d", resp.StatusCode)
	}

	var raw map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}

	out := make(map[money.Currency]decimal.Decimal, len(raw))
	for id, v := range raw {
		cur, ok := idToCurrency[id]
		if !ok {
			continue
		}
		out[cur] = decimal.NewFromFloat(v.USD)
	}
	return out, nil
}
