// Package pricing implements the pricing provider capability on top of the
// Coinbase public market data endpoints.
package pricing

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finagent-dev/finagent/internal/domain"
)

// SpotPriceClient is the slice of the Coinbase client the pricer needs.
type SpotPriceClient interface {
	GetSpotPrice(ctx context.Context, productID string) (*decimal.Decimal, error)
}

// priceSymbolOverrides maps assets with no spot product of their own to the
// product they are priced through. The indirection stays invisible to
// callers: results are always keyed by the requested symbol.
var priceSymbolOverrides = map[string]string{
	"ETH2": "ETH", // staked ETH variant, priced via ETH spot
	"CGLD": "CELO",
}

// CoinbasePricing prices assets via Coinbase spot products.
type CoinbasePricing struct {
	client SpotPriceClient
	log    zerolog.Logger
}

// NewCoinbasePricing creates a Coinbase-backed pricing provider.
func NewCoinbasePricing(client SpotPriceClient, log zerolog.Logger) *CoinbasePricing {
	return &CoinbasePricing{
		client: client,
		log:    log.With().Str("service", "pricing").Logger(),
	}
}

// ProviderID implements domain.PricingProvider.
func (p *CoinbasePricing) ProviderID() string { return domain.SourceCoinbase }

// GetPrices implements domain.PricingProvider. The whole asset set is
// resolved in one call: distinct lookup symbols are fetched concurrently and
// assets with no available price are simply absent from the result. USD and
// USD stablecoins are priced at exactly 1 without a network call.
func (p *CoinbasePricing) GetPrices(ctx context.Context, assets map[string]struct{}, quoteCurrency string) (map[string]decimal.Decimal, error) {
	quote := strings.ToUpper(strings.TrimSpace(quoteCurrency))
	if quote == "" {
		quote = "USD"
	}

	// Resolve overrides up front so each lookup symbol is fetched once even
	// when several requested assets share it.
	lookupFor := make(map[string]string, len(assets))
	lookupSet := make(map[string]struct{})
	for asset := range assets {
		symbol := strings.ToUpper(strings.TrimSpace(asset))
		if symbol == "" {
			continue
		}
		lookup := symbol
		if override, ok := priceSymbolOverrides[symbol]; ok {
			lookup = override
		}
		lookupFor[symbol] = lookup
		lookupSet[lookup] = struct{}{}
	}

	// Cash entries are written before any lookup goroutine exists so the map
	// is only ever mutated under mu once fetches start.
	lookupPrices := make(map[string]decimal.Decimal, len(lookupSet))
	for lookup := range lookupSet {
		if domain.IsCashAsset(lookup) {
			lookupPrices[lookup] = decimal.NewFromInt(1)
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for lookup := range lookupSet {
		if domain.IsCashAsset(lookup) {
			continue
		}

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			price, err := p.client.GetSpotPrice(ctx, symbol+"-"+quote)
			if err != nil || price == nil {
				// Missing prices are represented as absent entries; the
				// valuation layer records them as missing.
				if err != nil {
					p.log.Debug().Err(err).Str("symbol", symbol).Msg("Price lookup failed")
				}
				return
			}

			mu.Lock()
			lookupPrices[symbol] = *price
			mu.Unlock()
		}(lookup)
	}
	wg.Wait()

	out := make(map[string]decimal.Decimal, len(lookupFor))
	for symbol, lookup := range lookupFor {
		if price, ok := lookupPrices[lookup]; ok {
			out[symbol] = price
		}
	}
	return out, nil
}
