// Package domain defines the shared types and capability interfaces used by
// the valuation core. It has no infrastructure dependencies: providers and
// pricers are implemented elsewhere and injected into services.
package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Source identifiers for the built-in holdings providers.
const (
	SourceCoinbase    = "coinbase"
	SourceColdStorage = "cold_storage"
	SourceSchwab      = "schwab"
	SourceAggregate   = "aggregate"
)

// Cash asset symbols valued 1:1 to USD without a price lookup.
func IsCashAsset(asset string) bool {
	return asset == "USD" || asset == "USDC"
}

// ContainerRef identifies a brokerage, exchange account, or cold storage
// device - the top-level grouping for holdings. A container exists even when
// it currently has no holdings.
type ContainerRef struct {
	Source      string  `json:"source"`
	ContainerID string  `json:"container_id"`
	Name        *string `json:"name,omitempty"`
}

// AccountRef identifies a sub-account within a container. Providers without a
// sub-account concept (cold storage devices) produce none.
type AccountRef struct {
	Source      string  `json:"source"`
	ContainerID string  `json:"container_id"`
	AccountID   string  `json:"account_id"`
	Name        *string `json:"name,omitempty"`
}

// Holding is one raw (source, container, account, asset) quantity fact before
// pricing. Price and MarketValue are set only when the institution already
// supplied them; otherwise the valuation layer resolves them.
type Holding struct {
	Source        string
	ContainerID   string
	AccountID     *string
	Asset         string
	Quantity      decimal.Decimal
	QuoteCurrency string
	Price         *decimal.Decimal
	MarketValue   *decimal.Decimal
}

// HoldingsProvider is a container integration that can produce holdings,
// optionally broken down by account.
//
// Contract:
//   - ListContainers returns every container the provider knows about. If
//     there is simply no data (cold storage file absent, no linked item) it
//     returns an empty slice, not an error.
//   - ListAccounts returns sub-accounts for a container; providers without
//     sub-accounts return an empty slice.
//   - GetHoldings returns current holdings for a container, with non-positive
//     quantities and blank assets already filtered out. The caller
//     re-validates regardless.
//
// An upstream call failing must surface as an error, never as a silently
// empty result, so aggregate totals are not corrupted.
type HoldingsProvider interface {
	Source() string
	ListContainers(ctx context.Context) ([]ContainerRef, error)
	ListAccounts(ctx context.Context, containerID string) ([]AccountRef, error)
	GetHoldings(ctx context.Context, containerID string) ([]Holding, error)
}

// PricingProvider converts asset symbols into unit prices in the given quote
// currency. The result is best-effort: assets with no available price are
// absent from the map, never an error. Results are always keyed by the
// originally requested symbol even when the implementation prices a symbol
// via an override product.
type PricingProvider interface {
	ProviderID() string
	GetPrices(ctx context.Context, assets map[string]struct{}, quoteCurrency string) (map[string]decimal.Decimal, error)
}
