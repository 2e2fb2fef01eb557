package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// All monetary amounts and quantities serialize as decimal strings; optional
// prices and values are pointers omitted when unresolved.

// CashBalance is a holding already valued 1:1 to USD (USD or USDC).
type CashBalance struct {
	Source      string           `json:"source"`
	ContainerID string           `json:"container_id"`
	AccountID   *string          `json:"account_id,omitempty"`
	Currency    string           `json:"currency"`
	Available   *decimal.Decimal `json:"available,omitempty"`
	Total       decimal.Decimal  `json:"total"`
}

// Position is a priced, non-cash holding. CostBasis is always nil: there is
// no lot tracking.
type Position struct {
	Source        string           `json:"source"`
	ContainerID   string           `json:"container_id"`
	AccountID     *string          `json:"account_id,omitempty"`
	Symbol        string           `json:"symbol"`
	Asset         string           `json:"asset"`
	Quantity      decimal.Decimal  `json:"quantity"`
	CostBasis     *decimal.Decimal `json:"cost_basis"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	MarketValue   *decimal.Decimal `json:"market_value,omitempty"`
	QuoteCurrency string           `json:"quote_currency"`
}

// AssetAccountBreakdown is one account's contribution to an asset rollup.
type AssetAccountBreakdown struct {
	Source      string           `json:"source"`
	ContainerID string           `json:"container_id"`
	AccountID   *string          `json:"account_id,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity"`
	MarketValue *decimal.Decimal `json:"market_value,omitempty"`
}

// AssetValuation is the rollup for one asset across all sources, containers,
// and accounts. TotalQuantity sums every contribution regardless of pricing;
// MarketValue is present only when at least one contribution was priced and
// sums priced contributions only.
type AssetValuation struct {
	Asset         string                  `json:"asset"`
	QuoteCurrency string                  `json:"quote_currency"`
	TotalQuantity decimal.Decimal         `json:"total_quantity"`
	Price         *decimal.Decimal        `json:"price,omitempty"`
	MarketValue   *decimal.Decimal        `json:"market_value,omitempty"`
	Accounts      []AssetAccountBreakdown `json:"accounts"`
}

// AccountValuation is the rollup for one (source, container, account).
type AccountValuation struct {
	Source      string          `json:"source"`
	ContainerID string          `json:"container_id"`
	AccountID   *string         `json:"account_id,omitempty"`
	Name        *string         `json:"name,omitempty"`
	Currency    string          `json:"currency"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Cash        []CashBalance   `json:"cash"`
	Positions   []Position      `json:"positions"`
}

// ContainerSummary is the value rollup for a single brokerage, exchange, or
// cold storage device. Containers with no holdings still appear with a zero
// total.
type ContainerSummary struct {
	Source      string          `json:"source"`
	ContainerID string          `json:"container_id"`
	Name        *string         `json:"name,omitempty"`
	Currency    string          `json:"currency"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// ContainerSummaries lists all containers and their totals.
type ContainerSummaries struct {
	Source     string             `json:"source"`
	AsOf       time.Time          `json:"as_of"`
	Currency   string             `json:"currency"`
	Containers []ContainerSummary `json:"containers"`
}

// PortfolioValuation is the top-level aggregate. TotalValue equals CashValue
// plus PositionsValue exactly, in decimal arithmetic.
type PortfolioValuation struct {
	Source         string             `json:"source"`
	AsOf           time.Time          `json:"as_of"`
	Currency       string             `json:"currency"`
	TotalValue     decimal.Decimal    `json:"total_value"`
	CashValue      decimal.Decimal    `json:"cash_value"`
	PositionsValue decimal.Decimal    `json:"positions_value"`
	ByAsset        []AssetValuation   `json:"by_asset"`
	ByAccount      []AccountValuation `json:"by_account"`
	ByContainer    []ContainerSummary `json:"by_container"`
	MissingPrices  []string           `json:"missing_prices"`
}

// NetWorthSummary is the total net worth across all sources.
type NetWorthSummary struct {
	Source     string          `json:"source"`
	AsOf       time.Time       `json:"as_of"`
	Currency   string          `json:"currency"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// HoldingLine is a single flattened holding row for a container view. Cash
// lines carry price 1 and market value equal to quantity.
type HoldingLine struct {
	Asset         string           `json:"asset"`
	Quantity      decimal.Decimal  `json:"quantity"`
	QuoteCurrency string           `json:"quote_currency"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	MarketValue   *decimal.Decimal `json:"market_value,omitempty"`
	AccountID     *string          `json:"account_id,omitempty"`
}

// ContainerHoldings is the flattened holdings view for one container or one
// account within it.
type ContainerHoldings struct {
	Source        string          `json:"source"`
	AsOf          time.Time       `json:"as_of"`
	ContainerID   string          `json:"container_id"`
	AccountID     *string         `json:"account_id,omitempty"`
	Name          *string         `json:"name,omitempty"`
	Currency      string          `json:"currency"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Holdings      []HoldingLine   `json:"holdings"`
	MissingPrices []string        `json:"missing_prices"`
}

// Computed is the result of one full valuation pass. Every read-only view is
// derived from a fresh Computed; nothing is cached between requests.
type Computed struct {
	AsOf            time.Time
	Currency        string
	Portfolio       PortfolioValuation
	ContainerTotals []ContainerSummary
}
