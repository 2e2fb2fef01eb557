// Package portfolio implements the valuation and roll-up engine: it fans out
// to every registered holdings provider, prices unpriced assets, and builds
// the by-asset / by-account / by-container rollups into one consistent
// valuation.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finagent-dev/finagent/internal/domain"
)

// ErrContainerNotFound is returned when a referenced container does not
// exist. Distinct from a container that exists but is empty.
var ErrContainerNotFound = errors.New("container not found")

// ErrUnknownSource is returned when no registered provider serves the
// requested source.
var ErrUnknownSource = errors.New("unknown source")

// Service orchestrates holdings providers and the pricing provider into
// portfolio valuations. Every computation starts from scratch: there is no
// cache and no shared mutable state between requests.
type Service struct {
	providers     []domain.HoldingsProvider
	pricer        domain.PricingProvider
	ignoredAssets map[string]struct{}
	now           func() time.Time
	log           zerolog.Logger
}

// NewService creates a portfolio service over a fixed provider list.
func NewService(providers []domain.HoldingsProvider, pricer domain.PricingProvider, ignoredAssets map[string]struct{}, log zerolog.Logger) *Service {
	return &Service{
		providers:     providers,
		pricer:        pricer,
		ignoredAssets: ignoredAssets,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log.With().Str("service", "portfolio").Logger(),
	}
}

// PricingProviderID reports which pricing provider backs valuations.
func (s *Service) PricingProviderID() string {
	return s.pricer.ProviderID()
}

// ListContainers enumerates containers across all providers.
func (s *Service) ListContainers(ctx context.Context) ([]domain.ContainerRef, error) {
	var out []domain.ContainerRef
	for _, provider := range s.providers {
		containers, err := provider.ListContainers(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s container listing failed: %w", provider.Source(), err)
		}
		out = append(out, containers...)
	}
	return out, nil
}

// ListAccounts enumerates sub-accounts for one container.
func (s *Service) ListAccounts(ctx context.Context, source, containerID string) ([]domain.AccountRef, error) {
	provider, err := s.providerFor(source)
	if err != nil {
		return nil, err
	}
	return provider.ListAccounts(ctx, containerID)
}

// gathered is the fully materialized input of one valuation pass.
type gathered struct {
	holdings     []domain.Holding
	containers   []domain.ContainerRef
	accountNames map[accountKey]*string
}

type accountKey struct {
	source      string
	containerID string
	accountID   string
}

// gather queries every provider for its containers, accounts, and holdings.
// Providers run concurrently; each fills its own slot so output order stays
// the registration order. Account enumeration is best-effort (names are a
// display annotation only); container and holdings failures are fatal for
// the whole request so partial totals are never reported as complete.
func (s *Service) gather(ctx context.Context) (*gathered, error) {
	type slot struct {
		holdings   []domain.Holding
		containers []domain.ContainerRef
		names      map[accountKey]*string
		err        error
	}

	slots := make([]slot, len(s.providers))
	var wg sync.WaitGroup

	for i, provider := range s.providers {
		wg.Add(1)
		go func(i int, provider domain.HoldingsProvider) {
			defer wg.Done()
			out := &slots[i]
			out.names = make(map[accountKey]*string)

			containers, err := provider.ListContainers(ctx)
			if err != nil {
				out.err = fmt.Errorf("%s container listing failed: %w", provider.Source(), err)
				return
			}
			out.containers = containers

			for _, container := range containers {
				accounts, err := provider.ListAccounts(ctx, container.ContainerID)
				if err != nil {
					s.log.Warn().Err(err).
						Str("source", provider.Source()).
						Str("container_id", container.ContainerID).
						Msg("Account enumeration failed; names will be absent")
				} else {
					for _, acct := range accounts {
						out.names[accountKey{acct.Source, acct.ContainerID, acct.AccountID}] = acct.Name
					}
				}

				holdings, err := provider.GetHoldings(ctx, container.ContainerID)
				if err != nil {
					out.err = fmt.Errorf("%s holdings fetch failed: %w", provider.Source(), err)
					return
				}
				out.holdings = append(out.holdings, holdings...)
			}
		}(i, provider)
	}
	wg.Wait()

	result := &gathered{accountNames: make(map[accountKey]*string)}
	for _, out := range slots {
		if out.err != nil {
			return nil, out.err
		}
		result.containers = append(result.containers, out.containers...)
		result.holdings = append(result.holdings, out.holdings...)
		for key, name := range out.names {
			result.accountNames[key] = name
		}
	}
	return result, nil
}

// cleanHoldings normalizes asset symbols and drops holdings with blank or
// ignored assets or non-positive quantities. This is the one canonical
// partition-and-filter entry point: every view, including the legacy
// single-source ones, goes through it.
func (s *Service) cleanHoldings(holdings []domain.Holding) []domain.Holding {
	cleaned := make([]domain.Holding, 0, len(holdings))
	for _, h := range holdings {
		asset := strings.ToUpper(strings.TrimSpace(h.Asset))
		if asset == "" {
			continue
		}
		if _, ignored := s.ignoredAssets[asset]; ignored {
			continue
		}
		if !h.Quantity.IsPositive() {
			continue
		}

		quote := strings.ToUpper(strings.TrimSpace(h.QuoteCurrency))
		if quote == "" {
			quote = "USD"
		}

		h.Asset = asset
		h.QuoteCurrency = quote
		cleaned = append(cleaned, h)
	}
	return cleaned
}

// resolve partitions cleaned holdings into cash and positions, fetches
// prices for position assets that still need one (a single batch call), and
// resolves each position's effective price and market value. Positions
// lacking both stay unpriced; their assets are reported as missing.
func (s *Service) resolve(ctx context.Context, cleaned []domain.Holding) ([]CashBalance, []Position, error) {
	needPrice := make(map[string]struct{})
	for _, h := range cleaned {
		if domain.IsCashAsset(h.Asset) {
			continue
		}
		if h.Price == nil && h.MarketValue == nil {
			needPrice[h.Asset] = struct{}{}
		}
	}

	prices, err := s.pricer.GetPrices(ctx, needPrice, "USD")
	if err != nil {
		return nil, nil, fmt.Errorf("price lookup failed: %w", err)
	}

	var cash []CashBalance
	var positions []Position

	for _, h := range cleaned {
		if domain.IsCashAsset(h.Asset) {
			cash = append(cash, CashBalance{
				Source:      h.Source,
				ContainerID: h.ContainerID,
				AccountID:   h.AccountID,
				Currency:    h.Asset,
				Total:       h.Quantity,
			})
			continue
		}

		price := h.Price
		if price == nil {
			if p, ok := prices[h.Asset]; ok {
				price = &p
			}
		}

		marketValue := h.MarketValue
		if marketValue == nil && price != nil {
			mv := h.Quantity.Mul(*price)
			marketValue = &mv
		}

		positions = append(positions, Position{
			Source:        h.Source,
			ContainerID:   h.ContainerID,
			AccountID:     h.AccountID,
			Symbol:        h.Asset,
			Asset:         h.Asset,
			Quantity:      h.Quantity,
			CurrentPrice:  price,
			MarketValue:   marketValue,
			QuoteCurrency: "USD",
		})
	}

	return cash, positions, nil
}

// ComputePortfolio runs one full valuation pass: gather, clean, price, and
// roll up along all three axes. Rollup is a synchronous reduction over the
// fully materialized holdings list; no network call is outstanding once it
// starts.
func (s *Service) ComputePortfolio(ctx context.Context) (*Computed, error) {
	asOf := s.now()

	input, err := s.gather(ctx)
	if err != nil {
		return nil, err
	}

	cleaned := s.cleanHoldings(input.holdings)
	cash, positions, err := s.resolve(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	cashValue := decimal.Zero
	for _, c := range cash {
		cashValue = cashValue.Add(c.Total)
	}

	// Unpriced positions are excluded from the sum, not coerced to zero.
	positionsValue := decimal.Zero
	for _, p := range positions {
		if p.MarketValue != nil {
			positionsValue = positionsValue.Add(*p.MarketValue)
		}
	}

	totalValue := cashValue.Add(positionsValue)

	byAsset := rollupByAsset(positions)
	byAccount := rollupByAccount(cash, positions, input.accountNames)
	byContainer := rollupByContainer(byAccount, input.containers)

	portfolio := PortfolioValuation{
		Source:         domain.SourceAggregate,
		AsOf:           asOf,
		Currency:       "USD",
		TotalValue:     totalValue,
		CashValue:      cashValue,
		PositionsValue: positionsValue,
		ByAsset:        byAsset,
		ByAccount:      byAccount,
		ByContainer:    byContainer,
		MissingPrices:  missingPriceAssets(positions),
	}

	return &Computed{
		AsOf:            asOf,
		Currency:        "USD",
		Portfolio:       portfolio,
		ContainerTotals: byContainer,
	}, nil
}

// rollupByAsset groups positions by normalized asset symbol. Quantities sum
// unconditionally; market values sum over priced members only, and the first
// non-nil price seen is retained.
func rollupByAsset(positions []Position) []AssetValuation {
	type assetAgg struct {
		valuation AssetValuation
		hasPrice  bool
		value     decimal.Decimal
	}

	byAsset := make(map[string]*assetAgg)
	for _, p := range positions {
		agg, ok := byAsset[p.Asset]
		if !ok {
			agg = &assetAgg{
				valuation: AssetValuation{
					Asset:         p.Asset,
					QuoteCurrency: p.QuoteCurrency,
					Price:         p.CurrentPrice,
				},
			}
			byAsset[p.Asset] = agg
		}

		agg.valuation.TotalQuantity = agg.valuation.TotalQuantity.Add(p.Quantity)

		if p.MarketValue != nil {
			agg.value = agg.value.Add(*p.MarketValue)
			agg.hasPrice = true
			if agg.valuation.Price == nil {
				agg.valuation.Price = p.CurrentPrice
			}
		}

		agg.valuation.Accounts = append(agg.valuation.Accounts, AssetAccountBreakdown{
			Source:      p.Source,
			ContainerID: p.ContainerID,
			AccountID:   p.AccountID,
			Quantity:    p.Quantity,
			MarketValue: p.MarketValue,
		})
	}

	out := make([]AssetValuation, 0, len(byAsset))
	for _, agg := range byAsset {
		if agg.hasPrice {
			value := agg.value
			agg.valuation.MarketValue = &value
		}
		out = append(out, agg.valuation)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

// rollupByAccount groups cash and positions by (source, container, account)
// and sums each group's value with the same rules as the top-level sums.
// Display names come from earlier account enumeration; a missed name leaves
// the field absent without perturbing totals.
func rollupByAccount(cash []CashBalance, positions []Position, names map[accountKey]*string) []AccountValuation {
	aggregates := make(map[accountKey]*AccountValuation)

	get := func(source, containerID string, accountID *string) *AccountValuation {
		key := accountKey{source, containerID, deref(accountID)}
		agg, ok := aggregates[key]
		if !ok {
			agg = &AccountValuation{
				Source:      source,
				ContainerID: containerID,
				AccountID:   accountID,
				Currency:    "USD",
			}
			aggregates[key] = agg
		}
		return agg
	}

	for _, c := range cash {
		agg := get(c.Source, c.ContainerID, c.AccountID)
		agg.Cash = append(agg.Cash, c)
		agg.TotalValue = agg.TotalValue.Add(c.Total)
	}
	for _, p := range positions {
		agg := get(p.Source, p.ContainerID, p.AccountID)
		agg.Positions = append(agg.Positions, p)
		if p.MarketValue != nil {
			agg.TotalValue = agg.TotalValue.Add(*p.MarketValue)
		}
	}

	out := make([]AccountValuation, 0, len(aggregates))
	for key, agg := range aggregates {
		if agg.AccountID != nil {
			if name, ok := names[key]; ok && name != nil {
				agg.Name = name
			}
		}
		out = append(out, *agg)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.ContainerID != b.ContainerID {
			return a.ContainerID < b.ContainerID
		}
		return deref(a.AccountID) < deref(b.AccountID)
	})
	return out
}

// rollupByContainer sums account valuations per (source, container).
// Containers discovered during gathering that ended up with no accounts are
// still emitted with a zero total.
func rollupByContainer(byAccount []AccountValuation, containers []domain.ContainerRef) []ContainerSummary {
	type containerKey struct{ source, containerID string }

	totals := make(map[containerKey]decimal.Decimal)
	names := make(map[containerKey]*string)

	for _, c := range containers {
		key := containerKey{c.Source, c.ContainerID}
		names[key] = c.Name
		if _, ok := totals[key]; !ok {
			totals[key] = decimal.Zero
		}
	}

	for _, a := range byAccount {
		key := containerKey{a.Source, a.ContainerID}
		totals[key] = totals[key].Add(a.TotalValue)
	}

	out := make([]ContainerSummary, 0, len(totals))
	for key, total := range totals {
		out = append(out, ContainerSummary{
			Source:      key.source,
			ContainerID: key.containerID,
			Name:        names[key],
			Currency:    "USD",
			TotalValue:  total,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].ContainerID < out[j].ContainerID
	})
	return out
}

// missingPriceAssets returns the sorted distinct assets that have at least
// one position with no resolved market value.
func missingPriceAssets(positions []Position) []string {
	seen := make(map[string]struct{})
	for _, p := range positions {
		if p.MarketValue == nil {
			seen[p.Asset] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for asset := range seen {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// GetNetWorth computes a fresh valuation and returns its total.
func (s *Service) GetNetWorth(ctx context.Context) (*NetWorthSummary, error) {
	computed, err := s.ComputePortfolio(ctx)
	if err != nil {
		return nil, err
	}
	return &NetWorthSummary{
		Source:     domain.SourceAggregate,
		AsOf:       computed.AsOf,
		Currency:   computed.Currency,
		TotalValue: computed.Portfolio.TotalValue,
	}, nil
}

// GetContainerSummaries computes a fresh valuation and returns all container
// totals.
func (s *Service) GetContainerSummaries(ctx context.Context) (*ContainerSummaries, error) {
	computed, err := s.ComputePortfolio(ctx)
	if err != nil {
		return nil, err
	}
	return &ContainerSummaries{
		Source:     domain.SourceAggregate,
		AsOf:       computed.AsOf,
		Currency:   computed.Currency,
		Containers: computed.ContainerTotals,
	}, nil
}

// GetContainerValue returns one container's total, or ErrContainerNotFound.
func (s *Service) GetContainerValue(ctx context.Context, source, containerID string) (*ContainerSummary, error) {
	computed, err := s.ComputePortfolio(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range computed.ContainerTotals {
		if c.Source == source && c.ContainerID == containerID {
			return &c, nil
		}
	}
	return nil, ErrContainerNotFound
}

// GetContainerHoldings reconstructs the flat holdings list for one container
// or, when accountID is given, one account within it. Cash lines are valued
// at 1; total value covers the single account when one is requested,
// otherwise the whole container.
func (s *Service) GetContainerHoldings(ctx context.Context, source, containerID string, accountID *string) (*ContainerHoldings, error) {
	computed, err := s.ComputePortfolio(ctx)
	if err != nil {
		return nil, err
	}

	var containerTotal *ContainerSummary
	for _, c := range computed.ContainerTotals {
		if c.Source == source && c.ContainerID == containerID {
			summary := c
			containerTotal = &summary
			break
		}
	}
	if containerTotal == nil {
		return nil, ErrContainerNotFound
	}

	var holdings []HoldingLine
	missing := make(map[string]struct{})
	scopedTotal := decimal.Zero
	one := decimal.NewFromInt(1)

	for _, a := range computed.Portfolio.ByAccount {
		if a.Source != source || a.ContainerID != containerID {
			continue
		}
		if accountID != nil && deref(a.AccountID) != *accountID {
			continue
		}

		scopedTotal = scopedTotal.Add(a.TotalValue)

		for _, c := range a.Cash {
			if !c.Total.IsPositive() {
				continue
			}
			total := c.Total
			holdings = append(holdings, HoldingLine{
				Asset:         c.Currency,
				Quantity:      c.Total,
				QuoteCurrency: "USD",
				Price:         &one,
				MarketValue:   &total,
				AccountID:     a.AccountID,
			})
		}

		for _, p := range a.Positions {
			if p.MarketValue == nil {
				missing[p.Asset] = struct{}{}
			}
			holdings = append(holdings, HoldingLine{
				Asset:         p.Asset,
				Quantity:      p.Quantity,
				QuoteCurrency: p.QuoteCurrency,
				Price:         p.CurrentPrice,
				MarketValue:   p.MarketValue,
				AccountID:     a.AccountID,
			})
		}
	}

	totalValue := containerTotal.TotalValue
	if accountID != nil {
		totalValue = scopedTotal
	}

	missingSorted := make([]string, 0, len(missing))
	for asset := range missing {
		missingSorted = append(missingSorted, asset)
	}
	sort.Strings(missingSorted)

	return &ContainerHoldings{
		Source:        source,
		AsOf:          computed.AsOf,
		ContainerID:   containerID,
		AccountID:     accountID,
		Name:          containerTotal.Name,
		Currency:      "USD",
		TotalValue:    totalValue,
		Holdings:      holdings,
		MissingPrices: missingSorted,
	}, nil
}

// ComputeSourceValuation values a single source's holdings through the same
// clean-and-resolve path as the full portfolio. It backs the legacy
// single-exchange views.
func (s *Service) ComputeSourceValuation(ctx context.Context, source string) ([]CashBalance, []Position, error) {
	provider, err := s.providerFor(source)
	if err != nil {
		return nil, nil, err
	}

	containers, err := provider.ListContainers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s container listing failed: %w", source, err)
	}

	var holdings []domain.Holding
	for _, container := range containers {
		containerHoldings, err := provider.GetHoldings(ctx, container.ContainerID)
		if err != nil {
			return nil, nil, fmt.Errorf("%s holdings fetch failed: %w", source, err)
		}
		holdings = append(holdings, containerHoldings...)
	}

	return s.resolve(ctx, s.cleanHoldings(holdings))
}

func (s *Service) providerFor(source string) (domain.HoldingsProvider, error) {
	for _, provider := range s.providers {
		if provider.Source() == source {
			return provider, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
