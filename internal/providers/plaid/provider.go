// Package plaid implements the holdings provider capability for brokerage
// accounts linked through the Plaid investments product (Schwab, in
// practice). Holdings are valued with institution-supplied prices when
// present.
package plaid

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finagent-dev/finagent/internal/clients/plaid"
	"github.com/finagent-dev/finagent/internal/domain"
	"github.com/finagent-dev/finagent/internal/store"
)

// HoldingsClient is the slice of the Plaid client the provider needs.
type HoldingsClient interface {
	GetInvestmentsHoldings(ctx context.Context, accessToken string) (*plaid.HoldingsResponse, error)
}

// Provider reads holdings for one linked aggregator item. The container
// exists only while a linkage token is stored.
type Provider struct {
	client        HoldingsClient
	links         *store.LinkStore
	containerID   string
	ignoredAssets map[string]struct{}
	log           zerolog.Logger
}

// NewProvider creates a Plaid-backed holdings provider.
func NewProvider(client HoldingsClient, links *store.LinkStore, containerID string, ignoredAssets map[string]struct{}, log zerolog.Logger) *Provider {
	return &Provider{
		client:        client,
		links:         links,
		containerID:   containerID,
		ignoredAssets: ignoredAssets,
		log:           log.With().Str("provider", domain.SourceSchwab).Logger(),
	}
}

// Source implements domain.HoldingsProvider.
func (p *Provider) Source() string { return domain.SourceSchwab }

// ListContainers implements domain.HoldingsProvider. No linked item means no
// container, not an error.
func (p *Provider) ListContainers(ctx context.Context) ([]domain.ContainerRef, error) {
	item, err := p.links.Get(p.containerID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	name := "Schwab"
	if item.InstitutionName != nil && *item.InstitutionName != "" {
		name = *item.InstitutionName
	}
	return []domain.ContainerRef{
		{Source: domain.SourceSchwab, ContainerID: p.containerID, Name: &name},
	}, nil
}

// ListAccounts implements domain.HoldingsProvider.
func (p *Provider) ListAccounts(ctx context.Context, containerID string) ([]domain.AccountRef, error) {
	if containerID != p.containerID {
		return nil, nil
	}

	item, err := p.links.Get(p.containerID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	data, err := p.client.GetInvestmentsHoldings(ctx, item.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("plaid holdings fetch failed: %w", err)
	}

	out := make([]domain.AccountRef, 0, len(data.Accounts))
	for _, acct := range data.Accounts {
		if acct.AccountID == "" {
			continue
		}
		ref := domain.AccountRef{
			Source:      domain.SourceSchwab,
			ContainerID: p.containerID,
			AccountID:   acct.AccountID,
		}
		if acct.Name != "" {
			name := acct.Name
			ref.Name = &name
		}
		out = append(out, ref)
	}
	return out, nil
}

// GetHoldings implements domain.HoldingsProvider. Assets are keyed by ticker
// symbol with the opaque security id as a fallback; such holdings are still
// valued via the institution-supplied value.
func (p *Provider) GetHoldings(ctx context.Context, containerID string) ([]domain.Holding, error) {
	if containerID != p.containerID {
		return nil, nil
	}

	item, err := p.links.Get(p.containerID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	data, err := p.client.GetInvestmentsHoldings(ctx, item.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("plaid holdings fetch failed: %w", err)
	}

	securities := make(map[string]plaid.Security, len(data.Securities))
	for _, sec := range data.Securities {
		if sec.SecurityID != "" {
			securities[sec.SecurityID] = sec
		}
	}

	var holdings []domain.Holding
	for _, h := range data.Holdings {
		if h.AccountID == "" || h.SecurityID == "" {
			continue
		}

		sec := securities[h.SecurityID]
		asset := h.SecurityID
		if sec.TickerSymbol != nil && *sec.TickerSymbol != "" {
			asset = *sec.TickerSymbol
		}
		asset = strings.ToUpper(strings.TrimSpace(asset))
		if asset == "" {
			continue
		}
		if _, ignored := p.ignoredAssets[asset]; ignored {
			continue
		}

		qty := decimal.NewFromFloat(h.Quantity)
		if !qty.IsPositive() {
			continue
		}

		var price, marketValue *decimal.Decimal
		if h.InstitutionPrice != nil {
			v := decimal.NewFromFloat(*h.InstitutionPrice)
			price = &v
		}
		if h.InstitutionValue != nil {
			v := decimal.NewFromFloat(*h.InstitutionValue)
			marketValue = &v
		}
		if marketValue == nil && price != nil {
			v := qty.Mul(*price)
			marketValue = &v
		}

		accountID := h.AccountID
		holdings = append(holdings, domain.Holding{
			Source:        domain.SourceSchwab,
			ContainerID:   p.containerID,
			AccountID:     &accountID,
			Asset:         asset,
			Quantity:      qty,
			QuoteCurrency: "USD",
			Price:         price,
			MarketValue:   marketValue,
		})
	}
	return holdings, nil
}
