// Package coinbase implements the holdings provider capability for the
// primary exchange.
package coinbase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finagent-dev/finagent/internal/clients/coinbase"
	"github.com/finagent-dev/finagent/internal/domain"
)

const containerID = "coinbase"

// AccountClient is the slice of the Coinbase client the provider needs.
type AccountClient interface {
	ListAccounts(ctx context.Context) ([]coinbase.Account, error)
}

// Provider exposes Coinbase Advanced Trade accounts as a single container
// with one sub-account per wallet.
type Provider struct {
	client        AccountClient
	ignoredAssets map[string]struct{}
	log           zerolog.Logger
}

// NewProvider creates a Coinbase holdings provider.
func NewProvider(client AccountClient, ignoredAssets map[string]struct{}, log zerolog.Logger) *Provider {
	return &Provider{
		client:        client,
		ignoredAssets: ignoredAssets,
		log:           log.With().Str("provider", domain.SourceCoinbase).Logger(),
	}
}

// Source implements domain.HoldingsProvider.
func (p *Provider) Source() string { return domain.SourceCoinbase }

// ListContainers implements domain.HoldingsProvider. Coinbase is modeled as
// one fixed container.
func (p *Provider) ListContainers(ctx context.Context) ([]domain.ContainerRef, error) {
	name := "Coinbase"
	return []domain.ContainerRef{
		{Source: domain.SourceCoinbase, ContainerID: containerID, Name: &name},
	}, nil
}

// ListAccounts implements domain.HoldingsProvider. Each Coinbase wallet with
// a usable UUID becomes a sub-account; wallets for ignored assets are
// skipped.
func (p *Provider) ListAccounts(ctx context.Context, id string) ([]domain.AccountRef, error) {
	if id != containerID {
		return nil, nil
	}

	accounts, err := p.client.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("coinbase account listing failed: %w", err)
	}

	out := make([]domain.AccountRef, 0, len(accounts))
	for _, acct := range accounts {
		if acct.UUID == "" {
			continue
		}
		if _, ignored := p.ignoredAssets[normalizeAsset(acct.Currency)]; ignored {
			continue
		}

		ref := domain.AccountRef{
			Source:      domain.SourceCoinbase,
			ContainerID: containerID,
			AccountID:   acct.UUID,
		}
		if acct.Name != "" {
			name := acct.Name
			ref.Name = &name
		}
		out = append(out, ref)
	}
	return out, nil
}

// GetHoldings implements domain.HoldingsProvider. Quantity is available plus
// hold; non-positive quantities, blank assets, and ignored assets are
// filtered here (the valuation layer re-validates regardless).
func (p *Provider) GetHoldings(ctx context.Context, id string) ([]domain.Holding, error) {
	if id != containerID {
		return nil, nil
	}

	accounts, err := p.client.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("coinbase account listing failed: %w", err)
	}

	var holdings []domain.Holding
	for _, acct := range accounts {
		asset := normalizeAsset(acct.Currency)
		if asset == "" || acct.UUID == "" {
			continue
		}
		if _, ignored := p.ignoredAssets[asset]; ignored {
			continue
		}

		qty := parseDecimal(acct.AvailableBalance.Value).Add(parseDecimal(acct.Hold.Value))
		if !qty.IsPositive() {
			continue
		}

		accountID := acct.UUID
		holdings = append(holdings, domain.Holding{
			Source:        domain.SourceCoinbase,
			ContainerID:   containerID,
			AccountID:     &accountID,
			Asset:         asset,
			Quantity:      qty,
			QuoteCurrency: "USD",
		})
	}
	return holdings, nil
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func parseDecimal(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return parsed
}
