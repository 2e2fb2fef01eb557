// Package coldstorage implements the holdings provider capability for the
// user-maintained cold storage ledger. Each device is a container with no
// sub-accounts.
package coldstorage

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/finagent-dev/finagent/internal/coldstorage"
	"github.com/finagent-dev/finagent/internal/domain"
)

// Provider reads holdings from the cold storage file on every call; the file
// is the user's source of truth and is never cached.
type Provider struct {
	path          string
	ignoredAssets map[string]struct{}
	log           zerolog.Logger
}

// NewProvider creates a cold storage holdings provider for the given file.
func NewProvider(path string, ignoredAssets map[string]struct{}, log zerolog.Logger) *Provider {
	return &Provider{
		path:          path,
		ignoredAssets: ignoredAssets,
		log:           log.With().Str("provider", domain.SourceColdStorage).Logger(),
	}
}

// Source implements domain.HoldingsProvider.
func (p *Provider) Source() string { return domain.SourceColdStorage }

// ListContainers implements domain.HoldingsProvider. A missing file means no
// devices, not an error.
func (p *Provider) ListContainers(ctx context.Context) ([]domain.ContainerRef, error) {
	devices, err := coldstorage.LoadDevices(p.path)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ContainerRef, 0, len(devices))
	for _, device := range devices {
		name := device.Name
		out = append(out, domain.ContainerRef{
			Source:      domain.SourceColdStorage,
			ContainerID: device.Name,
			Name:        &name,
		})
	}
	return out, nil
}

// ListAccounts implements domain.HoldingsProvider. Devices have no
// sub-account concept.
func (p *Provider) ListAccounts(ctx context.Context, containerID string) ([]domain.AccountRef, error) {
	return nil, nil
}

// GetHoldings implements domain.HoldingsProvider.
func (p *Provider) GetHoldings(ctx context.Context, containerID string) ([]domain.Holding, error) {
	devices, err := coldstorage.LoadDevices(p.path)
	if err != nil {
		return nil, err
	}

	for _, device := range devices {
		if device.Name != containerID {
			continue
		}

		var holdings []domain.Holding
		for asset, qty := range device.Holdings {
			symbol := strings.ToUpper(strings.TrimSpace(asset))
			if symbol == "" || !qty.IsPositive() {
				continue
			}
			if _, ignored := p.ignoredAssets[symbol]; ignored {
				continue
			}
			holdings = append(holdings, domain.Holding{
				Source:        domain.SourceColdStorage,
				ContainerID:   device.Name,
				Asset:         symbol,
				Quantity:      qty,
				QuoteCurrency: "USD",
			})
		}
		return holdings, nil
	}

	// Unknown device: empty, not an error.
	return nil, nil
}
