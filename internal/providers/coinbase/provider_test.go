package coinbase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finagent-dev/finagent/internal/clients/coinbase"
)

type mockAccountClient struct {
	accounts []coinbase.Account
	err      error
}

func (m *mockAccountClient) ListAccounts(ctx context.Context) ([]coinbase.Account, error) {
	return m.accounts, m.err
}

func newTestProvider(client *mockAccountClient, ignored ...string) *Provider {
	ignoredSet := make(map[string]struct{}, len(ignored))
	for _, asset := range ignored {
		ignoredSet[asset] = struct{}{}
	}
	return NewProvider(client, ignoredSet, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestListContainersIsFixed(t *testing.T) {
	provider := newTestProvider(&mockAccountClient{})

	containers, err := provider.ListContainers(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "coinbase", containers[0].ContainerID)
	require.NotNil(t, containers[0].Name)
	assert.Equal(t, "Coinbase", *containers[0].Name)
}

func TestListAccountsSkipsIgnoredAndBlankUUIDs(t *testing.T) {
	client := &mockAccountClient{accounts: []coinbase.Account{
		{UUID: "a-1", Name: "BTC Wallet", Currency: "BTC"},
		{UUID: "", Name: "Ghost", Currency: "ETH"},
		{UUID: "a-2", Name: "WLUNA Wallet", Currency: "WLUNA"},
	}}
	provider := newTestProvider(client, "WLUNA")

	accounts, err := provider.ListAccounts(context.Background(), "coinbase")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "a-1", accounts[0].AccountID)
	require.NotNil(t, accounts[0].Name)
	assert.Equal(t, "BTC Wallet", *accounts[0].Name)
}

func TestListAccountsOtherContainer(t *testing.T) {
	provider := newTestProvider(&mockAccountClient{})

	accounts, err := provider.ListAccounts(context.Background(), "something-else")
	require.NoError(t, err)
	assert.Nil(t, accounts)
}

func TestGetHoldingsSumsAvailableAndHold(t *testing.T) {
	client := &mockAccountClient{accounts: []coinbase.Account{
		{
			UUID:             "a-1",
			Currency:         "BTC",
			AvailableBalance: coinbase.Balance{Value: "0.10", Currency: "BTC"},
			Hold:             coinbase.Balance{Value: "0.02", Currency: "BTC"},
		},
	}}
	provider := newTestProvider(client)

	holdings, err := provider.GetHoldings(context.Background(), "coinbase")
	require.NoError(t, err)
	require.Len(t, holdings, 1)

	h := holdings[0]
	assert.Equal(t, "BTC", h.Asset)
	assert.True(t, decimal.RequireFromString("0.12").Equal(h.Quantity))
	require.NotNil(t, h.AccountID)
	assert.Equal(t, "a-1", *h.AccountID)
	assert.Nil(t, h.Price)
	assert.Nil(t, h.MarketValue)
}

func TestGetHoldingsFiltersZeroAndIgnored(t *testing.T) {
	client := &mockAccountClient{accounts: []coinbase.Account{
		{UUID: "a-1", Currency: "BTC", AvailableBalance: coinbase.Balance{Value: "0"}},
		{UUID: "a-2", Currency: "WLUNA", AvailableBalance: coinbase.Balance{Value: "999"}},
		{UUID: "a-3", Currency: "", AvailableBalance: coinbase.Balance{Value: "5"}},
		{UUID: "a-4", Currency: "eth", AvailableBalance: coinbase.Balance{Value: "2"}},
	}}
	provider := newTestProvider(client, "WLUNA")

	holdings, err := provider.GetHoldings(context.Background(), "coinbase")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "ETH", holdings[0].Asset)
}

func TestGetHoldingsUpstreamErrorPropagates(t *testing.T) {
	client := &mockAccountClient{err: errors.New("auth failed")}
	provider := newTestProvider(client)

	_, err := provider.GetHoldings(context.Background(), "coinbase")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth failed")
}
