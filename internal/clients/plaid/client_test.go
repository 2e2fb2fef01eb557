package plaid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	client, _ := NewClient("client-id", "secret-1", "sandbox", zerolog.New(nil).Level(zerolog.Disabled))
	client.baseURL = serverURL
	return client
}

func TestNewClientRejectsUnknownEnvironment(t *testing.T) {
	_, err := NewClient("id", "secret", "staging", zerolog.New(nil).Level(zerolog.Disabled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown plaid environment")
}

func TestCreateLinkTokenSendsCredentialsInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/link/token/create", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client-id", body["client_id"])
		assert.Equal(t, "secret-1", body["secret"])
		assert.Equal(t, "finagent", body["client_name"])
		assert.Equal(t, []interface{}{"investments"}, body["products"])

		fmt.Fprint(w, `{"link_token": "link-token-1", "expiration": "2026-08-30T00:00:00Z", "request_id": "req-1"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	token, err := client.CreateLinkToken(context.Background(), "finagent", "finagent-local-user")
	require.NoError(t, err)
	assert.Equal(t, "link-token-1", token.LinkToken)
}

func TestExchangePublicToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item/public_token/exchange", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "public-1", body["public_token"])

		fmt.Fprint(w, `{"access_token": "access-1", "item_id": "item-1", "request_id": "req-2"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	exchanged, err := client.ExchangePublicToken(context.Background(), "public-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", exchanged.AccessToken)
	assert.Equal(t, "item-1", exchanged.ItemID)
}

func TestGetInvestmentsHoldings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/investments/holdings/get", r.URL.Path)
		fmt.Fprint(w, `{
			"accounts": [{"account_id": "acct-1", "name": "Brokerage"}],
			"holdings": [{"account_id": "acct-1", "security_id": "sec-1", "quantity": 2, "institution_price": 211.5, "institution_value": 423}],
			"securities": [{"security_id": "sec-1", "ticker_symbol": "SCHB"}]
		}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	data, err := client.GetInvestmentsHoldings(context.Background(), "access-1")
	require.NoError(t, err)

	require.Len(t, data.Accounts, 1)
	require.Len(t, data.Holdings, 1)
	require.Len(t, data.Securities, 1)
	assert.Equal(t, 2.0, data.Holdings[0].Quantity)
	require.NotNil(t, data.Holdings[0].InstitutionValue)
	assert.Equal(t, 423.0, *data.Holdings[0].InstitutionValue)
	require.NotNil(t, data.Securities[0].TickerSymbol)
	assert.Equal(t, "SCHB", *data.Securities[0].TickerSymbol)
}

func TestErrorResponseIncludesStatusAndSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error_code": "INVALID_PUBLIC_TOKEN"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ExchangePublicToken(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "INVALID_PUBLIC_TOKEN")
}
