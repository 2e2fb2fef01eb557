// Package coinbase provides a minimal Coinbase Advanced Trade REST client.
// Only the endpoints the agent needs are implemented: account listing and
// public market tickers for spot prices.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.coinbase.com"

// Client for the Coinbase Advanced Trade API.
type Client struct {
	baseURL string
	client  *http.Client
	signer  *jwtSigner // nil when no credentials are configured
	log     zerolog.Logger
}

// NewClient creates a new Coinbase client. apiSecret is the PEM-encoded EC
// private key issued with the API key.
func NewClient(apiKey, apiSecret string, log zerolog.Logger) (*Client, error) {
	var signer *jwtSigner
	if apiKey != "" && apiSecret != "" {
		var err error
		signer, err = newJWTSigner(apiKey, apiSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Coinbase API secret: %w", err)
		}
	}

	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		signer:  signer,
		log:     log.With().Str("client", "coinbase").Logger(),
	}, nil
}

// Balance is a currency amount as reported by Coinbase.
type Balance struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Account is one raw Coinbase Advanced Trade account record.
type Account struct {
	UUID             string  `json:"uuid"`
	Name             string  `json:"name"`
	Currency         string  `json:"currency"`
	AvailableBalance Balance `json:"available_balance"`
	Hold             Balance `json:"hold"`
}

type listAccountsResponse struct {
	Accounts []Account `json:"accounts"`
	HasNext  bool      `json:"has_next"`
	Cursor   string    `json:"cursor"`
}

// ListAccounts returns all Advanced Trade accounts, following pagination and
// deduplicating by account UUID.
//
// Backed by GET /api/v3/brokerage/accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("coinbase credentials not configured")
	}

	seen := make(map[string]struct{})
	var accounts []Account
	cursor := ""

	for {
		path := "/api/v3/brokerage/accounts"
		query := url.Values{"limit": {"250"}}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var page listAccountsResponse
		if err := c.get(ctx, path, query, true, &page); err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}

		for _, acct := range page.Accounts {
			if acct.UUID == "" {
				continue
			}
			if _, dup := seen[acct.UUID]; dup {
				continue
			}
			seen[acct.UUID] = struct{}{}
			accounts = append(accounts, acct)
		}

		if !page.HasNext || page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	c.log.Debug().Int("count", len(accounts)).Msg("Listed accounts")
	return accounts, nil
}

type tickerResponse struct {
	Trades []struct {
		Price string `json:"price"`
	} `json:"trades"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

// GetSpotPrice returns the last trade price for a product id such as
// "BTC-USD". Returns nil (no error) when the product does not exist or no
// usable price is available: a single asset's missing price is data, not a
// failure.
//
// Backed by the public market data endpoint
// GET /api/v3/brokerage/market/products/{product_id}/ticker.
func (c *Client) GetSpotPrice(ctx context.Context, productID string) (*decimal.Decimal, error) {
	path := fmt.Sprintf("/api/v3/brokerage/market/products/%s/ticker", url.PathEscape(productID))
	query := url.Values{"limit": {"1"}}

	var ticker tickerResponse
	if err := c.get(ctx, path, query, false, &ticker); err != nil {
		c.log.Debug().Err(err).Str("product_id", productID).Msg("Spot price unavailable")
		return nil, nil
	}

	raw := ""
	if len(ticker.Trades) > 0 {
		raw = ticker.Trades[0].Price
	}
	if raw == "" {
		raw = ticker.BestBid
	}
	if raw == "" {
		return nil, nil
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		c.log.Warn().Str("product_id", productID).Str("price", raw).Msg("Unparsable ticker price")
		return nil, nil
	}
	return &price, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, authed bool, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if authed {
		token, err := c.signer.Sign(http.MethodGet, "api.coinbase.com", path)
		if err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coinbase returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
