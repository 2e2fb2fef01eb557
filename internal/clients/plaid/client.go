// Package plaid provides a minimal Plaid API client covering the link and
// investments-holdings flows used by the agent.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

var environmentHosts = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// Client for the Plaid API. Credentials travel in each request body, per
// Plaid convention.
type Client struct {
	baseURL  string
	clientID string
	secret   string
	client   *http.Client
	log      zerolog.Logger
}

// NewClient creates a Plaid client for the given environment (sandbox,
// development, or production).
func NewClient(clientID, secret, environment string, log zerolog.Logger) (*Client, error) {
	host, ok := environmentHosts[environment]
	if !ok {
		return nil, fmt.Errorf("unknown plaid environment: %s", environment)
	}
	return &Client{
		baseURL:  host,
		clientID: clientID,
		secret:   secret,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log.With().Str("client", "plaid").Logger(),
	}, nil
}

// LinkTokenResponse is the result of creating a Link token.
type LinkTokenResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

// CreateLinkToken creates a Link token for local single-user linking of an
// investments item.
func (c *Client) CreateLinkToken(ctx context.Context, clientName, userID string) (*LinkTokenResponse, error) {
	body := map[string]interface{}{
		"client_name":   clientName,
		"language":      "en",
		"country_codes": []string{"US"},
		"user":          map[string]string{"client_user_id": userID},
		"products":      []string{"investments"},
	}

	var out LinkTokenResponse
	if err := c.post(ctx, "/link/token/create", body, &out); err != nil {
		return nil, fmt.Errorf("failed to create link token: %w", err)
	}
	return &out, nil
}

// ExchangeResponse is the result of exchanging a public token.
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// ExchangePublicToken exchanges a Link public_token for a persistent
// access_token + item_id pair.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	body := map[string]interface{}{"public_token": publicToken}

	var out ExchangeResponse
	if err := c.post(ctx, "/item/public_token/exchange", body, &out); err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}
	return &out, nil
}

// HoldingsAccount is one investment account on a linked item.
type HoldingsAccount struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

// InvestmentHolding is one holding row, keyed into Securities by SecurityID.
type InvestmentHolding struct {
	AccountID        string   `json:"account_id"`
	SecurityID       string   `json:"security_id"`
	Quantity         float64  `json:"quantity"`
	InstitutionPrice *float64 `json:"institution_price"`
	InstitutionValue *float64 `json:"institution_value"`
}

// Security describes an instrument referenced by holdings.
type Security struct {
	SecurityID       string  `json:"security_id"`
	TickerSymbol     *string `json:"ticker_symbol"`
	Name             *string `json:"name"`
	Type             *string `json:"type"`
	IsCashEquivalent bool    `json:"is_cash_equivalent"`
}

// HoldingsResponse is the investments/holdings/get payload.
type HoldingsResponse struct {
	Accounts   []HoldingsAccount   `json:"accounts"`
	Holdings   []InvestmentHolding `json:"holdings"`
	Securities []Security          `json:"securities"`
}

// GetInvestmentsHoldings fetches holdings + securities for a linked item.
func (c *Client) GetInvestmentsHoldings(ctx context.Context, accessToken string) (*HoldingsResponse, error) {
	body := map[string]interface{}{"access_token": accessToken}

	var out HoldingsResponse
	if err := c.post(ctx, "/investments/holdings/get", body, &out); err != nil {
		return nil, fmt.Errorf("failed to get investments holdings: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]interface{}, out interface{}) error {
	body["client_id"] = c.clientID
	body["secret"] = c.secret

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("plaid returned status %d: %s", resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
