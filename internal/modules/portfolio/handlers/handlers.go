// Package handlers provides HTTP handlers for portfolio valuation views.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finagent-dev/finagent/internal/clients/coinbase"
	"github.com/finagent-dev/finagent/internal/domain"
	"github.com/finagent-dev/finagent/internal/modules/portfolio"
)

// ExchangeClient is the slice of the Coinbase client the legacy raw-account
// view needs.
type ExchangeClient interface {
	ListAccounts(ctx context.Context) ([]coinbase.Account, error)
}

// Handler handles portfolio HTTP requests.
type Handler struct {
	service  *portfolio.Service
	exchange ExchangeClient
	pricer   domain.PricingProvider
	log      zerolog.Logger
}

// NewHandler creates a new portfolio handler.
func NewHandler(service *portfolio.Service, exchange ExchangeClient, pricer domain.PricingProvider, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		exchange: exchange,
		pricer:   pricer,
		log:      log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio returns the full multi-source portfolio valuation.
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	computed, err := h.service.ComputePortfolio(r.Context())
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, computed.Portfolio)
}

// HandleGetNetWorth returns the total net worth across all sources.
func (h *Handler) HandleGetNetWorth(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetNetWorth(r.Context())
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetContainers returns value summaries for every container across all
// sources, including empty containers at zero.
func (h *Handler) HandleGetContainers(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.GetContainerSummaries(r.Context())
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// HandleGetContainerAccounts returns the sub-accounts of one container.
func (h *Handler) HandleGetContainerAccounts(w http.ResponseWriter, r *http.Request) {
	source, containerID, ok := h.requireContainerParams(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), source, containerID)
	if err != nil {
		if errors.Is(err, portfolio.ErrUnknownSource) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeUpstreamError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.AccountRef{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":       source,
		"container_id": containerID,
		"accounts":     accounts,
	})
}

// HandleGetContainerValue returns one container's (or one account's) total.
func (h *Handler) HandleGetContainerValue(w http.ResponseWriter, r *http.Request) {
	source, containerID, ok := h.requireContainerParams(w, r)
	if !ok {
		return
	}
	accountID := optionalQuery(r, "account_id")

	if accountID == nil {
		summary, err := h.service.GetContainerValue(r.Context(), source, containerID)
		if err != nil {
			h.writeLookupError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, summary)
		return
	}

	// Account-scoped totals come from the holdings view, which already
	// aggregates a single account when asked to.
	holdings, err := h.service.GetContainerHoldings(r.Context(), source, containerID, accountID)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":       holdings.Source,
		"as_of":        holdings.AsOf,
		"container_id": holdings.ContainerID,
		"account_id":   holdings.AccountID,
		"currency":     holdings.Currency,
		"total_value":  holdings.TotalValue,
	})
}

// HandleGetContainerHoldings returns the flattened priced holdings for one
// container or one account within it.
func (h *Handler) HandleGetContainerHoldings(w http.ResponseWriter, r *http.Request) {
	source, containerID, ok := h.requireContainerParams(w, r)
	if !ok {
		return
	}
	accountID := optionalQuery(r, "account_id")

	holdings, err := h.service.GetContainerHoldings(r.Context(), source, containerID, accountID)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, holdings)
}

// legacyAccount is the normalized raw-account shape of the original
// single-exchange surface.
type legacyAccount struct {
	Source    string  `json:"source"`
	AccountID string  `json:"account_id"`
	Name      *string `json:"name,omitempty"`
	Asset     string  `json:"asset"`
	Available string  `json:"available"`
	Total     string  `json:"total"`
}

// HandleGetAccounts returns raw accounts for the primary exchange.
func (h *Handler) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.exchange.ListAccounts(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "coinbase error: "+err.Error())
		return
	}

	normalized := make([]legacyAccount, 0, len(accounts))
	for _, acct := range accounts {
		entry := legacyAccount{
			Source:    domain.SourceCoinbase,
			AccountID: acct.UUID,
			Asset:     acct.Currency,
			Available: acct.AvailableBalance.Value,
			Total:     acct.AvailableBalance.Value,
		}
		if acct.Name != "" {
			name := acct.Name
			entry.Name = &name
		}
		normalized = append(normalized, entry)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":   domain.SourceCoinbase,
		"accounts": normalized,
	})
}

// HandleGetPositions returns priced non-cash holdings for the primary
// exchange.
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	_, positions, err := h.service.ComputeSourceValuation(r.Context(), domain.SourceCoinbase)
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	if positions == nil {
		positions = []portfolio.Position{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":    domain.SourceCoinbase,
		"as_of":     time.Now().UTC(),
		"positions": positions,
	})
}

// HandleGetSnapshot returns accounts, positions, and cash for the primary
// exchange in one response.
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.exchange.ListAccounts(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "coinbase error: "+err.Error())
		return
	}

	cash, positions, err := h.service.ComputeSourceValuation(r.Context(), domain.SourceCoinbase)
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	if cash == nil {
		cash = []portfolio.CashBalance{}
	}
	if positions == nil {
		positions = []portfolio.Position{}
	}

	normalized := make([]legacyAccount, 0, len(accounts))
	for _, acct := range accounts {
		entry := legacyAccount{
			Source:    domain.SourceCoinbase,
			AccountID: acct.UUID,
			Asset:     acct.Currency,
			Available: acct.AvailableBalance.Value,
			Total:     acct.AvailableBalance.Value,
		}
		if acct.Name != "" {
			name := acct.Name
			entry.Name = &name
		}
		normalized = append(normalized, entry)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":    domain.SourceCoinbase,
		"as_of":     time.Now().UTC(),
		"accounts":  normalized,
		"positions": positions,
		"cash":      cash,
	})
}

// HandleGetValue returns the legacy single-source USD total with its missing
// price list.
func (h *Handler) HandleGetValue(w http.ResponseWriter, r *http.Request) {
	cash, positions, err := h.service.ComputeSourceValuation(r.Context(), domain.SourceCoinbase)
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}

	total := decimal.Zero
	for _, c := range cash {
		total = total.Add(c.Total)
	}
	missing := make(map[string]struct{})
	for _, p := range positions {
		if p.MarketValue != nil {
			total = total.Add(*p.MarketValue)
		} else {
			missing[p.Asset] = struct{}{}
		}
	}

	missingSorted := make([]string, 0, len(missing))
	for asset := range missing {
		missingSorted = append(missingSorted, asset)
	}
	sort.Strings(missingSorted)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":         domain.SourceCoinbase,
		"as_of":          time.Now().UTC(),
		"currency":       "USD",
		"total_value":    total,
		"missing_prices": missingSorted,
	})
}

// HandleGetPrice returns a single spot price lookup.
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	quote := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("quote_currency")))
	if quote == "" {
		quote = "USD"
	}

	prices, err := h.pricer.GetPrices(r.Context(), map[string]struct{}{symbol: {}}, quote)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "price lookup failed: "+err.Error())
		return
	}

	price, ok := prices[symbol]
	if !ok {
		h.writeError(w, http.StatusBadGateway, "price unavailable for "+symbol)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":     h.pricer.ProviderID(),
		"as_of":      time.Now().UTC(),
		"product_id": symbol + "-" + quote,
		"price":      price,
	})
}

func (h *Handler) requireContainerParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	containerID := strings.TrimSpace(r.URL.Query().Get("container_id"))
	if source == "" || containerID == "" {
		h.writeError(w, http.StatusBadRequest, "source and container_id query parameters are required")
		return "", "", false
	}
	return source, containerID, true
}

func optionalQuery(r *http.Request, key string) *string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil
	}
	return &value
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, portfolio.ErrContainerNotFound) || errors.Is(err, portfolio.ErrUnknownSource) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.writeUpstreamError(w, err)
}

// writeUpstreamError maps provider failures to a gateway-style error: no
// partial totals are ever reported.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("Valuation failed")
	h.writeError(w, http.StatusBadGateway, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
