package trading

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTradingService(allowed []string, maxNotional string) *Service {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, symbol := range allowed {
		allowedSet[symbol] = struct{}{}
	}
	var notionalCap *decimal.Decimal
	if maxNotional != "" {
		parsed := decimal.RequireFromString(maxNotional)
		notionalCap = &parsed
	}
	return NewService(allowedSet, notionalCap, zerolog.New(nil).Level(zerolog.Disabled))
}

func strPtr(s string) *string { return &s }

func validRequest() TradeRequest {
	return TradeRequest{
		Symbol:        "BTC-USD",
		Side:          SideBuy,
		OrderType:     OrderTypeLimit,
		Quantity:      "0.01",
		QuoteCurrency: "USD",
		LimitPrice:    strPtr("50000"),
		ClientOrderID: strPtr("order-123"),
	}
}

func TestPreviewValidRequest(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	preview := service.Preview(validRequest())

	assert.True(t, preview.IsValid)
	assert.True(t, preview.ExecutionReady)
	assert.True(t, preview.RequiresHumanConfirmation)
	assert.Empty(t, preview.Errors)
	assert.Empty(t, preview.Warnings)
	assert.Equal(t, "coinbase", preview.Source)
}

func TestPreviewLimitOrderRequiresLimitPrice(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	req := validRequest()
	req.LimitPrice = nil
	preview := service.Preview(req)

	assert.False(t, preview.IsValid)
	assert.Contains(t, preview.Errors, "limit_price is required for limit orders")
}

func TestPreviewBlankLimitPriceTreatedAsMissing(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	req := validRequest()
	req.LimitPrice = strPtr("   ")
	preview := service.Preview(req)

	assert.False(t, preview.IsValid)
	assert.Contains(t, preview.Errors, "limit_price is required for limit orders")
}

func TestPreviewInvalidFields(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	req := TradeRequest{
		Symbol:    "",
		Side:      "hold",
		OrderType: "stop",
		Quantity:  "-3",
	}
	preview := service.Preview(req)

	assert.False(t, preview.IsValid)
	assert.Contains(t, preview.Errors, "symbol is required")
	assert.Contains(t, preview.Errors, "side must be 'buy' or 'sell'")
	assert.Contains(t, preview.Errors, "order_type must be 'market' or 'limit'")
	assert.Contains(t, preview.Errors, "quantity must be positive")
}

func TestPreviewNonNumericQuantity(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	req := validRequest()
	req.Quantity = "lots"
	preview := service.Preview(req)

	assert.False(t, preview.IsValid)
	assert.Contains(t, preview.Errors, "quantity must be a decimal number")
}

func TestPreviewDefaultsToMarketOrder(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	req := validRequest()
	req.OrderType = ""
	req.LimitPrice = nil
	preview := service.Preview(req)

	assert.True(t, preview.IsValid)
}

func TestPreviewMarketOrderWithLimitPriceWarns(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	req := validRequest()
	req.OrderType = OrderTypeMarket
	preview := service.Preview(req)

	assert.True(t, preview.IsValid)
	assert.Contains(t, preview.Warnings, "limit_price is ignored for market orders")
}

func TestPreviewAllowlistMissWarnsButStaysValid(t *testing.T) {
	service := newTestTradingService([]string{"ETH-USD"}, "")

	preview := service.Preview(validRequest())

	assert.True(t, preview.IsValid)
	assert.False(t, preview.ExecutionReady)
	require.Len(t, preview.Warnings, 1)
	assert.Contains(t, preview.Warnings[0], "not in the execution allowlist")
}

func TestPreviewNotionalCap(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "100")

	req := validRequest()
	req.Quantity = "1"
	req.LimitPrice = strPtr("50000")
	preview := service.Preview(req)

	assert.False(t, preview.IsValid)
	require.Len(t, preview.Errors, 1)
	assert.Contains(t, preview.Errors[0], "exceeds configured cap")
}

func TestPreviewMissingClientOrderIDWarns(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	req := validRequest()
	req.ClientOrderID = nil
	preview := service.Preview(req)

	assert.True(t, preview.IsValid)
	assert.False(t, preview.ExecutionReady)
	require.Len(t, preview.Warnings, 1)
	assert.Contains(t, preview.Warnings[0], "client_order_id is missing")
}

func TestExecuteWithoutConfirmRejectsBeforeValidation(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	// Even a completely broken request is rejected on the confirm gate
	// alone; no validation output leaks through.
	resp := service.Execute(TradeRequest{}, false)

	assert.Equal(t, StatusRejected, resp.Status)
	assert.Equal(t, []string{"confirmation not provided"}, resp.Errors)
	assert.Empty(t, resp.Warnings)
	assert.Nil(t, resp.SubmissionID)
	assert.False(t, resp.ExecutionReady)
}

func TestExecuteConfirmedValidReachesNotImplemented(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	resp := service.Execute(validRequest(), true)

	assert.Equal(t, StatusNotImplemented, resp.Status)
	assert.True(t, resp.ExecutionReady)
	require.NotNil(t, resp.SubmissionID)
	assert.NotEmpty(t, *resp.SubmissionID)
	assert.Empty(t, resp.Errors)
	assert.Nil(t, resp.BrokerOrderID)
}

func TestExecuteAllowlistMissIsAnError(t *testing.T) {
	service := newTestTradingService([]string{"ETH-USD"}, "")

	resp := service.Execute(validRequest(), true)

	assert.Equal(t, StatusRejected, resp.Status)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "not in the execution allowlist")
	assert.Nil(t, resp.SubmissionID)
}

func TestExecuteRequiresClientOrderID(t *testing.T) {
	service := newTestTradingService([]string{"BTC-USD"}, "")

	req := validRequest()
	req.ClientOrderID = nil
	resp := service.Execute(req, true)

	assert.Equal(t, StatusRejected, resp.Status)
	assert.Contains(t, resp.Errors, "client_order_id is required for execution")
}
