package trading

import "time"

// Order sides and types accepted by the scaffold.
const (
	SideBuy  = "buy"
	SideSell = "sell"

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// Execution statuses.
const (
	StatusRejected       = "rejected"
	StatusNotImplemented = "not_implemented"
	StatusSubmitted      = "submitted"
)

// TradeRequest is a proposed trade. Quantities and prices are decimal
// strings; they are parsed (never trusted) during validation.
type TradeRequest struct {
	Source        string  `json:"source"`
	AccountID     *string `json:"account_id,omitempty"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	OrderType     string  `json:"order_type"`
	Quantity      string  `json:"quantity"`
	QuoteCurrency string  `json:"quote_currency"`
	LimitPrice    *string `json:"limit_price,omitempty"`
	ClientOrderID *string `json:"client_order_id,omitempty"`
	Rationale     *string `json:"rationale,omitempty"`
}

// TradePreview is the structured result of validating a trade without
// placing it. Validation failures are data, never errors, so an automated
// caller can inspect and react without special-casing exceptions.
type TradePreview struct {
	Source  string       `json:"source"`
	AsOf    time.Time    `json:"as_of"`
	Request TradeRequest `json:"request"`

	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`

	RequiresHumanConfirmation bool `json:"requires_human_confirmation"`
	ExecutionReady            bool `json:"execution_ready"`
}

// TradeExecutionResponse is the result of an execution attempt. Order
// routing is deliberately unimplemented: a fully valid, confirmed request
// reaches status "not_implemented" without any upstream call.
type TradeExecutionResponse struct {
	Source  string       `json:"source"`
	AsOf    time.Time    `json:"as_of"`
	Request TradeRequest `json:"request"`

	Status  string `json:"status"`
	Message string `json:"message"`

	BrokerOrderID *string `json:"broker_order_id,omitempty"`
	SubmissionID  *string `json:"submission_id,omitempty"`

	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`

	RequiresHumanConfirmation bool `json:"requires_human_confirmation"`
	ExecutionReady            bool `json:"execution_ready"`
}
