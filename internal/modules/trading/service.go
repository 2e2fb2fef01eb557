// Package trading implements the human-in-the-loop trade validation and
// execution scaffold. All checks are deterministic, stateless rules on the
// request itself plus the configured safety rails (symbol allowlist,
// notional cap, confirmation requirement).
package trading

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service validates proposed trades against the configured safety rails.
type Service struct {
	allowedSymbols map[string]struct{}
	maxNotionalUSD *decimal.Decimal
	now            func() time.Time
	log            zerolog.Logger
}

// NewService creates a trading service. allowedSymbols is the execution
// allowlist; maxNotionalUSD caps the order notional (nil means no cap).
func NewService(allowedSymbols map[string]struct{}, maxNotionalUSD *decimal.Decimal, log zerolog.Logger) *Service {
	return &Service{
		allowedSymbols: allowedSymbols,
		maxNotionalUSD: maxNotionalUSD,
		now:            func() time.Time { return time.Now().UTC() },
		log:            log.With().Str("service", "trading").Logger(),
	}
}

// validation accumulates rule outcomes for one request.
type validation struct {
	errors   []string
	warnings []string
}

func (v *validation) errorf(msg string)   { v.errors = append(v.errors, msg) }
func (v *validation) warnf(msg string)    { v.warnings = append(v.warnings, msg) }
func (v *validation) valid() bool         { return len(v.errors) == 0 }
func (v *validation) errorList() []string { return emptyNotNil(v.errors) }
func (v *validation) warnList() []string  { return emptyNotNil(v.warnings) }

// validate runs every rule on the request. forExecution additionally
// enforces the rules that are warnings at preview time (allowlist membership,
// client order id presence).
func (s *Service) validate(req TradeRequest, forExecution bool) *validation {
	v := &validation{}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		v.errorf("symbol is required")
	}

	switch req.Side {
	case SideBuy, SideSell:
	case "":
		v.errorf("side is required")
	default:
		v.errorf("side must be 'buy' or 'sell'")
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = OrderTypeMarket
	}
	switch orderType {
	case OrderTypeMarket, OrderTypeLimit:
	default:
		v.errorf("order_type must be 'market' or 'limit'")
	}

	var quantity *decimal.Decimal
	if strings.TrimSpace(req.Quantity) == "" {
		v.errorf("quantity is required")
	} else if parsed, err := decimal.NewFromString(strings.TrimSpace(req.Quantity)); err != nil {
		v.errorf("quantity must be a decimal number")
	} else if !parsed.IsPositive() {
		v.errorf("quantity must be positive")
	} else {
		quantity = &parsed
	}

	var limitPrice *decimal.Decimal
	if req.LimitPrice != nil && strings.TrimSpace(*req.LimitPrice) != "" {
		if parsed, err := decimal.NewFromString(strings.TrimSpace(*req.LimitPrice)); err != nil {
			v.errorf("limit_price must be a decimal number")
		} else if !parsed.IsPositive() {
			v.errorf("limit_price must be positive")
		} else {
			limitPrice = &parsed
		}
	}

	if orderType == OrderTypeLimit && (req.LimitPrice == nil || strings.TrimSpace(*req.LimitPrice) == "") {
		v.errorf("limit_price is required for limit orders")
	}
	if orderType == OrderTypeMarket && req.LimitPrice != nil {
		v.warnf("limit_price is ignored for market orders")
	}

	// Notional cap applies when both legs are known.
	if s.maxNotionalUSD != nil && quantity != nil && limitPrice != nil {
		notional := quantity.Mul(*limitPrice)
		if notional.GreaterThan(*s.maxNotionalUSD) {
			v.errorf("order notional " + notional.String() + " exceeds configured cap " + s.maxNotionalUSD.String())
		}
	}

	if symbol != "" {
		if _, allowed := s.allowedSymbols[symbol]; !allowed {
			if forExecution {
				v.errorf("symbol " + symbol + " is not in the execution allowlist")
			} else {
				v.warnf("symbol " + symbol + " is not in the execution allowlist; execution will be rejected")
			}
		}
	}

	if req.ClientOrderID == nil || strings.TrimSpace(*req.ClientOrderID) == "" {
		if forExecution {
			v.errorf("client_order_id is required for execution")
		} else {
			v.warnf("client_order_id is missing; one is required for execution")
		}
	}

	return v
}

// Preview validates a trade request without placing an order. It never
// returns an error: the outcome is always a structured result.
func (s *Service) Preview(req TradeRequest) TradePreview {
	v := s.validate(req, false)

	s.log.Info().
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Bool("is_valid", v.valid()).
		Int("errors", len(v.errors)).
		Msg("Trade preview")

	return TradePreview{
		Source:                    sourceOrDefault(req.Source),
		AsOf:                      s.now(),
		Request:                   req,
		IsValid:                   v.valid(),
		Errors:                    v.errorList(),
		Warnings:                  v.warnList(),
		RequiresHumanConfirmation: true,
		ExecutionReady:            v.valid() && s.validate(req, true).valid(),
	}
}

// Execute runs the execution path. Without confirm=true the request is
// rejected deterministically before any validation or upstream call. A
// confirmed request re-runs every rule plus the execution-only ones; a fully
// valid request reaches "not_implemented" since order routing is a placeholder.
func (s *Service) Execute(req TradeRequest, confirm bool) TradeExecutionResponse {
	resp := TradeExecutionResponse{
		Source:                    sourceOrDefault(req.Source),
		AsOf:                      s.now(),
		Request:                   req,
		Errors:                    []string{},
		Warnings:                  []string{},
		RequiresHumanConfirmation: true,
	}

	if !confirm {
		resp.Status = StatusRejected
		resp.Message = "execution requires confirm=true"
		resp.Errors = []string{"confirmation not provided"}
		return resp
	}

	v := s.validate(req, true)
	resp.Errors = v.errorList()
	resp.Warnings = v.warnList()

	if !v.valid() {
		s.log.Warn().
			Str("symbol", req.Symbol).
			Strs("errors", v.errors).
			Msg("Trade execution rejected")
		resp.Status = StatusRejected
		resp.Message = "trade failed validation"
		return resp
	}

	submissionID := uuid.NewString()
	resp.SubmissionID = &submissionID
	resp.ExecutionReady = true
	resp.Status = StatusNotImplemented
	resp.Message = "validation passed; order routing is not implemented"

	s.log.Info().
		Str("symbol", req.Symbol).
		Str("submission_id", submissionID).
		Msg("Trade accepted by scaffold (no order placed)")
	return resp
}

func sourceOrDefault(source string) string {
	if source == "" {
		return "coinbase"
	}
	return source
}

func emptyNotNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
