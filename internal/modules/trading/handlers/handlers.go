// Package handlers provides HTTP handlers for the trade scaffold.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/finagent-dev/finagent/internal/modules/trading"
)

// Handler handles trade preview and execution requests.
type Handler struct {
	service *trading.Service
	log     zerolog.Logger
}

// NewHandler creates a new trading handler.
func NewHandler(service *trading.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// HandlePreview validates a trade request body and returns the structured
// result. Previews never place orders; validation failures are 200s with
// errors in the body.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req trading.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, h.service.Preview(req))
}

// HandleExecute runs the execution path. confirm=true is required: without
// it the request is rejected with 409 before the body is even validated.
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	confirm := strings.EqualFold(r.URL.Query().Get("confirm"), "true")

	if !confirm {
		h.writeJSON(w, http.StatusConflict, trading.TradeExecutionResponse{
			Source:                    "coinbase",
			AsOf:                      time.Now().UTC(),
			Status:                    trading.StatusRejected,
			Message:                   "execution requires confirm=true",
			Errors:                    []string{"confirmation not provided"},
			Warnings:                  []string{},
			RequiresHumanConfirmation: true,
		})
		return
	}

	var req trading.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, h.service.Execute(req, confirm))
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
