// Package link provides HTTP handlers for managing the brokerage-aggregator
// linkage: creating Link tokens, exchanging public tokens, and removing
// stored items.
package link

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/finagent-dev/finagent/internal/clients/plaid"
	"github.com/finagent-dev/finagent/internal/store"
)

// AggregatorClient is the slice of the Plaid client the link flow needs.
type AggregatorClient interface {
	CreateLinkToken(ctx context.Context, clientName, userID string) (*plaid.LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error)
}

// Handler handles aggregator link requests.
type Handler struct {
	client             AggregatorClient
	links              *store.LinkStore
	defaultContainerID string
	log                zerolog.Logger
}

// NewHandler creates a new link handler.
func NewHandler(client AggregatorClient, links *store.LinkStore, defaultContainerID string, log zerolog.Logger) *Handler {
	return &Handler{
		client:             client,
		links:              links,
		defaultContainerID: defaultContainerID,
		log:                log.With().Str("handler", "link").Logger(),
	}
}

// HandleCreateLinkToken creates a Link token for the local single user.
func (h *Handler) HandleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.client.CreateLinkToken(r.Context(), "finagent", "finagent-local-user")
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, token)
}

type exchangeRequest struct {
	PublicToken     string  `json:"public_token"`
	ContainerID     string  `json:"container_id"`
	InstitutionName *string `json:"institution_name,omitempty"`
}

// HandleExchange exchanges a public token and persists the resulting item
// under the given (or default) container id.
func (h *Handler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.PublicToken) == "" {
		h.writeError(w, http.StatusBadRequest, "public_token is required")
		return
	}

	containerID := strings.TrimSpace(req.ContainerID)
	if containerID == "" {
		containerID = h.defaultContainerID
	}

	exchanged, err := h.client.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	item := store.PlaidItem{
		ContainerID:     containerID,
		AccessToken:     exchanged.AccessToken,
		ItemID:          exchanged.ItemID,
		InstitutionName: req.InstitutionName,
	}
	if err := h.links.Save(item); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"container_id": containerID,
		"item_id":      exchanged.ItemID,
		"linked":       true,
	})
}

// HandleStatus reports whether an item is linked under the container id and,
// when it is, which item.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	containerID := strings.TrimSpace(r.URL.Query().Get("container_id"))
	if containerID == "" {
		containerID = h.defaultContainerID
	}

	item, err := h.links.Get(containerID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"container_id": containerID,
			"linked":       false,
		})
		return
	}

	response := map[string]interface{}{
		"container_id": containerID,
		"linked":       true,
		"item_id":      item.ItemID,
		"created_at":   item.CreatedAt,
	}
	if item.InstitutionName != nil {
		response["institution_name"] = *item.InstitutionName
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleListItems returns every linked item. Access tokens never leave the
// store.
func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.links.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		entry := map[string]interface{}{
			"container_id": item.ContainerID,
			"item_id":      item.ItemID,
			"created_at":   item.CreatedAt,
		}
		if item.InstitutionName != nil {
			entry["institution_name"] = *item.InstitutionName
		}
		out = append(out, entry)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

// HandleUnlink removes a stored item. 404 when nothing was linked under the
// container id.
func (h *Handler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	containerID := strings.TrimSpace(r.URL.Query().Get("container_id"))
	if containerID == "" {
		containerID = h.defaultContainerID
	}

	existed, err := h.links.Delete(containerID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !existed {
		h.writeError(w, http.StatusNotFound, "no linked item for container "+containerID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"container_id": containerID,
		"unlinked":     true,
	})
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
