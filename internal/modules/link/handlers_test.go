package link

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finagent-dev/finagent/internal/clients/plaid"
	"github.com/finagent-dev/finagent/internal/store"
)

type mockAggregator struct {
	linkToken   *plaid.LinkTokenResponse
	exchanged   *plaid.ExchangeResponse
	linkErr     error
	exchangeErr error
}

func (m *mockAggregator) CreateLinkToken(ctx context.Context, clientName, userID string) (*plaid.LinkTokenResponse, error) {
	if m.linkErr != nil {
		return nil, m.linkErr
	}
	return m.linkToken, nil
}

func (m *mockAggregator) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return m.exchanged, nil
}

func newTestHandler(t *testing.T, client *mockAggregator) (*Handler, *store.LinkStore) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	links, err := store.Open(filepath.Join(t.TempDir(), "links.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { links.Close() })
	return NewHandler(client, links, "schwab", log), links
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleCreateLinkToken(t *testing.T) {
	handler, _ := newTestHandler(t, &mockAggregator{
		linkToken: &plaid.LinkTokenResponse{LinkToken: "link-token-1"},
	})

	req := httptest.NewRequest(http.MethodPost, "/agent/plaid/link_token", nil)
	rec := httptest.NewRecorder()
	handler.HandleCreateLinkToken(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "link-token-1", body["link_token"])
}

func TestHandleCreateLinkTokenUpstreamFailure(t *testing.T) {
	handler, _ := newTestHandler(t, &mockAggregator{linkErr: errors.New("plaid down")})

	req := httptest.NewRequest(http.MethodPost, "/agent/plaid/link_token", nil)
	rec := httptest.NewRecorder()
	handler.HandleCreateLinkToken(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleExchangePersistsItem(t *testing.T) {
	handler, links := newTestHandler(t, &mockAggregator{
		exchanged: &plaid.ExchangeResponse{AccessToken: "access-1", ItemID: "item-1"},
	})

	body := `{"public_token": "public-1", "institution_name": "Charles Schwab"}`
	req := httptest.NewRequest(http.MethodPost, "/agent/plaid/exchange", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.HandleExchange(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "schwab", resp["container_id"])
	assert.Equal(t, true, resp["linked"])

	item, err := links.Get("schwab")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "access-1", item.AccessToken)
	require.NotNil(t, item.InstitutionName)
	assert.Equal(t, "Charles Schwab", *item.InstitutionName)
}

func TestHandleExchangeCustomContainerID(t *testing.T) {
	handler, links := newTestHandler(t, &mockAggregator{
		exchanged: &plaid.ExchangeResponse{AccessToken: "access-2", ItemID: "item-2"},
	})

	body := `{"public_token": "public-2", "container_id": "fidelity"}`
	req := httptest.NewRequest(http.MethodPost, "/agent/plaid/exchange", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.HandleExchange(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	item, err := links.Get("fidelity")
	require.NoError(t, err)
	assert.NotNil(t, item)
}

func TestHandleExchangeRequiresPublicToken(t *testing.T) {
	handler, _ := newTestHandler(t, &mockAggregator{})

	req := httptest.NewRequest(http.MethodPost, "/agent/plaid/exchange", strings.NewReader(`{"public_token": "  "}`))
	rec := httptest.NewRecorder()
	handler.HandleExchange(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExchangeUpstreamFailure(t *testing.T) {
	handler, _ := newTestHandler(t, &mockAggregator{exchangeErr: errors.New("invalid token")})

	req := httptest.NewRequest(http.MethodPost, "/agent/plaid/exchange", strings.NewReader(`{"public_token": "bad"}`))
	rec := httptest.NewRecorder()
	handler.HandleExchange(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleStatusNotLinked(t *testing.T) {
	handler, _ := newTestHandler(t, &mockAggregator{})

	req := httptest.NewRequest(http.MethodGet, "/agent/plaid/status", nil)
	rec := httptest.NewRecorder()
	handler.HandleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "schwab", body["container_id"])
	assert.Equal(t, false, body["linked"])
	assert.NotContains(t, body, "item_id")
}

func TestHandleStatusLinked(t *testing.T) {
	handler, links := newTestHandler(t, &mockAggregator{})
	name := "Charles Schwab"
	require.NoError(t, links.Save(store.PlaidItem{
		ContainerID:     "schwab",
		AccessToken:     "a",
		ItemID:          "item-1",
		InstitutionName: &name,
	}))

	req := httptest.NewRequest(http.MethodGet, "/agent/plaid/status", nil)
	rec := httptest.NewRecorder()
	handler.HandleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["linked"])
	assert.Equal(t, "item-1", body["item_id"])
	assert.Equal(t, "Charles Schwab", body["institution_name"])
	assert.Contains(t, body, "created_at")
}

func TestHandleListItemsEmpty(t *testing.T) {
	handler, _ := newTestHandler(t, &mockAggregator{})

	req := httptest.NewRequest(http.MethodGet, "/agent/plaid/items", nil)
	rec := httptest.NewRecorder()
	handler.HandleListItems(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	items, ok := body["items"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, items)
}

func TestHandleListItems(t *testing.T) {
	handler, links := newTestHandler(t, &mockAggregator{})
	name := "Charles Schwab"
	require.NoError(t, links.Save(store.PlaidItem{
		ContainerID:     "schwab",
		AccessToken:     "access-1",
		ItemID:          "item-1",
		InstitutionName: &name,
	}))
	require.NoError(t, links.Save(store.PlaidItem{ContainerID: "fidelity", AccessToken: "access-2", ItemID: "item-2"}))

	req := httptest.NewRequest(http.MethodGet, "/agent/plaid/items", nil)
	rec := httptest.NewRecorder()
	handler.HandleListItems(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	items, ok := body["items"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 2)

	// Ordered by container id, access tokens never included.
	first := items[0].(map[string]interface{})
	second := items[1].(map[string]interface{})
	assert.Equal(t, "fidelity", first["container_id"])
	assert.Equal(t, "schwab", second["container_id"])
	assert.Equal(t, "Charles Schwab", second["institution_name"])
	assert.NotContains(t, first, "access_token")
	assert.NotContains(t, second, "access_token")
}

func TestHandleUnlink(t *testing.T) {
	handler, links := newTestHandler(t, &mockAggregator{})
	require.NoError(t, links.Save(store.PlaidItem{ContainerID: "schwab", AccessToken: "a", ItemID: "1"}))

	req := httptest.NewRequest(http.MethodPost, "/agent/plaid/unlink", nil)
	rec := httptest.NewRecorder()
	handler.HandleUnlink(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["unlinked"])

	item, err := links.Get("schwab")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestHandleUnlinkNotLinkedIs404(t *testing.T) {
	handler, _ := newTestHandler(t, &mockAggregator{})

	req := httptest.NewRequest(http.MethodPost, "/agent/plaid/unlink", nil)
	rec := httptest.NewRecorder()
	handler.HandleUnlink(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
