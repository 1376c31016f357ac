package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitabpay/backend/internal/services"
	"github.com/kitabpay/backend/internal/store"
)

type walletFixture struct {
	mem     *store.MemoryStore
	catalog *services.CatalogService
	wallet  *WalletHandler
	market  *MarketHandler
}

func newWalletFixture(t *testing.T) *walletFixture {
	t.Helper()
	mem := store.NewMemoryStore()
	log := logrus.New()
	log.SetOutput(io.Discard)

	ledger := services.NewLedgerService(mem, log)
	catalog := services.NewCatalogService(mem, mem, 0, log)
	transactions := services.NewTransactionService(ledger, catalog, mem, nil, 0, log)
	codes := services.NewTransferCodeService(mem, nil, 0)

	return &walletFixture{
		mem:     mem,
		catalog: catalog,
		wallet:  NewWalletHandler(transactions, codes),
		market:  NewMarketHandler(catalog, transactions),
	}
}

func authedRequest(method, target, userID string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), "userID", userID))
	}
	return req
}

func TestWalletHandler_Transfer(t *testing.T) {
	t.Run("successful transfer", func(t *testing.T) {
		f := newWalletFixture(t)
		f.mem.SeedAccount("alice", "+998900000001", 8_000)
		f.mem.SeedAccount("bob", "+998900000002", 0)

		req := authedRequest(http.MethodPost, "/api/v1/wallet/transfer", "alice", map[string]any{
			"recipient":   map[string]string{"phone": "+998900000002"},
			"amount":      3_000,
			"operationId": "op-h1",
		})
		rec := httptest.NewRecorder()
		f.wallet.Transfer(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Success bool  `json:"success"`
			Balance int64 `json:"balance"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, int64(5_000), resp.Balance)
	})

	t.Run("unknown recipient maps to 404", func(t *testing.T) {
		f := newWalletFixture(t)
		f.mem.SeedAccount("alice", "+998900000001", 8_000)

		req := authedRequest(http.MethodPost, "/api/v1/wallet/transfer", "alice", map[string]any{
			"recipient":   map[string]string{"phone": "+998999999999"},
			"amount":      1_000,
			"operationId": "op-h2",
		})
		rec := httptest.NewRecorder()
		f.wallet.Transfer(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("insufficient funds maps to 400", func(t *testing.T) {
		f := newWalletFixture(t)
		f.mem.SeedAccount("alice", "+998900000001", 100)
		f.mem.SeedAccount("bob", "+998900000002", 0)

		req := authedRequest(http.MethodPost, "/api/v1/wallet/transfer", "alice", map[string]any{
			"recipient":   map[string]string{"userId": "bob"},
			"amount":      1_000,
			"operationId": "op-h3",
		})
		rec := httptest.NewRecorder()
		f.wallet.Transfer(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing operation id fails validation", func(t *testing.T) {
		f := newWalletFixture(t)
		f.mem.SeedAccount("alice", "+998900000001", 8_000)

		req := authedRequest(http.MethodPost, "/api/v1/wallet/transfer", "alice", map[string]any{
			"recipient": map[string]string{"userId": "bob"},
			"amount":    1_000,
		})
		rec := httptest.NewRecorder()
		f.wallet.Transfer(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no auth context", func(t *testing.T) {
		f := newWalletFixture(t)
		req := authedRequest(http.MethodPost, "/api/v1/wallet/transfer", "", map[string]any{})
		rec := httptest.NewRecorder()
		f.wallet.Transfer(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestWalletHandler_Codes(t *testing.T) {
	f := newWalletFixture(t)
	f.mem.SeedAccount("alice", "+998900000001", 0)

	req := authedRequest(http.MethodGet, "/api/v1/wallet/code?displayName=Alice", "alice", nil)
	rec := httptest.NewRecorder()
	f.wallet.GenerateCode(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var generated struct {
		Payload string `json:"payload"`
		Image   string `json:"image"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &generated))
	assert.NotEmpty(t, generated.Image)

	req = authedRequest(http.MethodPost, "/api/v1/wallet/code/decode", "bob", map[string]string{
		"payload": generated.Payload,
	})
	rec = httptest.NewRecorder()
	f.wallet.DecodeCode(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var decoded struct {
		UserID      string `json:"userId"`
		Phone       string `json:"phone"`
		DisplayName string `json:"displayName"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "alice", decoded.UserID)
	assert.Equal(t, "+998900000001", decoded.Phone)
	assert.Equal(t, "Alice", decoded.DisplayName)
}

func TestWalletHandler_BalanceAndHistory(t *testing.T) {
	f := newWalletFixture(t)
	f.mem.SeedAdmin("admin", "+998900000000", 0)
	f.mem.SeedAccount("alice", "+998900000001", 0)

	req := authedRequest(http.MethodPost, "/api/v1/wallet/add-balance", "admin", map[string]any{
		"userId":      "alice",
		"amount":      2_500,
		"operationId": "op-h4",
	})
	rec := httptest.NewRecorder()
	f.wallet.AddBalance(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = authedRequest(http.MethodGet, "/api/v1/wallet/balance", "alice", nil)
	rec = httptest.NewRecorder()
	f.wallet.Balance(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var acc struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.Equal(t, int64(2_500), acc.Balance)

	req = authedRequest(http.MethodGet, "/api/v1/wallet/history", "alice", nil)
	rec = httptest.NewRecorder()
	f.wallet.History(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, 1, history.Count)
}

func TestWalletHandler_AddBalanceForbidden(t *testing.T) {
	f := newWalletFixture(t)
	f.mem.SeedAccount("mallory", "+998900000009", 0)
	f.mem.SeedAccount("alice", "+998900000001", 0)

	req := authedRequest(http.MethodPost, "/api/v1/wallet/add-balance", "mallory", map[string]any{
		"userId": "alice",
		"amount": 2_500,
	})
	rec := httptest.NewRecorder()
	f.wallet.AddBalance(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
