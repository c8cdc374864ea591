package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psouza/walletcore/internal/app/core/adapter/out/memory"
	"github.com/psouza/walletcore/internal/app/core/domain"
	"github.com/psouza/walletcore/internal/app/core/usecase"
)

func newTestApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	store, err := memory.NewStore(nil)
	require.NoError(t, err)
	engine := usecase.NewLedgerEngine(store, nil)
	return NewApp(NewHandler(engine, nil)), store
}

func seedAccount(t *testing.T, store *memory.Store, balance int64) uuid.UUID {
	t.Helper()
	account := &domain.Account{
		ID:      uuid.New(),
		Name:    "account-" + uuid.NewString()[:8],
		Email:   uuid.NewString()[:8] + "@wallet.test",
		Balance: decimal.NewFromInt(balance),
	}
	require.NoError(t, store.Accounts().Create(context.Background(), account))
	return account.ID
}

func doJSON(t *testing.T, app *fiber.App, method, path string, caller uuid.UUID, body any) (*nethttp.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != uuid.Nil {
		req.Header.Set(CallerHeader, caller.String())
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func errorCode(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func TestCreateMovementTransfer(t *testing.T) {
	app, store := newTestApp(t)
	sender := seedAccount(t, store, 500)
	receiver := seedAccount(t, store, 0)

	resp, body := doJSON(t, app, fiber.MethodPost, "/v1/movements", sender, fiber.Map{
		"amount":     "100",
		"kind":       "TRANSFER",
		"receiverId": receiver.String(),
	})

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "TRANSFER", body["kind"])
	assert.Equal(t, "COMPLETED", body["status"])
	assert.Equal(t, sender.String(), body["senderId"])
	assert.Equal(t, receiver.String(), body["receiverId"])
	assert.NotEmpty(t, body["id"])
}

func TestCreateMovementRequiresCaller(t *testing.T) {
	app, store := newTestApp(t)
	receiver := seedAccount(t, store, 0)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/v1/movements", uuid.Nil, fiber.Map{
		"amount":     "100",
		"kind":       "DEPOSIT",
		"receiverId": receiver.String(),
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateMovementRejectsMalformedBody(t *testing.T) {
	app, store := newTestApp(t)
	caller := seedAccount(t, store, 0)

	req := httptest.NewRequest(fiber.MethodPost, "/v1/movements", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CallerHeader, caller.String())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateMovementRejectsUnknownKind(t *testing.T) {
	app, store := newTestApp(t)
	caller := seedAccount(t, store, 0)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/v1/movements", caller, fiber.Map{
		"amount":     "100",
		"kind":       "REVERSAL",
		"receiverId": caller.String(),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateMovementStatusMapping(t *testing.T) {
	app, store := newTestApp(t)
	sender := seedAccount(t, store, 50)
	receiver := seedAccount(t, store, 0)

	cases := []struct {
		name       string
		caller     uuid.UUID
		body       fiber.Map
		wantStatus int
		wantCode   string
	}{
		{
			name:   "validation maps to 400",
			caller: sender,
			body: fiber.Map{
				"amount": "-5", "kind": "DEPOSIT", "receiverId": receiver.String(),
			},
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "invalid_amount",
		},
		{
			name:   "self transfer maps to 400",
			caller: sender,
			body: fiber.Map{
				"amount": "5", "kind": "TRANSFER", "receiverId": sender.String(),
			},
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "self_transfer",
		},
		{
			name:   "conflict maps to 409",
			caller: sender,
			body: fiber.Map{
				"amount": "100", "kind": "TRANSFER", "receiverId": receiver.String(),
			},
			wantStatus: fiber.StatusConflict,
			wantCode:   "insufficient_balance",
		},
		{
			name:   "not found maps to 404",
			caller: sender,
			body: fiber.Map{
				"amount": "5", "kind": "DEPOSIT", "receiverId": uuid.NewString(),
			},
			wantStatus: fiber.StatusNotFound,
			wantCode:   "receiver_not_found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, app, fiber.MethodPost, "/v1/movements", tc.caller, tc.body)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Equal(t, tc.wantCode, errorCode(body))
		})
	}
}

func TestCreateMovementIdempotencyKeyHeader(t *testing.T) {
	app, store := newTestApp(t)
	receiver := seedAccount(t, store, 0)

	send := func() map[string]any {
		raw, err := json.Marshal(fiber.Map{
			"amount": "100", "kind": "DEPOSIT", "receiverId": receiver.String(),
		})
		require.NoError(t, err)
		req := httptest.NewRequest(fiber.MethodPost, "/v1/movements", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(CallerHeader, receiver.String())
		req.Header.Set("Idempotency-Key", "client-retry-1")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	first := send()
	second := send()
	assert.Equal(t, first["id"], second["id"])

	account, err := store.Accounts().Get(context.Background(), receiver)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(100)))
}

func TestRevertMovement(t *testing.T) {
	app, store := newTestApp(t)
	sender := seedAccount(t, store, 500)
	receiver := seedAccount(t, store, 0)

	_, created := doJSON(t, app, fiber.MethodPost, "/v1/movements", sender, fiber.Map{
		"amount": "100", "kind": "TRANSFER", "receiverId": receiver.String(),
	})
	movementID := created["id"].(string)

	resp, body := doJSON(t, app, fiber.MethodPut,
		fmt.Sprintf("/v1/movements/%s/revert", movementID), sender, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	// Second revert conflicts.
	resp, body = doJSON(t, app, fiber.MethodPut,
		fmt.Sprintf("/v1/movements/%s/revert", movementID), sender, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_reverted", errorCode(body))
}

func TestRevertMovementNotFound(t *testing.T) {
	app, store := newTestApp(t)
	caller := seedAccount(t, store, 0)

	resp, body := doJSON(t, app, fiber.MethodPut,
		fmt.Sprintf("/v1/movements/%s/revert", uuid.NewString()), caller, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "movement_not_found", errorCode(body))
}

func TestRevertMovementRejectsBadID(t *testing.T) {
	app, store := newTestApp(t)
	caller := seedAccount(t, store, 0)

	resp, _ := doJSON(t, app, fiber.MethodPut, "/v1/movements/not-a-uuid/revert", caller, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListMovements(t *testing.T) {
	app, store := newTestApp(t)
	receiver := seedAccount(t, store, 0)

	for i := 0; i < 12; i++ {
		resp, _ := doJSON(t, app, fiber.MethodPost, "/v1/movements", receiver, fiber.Map{
			"amount": "10", "kind": "DEPOSIT", "receiverId": receiver.String(),
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, app, fiber.MethodGet,
		fmt.Sprintf("/v1/accounts/%s/movements?page=2&limit=999", receiver), receiver, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// limit=999 falls back to the default of 10, so page 2 has the rest.
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(12), body["total"])
	assert.Equal(t, float64(2), body["last"])
	assert.Equal(t, float64(1), body["first"])
	items := body["items"].([]any)
	assert.Len(t, items, 2)

	item := items[0].(map[string]any)
	receiverObj, ok := item["receiver"].(map[string]any)
	require.True(t, ok, "items must carry receiver summaries")
	assert.Equal(t, receiver.String(), receiverObj["id"])
}

func TestListMovementsRejectsBadAccountID(t *testing.T) {
	app, store := newTestApp(t)
	caller := seedAccount(t, store, 0)

	resp, _ := doJSON(t, app, fiber.MethodGet, "/v1/accounts/xyz/movements", caller, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
