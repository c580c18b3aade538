package spacecowbot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t testing.TB) (*API, DBI) {
	t.Helper()
	db := newTestDB(t)
	config := DefaultConfig().API
	api := newAPI(config, db, slog.Default().Handler())
	return api, db
}

func apiRequest(api *API, method string, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	api.engine.ServeHTTP(w, req)
	return w
}

func TestAPIHealth(t *testing.T) {
	api, _ := newTestAPI(t)

	w := apiRequest(api, http.MethodGet, apiPathHealth)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestAPILeaderboard(t *testing.T) {
	api, db := newTestAPI(t)
	ctx := context.Background()

	require.NoError(t, db.CreditPoints(ctx, 1, 50))
	require.NoError(t, db.CreditPoints(ctx, 2, 200))

	w := apiRequest(api, http.MethodGet, apiPathLeaderboard)
	require.Equal(t, http.StatusOK, w.Code)

	var balances []Balance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balances))
	require.Len(t, balances, 2)
	assert.Equal(t, int64(2), balances[0].UserID)
	assert.Equal(t, int64(200), balances[0].Points)
	assert.Equal(t, int64(1), balances[1].UserID)
}

func TestAPILeaderboardEmpty(t *testing.T) {
	api, _ := newTestAPI(t)

	w := apiRequest(api, http.MethodGet, apiPathLeaderboard)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAPIBalance(t *testing.T) {
	api, db := newTestAPI(t)
	ctx := context.Background()

	require.NoError(t, db.CreditPoints(ctx, 42, 7))

	w := apiRequest(api, http.MethodGet, "/api/balances/42")
	require.Equal(t, http.StatusOK, w.Code)

	var balance Balance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, int64(42), balance.UserID)
	assert.Equal(t, int64(7), balance.Points)
}

func TestAPIBalanceMissingUser(t *testing.T) {
	api, _ := newTestAPI(t)

	w := apiRequest(api, http.MethodGet, "/api/balances/9999")
	require.Equal(t, http.StatusOK, w.Code)

	var balance Balance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, int64(0), balance.Points)
}

func TestAPIBalanceInvalidUserID(t *testing.T) {
	api, _ := newTestAPI(t)

	w := apiRequest(api, http.MethodGet, "/api/balances/notanumber")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIRequestIDHeader(t *testing.T) {
	api, _ := newTestAPI(t)

	w := apiRequest(api, http.MethodGet, apiPathHealth)
	assert.NotEmpty(t, w.Header().Get(xRequestIDHeader))

	// A provided request ID is echoed back
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, apiPathHealth, nil)
	req.Header.Set(xRequestIDHeader, "my-request-id")
	api.engine.ServeHTTP(recorder, req)
	assert.Equal(t, "my-request-id", recorder.Header().Get(xRequestIDHeader))
}

func TestGenerateRandomHexString(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		s, err := generateRandomHexString(8)
		require.NoError(t, err)
		assert.Len(t, s, 16)
		require.Falsef(t, seen[s], "duplicate value: %s", s)
		seen[s] = true
	}
}
