package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRouter(store Store, status *int, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/steps", Middleware(store, time.Hour, zap.NewNop()), func(c *gin.Context) {
		*calls++
		c.JSON(*status, gin.H{"call": *calls})
	})
	return router
}

func post(router *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/steps", nil)
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	status, calls := http.StatusCreated, 0
	router := setupRouter(NewMemoryStore(), &status, &calls)

	first := post(router, "abc")
	second := post(router, "abc")

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Empty(t, first.Header().Get(HeaderReplayed))
}

func TestMiddleware_DistinctKeysExecute(t *testing.T) {
	status, calls := http.StatusOK, 0
	router := setupRouter(NewMemoryStore(), &status, &calls)

	post(router, "a")
	post(router, "b")
	post(router, "")
	post(router, "")

	assert.Equal(t, 4, calls)
}

func TestMiddleware_ServerErrorsAreNotStored(t *testing.T) {
	status, calls := http.StatusBadGateway, 0
	router := setupRouter(NewMemoryStore(), &status, &calls)

	post(router, "abc")
	status = http.StatusOK
	w := post(router, "abc")

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_ClientErrorsAreStored(t *testing.T) {
	status, calls := http.StatusConflict, 0
	router := setupRouter(NewMemoryStore(), &status, &calls)

	post(router, "abc")
	status = http.StatusOK
	w := post(router, "abc")

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMiddleware_InFlightKeyConflicts(t *testing.T) {
	store := NewMemoryStore()
	status, calls := http.StatusOK, 0
	router := setupRouter(store, &status, &calls)
	locked, err := store.Lock(context.Background(), "POST /steps abc", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	w := post(router, "abc")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, calls)
	assert.JSONEq(t, `{"success":false,"error":"a request with this Idempotency-Key is still in progress","retryable":true}`, w.Body.String())
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", Record{Status: 200, Body: []byte("{}")}, time.Minute))
	rec, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, rec)

	locked, err := store.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = store.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)

	now = now.Add(2 * time.Minute)

	rec, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, rec)
	locked, err = store.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked, "an expired lock can be claimed again")
}

func TestMiddleware_KeysAreScopedToWallet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0
	router := gin.New()
	router.POST("/steps", func(c *gin.Context) {
		c.Set("walletAddress", c.GetHeader("X-Wallet"))
		c.Next()
	}, Middleware(NewMemoryStore(), time.Hour, zap.NewNop()), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"wallet": c.GetHeader("X-Wallet")})
	})
	send := func(wallet string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/steps", nil)
		req.Header.Set(HeaderKey, "shared-key")
		req.Header.Set("X-Wallet", wallet)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	employer := send("GEMPLOYER")
	other := send("GOTHER")
	replay := send("GEMPLOYER")

	assert.Equal(t, 2, calls)
	assert.JSONEq(t, `{"wallet":"GOTHER"}`, other.Body.String())
	assert.Empty(t, other.Header().Get(HeaderReplayed))
	assert.Equal(t, employer.Body.String(), replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get(HeaderReplayed))
}
