package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitnow/fitnow-api/internal/auth"
	"github.com/fitnow/fitnow-api/internal/config"
)

func serve(e *echo.Echo, method, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		uid, ok := UserID(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, echo.Map{"id": uid})
	}, JWTAuth("secret"))

	rec := serve(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"missing bearer token"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())

	tok, _, err := auth.NewAccessToken("secret", 5, time.Minute)
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/me", tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":5}`, rec.Body.String())
}

func TestUserID_Anonymous(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := UserID(c)
	assert.False(t, ok)
	assert.Equal(t, "guest", rateIdentity(c))

	c.Set(ContextUserID, uint64(9))
	assert.Equal(t, "9", rateIdentity(c))
}

func TestNilRedisDisablesMiddleware(t *testing.T) {
	e := echo.New()
	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}
	e.GET("/a", h,
		NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil),
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))

	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodGet, "/a", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 3, calls)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	e := echo.New()
	e.POST("/book", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1,
			RefillInterval: time.Second, TTL: time.Minute}, rdb))

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodPost, "/book", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/3/book", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/sessions/:sid/book")
	c.Set(ContextUserID, uint64(7))

	cfg := config.RateLimitConfig{Prefix: "rl"}
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:7:route:POST /api/sessions/:sid/book", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(cfg, c))
}

func TestCacheKeyDistinguishesParams(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	key := func(id string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/activities/"+id, nil), httptest.NewRecorder())
		c.SetPath("/api/activities/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)
		return cacheKeyFrom(cfg, c)
	}
	assert.NotEqual(t, key("1"), key("2"))
	assert.Equal(t, key("1"), key("1"))
	assert.Contains(t, key("1"), "cache:")
}

func TestPayloadDecodeRejectsTruncated(t *testing.T) {
	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"items":[]}`))
	require.NoError(t, err)

	status, hdr, body, ok := decodePayload(payload)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, `{"items":[]}`, string(body))

	_, _, _, ok = decodePayload(payload[:10])
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}
