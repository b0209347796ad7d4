package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/config"
	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/utils"
)

const secret = "middleware-secret"

func protected(t *testing.T, roles ...model.Role) *echo.Echo {
	t.Helper()
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret), RequireRole(roles...))
	g.GET("/whoami", func(c echo.Context) error {
		id, ok := UserID(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
	})
	return e
}

func bearer(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, string(role), 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	e := protected(t, model.RoleAdmin, model.RoleUser)
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Authorization", bearer(t, 7, model.RoleUser))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"role":"USER"}`, rec.Body.String())
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
	e := protected(t, model.RoleUser)
	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestRequireRoleForbidsOtherRoles(t *testing.T) {
	e := protected(t, model.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Authorization", bearer(t, 7, model.RoleUser))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateIdentity(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	assert.Equal(t, "anon", rateIdentity(c, secret))

	req.Header.Set("Authorization", bearer(t, 12, model.RoleUser))
	assert.Equal(t, "12", rateIdentity(c, secret))
	assert.Equal(t, "anon", rateIdentity(c, "other-secret"))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/books", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/books")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	assert.Equal(t, "rl:ip:10.0.0.1:user:9:route:GET /v1/books", buildRateKey(cfg, c, "9"))
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(cfg, c, "9"))
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestCacheKeyIncludesPathParams(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "c", KeyStrategy: "route_query"}
	key := func(id string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/books/"+id, nil), httptest.NewRecorder())
		c.SetPath("/v1/books/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)
		return cacheKeyFrom(cfg, c)
	}
	assert.NotEqual(t, key("1"), key("2"))
	assert.Equal(t, key("1"), key("1"))
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, secret, zap.NewNop()))
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	e.Use(NewCacheInvalidator(config.CacheConfig{Enabled: true}, nil))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestParseBucket(t *testing.T) {
	b, ok := parseBucket([]any{int64(0), int64(0), int64(1500)})
	require.True(t, ok)
	assert.False(t, b.allowed)
	assert.Equal(t, 1500*time.Millisecond, b.retry)
	assert.Equal(t, 2, b.retryAfterSeconds())

	b, ok = parseBucket([]any{int64(1), "7", int64(0)})
	require.True(t, ok)
	assert.True(t, b.allowed)
	assert.EqualValues(t, 7, b.remaining)
	assert.Zero(t, b.retryAfterSeconds())

	_, ok = parseBucket("OK")
	assert.False(t, ok)
	_, ok = parseBucket([]any{int64(1)})
	assert.False(t, ok)
}
