package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/student-records/internal/apperr"
	"github.com/iliyamo/student-records/internal/config"
	"github.com/iliyamo/student-records/internal/permission"
	"github.com/iliyamo/student-records/internal/utils"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newContext(e *echo.Echo, req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func assertAppErr(t *testing.T, err error, status int, msg string) {
	t.Helper()
	ae, isApp := apperr.As(err)
	require.True(t, isApp, "expected *apperr.Error, got %v", err)
	assert.Equal(t, status, ae.Status)
	assert.Equal(t, msg, ae.Message)
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	issuer := utils.NewTokenIssuer("access", "refresh", time.Hour, time.Hour)
	access, err := issuer.SignAccess(7, "t@x.io", permission.Teacher)
	require.NoError(t, err)
	refresh, err := issuer.SignRefresh(7)
	require.NoError(t, err)

	var gotID int64
	var gotRole string
	h := JWTAuth(issuer)(func(c echo.Context) error {
		gotID, gotRole = UserID(c), Role(c)
		return nil
	})

	t.Run("missing", func(t *testing.T) {
		c, _ := newContext(e, httptest.NewRequest(http.MethodGet, "/", nil))
		assertAppErr(t, h(c), http.StatusUnauthorized, "Missing access token")
	})

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+access.Token)
		c, _ := newContext(e, req)
		require.NoError(t, h(c))
		assert.Equal(t, int64(7), gotID)
		assert.Equal(t, permission.Teacher, gotRole)
	})

	t.Run("cookie", func(t *testing.T) {
		gotID = 0
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: access.Token})
		c, _ := newContext(e, req)
		require.NoError(t, h(c))
		assert.Equal(t, int64(7), gotID)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+refresh.Raw)
		c, _ := newContext(e, req)
		ae, isApp := apperr.As(h(c))
		require.True(t, isApp)
		assert.Equal(t, http.StatusUnauthorized, ae.Status)
	})
}

func TestRequirePermissions(t *testing.T) {
	e := echo.New()
	table := permission.DefaultTable()

	cases := []struct {
		role  string
		perms []permission.Permission
		allow bool
	}{
		{permission.Admin, []permission.Permission{permission.UserCreate, permission.StudentDelete}, true},
		{permission.Teacher, []permission.Permission{permission.UserRead}, true},
		{permission.Teacher, []permission.Permission{permission.UserRead, permission.UserCreate}, false},
		{permission.Student, []permission.Permission{permission.StudentRead}, false},
		{permission.Student, []permission.Permission{permission.ProfileUpdate}, true},
		{"", []permission.Permission{permission.ProfileRead}, false},
	}
	for _, tc := range cases {
		c, _ := newContext(e, httptest.NewRequest(http.MethodGet, "/", nil))
		c.Set(ctxRole, tc.role)
		err := RequirePermissions(table, tc.perms...)(ok)(c)
		if tc.allow {
			assert.NoError(t, err, "role %q perms %v", tc.role, tc.perms)
		} else {
			assertAppErr(t, err, http.StatusForbidden, "Insufficient permissions")
		}
	}
}

func TestCSRF(t *testing.T) {
	e := echo.New()
	h := CSRF()(ok)

	request := func(header, cookie string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if header != "" {
			req.Header.Set(CSRFHeader, header)
		}
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: cookie})
		}
		return req
	}

	cases := map[string]*http.Request{
		"no header":   request("", "abc"),
		"no cookie":   request("abc", ""),
		"mismatch":    request("abc", "abd"),
		"prefix":      request("ab", "abc"),
		"none at all": request("", ""),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newContext(e, req)
			assertAppErr(t, h(c), http.StatusForbidden, "Invalid CSRF token")
		})
	}

	c, rec := newContext(e, request("abc", "abc"))
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIssueCSRFToken(t *testing.T) {
	e := echo.New()
	c, rec := newContext(e, httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))

	token, err := IssueCSRFToken(c, true)
	require.NoError(t, err)
	assert.Len(t, token, 32)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	ck := cookies[0]
	assert.Equal(t, CSRFCookie, ck.Name)
	assert.Equal(t, token, ck.Value)
	assert.False(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
}

func rateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func hitLimiter(t *testing.T, mw echo.MiddlewareFunc, n int) (allowed int, last error, rec *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	h := mw(ok)
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodGet, "/students", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		var c echo.Context
		c, rec = newContext(e, req)
		last = h(c)
		if last == nil {
			allowed++
		}
	}
	return allowed, last, rec
}

func TestTokenBucketRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	allowed, last, rec := hitLimiter(t, NewTokenBucket(rateConfig(), rdb, quietLog()), 3)
	assert.Equal(t, 2, allowed)
	assertAppErr(t, last, http.StatusTooManyRequests, "Too many requests")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.True(t, mr.Exists("rl:ip:10.0.0.1"))
}

func TestTokenBucketFallsBackWithoutRedis(t *testing.T) {
	allowed, last, rec := hitLimiter(t, NewTokenBucket(rateConfig(), nil, quietLog()), 3)
	assert.Equal(t, 2, allowed)
	assertAppErr(t, last, http.StatusTooManyRequests, "Too many requests")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketFallsBackWhenRedisFails(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	allowed, _, _ := hitLimiter(t, NewTokenBucket(rateConfig(), rdb, quietLog()), 3)
	assert.Equal(t, 2, allowed)
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := rateConfig()
	cfg.Enabled = false
	allowed, _, _ := hitLimiter(t, NewTokenBucket(cfg, nil, quietLog()), 5)
	assert.Equal(t, 5, allowed)
}

func TestResponseCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewResponseCache(config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		Prefix:       "cache:students",
		MaxBodyBytes: 1 << 10,
	}, rdb, quietLog())

	calls := 0
	e := echo.New()
	e.GET("/students", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, map[string]int{"calls": calls})
	}, cache.Middleware())
	e.POST("/students", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, cache.InvalidateOnWrite())

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students?page=1", nil))
		return rec
	}

	first := get()
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get()
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	assert.Equal(t, 1, calls)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/students", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	third := get()
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	require.NoError(t, cache.Invalidate(context.Background()))
	assert.Empty(t, mr.Keys())
}

func TestResponseCacheInertWithoutRedis(t *testing.T) {
	cache := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}}, nil, quietLog())
	e := echo.New()
	e.GET("/students", ok, cache.Middleware())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.NoError(t, cache.Invalidate(context.Background()))
}

func TestLocalLimiterEvictsIdleKeys(t *testing.T) {
	cfg := rateConfig()
	l := newLocalLimiter(cfg)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.take("a").allowed)
	assert.True(t, l.take("a").allowed)
	assert.False(t, l.take("a").allowed)
	assert.True(t, l.take("b").allowed)
	assert.Equal(t, 2, l.size())

	now = now.Add(cfg.TTL)
	assert.True(t, l.take("c").allowed)
	assert.Equal(t, 1, l.size(), "idle keys are dropped after the bucket ttl")

	now = now.Add(time.Minute)
	assert.True(t, l.take("a").allowed, "an evicted key starts with a full bucket")
	assert.Equal(t, 2, l.size())
}
