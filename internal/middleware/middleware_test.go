package middleware

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/auth"
	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/logging"
)

func newAuthFixture(t *testing.T) (*auth.Service, *auth.TokenIssuer, *identity.Service) {
	t.Helper()
	clk := clock.RealClock{}
	ids := identity.NewService(identity.NewMemoryRepository(), clk, logging.Discard())
	issuer := auth.NewTokenIssuer("access-secret-0123456789", "refresh-secret-0123456789", time.Hour, 24*time.Hour, "check8auto", clk)
	return auth.NewService(issuer, ids), issuer, ids
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	ctx := context.Background()
	svc, issuer, ids := newAuthFixture(t)

	phone, err := identity.ParseIdentifier("+998901234567")
	require.NoError(t, err)
	driver, _, err := ids.Resolve(ctx, phone, identity.RoleDriver)
	require.NoError(t, err)
	pair, err := issuer.Issue(driver)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler(logging.Discard())})
	app.Use(JWTAuth(svc))
	app.Get("/me", func(c *fiber.Ctx) error {
		account, err := identity.Current(c)
		if err != nil {
			return err
		}
		return c.SendString(account.ID)
	})
	app.Get("/masters", RequireRole(identity.RoleMaster), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	get := func(path, authz string) int {
		req := httptest.NewRequest(fiber.MethodGet, path, nil)
		if authz != "" {
			req.Header.Set(fiber.HeaderAuthorization, authz)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusUnauthorized, get("/me", ""))
	assert.Equal(t, fiber.StatusUnauthorized, get("/me", "Bearer garbage"))
	assert.Equal(t, fiber.StatusUnauthorized, get("/me", "Bearer "+pair.RefreshToken))
	assert.Equal(t, fiber.StatusOK, get("/me", "Bearer "+pair.AccessToken))
	assert.Equal(t, fiber.StatusOK, get("/me", "bearer "+pair.AccessToken))
	assert.Equal(t, fiber.StatusForbidden, get("/masters", "Bearer "+pair.AccessToken))

	require.NoError(t, svc.Logout(ctx, driver.ID))
	assert.Equal(t, fiber.StatusUnauthorized, get("/me", "Bearer "+pair.AccessToken))
}

func TestRateLimitPerIdentifier(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler(logging.Discard())})
	app.Post("/login", RateLimit(cache, "login", 2, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	login := func(identifier string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"identifier":"`+identifier+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, login("+998901234567"))
	assert.Equal(t, fiber.StatusOK, login("998 90 123 45 67"))
	assert.Equal(t, fiber.StatusTooManyRequests, login("+998901234567"))
	assert.Equal(t, fiber.StatusOK, login("driver@example.com"))

	mr.FastForward(time.Minute)
	assert.Equal(t, fiber.StatusOK, login("+998901234567"))
}

func TestRateLimitWithoutRedisIsNoop(t *testing.T) {
	app := fiber.New()
	app.Post("/login", RateLimit(nil, "login", 1, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestAuditLogsRenderedStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")

	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler(logger)})
	app.Use(RequestID(), Audit(logger))
	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperror.New(fiber.StatusNotFound, apperror.KindNotFound, "nope")
	})

	req := httptest.NewRequest(fiber.MethodGet, "/missing", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))
	assert.Contains(t, buf.String(), `"status":404`)
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}
