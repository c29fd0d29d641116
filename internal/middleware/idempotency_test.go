package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/logging"
)

func newIdempotentApp(t *testing.T, calls *atomic.Int32, status int) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-Test-Account"); id != "" {
			identity.SetCurrent(c, identity.Account{ID: id})
		}
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		if status >= 400 {
			return fiber.NewError(status, "boom")
		}
		return c.Status(status).JSON(fiber.Map{"call": n})
	})
	return app
}

func post(t *testing.T, app *fiber.App, key, account string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	if account != "" {
		req.Header.Set("X-Test-Account", account)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	var calls atomic.Int32
	app := newIdempotentApp(t, &calls, fiber.StatusCreated)

	status, body := post(t, app, "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body, "validation_error")
	assert.Zero(t, calls.Load())
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	var calls atomic.Int32
	app := newIdempotentApp(t, &calls, fiber.StatusCreated)

	status, first := post(t, app, "abc123", "acct-1")
	require.Equal(t, fiber.StatusCreated, status)

	status, second := post(t, app, "abc123", "acct-1")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyKeysAreScopedPerAccount(t *testing.T) {
	var calls atomic.Int32
	app := newIdempotentApp(t, &calls, fiber.StatusCreated)

	_, first := post(t, app, "same-key", "acct-1")
	_, second := post(t, app, "same-key", "acct-2")
	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	var calls atomic.Int32
	app := newIdempotentApp(t, &calls, fiber.StatusBadGateway)

	status, _ := post(t, app, "retry-me", "acct-1")
	assert.Equal(t, fiber.StatusBadGateway, status)
	status, _ = post(t, app, "retry-me", "acct-1")
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, int32(2), calls.Load())
}
