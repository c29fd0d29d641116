package orders

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/logging"
)

func newTestApp(t *testing.T) (*fiber.App, *Service) {
	t.Helper()
	svc, _, _ := newService(t)
	h := NewHandler(svc)

	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		role := identity.Role(strings.Clone(c.Get("X-Test-Role")))
		identity.SetCurrent(c, identity.Account{ID: strings.Clone(c.Get("X-Test-Account")), Role: role})
		return c.Next()
	})
	app.Post("/orders", h.Create)
	app.Get("/orders", h.List)
	app.Get("/orders/:id", h.Get)
	app.Post("/orders/:id/status", h.UpdateStatus)
	return app, svc
}

func do(t *testing.T, app *fiber.App, method, path, account, role, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-Account", account)
	req.Header.Set("X-Test-Role", role)
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	return resp, decoded
}

func TestCreateAndGetOrderOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, fiber.MethodPost, "/orders", ownerID, "driver",
		`{"description":"Oil change","location":"Tashkent","latitude":41.31,"longitude":69.24,"data":{"car":"Cobalt"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := body["order"].(map[string]any)
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, "low", order["priority"])
	id := order["id"].(string)

	resp, _ = do(t, app, fiber.MethodGet, "/orders/"+id, ownerID, "driver", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, fiber.MethodGet, "/orders/"+id, masterID, "master", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, app, fiber.MethodGet, "/orders/"+id, masterID, "driver", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["kind"])
}

func TestCreateOrderRejectsBadCoordinates(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, fiber.MethodPost, "/orders", ownerID, "driver",
		`{"description":"Oil change","location":"Tashkent","latitude":123,"longitude":69.24}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"].(map[string]any)["kind"])
}

func TestUpdateStatusOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	_, body := do(t, app, fiber.MethodPost, "/orders", ownerID, "driver", `{"description":"Tyres","location":"Samarkand"}`)
	id := body["order"].(map[string]any)["id"].(string)

	resp, body := do(t, app, fiber.MethodPost, "/orders/"+id+"/status", ownerID, "driver", `{"status":"completed"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_transition", body["error"].(map[string]any)["kind"])

	resp, body = do(t, app, fiber.MethodPost, "/orders/"+id+"/status", ownerID, "driver", `{"status":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"].(map[string]any)["kind"])

	resp, body = do(t, app, fiber.MethodPost, "/orders/"+id+"/status", ownerID, "driver", `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["order"].(map[string]any)["status"])

	resp, _ = do(t, app, fiber.MethodPost, "/orders/"+masterID+"/status", ownerID, "driver", `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListOrdersOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := do(t, app, fiber.MethodPost, "/orders", ownerID, "driver",
		`{"description":"Oil change","location":"Tashkent","priority":"high"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, app, fiber.MethodGet, "/orders?priority=high", ownerID, "driver", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["orders"], 1)

	resp, body = do(t, app, fiber.MethodGet, "/orders?scope=open", masterID, "master", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["orders"], 1)

	resp, _ = do(t, app, fiber.MethodGet, "/orders?scope=open", ownerID, "driver", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = do(t, app, fiber.MethodGet, "/orders?status=archived", ownerID, "driver", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"].(map[string]any)["kind"])
}
