package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"webcarros-backend/internal/application/auth"
	"webcarros-backend/internal/pkg/validation"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestSession_LoginThenMe(t *testing.T) {
	rdb, mr := setupRedis(t)
	app := fiber.New()
	app.Use(Session(rdb))
	app.Post("/login", func(c *fiber.Ctx) error {
		sid := RegenerateSessionID(c)
		SetSessionUser(c, auth.SessionUser{UID: "u1", Name: "Ana", Email: "a@b.com"})
		return c.SendString(sid)
	})
	app.Get("/me", RequireAuth(), func(c *fiber.Ctx) error {
		return c.JSON(CurrentUser(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	sidBytes, _ := io.ReadAll(resp.Body)
	sid := string(sidBytes)
	assert.True(t, mr.Exists("session:"+sid))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "s:" + sid})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "u1", body["uid"])
	assert.Equal(t, "Ana", body["name"])
}

func TestSession_UnknownCookieIsNotPersisted(t *testing.T) {
	rdb, mr := setupRedis(t)
	app := fiber.New()
	app.Use(Session(rdb))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetSessionID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "s:forged.sig"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	assert.Empty(t, string(b))
	assert.False(t, mr.Exists("session:forged"))
}

func TestParseSessionCookie(t *testing.T) {
	assert.Equal(t, "abc", ParseSessionCookie("s:abc"))
	assert.Equal(t, "abc", ParseSessionCookie("s:abc.sig"))
	assert.Equal(t, "raw", ParseSessionCookie("raw"))
}

func TestRequireAuth_Unauthorized(t *testing.T) {
	app := fiber.New()
	app.Get("/p", RequireAuth(), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/p", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "error", body["status"])
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedSuffix: ".webcarros.com.br", DevPassword: "pw"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	cases := []struct {
		origin string
		header string
		want   int
	}{
		{"", "", http.StatusOK},
		{"https://app.webcarros.com.br", "", http.StatusOK},
		{"http://localhost:5173", "", http.StatusOK},
		{"https://evil.example", "", http.StatusForbidden},
		{"https://evil.example", "pw", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		if tc.header != "" {
			req.Header.Set("dev-password", tc.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode, tc.origin)
	}
}

func TestHealthMarker_CountsAndLogsErrors(t *testing.T) {
	rdb, mr := setupRedis(t)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Tracing(), HealthMarker(rdb))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	for _, p := range []string{"/ok", "/boom", "/health/json"} {
		_, err := app.Test(httptest.NewRequest(http.MethodGet, p, nil))
		require.NoError(t, err)
	}

	total, _ := mr.Get(KeyReqTotal)
	assert.Equal(t, "2", total)
	errs, _ := mr.Get(KeyReqErrors)
	assert.Equal(t, "1", errs)

	items, err := mr.List(KeyErrorLog)
	require.NoError(t, err)
	require.Len(t, items, 1)
	var entry ErrorEntry
	require.NoError(t, json.Unmarshal([]byte(items[0]), &entry))
	assert.Equal(t, "/boom", entry.Path)
	assert.Equal(t, http.StatusInternalServerError, entry.Status)
	assert.NotEmpty(t, entry.TraceID)
}

func TestErrorHandler_FieldErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error {
		return validation.FieldErrors{"name": "This field is required"}
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)
	details := body["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Equal(t, "This field is required", details["name"])
}

func TestTracing_KeepsValidIncomingID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-Id", "8b0f5f2a-4f57-4a55-9d3c-3f6a54e0d7a1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "8b0f5f2a-4f57-4a55-9d3c-3f6a54e0d7a1", resp.Header.Get("X-Trace-Id"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-Id", "garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, "garbage", resp.Header.Get("X-Trace-Id"))
}
