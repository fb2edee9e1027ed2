package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/database/testdb"
	"github.com/torvix/backend/internal/handlers"
	"github.com/torvix/backend/internal/httputil"
	"github.com/torvix/backend/internal/middleware"
	"github.com/torvix/backend/internal/routes"
	"github.com/torvix/backend/internal/security"
	"github.com/torvix/backend/internal/services"
)

func newTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:          "handler-test-secret",
		JWTAlgorithm:       "HS256",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 30 * 24 * time.Hour,
		PasswordScheme:     security.SchemePBKDF2,
	}

	passwords, err := security.NewCredentialStore(cfg.PasswordScheme)
	require.NoError(t, err)
	tokens, err := security.NewTokenCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	require.NoError(t, err)
	authService := services.NewAuthService(db, cfg, passwords, tokens)

	app := fiber.New(fiber.Config{ErrorHandler: httputil.ErrorHandler})
	routes.Setup(app,
		handlers.NewAuthHandler(authService),
		handlers.NewStatsHandler(services.NewStatisticsService(db)),
		handlers.NewHealthHandler(db),
		middleware.JWTProtected(cfg, authService),
		nil,
	)
	return app
}

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func meal(at, dish string, kcal float64) map[string]any {
	return map[string]any{
		"time":        at,
		"dishName":    dish,
		"totalWeight": 250,
		"totalMacros": map[string]any{"calories": kcal, "protein": 10, "fat": 5, "carbs": 30, "fiber": 2},
		"ingredients": []map[string]any{{"name": "beet", "quantity": 2}},
	}
}

func TestAuthAndStatisticsFlow(t *testing.T) {
	c := &client{t: t, app: newTestApp(t, testdb.New(t))}

	status, body := c.do("POST", "/auth/register", map[string]any{
		"email": "Anna@Example.com", "name": "Anna", "password": "correct-horse",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "anna@example.com", body["email"])
	assert.NotContains(t, body, "passwordHash")

	status, body = c.do("POST", "/auth/register", map[string]any{
		"email": "anna@example.com", "name": "Anna", "password": "correct-horse",
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, true, body["error"])

	status, body = c.do("GET", "/auth/email_exists?email=ANNA@example.com", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["exists"])

	status, _ = c.do("POST", "/auth/login", map[string]any{"email": "anna@example.com", "password": "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = c.do("POST", "/auth/login", map[string]any{"email": "anna@example.com", "password": "correct-horse"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "bearer", body["tokenType"])
	c.token = body["accessToken"].(string)
	refresh := body["refreshToken"].(string)

	status, body = c.do("GET", "/auth/me", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Anna", body["name"])

	status, body = c.do("PATCH", "/auth/me", map[string]any{"name": "Anna K", "weight": 61.5, "weightMetric": "kg"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Anna K", body["name"])
	assert.Equal(t, 61.5, body["weight"])

	// Meals
	status, first := c.do("POST", "/stats/meals", meal("2026-03-01T08:00:00Z", "Oatmeal", 300))
	require.Equal(t, fiber.StatusCreated, status, first)
	status, second := c.do("POST", "/stats/meals", meal("2026-03-01T13:00:00Z", "Borscht", 210))
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = c.do("POST", "/stats/meals", meal("2026-03-02T09:00:00Z", "oatmeal", 320))
	require.Equal(t, fiber.StatusCreated, status)

	status, body = c.do("POST", "/stats/meals", meal("2026-03-01T08:00:00Z", "", 300))
	assert.Equal(t, fiber.StatusUnprocessableEntity, status, body)

	status, body = c.do("GET", "/stats", nil)
	require.Equal(t, fiber.StatusOK, status)
	days := body["days"].([]any)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-02", days[0].(map[string]any)["day"])

	status, body = c.do("GET", "/stats/days/2026-03-01/meals", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["meals"], 2)

	status, _ = c.do("GET", "/stats/days/2026-13-01/meals", nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, body = c.do("GET", "/stats/dish-names", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["dishNames"], 3)

	dishID := first["id"].(float64)
	status, body = c.do("GET", "/stats/dishes?dishId="+jsonNumber(dishID), nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Len(t, body["meals"], 2)

	status, _ = c.do("DELETE", "/stats/days/2026-03-01/meals/"+jsonNumber(second["id"].(float64)), nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = c.do("DELETE", "/stats/days/2026-03-01/meals/"+jsonNumber(second["id"].(float64)), nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = c.do("DELETE", "/stats/days/2026-03-02", nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, body = c.do("GET", "/stats/days/2026-03-02/meals", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []any{}, body["meals"])

	// Removing the last meal of a day drops the bucket; the day reads as empty.
	status, _ = c.do("DELETE", "/stats/days/2026-03-01/meals/"+jsonNumber(dishID), nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, body = c.do("GET", "/stats/days/2026-03-01/meals", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "2026-03-01", body["day"])
	assert.Equal(t, []any{}, body["meals"])

	status, body = c.do("GET", "/stats", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []any{}, body["days"])

	// Refresh rotates: the old refresh token stops working.
	status, body = c.do("POST", "/auth/refresh", map[string]any{"refreshToken": refresh})
	require.Equal(t, fiber.StatusOK, status, body)
	rotated := body["refreshToken"].(string)
	assert.NotEqual(t, refresh, rotated)

	status, _ = c.do("POST", "/auth/refresh", map[string]any{"refreshToken": refresh})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	// The access token of the rotated session is dead too.
	status, _ = c.do("GET", "/auth/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	c.token = body["accessToken"].(string)
	status, _ = c.do("GET", "/auth/me", nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = c.do("POST", "/auth/logout", map[string]any{"refreshToken": rotated})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, _ = c.do("GET", "/auth/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	c := &client{t: t, app: newTestApp(t, testdb.New(t))}

	for _, body := range []any{nil, map[string]any{}, map[string]any{"refreshToken": "not-a-token-at-all-really"}} {
		status, resp := c.do("POST", "/auth/logout", body)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, true, resp["success"])
	}
}

func TestStatsRequireBearer(t *testing.T) {
	c := &client{t: t, app: newTestApp(t, testdb.New(t))}

	status, body := c.do("GET", "/stats", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Not authenticated", body["message"])

	c.token = "garbage"
	status, _ = c.do("POST", "/stats/meals", meal("2026-03-01T08:00:00Z", "Oatmeal", 300))
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestHealth(t *testing.T) {
	c := &client{t: t, app: newTestApp(t, testdb.New(t))}

	status, body := c.do("GET", "/health", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["db"])
}

func TestHealthDegraded(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	app := fiber.New(fiber.Config{ErrorHandler: httputil.ErrorHandler})
	app.Get("/health", handlers.NewHealthHandler(db).Check)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unavailable", body["db"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(int64(f))
	return string(b)
}
