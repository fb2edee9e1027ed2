package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/stats/days/:day/meals", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "teapot")
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/stats/days/:day/meals", "200"))
	for _, day := range []string{"2024-01-02", "2024-01-03"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/stats/days/"+day+"/meals", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/stats/days/:day/meals", "200"))
	assert.Equal(t, 2.0, after-before)

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/boom", "418")))
}

func TestRecorder(t *testing.T) {
	var r Recorder

	before := testutil.ToFloat64(authEvents.WithLabelValues("login", "rejected"))
	r.AuthEvent("login", "rejected")
	assert.Equal(t, before+1, testutil.ToFloat64(authEvents.WithLabelValues("login", "rejected")))

	meals := testutil.ToFloat64(mealsLogged)
	r.MealLogged()
	assert.Equal(t, meals+1, testutil.ToFloat64(mealsLogged))

	r.ObserveUpstream("", "timeout", time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(upstreamCalls.WithLabelValues("unknown", "timeout")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", Handler())
	RecordJobRun("purge_sessions", true)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `torvix_jobs_runs_total{job="purge_sessions",success="true"}`))
}
