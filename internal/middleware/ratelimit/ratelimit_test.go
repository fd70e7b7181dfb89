package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedApp(t *testing.T, maxPerMinute int) *fiber.App {
	t.Helper()

	limiter := New(Config{MaxRequestsPerMinute: maxPerMinute})
	t.Cleanup(limiter.Stop)

	app := fiber.New()
	app.Use(limiter.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func TestMiddlewareAllowsWithinLimit(t *testing.T) {
	app := newLimitedApp(t, 5)

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping?username=alice", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestMiddlewareBlocksOverLimit(t *testing.T) {
	app := newLimitedApp(t, 2)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping?username=alice", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/ping?username=alice", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestMiddlewareKeysByUsername(t *testing.T) {
	app := newLimitedApp(t, 1)

	resp, err := app.Test(httptest.NewRequest("GET", "/ping?username=alice", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/ping?username=bob", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
