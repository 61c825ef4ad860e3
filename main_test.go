package main

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicRateLimiter(t *testing.T) {
	app := fiber.New()
	app.Use(publicRateLimiter())
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Post("/api/join", ok)
	app.Post("/api/admin/login", ok)
	app.Get("/health", ok)

	for i := 0; i < 10; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/api/admin/login", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp, err := app.Test(httptest.NewRequest("POST", "/api/admin/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode, "login shares the public budget")

	resp, err = app.Test(httptest.NewRequest("POST", "/api/join", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode, "join shares the public budget")

	resp, err = app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "authenticated and internal paths are exempt")
}
