package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"teamgate/internal/service"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Username and password are required",
		})
	}

	if err := h.authService.Login(c.Context(), req.Username, req.Password, c.IP()); err != nil {
		if errors.Is(err, service.ErrTooManyAttempts) {
			return c.Status(429).JSON(fiber.Map{
				"error": "Too many failed attempts, try again later",
			})
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			remaining, rerr := h.authService.RemainingAttempts(c.Context(), c.IP())
			if rerr != nil {
				h.logger.ErrorContext(c.Context(), "Failed to count remaining attempts", "error", rerr)
			}
			return c.Status(401).JSON(fiber.Map{
				"error":              "Invalid username or password",
				"remaining_attempts": remaining,
			})
		}
		h.logger.ErrorContext(c.Context(), "Login failed", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	sess, err := h.store.Get(c)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to get session", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}
	sess.Set("admin", true)
	if err := sess.Save(); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to save session", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to save session",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Logged in",
	})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to get session", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to get session",
		})
	}

	sess.Delete("admin")
	if err := sess.Destroy(); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to destroy session", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to destroy session",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}

// RequireAuth guards the admin routes behind the session flag.
func (h *Handler) RequireAuth(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to get session", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to get session",
		})
	}
	if admin, ok := sess.Get("admin").(bool); !ok || !admin {
		return c.Status(401).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
	return c.Next()
}
