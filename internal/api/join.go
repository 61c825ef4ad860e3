package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"teamgate/internal/service"
)

type joinRequest struct {
	Email string `json:"email" validate:"required,email"`
	Key   string `json:"key" validate:"required"`
}

// Join is the public redemption endpoint: an email plus a valid access key
// buys a seat on whichever team the assignment policy picks.
func (h *Handler) Join(c *fiber.Ctx) error {
	var req joinRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "A valid email and access key are required",
		})
	}

	result, err := h.inviteService.Join(c.Context(), req.Email, req.Key)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailRequired):
			return c.Status(400).JSON(fiber.Map{
				"error": "Email is required",
			})
		case errors.Is(err, service.ErrInvalidAccessKey):
			return c.Status(403).JSON(fiber.Map{
				"error": "Invalid or already used access key",
			})
		}
		var exhausted *service.CapacityExhaustedError
		if errors.As(err, &exhausted) {
			return c.Status(503).JSON(fiber.Map{
				"error": "No team has a free seat right now, try again later",
			})
		}
		h.logger.ErrorContext(c.Context(), "Join failed", "email", req.Email, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	response := fiber.Map{
		"message":   "Invitation sent, check your inbox",
		"team_name": result.TeamName,
		"email":     result.Email,
	}
	if result.IsTemp {
		response["is_temp"] = true
		response["temp_hours"] = result.TempHours
	}
	return c.JSON(response)
}
