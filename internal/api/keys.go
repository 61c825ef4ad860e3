package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"teamgate/internal/repository"
	"teamgate/internal/service"
)

type generateKeysRequest struct {
	Count     int    `json:"count" validate:"required,min=1,max=100"`
	TeamID    string `json:"team_id" validate:"omitempty,uuid4"`
	IsTemp    bool   `json:"is_temp"`
	TempHours int    `json:"temp_hours" validate:"omitempty,min=1"`
}

func (h *Handler) GenerateKeys(c *fiber.Ctx) error {
	var req generateKeysRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Count must be between 1 and 100",
		})
	}

	var teamID *uuid.UUID
	if req.TeamID != "" {
		parsed, err := uuid.Parse(req.TeamID)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{
				"error": "Invalid team ID",
			})
		}
		teamID = &parsed
	}

	keys, err := h.keyService.Generate(c.Context(), req.Count, teamID, req.IsTemp, req.TempHours)
	if err != nil {
		if errors.Is(err, repository.ErrTeamNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Team not found",
			})
		}
		if errors.Is(err, service.ErrInvalidBatchSize) {
			return c.Status(400).JSON(fiber.Map{
				"error": "Count must be between 1 and 100",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to generate access keys", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.Status(201).JSON(fiber.Map{
		"keys": keys,
	})
}

func (h *Handler) ListKeys(c *fiber.Ctx) error {
	keys, err := h.keyService.List(c.Context())
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to list access keys", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"keys": keys,
	})
}

func (h *Handler) DeleteKey(c *fiber.Ctx) error {
	keyID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid key ID",
		})
	}

	if err := h.keyService.Delete(c.Context(), keyID); err != nil {
		if errors.Is(err, repository.ErrAccessKeyNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Access key not found",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to delete access key", "key_id", keyID, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Access key deleted",
	})
}
