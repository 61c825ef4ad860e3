package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"teamgate/internal/repository"
	"teamgate/internal/service"
)

type adminInviteRequest struct {
	Email     string `json:"email" validate:"required,email"`
	TeamID    string `json:"team_id" validate:"omitempty,uuid4"`
	IsTemp    bool   `json:"is_temp"`
	TempHours int    `json:"temp_hours" validate:"omitempty,min=1"`
}

// AdminInvite sends an invitation without an access key. A team id pins the
// invite to that team; without one the assignment policy picks.
func (h *Handler) AdminInvite(c *fiber.Ctx) error {
	var req adminInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "A valid email is required",
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

	result, err := h.inviteService.AdminInvite(c.Context(), teamID, req.Email, req.IsTemp, req.TempHours)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTeamNotFound):
			return c.Status(404).JSON(fiber.Map{
				"error": "Team not found",
			})
		case errors.Is(err, service.ErrTeamFull):
			return c.Status(409).JSON(fiber.Map{
				"error": "Team has no free seat",
			})
		case errors.Is(err, service.ErrAlreadyInvited):
			return c.Status(409).JSON(fiber.Map{
				"error": "Email already invited to this team",
			})
		}
		var exhausted *service.CapacityExhaustedError
		if errors.As(err, &exhausted) {
			return c.Status(503).JSON(fiber.Map{
				"error": "No team has a free seat right now",
			})
		}
		h.logger.ErrorContext(c.Context(), "Admin invite failed", "email", req.Email, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message":   "Invitation sent",
		"team_name": result.TeamName,
		"email":     result.Email,
	})
}

func (h *Handler) ListInvitations(c *fiber.Ctx) error {
	var teamID *uuid.UUID
	if raw := c.Query("team_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{
				"error": "Invalid team ID",
			})
		}
		teamID = &parsed
	}

	invitations, err := h.inviteService.ListInvitations(c.Context(), teamID)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to list invitations", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"invitations": invitations,
	})
}

// ConfirmInvitation upgrades a temporary invitation to permanent.
func (h *Handler) ConfirmInvitation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid invitation ID",
		})
	}

	if err := h.inviteService.Confirm(c.Context(), id); err != nil {
		if errors.Is(err, repository.ErrInvitationNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Invitation not found",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to confirm invitation", "invitation_id", id, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Invitation confirmed, expiry no longer applies",
	})
}
