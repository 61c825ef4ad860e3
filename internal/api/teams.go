package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"teamgate/internal/repository"
)

type registerTeamRequest struct {
	Name           string `json:"name" validate:"required"`
	AccessToken    string `json:"access_token" validate:"required"`
	AccountID      string `json:"account_id" validate:"required"`
	OrganizationID string `json:"organization_id" validate:"required"`
	Email          string `json:"email" validate:"omitempty,email"`
}

type updateTokenRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type kickByEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) ListTeams(c *fiber.Ctx) error {
	teams, err := h.teamService.List(c.Context())
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to list teams", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"teams": teams,
	})
}

func (h *Handler) RegisterTeam(c *fiber.Ctx) error {
	var req registerTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Name, access token, account id and organization id are required",
		})
	}

	team, updated, err := h.teamService.Register(c.Context(), req.Name, req.AccessToken, req.AccountID, req.OrganizationID, req.Email)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to register team", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	status := 201
	message := "Team registered"
	if updated {
		status = 200
		message = "Team already registered, details refreshed"
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"team":    team,
	})
}

func (h *Handler) UpdateTeamToken(c *fiber.Ctx) error {
	teamID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid team ID",
		})
	}

	var req updateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Access token is required",
		})
	}

	if err := h.teamService.UpdateToken(c.Context(), teamID, req.AccessToken); err != nil {
		if errors.Is(err, repository.ErrTeamNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Team not found",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to update team token", "team_id", teamID, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Token updated",
	})
}

func (h *Handler) DeleteTeam(c *fiber.Ctx) error {
	teamID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid team ID",
		})
	}

	if err := h.teamService.Delete(c.Context(), teamID); err != nil {
		if errors.Is(err, repository.ErrTeamNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Team not found",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to delete team", "team_id", teamID, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Team deleted",
	})
}

func (h *Handler) CheckTeamToken(c *fiber.Ctx) error {
	teamID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid team ID",
		})
	}

	result, err := h.teamService.CheckToken(c.Context(), teamID)
	if err != nil {
		if errors.Is(err, repository.ErrTeamNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Team not found",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to check team token", "team_id", teamID, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(result)
}

func (h *Handler) ListTeamMembers(c *fiber.Ctx) error {
	teamID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid team ID",
		})
	}

	members, err := h.teamService.Members(c.Context(), teamID)
	if err != nil {
		if errors.Is(err, repository.ErrTeamNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "Team not found",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to list team members", "team_id", teamID, "error", err)
		return c.Status(502).JSON(fiber.Map{
			"error": "Failed to reach the remote account",
		})
	}
	return c.JSON(fiber.Map{
		"members": members,
	})
}

// KickMemberByUserID drops a member's ledger row so the next sweep removes
// them. The removal itself is asynchronous.
func (h *Handler) KickMemberByUserID(c *fiber.Ctx) error {
	teamID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid team ID",
		})
	}
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	email, err := h.inviteService.MarkForRemovalByUserID(c.Context(), teamID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrInvitationNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "No tracked member with that user ID",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to mark member for removal", "team_id", teamID, "user_id", userID, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Member marked for removal, the next sweep will expel them",
		"email":   email,
	})
}

func (h *Handler) KickMemberByEmail(c *fiber.Ctx) error {
	teamID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid team ID",
		})
	}

	var req kickByEmailRequest
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

	if err := h.inviteService.MarkForRemovalByEmail(c.Context(), teamID, req.Email); err != nil {
		if errors.Is(err, repository.ErrInvitationNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "No tracked member with that email",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to mark member for removal", "team_id", teamID, "email", req.Email, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Member marked for removal, the next sweep will expel them",
	})
}

// KickByEmailAnyTeam searches every team for the email and marks the first
// match for removal.
func (h *Handler) KickByEmailAnyTeam(c *fiber.Ctx) error {
	var req kickByEmailRequest
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

	team, err := h.inviteService.FindAndMarkForRemoval(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrInvitationNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": "No tracked member with that email on any team",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to mark member for removal", "email", req.Email, "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message":   "Member marked for removal, the next sweep will expel them",
		"team_name": team.Name,
	})
}
