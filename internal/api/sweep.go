package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"teamgate/internal/service"
)

type autoKickConfigRequest struct {
	Enabled          *bool  `json:"enabled" validate:"required"`
	CheckIntervalMin int    `json:"check_interval_min" validate:"required,min=10"`
	CheckIntervalMax int    `json:"check_interval_max" validate:"required,min=10"`
	StartTime        string `json:"start_time" validate:"required,clock_hhmm"`
	EndTime          string `json:"end_time" validate:"required,clock_hhmm"`
	Timezone         string `json:"timezone" validate:"required"`
}

func (h *Handler) GetAutoKickConfig(c *fiber.Ctx) error {
	cfg, err := h.repo.GetAutoKickConfig(c.Context())
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to load auto kick config", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(cfg)
}

func (h *Handler) UpdateAutoKickConfig(c *fiber.Ctx) error {
	var req autoKickConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Interval bounds must be at least 10 seconds and times must be HH:MM",
		})
	}
	if req.CheckIntervalMax < req.CheckIntervalMin {
		return c.Status(400).JSON(fiber.Map{
			"error": "Maximum interval must not be below the minimum",
		})
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Unknown timezone",
		})
	}

	cfg, err := h.repo.GetAutoKickConfig(c.Context())
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to load auto kick config", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	cfg.Enabled = *req.Enabled
	cfg.CheckIntervalMin = req.CheckIntervalMin
	cfg.CheckIntervalMax = req.CheckIntervalMax
	cfg.StartTime = req.StartTime
	cfg.EndTime = req.EndTime
	cfg.Timezone = req.Timezone
	cfg.UpdatedAt = time.Now().UTC()

	if err := h.repo.UpdateAutoKickConfig(c.Context(), cfg); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to update auto kick config", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(cfg)
}

// TriggerSweep starts a reconciliation run in the background. A second
// trigger while one runs reports the conflict instead of queueing.
func (h *Handler) TriggerSweep(c *fiber.Ctx) error {
	if err := h.sweepService.Trigger(c.Context()); err != nil {
		if errors.Is(err, service.ErrSweepAlreadyRunning) {
			return c.Status(409).JSON(fiber.Map{
				"error": "A sweep is already running",
			})
		}
		h.logger.ErrorContext(c.Context(), "Failed to trigger sweep", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.Status(202).JSON(fiber.Map{
		"message": "Sweep started",
	})
}

func (h *Handler) SweepStatus(c *fiber.Ctx) error {
	return c.JSON(h.sweepService.Status())
}

func (h *Handler) ListKickLogs(c *fiber.Ctx) error {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			return c.Status(400).JSON(fiber.Map{
				"error": "Limit must be between 1 and 1000",
			})
		}
		limit = parsed
	}

	logs, err := h.repo.ListKickLogs(c.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to list kick logs", "error", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"logs": logs,
	})
}
