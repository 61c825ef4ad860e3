package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"teamgate/internal/monitoring"
	"teamgate/internal/repository"
	"teamgate/internal/service"
	"teamgate/internal/validator"
)

type Handler struct {
	store     *session.Store
	logger    *slog.Logger
	repo      repository.Repository
	validator *validator.Validator
	telemetry monitoring.Telemetry

	authService   *service.AuthService
	teamService   *service.TeamService
	keyService    *service.KeyService
	inviteService *service.InviteService
	sweepService  *service.SweepService
}

func NewHandler(
	store *session.Store,
	repo repository.Repository,
	tel monitoring.Telemetry,
	authService *service.AuthService,
	teamService *service.TeamService,
	keyService *service.KeyService,
	inviteService *service.InviteService,
	sweepService *service.SweepService,
) Handler {
	return Handler{
		store:         store,
		logger:        tel.Logger(),
		repo:          repo,
		validator:     validator.New(),
		telemetry:     tel,
		authService:   authService,
		teamService:   teamService,
		keyService:    keyService,
		inviteService: inviteService,
		sweepService:  sweepService,
	}
}

// RegisterRoutes wires every endpoint onto the fiber app. Admin routes sit
// behind the session guard; /api/join and /health are public.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Healthy)

	app.Post("/api/join", h.Join)

	app.Post("/api/admin/login", h.Login)
	app.Post("/api/admin/logout", h.Logout)

	admin := app.Group("/api/admin", h.RequireAuth)

	admin.Get("/teams", h.ListTeams)
	admin.Post("/teams", h.RegisterTeam)
	admin.Put("/teams/:id/token", h.UpdateTeamToken)
	admin.Delete("/teams/:id", h.DeleteTeam)
	admin.Post("/teams/:id/check-token", h.CheckTeamToken)
	admin.Get("/teams/:id/members", h.ListTeamMembers)
	admin.Delete("/teams/:id/members/:user_id", h.KickMemberByUserID)
	admin.Post("/teams/:id/kick-by-email", h.KickMemberByEmail)

	admin.Post("/invite", h.AdminInvite)
	admin.Post("/kick-by-email", h.KickByEmailAnyTeam)

	admin.Post("/keys", h.GenerateKeys)
	admin.Get("/keys", h.ListKeys)
	admin.Delete("/keys/:id", h.DeleteKey)

	admin.Get("/invitations", h.ListInvitations)
	admin.Post("/invitations/:id/confirm", h.ConfirmInvitation)

	admin.Get("/auto-kick/config", h.GetAutoKickConfig)
	admin.Put("/auto-kick/config", h.UpdateAutoKickConfig)
	admin.Post("/auto-kick/check-now", h.TriggerSweep)
	admin.Get("/auto-kick/status", h.SweepStatus)
	admin.Get("/auto-kick/logs", h.ListKickLogs)
}
