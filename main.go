package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/postgres/v3"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"teamgate/internal/api"
	"teamgate/internal/chatgpt"
	"teamgate/internal/config"
	"teamgate/internal/daemon"
	"teamgate/internal/database"
	"teamgate/internal/monitoring"
	"teamgate/internal/repository"
	"teamgate/internal/service"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	cfg := config.NewConfig()

	tel, err := monitoring.NewOpenTelemetry(cfg.Telemetry)
	if err != nil {
		return err
	}
	logger := tel.Logger()
	slog.SetDefault(logger)

	// An explicit hash wins; otherwise hash the plaintext ADMIN_PASSWORD at
	// startup so development setups work without pre-hashing.
	if cfg.Admin.PasswordHash == "" {
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			logger.Warn("No admin password configured, admin login is disabled")
		} else {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			cfg.Admin.PasswordHash = string(hash)
		}
	}

	// Connect to the database
	db, err := database.NewPostgresDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize repository and run migrations
	repo := repository.NewDatabaseRepository(db)
	if err := repo.Migrate(); err != nil {
		return err
	}

	// Session store backed by the same database
	sessionStorage := postgres.New(postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Name,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		Table:    "sessions",
		Reset:    false,
	})
	store := session.New(session.Config{
		Storage:        sessionStorage,
		KeyLookup:      "cookie:session_id",
		CookiePath:     "/",
		CookieSecure:   cfg.Server.Environment == "production",
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		Expiration:     24 * time.Hour,
	})

	remote := chatgpt.NewClient(cfg.Remote.BaseURL, cfg.Remote.ListTimeout, cfg.Remote.WriteTimeout)

	authService := service.NewAuthService(logger, repo, cfg.Admin)
	teamService := service.NewTeamService(logger, repo, remote)
	keyService := service.NewKeyService(logger, repo)
	inviteService := service.NewInviteService(logger, repo, remote, tel, cfg.Remote.VerifyDelay)
	sweepService := service.NewSweepService(logger, repo, remote, tel)

	handler := api.NewHandler(store, repo, tel, authService, teamService, keyService, inviteService, sweepService)

	// Set up Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	// Rate limiting for the unauthenticated endpoints
	app.Use(publicRateLimiter())

	handler.RegisterRoutes(app)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Starting HTTP server...", "addr", addr)
		if err := app.Listen(addr); err != nil {
			logger.Error("HTTP server stopped", "error", err)
			cancel()
		}
	}()

	manager := daemon.NewDaemonManager(logger)
	manager.Add("sweep", daemon.SweepTask(sweepService))
	manager.Add("login_attempt_prune", daemon.LoginAttemptPruneTask(authService, logger))

	logger.Info("Starting supervised daemons...")
	manager.Start(ctx)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal", "signal", sig)
	case <-ctx.Done():
	}
	cancel()

	logger.Info("Running cleanup tasks...")
	if err := app.Shutdown(); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}
	manager.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down telemetry", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

// publicRateLimiter throttles the endpoints reachable without a session,
// join redemption and operator login. Everything else passes through.
func publicRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() != "/api/join" && c.Path() != "/api/admin/login"
		},
	})
}
