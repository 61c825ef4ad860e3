package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"teamgate/internal/config"
	"teamgate/internal/model"
	"teamgate/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
)

// AuthService authenticates the operator account and throttles brute force
// attempts per source IP against the login attempt ledger.
type AuthService struct {
	logger *slog.Logger
	repo   repository.Repository
	cfg    config.AdminConfig
}

func NewAuthService(logger *slog.Logger, repo repository.Repository, cfg config.AdminConfig) *AuthService {
	return &AuthService{
		logger: logger,
		repo:   repo,
		cfg:    cfg,
	}
}

// Login verifies the operator password. The attempt is recorded regardless
// of outcome, and an IP that crossed the failure threshold within the
// lockout window is refused before the password is even checked.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) error {
	since := time.Now().UTC().Add(-s.cfg.LockoutWindow)
	failures, err := s.repo.CountRecentLoginFailures(ctx, ip, since)
	if err != nil {
		return err
	}
	if failures >= s.cfg.MaxLoginFailures {
		s.logger.Warn("Login blocked, too many failures", "ip", ip)
		s.record(ctx, ip, username, false)
		return ErrTooManyAttempts
	}

	err = bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password))
	success := err == nil
	s.record(ctx, ip, username, success)

	if !success {
		s.logger.Warn("Login failed", "ip", ip, "username", username)
		return ErrInvalidCredentials
	}
	s.logger.Info("Login succeeded", "ip", ip)
	return nil
}

// RemainingAttempts reports how many failures an IP has left before lockout.
func (s *AuthService) RemainingAttempts(ctx context.Context, ip string) (int, error) {
	since := time.Now().UTC().Add(-s.cfg.LockoutWindow)
	failures, err := s.repo.CountRecentLoginFailures(ctx, ip, since)
	if err != nil {
		return 0, err
	}
	remaining := s.cfg.MaxLoginFailures - failures
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// PruneOld drops login attempt rows older than the retention period.
func (s *AuthService) PruneOld(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.PruneLoginAttempts(ctx, time.Now().UTC().Add(-retention))
}

func (s *AuthService) record(ctx context.Context, ip, username string, success bool) {
	attempt := model.LoginAttempt{
		ID:        uuid.New(),
		IPAddress: ip,
		Username:  username,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.RecordLoginAttempt(ctx, attempt); err != nil {
		s.logger.Error("Failed to record login attempt", "ip", ip, "error", err)
	}
}
