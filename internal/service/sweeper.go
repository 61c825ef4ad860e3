package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"teamgate/internal/chatgpt"
	"teamgate/internal/model"
	"teamgate/internal/monitoring"
	"teamgate/internal/repository"
)

// ErrSweepAlreadyRunning is returned when a sweep is triggered while one is
// in flight. It is a no-op signal, not a failure.
var ErrSweepAlreadyRunning = errors.New("sweep already running")

const (
	reasonTempExpired  = "temporary invitation expired"
	reasonUnauthorized = "unauthorized member"

	// configPollBackoff is how long the loop waits when sweeping is
	// disabled or outside the daily window.
	configPollBackoff = time.Minute
	// crashCooldown is the pause after a sweep iteration fails outright,
	// so a broken remote API does not get hammered in a tight loop.
	crashCooldown = 5 * time.Minute
)

// SweepReport summarizes one reconciliation run.
type SweepReport struct {
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	DurationSeconds   float64   `json:"duration_seconds"`
	TeamsTotal        int       `json:"teams_total"`
	TeamsSucceeded    int       `json:"teams_succeeded"`
	TeamsFailed       int       `json:"teams_failed"`
	TeamsSkipped      int       `json:"teams_skipped"`
	ExpiredKicks      int       `json:"expired_kicks"`
	UnauthorizedKicks int       `json:"unauthorized_kicks"`
}

// SweepStatus is the externally visible state of the sweeper.
type SweepStatus struct {
	Running    bool         `json:"running"`
	LastReport *SweepReport `json:"last_report,omitempty"`
}

// SweepService is the reconciliation engine: it expels members whose
// temporary grace period elapsed and anyone present remotely without an
// authorization row in the ledger. At most one sweep runs process-wide.
type SweepService struct {
	logger    *slog.Logger
	repo      repository.Repository
	remote    RemoteClient
	telemetry monitoring.Telemetry

	// sweepMu is held for the whole duration of a sweep; TryLock gives the
	// non-blocking re-entry refusal.
	sweepMu sync.Mutex

	// stateMu guards the fields below.
	stateMu    sync.Mutex
	running    bool
	lastReport *SweepReport

	workers   int
	maxJitter time.Duration
}

// SweepOption adjusts sweep tuning knobs.
type SweepOption func(*SweepService)

// WithSweepWorkers caps the number of concurrent team checks.
func WithSweepWorkers(n int) SweepOption {
	return func(s *SweepService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSweepJitter bounds the random delay before each team check.
func WithSweepJitter(d time.Duration) SweepOption {
	return func(s *SweepService) { s.maxJitter = d }
}

func NewSweepService(logger *slog.Logger, repo repository.Repository, remote RemoteClient, telemetry monitoring.Telemetry, opts ...SweepOption) *SweepService {
	s := &SweepService{
		logger:    logger,
		repo:      repo,
		remote:    remote,
		telemetry: telemetry,
		workers:   3,
		maxJitter: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status reports whether a sweep is in flight and the last run's report.
func (s *SweepService) Status() SweepStatus {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return SweepStatus{Running: s.running, LastReport: s.lastReport}
}

// Trigger starts a sweep in the background. A concurrent trigger while one
// is running returns ErrSweepAlreadyRunning without queueing a second run.
// The sweep runs on a fresh context: the caller's request context is
// recycled once the handler returns.
func (s *SweepService) Trigger(_ context.Context) error {
	if !s.sweepMu.TryLock() {
		return ErrSweepAlreadyRunning
	}
	go func() {
		defer s.sweepMu.Unlock()
		s.sweep(context.Background())
	}()
	return nil
}

// RunSweep executes a sweep synchronously.
func (s *SweepService) RunSweep(ctx context.Context) (SweepReport, error) {
	if !s.sweepMu.TryLock() {
		return SweepReport{}, ErrSweepAlreadyRunning
	}
	defer s.sweepMu.Unlock()
	return s.sweep(ctx), nil
}

func (s *SweepService) sweep(ctx context.Context) SweepReport {
	start := time.Now().UTC()
	s.setRunning(true)
	defer s.setRunning(false)

	report := SweepReport{StartedAt: start}

	s.logger.Info("Sweep started")
	report.ExpiredKicks = s.sweepExpiredTemporary(ctx)
	s.sweepUnauthorized(ctx, &report)

	report.FinishedAt = time.Now().UTC()
	report.DurationSeconds = report.FinishedAt.Sub(start).Seconds()

	s.stateMu.Lock()
	s.lastReport = &report
	s.stateMu.Unlock()

	s.telemetry.RecordSweep(ctx, report.FinishedAt.Sub(start), report.TeamsTotal)
	s.logger.Info("Sweep finished",
		"teams_total", report.TeamsTotal,
		"teams_succeeded", report.TeamsSucceeded,
		"teams_failed", report.TeamsFailed,
		"teams_skipped", report.TeamsSkipped,
		"expired_kicks", report.ExpiredKicks,
		"unauthorized_kicks", report.UnauthorizedKicks,
		"duration", report.FinishedAt.Sub(start),
	)
	return report
}

func (s *SweepService) setRunning(v bool) {
	s.stateMu.Lock()
	s.running = v
	s.stateMu.Unlock()
}

// sweepExpiredTemporary expels members whose unconfirmed temporary
// invitation has passed its expiry. The ledger row is deleted only after the
// remote removal succeeds, so a failed kick is retried on the next sweep.
func (s *SweepService) sweepExpiredTemporary(ctx context.Context) int {
	expired, err := s.repo.ListExpiredTemporary(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("Failed to query expired temporary invitations", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}
	s.logger.Info("Expired temporary invitations found", "count", len(expired))

	kicked := 0
	for _, invitation := range expired {
		team, err := s.repo.GetTeamByID(ctx, invitation.TeamID)
		if err != nil {
			continue
		}
		members, err := s.remote.ListMembers(ctx, credentialFor(team))
		if err != nil {
			s.logger.Warn("Failed to list members for expired invitation check",
				"team", team.Name, "error", err)
			continue
		}
		member := memberWithEmail(members, invitation.Email)
		if member == nil {
			// Not present remotely; nothing to expel, keep the row until
			// the membership resolves one way or the other.
			continue
		}
		if s.kickMember(ctx, team, member.ID, invitation.Email, reasonTempExpired) {
			kicked++
		}
	}
	return kicked
}

// sweepUnauthorized diffs each team's live membership against the ledger's
// authorized set and expels everyone else, owner excepted. Per-team checks
// run on a small worker pool with jittered submission to smooth bursts
// against the rate-limited remote API.
func (s *SweepService) sweepUnauthorized(ctx context.Context, report *SweepReport) {
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		s.logger.Error("Failed to list teams for sweep", "error", err)
		return
	}
	report.TeamsTotal = len(teams)

	type teamOutcome struct {
		kicks   int
		skipped bool
		failed  bool
	}

	var (
		wg        sync.WaitGroup
		resultsMu sync.Mutex
	)
	sem := make(chan struct{}, s.workers)

	for _, team := range teams {
		wg.Add(1)
		go func(team model.Team) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if s.maxJitter > 0 {
				jitter := time.Duration(rand.Int63n(int64(s.maxJitter)))
				select {
				case <-ctx.Done():
					return
				case <-time.After(jitter):
				}
			}

			outcome := teamOutcome{}
			kicks, err := s.checkTeam(ctx, team)
			outcome.kicks = kicks
			if err != nil {
				if chatgpt.IsRateLimited(err) {
					outcome.skipped = true
					s.logger.Warn("Team check rate limited, skipping for this sweep", "team", team.Name)
				} else {
					outcome.failed = true
					s.logger.Error("Team check failed", "team", team.Name, "error", err)
				}
			}

			resultsMu.Lock()
			report.UnauthorizedKicks += outcome.kicks
			switch {
			case outcome.skipped:
				report.TeamsSkipped++
			case outcome.failed:
				report.TeamsFailed++
			default:
				report.TeamsSucceeded++
			}
			resultsMu.Unlock()
		}(team)
	}
	wg.Wait()
}

// checkTeam reconciles one team. The authorized set is the ledger's
// success-status emails plus the account owner.
func (s *SweepService) checkTeam(ctx context.Context, team model.Team) (int, error) {
	emails, err := s.repo.AuthorizedEmails(ctx, team.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load authorized emails: %w", err)
	}
	authorized := make(map[string]struct{}, len(emails)+1)
	for _, e := range emails {
		authorized[strings.ToLower(e)] = struct{}{}
	}
	if team.Email != "" {
		authorized[strings.ToLower(team.Email)] = struct{}{}
	}

	members, err := s.remote.ListMembers(ctx, credentialFor(team))
	if err != nil {
		if chatgpt.IsAuthFailure(err) {
			if rerr := s.repo.RecordTeamAuthFailure(ctx, team.ID); rerr != nil {
				s.logger.Error("Failed to record team auth failure", "team_id", team.ID, "error", rerr)
			}
		}
		return 0, err
	}

	kicks := 0
	for _, member := range members {
		if member.IsOwner() {
			continue
		}
		if _, ok := authorized[strings.ToLower(member.Email)]; ok {
			continue
		}
		if s.kickMember(ctx, team, member.ID, member.Email, reasonUnauthorized) {
			kicks++
		}
	}
	return kicks, nil
}

// kickMember removes one member remotely and records the outcome. Only a
// successful removal deletes the ledger row.
func (s *SweepService) kickMember(ctx context.Context, team model.Team, userID, email, reason string) bool {
	err := s.remote.RemoveMember(ctx, credentialFor(team), userID)

	entry := model.KickLog{
		ID:        uuid.New(),
		TeamID:    team.ID,
		UserID:    userID,
		Email:     email,
		Reason:    reason,
		Success:   err == nil,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	if lerr := s.repo.CreateKickLog(ctx, entry); lerr != nil {
		s.logger.Error("Failed to write kick log", "team", team.Name, "email", email, "error", lerr)
	}
	s.telemetry.RecordKick(ctx, reason, err == nil)

	if err != nil {
		s.logger.Warn("Failed to remove member", "team", team.Name, "email", email, "error", err)
		return false
	}

	if derr := s.repo.DeleteInvitationByEmail(ctx, team.ID, email); derr != nil {
		s.logger.Error("Failed to delete invitation after kick", "team", team.Name, "email", email, "error", derr)
	}
	s.logger.Info("Member removed", "team", team.Name, "email", email, "reason", reason)
	return true
}

// Run is the scheduling loop, intended to be supervised as a daemon. While
// enabled and inside the configured daily window it sweeps, then sleeps a
// random interval between the configured bounds; otherwise it re-checks the
// configuration after a short backoff.
func (s *SweepService) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		cfg, err := s.repo.GetAutoKickConfig(ctx)
		if err != nil {
			s.logger.Error("Failed to load sweep configuration", "error", err)
			if !sleepCtx(ctx, crashCooldown) {
				return nil
			}
			continue
		}

		if !cfg.Enabled || !inActiveWindow(cfg, time.Now()) {
			if !sleepCtx(ctx, configPollBackoff) {
				return nil
			}
			continue
		}

		if _, err := s.RunSweep(ctx); err != nil && !errors.Is(err, ErrSweepAlreadyRunning) {
			s.logger.Error("Sweep iteration failed", "error", err)
			if !sleepCtx(ctx, crashCooldown) {
				return nil
			}
			continue
		}

		interval := randomInterval(cfg.CheckIntervalMin, cfg.CheckIntervalMax)
		s.logger.Info("Next sweep scheduled", "in", interval)
		if !sleepCtx(ctx, interval) {
			return nil
		}
	}
}

// inActiveWindow checks the configured daily "HH:MM" window in the
// configured timezone. Windows where start > end wrap past midnight. An
// unparseable configuration permits the sweep rather than silently
// disabling it.
func inActiveWindow(cfg model.AutoKickConfig, now time.Time) bool {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	current := now.In(loc).Format("15:04")

	start, end := cfg.StartTime, cfg.EndTime
	if len(start) != 5 || len(end) != 5 {
		return true
	}
	if start <= end {
		return start <= current && current <= end
	}
	return current >= start || current <= end
}

func randomInterval(minSeconds, maxSeconds int) time.Duration {
	if minSeconds < 1 {
		minSeconds = 1
	}
	if maxSeconds < minSeconds {
		maxSeconds = minSeconds
	}
	span := maxSeconds - minSeconds + 1
	return time.Duration(minSeconds+rand.Intn(span)) * time.Second
}

// sleepCtx sleeps for d, returning false if the context was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
