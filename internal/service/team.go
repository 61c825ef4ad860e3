package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"teamgate/internal/chatgpt"
	"teamgate/internal/model"
	"teamgate/internal/repository"
)

// TeamOverview is the admin listing view: the stored team annotated with
// the ledger's seat count and derived token health.
type TeamOverview struct {
	model.Team
	MemberCount int               `json:"member_count"`
	TokenHealth model.TokenHealth `json:"token_health"`
}

// TokenCheckResult reports a live probe of a team's credentials.
type TokenCheckResult struct {
	Healthy     bool   `json:"healthy"`
	MemberCount int    `json:"member_count"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Message     string `json:"message,omitempty"`
}

// TeamMember is a live member annotated with what the ledger knows about it.
type TeamMember struct {
	UserID       string     `json:"user_id"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	IsTemp       bool       `json:"is_temp"`
	TempExpireAt *time.Time `json:"temp_expire_at,omitempty"`
	Confirmed    bool       `json:"confirmed"`
	Tracked      bool       `json:"tracked"`
}

// TeamService manages backing account registrations and token lifecycle.
type TeamService struct {
	logger *slog.Logger
	repo   repository.Repository
	remote RemoteClient
}

func NewTeamService(logger *slog.Logger, repo repository.Repository, remote RemoteClient) *TeamService {
	return &TeamService{
		logger: logger,
		repo:   repo,
		remote: remote,
	}
}

// Register stores a new backing account. When a team with the same
// organization id already exists, its name, token and owner email are
// refreshed in place instead, and updated reports which path was taken.
func (s *TeamService) Register(ctx context.Context, name, accessToken, accountID, organizationID, email string) (team model.Team, updated bool, err error) {
	now := time.Now().UTC()

	existing, err := s.repo.GetTeamByOrganizationID(ctx, organizationID)
	if err == nil {
		existing.Name = name
		existing.AccessToken = accessToken
		existing.AccountID = accountID
		existing.Email = email
		existing.UpdatedAt = now
		if uerr := s.repo.UpdateTeamInfo(ctx, existing); uerr != nil {
			return model.Team{}, false, uerr
		}
		if uerr := s.repo.ResetTeamAuthFailures(ctx, existing.ID); uerr != nil {
			s.logger.Error("Failed to reset auth failures on re-register", "team_id", existing.ID, "error", uerr)
		}
		s.logger.Info("Team re-registered", "team", name, "organization_id", organizationID)
		return existing, true, nil
	}
	if !errors.Is(err, repository.ErrTeamNotFound) {
		return model.Team{}, false, err
	}

	team = model.Team{
		ID:             uuid.New(),
		Name:           name,
		AccessToken:    accessToken,
		AccountID:      accountID,
		OrganizationID: organizationID,
		Email:          email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return model.Team{}, false, err
	}
	s.logger.Info("Team registered", "team", name, "organization_id", organizationID)
	return team, false, nil
}

// UpdateToken replaces a team's access token and clears its failure streak.
func (s *TeamService) UpdateToken(ctx context.Context, id uuid.UUID, accessToken string) error {
	if _, err := s.repo.GetTeamByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateTeamToken(ctx, id, accessToken); err != nil {
		return err
	}
	if err := s.repo.ResetTeamAuthFailures(ctx, id); err != nil {
		s.logger.Error("Failed to reset auth failures after token update", "team_id", id, "error", err)
	}
	s.logger.Info("Team token updated", "team_id", id)
	return nil
}

// Delete removes a team. Access keys bound to it are unbound and its
// invitations and kick logs go with it, per the schema's foreign keys.
func (s *TeamService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetTeamByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteTeam(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Team deleted", "team_id", id)
	return nil
}

// List returns every team with ledger seat counts and derived token health.
// It never touches the remote API; use CheckToken for a live probe.
func (s *TeamService) List(ctx context.Context) ([]TeamOverview, error) {
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	overviews := make([]TeamOverview, 0, len(teams))
	for _, team := range teams {
		count, err := s.repo.CountAuthorizedMembers(ctx, team.ID)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, TeamOverview{
			Team:        team,
			MemberCount: count,
			TokenHealth: team.TokenHealth(),
		})
	}
	return overviews, nil
}

// CheckToken probes the remote API with the team's credentials. A
// successful listing resets the failure streak; an auth failure bumps it.
func (s *TeamService) CheckToken(ctx context.Context, id uuid.UUID) (TokenCheckResult, error) {
	team, err := s.repo.GetTeamByID(ctx, id)
	if err != nil {
		return TokenCheckResult{}, err
	}

	members, err := s.remote.ListMembers(ctx, credentialFor(team))
	if err != nil {
		result := TokenCheckResult{Healthy: false, Message: err.Error()}
		var rerr *chatgpt.RemoteError
		if errors.As(err, &rerr) {
			result.ErrorKind = string(rerr.Kind)
		}
		if chatgpt.IsAuthFailure(err) {
			if rerr := s.repo.RecordTeamAuthFailure(ctx, id); rerr != nil {
				s.logger.Error("Failed to record team auth failure", "team_id", id, "error", rerr)
			}
		}
		return result, nil
	}

	if err := s.repo.ResetTeamAuthFailures(ctx, id); err != nil {
		s.logger.Error("Failed to reset team auth failures", "team_id", id, "error", err)
	}
	return TokenCheckResult{Healthy: true, MemberCount: len(members)}, nil
}

// Members returns the live member list annotated with ledger metadata.
// Members without a ledger row are flagged untracked; the sweep would
// expel them unless they are the owner.
func (s *TeamService) Members(ctx context.Context, id uuid.UUID) ([]TeamMember, error) {
	team, err := s.repo.GetTeamByID(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.remote.ListMembers(ctx, credentialFor(team))
	if err != nil {
		if chatgpt.IsAuthFailure(err) {
			if rerr := s.repo.RecordTeamAuthFailure(ctx, id); rerr != nil {
				s.logger.Error("Failed to record team auth failure", "team_id", id, "error", rerr)
			}
		}
		return nil, err
	}

	out := make([]TeamMember, 0, len(members))
	for _, m := range members {
		entry := TeamMember{
			UserID: m.ID,
			Email:  m.Email,
			Role:   m.Role,
		}
		invitation, err := s.repo.GetInvitationByUserID(ctx, id, m.ID)
		if err == nil {
			entry.Tracked = true
			entry.IsTemp = invitation.IsTemp
			entry.TempExpireAt = invitation.TempExpireAt
			entry.Confirmed = invitation.Confirmed
		} else if !errors.Is(err, repository.ErrInvitationNotFound) {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
