package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamgate/internal/chatgpt"
	"teamgate/internal/model"
	"teamgate/internal/monitoring"
	"teamgate/internal/repository"
)

var (
	ErrInvalidAccessKey = errors.New("invalid access key")
	ErrEmailRequired    = errors.New("email is required")
	ErrTeamFull         = errors.New("team has reached its member limit")
	ErrAlreadyInvited   = errors.New("email has already been invited to this team")
)

// CapacityExhaustedError reports that no team could take the invite. It
// carries the last remote error encountered while walking the candidates.
type CapacityExhaustedError struct {
	LastError string
}

func (e *CapacityExhaustedError) Error() string {
	if e.LastError == "" {
		return "no team with available capacity"
	}
	return fmt.Sprintf("no team with available capacity, last error: %s", e.LastError)
}

// JoinResult is the outcome of a successful join request.
type JoinResult struct {
	TeamID    uuid.UUID
	TeamName  string
	Email     string
	IsTemp    bool
	TempHours int
}

// InviteService runs the join workflow: access key validation, capacity-aware
// team assignment, the remote invite call, and the ledger write-back.
type InviteService struct {
	logger    *slog.Logger
	repo      repository.Repository
	remote    RemoteClient
	telemetry monitoring.Telemetry

	// verifyDelay is the propagation wait before re-querying remote state
	// after an ambiguous invite failure.
	verifyDelay time.Duration
}

func NewInviteService(logger *slog.Logger, repo repository.Repository, remote RemoteClient, telemetry monitoring.Telemetry, verifyDelay time.Duration) *InviteService {
	return &InviteService{
		logger:      logger,
		repo:        repo,
		remote:      remote,
		telemetry:   telemetry,
		verifyDelay: verifyDelay,
	}
}

// Join redeems an access key for the given email. The key is single-use: it
// is cancelled as part of the success path, so a repeat redemption after a
// terminal success fails validation. Redemption after a failure is allowed
// and re-attempts assignment.
func (s *InviteService) Join(ctx context.Context, email, code string) (JoinResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" {
		return JoinResult{}, ErrEmailRequired
	}
	if code == "" {
		return JoinResult{}, ErrInvalidAccessKey
	}

	key, err := s.repo.GetAccessKeyByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrAccessKeyNotFound) {
			return JoinResult{}, ErrInvalidAccessKey
		}
		return JoinResult{}, fmt.Errorf("failed to look up access key: %w", err)
	}
	if key.Cancelled {
		return JoinResult{}, ErrInvalidAccessKey
	}

	boundTeamID := s.validateBoundTeam(ctx, key, email)

	candidates, err := s.repo.ListAvailableTeams(ctx)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to list available teams: %w", err)
	}
	if len(candidates) == 0 {
		return JoinResult{}, &CapacityExhaustedError{}
	}

	// Sticky preference: a still-valid bound team goes to the front without
	// disturbing the relative order of the rest.
	if boundTeamID != nil {
		for i, c := range candidates {
			if c.ID == *boundTeamID {
				bound := candidates[i]
				candidates = append(candidates[:i], candidates[i+1:]...)
				candidates = append([]repository.TeamSeats{bound}, candidates...)
				break
			}
		}
	}

	var lastError string
	for _, candidate := range candidates {
		team := candidate.Team
		result, ok := s.tryInvite(ctx, team, email, &key, &lastError)
		if ok {
			return result, nil
		}
	}

	return JoinResult{}, &CapacityExhaustedError{LastError: lastError}
}

// validateBoundTeam checks a key's pre-bound team against live remote state.
// Any failed check clears the stored binding and returns nil so selection
// falls through to the open pool.
func (s *InviteService) validateBoundTeam(ctx context.Context, key model.AccessKey, email string) *uuid.UUID {
	if key.TeamID == nil {
		return nil
	}

	unbind := func() *uuid.UUID {
		if err := s.repo.BindAccessKeyTeam(ctx, key.ID, nil); err != nil {
			s.logger.Error("Failed to unbind access key", "key_id", key.ID, "error", err)
		}
		return nil
	}

	team, err := s.repo.GetTeamByID(ctx, *key.TeamID)
	if err != nil {
		return unbind()
	}

	members, err := s.remote.ListMembers(ctx, credentialFor(team))
	if err != nil {
		s.recordRemoteOutcome(ctx, team, err)
		return unbind()
	}
	if countNonOwners(members) >= model.MaxTeamMembers || memberWithEmail(members, email) != nil {
		return unbind()
	}

	id := team.ID
	return &id
}

// tryInvite runs the live checks and the invite against one candidate team.
// It returns ok=false to continue with the next candidate, recording the
// failure reason in lastError and a failed ledger row for audit.
func (s *InviteService) tryInvite(ctx context.Context, team model.Team, email string, key *model.AccessKey, lastError *string) (JoinResult, bool) {
	members, err := s.remote.ListMembers(ctx, credentialFor(team))
	if err != nil {
		s.recordRemoteOutcome(ctx, team, err)
		*lastError = fmt.Sprintf("failed to list members of %s: %v", team.Name, err)
		return JoinResult{}, false
	}

	if countNonOwners(members) >= model.MaxTeamMembers {
		*lastError = fmt.Sprintf("team %s has reached its member limit", team.Name)
		return JoinResult{}, false
	}
	if memberWithEmail(members, email) != nil {
		*lastError = fmt.Sprintf("email is already a member of team %s", team.Name)
		return JoinResult{}, false
	}

	inviteID, err := s.remote.InviteMember(ctx, credentialFor(team), email)
	if err != nil {
		s.recordRemoteOutcome(ctx, team, err)

		// The remote API has no idempotency keys: an error response does
		// not prove the invite was not accepted. Re-query before giving up.
		if recoveredID, recovered := s.verifyInviteLanded(ctx, team, email); recovered {
			s.logger.Warn("Invite reported failure but landed remotely",
				"team", team.Name, "email", email, "error", err)
			result, cerr := s.commitSuccess(ctx, team, email, key, recoveredID, true)
			if cerr != nil {
				*lastError = cerr.Error()
				return JoinResult{}, false
			}
			return result, true
		}

		s.recordFailure(ctx, team, email, key)
		s.telemetry.RecordInvite(ctx, team.Name, false)
		*lastError = err.Error()
		return JoinResult{}, false
	}

	result, cerr := s.commitSuccess(ctx, team, email, key, inviteID, false)
	if cerr != nil {
		*lastError = cerr.Error()
		return JoinResult{}, false
	}
	return result, true
}

// verifyInviteLanded waits out remote propagation lag, then checks both the
// pending invites and the current members for the email.
func (s *InviteService) verifyInviteLanded(ctx context.Context, team model.Team, email string) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case <-time.After(s.verifyDelay):
	}

	cred := credentialFor(team)
	if invites, err := s.remote.ListPendingInvites(ctx, cred); err == nil {
		for _, inv := range invites {
			if strings.EqualFold(inv.Email, email) {
				return inv.ID, true
			}
		}
	}
	if members, err := s.remote.ListMembers(ctx, cred); err == nil {
		if memberWithEmail(members, email) != nil {
			return "", true
		}
	}
	return "", false
}

// commitSuccess writes the success row, consumes the key, and updates the
// team's last-invite timestamp. With supersede set, earlier failed rows for
// the same seat are removed in the same transaction.
func (s *InviteService) commitSuccess(ctx context.Context, team model.Team, email string, key *model.AccessKey, inviteID string, supersede bool) (JoinResult, error) {
	now := time.Now().UTC()

	invitation := model.Invitation{
		ID:        uuid.New(),
		TeamID:    team.ID,
		Email:     email,
		InviteID:  inviteID,
		Status:    model.InvitationStatusSuccess,
		CreatedAt: now,
	}
	isTemp := false
	tempHours := 0
	if key != nil {
		id := key.ID
		invitation.KeyID = &id
		if key.IsTemp && key.TempHours > 0 {
			isTemp = true
			tempHours = key.TempHours
			expireAt := now.Add(time.Duration(key.TempHours) * time.Hour)
			invitation.IsTemp = true
			invitation.TempExpireAt = &expireAt
		}
	}

	var err error
	if supersede {
		err = s.repo.RecordInviteSuccess(ctx, invitation)
	} else {
		err = s.repo.CreateInvitation(ctx, invitation)
	}
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to record invitation: %w", err)
	}

	if key != nil {
		if err := s.repo.CancelAccessKey(ctx, key.ID); err != nil {
			s.logger.Error("Failed to cancel access key after invite", "key_id", key.ID, "error", err)
		}
		if err := s.repo.BindAccessKeyTeam(ctx, key.ID, &team.ID); err != nil {
			s.logger.Error("Failed to bind access key to team", "key_id", key.ID, "error", err)
		}
	}
	if err := s.repo.TouchTeamLastInvite(ctx, team.ID); err != nil {
		s.logger.Error("Failed to update team last invite time", "team_id", team.ID, "error", err)
	}

	s.telemetry.RecordInvite(ctx, team.Name, true)
	s.logger.Info("Invite committed", "team", team.Name, "email", email, "temporary", isTemp)

	return JoinResult{
		TeamID:    team.ID,
		TeamName:  team.Name,
		Email:     email,
		IsTemp:    isTemp,
		TempHours: tempHours,
	}, nil
}

func (s *InviteService) recordFailure(ctx context.Context, team model.Team, email string, key *model.AccessKey) {
	invitation := model.Invitation{
		ID:        uuid.New(),
		TeamID:    team.ID,
		Email:     email,
		Status:    model.InvitationStatusFailed,
		CreatedAt: time.Now().UTC(),
	}
	if key != nil {
		id := key.ID
		invitation.KeyID = &id
	}
	if err := s.repo.CreateInvitation(ctx, invitation); err != nil {
		s.logger.Error("Failed to record failed invitation", "team_id", team.ID, "email", email, "error", err)
	}
}

// recordRemoteOutcome maintains the per-team credential failure counter: 401
// and 403 responses increment it, any successful call resets it.
func (s *InviteService) recordRemoteOutcome(ctx context.Context, team model.Team, err error) {
	if err == nil {
		if team.AuthFailures > 0 {
			if rerr := s.repo.ResetTeamAuthFailures(ctx, team.ID); rerr != nil {
				s.logger.Error("Failed to reset team auth failures", "team_id", team.ID, "error", rerr)
			}
		}
		return
	}
	if chatgpt.IsAuthFailure(err) {
		if rerr := s.repo.RecordTeamAuthFailure(ctx, team.ID); rerr != nil {
			s.logger.Error("Failed to record team auth failure", "team_id", team.ID, "error", rerr)
		}
	}
}

// AdminInvite invites an email directly, bypassing access keys. With a team
// id it targets that team after ledger-side capacity and duplicate checks;
// without one it walks the available pool like a join request.
func (s *InviteService) AdminInvite(ctx context.Context, teamID *uuid.UUID, email string, isTemp bool, tempHours int) (JoinResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return JoinResult{}, ErrEmailRequired
	}

	if teamID != nil {
		team, err := s.repo.GetTeamByID(ctx, *teamID)
		if err != nil {
			return JoinResult{}, err
		}
		return s.adminInviteTeam(ctx, team, email, isTemp, tempHours)
	}

	candidates, err := s.repo.ListAvailableTeams(ctx)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to list available teams: %w", err)
	}
	if len(candidates) == 0 {
		return JoinResult{}, &CapacityExhaustedError{}
	}

	var lastError string
	for _, candidate := range candidates {
		result, err := s.adminInviteTeam(ctx, candidate.Team, email, isTemp, tempHours)
		if err != nil {
			lastError = err.Error()
			continue
		}
		return result, nil
	}
	return JoinResult{}, &CapacityExhaustedError{LastError: lastError}
}

func (s *InviteService) adminInviteTeam(ctx context.Context, team model.Team, email string, isTemp bool, tempHours int) (JoinResult, error) {
	count, err := s.repo.CountAuthorizedMembers(ctx, team.ID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to count team members: %w", err)
	}
	if count >= model.MaxTeamMembers {
		return JoinResult{}, ErrTeamFull
	}

	emails, err := s.repo.AuthorizedEmails(ctx, team.ID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to list authorized emails: %w", err)
	}
	for _, e := range emails {
		if e == email {
			return JoinResult{}, ErrAlreadyInvited
		}
	}

	inviteID, err := s.remote.InviteMember(ctx, credentialFor(team), email)
	if err != nil {
		s.recordRemoteOutcome(ctx, team, err)
		s.recordFailure(ctx, team, email, nil)
		s.telemetry.RecordInvite(ctx, team.Name, false)
		return JoinResult{}, err
	}

	now := time.Now().UTC()
	invitation := model.Invitation{
		ID:        uuid.New(),
		TeamID:    team.ID,
		Email:     email,
		InviteID:  inviteID,
		Status:    model.InvitationStatusSuccess,
		CreatedAt: now,
	}
	if isTemp && tempHours > 0 {
		expireAt := now.Add(time.Duration(tempHours) * time.Hour)
		invitation.IsTemp = true
		invitation.TempExpireAt = &expireAt
	}
	if err := s.repo.CreateInvitation(ctx, invitation); err != nil {
		return JoinResult{}, fmt.Errorf("failed to record invitation: %w", err)
	}
	if err := s.repo.TouchTeamLastInvite(ctx, team.ID); err != nil {
		s.logger.Error("Failed to update team last invite time", "team_id", team.ID, "error", err)
	}

	s.telemetry.RecordInvite(ctx, team.Name, true)
	return JoinResult{
		TeamID:    team.ID,
		TeamName:  team.Name,
		Email:     email,
		IsTemp:    invitation.IsTemp,
		TempHours: tempHours,
	}, nil
}

// MarkForRemovalByUserID deletes the ledger row for a member so the next
// sweep expels them, and records the operator action in the kick log.
func (s *InviteService) MarkForRemovalByUserID(ctx context.Context, teamID uuid.UUID, userID string) (string, error) {
	invitation, err := s.repo.GetInvitationByUserID(ctx, teamID, userID)
	if err != nil {
		return "", err
	}
	if err := s.repo.DeleteInvitationByUserID(ctx, teamID, userID); err != nil {
		return "", fmt.Errorf("failed to delete invitation: %w", err)
	}
	s.logOperatorRemoval(ctx, teamID, userID, invitation.Email)
	return invitation.Email, nil
}

// MarkForRemovalByEmail is the email-keyed variant of MarkForRemovalByUserID.
func (s *InviteService) MarkForRemovalByEmail(ctx context.Context, teamID uuid.UUID, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	invitation, err := s.repo.GetInvitationByEmail(ctx, teamID, email)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteInvitationByEmail(ctx, teamID, email); err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	s.logOperatorRemoval(ctx, teamID, invitation.UserID, email)
	return nil
}

// FindAndMarkForRemoval searches every team for the email and marks the
// first match for removal. Returns the team the member was found on.
func (s *InviteService) FindAndMarkForRemoval(ctx context.Context, email string) (model.Team, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return model.Team{}, fmt.Errorf("failed to list teams: %w", err)
	}
	for _, team := range teams {
		invitation, err := s.repo.GetInvitationByEmail(ctx, team.ID, email)
		if err != nil {
			if errors.Is(err, repository.ErrInvitationNotFound) {
				continue
			}
			return model.Team{}, err
		}
		if err := s.repo.DeleteInvitationByEmail(ctx, team.ID, email); err != nil {
			return model.Team{}, fmt.Errorf("failed to delete invitation: %w", err)
		}
		s.logOperatorRemoval(ctx, team.ID, invitation.UserID, email)
		return team, nil
	}
	return model.Team{}, repository.ErrInvitationNotFound
}

// ListInvitations returns every ledger row, optionally scoped to one team.
func (s *InviteService) ListInvitations(ctx context.Context, teamID *uuid.UUID) ([]model.Invitation, error) {
	if teamID != nil {
		return s.repo.ListTeamInvitations(ctx, *teamID)
	}
	return s.repo.ListInvitations(ctx)
}

// Confirm marks a temporary invitation permanent, which exempts it from
// expiry sweeps.
func (s *InviteService) Confirm(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.ConfirmInvitation(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Invitation confirmed", "invitation_id", id)
	return nil
}

func (s *InviteService) logOperatorRemoval(ctx context.Context, teamID uuid.UUID, userID, email string) {
	entry := model.KickLog{
		ID:        uuid.New(),
		TeamID:    teamID,
		UserID:    userID,
		Email:     email,
		Reason:    "removed by operator, pending sweep",
		Success:   true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateKickLog(ctx, entry); err != nil {
		s.logger.Error("Failed to write kick log", "team_id", teamID, "email", email, "error", err)
	}
}

func countNonOwners(members []chatgpt.Member) int {
	count := 0
	for _, m := range members {
		if !m.IsOwner() {
			count++
		}
	}
	return count
}

func memberWithEmail(members []chatgpt.Member, email string) *chatgpt.Member {
	for i := range members {
		if strings.EqualFold(members[i].Email, email) {
			return &members[i]
		}
	}
	return nil
}
