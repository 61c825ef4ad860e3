package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"teamgate/internal/model"
)

// TeamSeats pairs a team with its authorized member count from the ledger.
type TeamSeats struct {
	model.Team
	MemberCount int `json:"member_count"`
}

// Repository defines the contract for the durable ledger. All other
// components read and write state exclusively through it.
type Repository interface {
	// Team operations
	CreateTeam(ctx context.Context, team model.Team) error
	ListTeams(ctx context.Context) ([]model.Team, error)
	GetTeamByID(ctx context.Context, id uuid.UUID) (model.Team, error)
	GetTeamByOrganizationID(ctx context.Context, organizationID string) (model.Team, error)
	UpdateTeamInfo(ctx context.Context, team model.Team) error
	UpdateTeamToken(ctx context.Context, id uuid.UUID, accessToken string) error
	DeleteTeam(ctx context.Context, id uuid.UUID) error
	TouchTeamLastInvite(ctx context.Context, id uuid.UUID) error
	RecordTeamAuthFailure(ctx context.Context, id uuid.UUID) error
	ResetTeamAuthFailures(ctx context.Context, id uuid.UUID) error

	// ListAvailableTeams returns teams with a free seat per the ledger,
	// ordered most-full first with ties broken by ascending id.
	ListAvailableTeams(ctx context.Context) ([]TeamSeats, error)

	// Access key operations
	CreateAccessKey(ctx context.Context, key model.AccessKey) error
	GetAccessKeyByCode(ctx context.Context, code string) (model.AccessKey, error)
	ListAccessKeys(ctx context.Context) ([]model.AccessKey, error)
	BindAccessKeyTeam(ctx context.Context, keyID uuid.UUID, teamID *uuid.UUID) error
	CancelAccessKey(ctx context.Context, keyID uuid.UUID) error
	DeleteAccessKey(ctx context.Context, keyID uuid.UUID) error

	// Invitation operations
	CreateInvitation(ctx context.Context, invitation model.Invitation) error
	// RecordInviteSuccess removes any failed rows for the same team and
	// email, then inserts the success row, in one transaction.
	RecordInviteSuccess(ctx context.Context, invitation model.Invitation) error
	ListInvitations(ctx context.Context) ([]model.Invitation, error)
	ListTeamInvitations(ctx context.Context, teamID uuid.UUID) ([]model.Invitation, error)
	AuthorizedEmails(ctx context.Context, teamID uuid.UUID) ([]string, error)
	CountAuthorizedMembers(ctx context.Context, teamID uuid.UUID) (int, error)
	ListExpiredTemporary(ctx context.Context, now time.Time) ([]model.Invitation, error)
	ConfirmInvitation(ctx context.Context, id uuid.UUID) error
	GetInvitationByUserID(ctx context.Context, teamID uuid.UUID, userID string) (model.Invitation, error)
	GetInvitationByEmail(ctx context.Context, teamID uuid.UUID, email string) (model.Invitation, error)
	DeleteInvitationByEmail(ctx context.Context, teamID uuid.UUID, email string) error
	DeleteInvitationByUserID(ctx context.Context, teamID uuid.UUID, userID string) error

	// Sweep configuration
	GetAutoKickConfig(ctx context.Context) (model.AutoKickConfig, error)
	UpdateAutoKickConfig(ctx context.Context, cfg model.AutoKickConfig) error

	// Kick log
	CreateKickLog(ctx context.Context, entry model.KickLog) error
	ListKickLogs(ctx context.Context, limit int) ([]model.KickLog, error)

	// Login attempts
	RecordLoginAttempt(ctx context.Context, attempt model.LoginAttempt) error
	CountRecentLoginFailures(ctx context.Context, ipAddress string, since time.Time) (int, error)
	PruneLoginAttempts(ctx context.Context, before time.Time) (int64, error)

	// Database operations
	Migrate() error
	Ping(ctx context.Context) error
}
