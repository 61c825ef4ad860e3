package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamgate/internal/database"
	"teamgate/internal/model"
)

var (
	ErrTeamNotFound       = errors.New("team not found")
	ErrAccessKeyNotFound  = errors.New("access key not found")
	ErrInvitationNotFound = errors.New("invitation not found")
)

type DatabaseRepository struct {
	db database.Database
}

func NewDatabaseRepository(db database.Database) *DatabaseRepository {
	return &DatabaseRepository{db: db}
}

var _ Repository = (*DatabaseRepository)(nil)

func (r *DatabaseRepository) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tbl_team (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			account_id VARCHAR(255) NOT NULL,
			access_token TEXT NOT NULL,
			organization_id VARCHAR(255) UNIQUE,
			email VARCHAR(255) NOT NULL DEFAULT '',
			last_invite_at TIMESTAMPTZ,
			auth_failures INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tbl_access_key (
			id UUID PRIMARY KEY,
			team_id UUID REFERENCES tbl_team(id) ON DELETE SET NULL,
			code VARCHAR(255) NOT NULL UNIQUE,
			is_temp BOOLEAN NOT NULL DEFAULT FALSE,
			temp_hours INT NOT NULL DEFAULT 0,
			cancelled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tbl_invitation (
			id UUID PRIMARY KEY,
			team_id UUID NOT NULL REFERENCES tbl_team(id) ON DELETE CASCADE,
			key_id UUID REFERENCES tbl_access_key(id) ON DELETE SET NULL,
			email VARCHAR(255) NOT NULL,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			invite_id VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			is_temp BOOLEAN NOT NULL DEFAULT FALSE,
			temp_expire_at TIMESTAMPTZ,
			confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invitation_team_status ON tbl_invitation(team_id, status);`,
		`CREATE TABLE IF NOT EXISTS tbl_auto_kick_config (
			id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			check_interval_min INT NOT NULL DEFAULT 90,
			check_interval_max INT NOT NULL DEFAULT 120,
			start_time VARCHAR(5) NOT NULL DEFAULT '09:00',
			end_time VARCHAR(5) NOT NULL DEFAULT '22:00',
			timezone VARCHAR(64) NOT NULL DEFAULT 'Asia/Shanghai',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`INSERT INTO tbl_auto_kick_config (id) VALUES (1) ON CONFLICT (id) DO NOTHING;`,
		`CREATE TABLE IF NOT EXISTS tbl_kick_log (
			id UUID PRIMARY KEY,
			team_id UUID NOT NULL REFERENCES tbl_team(id) ON DELETE CASCADE,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL DEFAULT TRUE,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tbl_login_attempt (
			id UUID PRIMARY KEY,
			ip_address VARCHAR(64) NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_login_attempt_ip ON tbl_login_attempt(ip_address, created_at);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			k VARCHAR(255) PRIMARY KEY,
			v BYTEA,
			e BIGINT
		);`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	slog.Info("Database migration completed")
	return nil
}

func (r *DatabaseRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Team operations

const teamColumns = "id, name, account_id, access_token, organization_id, email, last_invite_at, auth_failures, created_at, updated_at"

func scanTeam(row interface{ Scan(...any) error }) (model.Team, error) {
	var team model.Team
	var orgID sql.NullString
	var lastInvite sql.NullTime
	err := row.Scan(&team.ID, &team.Name, &team.AccountID, &team.AccessToken, &orgID,
		&team.Email, &lastInvite, &team.AuthFailures, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return model.Team{}, err
	}
	if orgID.Valid {
		team.OrganizationID = orgID.String
	}
	if lastInvite.Valid {
		t := lastInvite.Time.UTC()
		team.LastInviteAt = &t
	}
	return team, nil
}

func (r *DatabaseRepository) CreateTeam(ctx context.Context, team model.Team) error {
	var orgID any
	if team.OrganizationID != "" {
		orgID = team.OrganizationID
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_team (id, name, account_id, access_token, organization_id, email, auth_failures, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)",
		team.ID, team.Name, team.AccountID, team.AccessToken, orgID, team.Email, team.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) ListTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+teamColumns+" FROM tbl_team ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (r *DatabaseRepository) GetTeamByID(ctx context.Context, id uuid.UUID) (model.Team, error) {
	team, err := scanTeam(r.db.QueryRowContext(ctx, "SELECT "+teamColumns+" FROM tbl_team WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, ErrTeamNotFound
	}
	return team, err
}

func (r *DatabaseRepository) GetTeamByOrganizationID(ctx context.Context, organizationID string) (model.Team, error) {
	team, err := scanTeam(r.db.QueryRowContext(ctx, "SELECT "+teamColumns+" FROM tbl_team WHERE organization_id = $1", organizationID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, ErrTeamNotFound
	}
	return team, err
}

func (r *DatabaseRepository) UpdateTeamInfo(ctx context.Context, team model.Team) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE tbl_team SET name = $2, account_id = $3, access_token = $4, email = $5, auth_failures = 0, updated_at = NOW() WHERE id = $1",
		team.ID, team.Name, team.AccountID, team.AccessToken, team.Email)
	return err
}

func (r *DatabaseRepository) UpdateTeamToken(ctx context.Context, id uuid.UUID, accessToken string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE tbl_team SET access_token = $2, auth_failures = 0, updated_at = NOW() WHERE id = $1",
		id, accessToken)
	return err
}

func (r *DatabaseRepository) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tbl_team WHERE id = $1", id)
	return err
}

func (r *DatabaseRepository) TouchTeamLastInvite(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE tbl_team SET last_invite_at = NOW(), updated_at = NOW() WHERE id = $1", id)
	return err
}

func (r *DatabaseRepository) RecordTeamAuthFailure(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE tbl_team SET auth_failures = auth_failures + 1, updated_at = NOW() WHERE id = $1", id)
	return err
}

func (r *DatabaseRepository) ResetTeamAuthFailures(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE tbl_team SET auth_failures = 0, updated_at = NOW() WHERE id = $1", id)
	return err
}

func (r *DatabaseRepository) ListAvailableTeams(ctx context.Context) ([]TeamSeats, error) {
	// Authorized count comes from the ledger, not the live remote listing,
	// so selection keeps working when a remote read fails.
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.account_id, t.access_token, t.organization_id, t.email,
		       t.last_invite_at, t.auth_failures, t.created_at, t.updated_at,
		       COUNT(DISTINCT LOWER(i.email)) AS member_count
		FROM tbl_team t
		LEFT JOIN tbl_invitation i ON i.team_id = t.id AND i.status = 'success'
		GROUP BY t.id
		HAVING COUNT(DISTINCT LOWER(i.email)) < $1
		ORDER BY member_count DESC, t.id ASC`, model.MaxTeamMembers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []TeamSeats
	for rows.Next() {
		var ts TeamSeats
		var orgID sql.NullString
		var lastInvite sql.NullTime
		if err := rows.Scan(&ts.ID, &ts.Name, &ts.AccountID, &ts.AccessToken, &orgID, &ts.Email,
			&lastInvite, &ts.AuthFailures, &ts.CreatedAt, &ts.UpdatedAt, &ts.MemberCount); err != nil {
			return nil, err
		}
		if orgID.Valid {
			ts.OrganizationID = orgID.String
		}
		if lastInvite.Valid {
			t := lastInvite.Time.UTC()
			ts.LastInviteAt = &t
		}
		teams = append(teams, ts)
	}
	return teams, rows.Err()
}

// Access key operations

const accessKeyColumns = "id, team_id, code, is_temp, temp_hours, cancelled, created_at"

func scanAccessKey(row interface{ Scan(...any) error }) (model.AccessKey, error) {
	var key model.AccessKey
	var teamID uuid.NullUUID
	err := row.Scan(&key.ID, &teamID, &key.Code, &key.IsTemp, &key.TempHours, &key.Cancelled, &key.CreatedAt)
	if err != nil {
		return model.AccessKey{}, err
	}
	if teamID.Valid {
		id := teamID.UUID
		key.TeamID = &id
	}
	return key, nil
}

func (r *DatabaseRepository) CreateAccessKey(ctx context.Context, key model.AccessKey) error {
	var teamID any
	if key.TeamID != nil {
		teamID = *key.TeamID
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_access_key (id, team_id, code, is_temp, temp_hours, cancelled, created_at) VALUES ($1, $2, $3, $4, $5, FALSE, $6)",
		key.ID, teamID, key.Code, key.IsTemp, key.TempHours, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create access key: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) GetAccessKeyByCode(ctx context.Context, code string) (model.AccessKey, error) {
	key, err := scanAccessKey(r.db.QueryRowContext(ctx,
		"SELECT "+accessKeyColumns+" FROM tbl_access_key WHERE code = $1", code))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccessKey{}, ErrAccessKeyNotFound
	}
	return key, err
}

func (r *DatabaseRepository) ListAccessKeys(ctx context.Context) ([]model.AccessKey, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+accessKeyColumns+" FROM tbl_access_key WHERE cancelled = FALSE ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.AccessKey
	for rows.Next() {
		key, err := scanAccessKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *DatabaseRepository) BindAccessKeyTeam(ctx context.Context, keyID uuid.UUID, teamID *uuid.UUID) error {
	var id any
	if teamID != nil {
		id = *teamID
	}
	_, err := r.db.ExecContext(ctx, "UPDATE tbl_access_key SET team_id = $2 WHERE id = $1", keyID, id)
	return err
}

func (r *DatabaseRepository) CancelAccessKey(ctx context.Context, keyID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "UPDATE tbl_access_key SET cancelled = TRUE WHERE id = $1", keyID)
	return err
}

func (r *DatabaseRepository) DeleteAccessKey(ctx context.Context, keyID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tbl_access_key WHERE id = $1", keyID)
	return err
}

// Invitation operations

const invitationColumns = "id, team_id, key_id, email, user_id, invite_id, status, is_temp, temp_expire_at, confirmed, created_at"

func scanInvitation(row interface{ Scan(...any) error }) (model.Invitation, error) {
	var inv model.Invitation
	var keyID uuid.NullUUID
	var expireAt sql.NullTime
	err := row.Scan(&inv.ID, &inv.TeamID, &keyID, &inv.Email, &inv.UserID, &inv.InviteID,
		&inv.Status, &inv.IsTemp, &expireAt, &inv.Confirmed, &inv.CreatedAt)
	if err != nil {
		return model.Invitation{}, err
	}
	if keyID.Valid {
		id := keyID.UUID
		inv.KeyID = &id
	}
	if expireAt.Valid {
		t := expireAt.Time.UTC()
		inv.TempExpireAt = &t
	}
	return inv, nil
}

func insertInvitationArgs(inv model.Invitation) []any {
	var keyID any
	if inv.KeyID != nil {
		keyID = *inv.KeyID
	}
	var expireAt any
	if inv.TempExpireAt != nil {
		expireAt = *inv.TempExpireAt
	}
	return []any{inv.ID, inv.TeamID, keyID, strings.ToLower(inv.Email), inv.UserID, inv.InviteID,
		inv.Status, inv.IsTemp, expireAt, inv.Confirmed, inv.CreatedAt}
}

const insertInvitationSQL = "INSERT INTO tbl_invitation (id, team_id, key_id, email, user_id, invite_id, status, is_temp, temp_expire_at, confirmed, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)"

func (r *DatabaseRepository) CreateInvitation(ctx context.Context, invitation model.Invitation) error {
	_, err := r.db.ExecContext(ctx, insertInvitationSQL, insertInvitationArgs(invitation)...)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) RecordInviteSuccess(ctx context.Context, invitation model.Invitation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Supersede earlier failed attempts for the same seat.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM tbl_invitation WHERE team_id = $1 AND LOWER(email) = LOWER($2) AND status = 'failed'",
		invitation.TeamID, invitation.Email); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insertInvitationSQL, insertInvitationArgs(invitation)...); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *DatabaseRepository) ListInvitations(ctx context.Context) ([]model.Invitation, error) {
	return r.queryInvitations(ctx,
		"SELECT "+invitationColumns+" FROM tbl_invitation ORDER BY created_at DESC")
}

func (r *DatabaseRepository) ListTeamInvitations(ctx context.Context, teamID uuid.UUID) ([]model.Invitation, error) {
	return r.queryInvitations(ctx,
		"SELECT "+invitationColumns+" FROM tbl_invitation WHERE team_id = $1 ORDER BY created_at DESC", teamID)
}

func (r *DatabaseRepository) queryInvitations(ctx context.Context, query string, args ...any) ([]model.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func (r *DatabaseRepository) AuthorizedEmails(ctx context.Context, teamID uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT LOWER(email) FROM tbl_invitation WHERE team_id = $1 AND status = 'success'", teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (r *DatabaseRepository) CountAuthorizedMembers(ctx context.Context, teamID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT LOWER(email)) FROM tbl_invitation WHERE team_id = $1 AND status = 'success'",
		teamID).Scan(&count)
	return count, err
}

func (r *DatabaseRepository) ListExpiredTemporary(ctx context.Context, now time.Time) ([]model.Invitation, error) {
	return r.queryInvitations(ctx,
		"SELECT "+invitationColumns+` FROM tbl_invitation
		WHERE is_temp = TRUE AND confirmed = FALSE AND temp_expire_at IS NOT NULL AND temp_expire_at < $1
		ORDER BY temp_expire_at`, now)
}

func (r *DatabaseRepository) ConfirmInvitation(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "UPDATE tbl_invitation SET confirmed = TRUE WHERE id = $1", id)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

func (r *DatabaseRepository) GetInvitationByUserID(ctx context.Context, teamID uuid.UUID, userID string) (model.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx,
		"SELECT "+invitationColumns+" FROM tbl_invitation WHERE team_id = $1 AND user_id = $2 ORDER BY created_at DESC LIMIT 1",
		teamID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invitation{}, ErrInvitationNotFound
	}
	return inv, err
}

func (r *DatabaseRepository) GetInvitationByEmail(ctx context.Context, teamID uuid.UUID, email string) (model.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx,
		"SELECT "+invitationColumns+" FROM tbl_invitation WHERE team_id = $1 AND LOWER(email) = LOWER($2) ORDER BY created_at DESC LIMIT 1",
		teamID, email))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invitation{}, ErrInvitationNotFound
	}
	return inv, err
}

func (r *DatabaseRepository) DeleteInvitationByEmail(ctx context.Context, teamID uuid.UUID, email string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM tbl_invitation WHERE team_id = $1 AND LOWER(email) = LOWER($2)", teamID, email)
	return err
}

func (r *DatabaseRepository) DeleteInvitationByUserID(ctx context.Context, teamID uuid.UUID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM tbl_invitation WHERE team_id = $1 AND user_id = $2", teamID, userID)
	return err
}

// Sweep configuration

func (r *DatabaseRepository) GetAutoKickConfig(ctx context.Context) (model.AutoKickConfig, error) {
	var cfg model.AutoKickConfig
	err := r.db.QueryRowContext(ctx,
		"SELECT enabled, check_interval_min, check_interval_max, start_time, end_time, timezone, updated_at FROM tbl_auto_kick_config WHERE id = 1").
		Scan(&cfg.Enabled, &cfg.CheckIntervalMin, &cfg.CheckIntervalMax, &cfg.StartTime, &cfg.EndTime, &cfg.Timezone, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Seeded at migration time, but tolerate a fresh database.
		if _, err := r.db.ExecContext(ctx, "INSERT INTO tbl_auto_kick_config (id) VALUES (1) ON CONFLICT (id) DO NOTHING"); err != nil {
			return model.AutoKickConfig{}, err
		}
		return r.GetAutoKickConfig(ctx)
	}
	return cfg, err
}

func (r *DatabaseRepository) UpdateAutoKickConfig(ctx context.Context, cfg model.AutoKickConfig) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE tbl_auto_kick_config SET enabled = $1, check_interval_min = $2, check_interval_max = $3, start_time = $4, end_time = $5, timezone = $6, updated_at = NOW() WHERE id = 1",
		cfg.Enabled, cfg.CheckIntervalMin, cfg.CheckIntervalMax, cfg.StartTime, cfg.EndTime, cfg.Timezone)
	return err
}

// Kick log

func (r *DatabaseRepository) CreateKickLog(ctx context.Context, entry model.KickLog) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_kick_log (id, team_id, user_id, email, reason, success, error_message, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		entry.ID, entry.TeamID, entry.UserID, entry.Email, entry.Reason, entry.Success, entry.ErrorMessage, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create kick log: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) ListKickLogs(ctx context.Context, limit int) ([]model.KickLog, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, team_id, user_id, email, reason, success, error_message, created_at FROM tbl_kick_log ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.KickLog
	for rows.Next() {
		var entry model.KickLog
		if err := rows.Scan(&entry.ID, &entry.TeamID, &entry.UserID, &entry.Email,
			&entry.Reason, &entry.Success, &entry.ErrorMessage, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// Login attempts

func (r *DatabaseRepository) RecordLoginAttempt(ctx context.Context, attempt model.LoginAttempt) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_login_attempt (id, ip_address, username, success, created_at) VALUES ($1, $2, $3, $4, $5)",
		attempt.ID, attempt.IPAddress, attempt.Username, attempt.Success, attempt.CreatedAt)
	return err
}

func (r *DatabaseRepository) CountRecentLoginFailures(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tbl_login_attempt WHERE ip_address = $1 AND success = FALSE AND created_at > $2",
		ipAddress, since).Scan(&count)
	return count, err
}

func (r *DatabaseRepository) PruneLoginAttempts(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tbl_login_attempt WHERE created_at < $1", before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
