package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"teamgate/internal/chatgpt"
	"teamgate/internal/model"
	"teamgate/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockRepo overrides the repository methods a test cares about via function
// fields. Calling anything else panics through the embedded nil interface,
// which surfaces unexpected repository traffic immediately.
type mockRepo struct {
	repository.Repository

	mu          sync.Mutex
	invitations []model.Invitation
	kickLogs    []model.KickLog
	accessKeys  []model.AccessKey

	getAccessKeyByCodeFn       func(code string) (model.AccessKey, error)
	getTeamByIDFn              func(id uuid.UUID) (model.Team, error)
	listTeamsFn                func() ([]model.Team, error)
	listAvailableTeamsFn       func() ([]repository.TeamSeats, error)
	bindAccessKeyTeamFn        func(keyID uuid.UUID, teamID *uuid.UUID) error
	cancelAccessKeyFn          func(keyID uuid.UUID) error
	touchTeamLastInviteFn      func(id uuid.UUID) error
	recordTeamAuthFailureFn    func(id uuid.UUID) error
	resetTeamAuthFailuresFn    func(id uuid.UUID) error
	authorizedEmailsFn         func(teamID uuid.UUID) ([]string, error)
	listExpiredTemporaryFn     func(now time.Time) ([]model.Invitation, error)
	deleteInvitationByEmailFn  func(teamID uuid.UUID, email string) error
	getAutoKickConfigFn        func() (model.AutoKickConfig, error)
	recordLoginAttemptFn       func(attempt model.LoginAttempt) error
	countRecentLoginFailuresFn func(ip string, since time.Time) (int, error)
	pruneLoginAttemptsFn       func(before time.Time) (int64, error)
}

func (m *mockRepo) GetAccessKeyByCode(ctx context.Context, code string) (model.AccessKey, error) {
	return m.getAccessKeyByCodeFn(code)
}

func (m *mockRepo) GetTeamByID(ctx context.Context, id uuid.UUID) (model.Team, error) {
	return m.getTeamByIDFn(id)
}

func (m *mockRepo) ListTeams(ctx context.Context) ([]model.Team, error) {
	return m.listTeamsFn()
}

func (m *mockRepo) ListAvailableTeams(ctx context.Context) ([]repository.TeamSeats, error) {
	return m.listAvailableTeamsFn()
}

func (m *mockRepo) CreateInvitation(ctx context.Context, invitation model.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitations = append(m.invitations, invitation)
	return nil
}

func (m *mockRepo) RecordInviteSuccess(ctx context.Context, invitation model.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.invitations[:0]
	for _, inv := range m.invitations {
		if inv.TeamID == invitation.TeamID && inv.Email == invitation.Email && inv.Status == model.InvitationStatusFailed {
			continue
		}
		kept = append(kept, inv)
	}
	m.invitations = append(kept, invitation)
	return nil
}

func (m *mockRepo) storedInvitations() []model.Invitation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Invitation, len(m.invitations))
	copy(out, m.invitations)
	return out
}

func (m *mockRepo) CreateAccessKey(ctx context.Context, key model.AccessKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessKeys = append(m.accessKeys, key)
	return nil
}

func (m *mockRepo) storedAccessKeys() []model.AccessKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AccessKey, len(m.accessKeys))
	copy(out, m.accessKeys)
	return out
}

func (m *mockRepo) BindAccessKeyTeam(ctx context.Context, keyID uuid.UUID, teamID *uuid.UUID) error {
	if m.bindAccessKeyTeamFn != nil {
		return m.bindAccessKeyTeamFn(keyID, teamID)
	}
	return nil
}

func (m *mockRepo) CancelAccessKey(ctx context.Context, keyID uuid.UUID) error {
	if m.cancelAccessKeyFn != nil {
		return m.cancelAccessKeyFn(keyID)
	}
	return nil
}

func (m *mockRepo) TouchTeamLastInvite(ctx context.Context, id uuid.UUID) error {
	if m.touchTeamLastInviteFn != nil {
		return m.touchTeamLastInviteFn(id)
	}
	return nil
}

func (m *mockRepo) RecordTeamAuthFailure(ctx context.Context, id uuid.UUID) error {
	if m.recordTeamAuthFailureFn != nil {
		return m.recordTeamAuthFailureFn(id)
	}
	return nil
}

func (m *mockRepo) ResetTeamAuthFailures(ctx context.Context, id uuid.UUID) error {
	if m.resetTeamAuthFailuresFn != nil {
		return m.resetTeamAuthFailuresFn(id)
	}
	return nil
}

func (m *mockRepo) AuthorizedEmails(ctx context.Context, teamID uuid.UUID) ([]string, error) {
	return m.authorizedEmailsFn(teamID)
}

func (m *mockRepo) ListExpiredTemporary(ctx context.Context, now time.Time) ([]model.Invitation, error) {
	return m.listExpiredTemporaryFn(now)
}

func (m *mockRepo) DeleteInvitationByEmail(ctx context.Context, teamID uuid.UUID, email string) error {
	if m.deleteInvitationByEmailFn != nil {
		return m.deleteInvitationByEmailFn(teamID, email)
	}
	return nil
}

func (m *mockRepo) CreateKickLog(ctx context.Context, entry model.KickLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kickLogs = append(m.kickLogs, entry)
	return nil
}

func (m *mockRepo) storedKickLogs() []model.KickLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.KickLog, len(m.kickLogs))
	copy(out, m.kickLogs)
	return out
}

func (m *mockRepo) GetAutoKickConfig(ctx context.Context) (model.AutoKickConfig, error) {
	return m.getAutoKickConfigFn()
}

func (m *mockRepo) RecordLoginAttempt(ctx context.Context, attempt model.LoginAttempt) error {
	return m.recordLoginAttemptFn(attempt)
}

func (m *mockRepo) CountRecentLoginFailures(ctx context.Context, ip string, since time.Time) (int, error) {
	return m.countRecentLoginFailuresFn(ip, since)
}

func (m *mockRepo) PruneLoginAttempts(ctx context.Context, before time.Time) (int64, error) {
	return m.pruneLoginAttemptsFn(before)
}

// mockRemote fakes the membership backend per credential account id.
type mockRemote struct {
	mu sync.Mutex

	listMembersFn        func(cred chatgpt.Credential) ([]chatgpt.Member, error)
	listPendingInvitesFn func(cred chatgpt.Credential) ([]chatgpt.PendingInvite, error)
	inviteMemberFn       func(cred chatgpt.Credential, email string) (string, error)
	removeMemberFn       func(cred chatgpt.Credential, userID string) error

	inviteCalls []string
	removeCalls []string
}

func (m *mockRemote) ListMembers(ctx context.Context, cred chatgpt.Credential) ([]chatgpt.Member, error) {
	return m.listMembersFn(cred)
}

func (m *mockRemote) ListPendingInvites(ctx context.Context, cred chatgpt.Credential) ([]chatgpt.PendingInvite, error) {
	if m.listPendingInvitesFn != nil {
		return m.listPendingInvitesFn(cred)
	}
	return nil, nil
}

func (m *mockRemote) InviteMember(ctx context.Context, cred chatgpt.Credential, email string) (string, error) {
	m.mu.Lock()
	m.inviteCalls = append(m.inviteCalls, cred.AccountID)
	m.mu.Unlock()
	return m.inviteMemberFn(cred, email)
}

func (m *mockRemote) RemoveMember(ctx context.Context, cred chatgpt.Credential, userID string) error {
	m.mu.Lock()
	m.removeCalls = append(m.removeCalls, userID)
	m.mu.Unlock()
	if m.removeMemberFn != nil {
		return m.removeMemberFn(cred, userID)
	}
	return nil
}

func (m *mockRemote) removedUserIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.removeCalls))
	copy(out, m.removeCalls)
	return out
}

// mockTelemetry drops all measurements.
type mockTelemetry struct{}

func (mockTelemetry) RecordInvite(ctx context.Context, teamName string, success bool) {}
func (mockTelemetry) RecordKick(ctx context.Context, reason string, success bool) {}
func (mockTelemetry) RecordSweep(ctx context.Context, duration time.Duration, teamsChecked int) {}
func (mockTelemetry) Logger() *slog.Logger { return testLogger() }
func (mockTelemetry) Tracer(name string) trace.Tracer {
	return noop.NewTracerProvider().Tracer(name)
}
func (mockTelemetry) Shutdown(ctx context.Context) error { return nil }
