package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamgate/internal/chatgpt"
	"teamgate/internal/model"
	"teamgate/internal/service"
)

func TestSweepService_RemovesOnlyUnauthorizedMembers(t *testing.T) {
	team := makeTeam("alpha")

	repo := &mockRepo{
		listExpiredTemporaryFn: func(now time.Time) ([]model.Invitation, error) {
			return nil, nil
		},
		listTeamsFn: func() ([]model.Team, error) {
			return []model.Team{team}, nil
		},
		authorizedEmailsFn: func(teamID uuid.UUID) ([]string, error) {
			return []string{"authorized@example.com"}, nil
		},
	}
	remote := &mockRemote{
		listMembersFn: func(cred chatgpt.Credential) ([]chatgpt.Member, error) {
			return []chatgpt.Member{
				{ID: "u-owner", Email: team.Email, Role: chatgpt.RoleAccountOwner},
				{ID: "u-auth", Email: "Authorized@Example.com", Role: chatgpt.RoleStandardUser},
				{ID: "u-intruder", Email: "intruder@example.com", Role: chatgpt.RoleStandardUser},
			}, nil
		},
	}

	svc := service.NewSweepService(testLogger(), repo, remote, mockTelemetry{}, service.WithSweepJitter(0))

	report, err := svc.RunSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"u-intruder"}, remote.removedUserIDs(), "owner and authorized member must stay")
	assert.Equal(t, 1, report.UnauthorizedKicks)
	assert.Equal(t, 1, report.TeamsSucceeded)
	assert.Equal(t, 0, report.TeamsFailed)

	logs := repo.storedKickLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "intruder@example.com", logs[0].Email)
	assert.True(t, logs[0].Success)
}

func TestSweepService_ExpiredTemporaryKicked(t *testing.T) {
	team := makeTeam("beta")
	past := time.Now().UTC().Add(-time.Hour)

	var deletedEmail string
	repo := &mockRepo{
		listExpiredTemporaryFn: func(now time.Time) ([]model.Invitation, error) {
			return []model.Invitation{{
				ID:           uuid.New(),
				TeamID:       team.ID,
				Email:        "shorttimer@example.com",
				Status:       model.InvitationStatusSuccess,
				IsTemp:       true,
				TempExpireAt: &past,
			}}, nil
		},
		getTeamByIDFn: func(id uuid.UUID) (model.Team, error) {
			return team, nil
		},
		listTeamsFn: func() ([]model.Team, error) {
			return nil, nil
		},
		deleteInvitationByEmailFn: func(teamID uuid.UUID, email string) error {
			deletedEmail = email
			return nil
		},
	}
	remote := &mockRemote{
		listMembersFn: func(cred chatgpt.Credential) ([]chatgpt.Member, error) {
			return membersFor(team, "shorttimer@example.com"), nil
		},
	}

	svc := service.NewSweepService(testLogger(), repo, remote, mockTelemetry{}, service.WithSweepJitter(0))

	report, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExpiredKicks)
	assert.Len(t, remote.removedUserIDs(), 1)
	assert.Equal(t, "shorttimer@example.com", deletedEmail)
}

func TestSweepService_ExpiredButAbsentKeepsLedgerRow(t *testing.T) {
	team := makeTeam("gamma")
	past := time.Now().UTC().Add(-time.Hour)

	var deleted bool
	repo := &mockRepo{
		listExpiredTemporaryFn: func(now time.Time) ([]model.Invitation, error) {
			return []model.Invitation{{
				ID:           uuid.New(),
				TeamID:       team.ID,
				Email:        "ghost@example.com",
				IsTemp:       true,
				TempExpireAt: &past,
			}}, nil
		},
		getTeamByIDFn: func(id uuid.UUID) (model.Team, error) {
			return team, nil
		},
		listTeamsFn: func() ([]model.Team, error) {
			return nil, nil
		},
		deleteInvitationByEmailFn: func(teamID uuid.UUID, email string) error {
			deleted = true
			return nil
		},
	}
	remote := &mockRemote{
		listMembersFn: func(cred chatgpt.Credential) ([]chatgpt.Member, error) {
			return membersFor(team), nil
		},
	}

	svc := service.NewSweepService(testLogger(), repo, remote, mockTelemetry{}, service.WithSweepJitter(0))

	report, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.ExpiredKicks)
	assert.Empty(t, remote.removedUserIDs())
	assert.False(t, deleted, "membership not observable, row stays for a later sweep")
}

func TestSweepService_RateLimitSkipsTeam(t *testing.T) {
	team := makeTeam("delta")

	repo := &mockRepo{
		listExpiredTemporaryFn: func(now time.Time) ([]model.Invitation, error) {
			return nil, nil
		},
		listTeamsFn: func() ([]model.Team, error) {
			return []model.Team{team}, nil
		},
		authorizedEmailsFn: func(teamID uuid.UUID) ([]string, error) {
			return nil, nil
		},
	}
	remote := &mockRemote{
		listMembersFn: func(cred chatgpt.Credential) ([]chatgpt.Member, error) {
			return nil, &chatgpt.RemoteError{Kind: chatgpt.KindRateLimited, StatusCode: 429, Message: "slow down"}
		},
	}

	svc := service.NewSweepService(testLogger(), repo, remote, mockTelemetry{}, service.WithSweepJitter(0))

	report, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TeamsSkipped)
	assert.Equal(t, 0, report.TeamsFailed)
}

func TestSweepService_SecondTriggerRefused(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	repo := &mockRepo{
		listExpiredTemporaryFn: func(now time.Time) ([]model.Invitation, error) {
			close(started)
			<-release
			return nil, nil
		},
		listTeamsFn: func() ([]model.Team, error) {
			return nil, nil
		},
	}

	svc := service.NewSweepService(testLogger(), repo, &mockRemote{}, mockTelemetry{}, service.WithSweepJitter(0))

	require.NoError(t, svc.Trigger(context.Background()))
	<-started

	err := svc.Trigger(context.Background())
	assert.ErrorIs(t, err, service.ErrSweepAlreadyRunning)
	assert.True(t, svc.Status().Running)

	close(release)
	require.Eventually(t, func() bool {
		return !svc.Status().Running
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotNil(t, svc.Status().LastReport)
}

func TestSweepService_TriggerOutlivesCancelledContext(t *testing.T) {
	team := makeTeam("epsilon")

	repo := &mockRepo{
		listExpiredTemporaryFn: func(now time.Time) ([]model.Invitation, error) {
			return nil, nil
		},
		listTeamsFn: func() ([]model.Team, error) {
			return []model.Team{team}, nil
		},
		authorizedEmailsFn: func(teamID uuid.UUID) ([]string, error) {
			return nil, nil
		},
	}
	remote := &mockRemote{
		listMembersFn: func(cred chatgpt.Credential) ([]chatgpt.Member, error) {
			return []chatgpt.Member{
				{ID: "u-owner", Email: team.Email, Role: chatgpt.RoleAccountOwner},
				{ID: "u-stray", Email: "stray@example.com", Role: chatgpt.RoleStandardUser},
			}, nil
		},
	}

	svc := service.NewSweepService(testLogger(), repo, remote, mockTelemetry{}, service.WithSweepJitter(0))

	// The triggering request's context is long gone by the time the
	// sweep runs; that must not abort or corrupt it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Trigger(ctx))

	require.Eventually(t, func() bool {
		status := svc.Status()
		return !status.Running && status.LastReport != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"u-stray"}, remote.removedUserIDs())
	assert.Equal(t, 1, svc.Status().LastReport.TeamsSucceeded)
}

func TestSweepService_TeamChecksRunBounded(t *testing.T) {
	teams := make([]model.Team, 9)
	for i := range teams {
		teams[i] = makeTeam("team-" + string(rune('a'+i)))
	}

	var inFlight, peak int32
	var mu sync.Mutex

	repo := &mockRepo{
		listExpiredTemporaryFn: func(now time.Time) ([]model.Invitation, error) {
			return nil, nil
		},
		listTeamsFn: func() ([]model.Team, error) {
			return teams, nil
		},
		authorizedEmailsFn: func(teamID uuid.UUID) ([]string, error) {
			return nil, nil
		},
	}
	remote := &mockRemote{
		listMembersFn: func(cred chatgpt.Credential) ([]chatgpt.Member, error) {
			n := atomic.AddInt32(&inFlight, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil, nil
		},
	}

	svc := service.NewSweepService(testLogger(), repo, remote, mockTelemetry{}, service.WithSweepJitter(0))

	report, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, report.TeamsSucceeded)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int32(3), "at most three concurrent team checks")
}
