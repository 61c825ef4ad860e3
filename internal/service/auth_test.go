package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"teamgate/internal/config"
	"teamgate/internal/model"
	"teamgate/internal/service"
)

func authConfig(t *testing.T, password string) config.AdminConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return config.AdminConfig{
		PasswordHash:     string(hash),
		MaxLoginFailures: 5,
		LockoutWindow:    30 * time.Minute,
	}
}

func TestAuthService_Login(t *testing.T) {
	tests := []struct {
		name           string
		password       string
		recentFailures int
		expectedError  error
	}{
		{
			name:           "successful_login",
			password:       "correct-horse",
			recentFailures: 0,
			expectedError:  nil,
		},
		{
			name:           "wrong_password",
			password:       "battery-staple",
			recentFailures: 0,
			expectedError:  service.ErrInvalidCredentials,
		},
		{
			name:           "locked_out_before_password_check",
			password:       "correct-horse",
			recentFailures: 5,
			expectedError:  service.ErrTooManyAttempts,
		},
		{
			name:           "one_failure_left",
			password:       "correct-horse",
			recentFailures: 4,
			expectedError:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var recorded []model.LoginAttempt
			repo := &mockRepo{
				countRecentLoginFailuresFn: func(ip string, since time.Time) (int, error) {
					return tt.recentFailures, nil
				},
				recordLoginAttemptFn: func(attempt model.LoginAttempt) error {
					recorded = append(recorded, attempt)
					return nil
				},
			}

			svc := service.NewAuthService(testLogger(), repo, authConfig(t, "correct-horse"))

			err := svc.Login(context.Background(), "admin", tt.password, "10.0.0.1")
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}

			// Every attempt lands in the ledger, lockouts included.
			require.Len(t, recorded, 1)
			assert.Equal(t, "10.0.0.1", recorded[0].IPAddress)
			assert.Equal(t, tt.expectedError == nil, recorded[0].Success)
		})
	}
}

func TestAuthService_RemainingAttempts(t *testing.T) {
	repo := &mockRepo{
		countRecentLoginFailuresFn: func(ip string, since time.Time) (int, error) {
			return 3, nil
		},
	}

	svc := service.NewAuthService(testLogger(), repo, authConfig(t, "pw"))

	remaining, err := svc.RemainingAttempts(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestAuthService_PruneOld(t *testing.T) {
	var cutoff time.Time
	repo := &mockRepo{
		pruneLoginAttemptsFn: func(before time.Time) (int64, error) {
			cutoff = before
			return 7, nil
		},
	}

	svc := service.NewAuthService(testLogger(), repo, authConfig(t, "pw"))

	pruned, err := svc.PruneOld(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pruned)
	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), cutoff, time.Minute)
}
