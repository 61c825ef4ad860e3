package service_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamgate/internal/model"
	"teamgate/internal/repository"
	"teamgate/internal/service"
)

func TestKeyService_Generate_MintsDistinctCodes(t *testing.T) {
	repo := &mockRepo{}
	svc := service.NewKeyService(testLogger(), repo)

	keys, err := svc.Generate(context.Background(), 5, nil, false, 0)
	require.NoError(t, err)
	require.Len(t, keys, 5)
	require.Len(t, repo.storedAccessKeys(), 5)

	seen := make(map[string]bool)
	for _, key := range keys {
		raw, err := base64.RawURLEncoding.DecodeString(key.Code)
		require.NoError(t, err, "code %q is not url-safe base64", key.Code)
		assert.Len(t, raw, 24)
		assert.False(t, seen[key.Code], "duplicate code %q", key.Code)
		seen[key.Code] = true
		assert.Nil(t, key.TeamID)
		assert.False(t, key.IsTemp)
	}
}

func TestKeyService_Generate_TemporaryCarriesGracePeriod(t *testing.T) {
	repo := &mockRepo{}
	svc := service.NewKeyService(testLogger(), repo)

	keys, err := svc.Generate(context.Background(), 1, nil, true, 12)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].IsTemp)
	assert.Equal(t, 12, keys[0].TempHours)

	_, err = svc.Generate(context.Background(), 1, nil, true, 0)
	assert.Error(t, err)
}

func TestKeyService_Generate_RejectsBadBatchSize(t *testing.T) {
	repo := &mockRepo{}
	svc := service.NewKeyService(testLogger(), repo)

	for _, count := range []int{0, -1, 101} {
		_, err := svc.Generate(context.Background(), count, nil, false, 0)
		assert.ErrorIs(t, err, service.ErrInvalidBatchSize, "count %d", count)
	}
	assert.Empty(t, repo.storedAccessKeys())
}

func TestKeyService_Generate_UnknownTeamRejected(t *testing.T) {
	repo := &mockRepo{
		getTeamByIDFn: func(id uuid.UUID) (model.Team, error) {
			return model.Team{}, repository.ErrTeamNotFound
		},
	}
	svc := service.NewKeyService(testLogger(), repo)

	teamID := uuid.New()
	_, err := svc.Generate(context.Background(), 1, &teamID, false, 0)
	assert.ErrorIs(t, err, repository.ErrTeamNotFound)
	assert.Empty(t, repo.storedAccessKeys())
}
