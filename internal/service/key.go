package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"teamgate/internal/model"
	"teamgate/internal/repository"
	"teamgate/internal/util"
)

const (
	accessKeyLength = 24
	maxBatchSize    = 100
)

var ErrInvalidBatchSize = errors.New("batch size must be between 1 and 100")

// KeyService issues and manages single-use access codes.
type KeyService struct {
	logger *slog.Logger
	repo   repository.Repository
}

func NewKeyService(logger *slog.Logger, repo repository.Repository) *KeyService {
	return &KeyService{
		logger: logger,
		repo:   repo,
	}
}

// Generate mints count fresh access codes. A non-nil teamID pins every code
// to that team; temporary codes carry the grace period in hours.
func (s *KeyService) Generate(ctx context.Context, count int, teamID *uuid.UUID, isTemp bool, tempHours int) ([]model.AccessKey, error) {
	if count < 1 || count > maxBatchSize {
		return nil, ErrInvalidBatchSize
	}
	if teamID != nil {
		if _, err := s.repo.GetTeamByID(ctx, *teamID); err != nil {
			return nil, err
		}
	}
	if isTemp && tempHours < 1 {
		return nil, fmt.Errorf("temporary keys need a positive expiry in hours")
	}

	now := time.Now().UTC()
	keys := make([]model.AccessKey, 0, count)
	for i := 0; i < count; i++ {
		code, err := util.RandomString(accessKeyLength)
		if err != nil {
			return nil, err
		}
		key := model.AccessKey{
			ID:        uuid.New(),
			TeamID:    teamID,
			Code:      code,
			IsTemp:    isTemp,
			TempHours: tempHours,
			CreatedAt: now,
		}
		if err := s.repo.CreateAccessKey(ctx, key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	s.logger.Info("Access keys generated", "count", count, "temporary", isTemp)
	return keys, nil
}

// List returns the access keys still open for redemption. Spent keys
// are cancelled, not deleted, and drop out of the listing.
func (s *KeyService) List(ctx context.Context) ([]model.AccessKey, error) {
	return s.repo.ListAccessKeys(ctx)
}

// Delete removes a key outright. Spent keys are kept by default for
// auditability; deletion is the explicit cleanup path.
func (s *KeyService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteAccessKey(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Access key deleted", "key_id", id)
	return nil
}
