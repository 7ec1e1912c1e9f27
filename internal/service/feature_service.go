package service

import (
	"context"
	"fmt"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// FeatureService flips a user's asset automation off when authentication
// or account health fails permanently. It is only ever invoked for
// terminal classifications; transient failures never reach it.
type FeatureService interface {
	Disable(ctx context.Context, userID string, kind model.AssetKind) error
	DisableAll(ctx context.Context, userID string) error
}

type featureService struct {
	settingsRepo repository.SettingsRepository
	logger       zerolog.Logger
}

func NewFeatureService(settingsRepo repository.SettingsRepository, logger zerolog.Logger) FeatureService {
	return &featureService{
		settingsRepo: settingsRepo,
		logger:       logger.With().Str("service", "FeatureService").Logger(),
	}
}

// Disable turns off one asset kind. Disabling an already-disabled
// feature is a no-op.
func (s *featureService) Disable(ctx context.Context, userID string, kind model.AssetKind) error {
	if err := s.settingsRepo.SetEnabled(ctx, userID, kind, false); err != nil {
		return fmt.Errorf("failed to disable %s for user %s: %w", kind, userID, err)
	}
	s.logger.Warn().Str("user_id", userID).Str("kind", string(kind)).Msg("Feature disabled, re-authentication required")
	return nil
}

// DisableAll turns off every asset kind for the user. Used for account
// level failures (suspended, locked) where no kind can succeed.
func (s *featureService) DisableAll(ctx context.Context, userID string) error {
	for _, kind := range model.AllAssetKinds() {
		if err := s.Disable(ctx, userID, kind); err != nil {
			return err
		}
	}
	return nil
}
