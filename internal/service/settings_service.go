package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrAccountNotLinked = errors.New("no linked provider account for user")
	ErrSettingsNotFound = errors.New("asset settings not found")
)

// SettingsService manages per-user asset configuration. Enabling a
// feature captures a backup of the user's current remote asset so it can
// be restored even if the per-stream original capture is lost.
type SettingsService interface {
	Get(ctx context.Context, userID string, kind model.AssetKind) (*model.AssetSettings, error)
	Update(ctx context.Context, settings *model.AssetSettings) (*model.AssetSettings, error)
	Enable(ctx context.Context, userID string, kind model.AssetKind) error
	Disable(ctx context.Context, userID string, kind model.AssetKind) error
}

type settingsService struct {
	settingsRepo repository.SettingsRepository
	creds        CredentialStore
	profileAPI   ProfileAPI
	blobs        BlobService
	buckets      Buckets
	logger       zerolog.Logger
}

func NewSettingsService(
	settingsRepo repository.SettingsRepository,
	creds CredentialStore,
	profileAPI ProfileAPI,
	blobs BlobService,
	buckets Buckets,
	logger zerolog.Logger,
) SettingsService {
	return &settingsService{
		settingsRepo: settingsRepo,
		creds:        creds,
		profileAPI:   profileAPI,
		blobs:        blobs,
		buckets:      buckets,
		logger:       logger.With().Str("service", "SettingsService").Logger(),
	}
}

func (s *settingsService) Get(ctx context.Context, userID string, kind model.AssetKind) (*model.AssetSettings, error) {
	settings, err := s.settingsRepo.GetSettings(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ErrSettingsNotFound
	}
	return settings, nil
}

// Update writes template configuration. The repository bumps the
// updated_at timestamp, which invalidates any cached render, and scans
// the persisted row back into settings.
func (s *settingsService) Update(ctx context.Context, settings *model.AssetSettings) (*model.AssetSettings, error) {
	if err := s.settingsRepo.UpsertSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Enable turns the feature on and captures a backup of the current
// remote asset. The backup is written once here, not refreshed on each
// stream, so it survives a corrupted original capture.
func (s *settingsService) Enable(ctx context.Context, userID string, kind model.AssetKind) error {
	settings, err := s.settingsRepo.GetSettings(ctx, userID, kind)
	if err != nil {
		return err
	}
	if settings == nil {
		return ErrSettingsNotFound
	}

	creds, err := s.creds.GetCredentials(ctx, userID, model.ProviderTwitter)
	if err != nil {
		return err
	}
	if creds == nil {
		return ErrAccountNotLinked
	}

	current, apiErr := s.profileAPI.FetchCurrentAsset(ctx, creds, kind)
	if apiErr != nil {
		s.logger.Warn().Str("user_id", userID).Str("kind", string(kind)).Str("classification", string(apiErr.Classification)).Msg("Could not fetch current asset for backup, storing empty")
		current = model.EmptyAsset
	}
	if err := s.blobs.Upload(ctx, s.buckets.Backup(kind), userID, current); err != nil {
		return fmt.Errorf("failed to store backup asset: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("kind", string(kind)).Msg("Feature enabled, backup asset captured")
	return s.settingsRepo.SetEnabled(ctx, userID, kind, true)
}

func (s *settingsService) Disable(ctx context.Context, userID string, kind model.AssetKind) error {
	settings, err := s.settingsRepo.GetSettings(ctx, userID, kind)
	if err != nil {
		return err
	}
	if settings == nil {
		return ErrSettingsNotFound
	}
	s.logger.Info().Str("user_id", userID).Str("kind", string(kind)).Msg("Feature disabled by user")
	return s.settingsRepo.SetEnabled(ctx, userID, kind, false)
}
