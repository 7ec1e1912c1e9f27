package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/lease"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/retry"
	"app/internal/util"

	"github.com/rs/zerolog"
)

// Trigger names, used in logs and dead-letter jobs.
const (
	TriggerStreamUp   = "stream-up"
	TriggerStreamDown = "stream-down"
)

// SyncService is the state machine invoked on stream state changes. Every
// outcome is a typed result; a failing user never aborts a batch.
type SyncService interface {
	StreamUp(ctx context.Context, userID string, kind model.AssetKind) model.SyncResult
	StreamDown(ctx context.Context, userID string, kind model.AssetKind) model.SyncResult
}

type syncService struct {
	settingsRepo     repository.SettingsRepository
	cacheRepo        repository.RenderCacheRepository
	creds            CredentialStore
	profileAPI       ProfileAPI
	blobs            BlobService
	renderer         RenderService
	features         FeatureService
	alerts           AlertService
	leases           *lease.Manager
	buckets          Buckets
	downloadAttempts int
	logger           zerolog.Logger
}

func NewSyncService(
	settingsRepo repository.SettingsRepository,
	cacheRepo repository.RenderCacheRepository,
	creds CredentialStore,
	profileAPI ProfileAPI,
	blobs BlobService,
	renderer RenderService,
	features FeatureService,
	alerts AlertService,
	leases *lease.Manager,
	buckets Buckets,
	downloadAttempts int,
	logger zerolog.Logger,
) SyncService {
	if downloadAttempts < 1 {
		downloadAttempts = 1
	}
	return &syncService{
		settingsRepo:     settingsRepo,
		cacheRepo:        cacheRepo,
		creds:            creds,
		profileAPI:       profileAPI,
		blobs:            blobs,
		renderer:         renderer,
		features:         features,
		alerts:           alerts,
		leases:           leases,
		buckets:          buckets,
		downloadAttempts: downloadAttempts,
		logger:           logger.With().Str("service", "SyncService").Logger(),
	}
}

func result(kind model.AssetKind, status model.SyncStatus, detail string) model.SyncResult {
	return model.SyncResult{Kind: kind, Status: status, Detail: detail}
}

// prologue runs the shared first transitions: settings + credentials
// fetched, then credentials validated. A non-nil SyncResult means the
// flow is already decided.
func (s *syncService) prologue(ctx context.Context, userID string, kind model.AssetKind, trigger string) (*model.AssetSettings, *model.Credentials, *model.SyncResult) {
	settings, err := s.settingsRepo.GetSettings(ctx, userID, kind)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Failed to load asset settings")
		r := result(kind, model.SyncStatusDeferred, fmt.Sprintf("Could not load %s settings; will retry on next trigger.", kind))
		return nil, nil, &r
	}
	if settings == nil {
		r := result(kind, model.SyncStatusNoop, fmt.Sprintf("Could not find %s entry for user.", kind))
		return nil, nil, &r
	}
	if !settings.Enabled {
		// Disabled features never touch the remote profile.
		r := result(kind, model.SyncStatusNoop, fmt.Sprintf("Feature %s is disabled for user.", kind))
		return nil, nil, &r
	}

	creds, err := s.creds.GetCredentials(ctx, userID, model.ProviderTwitter)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load credentials")
		r := result(kind, model.SyncStatusDeferred, "Could not load credentials; will retry on next trigger.")
		return nil, nil, &r
	}
	if creds == nil {
		r := result(kind, model.SyncStatusNoop, fmt.Sprintf("Could not find %s entry or token info for user.", kind))
		return nil, nil, &r
	}

	if !s.profileAPI.VerifyCredentials(ctx, creds) {
		// The single most important self-healing behavior: a revoked
		// OAuth grant must not be retried forever.
		if err := s.features.Disable(ctx, userID, kind); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Failed to disable feature after auth failure")
		}
		s.alerts.AuthFailure(ctx, userID, kind, &model.APIError{
			Classification: model.ClassificationInvalidToken,
			Message:        "credential verification failed on " + trigger,
		})
		s.logger.Error().Str("user_id", userID).Str("kind", string(kind)).Msg("Unauthenticated Twitter. Disabling feature and requiring re-auth.")
		r := result(kind, model.SyncStatusReauth, fmt.Sprintf("Unauthenticated Twitter. Disabling feature %s and requiring re-auth.", kind))
		return nil, nil, &r
	}

	return settings, creds, nil
}

// handlePushFailure converts a classified push failure into a result,
// disabling features only for terminal classifications.
func (s *syncService) handlePushFailure(ctx context.Context, userID string, kind model.AssetKind, apiErr *model.APIError, trigger string) model.SyncResult {
	switch {
	case apiErr.Classification.PermanentAuth():
		if apiErr.Classification == model.ClassificationInvalidToken {
			if err := s.features.Disable(ctx, userID, kind); err != nil {
				s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to disable feature")
			}
		} else {
			// Suspended or locked accounts cannot serve any asset kind.
			if err := s.features.DisableAll(ctx, userID); err != nil {
				s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to disable features")
			}
		}
		s.alerts.AuthFailure(ctx, userID, kind, apiErr)
		return result(kind, model.SyncStatusReauth, fmt.Sprintf("Disabled %s: %s. Re-authentication required.", kind, apiErr.Classification))

	case apiErr.Classification == model.ClassificationContentRejected:
		return result(kind, model.SyncStatusRejected, fmt.Sprintf("Provider rejected %s content: %s", kind, apiErr.Message))

	default:
		// RateLimited and Unknown: silently deferred, the next trigger
		// is the retry boundary.
		s.logger.Warn().Str("user_id", userID).Str("kind", string(kind)).Str("classification", string(apiErr.Classification)).Msg("Transient push failure, deferring to next trigger")
		return result(kind, model.SyncStatusDeferred, fmt.Sprintf("Failed to update %s (%s); will retry on next trigger.", kind, apiErr.Classification))
	}
}

// StreamDown restores the user's pre-stream asset.
func (s *syncService) StreamDown(ctx context.Context, userID string, kind model.AssetKind) model.SyncResult {
	leaseKey := userID + "/" + string(kind)
	token, ok := s.leases.Acquire(leaseKey)
	if !ok {
		return result(kind, model.SyncStatusBusy, fmt.Sprintf("A sync for %s is already in flight.", kind))
	}
	defer s.leases.Release(leaseKey, token)

	_, creds, decided := s.prologue(ctx, userID, kind, TriggerStreamDown)
	if decided != nil {
		return *decided
	}

	payload, restoreErr := s.resolveRestorePayload(ctx, userID, kind)
	if restoreErr != nil {
		detail := fmt.Sprintf("Failing streamdown for %s: invalid original as well as backup asset.", kind)
		s.logger.Error().Err(restoreErr).Str("user_id", userID).Str("kind", string(kind)).Msg("Exhausted restore sources on streamdown")
		s.alerts.DeadLetter(ctx, userID, kind, TriggerStreamDown, detail)
		return result(kind, model.SyncStatusFailed, detail)
	}

	if apiErr := s.profileAPI.UpdateAsset(ctx, creds, kind, payload); apiErr != nil {
		return s.handlePushFailure(ctx, userID, kind, apiErr, TriggerStreamDown)
	}
	return result(kind, model.SyncStatusOK, fmt.Sprintf("Successfully set %s back to original.", kind))
}

// resolveRestorePayload downloads the original asset with a bounded
// retry, falling back to the backup captured at feature-enable time. The
// returned payload is structurally validated; both sources failing is a
// terminal error because the system must never push a corrupt payload.
func (s *syncService) resolveRestorePayload(ctx context.Context, userID string, kind model.AssetKind) (string, error) {
	original, err := retry.Do(ctx, retry.Options{MaxAttempts: s.downloadAttempts}, func(ctx context.Context) (string, error) {
		data, err := s.blobs.Download(ctx, s.buckets.Original(kind), userID)
		if err != nil {
			return "", err
		}
		if data == "" {
			return "", errors.New("original asset missing")
		}
		return data, nil
	})
	if err == nil && util.ValidArtifact(kind, original) {
		return original, nil
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Failed to download original asset, falling back to backup")
	} else {
		s.logger.Warn().Str("user_id", userID).Str("kind", string(kind)).Msg("Original asset failed validation, falling back to backup")
	}

	backup, err := s.blobs.Download(ctx, s.buckets.Backup(kind), userID)
	if err != nil {
		return "", fmt.Errorf("backup download failed: %w", err)
	}
	if !util.ValidArtifact(kind, backup) {
		return "", errors.New("backup asset failed validation")
	}
	return backup, nil
}

// StreamUp pushes the user's live asset, reusing the rendered cache when
// it is still valid.
func (s *syncService) StreamUp(ctx context.Context, userID string, kind model.AssetKind) model.SyncResult {
	leaseKey := userID + "/" + string(kind)
	token, ok := s.leases.Acquire(leaseKey)
	if !ok {
		return result(kind, model.SyncStatusBusy, fmt.Sprintf("A sync for %s is already in flight.", kind))
	}
	defer s.leases.Release(leaseKey, token)

	settings, creds, decided := s.prologue(ctx, userID, kind, TriggerStreamUp)
	if decided != nil {
		return *decided
	}

	// Capture the current remote asset so stream-down can restore it.
	current, apiErr := s.profileAPI.FetchCurrentAsset(ctx, creds, kind)
	if apiErr != nil {
		s.logger.Warn().Str("user_id", userID).Str("kind", string(kind)).Str("classification", string(apiErr.Classification)).Msg("Could not fetch current asset, capturing empty")
		current = model.EmptyAsset
	}
	if err := s.blobs.Upload(ctx, s.buckets.Original(kind), userID, current); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Failed to upload original asset")
		return result(kind, model.SyncStatusDeferred, fmt.Sprintf("Error saving original %s; will retry on next trigger.", kind))
	}

	if kind == model.AssetKindName {
		return s.pushLiveName(ctx, userID, settings, creds)
	}
	return s.pushLiveImage(ctx, userID, kind, settings, creds)
}

// pushLiveName sets the display name configured in the template props.
// Names are not rendered and not cached.
func (s *syncService) pushLiveName(ctx context.Context, userID string, settings *model.AssetSettings, creds *model.Credentials) model.SyncResult {
	liveName, _ := settings.Props()["liveName"].(string)
	if liveName == "" {
		return result(model.AssetKindName, model.SyncStatusNoop, "No live name configured for user.")
	}
	if apiErr := s.profileAPI.UpdateAsset(ctx, creds, model.AssetKindName, liveName); apiErr != nil {
		return s.handlePushFailure(ctx, userID, model.AssetKindName, apiErr, TriggerStreamUp)
	}
	return result(model.AssetKindName, model.SyncStatusOK, "Set name to live name.")
}

// pushLiveImage pushes the rendered artifact for banner or profile image,
// regenerating it when the cache is stale.
func (s *syncService) pushLiveImage(ctx context.Context, userID string, kind model.AssetKind, settings *model.AssetSettings, creds *model.Credentials) model.SyncResult {
	entry, err := s.cacheRepo.GetEntry(ctx, userID, kind)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Failed to load render cache entry")
		return result(kind, model.SyncStatusDeferred, fmt.Sprintf("Could not load render cache for %s; will retry on next trigger.", kind))
	}

	cachedArtifact := ""
	if entry != nil {
		// A storage failure here is just a cache miss.
		cachedArtifact, err = s.blobs.Download(ctx, s.buckets.Cache(kind), entry.BlobKey)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Cached artifact not retrievable, forcing re-render")
			cachedArtifact = ""
		}
	}

	if CacheValid(entry, cachedArtifact, settings.UpdatedAt) {
		s.logger.Info().Str("user_id", userID).Str("kind", string(kind)).Msg("Cache hit: not re-rendering asset")
		if apiErr := s.profileAPI.UpdateAsset(ctx, creds, kind, cachedArtifact); apiErr != nil {
			return s.handlePushFailure(ctx, userID, kind, apiErr, TriggerStreamUp)
		}
		return result(kind, model.SyncStatusOK, fmt.Sprintf("Set %s to rendered template from cache.", kind))
	}

	if entry == nil {
		s.logger.Info().Str("user_id", userID).Str("kind", string(kind)).Msg("Cache miss: rendering asset for the first time")
	} else {
		s.logger.Info().Str("user_id", userID).Str("kind", string(kind)).Msg("Cache miss: cached asset has been invalidated")
	}

	// Live data is inherently time-varying, so it is fetched fresh on
	// every render rather than stored in the property bag.
	props := settings.Props()
	imageURL, apiErr := s.profileAPI.ProfileImageURL(ctx, creds)
	if apiErr != nil {
		s.logger.Warn().Str("user_id", userID).Str("classification", string(apiErr.Classification)).Msg("Could not fetch live profile image url")
		imageURL = model.EmptyAsset
	}
	props["imageUrl"] = imageURL

	rendered, err := s.renderer.Render(ctx, settings.TemplateID, props)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Render service call failed")
		return result(kind, model.SyncStatusDeferred, fmt.Sprintf("Failed to render %s; will retry on next trigger.", kind))
	}
	if !util.ValidArtifact(kind, rendered) {
		detail := fmt.Sprintf("Render service produced an invalid %s artifact.", kind)
		s.alerts.DeadLetter(ctx, userID, kind, TriggerStreamUp, detail)
		return result(kind, model.SyncStatusFailed, detail)
	}

	if apiErr := s.profileAPI.UpdateAsset(ctx, creds, kind, rendered); apiErr != nil {
		// Cache stays in its prior state: an unconfirmed artifact is
		// never marked authoritative.
		return s.handlePushFailure(ctx, userID, kind, apiErr, TriggerStreamUp)
	}

	// Commit the cache only after the remote system accepted the asset.
	if err := s.blobs.Upload(ctx, s.buckets.Cache(kind), userID, rendered); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Failed to upload rendered artifact to cache; next trigger re-renders")
	} else if err := s.cacheRepo.CommitEntry(ctx, userID, kind, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Failed to commit render cache entry; next trigger re-renders")
	}

	return result(kind, model.SyncStatusOK, fmt.Sprintf("Set %s to rendered template.", kind))
}
