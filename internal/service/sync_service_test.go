package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"app/internal/lease"
	"app/internal/model"

	"github.com/rs/zerolog"
)

const validArtifact = "aGVsbG8gd29ybGQ=" // "hello world"

type fakeSettingsRepo struct {
	settings *model.AssetSettings
	err      error
	disabled []string
}

func (f *fakeSettingsRepo) GetSettings(ctx context.Context, userID string, kind model.AssetKind) (*model.AssetSettings, error) {
	return f.settings, f.err
}

func (f *fakeSettingsRepo) UpsertSettings(ctx context.Context, s *model.AssetSettings) error {
	return nil
}

func (f *fakeSettingsRepo) SetEnabled(ctx context.Context, userID string, kind model.AssetKind, enabled bool) error {
	if !enabled {
		f.disabled = append(f.disabled, fmt.Sprintf("%s/%s", userID, kind))
	}
	return nil
}

func (f *fakeSettingsRepo) ListEnabledUserIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

type fakeCacheRepo struct {
	entry   *model.RenderCache
	commits []string
}

func (f *fakeCacheRepo) GetEntry(ctx context.Context, userID string, kind model.AssetKind) (*model.RenderCache, error) {
	return f.entry, nil
}

func (f *fakeCacheRepo) CommitEntry(ctx context.Context, userID string, kind model.AssetKind, blobKey string) error {
	f.commits = append(f.commits, fmt.Sprintf("%s/%s", userID, kind))
	return nil
}

type fakeCredStore struct {
	creds *model.Credentials
}

func (f *fakeCredStore) StoreCredentials(ctx context.Context, userID, provider string, creds *model.Credentials) error {
	return nil
}

func (f *fakeCredStore) GetCredentials(ctx context.Context, userID, provider string) (*model.Credentials, error) {
	return f.creds, nil
}

func (f *fakeCredStore) DeleteCredentials(ctx context.Context, userID, provider string) error {
	return nil
}

type push struct {
	kind    model.AssetKind
	payload string
}

type fakeProfileAPI struct {
	verifyOK     bool
	updateErr    *model.APIError
	pushes       []push
	currentAsset string
	imageURL     string
}

func (f *fakeProfileAPI) VerifyCredentials(ctx context.Context, creds *model.Credentials) bool {
	return f.verifyOK
}

func (f *fakeProfileAPI) UpdateAsset(ctx context.Context, creds *model.Credentials, kind model.AssetKind, payload string) *model.APIError {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.pushes = append(f.pushes, push{kind: kind, payload: payload})
	return nil
}

func (f *fakeProfileAPI) FetchCurrentAsset(ctx context.Context, creds *model.Credentials, kind model.AssetKind) (string, *model.APIError) {
	return f.currentAsset, nil
}

func (f *fakeProfileAPI) ProfileImageURL(ctx context.Context, creds *model.Credentials) (string, *model.APIError) {
	return f.imageURL, nil
}

type fakeBlobService struct {
	objects      map[string]string
	uploads      []string
	downloadFail map[string]int // remaining failures per bucket/key
}

func blobKey(bucket, key string) string { return bucket + "/" + key }

func (f *fakeBlobService) Download(ctx context.Context, bucket, key string) (string, error) {
	k := blobKey(bucket, key)
	if remaining, ok := f.downloadFail[k]; ok && remaining > 0 {
		f.downloadFail[k] = remaining - 1
		return "", errors.New("transient storage failure")
	}
	return f.objects[k], nil
}

func (f *fakeBlobService) Upload(ctx context.Context, bucket, key, data string) error {
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	k := blobKey(bucket, key)
	f.objects[k] = data
	f.uploads = append(f.uploads, k)
	return nil
}

type fakeRenderer struct {
	out   string
	err   error
	calls int
}

func (f *fakeRenderer) Render(ctx context.Context, templateID string, props map[string]interface{}) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeFeatureService struct {
	disabled []string
}

func (f *fakeFeatureService) Disable(ctx context.Context, userID string, kind model.AssetKind) error {
	f.disabled = append(f.disabled, fmt.Sprintf("%s/%s", userID, kind))
	return nil
}

func (f *fakeFeatureService) DisableAll(ctx context.Context, userID string) error {
	for _, kind := range model.AllAssetKinds() {
		f.disabled = append(f.disabled, fmt.Sprintf("%s/%s", userID, kind))
	}
	return nil
}

type fakeAlertService struct {
	authFailures int
	deadLetters  int
}

func (f *fakeAlertService) AuthFailure(ctx context.Context, userID string, kind model.AssetKind, apiErr *model.APIError) {
	f.authFailures++
}

func (f *fakeAlertService) DeadLetter(ctx context.Context, userID string, kind model.AssetKind, trigger, detail string) {
	f.deadLetters++
}

type syncFixture struct {
	settings *fakeSettingsRepo
	cache    *fakeCacheRepo
	creds    *fakeCredStore
	api      *fakeProfileAPI
	blobs    *fakeBlobService
	renderer *fakeRenderer
	features *fakeFeatureService
	alerts   *fakeAlertService
	buckets  Buckets
	svc      SyncService
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		settings: &fakeSettingsRepo{settings: &model.AssetSettings{
			UserID:        "user1",
			Kind:          model.AssetKindBanner,
			Enabled:       true,
			TemplateID:    "template-1",
			TemplateProps: json.RawMessage(`{"backgroundColor":"purple"}`),
			UpdatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		}},
		cache:    &fakeCacheRepo{},
		creds:    &fakeCredStore{creds: &model.Credentials{Token: "t", TokenSecret: "s"}},
		api:      &fakeProfileAPI{verifyOK: true, currentAsset: validArtifact, imageURL: "https://img.example/pic.png"},
		blobs:    &fakeBlobService{objects: map[string]string{}, downloadFail: map[string]int{}},
		renderer: &fakeRenderer{out: validArtifact},
		features: &fakeFeatureService{},
		alerts:   &fakeAlertService{},
		buckets:  Buckets{Prefix: "test"},
	}
	f.svc = NewSyncService(
		f.settings, f.cache, f.creds, f.api, f.blobs, f.renderer,
		f.features, f.alerts, lease.NewManager(time.Minute), f.buckets, 2, zerolog.Nop(),
	)
	return f
}

func TestStreamUpDisabledFeatureNeverPushes(t *testing.T) {
	f := newSyncFixture(t)
	f.settings.settings.Enabled = false

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusNoop {
		t.Fatalf("status = %s, want noop", res.Status)
	}
	if len(f.api.pushes) != 0 {
		t.Fatal("disabled feature must not push to the profile API")
	}
	res = f.svc.StreamDown(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusNoop || len(f.api.pushes) != 0 {
		t.Fatal("disabled feature must not push on stream-down either")
	}
}

func TestStreamUpMissingRecordsIsNoop(t *testing.T) {
	f := newSyncFixture(t)
	f.settings.settings = nil

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusNoop {
		t.Fatalf("missing settings: status = %s, want noop", res.Status)
	}

	f = newSyncFixture(t)
	f.creds.creds = nil
	res = f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusNoop {
		t.Fatalf("missing credentials: status = %s, want noop", res.Status)
	}
}

// Scenario A: no cache entry on a live trigger renders exactly once,
// uploads one cached artifact, and commits the entry only after the push
// succeeded.
func TestStreamUpFirstRender(t *testing.T) {
	f := newSyncFixture(t)

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Detail)
	}
	if f.renderer.calls != 1 {
		t.Fatalf("render calls = %d, want exactly 1", f.renderer.calls)
	}

	cacheBucket := f.buckets.Cache(model.AssetKindBanner)
	cacheUploads := 0
	for _, up := range f.blobs.uploads {
		if up == blobKey(cacheBucket, "user1") {
			cacheUploads++
		}
	}
	if cacheUploads != 1 {
		t.Fatalf("cache uploads = %d, want exactly 1", cacheUploads)
	}
	if len(f.cache.commits) != 1 {
		t.Fatalf("cache commits = %d, want 1", len(f.cache.commits))
	}
	if len(f.api.pushes) != 1 || f.api.pushes[0].payload != validArtifact {
		t.Fatalf("expected one push of the rendered artifact, got %+v", f.api.pushes)
	}
}

// Scenario B: invalid credentials on stream-down disable the feature,
// push nothing, and return a re-authentication message.
func TestStreamDownInvalidCredentialsDisables(t *testing.T) {
	f := newSyncFixture(t)
	f.api.verifyOK = false

	res := f.svc.StreamDown(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusReauth {
		t.Fatalf("status = %s, want reauth_required", res.Status)
	}
	if len(f.api.pushes) != 0 {
		t.Fatal("no push may occur after an auth failure")
	}
	if len(f.features.disabled) != 1 || f.features.disabled[0] != "user1/banner" {
		t.Fatalf("feature disables = %v, want [user1/banner]", f.features.disabled)
	}
	if f.alerts.authFailures != 1 {
		t.Fatalf("auth failure alerts = %d, want 1", f.alerts.authFailures)
	}
}

// Scenario C: the original download failing twice with an invalid backup
// is a reportable failure and no push happens.
func TestStreamDownExhaustedRestoreSources(t *testing.T) {
	f := newSyncFixture(t)
	originalBucket := f.buckets.Original(model.AssetKindBanner)
	f.blobs.downloadFail[blobKey(originalBucket, "user1")] = 2
	f.blobs.objects[blobKey(f.buckets.Backup(model.AssetKindBanner), "user1")] = "!!!corrupt!!!"

	res := f.svc.StreamDown(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusFailed {
		t.Fatalf("status = %s (%s), want failed", res.Status, res.Detail)
	}
	if len(f.api.pushes) != 0 {
		t.Fatal("no push may occur when every restore source is invalid")
	}
	if f.alerts.deadLetters != 1 {
		t.Fatalf("dead letters = %d, want 1", f.alerts.deadLetters)
	}
	if len(f.features.disabled) != 0 {
		t.Fatal("corrupt assets must not disable the feature")
	}
}

func TestStreamDownRetriesOriginalOnce(t *testing.T) {
	f := newSyncFixture(t)
	originalBucket := f.buckets.Original(model.AssetKindBanner)
	// First attempt fails, the bounded retry succeeds.
	f.blobs.downloadFail[blobKey(originalBucket, "user1")] = 1
	f.blobs.objects[blobKey(originalBucket, "user1")] = validArtifact

	res := f.svc.StreamDown(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Detail)
	}
	if len(f.api.pushes) != 1 || f.api.pushes[0].payload != validArtifact {
		t.Fatalf("expected the original artifact to be pushed, got %+v", f.api.pushes)
	}
}

func TestStreamDownFallsBackToBackup(t *testing.T) {
	f := newSyncFixture(t)
	originalBucket := f.buckets.Original(model.AssetKindBanner)
	f.blobs.objects[blobKey(originalBucket, "user1")] = "!!!corrupt!!!"
	f.blobs.objects[blobKey(f.buckets.Backup(model.AssetKindBanner), "user1")] = validArtifact

	res := f.svc.StreamDown(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Detail)
	}
	if len(f.api.pushes) != 1 || f.api.pushes[0].payload != validArtifact {
		t.Fatalf("expected the backup artifact to be pushed, got %+v", f.api.pushes)
	}
}

// Scenario D: a cache entry older than the settings update forces a
// re-render even though the artifact is still in blob storage.
func TestStreamUpStaleCacheForcesRender(t *testing.T) {
	f := newSyncFixture(t)
	updatedAt := f.settings.settings.UpdatedAt
	f.cache.entry = &model.RenderCache{
		UserID:       "user1",
		Kind:         model.AssetKindBanner,
		BlobKey:      "user1",
		LastRendered: updatedAt.Add(-time.Hour),
	}
	f.blobs.objects[blobKey(f.buckets.Cache(model.AssetKindBanner), "user1")] = "c3RhbGU="

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Detail)
	}
	if f.renderer.calls != 1 {
		t.Fatalf("render calls = %d, want 1 (stale cache must re-render)", f.renderer.calls)
	}
}

func TestStreamUpCacheHitSkipsRender(t *testing.T) {
	f := newSyncFixture(t)
	updatedAt := f.settings.settings.UpdatedAt
	f.cache.entry = &model.RenderCache{
		UserID:       "user1",
		Kind:         model.AssetKindBanner,
		BlobKey:      "user1",
		LastRendered: updatedAt.Add(time.Hour),
	}
	cached := "Y2FjaGVk"
	f.blobs.objects[blobKey(f.buckets.Cache(model.AssetKindBanner), "user1")] = cached

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Detail)
	}
	if f.renderer.calls != 0 {
		t.Fatalf("render calls = %d, want 0 on a cache hit", f.renderer.calls)
	}
	if len(f.api.pushes) != 1 || f.api.pushes[0].payload != cached {
		t.Fatalf("expected the cached artifact to be pushed, got %+v", f.api.pushes)
	}
}

// Scenario E: a rate-limited push leaves all state unchanged and defers.
func TestStreamUpRateLimitedDefers(t *testing.T) {
	f := newSyncFixture(t)
	f.api.updateErr = &model.APIError{Classification: model.ClassificationRateLimited, Code: 88, Message: "Rate limit exceeded"}

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusDeferred {
		t.Fatalf("status = %s, want deferred", res.Status)
	}
	if len(f.features.disabled) != 0 {
		t.Fatal("rate limiting must never disable the feature")
	}
	if len(f.cache.commits) != 0 {
		t.Fatal("a failed push must not commit the cache entry")
	}
	if f.alerts.authFailures != 0 {
		t.Fatal("rate limiting is not an auth failure alert")
	}
}

func TestStreamUpSuspendedDisablesAllKinds(t *testing.T) {
	f := newSyncFixture(t)
	f.api.updateErr = &model.APIError{Classification: model.ClassificationAccountSuspended, Code: 64, Message: "suspended"}

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusReauth {
		t.Fatalf("status = %s, want reauth_required", res.Status)
	}
	if len(f.features.disabled) != len(model.AllAssetKinds()) {
		t.Fatalf("suspended account should disable all kinds, disabled %v", f.features.disabled)
	}
	if f.alerts.authFailures != 1 {
		t.Fatalf("auth failure alerts = %d, want 1", f.alerts.authFailures)
	}
}

func TestStreamUpNameContentRejected(t *testing.T) {
	f := newSyncFixture(t)
	f.settings.settings.Kind = model.AssetKindName
	f.settings.settings.TemplateProps = json.RawMessage(`{"liveName":"🔴 Live now!"}`)
	f.api.updateErr = &model.APIError{Classification: model.ClassificationContentRejected, Code: 120, Message: "Name is too long"}

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindName)
	if res.Status != model.SyncStatusRejected {
		t.Fatalf("status = %s, want rejected", res.Status)
	}
	if len(f.features.disabled) != 0 {
		t.Fatal("content rejection must not disable the feature")
	}
}

func TestStreamUpNamePushesLiveName(t *testing.T) {
	f := newSyncFixture(t)
	f.settings.settings.Kind = model.AssetKindName
	f.settings.settings.TemplateProps = json.RawMessage(`{"liveName":"🔴 Live now!"}`)

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindName)
	if res.Status != model.SyncStatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Detail)
	}
	if len(f.api.pushes) != 1 || f.api.pushes[0].payload != "🔴 Live now!" {
		t.Fatalf("expected the live name to be pushed, got %+v", f.api.pushes)
	}
	if f.renderer.calls != 0 {
		t.Fatal("names are never rendered")
	}
}

func TestOverlappingTriggersAreRejected(t *testing.T) {
	f := newSyncFixture(t)
	leases := lease.NewManager(time.Minute)
	f.svc = NewSyncService(
		f.settings, f.cache, f.creds, f.api, f.blobs, f.renderer,
		f.features, f.alerts, leases, f.buckets, 2, zerolog.Nop(),
	)

	// Simulate an in-flight sync holding the lease.
	if _, ok := leases.Acquire("user1/banner"); !ok {
		t.Fatal("setup: could not acquire lease")
	}

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusBusy {
		t.Fatalf("status = %s, want busy", res.Status)
	}
	if len(f.api.pushes) != 0 {
		t.Fatal("a busy trigger must not push")
	}

	// A different asset kind for the same user is independent.
	res = f.svc.StreamDown(context.Background(), "user1", model.AssetKindProfileImage)
	if res.Status == model.SyncStatusBusy {
		t.Fatal("other asset kinds must not be blocked")
	}
}

// Stream-up captures the current remote asset so stream-down can restore
// it, including the "empty" sentinel for users with no asset.
func TestStreamUpCapturesOriginal(t *testing.T) {
	f := newSyncFixture(t)
	f.api.currentAsset = model.EmptyAsset

	res := f.svc.StreamUp(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusOK {
		t.Fatalf("status = %s (%s), want ok", res.Status, res.Detail)
	}
	got := f.blobs.objects[blobKey(f.buckets.Original(model.AssetKindBanner), "user1")]
	if got != model.EmptyAsset {
		t.Fatalf("original capture = %q, want the empty sentinel", got)
	}

	// And stream-down pushes the captured sentinel back.
	f.api.pushes = nil
	res = f.svc.StreamDown(context.Background(), "user1", model.AssetKindBanner)
	if res.Status != model.SyncStatusOK {
		t.Fatalf("stream-down status = %s (%s), want ok", res.Status, res.Detail)
	}
	if len(f.api.pushes) != 1 || f.api.pushes[0].payload != model.EmptyAsset {
		t.Fatalf("expected the empty sentinel to round-trip, got %+v", f.api.pushes)
	}
}
