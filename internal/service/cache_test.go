package service

import (
	"testing"
	"time"

	"app/internal/model"
)

func TestCacheValid(t *testing.T) {
	updatedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := &model.RenderCache{LastRendered: updatedAt.Add(time.Hour)}
	stale := &model.RenderCache{LastRendered: updatedAt.Add(-time.Hour)}
	exact := &model.RenderCache{LastRendered: updatedAt}

	if CacheValid(nil, "artifact", updatedAt) {
		t.Error("missing entry must be a cache miss")
	}
	if CacheValid(fresh, "", updatedAt) {
		t.Error("missing artifact must be a cache miss")
	}
	if CacheValid(stale, "artifact", updatedAt) {
		t.Error("render older than the settings change must be a cache miss")
	}
	if !CacheValid(exact, "artifact", updatedAt) {
		t.Error("lastRendered == updatedAt must be a cache hit")
	}
	if !CacheValid(fresh, "artifact", updatedAt) {
		t.Error("fresh render must be a cache hit")
	}
}

// Validity is monotonic: once valid for a given settings timestamp, an
// entry stays valid until the settings are updated again.
func TestCacheValidMonotonic(t *testing.T) {
	updatedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &model.RenderCache{LastRendered: updatedAt.Add(time.Minute)}

	if !CacheValid(entry, "artifact", updatedAt) {
		t.Fatal("entry should be valid at T")
	}
	// Later evaluations with the same settings timestamp stay valid.
	for i := 1; i <= 48; i++ {
		if !CacheValid(entry, "artifact", updatedAt) {
			t.Fatalf("entry flapped to invalid on evaluation %d", i)
		}
	}
	// A newer settings write invalidates.
	if CacheValid(entry, "artifact", updatedAt.Add(2*time.Minute)) {
		t.Fatal("settings update after the render must invalidate")
	}
}
