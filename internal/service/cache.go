package service

import (
	"time"

	"app/internal/model"
)

// CacheValid decides whether a previously rendered artifact can be reused.
// Valid iff an entry exists, its artifact was retrievable from blob
// storage, and the render is not older than the user's last settings
// change. Comparing timestamps means a settings write invalidates the
// cache without a separate invalidation channel.
func CacheValid(entry *model.RenderCache, artifact string, settingsUpdatedAt time.Time) bool {
	if entry == nil {
		return false
	}
	if artifact == "" {
		return false
	}
	return !entry.LastRendered.Before(settingsUpdatedAt)
}
