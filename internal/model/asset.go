package model

import (
	"encoding/json"
	"time"
)

// AssetKind identifies which piece of remote profile data is synchronized.
type AssetKind string

const (
	AssetKindBanner       AssetKind = "banner"
	AssetKindProfileImage AssetKind = "profileImage"
	AssetKindName         AssetKind = "name"
)

// EmptyAsset is the sentinel payload stored when the user had no
// pre-existing asset. Pushing it clears the remote asset; fetching an
// absent asset returns it. It is a valid payload, not an error.
const EmptyAsset = "empty"

// AllAssetKinds returns every supported asset kind.
func AllAssetKinds() []AssetKind {
	return []AssetKind{AssetKindBanner, AssetKindProfileImage, AssetKindName}
}

// IsValid reports whether k is a supported asset kind.
func (k AssetKind) IsValid() bool {
	switch k {
	case AssetKindBanner, AssetKindProfileImage, AssetKindName:
		return true
	}
	return false
}

// AssetSettings is a user's configuration for one synchronized asset kind.
type AssetSettings struct {
	UserID        string          `db:"user_id" json:"user_id"`
	Kind          AssetKind       `db:"kind" json:"kind"`
	Enabled       bool            `db:"enabled" json:"enabled"`
	TemplateID    string          `db:"template_id" json:"template_id"`
	TemplateProps json.RawMessage `db:"template_props" json:"template_props"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Props unmarshals the template property bag. A missing or empty bag
// yields an empty map.
func (s *AssetSettings) Props() map[string]interface{} {
	props := map[string]interface{}{}
	if len(s.TemplateProps) > 0 {
		_ = json.Unmarshal(s.TemplateProps, &props)
	}
	return props
}

// RenderCache records when a user's asset was last rendered and where the
// cached artifact lives in blob storage. The entry is stale once the
// user's settings have been updated after last_rendered.
type RenderCache struct {
	UserID       string    `db:"user_id" json:"user_id"`
	Kind         AssetKind `db:"kind" json:"kind"`
	BlobKey      string    `db:"blob_key" json:"blob_key"`
	LastRendered time.Time `db:"last_rendered" json:"last_rendered"`
}
