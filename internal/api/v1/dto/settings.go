package dto

import (
	"encoding/json"
	"time"
)

// SettingsUpdateRequest replaces the template configuration for one
// asset kind. Updating settings invalidates the render cache.
type SettingsUpdateRequest struct {
	TemplateID    string                 `json:"template_id" validate:"required"`
	TemplateProps map[string]interface{} `json:"template_props"`
}

type SettingsResponseDTO struct {
	UserID        string          `json:"user_id"`
	Kind          string          `json:"kind"`
	Enabled       bool            `json:"enabled"`
	TemplateID    string          `json:"template_id"`
	TemplateProps json.RawMessage `json:"template_props"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
