package dto

// StreamTriggerRequest is the body for stream-up and stream-down
// trigger calls. AssetKinds defaults to every kind when omitted.
type StreamTriggerRequest struct {
	UserID     string   `json:"user_id" validate:"required"`
	AssetKinds []string `json:"asset_kinds" validate:"omitempty,dive,oneof=banner profileImage name"`
}

// SyncResultDTO reports the outcome for one asset kind.
type SyncResultDTO struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// StreamTriggerResponse carries one result per requested asset kind. A
// failing kind never suppresses the results of the others.
type StreamTriggerResponse struct {
	UserID  string          `json:"user_id"`
	Results []SyncResultDTO `json:"results"`
}
