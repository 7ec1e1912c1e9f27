package util

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"app/internal/model"
)

// Twitter rejects display names longer than 50 characters.
const maxNameLength = 50

// ValidArtifact checks a downloaded asset payload structurally before it
// may be pushed to the remote profile. The "empty" sentinel is always
// valid: it means the user had no pre-existing asset.
func ValidArtifact(kind model.AssetKind, payload string) bool {
	if payload == model.EmptyAsset {
		return true
	}
	if payload == "" {
		return false
	}
	if kind == model.AssetKindName {
		return utf8.RuneCountInString(payload) <= maxNameLength
	}
	return validBase64Image(payload)
}

// validBase64Image reports whether payload decodes to a non-empty byte
// sequence. Data-URI prefixes are tolerated.
func validBase64Image(payload string) bool {
	if idx := strings.Index(payload, ";base64,"); idx != -1 {
		payload = payload[idx+len(";base64,"):]
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return false
	}
	return len(decoded) > 0
}
