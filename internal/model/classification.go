package model

import "fmt"

// FailureClassification is the fixed taxonomy of remote profile API
// failures. Classification happens exactly once, in the adapter, and
// drives recovery policy everywhere else.
type FailureClassification string

const (
	ClassificationRateLimited      FailureClassification = "rate_limited"
	ClassificationInvalidToken     FailureClassification = "invalid_token"
	ClassificationAccountSuspended FailureClassification = "account_suspended"
	ClassificationAccountLocked    FailureClassification = "account_locked"
	ClassificationContentRejected  FailureClassification = "content_rejected"
	ClassificationUnknown          FailureClassification = "unknown"
)

// Retryable reports whether a later trigger may re-attempt the call.
// There is no inline retry loop for these; the next trigger is the
// retry boundary.
func (c FailureClassification) Retryable() bool {
	return c == ClassificationRateLimited || c == ClassificationUnknown
}

// PermanentAuth reports whether the failure must disable the affected
// feature instead of ever being retried.
func (c FailureClassification) PermanentAuth() bool {
	switch c {
	case ClassificationInvalidToken, ClassificationAccountSuspended, ClassificationAccountLocked:
		return true
	}
	return false
}

// APIError is a classified remote profile API failure.
type APIError struct {
	Classification FailureClassification
	Code           int    // provider error code, 0 when unavailable
	Message        string // provider error message, for logging only
}

func (e *APIError) Error() string {
	return fmt.Sprintf("profile api error (%s, code %d): %s", e.Classification, e.Code, e.Message)
}
