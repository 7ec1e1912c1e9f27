package model

// SyncStatus is the tagged outcome of one sync attempt. Control flow
// keys off the status; Detail is only for humans and logs.
type SyncStatus string

const (
	SyncStatusOK       SyncStatus = "ok"
	SyncStatusNoop     SyncStatus = "noop"            // missing record, nothing to do
	SyncStatusDeferred SyncStatus = "deferred"        // transient failure, next trigger retries
	SyncStatusReauth   SyncStatus = "reauth_required" // permanent auth failure, feature disabled
	SyncStatusRejected SyncStatus = "rejected"        // content rejected by the provider
	SyncStatusFailed   SyncStatus = "failed"          // corrupt asset or push failure
	SyncStatusBusy     SyncStatus = "busy"            // a sync for the same user+kind is in flight
)

// SyncResult is returned for every (user, asset kind) trigger. Failures
// are values, never panics, so one user's failure cannot abort a batch.
type SyncResult struct {
	Kind   AssetKind  `json:"kind"`
	Status SyncStatus `json:"status"`
	Detail string     `json:"detail"`
}

// Synced reports whether the trigger left the remote profile updated.
func (r SyncResult) Synced() bool {
	return r.Status == SyncStatusOK
}
