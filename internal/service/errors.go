package service

import "errors"

var (
	// ErrSyncInProgress is the handled sentinel returned when a sync cycle is
	// already in flight or a sensitive operation holds the exclusivity flag.
	// Callers treat it as "retry later", not as a failure.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrUploadBlockedFresh is returned when a wholly fresh client (no state
	// cache, no logged operations) attempts to upload. Uploading from empty
	// state could overwrite valid remote data.
	ErrUploadBlockedFresh = errors.New("upload blocked: client has no local state")

	// ErrOpsRejected is returned when the remote terminally refused one or
	// more uploaded operations during the cycle.
	ErrOpsRejected = errors.New("server rejected operations")

	// ErrOpsStillPending is the deliberate non-convergence signal: the LWW
	// retry loop exhausted its attempts with operations still to be pushed.
	ErrOpsStillPending = errors.New("operations still pending after retries")

	// ErrVersionTooOld marks an operation whose schema version is beyond the
	// supported migration window.
	ErrVersionTooOld = errors.New("operation schema version too old to migrate")

	// ErrRestoreFailed wraps the original transport error after all restore
	// attempts are exhausted.
	ErrRestoreFailed = errors.New("restore failed")
)
