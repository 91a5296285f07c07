// Package workers provides the background jobs of the client process,
// currently the periodic sync job.
package workers

import (
	"context"
	"time"
)

// Syncer is the slice of the sync engine the background job needs.
type Syncer interface {
	Sync(ctx context.Context) error
}

// SyncLocker is the slice of the local store guarding cross-process sync runs.
type SyncLocker interface {
	AcquireSyncLock(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	ReleaseSyncLock(ctx context.Context, owner string) error
}

// SyncJob runs sync cycles on a ticker. The job is idle until Start is
// called.
type SyncJob interface {
	// Start launches the background loop. Stops any previously running loop
	// first.
	Start(ctx context.Context, interval time.Duration)

	// Stop cancels the loop and blocks until it has fully exited. Safe to
	// call when the job is not running.
	Stop()
}
