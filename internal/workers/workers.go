package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/service"
)

type syncJob struct {
	syncer Syncer
	logger *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a SyncJob that runs syncer.Sync on a ticker. The job is
// idle until Start is called.
func NewSyncJob(syncer Syncer, lg *logger.Logger) SyncJob {
	return &syncJob{syncer: syncer, logger: lg}
}

// Start implements SyncJob. If interval is zero or negative it defaults to
// 5 minutes. The goroutine exits when ctx is cancelled or Stop is called.
func (j *syncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.runOnce(jobCtx)
			}
		}
	}()
}

// runOnce runs a single cycle. An already-running cycle (or an exclusive
// section, during restore) is expected overlap, not a failure.
func (j *syncJob) runOnce(ctx context.Context) {
	err := j.syncer.Sync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrSyncInProgress):
		j.logger.Debug().Msg("background sync skipped, cycle already in flight")
	default:
		j.logger.Warn().Err(err).Msg("background sync cycle failed")
	}
}

// Stop implements SyncJob.
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

// processLockTTL bounds how long a crashed process keeps other processes out
// of the shared database: a lock older than this is considered abandoned and
// taken over on the next cycle.
const processLockTTL = 10 * time.Minute

type lockedSyncer struct {
	inner  Syncer
	locks  SyncLocker
	owner  string
	logger *logger.Logger
}

// WithProcessLock wraps syncer so every cycle runs under the store's
// cross-process sync lock. A cycle that finds the lock held by another
// process is skipped, not failed.
func WithProcessLock(syncer Syncer, locks SyncLocker, owner string, lg *logger.Logger) Syncer {
	return &lockedSyncer{inner: syncer, locks: locks, owner: owner, logger: lg}
}

// Sync implements Syncer.
func (s *lockedSyncer) Sync(ctx context.Context) error {
	held, err := s.locks.AcquireSyncLock(ctx, s.owner, processLockTTL)
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	if !held {
		s.logger.Info().Str("owner", s.owner).Msg("sync lock held by another process, skipping cycle")
		return nil
	}

	// Release survives ctx cancellation, otherwise a shutdown mid-cycle
	// leaves the lock to expire by TTL.
	defer func() {
		if err := s.locks.ReleaseSyncLock(context.WithoutCancel(ctx), s.owner); err != nil {
			s.logger.Warn().Err(err).Msg("release sync lock")
		}
	}()

	return s.inner.Sync(ctx)
}
