// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/service"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) Sync(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestSyncJob_RunsOnTicker(t *testing.T) {
	syncer := &countingSyncer{}
	job := NewSyncJob(syncer, logger.Nop())

	job.Start(context.Background(), 5*time.Millisecond)
	defer job.Stop()

	require.Eventually(t, func() bool { return syncer.calls.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestSyncJob_StopBlocksUntilExit(t *testing.T) {
	syncer := &countingSyncer{}
	job := NewSyncJob(syncer, logger.Nop())

	job.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return syncer.calls.Load() >= 1 }, time.Second, time.Millisecond)

	job.Stop()
	after := syncer.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, syncer.calls.Load())
}

func TestSyncJob_StopWithoutStart(t *testing.T) {
	job := NewSyncJob(&countingSyncer{}, logger.Nop())
	job.Stop() // no-op, must not panic or hang
}

func TestSyncJob_SwallowsInFlightSentinel(t *testing.T) {
	// A cycle already in flight is expected overlap; the job keeps ticking.
	syncer := &countingSyncer{err: service.ErrSyncInProgress}
	job := NewSyncJob(syncer, logger.Nop())

	job.Start(context.Background(), 5*time.Millisecond)
	defer job.Stop()

	require.Eventually(t, func() bool { return syncer.calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestSyncJob_RestartReplacesLoop(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("fails every time")}
	job := NewSyncJob(syncer, logger.Nop())

	job.Start(context.Background(), 5*time.Millisecond)
	job.Start(context.Background(), 5*time.Millisecond) // stops the first loop
	defer job.Stop()

	require.Eventually(t, func() bool { return syncer.calls.Load() >= 1 }, time.Second, time.Millisecond)
}

// ── cross-process lock ───────────────────────────────────────────────────────

type fakeLocker struct {
	held       bool
	acquireErr error

	acquires atomic.Int32
	releases atomic.Int32
}

func (f *fakeLocker) AcquireSyncLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	f.acquires.Add(1)
	return !f.held, f.acquireErr
}

func (f *fakeLocker) ReleaseSyncLock(context.Context, string) error {
	f.releases.Add(1)
	return nil
}

func TestWithProcessLock_RunsAndReleases(t *testing.T) {
	syncer := &countingSyncer{}
	locks := &fakeLocker{}

	err := WithProcessLock(syncer, locks, "proc-a", logger.Nop()).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), syncer.calls.Load())
	assert.Equal(t, int32(1), locks.releases.Load())
}

func TestWithProcessLock_HeldElsewhere_SkipsCycle(t *testing.T) {
	syncer := &countingSyncer{}
	locks := &fakeLocker{held: true}

	err := WithProcessLock(syncer, locks, "proc-a", logger.Nop()).Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, syncer.calls.Load())
	assert.Zero(t, locks.releases.Load())
}

func TestWithProcessLock_ReleasesOnSyncError(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("cycle failed")}
	locks := &fakeLocker{}

	err := WithProcessLock(syncer, locks, "proc-a", logger.Nop()).Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), locks.releases.Load())
}

func TestWithProcessLock_AcquireError(t *testing.T) {
	syncer := &countingSyncer{}
	locks := &fakeLocker{acquireErr: errors.New("database is locked")}

	err := WithProcessLock(syncer, locks, "proc-a", logger.Nop()).Sync(context.Background())
	require.Error(t, err)
	assert.Zero(t, syncer.calls.Load())
}
