// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"sync"
	"time"

	"github.com/mkarpushin/tasksync/internal/store"
	"github.com/mkarpushin/tasksync/models"
)

// fakeLog is an in-memory store.OperationLog. A real SQLite log in these
// tests would blur what is being verified; the fake also records transitions
// so assertions can check bookkeeping order.
type fakeLog struct {
	mu sync.Mutex

	queued  []models.Operation
	entries []logEntry

	cache    models.StateCache
	hasCache bool

	clock     models.VectorClock
	protected []string

	lockOwner string

	flushCalls int
	clearCalls int
	rejectedID []string
	syncedID   []string

	errs map[string]error // method name -> injected error
}

type logEntry struct {
	op     models.Operation
	status store.OpStatus
}

func newFakeLog() *fakeLog {
	return &fakeLog{clock: models.VectorClock{}, errs: map[string]error{}}
}

func (f *fakeLog) failOn(method string, err error) { f.errs[method] = err }

func (f *fakeLog) QueueLocal(op models.Operation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, op)
}

func (f *fakeLog) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCalls++
	if err := f.errs["Flush"]; err != nil {
		return err
	}
	for _, op := range f.queued {
		f.entries = append(f.entries, logEntry{op, store.OpStatusPending})
	}
	f.queued = nil
	return nil
}

func (f *fakeLog) Append(_ context.Context, status store.OpStatus, ops ...models.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Append"]; err != nil {
		return err
	}
	for _, op := range ops {
		f.entries = append(f.entries, logEntry{op, status})
	}
	return nil
}

func (f *fakeLog) PendingOps(context.Context) ([]models.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["PendingOps"]; err != nil {
		return nil, err
	}
	var out []models.Operation
	for _, e := range f.entries {
		if e.status == store.OpStatusPending {
			out = append(out, e.op)
		}
	}
	return out, nil
}

func (f *fakeLog) CountOps(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries)), nil
}

func (f *fakeLog) LastOpForEntity(_ context.Context, entityType, entityID string) (models.Operation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["LastOpForEntity"]; err != nil {
		return models.Operation{}, false, err
	}
	for i := len(f.entries) - 1; i >= 0; i-- {
		op := f.entries[i].op
		if op.EntityType == entityType && op.EntityID == entityID {
			return op, true, nil
		}
	}
	return models.Operation{}, false, nil
}

func (f *fakeLog) LastFullStateImport(context.Context) (models.Operation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].status != store.OpStatusRejected && f.entries[i].op.IsFullState() {
			return f.entries[i].op, true, nil
		}
	}
	return models.Operation{}, false, nil
}

func (f *fakeLog) MarkSynced(_ context.Context, opIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["MarkSynced"]; err != nil {
		return err
	}
	f.syncedID = append(f.syncedID, opIDs...)
	f.setStatus(opIDs, store.OpStatusSynced)
	return nil
}

func (f *fakeLog) MarkRejected(_ context.Context, opIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["MarkRejected"]; err != nil {
		return err
	}
	f.rejectedID = append(f.rejectedID, opIDs...)
	f.setStatus(opIDs, store.OpStatusRejected)
	return nil
}

func (f *fakeLog) setStatus(opIDs []string, status store.OpStatus) {
	ids := make(map[string]struct{}, len(opIDs))
	for _, id := range opIDs {
		ids[id] = struct{}{}
	}
	for i := range f.entries {
		if _, ok := ids[f.entries[i].op.ID]; ok {
			f.entries[i].status = status
		}
	}
}

func (f *fakeLog) ClearPendingOps(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	var kept []logEntry
	for _, e := range f.entries {
		if e.status != store.OpStatusPending {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

func (f *fakeLog) StateCache(context.Context) (models.StateCache, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["StateCache"]; err != nil {
		return models.StateCache{}, false, err
	}
	return f.cache, f.hasCache, nil
}

func (f *fakeLog) SaveStateCache(_ context.Context, cache models.StateCache) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["SaveStateCache"]; err != nil {
		return err
	}
	f.cache = cache
	f.hasCache = true
	return nil
}

func (f *fakeLog) VectorClock(context.Context) (models.VectorClock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["VectorClock"]; err != nil {
		return nil, err
	}
	return f.clock.Clone(), nil
}

func (f *fakeLog) SaveVectorClock(_ context.Context, clock models.VectorClock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["SaveVectorClock"]; err != nil {
		return err
	}
	f.clock = clock.Clone()
	return nil
}

func (f *fakeLog) ProtectedClientIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.protected...), nil
}

func (f *fakeLog) AddProtectedClientID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.protected {
		if p == id {
			return nil
		}
	}
	f.protected = append(f.protected, id)
	return nil
}

func (f *fakeLog) AcquireSyncLock(_ context.Context, owner string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockOwner != "" && f.lockOwner != owner {
		return false, nil
	}
	f.lockOwner = owner
	return true, nil
}

func (f *fakeLog) ReleaseSyncLock(_ context.Context, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockOwner == owner {
		f.lockOwner = ""
	}
	return nil
}

// statuses returns op ID -> current status for assertions.
func (f *fakeLog) statuses() map[string]store.OpStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]store.OpStatus, len(f.entries))
	for _, e := range f.entries {
		out[e.op.ID] = e.status
	}
	return out
}
