// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"time"

	"github.com/mkarpushin/tasksync/models"
)

// OpStatus is the local lifecycle state of a logged operation.
type OpStatus string

const (
	// OpStatusPending marks a locally authored operation not yet accepted by
	// the remote store.
	OpStatusPending OpStatus = "pending"
	// OpStatusSynced marks a locally authored operation the remote accepted.
	OpStatusSynced OpStatus = "synced"
	// OpStatusRejected marks a terminally refused operation. Rejected
	// operations are never re-uploaded as-is.
	OpStatusRejected OpStatus = "rejected"
	// OpStatusApplied marks a remote operation folded into local state.
	OpStatusApplied OpStatus = "applied"
)

// OperationLog is the append-only operation store plus the mutable sync
// metadata: state-cache snapshot, authoritative vector clock, remote cursor
// protection set, and the cross-process sync lock.
//
// Operations are immutable once appended; status transitions are the only
// permitted updates. Locally authored writes go through QueueLocal and become
// durable on Flush, so a burst of UI edits costs one transaction.
type OperationLog interface {
	// QueueLocal buffers a locally authored operation in memory. It becomes
	// visible to PendingOps only after Flush.
	QueueLocal(op models.Operation)

	// Flush durably persists all queued local operations as pending, in queue
	// order, inside a single transaction. A no-op when the queue is empty.
	Flush(ctx context.Context) error

	// Append durably stores operations with the given status. Used for
	// remote-received operations (OpStatusApplied) and for compensating
	// local-win operations (OpStatusPending).
	Append(ctx context.Context, status OpStatus, ops ...models.Operation) error

	// PendingOps returns all durably stored pending operations in append
	// order.
	PendingOps(ctx context.Context) ([]models.Operation, error)

	// CountOps returns the total number of durably stored operations of any
	// status. Used with the state cache to detect a wholly fresh client.
	CountOps(ctx context.Context) (int64, error)

	// LastOpForEntity returns the most recently appended operation touching
	// the given entity, or ok=false when the entity is unknown locally.
	LastOpForEntity(ctx context.Context, entityType, entityID string) (op models.Operation, ok bool, err error)

	// LastFullStateImport returns the most recent SyncImport/BackupImport
	// operation in the log, or ok=false when none exists.
	LastFullStateImport(ctx context.Context) (op models.Operation, ok bool, err error)

	// MarkSynced transitions the given pending operations to synced.
	MarkSynced(ctx context.Context, opIDs []string) error

	// MarkRejected transitions the given operations to rejected. Terminal.
	MarkRejected(ctx context.Context, opIDs []string) error

	// ClearPendingOps deletes every pending operation. Used when a
	// whole-state conflict is resolved with UseRemote.
	ClearPendingOps(ctx context.Context) error

	// StateCache returns the materialized snapshot, ok=false when the client
	// has never materialized state.
	StateCache(ctx context.Context) (cache models.StateCache, ok bool, err error)

	// SaveStateCache replaces the materialized snapshot.
	SaveStateCache(ctx context.Context, cache models.StateCache) error

	// VectorClock returns the current authoritative clock. A client that has
	// never synced gets an empty, non-nil clock.
	VectorClock(ctx context.Context) (models.VectorClock, error)

	// SaveVectorClock replaces the authoritative clock.
	SaveVectorClock(ctx context.Context, clock models.VectorClock) error

	// ProtectedClientIDs returns the client IDs that must never be pruned
	// from the vector clock (the local client, the last full-state importer).
	ProtectedClientIDs(ctx context.Context) ([]string, error)

	// AddProtectedClientID adds id to the protection set. Idempotent.
	AddProtectedClientID(ctx context.Context, id string) error

	// AcquireSyncLock takes the owner-tagged, timestamped sync lock if it is
	// free or expired. Returns false without error when another live owner
	// holds it. Needed when multiple processes share one local database.
	AcquireSyncLock(ctx context.Context, owner string, ttl time.Duration) (bool, error)

	// ReleaseSyncLock frees the lock if owner holds it. Releasing a lock held
	// by someone else is a no-op.
	ReleaseSyncLock(ctx context.Context, owner string) error
}
