// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/store"
	"github.com/mkarpushin/tasksync/models"
)

// ResolutionKind classifies how an incoming remote operation was handled.
type ResolutionKind int

const (
	// ResolutionApplied means the remote operation strictly dominated local
	// knowledge and was applied directly.
	ResolutionApplied ResolutionKind = iota
	// ResolutionStale means the remote operation was causally behind local
	// knowledge and discarded with no state change.
	ResolutionStale
	// ResolutionDuplicate means the operation was already applied; no-op.
	ResolutionDuplicate
	// ResolutionRemoteWin means the clocks were concurrent and the remote
	// side won last-write-wins; its payload was applied.
	ResolutionRemoteWin
	// ResolutionLocalWin means the clocks were concurrent and the local side
	// won; a compensating operation was queued for re-upload.
	ResolutionLocalWin
)

// String returns a log-friendly label.
func (k ResolutionKind) String() string {
	switch k {
	case ResolutionApplied:
		return "applied"
	case ResolutionStale:
		return "stale"
	case ResolutionDuplicate:
		return "duplicate"
	case ResolutionRemoteWin:
		return "remote-win"
	case ResolutionLocalWin:
		return "local-win"
	default:
		return "unknown"
	}
}

// Resolution is the typed outcome of resolving one remote operation. Expected
// recoverable branches are values, never errors: error returns are reserved
// for storage and transport failures.
type Resolution struct {
	Kind ResolutionKind

	// LocalWinOp is the compensating operation created when the local side
	// won an LWW round; nil otherwise. It is already durably queued as
	// pending when Resolve returns.
	LocalWinOp *models.Operation
}

// ConflictResolver classifies each incoming remote operation against the
// entity's last-known local vector clock and performs last-write-wins
// resolution of concurrent edits.
type ConflictResolver struct {
	log      store.OperationLog
	clientID string
	logger   *logger.Logger

	// now and newOpID are injectable for deterministic tests.
	now     func() time.Time
	newOpID func() string
}

// NewConflictResolver constructs a resolver for the given local client
// identity.
func NewConflictResolver(log store.OperationLog, clientID string, lg *logger.Logger) *ConflictResolver {
	return &ConflictResolver{
		log:      log,
		clientID: clientID,
		logger:   lg,
		now:      time.Now,
		newOpID:  newOperationID,
	}
}

// newOperationID returns a lexicographically sortable UUIDv7, falling back to
// a random UUID if the clock source fails.
func newOperationID() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}

// ResolveRemoteOp runs the per-operation conflict state machine for a single
// incoming remote operation. The operation must already be migrated to the
// current schema version.
func (r *ConflictResolver) ResolveRemoteOp(ctx context.Context, remote models.Operation) (Resolution, error) {
	localOp, known, err := r.log.LastOpForEntity(ctx, remote.EntityType, remote.EntityID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load local knowledge for %s:%s: %w", remote.EntityType, remote.EntityID, err)
	}

	if !known {
		// First time this entity is seen locally: nothing to conflict with.
		return r.apply(ctx, remote, ResolutionApplied)
	}

	switch remote.VectorClock.Compare(localOp.VectorClock) {
	case models.ClockLess:
		r.logger.Debug().Str("op_id", remote.ID).Msg("discarding stale remote operation")
		return Resolution{Kind: ResolutionStale}, nil

	case models.ClockEqual:
		return Resolution{Kind: ResolutionDuplicate}, nil

	case models.ClockGreater:
		return r.apply(ctx, remote, ResolutionApplied)

	default: // concurrent: genuine conflict, resolve via LWW
		if remoteWinsLWW(remote, localOp) {
			return r.apply(ctx, remote, ResolutionRemoteWin)
		}
		return r.compensateLocalWin(ctx, remote, localOp)
	}
}

// remoteWinsLWW picks the later timestamp; ties break on lexicographic
// clientID order (greater wins) so every replica picks the same winner.
func remoteWinsLWW(remote, local models.Operation) bool {
	if remote.Timestamp != local.Timestamp {
		return remote.Timestamp > local.Timestamp
	}
	return remote.ClientID > local.ClientID
}

// apply durably records the remote operation and merges its clock into the
// authoritative clock.
func (r *ConflictResolver) apply(ctx context.Context, remote models.Operation, kind ResolutionKind) (Resolution, error) {
	if err := r.log.Append(ctx, store.OpStatusApplied, remote); err != nil {
		return Resolution{}, fmt.Errorf("apply remote operation %s: %w", remote.ID, err)
	}
	if err := r.MergeIntoAuthoritative(ctx, remote.VectorClock); err != nil {
		return Resolution{}, err
	}
	return Resolution{Kind: kind}, nil
}

// compensateLocalWin reconstructs the losing remote round as a new local-win
// operation: the local payload re-issued under a freshly advanced clock that
// dominates both sides, queued as pending for the next upload.
func (r *ConflictResolver) compensateLocalWin(ctx context.Context, remote, local models.Operation) (Resolution, error) {
	authoritative, err := r.log.VectorClock(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("load authoritative clock: %w", err)
	}

	winOp := models.Operation{
		ID:            r.newOpID(),
		ClientID:      r.clientID,
		ActionType:    local.ActionType,
		OpType:        local.OpType,
		EntityType:    local.EntityType,
		EntityID:      local.EntityID,
		Payload:       local.Payload,
		VectorClock:   authoritative.Merge(remote.VectorClock).Increment(r.clientID),
		Timestamp:     r.now().UnixMilli(),
		SchemaVersion: CurrentSchemaVersion,
		IsEncrypted:   local.IsEncrypted,
	}

	if err = r.log.Append(ctx, store.OpStatusPending, winOp); err != nil {
		return Resolution{}, fmt.Errorf("queue local-win operation: %w", err)
	}
	if err = r.MergeIntoAuthoritative(ctx, winOp.VectorClock); err != nil {
		return Resolution{}, err
	}

	r.logger.Info().
		Str("entity", local.EntityType+":"+local.EntityID).
		Str("lost_remote_op", remote.ID).
		Msg("local side won LWW round, compensating operation queued")

	return Resolution{Kind: ResolutionLocalWin, LocalWinOp: &winOp}, nil
}

// MergeIntoAuthoritative folds clock into the store's authoritative vector
// clock, pruning to the size cap while preserving the protected ID set and
// the local client's own entry.
func (r *ConflictResolver) MergeIntoAuthoritative(ctx context.Context, clock models.VectorClock) error {
	current, err := r.log.VectorClock(ctx)
	if err != nil {
		return fmt.Errorf("load authoritative clock: %w", err)
	}

	protected, err := r.log.ProtectedClientIDs(ctx)
	if err != nil {
		return fmt.Errorf("load protected client ids: %w", err)
	}
	protected = append(protected, r.clientID)

	merged := current.Merge(clock).LimitSize(protected)
	if err = r.log.SaveVectorClock(ctx, merged); err != nil {
		return fmt.Errorf("save authoritative clock: %w", err)
	}
	return nil
}

// MeaningfulUnsyncedOps returns the pending operations whose loss would
// destroy user work (entity creates/updates and full-state operations).
func (r *ConflictResolver) MeaningfulUnsyncedOps(ctx context.Context) ([]models.Operation, error) {
	pending, err := r.log.PendingOps(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending operations: %w", err)
	}

	meaningful := make([]models.Operation, 0, len(pending))
	for _, op := range pending {
		if op.IsMeaningfulUserData() {
			meaningful = append(meaningful, op)
		}
	}
	return meaningful, nil
}

// IsFresh reports whether this client is wholly fresh: no state cache and no
// logged operations. Fresh clients must never upload.
func (r *ConflictResolver) IsFresh(ctx context.Context) (bool, error) {
	_, hasCache, err := r.log.StateCache(ctx)
	if err != nil {
		return false, fmt.Errorf("load state cache: %w", err)
	}
	if hasCache {
		return false, nil
	}

	n, err := r.log.CountOps(ctx)
	if err != nil {
		return false, fmt.Errorf("count operations: %w", err)
	}
	return n == 0, nil
}
