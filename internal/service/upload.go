// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"

	"github.com/mkarpushin/tasksync/internal/adapter"
	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/store"
	"github.com/mkarpushin/tasksync/models"
)

// UploadOutcome summarizes one upload pass for the sync orchestrator.
type UploadOutcome struct {
	// Blocked means the client is wholly fresh and the upload was skipped.
	// Not an error: fresh clients must never push empty state over remote
	// data.
	Blocked bool

	// Attempted and Accepted count operations sent and confirmed.
	Attempted int
	Accepted  int

	// RejectedCount mirrors the server's authoritative rejection count.
	// RecoverableRejections is the subset classified as recoverable via
	// re-download; the difference is terminal.
	RejectedCount         int
	RecoverableRejections int

	// LocalWinOpsCreated counts compensating operations queued while folding
	// piggybacked operations, which feed the next re-upload round.
	LocalWinOpsCreated int

	// RedownloadNeeded means at least one rejection was recoverable and the
	// caller should re-download before retrying. RedownloadFromZero requests
	// a full history replay (a full-state operation was involved).
	RedownloadNeeded   bool
	RedownloadFromZero bool
}

// UploadOrchestrator flushes and pushes pending local operations, folds
// piggybacked operations through conflict resolution, and classifies
// rejections.
type UploadOrchestrator struct {
	transport adapter.Transport
	log       store.OperationLog
	migrator  *SchemaMigrator
	resolver  *ConflictResolver
	rejected  *RejectedOpsHandler

	clientID string
	logger   *logger.Logger
}

// NewUploadOrchestrator wires an upload orchestrator.
func NewUploadOrchestrator(
	transport adapter.Transport,
	log store.OperationLog,
	migrator *SchemaMigrator,
	resolver *ConflictResolver,
	rejected *RejectedOpsHandler,
	clientID string,
	lg *logger.Logger,
) *UploadOrchestrator {
	return &UploadOrchestrator{
		transport: transport,
		log:       log,
		migrator:  migrator,
		resolver:  resolver,
		rejected:  rejected,
		clientID:  clientID,
		logger:    lg,
	}
}

// Upload implements [Uploader]. Queued local operations are flushed to the
// durable log first, so everything authored before this point rides in this
// batch.
func (u *UploadOrchestrator) Upload(ctx context.Context) (UploadOutcome, error) {
	var outcome UploadOutcome

	if err := u.log.Flush(ctx); err != nil {
		return outcome, fmt.Errorf("flush queued operations: %w", err)
	}

	fresh, err := u.resolver.IsFresh(ctx)
	if err != nil {
		return outcome, err
	}
	if fresh {
		u.logger.Info().Msg("upload skipped: client has no local state")
		outcome.Blocked = true
		return outcome, nil
	}

	pending, err := u.log.PendingOps(ctx)
	if err != nil {
		return outcome, fmt.Errorf("load pending operations: %w", err)
	}
	if len(pending) == 0 {
		return outcome, nil
	}

	batch, err := u.migratePending(ctx, pending)
	if err != nil {
		return outcome, err
	}
	if len(batch) == 0 {
		return outcome, nil
	}
	outcome.Attempted = len(batch)

	resp, err := u.transport.UploadOps(ctx, batch, u.clientID)
	if err != nil {
		return outcome, fmt.Errorf("upload %d operations: %w", len(batch), err)
	}

	// Piggybacked operations carry vector-clock knowledge the rejection
	// handling below depends on, so they are folded in first.
	outcome.LocalWinOpsCreated, err = u.applyPiggybacked(ctx, resp.PiggybackedOps)
	if err != nil {
		return outcome, err
	}

	verdict, err := u.rejected.HandleRejections(ctx, resp.RejectedOps)
	if err != nil {
		return outcome, err
	}
	outcome.RedownloadNeeded = verdict.Redownload
	outcome.RedownloadFromZero = verdict.FromZero
	outcome.RecoverableRejections = verdict.Recoverable

	if err = u.confirmAccepted(ctx, batch, resp.Results); err != nil {
		return outcome, err
	}
	for _, res := range resp.Results {
		if res.Accepted {
			outcome.Accepted++
		}
	}

	// The count is authoritative, not the entry list: a response with zero
	// count and no entries is a clean success even if other fields are odd.
	outcome.RejectedCount = resp.RejectedCount

	return outcome, nil
}

// migratePending lifts pending operations to the current schema version.
// Unmigratable pending operations can never be accepted remotely, so they are
// terminally rejected locally instead of clogging every future batch.
func (u *UploadOrchestrator) migratePending(ctx context.Context, pending []models.Operation) ([]models.Operation, error) {
	batch := make([]models.Operation, 0, len(pending))
	var unmigratable []string

	for _, op := range pending {
		migrated, err := u.migrator.MigrateOperation(op)
		if err != nil {
			u.logger.Warn().Err(err).Str("op_id", op.ID).Msg("pending operation cannot be migrated, rejecting locally")
			unmigratable = append(unmigratable, op.ID)
			continue
		}
		batch = append(batch, migrated)
	}

	if len(unmigratable) > 0 {
		if err := u.log.MarkRejected(ctx, unmigratable); err != nil {
			return nil, fmt.Errorf("reject unmigratable operations: %w", err)
		}
	}
	return batch, nil
}

// applyPiggybacked folds operations the server attached to the upload
// response through the same migration and conflict pipeline as downloads.
func (u *UploadOrchestrator) applyPiggybacked(ctx context.Context, ops []models.Operation) (localWins int, err error) {
	if len(ops) == 0 {
		return 0, nil
	}

	migrated, dropped := u.migrator.MigrateOperations(ops)
	if dropped > 0 {
		u.logger.Warn().Int("dropped", dropped).Msg("piggybacked operations outside migration window")
	}

	for _, op := range migrated {
		res, err := u.resolver.ResolveRemoteOp(ctx, op)
		if err != nil {
			return localWins, err
		}
		if res.Kind == ResolutionLocalWin {
			localWins++
		}
	}
	return localWins, nil
}

// confirmAccepted marks accepted operations synced and merges their clocks
// into the authoritative clock.
func (u *UploadOrchestrator) confirmAccepted(ctx context.Context, batch []models.Operation, results []models.OpUploadResult) error {
	accepted := make(map[string]struct{}, len(results))
	for _, res := range results {
		if res.Accepted {
			accepted[res.OpID] = struct{}{}
		}
	}
	if len(accepted) == 0 {
		return nil
	}

	ids := make([]string, 0, len(accepted))
	merged := models.VectorClock{}
	for _, op := range batch {
		if _, ok := accepted[op.ID]; ok {
			ids = append(ids, op.ID)
			merged = merged.Merge(op.VectorClock)
		}
	}

	if err := u.log.MarkSynced(ctx, ids); err != nil {
		return fmt.Errorf("mark %d operations synced: %w", len(ids), err)
	}
	return u.resolver.MergeIntoAuthoritative(ctx, merged)
}
