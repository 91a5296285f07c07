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

// DownloadOutcome summarizes one download pass for the sync orchestrator.
type DownloadOutcome struct {
	// MigrationHandled means a server-migration gap was detected and the
	// remote was reseeded from local state; the caller must upload next.
	MigrationHandled bool

	// ForcedLocalState means a whole-state conflict was resolved with
	// UseLocal and the local state now overrides remote history.
	ForcedLocalState bool

	// Cancelled means a conflict decision aborted the cycle with no state
	// change.
	Cancelled bool

	// Applied counts remote operations folded into the local log.
	Applied int

	// LocalWinOpsCreated counts compensating operations queued by LWW
	// rounds the local side won.
	LocalWinOpsCreated int

	// DroppedByMigration counts remote operations outside the schema
	// migration window.
	DroppedByMigration int
}

// DownloadOrchestrator pulls remote operations since the persisted cursor,
// detects snapshot and server-migration responses, and drives the conflict
// resolver over incremental history.
type DownloadOrchestrator struct {
	transport adapter.Transport
	log       store.OperationLog
	migrator  *SchemaMigrator
	resolver  *ConflictResolver
	decisions DecisionHandler
	keys      EntityKeyExtractor

	clientID  string
	pageLimit int
	logger    *logger.Logger
}

// NewDownloadOrchestrator wires a download orchestrator. pageLimit of zero
// defers page sizing to the server.
func NewDownloadOrchestrator(
	transport adapter.Transport,
	log store.OperationLog,
	migrator *SchemaMigrator,
	resolver *ConflictResolver,
	decisions DecisionHandler,
	keys EntityKeyExtractor,
	clientID string,
	pageLimit int,
	lg *logger.Logger,
) *DownloadOrchestrator {
	return &DownloadOrchestrator{
		transport: transport,
		log:       log,
		migrator:  migrator,
		resolver:  resolver,
		decisions: decisions,
		keys:      keys,
		clientID:  clientID,
		pageLimit: pageLimit,
		logger:    lg,
	}
}

// Download implements [Downloader]. It resumes from the persisted remote
// cursor.
func (d *DownloadOrchestrator) Download(ctx context.Context) (DownloadOutcome, error) {
	return d.download(ctx, false, false)
}

// Redownload implements [Downloader]. With fromZero it discards the cursor
// and replays remote history from the beginning, which rebuilds vector-clock
// knowledge after concurrent-modification rejections. Replays never re-prompt
// a fresh client: the cycle that triggered them already had its decision.
func (d *DownloadOrchestrator) Redownload(ctx context.Context, fromZero bool) (DownloadOutcome, error) {
	return d.download(ctx, fromZero, true)
}

func (d *DownloadOrchestrator) download(ctx context.Context, fromZero, decided bool) (DownloadOutcome, error) {
	var outcome DownloadOutcome

	var sinceSeq int64
	if !fromZero {
		var err error
		sinceSeq, err = d.transport.GetLastServerSeq(ctx)
		if err != nil {
			return outcome, fmt.Errorf("read remote cursor: %w", err)
		}
	}

	first, err := d.transport.DownloadOps(ctx, sinceSeq, d.clientID, d.pageLimit)
	if err != nil {
		return outcome, fmt.Errorf("download since %d: %w", sinceSeq, err)
	}

	if first.GapDetected {
		if err = d.handleServerMigration(ctx, first); err != nil {
			return outcome, err
		}
		outcome.MigrationHandled = true
		return outcome, nil
	}

	if len(first.SnapshotState) > 0 {
		done, err := d.handleSnapshot(ctx, first, &outcome)
		if err != nil || done {
			return outcome, err
		}
	}

	ops := first.Ops
	cursor := first.LatestSeq
	for page := first; page.HasMore; {
		page, err = d.transport.DownloadOps(ctx, cursor, d.clientID, d.pageLimit)
		if err != nil {
			return outcome, fmt.Errorf("download page since %d: %w", cursor, err)
		}
		ops = append(ops, page.Ops...)
		cursor = page.LatestSeq
	}

	migrated, dropped := d.migrator.MigrateOperations(ops)
	outcome.DroppedByMigration = dropped

	survivors, imported, filtered, err := d.filterSupersededByImport(ctx, migrated)
	if err != nil {
		return outcome, err
	}
	if filtered && len(survivors) == 0 && len(migrated) > 0 {
		return d.escalateSyncImportConflict(ctx, imported, len(migrated), outcome)
	}

	// A wholly fresh client adopting remote history for the first time
	// confirms before anything is applied, snapshot or not. After a snapshot
	// was adopted above the client is no longer fresh, so this does not
	// prompt twice.
	if !decided && sinceSeq == 0 && len(survivors) > 0 {
		fresh, err := d.resolver.IsFresh(ctx)
		if err != nil {
			return outcome, err
		}
		if fresh {
			confirmed, err := d.decisions.ConfirmFreshDownload(ctx, len(survivors))
			if err != nil {
				return outcome, fmt.Errorf("confirm fresh download: %w", err)
			}
			if !confirmed {
				outcome.Cancelled = true
				return outcome, nil
			}
		}
	}

	for _, op := range survivors {
		res, err := d.resolver.ResolveRemoteOp(ctx, op)
		if err != nil {
			return outcome, err
		}
		switch res.Kind {
		case ResolutionApplied, ResolutionRemoteWin:
			outcome.Applied++
		case ResolutionLocalWin:
			outcome.LocalWinOpsCreated++
		}
	}

	// The cursor moves only after the operations above are durably stored:
	// a crash mid-sync must cause re-download, never silent loss.
	if cursor > sinceSeq {
		if err = d.transport.SetLastServerSeq(ctx, cursor); err != nil {
			return outcome, fmt.Errorf("persist remote cursor: %w", err)
		}
	}

	return outcome, nil
}

// handleServerMigration reseeds an empty, migrated remote from local state
// and adopts the remote's reported sequence as the new cursor.
func (d *DownloadOrchestrator) handleServerMigration(ctx context.Context, resp models.DownloadResponse) error {
	d.logger.Warn().Msg("server migration gap detected, reseeding remote from local state")

	cache, ok, err := d.log.StateCache(ctx)
	if err != nil {
		return fmt.Errorf("load state cache for reseed: %w", err)
	}
	if ok {
		cache = d.migrator.MigrateStateCache(cache)
		snap := models.SnapshotUpload{
			OpID:          d.resolver.newOpID(),
			ClientID:      d.clientID,
			Reason:        "server-migration-reseed",
			State:         cache.State,
			VectorClock:   cache.VectorClock,
			SchemaVersion: cache.SchemaVersion,
		}
		if err = d.transport.UploadSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("reseed remote after migration: %w", err)
		}
	}

	if err = d.transport.SetLastServerSeq(ctx, resp.LatestSeq); err != nil {
		return fmt.Errorf("persist cursor after migration: %w", err)
	}
	return nil
}

// handleSnapshot processes a full-state download response. It returns
// done=true when the cycle should stop here (conflict cancelled, or local
// state force-uploaded); otherwise the caller continues with the incremental
// operations that accompany the snapshot.
func (d *DownloadOrchestrator) handleSnapshot(ctx context.Context, resp models.DownloadResponse, outcome *DownloadOutcome) (done bool, err error) {
	atRisk, err := d.opsAtRiskFromSnapshot(ctx, resp)
	if err != nil {
		return false, err
	}

	if len(atRisk) > 0 {
		conflict := models.WholeStateConflict{
			UnsyncedCount:     len(atRisk),
			IncomingOpCount:   len(resp.Ops) + 1,
			RemoteSnapshot:    resp.SnapshotState,
			RemoteVectorClock: resp.SnapshotVectorClock,
		}
		decision, err := d.decisions.ResolveConflict(ctx, conflict)
		if err != nil {
			return false, fmt.Errorf("resolve whole-state conflict: %w", err)
		}

		switch decision {
		case models.DecisionUseLocal:
			if err = d.forceUploadLocalState(ctx, resp.LatestSeq); err != nil {
				return false, err
			}
			outcome.ForcedLocalState = true
			return true, nil

		case models.DecisionUseRemote:
			if err = d.adoptRemoteSnapshot(ctx, resp, true); err != nil {
				return false, err
			}
			return false, nil

		default:
			outcome.Cancelled = true
			return true, nil
		}
	}

	fresh, err := d.resolver.IsFresh(ctx)
	if err != nil {
		return false, err
	}
	if fresh {
		confirmed, err := d.decisions.ConfirmFreshDownload(ctx, len(resp.Ops)+1)
		if err != nil {
			return false, fmt.Errorf("confirm fresh download: %w", err)
		}
		if !confirmed {
			outcome.Cancelled = true
			return true, nil
		}
	}

	return false, d.adoptRemoteSnapshot(ctx, resp, false)
}

// opsAtRiskFromSnapshot returns the meaningful unsynced local operations the
// snapshot would silently destroy: entities absent from the snapshot's key
// set, plus any pending full-state operation.
func (d *DownloadOrchestrator) opsAtRiskFromSnapshot(ctx context.Context, resp models.DownloadResponse) ([]models.Operation, error) {
	meaningful, err := d.resolver.MeaningfulUnsyncedOps(ctx)
	if err != nil {
		return nil, err
	}
	if len(meaningful) == 0 {
		return nil, nil
	}

	keys, err := d.keys.ExtractEntityKeys(resp.SnapshotState)
	if err != nil {
		return nil, fmt.Errorf("extract snapshot entity keys: %w", err)
	}
	known := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		known[k] = struct{}{}
	}

	var atRisk []models.Operation
	for _, op := range meaningful {
		if op.IsFullState() {
			atRisk = append(atRisk, op)
			continue
		}
		if _, ok := known[op.EntityType+":"+op.EntityID]; !ok {
			atRisk = append(atRisk, op)
		}
	}
	return atRisk, nil
}

// adoptRemoteSnapshot hydrates local state directly from the snapshot without
// fabricating a full-state operation for it, so hydration never re-triggers
// clean-slate filtering of the remote history that follows it.
func (d *DownloadOrchestrator) adoptRemoteSnapshot(ctx context.Context, resp models.DownloadResponse, discardLocal bool) error {
	snapClock := resp.SnapshotVectorClock.Clone()

	if discardLocal {
		if err := d.log.ClearPendingOps(ctx); err != nil {
			return fmt.Errorf("clear local unsynced operations: %w", err)
		}
		if err := d.log.SaveVectorClock(ctx, snapClock); err != nil {
			return fmt.Errorf("reset vector clock to snapshot: %w", err)
		}
	} else if err := d.resolver.MergeIntoAuthoritative(ctx, snapClock); err != nil {
		return err
	}

	cache := models.StateCache{
		State:         resp.SnapshotState,
		VectorClock:   snapClock,
		SchemaVersion: CurrentSchemaVersion,
	}
	if err := d.log.SaveStateCache(ctx, cache); err != nil {
		return fmt.Errorf("hydrate state cache from snapshot: %w", err)
	}

	d.logger.Info().Int("accompanying_ops", len(resp.Ops)).Msg("hydrated state from remote snapshot")
	return nil
}

// forceUploadLocalState resolves a whole-state conflict in favor of the local
// side: the local snapshot overrides remote history.
func (d *DownloadOrchestrator) forceUploadLocalState(ctx context.Context, remoteSeq int64) error {
	cache, ok, err := d.log.StateCache(ctx)
	if err != nil {
		return fmt.Errorf("load state cache for force upload: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: no local state to force-upload", ErrUploadBlockedFresh)
	}

	cache = d.migrator.MigrateStateCache(cache)
	snap := models.SnapshotUpload{
		OpID:          d.resolver.newOpID(),
		ClientID:      d.clientID,
		Reason:        "whole-state-conflict-use-local",
		State:         cache.State,
		VectorClock:   cache.VectorClock,
		SchemaVersion: cache.SchemaVersion,
	}
	if err = d.transport.UploadSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("force-upload local state: %w", err)
	}

	if err = d.transport.SetLastServerSeq(ctx, remoteSeq); err != nil {
		return fmt.Errorf("persist cursor after force upload: %w", err)
	}
	return nil
}

// filterSupersededByImport drops remote operations that a local full-state
// import has already superseded. filtered reports whether any filtering
// applied at all; imported is the superseding operation when it did.
func (d *DownloadOrchestrator) filterSupersededByImport(ctx context.Context, ops []models.Operation) (survivors []models.Operation, imported models.Operation, filtered bool, err error) {
	if len(ops) == 0 {
		return ops, models.Operation{}, false, nil
	}

	imported, ok, err := d.log.LastFullStateImport(ctx)
	if err != nil {
		return nil, models.Operation{}, false, fmt.Errorf("load last full-state import: %w", err)
	}
	if !ok {
		return ops, models.Operation{}, false, nil
	}

	survivors = make([]models.Operation, 0, len(ops))
	for _, op := range ops {
		if op.Timestamp < imported.Timestamp {
			filtered = true
			continue
		}
		survivors = append(survivors, op)
	}
	return survivors, imported, filtered, nil
}

// escalateSyncImportConflict handles the case where every downloaded
// operation was filtered because a local full-state import superseded remote
// history. The same three-way decision applies as for snapshot conflicts.
func (d *DownloadOrchestrator) escalateSyncImportConflict(ctx context.Context, imported models.Operation, incoming int, outcome DownloadOutcome) (DownloadOutcome, error) {
	meaningful, err := d.resolver.MeaningfulUnsyncedOps(ctx)
	if err != nil {
		return outcome, err
	}

	conflict := models.WholeStateConflict{
		UnsyncedCount:      len(meaningful),
		IncomingOpCount:    incoming,
		SyncImportFiltered: true,
	}
	decision, err := d.decisions.ResolveConflict(ctx, conflict)
	if err != nil {
		return outcome, fmt.Errorf("resolve sync-import conflict: %w", err)
	}

	switch decision {
	case models.DecisionUseLocal:
		// Keep the local import; the pending full-state operation overrides
		// remote history on the upload that follows.
		return outcome, nil

	case models.DecisionUseRemote:
		// A synced import survives ClearPendingOps, so it is retired
		// explicitly. Otherwise the replay from zero filters the same history
		// again and re-escalates the conflict the user already resolved.
		if err = d.log.MarkRejected(ctx, []string{imported.ID}); err != nil {
			return outcome, fmt.Errorf("retire superseding import: %w", err)
		}
		if err = d.log.ClearPendingOps(ctx); err != nil {
			return outcome, fmt.Errorf("clear local unsynced operations: %w", err)
		}
		if err = d.log.SaveVectorClock(ctx, models.VectorClock{}); err != nil {
			return outcome, fmt.Errorf("reset vector clock: %w", err)
		}
		return d.download(ctx, true, true)

	default:
		outcome.Cancelled = true
		return outcome, nil
	}
}
