// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mkarpushin/tasksync/internal/adapter"
	"github.com/mkarpushin/tasksync/internal/config"
	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/store"
	"github.com/mkarpushin/tasksync/models"
)

// Engine bundles the sync services behind one wiring point. Construct it once
// per client process with [NewEngine].
type Engine struct {
	Migrator *SchemaMigrator
	Resolver *ConflictResolver
	Download *DownloadOrchestrator
	Upload   *UploadOrchestrator
	Sync     *SyncOrchestrator
	Restore  *RestoreService

	log      store.OperationLog
	clientID string
	logger   *logger.Logger
}

// NewEngine wires the full sync service graph from its external dependencies.
func NewEngine(
	log store.OperationLog,
	transport adapter.Transport,
	decisions DecisionHandler,
	keys EntityKeyExtractor,
	clientID string,
	cfg config.ClientSync,
	lg *logger.Logger,
) *Engine {
	migrator := NewSchemaMigrator(lg)
	resolver := NewConflictResolver(log, clientID, lg)
	rejected := NewRejectedOpsHandler(log, lg)
	download := NewDownloadOrchestrator(transport, log, migrator, resolver, decisions, keys, clientID, cfg.DownloadPageLimit, lg)
	upload := NewUploadOrchestrator(transport, log, migrator, resolver, rejected, clientID, lg)
	syncer := NewSyncOrchestrator(download, upload, lg)
	restore := NewRestoreService(transport, log, cfg.RestoreAttempts, cfg.RestoreBackoffBase, lg)

	return &Engine{
		Migrator: migrator,
		Resolver: resolver,
		Download: download,
		Upload:   upload,
		Sync:     syncer,
		Restore:  restore,
		log:      log,
		clientID: clientID,
		logger:   lg,
	}
}

// RecordLocal authors a local operation: the authoritative clock advances by
// one for this client, and the operation joins the in-memory queue. It
// becomes durable (and uploadable) on the next flush, so a burst of edits
// costs one transaction.
func (e *Engine) RecordLocal(ctx context.Context, actionType string, opType models.OpType, entityType, entityID string, payload json.RawMessage) (models.Operation, error) {
	authoritative, err := e.log.VectorClock(ctx)
	if err != nil {
		return models.Operation{}, fmt.Errorf("load authoritative clock: %w", err)
	}

	clock := authoritative.Increment(e.clientID)
	if err = e.log.SaveVectorClock(ctx, clock); err != nil {
		return models.Operation{}, fmt.Errorf("advance authoritative clock: %w", err)
	}

	op := models.Operation{
		ID:            e.Resolver.newOpID(),
		ClientID:      e.clientID,
		ActionType:    actionType,
		OpType:        opType,
		EntityType:    entityType,
		EntityID:      entityID,
		Payload:       payload,
		VectorClock:   clock,
		Timestamp:     e.Resolver.now().UnixMilli(),
		SchemaVersion: CurrentSchemaVersion,
	}
	e.log.QueueLocal(op)

	return op, nil
}

// RestoreTo rolls back to the given remote sequence under the sync
// orchestrator's exclusive section, so no cycle interleaves with the rebuild.
func (e *Engine) RestoreTo(ctx context.Context, serverSeq int64) error {
	return e.Sync.RunExclusive(ctx, func(ctx context.Context) error {
		return e.Restore.Restore(ctx, serverSeq)
	})
}
