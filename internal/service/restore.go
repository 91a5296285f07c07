// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mkarpushin/tasksync/internal/adapter"
	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/store"
	"github.com/mkarpushin/tasksync/models"
)

// RestoreService rolls local state back to a point in remote history. The
// remote fetch retries transient timeouts with exponential backoff; any other
// failure aborts immediately.
type RestoreService struct {
	transport adapter.Transport
	log       store.OperationLog

	attempts    int
	backoffBase time.Duration
	logger      *logger.Logger

	now         func() time.Time
	newClientID func() string
}

// NewRestoreService wires a restore service. attempts is the total number of
// fetch attempts including the first; backoffBase seeds the exponential
// backoff between them.
func NewRestoreService(transport adapter.Transport, log store.OperationLog, attempts int, backoffBase time.Duration, lg *logger.Logger) *RestoreService {
	if attempts < 1 {
		attempts = 1
	}
	return &RestoreService{
		transport:   transport,
		log:         log,
		attempts:    attempts,
		backoffBase: backoffBase,
		logger:      lg,
		now:         time.Now,
		newClientID: newOperationID,
	}
}

// RestorePoints lists the most recent recoverable points in remote history.
func (r *RestoreService) RestorePoints(ctx context.Context, limit int) ([]models.RestorePoint, error) {
	points, err := r.transport.GetRestorePoints(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list restore points: %w", err)
	}
	return points, nil
}

// Restore fetches the remote state at serverSeq and adopts it wholesale:
// pending operations are discarded, the state cache and vector clock are
// rebuilt under a fresh client identity, and a full-state import operation is
// queued so the rollback propagates to other devices on the next sync.
//
// Callers must run this under the sync orchestrator's exclusive section so no
// cycle interleaves with the rebuild.
func (r *RestoreService) Restore(ctx context.Context, serverSeq int64) error {
	state, err := r.fetchStateAt(ctx, serverSeq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestoreFailed, err)
	}

	// A fresh identity keeps the rebuilt clock disjoint from the entries the
	// discarded history already consumed.
	restoreID := r.newClientID()
	clock := models.VectorClock{restoreID: 1}

	if err = r.log.ClearPendingOps(ctx); err != nil {
		return fmt.Errorf("clear pending operations: %w", err)
	}

	cache := models.StateCache{
		State:         state.State,
		VectorClock:   clock,
		SchemaVersion: CurrentSchemaVersion,
	}
	if err = r.log.SaveStateCache(ctx, cache); err != nil {
		return fmt.Errorf("rebuild state cache: %w", err)
	}
	if err = r.log.SaveVectorClock(ctx, clock); err != nil {
		return fmt.Errorf("rebuild vector clock: %w", err)
	}
	if err = r.log.AddProtectedClientID(ctx, restoreID); err != nil {
		return fmt.Errorf("protect restore client id: %w", err)
	}
	if err = r.transport.SetLastServerSeq(ctx, state.ServerSeq); err != nil {
		return fmt.Errorf("persist restore cursor: %w", err)
	}

	importOp := models.Operation{
		ID:            newOperationID(),
		ClientID:      restoreID,
		ActionType:    "backup.import",
		OpType:        models.OpBackupImport,
		EntityType:    models.EntityAll,
		Payload:       state.State,
		VectorClock:   clock,
		Timestamp:     r.now().UnixMilli(),
		SchemaVersion: CurrentSchemaVersion,
	}
	if err = r.log.Append(ctx, store.OpStatusPending, importOp); err != nil {
		return fmt.Errorf("queue restore import operation: %w", err)
	}

	r.logger.Info().
		Int64("server_seq", state.ServerSeq).
		Str("restore_client_id", restoreID).
		Msg("restored state from remote history")
	return nil
}

// fetchStateAt retries the remote fetch on timeout-class errors only.
func (r *RestoreService) fetchStateAt(ctx context.Context, serverSeq int64) (models.StateAtSeq, error) {
	var state models.StateAtSeq

	backoff := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewExponential(r.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var fetchErr error
		state, fetchErr = r.transport.GetStateAtSeq(ctx, serverSeq)
		if fetchErr == nil {
			return nil
		}
		if IsTimeoutError(fetchErr) {
			r.logger.Warn().Err(fetchErr).Int64("server_seq", serverSeq).Msg("restore fetch timed out, retrying")
			return retry.RetryableError(fetchErr)
		}
		return fetchErr
	})
	if err != nil {
		return models.StateAtSeq{}, err
	}
	return state, nil
}
