// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"

	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/store"
	"github.com/mkarpushin/tasksync/models"
)

// RejectedOpsHandler applies the local bookkeeping for server-rejected
// operations and classifies each rejection as recoverable or terminal.
type RejectedOpsHandler struct {
	log    store.OperationLog
	logger *logger.Logger
}

// NewRejectedOpsHandler constructs a rejection handler.
func NewRejectedOpsHandler(log store.OperationLog, lg *logger.Logger) *RejectedOpsHandler {
	return &RejectedOpsHandler{log: log, logger: lg}
}

// RejectionVerdict is the classification result for one rejection batch.
type RejectionVerdict struct {
	// Redownload requests a re-download before the next upload attempt.
	// FromZero additionally requests a full history replay.
	Redownload bool
	FromZero   bool

	// Recoverable counts concurrent-modification rejections, whose intent
	// survives as fresh compensating operations after re-download. Every
	// other rejection is terminal for the operation.
	Recoverable int
}

// HandleRejections records every rejected operation as terminally rejected in
// the local log and classifies the batch. Rejected operations are never
// re-uploaded as-is; concurrent-modification rejections recover through
// re-download, which rebuilds clock knowledge and re-issues the surviving
// intent as fresh compensating operations.
//
// The rejected-status transition is guaranteed even when classification
// errors out partway, so no refused operation can leak back into a future
// upload batch.
func (h *RejectedOpsHandler) HandleRejections(ctx context.Context, rejected []models.RejectedOp) (verdict RejectionVerdict, err error) {
	if len(rejected) == 0 {
		return verdict, nil
	}

	ids := make([]string, 0, len(rejected))
	for _, rej := range rejected {
		ids = append(ids, rej.Op.ID)
	}
	defer func() {
		if markErr := h.log.MarkRejected(ctx, ids); markErr != nil && err == nil {
			err = fmt.Errorf("mark %d operations rejected: %w", len(ids), markErr)
		}
	}()

	for _, rej := range rejected {
		switch rej.Reason {
		case models.RejectConcurrentModification:
			verdict.Redownload = true
			verdict.Recoverable++
			if rej.Op.IsFullState() {
				// A refused full-state operation means our whole causal view
				// is stale; only a full replay restores it.
				verdict.FromZero = true
			}
			h.logger.Info().
				Str("op_id", rej.Op.ID).
				Str("entity", rej.Op.EntityType+":"+rej.Op.EntityID).
				Msg("operation rejected for concurrent modification, re-download scheduled")

		case models.RejectPayloadTooLarge, models.RejectPayloadTooComplex:
			h.logger.Warn().
				Str("op_id", rej.Op.ID).
				Str("reason", string(rej.Reason)).
				Msg("operation rejected by server capacity limit")

		default:
			h.logger.Warn().
				Str("op_id", rej.Op.ID).
				Str("reason", string(rej.Reason)).
				Msg("operation rejected for unrecognized reason")
		}
	}

	return verdict, nil
}
