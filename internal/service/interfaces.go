// SPDX-License-Identifier: Apache-2.0

// Package service implements the operation-log synchronization engine:
// schema migration, conflict detection with last-write-wins resolution,
// download/upload orchestration, rejected-operation handling, the top-level
// sync state machine, and point-in-time restore.
//
// The engine never interprets application state. Payloads are opaque blobs;
// the only domain knowledge it relies on is the entity-key extraction
// contract and the entity-type constants in the models package.
package service

import (
	"context"
	"encoding/json"

	"github.com/mkarpushin/tasksync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/decisions_mock.go -package=mock

// DecisionHandler is the decision callback contract, implemented by the UI
// (out of core scope). The orchestrator suspends on these calls; there is no
// time limit on the answer.
type DecisionHandler interface {
	// ResolveConflict presents a whole-state or sync-import conflict and
	// returns the user's (or policy's) decision.
	ResolveConflict(ctx context.Context, conflict models.WholeStateConflict) (models.ConflictDecision, error)

	// ConfirmFreshDownload asks whether a wholly fresh client should apply
	// non-trivial remote history of the given size.
	ConfirmFreshDownload(ctx context.Context, incomingCount int) (bool, error)
}

// EntityKeyExtractor reports which "ENTITY_TYPE:id" keys an opaque
// application-state blob contains. The engine uses it only to decide whether
// a remote snapshot would destroy locally-known entities, never to interpret
// domain semantics.
type EntityKeyExtractor interface {
	ExtractEntityKeys(state json.RawMessage) ([]string, error)
}

// Downloader is the download half of a sync cycle, satisfied by
// [DownloadOrchestrator].
type Downloader interface {
	Download(ctx context.Context) (DownloadOutcome, error)
	Redownload(ctx context.Context, fromZero bool) (DownloadOutcome, error)
}

// Uploader is the upload half of a sync cycle, satisfied by
// [UploadOrchestrator].
type Uploader interface {
	Upload(ctx context.Context) (UploadOutcome, error)
}
