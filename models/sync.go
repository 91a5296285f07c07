// SPDX-License-Identifier: Apache-2.0

package models

import (
	"encoding/json"
	"time"
)

// SyncStatus reflects the outcome of the last completed sync cycle. It is
// written only by the sync orchestrator and read by UI collaborators.
type SyncStatus string

const (
	StatusSyncing SyncStatus = "SYNCING"
	StatusInSync  SyncStatus = "IN_SYNC"
	StatusError   SyncStatus = "ERROR"
	// StatusUnknownOrChanged signals deliberate non-convergence: the cycle
	// finished but operations remain to be pushed (e.g. the LWW retry loop
	// exhausted its attempts).
	StatusUnknownOrChanged SyncStatus = "UNKNOWN_OR_CHANGED"
)

// ConflictDecision is the answer supplied by a human (or automated policy)
// when a whole-state conflict is escalated.
type ConflictDecision int

const (
	// DecisionCancel aborts the sync cycle with no state change.
	DecisionCancel ConflictDecision = iota
	// DecisionUseLocal force-uploads local state, overriding remote.
	DecisionUseLocal
	// DecisionUseRemote discards local unsynced operations and adopts the
	// remote snapshot.
	DecisionUseRemote
)

// RejectReason classifies why the server refused an uploaded operation.
type RejectReason string

const (
	// RejectConcurrentModification means the operation's vector clock was
	// stale relative to the server's view; recoverable via re-download.
	RejectConcurrentModification RejectReason = "CONCURRENT_MODIFICATION"
	// RejectPayloadTooLarge and RejectPayloadTooComplex are capacity limits;
	// terminal for the operation.
	RejectPayloadTooLarge   RejectReason = "PAYLOAD_TOO_LARGE"
	RejectPayloadTooComplex RejectReason = "PAYLOAD_TOO_COMPLEX"
)

// OpUploadResult is the per-operation verdict inside an upload response.
type OpUploadResult struct {
	OpID     string `json:"opId"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// RejectedOp pairs a refused operation with the server's reason.
type RejectedOp struct {
	Op     Operation    `json:"op"`
	Reason RejectReason `json:"reason"`
}

// UploadResponse is what the transport returns for a batch upload. The server
// may accept some operations, reject others, and piggyback operations from
// other clients in the same round trip.
type UploadResponse struct {
	Results        []OpUploadResult `json:"results"`
	PiggybackedOps []Operation      `json:"piggybackedOps,omitempty"`
	RejectedOps    []RejectedOp     `json:"rejectedOps,omitempty"`
	// RejectedCount is the authoritative rejection count. A response with an
	// empty RejectedOps slice and RejectedCount zero is a clean success.
	RejectedCount int   `json:"rejectedCount"`
	LatestSeq     int64 `json:"latestSeq"`
}

// DownloadResponse is one page of remote history. When SnapshotState is
// non-nil the response is a full-state snapshot (only possible for sinceSeq
// zero) instead of an incremental operation list.
type DownloadResponse struct {
	Ops       []Operation `json:"ops"`
	LatestSeq int64       `json:"latestSeq"`
	HasMore   bool        `json:"hasMore"`

	SnapshotState       json.RawMessage `json:"snapshotState,omitempty"`
	SnapshotVectorClock VectorClock     `json:"snapshotVectorClock,omitempty"`
	SnapshotIsEncrypted bool            `json:"snapshotIsEncrypted,omitempty"`

	// GapDetected reports a discontinuity: the remote store was reset or
	// replaced while this client's history implies prior sync.
	GapDetected bool `json:"gapDetected,omitempty"`
}

// SnapshotUpload carries a full application state to the remote store.
type SnapshotUpload struct {
	OpID          string          `json:"opId"`
	ClientID      string          `json:"clientId"`
	Reason        string          `json:"reason"`
	State         json.RawMessage `json:"state"`
	VectorClock   VectorClock     `json:"vectorClock"`
	SchemaVersion int             `json:"schemaVersion"`
	IsEncrypted   bool            `json:"isEncrypted,omitempty"`
}

// RestorePoint describes one recoverable point in remote history.
type RestorePoint struct {
	ServerSeq int64     `json:"serverSeq"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	ClientID  string    `json:"clientId"`
}

// StateAtSeq is the full remote state materialized at a given sequence.
type StateAtSeq struct {
	State       json.RawMessage `json:"state"`
	ServerSeq   int64           `json:"serverSeq"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// WholeStateConflict is escalated when applying a remote snapshot (or a
// filtered remote history) would silently destroy meaningful unsynced local
// work. It carries everything the decision point needs to show the user.
type WholeStateConflict struct {
	// UnsyncedCount is the number of meaningful local operations at risk.
	UnsyncedCount int
	// IncomingOpCount is the number of remote operations or snapshot entries
	// that would be applied, surfaced so fresh clients can confirm.
	IncomingOpCount int

	RemoteSnapshot    json.RawMessage
	RemoteVectorClock VectorClock

	// SyncImportFiltered marks the variant where downloaded operations were
	// filtered out entirely because a local full-state import superseded them.
	SyncImportFiltered bool
}
