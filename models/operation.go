// SPDX-License-Identifier: Apache-2.0

package models

import "encoding/json"

// OpType classifies what an operation does to its target entity.
type OpType string

const (
	OpCreate OpType = "CREATE"
	OpUpdate OpType = "UPDATE"
	OpDelete OpType = "DELETE"

	// OpSyncImport and OpBackupImport are full-state operations: their payload
	// is the entire application state rather than an incremental delta. They
	// reset the state cache of every client that applies them.
	OpSyncImport   OpType = "SYNC_IMPORT"
	OpBackupImport OpType = "BACKUP_IMPORT"
)

// Entity types known to the sync engine. The engine never interprets entity
// payloads; the types are only used to decide whether unsynced local work is
// meaningful user data worth protecting from a silent snapshot overwrite.
const (
	EntityTask    = "TASK"
	EntityProject = "PROJECT"
	EntityTag     = "TAG"
	EntityNote    = "NOTE"
	// EntityAll marks full-state operations that span every entity.
	EntityAll = "ALL"
)

// Operation is an immutable, append-only record of a single state change.
// It is created once by the authoring client and never mutated; schema
// migration produces a new Operation value instead of editing in place.
type Operation struct {
	// ID is globally unique and lexicographically sortable (UUIDv7).
	ID         string `json:"id"`
	ClientID   string `json:"clientId"`
	ActionType string `json:"actionType"`
	OpType     OpType `json:"opType"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`

	// Payload is opaque to the engine. For full-state operations it holds the
	// entire application state blob.
	Payload json.RawMessage `json:"payload,omitempty"`

	// VectorClock is the causal context at creation time.
	VectorClock VectorClock `json:"vectorClock"`

	// Timestamp is the authoring wall clock in Unix milliseconds. Used only
	// for last-write-wins resolution of concurrent operations.
	Timestamp int64 `json:"timestamp"`

	SchemaVersion int `json:"schemaVersion"`

	// IsEncrypted reports whether Payload is an encrypted blob. The engine
	// never decrypts; it only forwards the flag to the transport.
	IsEncrypted bool `json:"isEncrypted,omitempty"`
}

// IsFullState reports whether the operation replaces the whole application
// state rather than applying an incremental change.
func (op Operation) IsFullState() bool {
	return op.OpType == OpSyncImport || op.OpType == OpBackupImport
}

// IsMeaningfulUserData reports whether losing this unsynced operation would
// destroy user work. Creates and updates of user entities count, as does any
// full-state operation; deletes and bookkeeping actions do not.
func (op Operation) IsMeaningfulUserData() bool {
	if op.IsFullState() {
		return true
	}
	if op.OpType != OpCreate && op.OpType != OpUpdate {
		return false
	}
	switch op.EntityType {
	case EntityTask, EntityProject, EntityTag, EntityNote:
		return true
	default:
		return false
	}
}
