// SPDX-License-Identifier: Apache-2.0

package models

import "encoding/json"

// StateCache is the materialized snapshot of application state, kept so the
// engine never has to replay the whole operation log. It is rebuilt wholesale
// on full-state imports and advanced incrementally as operations are applied.
type StateCache struct {
	// State is the opaque application-state blob. The engine never inspects
	// it beyond handing it to the entity-key extractor.
	State json.RawMessage `json:"state"`

	// LastAppliedOpSeq is the local log sequence of the last operation folded
	// into State.
	LastAppliedOpSeq int64 `json:"lastAppliedOpSeq"`

	// VectorClock is the causal context of the materialized state.
	VectorClock VectorClock `json:"vectorClock"`

	// CompactedAt is the Unix-millisecond time of the last log compaction
	// that produced this snapshot, zero if never compacted.
	CompactedAt int64 `json:"compactedAt,omitempty"`

	SchemaVersion int `json:"schemaVersion"`
}
