// SPDX-License-Identifier: Apache-2.0

package models

import "sort"

// MaxVectorClockSize caps the number of entries a vector clock may carry on any
// write path. Clocks are pruned with [VectorClock.LimitSize] before persisting
// or uploading; Compare switches to a pruning-aware mode when both operands are
// at or over this cap.
const MaxVectorClockSize = 10

// ClockOrdering is the result of comparing two vector clocks.
type ClockOrdering int

const (
	// ClockEqual means both clocks describe the same causal history.
	ClockEqual ClockOrdering = iota
	// ClockLess means the receiver is causally behind the other clock.
	ClockLess
	// ClockGreater means the receiver strictly dominates the other clock.
	ClockGreater
	// ClockConcurrent means neither clock dominates: the histories diverged.
	ClockConcurrent
)

// String returns a human-readable label, used in logs and test failures.
func (o ClockOrdering) String() string {
	switch o {
	case ClockEqual:
		return "EQUAL"
	case ClockLess:
		return "LESS_THAN"
	case ClockGreater:
		return "GREATER_THAN"
	case ClockConcurrent:
		return "CONCURRENT"
	default:
		return "UNKNOWN"
	}
}

// VectorClock maps a client ID to a monotonically non-decreasing counter.
// A client only ever increments its own entry; all other entries are learned
// through [VectorClock.Merge]. Missing entries are read as zero.
type VectorClock map[string]uint64

// Clone returns an independent copy of the clock. Cloning a nil clock returns
// an empty, non-nil clock so callers can write to the result.
func (vc VectorClock) Clone() VectorClock {
	out := make(VectorClock, len(vc))
	for id, n := range vc {
		out[id] = n
	}
	return out
}

// Increment returns a copy of the clock with the entry for clientID advanced
// by one. The receiver is not modified: operations carry immutable clocks.
func (vc VectorClock) Increment(clientID string) VectorClock {
	out := vc.Clone()
	out[clientID]++
	return out
}

// Compare classifies the causal relationship between vc and other.
//
// When BOTH clocks carry MaxVectorClockSize entries or more, each side may have
// independently pruned different low-activity client IDs, so only keys present
// in both clocks are compared (pruning-aware mode). Comparing the union in that
// situation would report false CONCURRENT results for clocks that merely
// dropped different entries. In every other case the union of keys is compared,
// with missing keys read as zero.
func (vc VectorClock) Compare(other VectorClock) ClockOrdering {
	pruningAware := len(vc) >= MaxVectorClockSize && len(other) >= MaxVectorClockSize

	var aAhead, bAhead bool
	if pruningAware {
		for id, a := range vc {
			b, shared := other[id]
			if !shared {
				continue
			}
			if a > b {
				aAhead = true
			} else if a < b {
				bAhead = true
			}
		}
	} else {
		keys := make(map[string]struct{}, len(vc)+len(other))
		for id := range vc {
			keys[id] = struct{}{}
		}
		for id := range other {
			keys[id] = struct{}{}
		}
		for id := range keys {
			a, b := vc[id], other[id]
			if a > b {
				aAhead = true
			} else if a < b {
				bAhead = true
			}
		}
	}

	switch {
	case aAhead && bAhead:
		return ClockConcurrent
	case aAhead:
		return ClockGreater
	case bAhead:
		return ClockLess
	default:
		return ClockEqual
	}
}

// Merge returns a new clock holding the pointwise maximum of both operands.
// Merging with an empty or nil clock yields a copy of the receiver.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	out := vc.Clone()
	for id, n := range other {
		if out[id] < n {
			out[id] = n
		}
	}
	return out
}

// LimitSize prunes the clock down to at most MaxVectorClockSize entries.
// Preserved IDs are kept first (still capped at the maximum, even if the
// preserve set itself is larger); the remaining slots are filled with the
// highest-valued non-preserved entries.
//
// When the clock is already within the limit the SAME reference is returned.
// Callers rely on this referential no-op for cheap change detection, so the
// contract is deliberate, not an optimization detail.
func (vc VectorClock) LimitSize(preserveIDs []string) VectorClock {
	if len(vc) <= MaxVectorClockSize {
		return vc
	}

	preserve := make(map[string]struct{}, len(preserveIDs))
	for _, id := range preserveIDs {
		preserve[id] = struct{}{}
	}

	type entry struct {
		id string
		n  uint64
	}
	preserved := make([]entry, 0, len(preserveIDs))
	rest := make([]entry, 0, len(vc))
	for id, n := range vc {
		if _, ok := preserve[id]; ok {
			preserved = append(preserved, entry{id, n})
		} else {
			rest = append(rest, entry{id, n})
		}
	}

	byValueDesc := func(entries []entry) {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].n != entries[j].n {
				return entries[i].n > entries[j].n
			}
			return entries[i].id < entries[j].id
		})
	}
	byValueDesc(preserved)
	byValueDesc(rest)

	out := make(VectorClock, MaxVectorClockSize)
	for _, e := range preserved {
		if len(out) == MaxVectorClockSize {
			break
		}
		out[e.id] = e.n
	}
	for _, e := range rest {
		if len(out) == MaxVectorClockSize {
			break
		}
		out[e.id] = e.n
	}

	return out
}

// CompareAsymmetric classifies candidate against an authoritative, unpruned
// reference clock: keys missing from candidate are treated as legitimately
// pruned rather than unseen, so only candidate's own keys are compared.
//
// This mode is intended for a server holding the full clock; it is unsound if
// the candidate simply never observed a key. Kept isolated from Compare on
// purpose and not used by the client-side engine.
func (vc VectorClock) CompareAsymmetric(candidate VectorClock) ClockOrdering {
	var aAhead, bAhead bool
	for id, b := range candidate {
		a := vc[id]
		if a > b {
			aAhead = true
		} else if a < b {
			bAhead = true
		}
	}

	switch {
	case aAhead && bAhead:
		return ClockConcurrent
	case aAhead:
		return ClockGreater
	case bAhead:
		return ClockLess
	default:
		return ClockEqual
	}
}
