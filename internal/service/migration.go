// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"strings"

	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/models"
)

const (
	// CurrentSchemaVersion is the operation and state-cache schema version
	// this build reads and writes.
	CurrentSchemaVersion = 4

	// MaxVersionSkip bounds the supported migration window: operations more
	// than this many versions behind current have no guaranteed migration
	// path and are dropped with a reported count.
	MaxVersionSkip = 2
)

// opMigration transforms an operation from one schema version to the next.
type opMigration func(models.Operation) (models.Operation, error)

// SchemaMigrator normalizes operations and state-cache snapshots to
// CurrentSchemaVersion. It runs on BOTH ingestion paths (local reads and
// remote receives) before any conflict logic, so the conflict detector never
// sees a mixed-version operation set.
type SchemaMigrator struct {
	logger *logger.Logger

	// migrations[v] migrates from version v to v+1.
	migrations map[int]opMigration
}

// NewSchemaMigrator constructs a migrator carrying the full version chain.
func NewSchemaMigrator(log *logger.Logger) *SchemaMigrator {
	return &SchemaMigrator{
		logger: log,
		migrations: map[int]opMigration{
			2: migrateV2EntityTypes,
			3: migrateV3ClockCap,
		},
	}
}

// NeedsMigration reports whether a record at the given schema version must be
// migrated before use. An absent version (zero) is treated as version 1.
func (m *SchemaMigrator) NeedsMigration(version int) bool {
	if version <= 0 {
		version = 1
	}
	return version < CurrentSchemaVersion
}

// MigrateOperation returns the input unchanged if already current; otherwise
// it applies the version chain and returns a new Operation value. Operations
// more than MaxVersionSkip versions behind current are refused with
// [ErrVersionTooOld].
func (m *SchemaMigrator) MigrateOperation(op models.Operation) (models.Operation, error) {
	version := op.SchemaVersion
	if version <= 0 {
		version = 1
	}

	if version >= CurrentSchemaVersion {
		return op, nil
	}
	if version < CurrentSchemaVersion-MaxVersionSkip {
		return models.Operation{}, fmt.Errorf("%w: version %d, current %d", ErrVersionTooOld, version, CurrentSchemaVersion)
	}

	for v := version; v < CurrentSchemaVersion; v++ {
		step, ok := m.migrations[v]
		if !ok {
			return models.Operation{}, fmt.Errorf("no migration path from version %d", v)
		}
		migrated, err := step(op)
		if err != nil {
			return models.Operation{}, fmt.Errorf("migrate operation %s from version %d: %w", op.ID, v, err)
		}
		migrated.SchemaVersion = v + 1
		op = migrated
	}

	return op, nil
}

// MigrateOperations is the batch form of MigrateOperation. It filters out
// operations that cannot be migrated, preserves the relative order of the
// survivors, and returns the number of dropped operations.
func (m *SchemaMigrator) MigrateOperations(ops []models.Operation) ([]models.Operation, int) {
	out := make([]models.Operation, 0, len(ops))
	dropped := 0

	for _, op := range ops {
		migrated, err := m.MigrateOperation(op)
		if err != nil {
			dropped++
			m.logger.Warn().Err(err).Str("op_id", op.ID).Msg("dropping unmigratable operation")
			continue
		}
		out = append(out, migrated)
	}

	return out, dropped
}

// MigrateStateCache lifts a state-cache snapshot to the current schema
// version. The state blob itself is opaque and carried through unchanged;
// only clock pruning and the version stamp apply.
func (m *SchemaMigrator) MigrateStateCache(cache models.StateCache) models.StateCache {
	if cache.SchemaVersion >= CurrentSchemaVersion {
		return cache
	}

	cache.VectorClock = cache.VectorClock.LimitSize(nil)
	cache.SchemaVersion = CurrentSchemaVersion
	return cache
}

// migrateV2EntityTypes handles version 2 → 3: early operations carried the
// entity type only as a dotted actionType prefix ("task.update"); version 3
// introduced the explicit entityType field.
func migrateV2EntityTypes(op models.Operation) (models.Operation, error) {
	if op.EntityType != "" {
		return op, nil
	}

	prefix, _, found := strings.Cut(op.ActionType, ".")
	if !found {
		return op, nil
	}

	switch strings.ToLower(prefix) {
	case "task":
		op.EntityType = models.EntityTask
	case "project":
		op.EntityType = models.EntityProject
	case "tag":
		op.EntityType = models.EntityTag
	case "note":
		op.EntityType = models.EntityNote
	}

	return op, nil
}

// migrateV3ClockCap handles version 3 → 4: clocks written before the size cap
// was enforced may exceed MaxVectorClockSize. The authoring client's own
// entry is preserved through pruning.
func migrateV3ClockCap(op models.Operation) (models.Operation, error) {
	op.VectorClock = op.VectorClock.LimitSize([]string{op.ClientID})
	return op, nil
}
