// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/migrations"
	"github.com/mkarpushin/tasksync/models"
)

const (
	metaKeyVectorClock  = "vector_clock"
	metaKeyProtectedIDs = "protected_client_ids"
)

// sqliteOperationLog implements [OperationLog] on a local SQLite database.
// All mutating statements run through database/sql transactions; queued local
// operations live in memory until Flush.
type sqliteOperationLog struct {
	db     *sql.DB
	logger *logger.Logger

	mu     sync.Mutex
	queued []models.Operation
}

// NewOperationLog opens (or creates) the local SQLite operation log at dsn and
// runs the embedded goose migrations. The returned store is safe for use from
// multiple goroutines of one process; cross-process callers must additionally
// hold the sync lock.
func NewOperationLog(dsn string, log *logger.Logger) (OperationLog, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local operation log: %w", err)
	}

	// SQLite tolerates exactly one writer; funnel everything through a
	// single connection so concurrent readers never hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err = migrations.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate local operation log: %w", err)
	}

	return &sqliteOperationLog{db: db, logger: log}, nil
}

// QueueLocal implements [OperationLog].
func (s *sqliteOperationLog) QueueLocal(op models.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, op)
}

// Flush implements [OperationLog]. Queued operations are written in queue
// order inside one transaction; the queue is emptied only on commit, so a
// failed flush keeps the operations for the next attempt.
func (s *sqliteOperationLog) Flush(ctx context.Context) error {
	s.mu.Lock()
	queued := s.queued
	s.mu.Unlock()

	if len(queued) == 0 {
		return nil
	}

	if err := s.insertOps(ctx, OpStatusPending, queued); err != nil {
		return fmt.Errorf("flush queued operations: %w", err)
	}

	s.mu.Lock()
	s.queued = s.queued[len(queued):]
	s.mu.Unlock()

	return nil
}

// Append implements [OperationLog].
func (s *sqliteOperationLog) Append(ctx context.Context, status OpStatus, ops ...models.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	if err := s.insertOps(ctx, status, ops); err != nil {
		return fmt.Errorf("append operations: %w", err)
	}
	return nil
}

func (s *sqliteOperationLog) insertOps(ctx context.Context, status OpStatus, ops []models.Operation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, op := range ops {
		clock, err := json.Marshal(op.VectorClock)
		if err != nil {
			return fmt.Errorf("encode vector clock of %s: %w", op.ID, err)
		}

		query, args, err := sq.Insert("sync_ops").
			Columns("id", "client_id", "action_type", "op_type", "entity_type", "entity_id",
				"payload", "vector_clock", "ts", "schema_version", "is_encrypted", "status").
			Values(op.ID, op.ClientID, op.ActionType, string(op.OpType), op.EntityType, op.EntityID,
				[]byte(op.Payload), string(clock), op.Timestamp, op.SchemaVersion, op.IsEncrypted, string(status)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert operation %s: %w", op.ID, err)
		}
	}

	return tx.Commit()
}

var opColumns = []string{
	"id", "client_id", "action_type", "op_type", "entity_type", "entity_id",
	"payload", "vector_clock", "ts", "schema_version", "is_encrypted",
}

func scanOp(row sq.RowScanner) (models.Operation, error) {
	var op models.Operation
	var opType, clock string
	var payload []byte

	err := row.Scan(&op.ID, &op.ClientID, &op.ActionType, &opType, &op.EntityType, &op.EntityID,
		&payload, &clock, &op.Timestamp, &op.SchemaVersion, &op.IsEncrypted)
	if err != nil {
		return models.Operation{}, err
	}

	op.OpType = models.OpType(opType)
	op.Payload = json.RawMessage(payload)
	if err = json.Unmarshal([]byte(clock), &op.VectorClock); err != nil {
		return models.Operation{}, fmt.Errorf("decode vector clock of %s: %w", op.ID, err)
	}

	return op, nil
}

// PendingOps implements [OperationLog].
func (s *sqliteOperationLog) PendingOps(ctx context.Context) ([]models.Operation, error) {
	query, args, err := sq.Select(opColumns...).
		From("sync_ops").
		Where(sq.Eq{"status": string(OpStatusPending)}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending operations: %w", err)
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		op, err := scanOp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending operation: %w", err)
		}
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// CountOps implements [OperationLog].
func (s *sqliteOperationLog) CountOps(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_ops").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return n, nil
}

// LastOpForEntity implements [OperationLog].
func (s *sqliteOperationLog) LastOpForEntity(ctx context.Context, entityType, entityID string) (models.Operation, bool, error) {
	query, args, err := sq.Select(opColumns...).
		From("sync_ops").
		Where(sq.Eq{"entity_type": entityType, "entity_id": entityID}).
		Where(sq.NotEq{"status": string(OpStatusRejected)}).
		OrderBy("seq DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return models.Operation{}, false, fmt.Errorf("build entity query: %w", err)
	}

	op, err := scanOp(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Operation{}, false, nil
	}
	if err != nil {
		return models.Operation{}, false, fmt.Errorf("query last op for %s:%s: %w", entityType, entityID, err)
	}

	return op, true, nil
}

// LastFullStateImport implements [OperationLog].
func (s *sqliteOperationLog) LastFullStateImport(ctx context.Context) (models.Operation, bool, error) {
	query, args, err := sq.Select(opColumns...).
		From("sync_ops").
		Where(sq.Eq{"op_type": []string{string(models.OpSyncImport), string(models.OpBackupImport)}}).
		Where(sq.NotEq{"status": string(OpStatusRejected)}).
		OrderBy("seq DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return models.Operation{}, false, fmt.Errorf("build import query: %w", err)
	}

	op, err := scanOp(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Operation{}, false, nil
	}
	if err != nil {
		return models.Operation{}, false, fmt.Errorf("query last full-state import: %w", err)
	}

	return op, true, nil
}

func (s *sqliteOperationLog) setStatus(ctx context.Context, opIDs []string, status OpStatus) error {
	if len(opIDs) == 0 {
		return nil
	}

	query, args, err := sq.Update("sync_ops").
		Set("status", string(status)).
		Where(sq.Eq{"id": opIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status to %s: %w", status, err)
	}

	if n, err := res.RowsAffected(); err == nil && n < int64(len(opIDs)) {
		return fmt.Errorf("%w: %d of %d updated to %s", ErrOpNotFound, n, len(opIDs), status)
	}

	return nil
}

// MarkSynced implements [OperationLog].
func (s *sqliteOperationLog) MarkSynced(ctx context.Context, opIDs []string) error {
	return s.setStatus(ctx, opIDs, OpStatusSynced)
}

// MarkRejected implements [OperationLog].
func (s *sqliteOperationLog) MarkRejected(ctx context.Context, opIDs []string) error {
	return s.setStatus(ctx, opIDs, OpStatusRejected)
}

// ClearPendingOps implements [OperationLog].
func (s *sqliteOperationLog) ClearPendingOps(ctx context.Context) error {
	s.mu.Lock()
	s.queued = nil
	s.mu.Unlock()

	query, args, err := sq.Delete("sync_ops").
		Where(sq.Eq{"status": string(OpStatusPending)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build pending delete: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear pending operations: %w", err)
	}
	return nil
}

// StateCache implements [OperationLog].
func (s *sqliteOperationLog) StateCache(ctx context.Context) (models.StateCache, bool, error) {
	var cache models.StateCache
	var state []byte
	var clock string

	err := s.db.QueryRowContext(ctx,
		`SELECT state, last_applied_op_seq, vector_clock, compacted_at, schema_version
		 FROM state_cache WHERE id = 1`).
		Scan(&state, &cache.LastAppliedOpSeq, &clock, &cache.CompactedAt, &cache.SchemaVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StateCache{}, false, nil
	}
	if err != nil {
		return models.StateCache{}, false, fmt.Errorf("query state cache: %w", err)
	}

	cache.State = json.RawMessage(state)
	if err = json.Unmarshal([]byte(clock), &cache.VectorClock); err != nil {
		return models.StateCache{}, false, fmt.Errorf("decode state cache clock: %w", err)
	}

	return cache, true, nil
}

// SaveStateCache implements [OperationLog].
func (s *sqliteOperationLog) SaveStateCache(ctx context.Context, cache models.StateCache) error {
	clock, err := json.Marshal(cache.VectorClock)
	if err != nil {
		return fmt.Errorf("encode state cache clock: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO state_cache (id, state, last_applied_op_seq, vector_clock, compacted_at, schema_version)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			last_applied_op_seq = excluded.last_applied_op_seq,
			vector_clock = excluded.vector_clock,
			compacted_at = excluded.compacted_at,
			schema_version = excluded.schema_version`,
		[]byte(cache.State), cache.LastAppliedOpSeq, string(clock), cache.CompactedAt, cache.SchemaVersion)
	if err != nil {
		return fmt.Errorf("save state cache: %w", err)
	}
	return nil
}

func (s *sqliteOperationLog) metaValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM sync_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query meta %s: %w", key, err)
	}
	return value, true, nil
}

func (s *sqliteOperationLog) setMetaValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_meta (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("save meta %s: %w", key, err)
	}
	return nil
}

// VectorClock implements [OperationLog].
func (s *sqliteOperationLog) VectorClock(ctx context.Context) (models.VectorClock, error) {
	value, ok, err := s.metaValue(ctx, metaKeyVectorClock)
	if err != nil {
		return nil, err
	}
	if !ok {
		return models.VectorClock{}, nil
	}

	var clock models.VectorClock
	if err = json.Unmarshal([]byte(value), &clock); err != nil {
		return nil, fmt.Errorf("decode stored vector clock: %w", err)
	}
	return clock, nil
}

// SaveVectorClock implements [OperationLog].
func (s *sqliteOperationLog) SaveVectorClock(ctx context.Context, clock models.VectorClock) error {
	value, err := json.Marshal(clock)
	if err != nil {
		return fmt.Errorf("encode vector clock: %w", err)
	}
	return s.setMetaValue(ctx, metaKeyVectorClock, string(value))
}

// ProtectedClientIDs implements [OperationLog].
func (s *sqliteOperationLog) ProtectedClientIDs(ctx context.Context) ([]string, error) {
	value, ok, err := s.metaValue(ctx, metaKeyProtectedIDs)
	if err != nil || !ok || value == "" {
		return nil, err
	}
	return strings.Split(value, ","), nil
}

// AddProtectedClientID implements [OperationLog].
func (s *sqliteOperationLog) AddProtectedClientID(ctx context.Context, id string) error {
	ids, err := s.ProtectedClientIDs(ctx)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return s.setMetaValue(ctx, metaKeyProtectedIDs, strings.Join(ids, ","))
}

// AcquireSyncLock implements [OperationLog]. The lock row is claimed with a
// single conditional UPDATE so two processes racing for it cannot both win.
func (s *sqliteOperationLog) AcquireSyncLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UnixMilli()
	expiredBefore := now - ttl.Milliseconds()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_lock SET owner = ?, acquired_at = ?
		 WHERE id = 1 AND (owner = '' OR owner = ? OR acquired_at < ?)`,
		owner, now, owner, expiredBefore)
	if err != nil {
		return false, fmt.Errorf("acquire sync lock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire sync lock result: %w", err)
	}
	if n == 0 {
		s.logger.Debug().Str("owner", owner).Msg("sync lock held by another owner")
	}

	return n > 0, nil
}

// ReleaseSyncLock implements [OperationLog].
func (s *sqliteOperationLog) ReleaseSyncLock(ctx context.Context, owner string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_lock SET owner = '', acquired_at = 0 WHERE id = 1 AND owner = ?", owner)
	if err != nil {
		return fmt.Errorf("release sync lock: %w", err)
	}
	return nil
}
