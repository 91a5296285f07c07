// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/mock"
	"github.com/mkarpushin/tasksync/internal/store"
	"github.com/mkarpushin/tasksync/models"
)

func newTestDownload(t *testing.T, ctrl *gomock.Controller) (*DownloadOrchestrator, *mock.MockTransport, *mock.MockDecisionHandler, *fakeLog) {
	t.Helper()
	transport := mock.NewMockTransport(ctrl)
	decisions := mock.NewMockDecisionHandler(ctrl)
	log := newFakeLog()

	migrator := NewSchemaMigrator(logger.Nop())
	resolver := NewConflictResolver(log, "local-client", logger.Nop())
	resolver.newOpID = func() string { return "generated-id" }

	d := NewDownloadOrchestrator(transport, log, migrator, resolver, decisions, DefaultEntityKeyExtractor{}, "local-client", 100, logger.Nop())
	return d, transport, decisions, log
}

func remoteOp(id, entityID string, clock models.VectorClock) models.Operation {
	return models.Operation{
		ID: id, ClientID: "other", OpType: models.OpUpdate,
		EntityType: models.EntityTask, EntityID: entityID,
		VectorClock: clock, SchemaVersion: CurrentSchemaVersion,
	}
}

// ── incremental download ─────────────────────────────────────────────────────

func TestDownload_AppliesOpsInOrder_CursorAfterDurableStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, _, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	ops := []models.Operation{
		remoteOp("r1", "t1", models.VectorClock{"other": 1}),
		remoteOp("r2", "t1", models.VectorClock{"other": 2}),
	}

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(10), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(10), "local-client", 100).
		Return(models.DownloadResponse{Ops: ops, LatestSeq: 12}, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(12)).
		DoAndReturn(func(context.Context, int64) error {
			// By the time the cursor moves, both ops must already be durable.
			require.Len(t, log.statuses(), 2)
			return nil
		})

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Applied)

	// r2 arrived after r1 and dominates it; order-preserving apply means the
	// entity's latest op is r2.
	last, ok, _ := log.LastOpForEntity(ctx, models.EntityTask, "t1")
	require.True(t, ok)
	assert.Equal(t, "r2", last.ID)
}

func TestDownload_Pagination(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, _ := newTestDownload(t, ctrl)

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(0), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{
			Ops:       []models.Operation{remoteOp("r1", "t1", models.VectorClock{"other": 1})},
			LatestSeq: 1, HasMore: true,
		}, nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(1), "local-client", 100).
		Return(models.DownloadResponse{
			Ops:       []models.Operation{remoteOp("r2", "t2", models.VectorClock{"other": 2})},
			LatestSeq: 2,
		}, nil)
	// First download of a wholly fresh client: applying remote history needs
	// an explicit go-ahead.
	decisions.EXPECT().ConfirmFreshDownload(gomock.Any(), 2).Return(true, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(2)).Return(nil)

	outcome, err := d.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Applied)
}

func TestDownload_FreshClientDeclinesIncrementalHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, log := newTestDownload(t, ctrl)

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(0), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{
			Ops:       []models.Operation{remoteOp("r1", "t1", models.VectorClock{"other": 1})},
			LatestSeq: 1,
		}, nil)
	decisions.EXPECT().ConfirmFreshDownload(gomock.Any(), 1).Return(false, nil)
	// No SetLastServerSeq: nothing was applied, the cursor must not move.

	outcome, err := d.Download(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
	assert.Empty(t, log.statuses())
}

func TestDownload_RedownloadNeverRepromptsFreshClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, _, _ := newTestDownload(t, ctrl)

	// A rejection-triggered replay from zero runs under the decision already
	// taken in its cycle: no ConfirmFreshDownload expectation.
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{
			Ops:       []models.Operation{remoteOp("r1", "t1", models.VectorClock{"other": 1})},
			LatestSeq: 1,
		}, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(1)).Return(nil)

	outcome, err := d.Redownload(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Applied)
}

func TestDownload_NothingNew_CursorUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, _, _ := newTestDownload(t, ctrl)

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(7), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(7), "local-client", 100).
		Return(models.DownloadResponse{LatestSeq: 7}, nil)
	// No SetLastServerSeq expectation: moving an unchanged cursor is waste.

	outcome, err := d.Download(context.Background())
	require.NoError(t, err)
	assert.Zero(t, outcome.Applied)
}

// ── server migration gap ─────────────────────────────────────────────────────

func TestDownload_GapDetected_ReseedsRemote(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, _, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	require.NoError(t, log.SaveStateCache(ctx, models.StateCache{
		State:         []byte(`{"tasks":{}}`),
		VectorClock:   models.VectorClock{"local-client": 5},
		SchemaVersion: CurrentSchemaVersion,
	}))

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(40), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(40), "local-client", 100).
		Return(models.DownloadResponse{GapDetected: true, LatestSeq: 0}, nil)
	transport.EXPECT().UploadSnapshot(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap models.SnapshotUpload) error {
			assert.Equal(t, "server-migration-reseed", snap.Reason)
			assert.Equal(t, "local-client", snap.ClientID)
			return nil
		})
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(0)).Return(nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.MigrationHandled)
}

func TestDownload_GapDetected_FreshClientSkipsReseed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, _, _ := newTestDownload(t, ctrl)

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(40), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(40), "local-client", 100).
		Return(models.DownloadResponse{GapDetected: true, LatestSeq: 3}, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(3)).Return(nil)

	outcome, err := d.Download(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.MigrationHandled)
}

// ── snapshot download ────────────────────────────────────────────────────────

func TestDownload_Snapshot_FreshClientConfirms(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	snapClock := models.VectorClock{"other": 9}
	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(0), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{
			SnapshotState:       []byte(`{"tasks":{"t1":{"id":"t1"}}}`),
			SnapshotVectorClock: snapClock,
			LatestSeq:           9,
		}, nil)
	decisions.EXPECT().ConfirmFreshDownload(gomock.Any(), 1).Return(true, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(9)).Return(nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.False(t, outcome.Cancelled)

	cache, ok, _ := log.StateCache(ctx)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"tasks":{"t1":{"id":"t1"}}}`), []byte(cache.State))
	assert.Equal(t, snapClock, cache.VectorClock)
}

func TestDownload_Snapshot_FreshClientDeclines(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, log := newTestDownload(t, ctrl)

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(0), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{
			SnapshotState:       []byte(`{"tasks":{}}`),
			SnapshotVectorClock: models.VectorClock{"other": 9},
		}, nil)
	decisions.EXPECT().ConfirmFreshDownload(gomock.Any(), 1).Return(false, nil)

	outcome, err := d.Download(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)

	_, ok, _ := log.StateCache(context.Background())
	assert.False(t, ok)
}

func TestDownload_Snapshot_AtRiskOps_UseRemote(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	// A pending task the remote snapshot does not contain.
	require.NoError(t, log.Append(ctx, store.OpStatusPending, models.Operation{
		ID: "p1", ClientID: "local-client", OpType: models.OpCreate,
		EntityType: models.EntityTask, EntityID: "orphan",
		VectorClock: models.VectorClock{"local-client": 1},
	}))
	require.NoError(t, log.SaveVectorClock(ctx, models.VectorClock{"local-client": 1}))

	snapClock := models.VectorClock{"other": 4}
	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(0), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{
			SnapshotState:       []byte(`{"tasks":{"t1":{"id":"t1"}}}`),
			SnapshotVectorClock: snapClock,
			LatestSeq:           4,
		}, nil)
	decisions.EXPECT().ResolveConflict(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c models.WholeStateConflict) (models.ConflictDecision, error) {
			assert.Equal(t, 1, c.UnsyncedCount)
			assert.NotEmpty(t, c.RemoteSnapshot)
			return models.DecisionUseRemote, nil
		})
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(4)).Return(nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.False(t, outcome.Cancelled)

	// Pending work discarded, clock reset to the snapshot's.
	pending, _ := log.PendingOps(ctx)
	assert.Empty(t, pending)
	clock, _ := log.VectorClock(ctx)
	assert.Equal(t, snapClock, clock)
}

func TestDownload_Snapshot_AtRiskOps_UseLocal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, store.OpStatusPending, models.Operation{
		ID: "p1", ClientID: "local-client", OpType: models.OpCreate,
		EntityType: models.EntityTask, EntityID: "orphan",
		VectorClock: models.VectorClock{"local-client": 1},
	}))
	require.NoError(t, log.SaveStateCache(ctx, models.StateCache{
		State: []byte(`{"tasks":{"orphan":{"id":"orphan"}}}`), VectorClock: models.VectorClock{"local-client": 1},
		SchemaVersion: CurrentSchemaVersion,
	}))

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(0), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{
			SnapshotState:       []byte(`{"tasks":{"t1":{"id":"t1"}}}`),
			SnapshotVectorClock: models.VectorClock{"other": 4},
			LatestSeq:           4,
		}, nil)
	decisions.EXPECT().ResolveConflict(gomock.Any(), gomock.Any()).Return(models.DecisionUseLocal, nil)
	transport.EXPECT().UploadSnapshot(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap models.SnapshotUpload) error {
			assert.Equal(t, "whole-state-conflict-use-local", snap.Reason)
			return nil
		})
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(4)).Return(nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.ForcedLocalState)

	// The pending op survives and rides the next upload.
	pending, _ := log.PendingOps(ctx)
	assert.Len(t, pending, 1)
}

func TestDownload_Snapshot_AtRiskOps_Cancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, store.OpStatusPending, models.Operation{
		ID: "p1", OpType: models.OpCreate, EntityType: models.EntityTask, EntityID: "orphan",
	}))

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(0), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{
			SnapshotState:       []byte(`{"tasks":{}}`),
			SnapshotVectorClock: models.VectorClock{"other": 4},
		}, nil)
	decisions.EXPECT().ResolveConflict(gomock.Any(), gomock.Any()).Return(models.DecisionCancel, nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)

	pending, _ := log.PendingOps(ctx)
	assert.Len(t, pending, 1)
}

func TestDownload_Snapshot_PendingOpsPresentInSnapshot_NoConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, _, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	// The pending entity exists in the snapshot, so nothing is at risk and no
	// decision is required.
	require.NoError(t, log.Append(ctx, store.OpStatusPending, models.Operation{
		ID: "p1", OpType: models.OpUpdate, EntityType: models.EntityTask, EntityID: "t1",
		VectorClock: models.VectorClock{"local-client": 1},
	}))

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(0), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{
			SnapshotState:       []byte(`{"tasks":{"t1":{"id":"t1"}}}`),
			SnapshotVectorClock: models.VectorClock{"other": 4},
			LatestSeq:           4,
		}, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(4)).Return(nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.False(t, outcome.Cancelled)
}

// ── sync-import filtering ────────────────────────────────────────────────────

func TestDownload_SyncImportFilter_DropsSupersededOps(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, _, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	// A local full-state import at t=5000 supersedes older remote history.
	require.NoError(t, log.Append(ctx, store.OpStatusSynced, models.Operation{
		ID: "import", OpType: models.OpSyncImport, EntityType: models.EntityAll, Timestamp: 5_000,
	}))

	older := remoteOp("old", "t1", models.VectorClock{"other": 1})
	older.Timestamp = 1_000
	newer := remoteOp("new", "t2", models.VectorClock{"other": 2})
	newer.Timestamp = 9_000

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(0), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{Ops: []models.Operation{older, newer}, LatestSeq: 2}, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(2)).Return(nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Applied)

	statuses := log.statuses()
	assert.NotContains(t, statuses, "old")
	assert.Contains(t, statuses, "new")
}

func TestDownload_SyncImportFilter_AllFiltered_UseRemoteReplaysFromZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, store.OpStatusPending, models.Operation{
		ID: "import", ClientID: "local-client", OpType: models.OpSyncImport,
		EntityType: models.EntityAll, Timestamp: 5_000,
	}))

	older := remoteOp("old", "t1", models.VectorClock{"other": 1})
	older.Timestamp = 1_000

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(2), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(2), "local-client", 100).
		Return(models.DownloadResponse{Ops: []models.Operation{older}, LatestSeq: 3}, nil)
	decisions.EXPECT().ResolveConflict(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c models.WholeStateConflict) (models.ConflictDecision, error) {
			assert.True(t, c.SyncImportFiltered)
			return models.DecisionUseRemote, nil
		})
	// The replay from zero: the import is retired, so the op now survives.
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{Ops: []models.Operation{older}, LatestSeq: 3}, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(3)).Return(nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Applied)

	pending, _ := log.PendingOps(ctx)
	assert.Empty(t, pending)
}

func TestDownload_SyncImportFilter_SyncedImport_UseRemoteTakesEffect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	// The import already uploaded in an earlier cycle: ClearPendingOps alone
	// would leave it in place and the replay would filter the same history
	// again.
	require.NoError(t, log.Append(ctx, store.OpStatusSynced, models.Operation{
		ID: "import", ClientID: "local-client", OpType: models.OpSyncImport,
		EntityType: models.EntityAll, Timestamp: 10_000,
	}))

	older := remoteOp("old", "t1", models.VectorClock{"other": 1})
	older.Timestamp = 5_000

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(2), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(2), "local-client", 100).
		Return(models.DownloadResponse{Ops: []models.Operation{older}, LatestSeq: 3}, nil)
	// One decision exactly; the replay must honor it instead of re-escalating.
	decisions.EXPECT().ResolveConflict(gomock.Any(), gomock.Any()).Return(models.DecisionUseRemote, nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(0), "local-client", 100).
		Return(models.DownloadResponse{Ops: []models.Operation{older}, LatestSeq: 3}, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(3)).Return(nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Applied)

	statuses := log.statuses()
	assert.Equal(t, store.OpStatusRejected, statuses["import"])
	assert.Contains(t, statuses, "old")
}

func TestDownload_SyncImportFilter_AllFiltered_UseLocalKeepsImport(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, transport, decisions, log := newTestDownload(t, ctrl)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, store.OpStatusPending, models.Operation{
		ID: "import", ClientID: "local-client", OpType: models.OpSyncImport,
		EntityType: models.EntityAll, Timestamp: 5_000,
	}))

	older := remoteOp("old", "t1", models.VectorClock{"other": 1})
	older.Timestamp = 1_000

	transport.EXPECT().GetLastServerSeq(gomock.Any()).Return(int64(2), nil)
	transport.EXPECT().DownloadOps(gomock.Any(), int64(2), "local-client", 100).
		Return(models.DownloadResponse{Ops: []models.Operation{older}, LatestSeq: 3}, nil)
	decisions.EXPECT().ResolveConflict(gomock.Any(), gomock.Any()).Return(models.DecisionUseLocal, nil)

	outcome, err := d.Download(ctx)
	require.NoError(t, err)
	assert.Zero(t, outcome.Applied)

	// The import is still pending and overrides remote on the next upload.
	pending, _ := log.PendingOps(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, "import", pending[0].ID)
}
