// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mkarpushin/tasksync/internal/adapter"
	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/internal/mock"
	"github.com/mkarpushin/tasksync/internal/store"
	"github.com/mkarpushin/tasksync/models"
)

func newTestRestore(t *testing.T, ctrl *gomock.Controller, attempts int) (*RestoreService, *mock.MockTransport, *fakeLog) {
	t.Helper()
	transport := mock.NewMockTransport(ctrl)
	log := newFakeLog()

	// Millisecond backoff keeps retry tests fast.
	r := NewRestoreService(transport, log, attempts, time.Millisecond, logger.Nop())
	r.now = func() time.Time { return time.UnixMilli(7_000) }
	r.newClientID = func() string { return "restore-client" }
	return r, transport, log
}

func TestRestore_AdoptsStateAsFreshBaseline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	r, transport, log := newTestRestore(t, ctrl, 4)
	ctx := context.Background()

	// Stale pending work that must not survive the rollback.
	require.NoError(t, log.Append(ctx, store.OpStatusPending, models.Operation{
		ID: "stale", OpType: models.OpUpdate, EntityType: models.EntityTask, EntityID: "t1",
	}))

	transport.EXPECT().GetStateAtSeq(gomock.Any(), int64(42)).
		Return(models.StateAtSeq{State: []byte(`{"tasks":{}}`), ServerSeq: 42}, nil)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(42)).Return(nil)

	require.NoError(t, r.Restore(ctx, 42))

	cache, ok, _ := log.StateCache(ctx)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"tasks":{}}`), []byte(cache.State))
	assert.Equal(t, models.VectorClock{"restore-client": 1}, cache.VectorClock)

	clock, _ := log.VectorClock(ctx)
	assert.Equal(t, models.VectorClock{"restore-client": 1}, clock)

	protected, _ := log.ProtectedClientIDs(ctx)
	assert.Contains(t, protected, "restore-client")

	// The stale op is gone; the new baseline rides out as a pending import.
	pending, _ := log.PendingOps(ctx)
	require.Len(t, pending, 1)
	imp := pending[0]
	assert.Equal(t, models.OpBackupImport, imp.OpType)
	assert.Equal(t, models.EntityAll, imp.EntityType)
	assert.Equal(t, "restore-client", imp.ClientID)
	assert.Equal(t, int64(7_000), imp.Timestamp)
	assert.True(t, imp.IsFullState())
}

func TestRestore_RetriesTimeoutsOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	r, transport, _ := newTestRestore(t, ctrl, 4)

	gomock.InOrder(
		transport.EXPECT().GetStateAtSeq(gomock.Any(), int64(7)).
			Return(models.StateAtSeq{}, adapter.ErrGatewayTimeout),
		transport.EXPECT().GetStateAtSeq(gomock.Any(), int64(7)).
			Return(models.StateAtSeq{State: []byte(`{}`), ServerSeq: 7}, nil),
	)
	transport.EXPECT().SetLastServerSeq(gomock.Any(), int64(7)).Return(nil)

	require.NoError(t, r.Restore(context.Background(), 7))
}

func TestRestore_NonTimeoutFailsImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	r, transport, log := newTestRestore(t, ctrl, 4)

	// Exactly one attempt: a 404 is not a transient condition.
	transport.EXPECT().GetStateAtSeq(gomock.Any(), int64(7)).
		Return(models.StateAtSeq{}, adapter.ErrNotFound).Times(1)

	err := r.Restore(context.Background(), 7)
	require.ErrorIs(t, err, ErrRestoreFailed)
	require.ErrorIs(t, err, adapter.ErrNotFound)

	// Local state untouched on failure.
	pending, _ := log.PendingOps(context.Background())
	assert.Empty(t, pending)
	_, ok, _ := log.StateCache(context.Background())
	assert.False(t, ok)
}

func TestRestore_ExhaustionKeepsOriginalError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	r, transport, _ := newTestRestore(t, ctrl, 3)

	transport.EXPECT().GetStateAtSeq(gomock.Any(), int64(7)).
		Return(models.StateAtSeq{}, adapter.ErrGatewayTimeout).Times(3)

	err := r.Restore(context.Background(), 7)
	require.ErrorIs(t, err, ErrRestoreFailed)
	require.ErrorIs(t, err, adapter.ErrGatewayTimeout)
}

func TestRestore_RestorePointsPassthrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	r, transport, _ := newTestRestore(t, ctrl, 1)

	points := []models.RestorePoint{{ServerSeq: 9, Type: "snapshot", ClientID: "other"}}
	transport.EXPECT().GetRestorePoints(gomock.Any(), 20).Return(points, nil)

	got, err := r.RestorePoints(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}
