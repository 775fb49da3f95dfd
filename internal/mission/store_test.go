package mission

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grcorsair/corsair-sub002/internal/drift"
	"github.com/grcorsair/corsair-sub002/internal/raid"
	"github.com/grcorsair/corsair-sub002/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(DefaultStoreConfig(filepath.Join(t.TempDir(), "missions.db")))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func storedResult(target string) *Result {
	return &Result{
		MissionID: types.NewID(),
		Name:      "posture check",
		Target:    target,
		Provider:  "aws-cognito",
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
}

func TestStore_SaveAndFinishRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	result := storedResult("pool-a")
	require.NoError(t, store.Save(ctx, result))

	record, err := store.Get(ctx, result.MissionID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, record.Status)
	assert.Nil(t, record.RaidSuccess)
	assert.Nil(t, record.CompletedAt)

	result.Status = StatusCompleted
	result.Drift = drift.Result{Target: "pool-a", DriftDetected: true}
	result.Raid = &raid.Result{Success: true}
	result.EvidencePath = "/tmp/mission.jsonl"
	result.CompletedAt = time.Now()
	require.NoError(t, store.Finish(ctx, result))

	record, err = store.Get(ctx, result.MissionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)
	assert.True(t, record.Drift)
	require.NotNil(t, record.RaidSuccess)
	assert.True(t, *record.RaidSuccess)
	assert.Equal(t, "/tmp/mission.jsonl", record.EvidencePath)
	require.NotNil(t, record.CompletedAt)
}

func TestStore_GetUnknownMission(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), types.NewID())
	require.Error(t, err)
	assert.Equal(t, types.MISSION_NOT_FOUND, types.CodeOf(err))
}

func TestStore_ListByTarget(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := storedResult("pool-a")
	first.StartedAt = time.Now().Add(-time.Hour)
	second := storedResult("pool-a")
	other := storedResult("pool-b")

	for _, r := range []*Result{first, second, other} {
		require.NoError(t, store.Save(ctx, r))
	}

	records, err := store.ListByTarget(ctx, "pool-a", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.MissionID, records[0].MissionID, "newest first")
	assert.Equal(t, first.MissionID, records[1].MissionID)

	limited, err := store.ListByTarget(ctx, "pool-a", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStore_DuplicateSaveFails(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	result := storedResult("pool-a")
	require.NoError(t, store.Save(ctx, result))

	err := store.Save(ctx, result)
	require.Error(t, err)
	assert.Equal(t, types.MISSION_STORE_FAILED, types.CodeOf(err))
}

func TestOrchestrator_PersistsMissionHistory(t *testing.T) {
	store := openTestStore(t)
	o := NewOrchestrator(nil, nil, t.TempDir(), WithStore(store))

	result, err := o.Execute(context.Background(), Spec{
		Name:       "stored drill",
		ProviderID: "aws-cognito",
		Snapshot:   userPoolSnapshot("OFF"),
		Vector:     "mfa-bypass",
		Intensity:  4,
	})
	require.NoError(t, err)

	record, err := store.Get(context.Background(), result.MissionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)
	require.NotNil(t, record.RaidSuccess)
	assert.True(t, *record.RaidSuccess)
	assert.Equal(t, result.EvidencePath, record.EvidencePath)
}
