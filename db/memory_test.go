package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charles-mendoza/agile-poker/models"
)

func recvSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	room, err := store.Create(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "room-1", room.ID)
	assert.Equal(t, models.StateSetup, room.State)
	assert.Empty(t, room.Stories)
	assert.Empty(t, room.Players)

	got, err := store.Get(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestMemoryStore_CreateConflict(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.Create(ctx, "room-1")
	require.NoError(t, err)

	_, err = store.Create(ctx, "room-1")
	assert.ErrorIs(t, err, models.ErrRoomExists)
}

func TestMemoryStore_SubscribeDeliversOwnWrites(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.Create(ctx, "room-1")
	require.NoError(t, err)

	snapshots, cancel := store.Subscribe("room-1")
	defer cancel()

	initial := recvSnapshot(t, snapshots)
	require.NotNil(t, initial.Room)
	assert.Equal(t, models.StateSetup, initial.Room.State)

	patch := models.Patch{models.UpsertPlayer{Player: models.Player{ID: "p1", Name: "Alice", IsModerator: true}}}
	require.NoError(t, store.Apply(ctx, "room-1", patch))

	// The writer's own patch is echoed back through the stream.
	echoed := recvSnapshot(t, snapshots)
	require.NotNil(t, echoed.Room)
	require.Contains(t, echoed.Room.Players, "p1")
	assert.Equal(t, "Alice", echoed.Room.Players["p1"].Name)
}

func TestMemoryStore_SnapshotsDoNotAliasLiveDocument(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.Create(ctx, "room-1")
	require.NoError(t, err)

	snapshots, cancel := store.Subscribe("room-1")
	defer cancel()
	snap := recvSnapshot(t, snapshots)

	snap.Room.Name = "mutated"

	got, err := store.Get(ctx, "room-1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", got.Name)
}

func TestMemoryStore_SubscribeMissingRoom(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	snapshots, cancel := store.Subscribe("later")
	defer cancel()

	// Absence is a signal, not an error.
	absent := recvSnapshot(t, snapshots)
	assert.Nil(t, absent.Room)

	// The stream attaches once the room appears.
	_, err := store.Create(ctx, "later")
	require.NoError(t, err)

	created := recvSnapshot(t, snapshots)
	require.NotNil(t, created.Room)
	assert.Equal(t, "later", created.Room.ID)
}

func TestMemoryStore_CancelStopsDeliveries(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.Create(ctx, "room-1")
	require.NoError(t, err)

	snapshots, cancel := store.Subscribe("room-1")
	recvSnapshot(t, snapshots)

	cancel()
	// Cancel is idempotent.
	cancel()

	_, ok := <-snapshots
	assert.False(t, ok, "channel should be closed after cancel")

	patch := models.Patch{models.SetState{State: models.StateVoting}}
	require.NoError(t, store.Apply(ctx, "room-1", patch))
}

func TestMemoryStore_ApplyInvalidPatch(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.Create(ctx, "room-1")
	require.NoError(t, err)

	err = store.Apply(ctx, "room-1", models.Patch{models.SetState{State: "paused"}})
	assert.ErrorIs(t, err, models.ErrInvalidPatch)

	err = store.Apply(ctx, "missing", models.Patch{models.SetState{State: models.StateVoting}})
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestMemoryStore_CleanupIdleRooms(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.Create(ctx, "empty-idle")
	require.NoError(t, err)

	_, err = store.Create(ctx, "occupied")
	require.NoError(t, err)
	patch := models.Patch{models.UpsertPlayer{Player: models.Player{ID: "p1", Name: "Alice"}}}
	require.NoError(t, store.Apply(ctx, "occupied", patch))

	_, err = store.Create(ctx, "watched")
	require.NoError(t, err)
	_, cancel := store.Subscribe("watched")
	defer cancel()

	removed := store.CleanupIdleRooms(0)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, "empty-idle")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
	_, err = store.Get(ctx, "occupied")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "watched")
	assert.NoError(t, err)
}
