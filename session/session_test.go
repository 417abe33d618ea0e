package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charles-mendoza/agile-poker/db"
	"github.com/charles-mendoza/agile-poker/models"
)

func newTestManager(t *testing.T) (*Manager, db.RoomStore) {
	t.Helper()
	store := db.NewMemoryStore()
	t.Cleanup(store.Close)
	_, err := store.Create(context.Background(), "room-1")
	require.NoError(t, err)
	return NewManager(store), store
}

func TestJoin_FirstPlayerBecomesModerator(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t)
	ctx := context.Background()

	first, err := m.Join(ctx, "room-1", "", "Alice")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.True(t, first.IsModerator)
	assert.Nil(t, first.Vote)
	assert.False(t, first.Voted)

	second, err := m.Join(ctx, "room-1", "", "Bob")
	require.NoError(t, err)
	assert.False(t, second.IsModerator)

	room, err := store.Get(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, room.Players, 2)
	assert.True(t, room.Players[first.ID].IsModerator)
	assert.False(t, room.Players[second.ID].IsModerator)
}

func TestJoin_RestoresKnownPlayerWithoutRename(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Join(ctx, "room-1", "", "Alice")
	require.NoError(t, err)

	// Rejoining with the cached id restores identity; the submitted name
	// is ignored and the moderator role is sticky.
	again, err := m.Join(ctx, "room-1", first.ID, "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Alice", again.Name)
	assert.True(t, again.IsModerator)
}

func TestJoin_KeepsDeviceAssignedID(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	ctx := context.Background()

	player, err := m.Join(ctx, "room-1", "device-id-7", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "device-id-7", player.ID)
}

func TestJoin_Errors(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Join(ctx, "room-1", "", "")
	assert.ErrorIs(t, err, models.ErrInvalidPlayerName)

	_, err = m.Join(ctx, "missing", "", "Alice")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}
