// Package session handles anonymous player identity. Players are
// self-assigned and trusted: a device brings a cached (id, name) pair back
// to the room, or gets a fresh id on first join. The first player a room
// ever sees becomes the moderator and keeps the role for the lifetime of
// the room.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/charles-mendoza/agile-poker/db"
	"github.com/charles-mendoza/agile-poker/models"
)

// Manager joins players into rooms through the store.
type Manager struct {
	store db.RoomStore
}

// NewManager creates a session manager on top of the given store.
func NewManager(store db.RoomStore) *Manager {
	return &Manager{store: store}
}

// Join ensures a player entry exists in the room and returns it. An empty
// playerID means a first visit from this device and gets a generated id.
// Known players are restored untouched; their cached name wins over the
// submitted one so a rejoin never renames anyone.
func (m *Manager) Join(ctx context.Context, roomID, playerID, name string) (*models.Player, error) {
	room, err := m.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if playerID != "" {
		if existing, ok := room.Players[playerID]; ok {
			return existing, nil
		}
	}
	if name == "" {
		return nil, models.ErrInvalidPlayerName
	}
	if playerID == "" {
		playerID = uuid.New().String()
	}

	player := models.Player{
		ID:          playerID,
		Name:        name,
		IsModerator: len(room.Players) == 0,
	}
	patch := models.Patch{models.UpsertPlayer{Player: player}}
	if err := m.store.Apply(ctx, roomID, patch); err != nil {
		return nil, fmt.Errorf("joining room: %w", err)
	}
	return &player, nil
}
