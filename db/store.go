// Package db adapts the external room document store. The state machine
// never talks to a store directly; it produces patches and the adapter
// applies them as atomic multi-field updates, echoing a fresh snapshot to
// every subscriber of the room, the writer included.
package db

import (
	"context"

	"github.com/charles-mendoza/agile-poker/models"
)

// Snapshot is one emission of a room's subscribe stream. Room is nil when
// the document does not exist, so a missing room is a signal rather than
// an error. The channel is closed on unsubscribe or on a terminal
// transport failure.
type Snapshot struct {
	Room *models.Room
}

// RoomStore is the document store contract: create-if-absent, get-once,
// subscribe-snapshot and atomic multi-field patch. There is no
// optimistic-concurrency token; the last writer wins per patch.
type RoomStore interface {
	// Create writes the initial setup-phase room. Returns
	// models.ErrRoomExists when the id is taken.
	Create(ctx context.Context, roomID string) (*models.Room, error)

	// Get returns a copy of the current room document, or
	// models.ErrRoomNotFound.
	Get(ctx context.Context, roomID string) (*models.Room, error)

	// Subscribe starts a snapshot stream for the room. The current state
	// (or absence) is delivered first, then every change including this
	// client's own writes. The cancel func stops further deliveries and
	// closes the channel.
	Subscribe(roomID string) (<-chan Snapshot, func())

	// Apply runs a validated patch against the room document as one
	// atomic update.
	Apply(ctx context.Context, roomID string, patch models.Patch) error

	// Close releases the store's resources and terminates all streams.
	Close()
}
