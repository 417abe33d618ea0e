package db

import (
	"context"
	"sync"
	"time"

	"github.com/charles-mendoza/agile-poker/models"
)

// snapshotBuffer sizes each subscriber channel. Sends are non-blocking; a
// subscriber that falls this far behind loses intermediate snapshots and
// catches up on the next one.
const snapshotBuffer = 10

type roomEntry struct {
	doc         *models.Room
	subscribers map[chan Snapshot]bool
	idleSince   time.Time
}

// MemoryStore is the in-process RoomStore. It backs tests and single-node
// deployments.
type MemoryStore struct {
	rooms map[string]*roomEntry
	// pending holds streams opened before their room exists; they get an
	// absent snapshot up front and attach when the room is created.
	pending map[string]map[chan Snapshot]bool
	mutex   sync.RWMutex
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:   make(map[string]*roomEntry),
		pending: make(map[string]map[chan Snapshot]bool),
	}
}

func (s *MemoryStore) Create(_ context.Context, roomID string) (*models.Room, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.rooms[roomID]; exists {
		return nil, models.ErrRoomExists
	}

	entry := &roomEntry{
		doc:         models.NewRoom(roomID),
		subscribers: make(map[chan Snapshot]bool),
		idleSince:   time.Now(),
	}
	for ch := range s.pending[roomID] {
		entry.subscribers[ch] = true
	}
	delete(s.pending, roomID)
	s.rooms[roomID] = entry
	entry.broadcast()

	return entry.doc.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, roomID string) (*models.Room, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, exists := s.rooms[roomID]
	if !exists {
		return nil, models.ErrRoomNotFound
	}
	return entry.doc.Clone(), nil
}

// Subscribe registers a snapshot channel for the room. The document may
// not exist yet; the stream then opens with an absent snapshot and picks
// up once the room is created.
func (s *MemoryStore) Subscribe(roomID string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, snapshotBuffer)

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		close(ch)
		return ch, func() {}
	}

	if entry, exists := s.rooms[roomID]; exists {
		entry.subscribers[ch] = true
		ch <- Snapshot{Room: entry.doc.Clone()}
	} else {
		if s.pending[roomID] == nil {
			s.pending[roomID] = make(map[chan Snapshot]bool)
		}
		s.pending[roomID][ch] = true
		ch <- Snapshot{}
	}
	s.mutex.Unlock()

	cancel := func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if entry, exists := s.rooms[roomID]; exists && entry.subscribers[ch] {
			delete(entry.subscribers, ch)
			close(ch)
			return
		}
		if subs, exists := s.pending[roomID]; exists && subs[ch] {
			delete(subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *MemoryStore) Apply(_ context.Context, roomID string, patch models.Patch) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.rooms[roomID]
	if !exists {
		return models.ErrRoomNotFound
	}
	if err := patch.Apply(entry.doc); err != nil {
		return err
	}
	entry.idleSince = time.Now()
	entry.broadcast()
	return nil
}

// Close terminates every subscriber stream and drops all rooms.
func (s *MemoryStore) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, entry := range s.rooms {
		for ch := range entry.subscribers {
			close(ch)
		}
		delete(s.rooms, id)
	}
	for id, subs := range s.pending {
		for ch := range subs {
			close(ch)
		}
		delete(s.pending, id)
	}
}

// CleanupIdleRooms drops rooms with no players, no subscribers and no
// writes for at least maxIdle. Returns the number removed. The spec
// leaves room expiry to the store, so this is the store's own janitor.
func (s *MemoryStore) CleanupIdleRooms(maxIdle time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := 0
	cutoff := time.Now().Add(-maxIdle)
	for id, entry := range s.rooms {
		if len(entry.doc.Players) > 0 || len(entry.subscribers) > 0 {
			continue
		}
		if entry.idleSince.After(cutoff) {
			continue
		}
		delete(s.rooms, id)
		count++
	}
	return count
}

// broadcast fans the current document out to every subscriber. Sends are
// non-blocking so one stuck client cannot stall a room.
func (e *roomEntry) broadcast() {
	for ch := range e.subscribers {
		select {
		case ch <- Snapshot{Room: e.doc.Clone()}:
		default:
		}
	}
}
