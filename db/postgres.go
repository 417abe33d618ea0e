package db

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/charles-mendoza/agile-poker/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// roomUpdatesChannel is the pg NOTIFY channel carrying changed room ids.
const roomUpdatesChannel = "room_updates"

// PostgresStore keeps each room as one JSONB document. Patches are applied
// under a row lock inside a transaction, then the room id is NOTIFYed so
// every server process can fan the fresh snapshot out to its subscribers,
// the writer included.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger

	mutex       sync.Mutex
	subscribers map[string]map[chan Snapshot]bool
	closed      bool

	stopListen context.CancelFunc
	listenDone chan struct{}
}

// NewPostgresStore migrates the schema, opens the pool and starts the
// LISTEN loop.
func NewPostgresStore(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	if err := migrate(dsn); err != nil {
		return nil, fmt.Errorf("migrating rooms schema: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	listenCtx, stop := context.WithCancel(context.Background())
	s := &PostgresStore{
		pool:        pool,
		log:         log,
		subscribers: make(map[string]map[chan Snapshot]bool),
		stopListen:  stop,
		listenDone:  make(chan struct{}),
	}
	go s.listen(listenCtx)
	return s, nil
}

func migrate(dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(sqlDB, "migrations")
}

func (s *PostgresStore) Create(ctx context.Context, roomID string) (*models.Room, error) {
	room := models.NewRoom(roomID)
	doc, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encoding room: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		roomID, doc)
	if err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrRoomExists
	}

	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, roomUpdatesChannel, roomID); err != nil {
		s.log.Warn().Err(err).Str("room", roomID).Msg("notify after create failed")
	}
	return room, nil
}

func (s *PostgresStore) Get(ctx context.Context, roomID string) (*models.Room, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM rooms WHERE id = $1`, roomID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading room: %w", err)
	}

	var room models.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return nil, fmt.Errorf("decoding room: %w", err)
	}
	return &room, nil
}

func (s *PostgresStore) Subscribe(roomID string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, snapshotBuffer)

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		close(ch)
		return ch, func() {}
	}
	if s.subscribers[roomID] == nil {
		s.subscribers[roomID] = make(map[chan Snapshot]bool)
	}
	s.subscribers[roomID][ch] = true
	s.mutex.Unlock()

	// Initial snapshot; absence is delivered, not raised.
	room, err := s.Get(context.Background(), roomID)
	if err != nil && !errors.Is(err, models.ErrRoomNotFound) {
		s.log.Error().Err(err).Str("room", roomID).Msg("initial snapshot read failed")
	}
	s.send(roomID, ch, Snapshot{Room: room})

	cancel := func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if subs, ok := s.subscribers[roomID]; ok && subs[ch] {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(s.subscribers, roomID)
			}
			close(ch)
		}
	}
	return ch, cancel
}

func (s *PostgresStore) Apply(ctx context.Context, roomID string, patch models.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting patch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var doc []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("locking room: %w", err)
	}

	var room models.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return fmt.Errorf("decoding room: %w", err)
	}
	if err := patch.Apply(&room); err != nil {
		return err
	}
	updated, err := json.Marshal(&room)
	if err != nil {
		return fmt.Errorf("encoding room: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE rooms SET doc = $2, updated_at = now() WHERE id = $1`, roomID, updated); err != nil {
		return fmt.Errorf("writing room: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, roomUpdatesChannel, roomID); err != nil {
		return fmt.Errorf("notifying room change: %w", err)
	}
	return tx.Commit(ctx)
}

// Close stops the LISTEN loop, terminates all streams and closes the pool.
func (s *PostgresStore) Close() {
	s.stopListen()
	<-s.listenDone

	s.mutex.Lock()
	s.closed = true
	for roomID, subs := range s.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(s.subscribers, roomID)
	}
	s.mutex.Unlock()

	s.pool.Close()
}

// listen holds one dedicated connection on the NOTIFY channel and turns
// each notification into a snapshot fan-out for that room's subscribers.
func (s *PostgresStore) listen(ctx context.Context) {
	defer close(s.listenDone)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.terminate(err)
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+roomUpdatesChannel); err != nil {
		s.terminate(err)
		return
	}

	for {
		note, err := conn.Conn().WaitForNotification(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.terminate(err)
			return
		}
		s.broadcast(ctx, note.Payload)
	}
}

func (s *PostgresStore) broadcast(ctx context.Context, roomID string) {
	s.mutex.Lock()
	subs := make([]chan Snapshot, 0, len(s.subscribers[roomID]))
	for ch := range s.subscribers[roomID] {
		subs = append(subs, ch)
	}
	s.mutex.Unlock()

	if len(subs) == 0 {
		return
	}

	room, err := s.Get(ctx, roomID)
	if err != nil && !errors.Is(err, models.ErrRoomNotFound) {
		s.log.Error().Err(err).Str("room", roomID).Msg("snapshot read after notify failed")
		return
	}
	for _, ch := range subs {
		snap := Snapshot{Room: room}
		if room != nil {
			snap.Room = room.Clone()
		}
		s.send(roomID, ch, snap)
	}
}

// send delivers without blocking; slow subscribers drop intermediate
// snapshots.
func (s *PostgresStore) send(roomID string, ch chan Snapshot, snap Snapshot) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if subs, ok := s.subscribers[roomID]; !ok || !subs[ch] {
		return
	}
	select {
	case ch <- snap:
	default:
	}
}

// terminate closes every stream after an unrecoverable transport failure.
func (s *PostgresStore) terminate(err error) {
	s.log.Error().Err(err).Msg("room update listener failed, closing streams")

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for roomID, subs := range s.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(s.subscribers, roomID)
	}
}
