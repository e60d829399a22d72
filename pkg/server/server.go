// Package server hosts rooms over websocket transport: seat management,
// action routing into each room's phase machine, broadcast fan-out with
// per-player queues for dropped connections, and an audit event log.
package server

import (
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/vctt94/bisonbotkit/logging"

	"liaptui/pkg/bot"
	"liaptui/pkg/server/internal/db"
	"liaptui/pkg/statemachine"
)

const (
	defaultDwellTime      = 3 * time.Second
	defaultBotThinkMin    = 500 * time.Millisecond
	defaultBotThinkMax    = 1500 * time.Millisecond
	defaultEventQueueSize = 256
	defaultEventWorkers   = 2

	// pendingLimit bounds the per-player broadcast queue kept while a
	// player is disconnected.
	pendingLimit = 256
)

// Config wires a server.
type Config struct {
	DB         Database
	LogBackend *logging.LogBackend

	// DwellTime is passed to each room's machine for display phases.
	DwellTime time.Duration
	// BotThinkMin and BotThinkMax bound the bot thinking delay.
	BotThinkMin time.Duration
	BotThinkMax time.Duration
	// Seed makes deals deterministic when nonzero.
	Seed int64

	EventQueueSize int
	EventWorkers   int
}

type clientKey struct {
	room   string
	player string
}

// wireFrame is the JSON envelope for everything sent to a client.
type wireFrame struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Server owns the room registry, the client registry and the event
// pipeline. It implements statemachine.Broadcaster: machine broadcasts fan
// out to connected clients, queue for disconnected ones and feed the audit
// log, never calling back into a machine.
type Server struct {
	cfg    Config
	log    slog.Logger
	db     Database
	events *EventProcessor

	mu      sync.RWMutex
	rooms   map[string]*Room
	clients map[clientKey]*wsClient
	pending map[clientKey][]wireFrame
}

// NewServer creates a server and starts its event pipeline.
func NewServer(cfg Config) *Server {
	if cfg.DwellTime == 0 {
		cfg.DwellTime = defaultDwellTime
	}
	if cfg.BotThinkMin == 0 && cfg.BotThinkMax == 0 {
		cfg.BotThinkMin = defaultBotThinkMin
		cfg.BotThinkMax = defaultBotThinkMax
	}
	if cfg.EventQueueSize == 0 {
		cfg.EventQueueSize = defaultEventQueueSize
	}
	if cfg.EventWorkers == 0 {
		cfg.EventWorkers = defaultEventWorkers
	}

	s := &Server{
		cfg:     cfg,
		log:     subLogger(cfg.LogBackend, "SRVR"),
		db:      cfg.DB,
		rooms:   make(map[string]*Room),
		clients: make(map[clientKey]*wsClient),
		pending: make(map[clientKey][]wireFrame),
	}
	s.events = NewEventProcessor(cfg.DB, s.log, cfg.EventQueueSize, cfg.EventWorkers)
	s.events.Start()
	return s
}

// Close stops the event pipeline. The database is owned by the caller.
func (s *Server) Close() {
	s.events.Stop()
}

func subLogger(backend *logging.LogBackend, subsystem string) slog.Logger {
	if backend == nil {
		return slog.Disabled
	}
	return backend.Logger(subsystem)
}

func (s *Server) roomLogger() slog.Logger { return subLogger(s.cfg.LogBackend, "ROOM") }
func (s *Server) gameLogger() slog.Logger { return subLogger(s.cfg.LogBackend, "GAME") }

// botDecider builds the decision source installed on bot seats and on
// seats taken over after a disconnect.
func (s *Server) botDecider() statemachine.Decider {
	return statemachine.BotDecider{
		Oracle: bot.New(bot.Config{
			Log: subLogger(s.cfg.LogBackend, "BOT"),
		}),
		MinThink: s.cfg.BotThinkMin,
		MaxThink: s.cfg.BotThinkMax,
	}
}

// RoomEvents returns a room's persisted audit log in sequence order. The
// log is for debugging and audit; live play never replays it.
func (s *Server) RoomEvents(roomID string) ([]*db.RoomEvent, error) {
	return s.db.LoadRoomEvents(roomID)
}

// CreateRoom creates a room hosted by the named player.
func (s *Server) CreateRoom(host string) *Room {
	r := newRoom(s, host)
	s.mu.Lock()
	s.rooms[r.ID] = r
	s.mu.Unlock()
	s.log.Infof("room %s created by %s", r.ID, host)
	return r
}

// Room finds a room by ID.
func (s *Server) Room(id string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrUnknownRoom
	}
	return r, nil
}

// Rooms lists all rooms.
func (s *Server) Rooms() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// removeRoomIfEmpty drops a room once no human remains before start.
// Started rooms persist: disconnected players keep their seats.
func (s *Server) removeRoomIfEmpty(r *Room) {
	if r.Started() || !r.Empty() {
		return
	}
	s.mu.Lock()
	delete(s.rooms, r.ID)
	for key := range s.pending {
		if key.room == r.ID {
			delete(s.pending, key)
		}
	}
	s.mu.Unlock()
	s.log.Infof("room %s removed (empty)", r.ID)
}

// Broadcast fans a machine event out to the room's human players and the
// event pipeline. Connected clients get it on their send queue; players
// without a live connection get it queued for their reconnect.
func (s *Server) Broadcast(roomID, eventType string, payload map[string]any) {
	s.events.Publish(&RoomEvent{
		RoomID:    roomID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	})

	s.mu.RLock()
	room := s.rooms[roomID]
	s.mu.RUnlock()
	if room == nil {
		return
	}

	frame := wireFrame{Type: eventType, Payload: payload}
	for _, name := range room.humanNames() {
		key := clientKey{room: roomID, player: name}
		s.mu.Lock()
		if c, ok := s.clients[key]; ok {
			s.mu.Unlock()
			c.trySend(frame)
			continue
		}
		s.pending[key] = appendBounded(s.pending[key], frame)
		s.mu.Unlock()
	}
}

// appendBounded keeps the pending queue under pendingLimit. When full,
// incidental events are evicted before phase transitions, oldest first.
func appendBounded(queue []wireFrame, frame wireFrame) []wireFrame {
	if len(queue) < pendingLimit {
		return append(queue, frame)
	}
	evict := 0
	for i, f := range queue {
		if f.Type != statemachine.EventPhaseChange {
			evict = i
			break
		}
	}
	queue = append(queue[:evict], queue[evict+1:]...)
	return append(queue, frame)
}

// attachClient registers a client as the live connection for its seat and
// flushes any broadcasts queued while it was away, in order.
func (s *Server) attachClient(c *wsClient) {
	key := clientKey{room: c.room, player: c.player}
	s.mu.Lock()
	if prev, ok := s.clients[key]; ok && prev != c {
		prev.close()
	}
	s.clients[key] = c
	queued := s.pending[key]
	delete(s.pending, key)
	s.mu.Unlock()

	for _, frame := range queued {
		c.trySend(frame)
	}
}

// detachClient unregisters a client and reports whether it was still the
// live connection for its seat. A false return means a replacement socket
// already took the seat over.
func (s *Server) detachClient(c *wsClient) bool {
	key := clientKey{room: c.room, player: c.player}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[key] == c {
		delete(s.clients, key)
		return true
	}
	return false
}
