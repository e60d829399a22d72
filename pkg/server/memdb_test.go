package server

import (
	"sync"

	"liaptui/pkg/server/internal/db"
)

// memDB is the in-memory Database used by tests.
type memDB struct {
	mu     sync.Mutex
	events []*db.RoomEvent
	scores map[string]map[string]int
	closed bool
}

func newMemDB() *memDB {
	return &memDB{scores: make(map[string]map[string]int)}
}

func (m *memDB) AppendRoomEvent(ev *db.RoomEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *ev
	copied.ID = int64(len(m.events) + 1)
	m.events = append(m.events, &copied)
	return nil
}

func (m *memDB) LoadRoomEvents(roomID string) ([]*db.RoomEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*db.RoomEvent
	for _, ev := range m.events {
		if ev.RoomID == roomID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memDB) SavePlayerScore(roomID, player string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scores[roomID] == nil {
		m.scores[roomID] = make(map[string]int)
	}
	m.scores[roomID][player] = score
	return nil
}

func (m *memDB) LoadPlayerScores(roomID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for player, score := range m.scores[roomID] {
		out[player] = score
	}
	return out, nil
}

func (m *memDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memDB) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
