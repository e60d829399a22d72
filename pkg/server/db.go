package server

import (
	"fmt"
	"os"
	"path/filepath"

	"liaptui/pkg/server/internal/db"
)

// Database is the persistence boundary for the server: an append-only room
// event log for audit and debugging, plus running player scores.
type Database interface {
	// AppendRoomEvent appends one event to a room's log.
	AppendRoomEvent(ev *db.RoomEvent) error
	// LoadRoomEvents returns a room's full log in sequence order.
	LoadRoomEvents(roomID string) ([]*db.RoomEvent, error)

	// SavePlayerScore upserts a player's running score.
	SavePlayerScore(roomID, player string, score int) error
	// LoadPlayerScores returns saved scores keyed by player.
	LoadPlayerScores(roomID string) (map[string]int, error)

	// Close closes the database connection.
	Close() error
}

// NewDatabase opens (creating if needed) the sqlite database at dbPath.
func NewDatabase(dbPath string) (Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}
	return db.NewDB(dbPath)
}
