// Package db implements the sqlite persistence layer: an append-only room
// event log plus running player scores.
package db

import (
	"database/sql"
	"fmt"
)

// RoomEvent is one appended row of a room's event log.
type RoomEvent struct {
	ID        int64
	RoomID    string
	Seq       uint64
	Type      string
	Payload   string
	CreatedAt string
}

// DB wraps the sqlite connection.
type DB struct {
	*sql.DB
}

// NewDB opens the database file and creates the schema if missing.
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS room_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS room_events_room_seq
		ON room_events (room_id, seq)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS player_scores (
			room_id TEXT NOT NULL,
			player TEXT NOT NULL,
			score INTEGER NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (room_id, player)
		)
	`)
	return err
}

// AppendRoomEvent appends one event row. The log is append-only; rows are
// never updated or deleted.
func (db *DB) AppendRoomEvent(ev *RoomEvent) error {
	_, err := db.Exec(`
		INSERT INTO room_events (room_id, seq, event_type, payload)
		VALUES (?, ?, ?, ?)
	`, ev.RoomID, ev.Seq, ev.Type, ev.Payload)
	if err != nil {
		return fmt.Errorf("failed to append room event: %v", err)
	}
	return nil
}

// LoadRoomEvents returns a room's full event log in sequence order.
func (db *DB) LoadRoomEvents(roomID string) ([]*RoomEvent, error) {
	rows, err := db.Query(`
		SELECT id, room_id, seq, event_type, payload, created_at
		FROM room_events WHERE room_id = ? ORDER BY seq
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room events: %v", err)
	}
	defer rows.Close()

	var events []*RoomEvent
	for rows.Next() {
		ev := &RoomEvent{}
		if err := rows.Scan(&ev.ID, &ev.RoomID, &ev.Seq, &ev.Type, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SavePlayerScore upserts a player's running score for a room.
func (db *DB) SavePlayerScore(roomID, player string, score int) error {
	_, err := db.Exec(`
		INSERT INTO player_scores (room_id, player, score, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id, player) DO UPDATE SET
			score = excluded.score,
			updated_at = CURRENT_TIMESTAMP
	`, roomID, player, score)
	if err != nil {
		return fmt.Errorf("failed to save player score: %v", err)
	}
	return nil
}

// LoadPlayerScores returns the saved scores for a room keyed by player.
func (db *DB) LoadPlayerScores(roomID string) (map[string]int, error) {
	rows, err := db.Query(`
		SELECT player, score FROM player_scores WHERE room_id = ?
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player scores: %v", err)
	}
	defer rows.Close()

	scores := make(map[string]int)
	for rows.Next() {
		var player string
		var score int
		if err := rows.Scan(&player, &score); err != nil {
			return nil, err
		}
		scores[player] = score
	}
	return scores, rows.Err()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
