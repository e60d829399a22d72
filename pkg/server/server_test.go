package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liaptui/pkg/game"
	"liaptui/pkg/statemachine"
)

func newTestServer(t *testing.T) (*Server, *memDB) {
	t.Helper()
	mdb := newMemDB()
	s := NewServer(Config{
		DB:          mdb,
		DwellTime:   time.Millisecond,
		BotThinkMin: time.Millisecond,
		BotThinkMax: 2 * time.Millisecond,
		Seed:        7,
	})
	t.Cleanup(s.Close)
	return s, mdb
}

// fullRoom seats three more humans next to the host.
func fullRoom(t *testing.T, s *Server) *Room {
	t.Helper()
	r := s.CreateRoom("alice")
	for _, name := range []string{"bob", "carol", "dave"} {
		require.NoError(t, r.Join(name, -1))
	}
	return r
}

func TestRoomSeating(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.CreateRoom("alice")

	require.Equal(t, "alice", r.Host())
	require.True(t, r.HasPlayer("alice"))

	require.NoError(t, r.Join("bob", 2))
	require.ErrorIs(t, r.Join("carol", 2), ErrSeatTaken)
	require.Error(t, r.Join("bob", 3)) // already seated

	require.NoError(t, r.Join("carol", -1))
	require.NoError(t, r.Join("dave", -1))
	require.ErrorIs(t, r.Join("erin", -1), ErrRoomFull)

	seats := r.Seats()
	require.NotNil(t, seats[1])
	assert.Equal(t, "carol", seats[1].Name) // first free slot after host
}

func TestRoomAddBotHostOnly(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.CreateRoom("alice")
	require.NoError(t, r.Join("bob", -1))

	_, err := r.AddBot("bob", -1)
	require.ErrorIs(t, err, ErrNotHost)

	name, err := r.AddBot("alice", -1)
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	seats := r.Seats()
	assert.True(t, seats[2].IsBot)
}

func TestRoomStartRequiresFullTable(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.CreateRoom("alice")
	require.NoError(t, r.Join("bob", -1))

	require.ErrorIs(t, r.Start("bob"), ErrNotHost)
	require.ErrorIs(t, r.Start("alice"), ErrSeatsOpen)

	_, err := r.AddBot("alice", -1)
	require.NoError(t, err)
	_, err = r.AddBot("alice", -1)
	require.NoError(t, err)

	require.NoError(t, r.Start("alice"))
	require.True(t, r.Started())
	require.NotNil(t, r.Machine())
	assert.NotEqual(t, statemachine.PhaseWaiting, r.Machine().CurrentPhase())

	require.ErrorIs(t, r.Start("alice"), ErrRoomStarted)
	require.ErrorIs(t, r.Join("erin", -1), ErrRoomStarted)
	require.ErrorIs(t, r.Leave("bob"), ErrRoomStarted)
}

func TestRoomActionBeforeStart(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.CreateRoom("alice")
	_, err := r.HandleAction(statemachine.NewAction("alice", statemachine.ActionDeclare))
	require.ErrorIs(t, err, ErrRoomNotStarted)
}

func TestHostMigrationPrefersHumansInSeatOrder(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.CreateRoom("alice")
	require.NoError(t, r.Join("bob", -1))
	_, err := r.AddBot("alice", -1)
	require.NoError(t, err)

	require.NoError(t, r.Leave("alice"))
	assert.Equal(t, "bob", r.Host())

	require.NoError(t, r.Leave("bob"))
	// Only the bot remains; it becomes host so the room stays operable.
	seats := r.Seats()
	var botName string
	for _, seat := range seats {
		if seat != nil && seat.IsBot {
			botName = seat.Name
		}
	}
	assert.Equal(t, botName, r.Host())
	assert.True(t, r.Empty())
}

func TestRoomSeedDerivation(t *testing.T) {
	assert.NotEqual(t, roomSeed(7, "room-a"), roomSeed(7, "room-b"))
	assert.Equal(t, roomSeed(7, "room-a"), roomSeed(7, "room-a"))
	assert.Zero(t, roomSeed(0, "room-a"))
	assert.NotZero(t, roomSeed(7, "room-a"))
}

func TestRoomSummary(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.CreateRoom("alice")
	require.NoError(t, r.Join("bob", -1))

	sum := r.Summary()
	assert.Equal(t, r.ID, sum["room_id"])
	assert.Equal(t, "alice", sum["host"])
	assert.Equal(t, []string{"alice", "bob"}, sum["players"])
	assert.Equal(t, false, sum["started"])
	assert.NotEmpty(t, sum["created_at"])

	require.Len(t, s.Rooms(), 1)
}

func TestRemoveRoomIfEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	r := s.CreateRoom("alice")
	require.NoError(t, r.Leave("alice"))

	s.removeRoomIfEmpty(r)
	_, err := s.Room(r.ID)
	require.ErrorIs(t, err, ErrUnknownRoom)
}

func TestDisconnectBeforeStartFreesSeat(t *testing.T) {
	s, _ := newTestServer(t)
	r := fullRoom(t, s)

	r.PlayerDisconnected("bob")
	assert.False(t, r.HasPlayer("bob"))
	assert.Equal(t, "alice", r.Host())

	r.PlayerDisconnected("alice")
	assert.Equal(t, "carol", r.Host())
}

func TestDisconnectAfterStartKeepsSeatAndArmsBot(t *testing.T) {
	s, _ := newTestServer(t)
	r := fullRoom(t, s)
	require.NoError(t, r.Start("alice"))

	r.PlayerDisconnected("bob")
	require.True(t, r.HasPlayer("bob"))

	pl, err := r.Game().PlayerByName("bob")
	require.NoError(t, err)
	assert.True(t, pl.IsBot)
	assert.False(t, pl.IsConnected)

	res, err := r.PlayerReconnected("bob")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Data, "snapshot")
	assert.False(t, pl.IsBot)
	assert.True(t, pl.IsConnected)
}

func TestBroadcastQueuesForDisconnectedPlayers(t *testing.T) {
	s, mdb := newTestServer(t)
	r := fullRoom(t, s)

	s.Broadcast(r.ID, statemachine.EventPhaseChange, map[string]any{
		"sequence": uint64(1),
		"phase":    "PREPARATION",
	})

	// No client is attached, so every human's queue holds the frame.
	s.mu.RLock()
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		queued := s.pending[clientKey{room: r.ID, player: name}]
		require.Len(t, queued, 1, "queue for %s", name)
		assert.Equal(t, statemachine.EventPhaseChange, queued[0].Type)
	}
	s.mu.RUnlock()

	// The event pipeline persists it to the audit log.
	require.Eventually(t, func() bool {
		return mdb.eventCount() == 1
	}, time.Second, 5*time.Millisecond)

	events, err := mdb.LoadRoomEvents(r.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, statemachine.EventPhaseChange, events[0].Type)
}

func TestAppendBoundedEvictsIncidentalFirst(t *testing.T) {
	queue := make([]wireFrame, 0, pendingLimit)
	queue = append(queue, wireFrame{Type: statemachine.EventPhaseChange})
	queue = append(queue, wireFrame{Type: statemachine.EventPlayerPlayed})
	for len(queue) < pendingLimit {
		queue = append(queue, wireFrame{Type: statemachine.EventPlayerDeclared})
	}

	out := appendBounded(queue, wireFrame{Type: statemachine.EventTurnCompleted})
	require.Len(t, out, pendingLimit)
	// The oldest incidental frame went, not the phase change at the front.
	assert.Equal(t, statemachine.EventPhaseChange, out[0].Type)
	assert.Equal(t, statemachine.EventPlayerDeclared, out[1].Type)
	assert.Equal(t, statemachine.EventTurnCompleted, out[len(out)-1].Type)
}

func TestAppendBoundedAllCriticalDropsOldest(t *testing.T) {
	queue := make([]wireFrame, 0, pendingLimit)
	for i := 0; i < pendingLimit; i++ {
		queue = append(queue, wireFrame{Type: statemachine.EventPhaseChange})
	}
	out := appendBounded(queue, wireFrame{Type: statemachine.EventPhaseChange})
	require.Len(t, out, pendingLimit)
}

func TestEventProcessorPersistsScores(t *testing.T) {
	mdb := newMemDB()
	ep := NewEventProcessor(mdb, nil, 16, 1)
	ep.Start()
	defer ep.Stop()

	ep.Publish(&RoomEvent{
		RoomID: "room-1",
		Type:   statemachine.EventScoringCompleted,
		Payload: map[string]any{
			"sequence": uint64(9),
			"scores": []map[string]any{
				{"player": "alice", "total": 12},
				{"player": "bob", "total": -4},
			},
		},
	})

	require.Eventually(t, func() bool {
		scores, _ := mdb.LoadPlayerScores("room-1")
		return len(scores) == 2
	}, time.Second, 5*time.Millisecond)

	scores, err := mdb.LoadPlayerScores("room-1")
	require.NoError(t, err)
	assert.Equal(t, 12, scores["alice"])
	assert.Equal(t, -4, scores["bob"])
	assert.Equal(t, 1, mdb.eventCount())
}

// Scores that went through a JSON round trip arrive as []any with float64
// totals; they must persist just the same.
func TestEventProcessorPersistsDecodedScores(t *testing.T) {
	mdb := newMemDB()
	ep := NewEventProcessor(mdb, nil, 16, 1)
	ep.Start()
	defer ep.Stop()

	ep.Publish(&RoomEvent{
		RoomID: "room-2",
		Type:   statemachine.EventScoringCompleted,
		Payload: map[string]any{
			"sequence": uint64(3),
			"scores": []any{
				map[string]any{"player": "carol", "total": float64(8)},
				map[string]any{"player": "dave", "total": int64(-3)},
			},
		},
	})

	require.Eventually(t, func() bool {
		scores, _ := mdb.LoadPlayerScores("room-2")
		return len(scores) == 2
	}, time.Second, 5*time.Millisecond)

	scores, err := mdb.LoadPlayerScores("room-2")
	require.NoError(t, err)
	assert.Equal(t, 8, scores["carol"])
	assert.Equal(t, -3, scores["dave"])
}

func TestParseAction(t *testing.T) {
	payload := []byte(`{
		"type": "play_pieces",
		"pieces": [
			{"name": "GENERAL", "color": "RED"},
			{"name": "SOLDIER", "color": "BLACK"}
		]
	}`)
	a, err := parseAction("alice", json.RawMessage(payload))
	require.NoError(t, err)
	assert.Equal(t, statemachine.ActionPlayPieces, a.Type)
	assert.Equal(t, "alice", a.Player)
	require.Len(t, a.Pieces, 2)
	assert.Equal(t, game.Piece{Name: game.General, Color: game.Red}, a.Pieces[0])
	assert.Equal(t, game.Piece{Name: game.Soldier, Color: game.Black}, a.Pieces[1])

	declare := []byte(`{"type": "declare", "value": 3}`)
	a, err = parseAction("bob", json.RawMessage(declare))
	require.NoError(t, err)
	assert.Equal(t, statemachine.ActionDeclare, a.Type)
	assert.Equal(t, 3, a.Value)

	// Internal action types never come from the wire.
	for _, typ := range []string{"timeout", "player_disconnect", "player_reconnect"} {
		_, err := parseAction("bob", json.RawMessage(`{"type": "`+typ+`"}`))
		require.Error(t, err, typ)
	}

	_, err = parseAction("bob", json.RawMessage(`{"type": "play_pieces", "pieces": [{"name": "DRAGON", "color": "RED"}]}`))
	require.Error(t, err)
}
