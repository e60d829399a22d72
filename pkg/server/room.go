package server

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"liaptui/pkg/game"
	"liaptui/pkg/statemachine"
)

var (
	ErrRoomStarted    = errors.New("game already started")
	ErrRoomNotStarted = errors.New("game not started")
	ErrRoomFull       = errors.New("room is full")
	ErrSeatTaken      = errors.New("seat is taken")
	ErrNotHost        = errors.New("only the host can do that")
	ErrSeatsOpen      = errors.New("cannot start with open seats")
	ErrNotSeated      = errors.New("player is not seated in this room")
	ErrUnknownRoom    = errors.New("unknown room")
)

// Seat is one of the four fixed slots of a room. A nil slot is open.
type Seat struct {
	Name  string `json:"name"`
	IsBot bool   `json:"is_bot"`
}

// Room is the aggregate for one table: four seats, a host, and once
// started, the authoritative game plus its phase machine. There is exactly
// one machine per started room; clients are views onto it.
type Room struct {
	ID string

	srv       *Server
	log       slog.Logger
	createdAt time.Time

	mu      sync.RWMutex
	host    string
	seats   [game.NumSeats]*Seat
	started bool
	game    *game.Game
	machine *statemachine.Machine
}

// newRoom creates a room hosted by the named player, seated at slot 0.
func newRoom(srv *Server, host string) *Room {
	r := &Room{
		ID:        uuid.NewString(),
		srv:       srv,
		log:       srv.roomLogger(),
		createdAt: time.Now(),
		host:      host,
	}
	r.seats[0] = &Seat{Name: host}
	return r
}

// Host returns the current host player.
func (r *Room) Host() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.host
}

// Started reports whether the game is running.
func (r *Room) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}

// Seats returns a copy of the seat slots; open seats are nil.
func (r *Room) Seats() [game.NumSeats]*Seat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out [game.NumSeats]*Seat
	for i, s := range r.seats {
		if s != nil {
			copied := *s
			out[i] = &copied
		}
	}
	return out
}

// Machine returns the room's phase machine, or nil before start.
func (r *Room) Machine() *statemachine.Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.machine
}

// Game returns the room's game state, or nil before start.
func (r *Room) Game() *game.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.game
}

func (r *Room) seatOf(name string) int {
	for i, s := range r.seats {
		if s != nil && s.Name == name {
			return i
		}
	}
	return -1
}

// HasPlayer reports whether the named player occupies a seat.
func (r *Room) HasPlayer(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seatOf(name) >= 0
}

// Join seats a player. Seat -1 takes the first open slot; a specific seat
// must be open.
func (r *Room) Join(name string, seat int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrRoomStarted
	}
	if r.seatOf(name) >= 0 {
		return fmt.Errorf("%s: already seated", name)
	}
	if seat < 0 {
		for i, s := range r.seats {
			if s == nil {
				seat = i
				break
			}
		}
		if seat < 0 {
			return ErrRoomFull
		}
	}
	if seat >= game.NumSeats {
		return fmt.Errorf("seat %d out of range", seat)
	}
	if r.seats[seat] != nil {
		return ErrSeatTaken
	}
	r.seats[seat] = &Seat{Name: name}
	r.log.Infof("room %s: %s joined seat %d", r.ID, name, seat)
	return nil
}

// AddBot fills a seat with a server bot. Only the host may add bots.
func (r *Room) AddBot(requester string, seat int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return "", ErrRoomStarted
	}
	if requester != r.host {
		return "", ErrNotHost
	}
	if seat < 0 {
		for i, s := range r.seats {
			if s == nil {
				seat = i
				break
			}
		}
		if seat < 0 {
			return "", ErrRoomFull
		}
	}
	if seat >= game.NumSeats {
		return "", fmt.Errorf("seat %d out of range", seat)
	}
	if r.seats[seat] != nil {
		return "", ErrSeatTaken
	}
	name := "bot-" + uuid.NewString()[:8]
	r.seats[seat] = &Seat{Name: name, IsBot: true}
	r.log.Infof("room %s: bot %s added at seat %d", r.ID, name, seat)
	return name, nil
}

// Leave frees a player's seat before the game starts. After start, leaving
// is a disconnect and the seat is never freed.
func (r *Room) Leave(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrRoomStarted
	}
	seat := r.seatOf(name)
	if seat < 0 {
		return ErrNotSeated
	}
	r.seats[seat] = nil
	r.log.Infof("room %s: %s left seat %d", r.ID, name, seat)
	if r.host == name {
		r.migrateHostLocked()
	}
	return nil
}

// Empty reports whether no human occupies any seat.
func (r *Room) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.seats {
		if s != nil && !s.IsBot {
			return false
		}
	}
	return true
}

// Start launches the game. All four seats must be filled and only the host
// may start. Begin runs outside the room lock because its broadcasts read
// the seat list back through the server.
func (r *Room) Start(requester string) error {
	machine, err := r.prepareStart(requester)
	if err != nil {
		return err
	}
	machine.Begin()
	return nil
}

func (r *Room) prepareStart(requester string) (*statemachine.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil, ErrRoomStarted
	}
	if requester != r.host {
		return nil, ErrNotHost
	}
	var players [game.NumSeats]*game.Player
	for i, s := range r.seats {
		if s == nil {
			return nil, ErrSeatsOpen
		}
		players[i] = game.NewPlayer(s.Name, s.IsBot)
	}

	gameCfg := game.DefaultConfig()
	gameCfg.Seed = roomSeed(r.srv.cfg.Seed, r.ID)
	gameCfg.Log = r.srv.gameLogger()
	r.game = game.New(gameCfg, players)

	r.machine = statemachine.New(statemachine.Config{
		RoomID:    r.ID,
		DwellTime: r.srv.cfg.DwellTime,
		Log:       r.log,
	}, r.game, r.srv)

	for _, s := range r.seats {
		if s.IsBot {
			r.machine.SetDecider(s.Name, r.srv.botDecider())
		}
	}

	r.started = true
	r.log.Infof("room %s: game started by %s", r.ID, requester)
	return r.machine, nil
}

// roomSeed derives a per-room deal seed from the configured server seed so
// concurrent rooms never share a shuffle sequence. Zero stays zero:
// unseeded servers keep time-based deals.
func roomSeed(base int64, roomID string) int64 {
	if base == 0 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(roomID))
	seed := base ^ int64(h.Sum64())
	if seed == 0 {
		return base
	}
	return seed
}

// HandleAction forwards a player action to the machine.
func (r *Room) HandleAction(a statemachine.Action) (statemachine.Result, error) {
	r.mu.RLock()
	machine := r.machine
	started := r.started
	r.mu.RUnlock()
	if !started {
		return statemachine.Result{}, ErrRoomNotStarted
	}
	return machine.HandleAction(a), nil
}

// PlayerDisconnected hands the player's seat to a bot mid-game, or frees
// the seat before start. The host role moves if the host dropped.
func (r *Room) PlayerDisconnected(name string) {
	r.mu.Lock()
	if !r.started {
		seat := r.seatOf(name)
		if seat >= 0 {
			r.seats[seat] = nil
			if r.host == name {
				r.migrateHostLocked()
			}
		}
		r.mu.Unlock()
		return
	}
	machine := r.machine
	if r.host == name {
		r.migrateHostLocked()
	}
	r.mu.Unlock()

	machine.SetDecider(name, r.srv.botDecider())
	machine.HandleAction(statemachine.NewAction(name, statemachine.ActionPlayerDisconnect))
}

// PlayerReconnected restores a player's control and returns the action
// result carrying the private state snapshot.
func (r *Room) PlayerReconnected(name string) (statemachine.Result, error) {
	r.mu.RLock()
	machine := r.machine
	started := r.started
	seated := r.seatOf(name) >= 0
	r.mu.RUnlock()
	if !started {
		return statemachine.Result{}, ErrRoomNotStarted
	}
	if !seated {
		return statemachine.Result{}, ErrNotSeated
	}
	machine.SetDecider(name, statemachine.HumanDecider{})
	return machine.HandleAction(statemachine.NewAction(name, statemachine.ActionPlayerReconnect)), nil
}

// migrateHostLocked moves the host role: connected humans in seat order
// first, then bots. Caller holds r.mu.
func (r *Room) migrateHostLocked() {
	pick := func(wantBot bool) string {
		for _, s := range r.seats {
			if s == nil || s.Name == r.host || s.IsBot != wantBot {
				continue
			}
			if r.started && !wantBot {
				pl, err := r.game.PlayerByName(s.Name)
				if err != nil || !pl.IsConnected {
					continue
				}
			}
			return s.Name
		}
		return ""
	}
	next := pick(false)
	if next == "" {
		next = pick(true)
	}
	if next == "" {
		r.log.Debugf("room %s: no host candidate left", r.ID)
		r.host = ""
		return
	}
	r.log.Infof("room %s: host migrated %s -> %s", r.ID, r.host, next)
	r.host = next
}

// Summary is the lobby listing view of the room: seated names (bots
// included), host, and whether play has begun.
func (r *Room) Summary() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	players := make([]string, 0, game.NumSeats)
	for _, s := range r.seats {
		if s != nil {
			players = append(players, s.Name)
		}
	}
	return map[string]any{
		"room_id":    r.ID,
		"host":       r.host,
		"players":    players,
		"started":    r.started,
		"created_at": r.createdAt.UTC().Format(time.RFC3339),
	}
}

// humanNames returns the seated human players.
func (r *Room) humanNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, game.NumSeats)
	for _, s := range r.seats {
		if s != nil && !s.IsBot {
			names = append(names, s.Name)
		}
	}
	return names
}
