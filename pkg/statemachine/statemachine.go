// Package statemachine drives a room's game through its phase lifecycle:
// PREPARATION, DECLARATION, TURN and SCORING, with the intermediate display
// phases between them. It owns the valid-transition table, the per-room
// action queue and the broadcast sequence; phases own their phase-scoped
// data and mutate the shared game state under the room lock.
package statemachine

import (
	"sync"
	"time"

	"github.com/decred/slog"

	"liaptui/pkg/game"
)

// EventPhaseChange and friends are the event types handed to the broadcast
// callback.
const (
	EventPhaseChange      = "phase_change"
	EventTurnCompleted    = "turn_completed"
	EventScoringCompleted = "scoring_completed"
	EventRedealDecision   = "redeal_decision"
	EventPlayerDeclared   = "player_declared"
	EventPlayerPlayed     = "player_played"
)

// Broadcaster is the transport-layer callback. The machine never talks to
// sockets directly; implementations must not call back into the machine
// synchronously.
type Broadcaster interface {
	Broadcast(roomID, eventType string, payload map[string]any)
}

// Config wires a machine to its room.
type Config struct {
	RoomID string
	// DwellTime is how long the TURN_RESULTS and SCORING display phases
	// linger before auto-advancing. Zero advances immediately.
	DwellTime time.Duration
	Log       slog.Logger
}

// Machine owns the current phase, the transition table and the action
// queue for one room. A single processing pass runs to completion,
// including cascading transitions, before the next pass begins.
type Machine struct {
	cfg   Config
	log   slog.Logger
	game  *game.Game
	bcast Broadcaster

	mu            sync.Mutex
	queue         []queuedAction
	draining      bool
	inTransition  bool
	current       Phase
	entryID       uint64 // bumped on every phase entry; guards stale timers
	sequence      uint64 // per-room monotonic broadcast counter
	dedup         map[dedupKey]time.Time
	deciders      map[string]Decider
	roundStarter  string
	starterReason string
	turnStarter   string
	lastTurn      *turnOutcome
}

// New creates a machine in the WAITING phase.
func New(cfg Config, g *game.Game, bcast Broadcaster) *Machine {
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	m := &Machine{
		cfg:      cfg,
		log:      log,
		game:     g,
		bcast:    bcast,
		dedup:    make(map[dedupKey]time.Time),
		deciders: make(map[string]Decider),
	}
	m.current = &waitingPhase{m: m}
	for _, p := range g.Players() {
		m.deciders[p.Name] = HumanDecider{}
	}
	return m
}

// Game exposes the authoritative game state for phases and snapshots.
func (m *Machine) Game() *game.Game { return m.game }

// CurrentPhase returns the active phase identifier.
func (m *Machine) CurrentPhase() PhaseID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.ID()
}

// SetDecider swaps the decision source for one player. Used by the
// connection layer for bot takeover and restoration.
func (m *Machine) SetDecider(player string, d Decider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deciders[player] = d
}

func (m *Machine) decider(player string) Decider {
	if d, ok := m.deciders[player]; ok {
		return d
	}
	return HumanDecider{}
}

// deciderIs reports whether the player's registered decider is still d.
// Delayed bot submissions check this before acting.
func (m *Machine) deciderIs(player string, d Decider) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deciders[player] == d
}

// Begin starts the game: WAITING to PREPARATION. Returns false if the game
// already started.
func (m *Machine) Begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.ID() != PhaseWaiting {
		return false
	}
	if !m.transitionTo(PhasePreparation, "game_started") {
		return false
	}
	m.checkTransitions()
	if !m.draining {
		m.draining = true
		m.drainLocked()
		m.draining = false
	}
	return true
}

// HandleAction enqueues a player action and drains the queue. The returned
// result belongs to the submitted action; actions are processed in FIFO
// order and a single drain pass is never interleaved with another.
func (m *Machine) HandleAction(a Action) Result {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	qa := queuedAction{action: a, result: make(chan Result, 1)}

	m.mu.Lock()
	m.queue = append(m.queue, qa)
	if m.draining {
		// Another pass is already consuming the queue; it will deliver
		// our result.
		m.mu.Unlock()
		return <-qa.result
	}
	m.draining = true
	m.drainLocked()
	m.draining = false
	m.mu.Unlock()
	return <-qa.result
}

// enqueueLocked appends an internally generated action while the caller
// already holds the room lock inside a processing pass; the in-progress
// drain consumes it in order.
func (m *Machine) enqueueLocked(a Action) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	m.queue = append(m.queue, queuedAction{action: a, result: make(chan Result, 1)})
}

// drainLocked processes queued actions in FIFO order. Caller holds m.mu.
func (m *Machine) drainLocked() {
	for len(m.queue) > 0 {
		qa := m.queue[0]
		m.queue = m.queue[1:]
		qa.result <- m.processLocked(qa.action)
	}
}

// processLocked runs the full pass for one action: dedup, validate,
// process, then cascading transition checks.
func (m *Machine) processLocked(a Action) Result {
	if a.Type == ActionTimeout && a.timerEntry != m.entryID {
		return failure("stale timer")
	}
	if m.isDuplicate(a) {
		m.log.Debugf("room %s: suppressed duplicate %s from %s in %s",
			m.cfg.RoomID, a.Type, a.Player, m.current.ID())
		return failure("duplicate action")
	}

	var res Result
	switch a.Type {
	case ActionPlayerDisconnect:
		res = m.handleDisconnect(a)
	case ActionPlayerReconnect:
		res = m.handleReconnect(a)
	default:
		if err := m.current.Validate(a); err != nil {
			m.log.Debugf("room %s: rejected %s from %s in %s: %v",
				m.cfg.RoomID, a.Type, a.Player, m.current.ID(), err)
			return failure(err.Error())
		}
		var err error
		res, err = m.current.Process(a)
		if err != nil {
			return failure(err.Error())
		}
	}
	if res.Success {
		m.rememberAction(a)
	}
	m.checkTransitions()
	return res
}

// checkTransitions applies pending transitions until the current phase has
// none, so cascades (for example an empty declaration queue of bots) settle
// within the same pass.
func (m *Machine) checkTransitions() {
	for {
		target, reason, ok := m.current.CheckTransition()
		if !ok {
			return
		}
		if !m.transitionTo(target, reason) {
			return
		}
	}
}

// transitionTo moves to the target phase if the allow-list permits it.
// Refused transitions leave the current phase untouched.
func (m *Machine) transitionTo(target PhaseID, reason string) bool {
	if m.inTransition {
		m.log.Warnf("room %s: refused re-entrant transition to %s", m.cfg.RoomID, target)
		return false
	}
	from := m.current.ID()
	if !transitionAllowed(from, target) {
		m.log.Warnf("room %s: refused transition %s -> %s", m.cfg.RoomID, from, target)
		return false
	}

	m.inTransition = true
	m.current.Teardown()
	m.entryID++
	m.current = m.newPhase(target)
	m.current.Setup()
	m.inTransition = false

	m.log.Infof("room %s: %s -> %s (%s)", m.cfg.RoomID, from, target, reason)
	m.broadcast(EventPhaseChange, map[string]any{
		"phase":      string(target),
		"phase_data": m.current.Data(),
		"reason":     reason,
	})
	return true
}

func (m *Machine) newPhase(id PhaseID) Phase {
	switch id {
	case PhaseWaiting:
		return &waitingPhase{m: m}
	case PhasePreparation:
		return &preparationPhase{m: m}
	case PhaseRoundStart:
		return &roundStartPhase{m: m}
	case PhaseDeclaration:
		return &declarationPhase{m: m}
	case PhaseTurn:
		return &turnPhase{m: m}
	case PhaseTurnResults:
		return &turnResultsPhase{m: m}
	case PhaseScoring:
		return &scoringPhase{m: m}
	case PhaseGameEnd:
		return &gameEndPhase{m: m}
	}
	panic("statemachine: unknown phase " + string(id))
}

// broadcast stamps the payload with the per-room sequence and timestamp and
// hands it to the transport callback.
func (m *Machine) broadcast(eventType string, payload map[string]any) {
	if m.bcast == nil {
		return
	}
	m.sequence++
	payload["sequence"] = m.sequence
	payload["timestamp"] = time.Now().UnixMilli()
	m.bcast.Broadcast(m.cfg.RoomID, eventType, payload)
}

// scheduleAdvance arms the dwell timer for an auto-advancing phase. The
// fired timeout carries the phase entry identity and is dropped if the
// phase has already been exited, so a timer can never fire into a
// different phase instance.
func (m *Machine) scheduleAdvance(d time.Duration) {
	entry := m.entryID
	time.AfterFunc(d, func() {
		m.HandleAction(Action{Type: ActionTimeout, Timestamp: time.Now(), timerEntry: entry})
	})
}

// handleDisconnect flips the player to bot control with no grace period.
// The substitution takes effect at the very next decision point, so if the
// player currently owes a decision the phase is re-prompted immediately.
func (m *Machine) handleDisconnect(a Action) Result {
	p, err := m.game.PlayerByName(a.Player)
	if err != nil {
		return failure(err.Error())
	}
	if !p.IsConnected {
		return Result{Success: true}
	}
	p.OriginalIsBot = p.IsBot
	p.IsBot = true
	p.IsConnected = false
	p.DisconnectTime = time.Now()
	m.log.Infof("room %s: %s disconnected, bot takeover", m.cfg.RoomID, a.Player)
	if rp, ok := m.current.(reprompter); ok {
		rp.Reprompt(a.Player)
	}
	return Result{Success: true}
}

// handleReconnect restores the player's pre-disconnect control mode.
func (m *Machine) handleReconnect(a Action) Result {
	p, err := m.game.PlayerByName(a.Player)
	if err != nil {
		return failure(err.Error())
	}
	p.IsBot = p.OriginalIsBot
	p.IsConnected = true
	p.DisconnectTime = time.Time{}
	m.log.Infof("room %s: %s reconnected", m.cfg.RoomID, a.Player)
	return Result{Success: true, Data: map[string]any{"snapshot": m.snapshotLocked()}}
}

// Snapshot returns the full room state for a reconnecting client: current
// phase, phase data, hands and scores.
func (m *Machine) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() map[string]any {
	players := make([]map[string]any, 0, game.NumSeats)
	for _, p := range m.game.Players() {
		players = append(players, map[string]any{
			"name":           p.Name,
			"is_bot":         p.IsBot,
			"is_connected":   p.IsConnected,
			"hand":           piecesData(p.Hand),
			"score":          p.Score,
			"declared":       p.Declared,
			"captured_piles": p.CapturedPiles,
		})
	}
	return map[string]any{
		"phase":        string(m.current.ID()),
		"phase_data":   m.current.Data(),
		"round_number": m.game.RoundNumber,
		"turn_number":  m.game.TurnNumber,
		"players":      players,
		"sequence":     m.sequence,
	}
}

// piecesData flattens pieces to primitive representations for the wire.
func piecesData(pieces []game.Piece) []map[string]any {
	out := make([]map[string]any, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, map[string]any{
			"name":   p.Name.String(),
			"color":  p.Color.String(),
			"points": p.Points(),
		})
	}
	return out
}
