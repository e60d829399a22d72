package statemachine

import (
	"time"

	"liaptui/pkg/game"
)

// ActionType enumerates the player-submitted action kinds.
type ActionType string

const (
	ActionDeclare          ActionType = "declare"
	ActionPlayPieces       ActionType = "play_pieces"
	ActionRedealRequest    ActionType = "redeal_request"
	ActionRedealResponse   ActionType = "redeal_response"
	ActionPlayerDisconnect ActionType = "player_disconnect"
	ActionPlayerReconnect  ActionType = "player_reconnect"
	ActionTimeout          ActionType = "timeout"
	ActionAdvance          ActionType = "advance"
	ActionNavigateToLobby  ActionType = "navigate_to_lobby"
)

// Action is an immutable player request. It is created at submission time,
// consumed exactly once by the queue, and never mutated.
type Action struct {
	Player    string
	Type      ActionType
	IsBot     bool
	Timestamp time.Time

	// Action-specific payload fields.
	Pieces []game.Piece // PLAY_PIECES
	Value  int          // DECLARE
	Accept bool         // REDEAL_RESPONSE

	// timerEntry ties an internal TIMEOUT to the phase entry that armed it.
	timerEntry uint64
}

// NewAction stamps a player action for submission.
func NewAction(player string, typ ActionType) Action {
	return Action{Player: player, Type: typ, Timestamp: time.Now()}
}

// Result is the per-action outcome returned to the submitter. Errors are
// local to the action and never abort the room's processing loop.
type Result struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func failure(reason string) Result {
	return Result{Success: false, Error: reason}
}

type queuedAction struct {
	action Action
	result chan Result
}

// dedupKey identifies an action within its phase and turn context. Entries
// expire after a sub-second window so the same player can act again in the
// next turn or phase.
type dedupKey struct {
	player string
	typ    ActionType
	phase  PhaseID
	entry  uint64
	ctx    int
}

const dedupWindow = 500 * time.Millisecond

// dedupContext distinguishes successive decision windows inside a single
// phase instance: each accepted redeal opens a fresh decision batch.
func (m *Machine) dedupContext(typ ActionType) int {
	if typ == ActionRedealResponse || typ == ActionRedealRequest {
		return m.game.RedealMultiplier
	}
	return m.game.TurnNumber
}

// dedupExempt reports whether an action type skips duplicate suppression.
// Connection lifecycle and timer actions are already idempotent.
func dedupExempt(typ ActionType) bool {
	switch typ {
	case ActionPlayerDisconnect, ActionPlayerReconnect, ActionTimeout, ActionAdvance:
		return true
	}
	return false
}

func (m *Machine) isDuplicate(a Action) bool {
	if dedupExempt(a.Type) {
		return false
	}
	key := dedupKey{
		player: a.Player, typ: a.Type, phase: m.current.ID(),
		entry: m.entryID, ctx: m.dedupContext(a.Type),
	}
	seen, ok := m.dedup[key]
	return ok && time.Since(seen) < dedupWindow
}

// rememberAction records a successfully processed action so that a second
// trigger from an independent event source is suppressed within the window.
func (m *Machine) rememberAction(a Action) {
	if dedupExempt(a.Type) {
		return
	}
	key := dedupKey{
		player: a.Player, typ: a.Type, phase: m.current.ID(),
		entry: m.entryID, ctx: m.dedupContext(a.Type),
	}
	now := time.Now()
	m.dedup[key] = now
	for k, seen := range m.dedup {
		if now.Sub(seen) >= dedupWindow {
			delete(m.dedup, k)
		}
	}
}
