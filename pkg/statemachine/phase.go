package statemachine

// PhaseID identifies a phase of the game lifecycle.
type PhaseID string

const (
	PhaseWaiting     PhaseID = "WAITING"
	PhasePreparation PhaseID = "PREPARATION"
	PhaseRoundStart  PhaseID = "ROUND_START"
	PhaseDeclaration PhaseID = "DECLARATION"
	PhaseTurn        PhaseID = "TURN"
	PhaseTurnResults PhaseID = "TURN_RESULTS"
	PhaseScoring     PhaseID = "SCORING"
	PhaseGameEnd     PhaseID = "GAME_END"
)

// validTransitions is the strict allow-list. Any transition not listed is
// refused: the machine logs and stays in the current phase.
var validTransitions = map[PhaseID][]PhaseID{
	PhaseWaiting:     {PhasePreparation},
	PhasePreparation: {PhaseRoundStart},
	PhaseRoundStart:  {PhaseDeclaration},
	PhaseDeclaration: {PhaseTurn},
	PhaseTurn:        {PhaseTurnResults},
	PhaseTurnResults: {PhaseTurn, PhaseScoring},
	PhaseScoring:     {PhasePreparation, PhaseGameEnd},
	PhaseGameEnd:     {},
}

func transitionAllowed(from, to PhaseID) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Phase is the uniform contract every phase state implements. One instance
// lives per phase entry: created by Setup, destroyed by Teardown. Phase
// instances hold a back-reference to the machine for reading shared game
// state but never own it.
type Phase interface {
	ID() PhaseID

	// Setup runs on phase entry, after the transition is committed.
	Setup()
	// Teardown runs on phase exit. Phase-scoped data does not survive a
	// transition except where Teardown explicitly copies it into game state.
	Teardown()

	// Validate rejects an action without mutating any state.
	Validate(Action) error
	// Process applies a validated action.
	Process(Action) (Result, error)
	// CheckTransition reports the pending outbound transition, if any.
	CheckTransition() (target PhaseID, reason string, ok bool)

	// Data returns the JSON-safe flattened phase state for broadcasts and
	// reconnect snapshots. Domain objects are serialized to primitives.
	Data() map[string]any
}

// reprompter is implemented by phases that hold a pending decision for a
// specific player, so bot takeover can act at the very next decision point
// after a disconnect.
type reprompter interface {
	Reprompt(player string)
}
