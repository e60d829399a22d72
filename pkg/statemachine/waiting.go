package statemachine

import "fmt"

// waitingPhase is the pre-game idle state. It accepts no player actions;
// the room starts the game through Machine.Begin.
type waitingPhase struct {
	m *Machine
}

func (p *waitingPhase) ID() PhaseID { return PhaseWaiting }
func (p *waitingPhase) Setup()      {}
func (p *waitingPhase) Teardown()   {}

func (p *waitingPhase) Validate(a Action) error {
	return fmt.Errorf("action %s not accepted while waiting", a.Type)
}

func (p *waitingPhase) Process(a Action) (Result, error) {
	return failure("game not started"), nil
}

func (p *waitingPhase) CheckTransition() (PhaseID, string, bool) {
	return "", "", false
}

func (p *waitingPhase) Data() map[string]any {
	return map[string]any{}
}
