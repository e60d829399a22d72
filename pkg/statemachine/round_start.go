package statemachine

import "fmt"

// roundStartPhase deterministically fixes the round starter before any
// declaration input is accepted, so declarations never race against a
// not-yet-finalized starter. It takes no player input and advances on its
// own.
type roundStartPhase struct {
	m *Machine
}

func (p *roundStartPhase) ID() PhaseID { return PhaseRoundStart }

func (p *roundStartPhase) Setup() {
	starter, reason := p.m.game.DetermineStarter()
	p.m.roundStarter = starter
	p.m.starterReason = reason
	p.m.turnStarter = starter
	p.m.log.Infof("room %s: round %d starter %s (%s)",
		p.m.cfg.RoomID, p.m.game.RoundNumber, starter, reason)
}

func (p *roundStartPhase) Teardown() {}

func (p *roundStartPhase) Validate(a Action) error {
	return fmt.Errorf("action %s not accepted during round start", a.Type)
}

func (p *roundStartPhase) Process(a Action) (Result, error) {
	return failure("round start takes no actions"), nil
}

func (p *roundStartPhase) CheckTransition() (PhaseID, string, bool) {
	return PhaseDeclaration, "starter_determined", true
}

func (p *roundStartPhase) Data() map[string]any {
	return map[string]any{
		"round_number":   p.m.game.RoundNumber,
		"starter":        p.m.roundStarter,
		"starter_reason": p.m.starterReason,
	}
}
