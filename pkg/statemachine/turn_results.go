package statemachine

import "fmt"

// turnResultsPhase is the display pause between turns. It auto-advances
// after the configured dwell time; a manual advance cancels the wait, and
// the stale timer is dropped by the phase-identity guard.
type turnResultsPhase struct {
	m    *Machine
	done bool
}

func (p *turnResultsPhase) ID() PhaseID { return PhaseTurnResults }

func (p *turnResultsPhase) Setup() {
	if p.m.cfg.DwellTime <= 0 {
		p.done = true
		return
	}
	p.m.scheduleAdvance(p.m.cfg.DwellTime)
}

func (p *turnResultsPhase) Teardown() {}

func (p *turnResultsPhase) Validate(a Action) error {
	switch a.Type {
	case ActionTimeout, ActionAdvance:
		return nil
	default:
		return fmt.Errorf("action %s not accepted during turn results", a.Type)
	}
}

func (p *turnResultsPhase) Process(a Action) (Result, error) {
	p.done = true
	return Result{Success: true}, nil
}

func (p *turnResultsPhase) CheckTransition() (PhaseID, string, bool) {
	if !p.done {
		return "", "", false
	}
	if p.m.game.AllHandsEmpty() {
		return PhaseScoring, "round_complete", true
	}
	return PhaseTurn, "next_turn", true
}

func (p *turnResultsPhase) Data() map[string]any {
	data := map[string]any{
		"turn_number": p.m.game.TurnNumber,
	}
	if out := p.m.lastTurn; out != nil {
		data["winner"] = out.winner
		data["pile_count"] = out.pileCount
		data["plays"] = playsData(out.plays)
	}
	return data
}
