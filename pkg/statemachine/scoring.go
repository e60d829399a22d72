package statemachine

import "fmt"

// scoringPhase applies the round scores and decides between the next round
// and game over. Missing declarations abort the transition loudly: silent
// wrong scores are worse than a stuck round.
type scoringPhase struct {
	m       *Machine
	entries []map[string]any
	scored  bool
	done    bool
}

func (p *scoringPhase) ID() PhaseID { return PhaseScoring }

func (p *scoringPhase) Setup() {
	entries, err := p.m.game.ScoreRound()
	if err != nil {
		p.m.log.Errorf("room %s: scoring failed: %v", p.m.cfg.RoomID, err)
		return
	}
	p.scored = true
	for _, e := range entries {
		p.entries = append(p.entries, map[string]any{
			"player":     e.Name,
			"declared":   e.Declared,
			"actual":     e.Actual,
			"base_score": e.BaseScore,
			"multiplier": e.Multiplier,
			"delta":      e.Delta,
			"total":      e.Total,
		})
	}
	p.m.broadcast(EventScoringCompleted, map[string]any{
		"round_number": p.m.game.RoundNumber,
		"scores":       p.entries,
		"winners":      p.m.game.Winners(),
	})

	if p.m.cfg.DwellTime <= 0 {
		p.done = true
		return
	}
	p.m.scheduleAdvance(p.m.cfg.DwellTime)
}

func (p *scoringPhase) Teardown() {}

func (p *scoringPhase) Validate(a Action) error {
	switch a.Type {
	case ActionTimeout, ActionAdvance:
		return nil
	default:
		return fmt.Errorf("action %s not accepted during scoring", a.Type)
	}
}

func (p *scoringPhase) Process(a Action) (Result, error) {
	p.done = true
	return Result{Success: true}, nil
}

func (p *scoringPhase) CheckTransition() (PhaseID, string, bool) {
	if !p.scored || !p.done {
		return "", "", false
	}
	if len(p.m.game.Winners()) > 0 {
		return PhaseGameEnd, "winning_score_reached", true
	}
	return PhasePreparation, "next_round", true
}

func (p *scoringPhase) Data() map[string]any {
	return map[string]any{
		"round_number": p.m.game.RoundNumber,
		"scores":       p.entries,
		"winners":      p.m.game.Winners(),
	}
}
