package statemachine

import (
	"fmt"
	"time"
)

const timeRounding = time.Second

// gameEndPhase is terminal: it exposes final rankings and aggregate
// statistics and accepts only a navigate-away action.
type gameEndPhase struct {
	m *Machine
}

func (p *gameEndPhase) ID() PhaseID { return PhaseGameEnd }

func (p *gameEndPhase) Setup() {
	p.m.log.Infof("room %s: game over after %d rounds (%s)",
		p.m.cfg.RoomID, p.m.game.RoundNumber, p.m.game.Elapsed().Round(timeRounding))
}

func (p *gameEndPhase) Teardown() {}

func (p *gameEndPhase) Validate(a Action) error {
	if a.Type != ActionNavigateToLobby {
		return fmt.Errorf("game is over; action %s not accepted", a.Type)
	}
	return nil
}

func (p *gameEndPhase) Process(a Action) (Result, error) {
	return Result{Success: true}, nil
}

func (p *gameEndPhase) CheckTransition() (PhaseID, string, bool) {
	return "", "", false
}

func (p *gameEndPhase) Data() map[string]any {
	rankings := make([]map[string]any, 0, 4)
	for _, r := range p.m.game.Rankings() {
		rankings = append(rankings, map[string]any{
			"name":  r.Name,
			"score": r.Score,
			"rank":  r.Rank,
		})
	}
	return map[string]any{
		"rankings":      rankings,
		"winners":       p.m.game.Winners(),
		"rounds_played": p.m.game.RoundNumber,
		"duration_ms":   p.m.game.Elapsed().Milliseconds(),
	}
}
