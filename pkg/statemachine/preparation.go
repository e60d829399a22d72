package statemachine

import (
	"fmt"
)

// preparationPhase deals hands and runs the weak-hand redeal protocol.
// Every player whose strongest piece is at or below the weak-hand threshold
// is asked, as a batch, whether they want a redeal. One acceptance redeals
// everyone, bumps the multiplier and repeats the check, bounded by the
// redeal limit.
type preparationPhase struct {
	m *Machine

	awaiting  map[string]bool // weak players who have not decided yet
	decisions map[string]bool // recorded decisions, idempotent per player
	order     []string        // decision arrival order, for acceptor pick
}

func (p *preparationPhase) ID() PhaseID { return PhasePreparation }

func (p *preparationPhase) Setup() {
	g := p.m.game
	g.StartRound()
	p.startWeakHandCheck()
}

func (p *preparationPhase) Teardown() {}

// startWeakHandCheck flags weak players and prompts their deciders. Once
// the redeal limit is hit the check is skipped entirely: a guaranteed
// no-redeal path, not an error.
func (p *preparationPhase) startWeakHandCheck() {
	p.awaiting = make(map[string]bool)
	p.decisions = make(map[string]bool)
	p.order = nil

	g := p.m.game
	if !g.RedealAllowed() {
		p.m.log.Debugf("room %s: redeal limit reached, skipping weak-hand check", p.m.cfg.RoomID)
		return
	}
	for _, name := range g.WeakPlayers() {
		p.awaiting[name] = true
	}
	for name := range p.awaiting {
		p.m.decider(name).PromptRedeal(p.m, name)
	}
}

func (p *preparationPhase) Validate(a Action) error {
	switch a.Type {
	case ActionRedealResponse, ActionRedealRequest:
		if _, err := p.m.game.PlayerByName(a.Player); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("action %s not accepted during preparation", a.Type)
	}
}

func (p *preparationPhase) Process(a Action) (Result, error) {
	if _, decided := p.decisions[a.Player]; decided {
		// A second decision in the same window is ignored.
		return Result{Success: true, Data: map[string]any{"recorded": false}}, nil
	}
	if !p.awaiting[a.Player] {
		return failure("no redeal decision pending"), nil
	}

	accept := a.Accept || a.Type == ActionRedealRequest
	p.decisions[a.Player] = accept
	p.order = append(p.order, a.Player)
	delete(p.awaiting, a.Player)

	p.m.broadcast(EventRedealDecision, map[string]any{
		"player":    a.Player,
		"accept":    accept,
		"remaining": len(p.awaiting),
	})

	if len(p.awaiting) == 0 {
		p.resolveDecisions()
	}
	return Result{Success: true, Data: map[string]any{"recorded": true}}, nil
}

// resolveDecisions runs once all weak players have answered. Any single
// acceptance redeals all four hands and restarts the weak-hand check.
func (p *preparationPhase) resolveDecisions() {
	acceptor := ""
	for _, name := range p.order {
		if p.decisions[name] {
			acceptor = name
			break
		}
	}
	if acceptor == "" {
		return
	}
	p.m.game.AcceptRedeal(acceptor)
	p.startWeakHandCheck()
}

func (p *preparationPhase) CheckTransition() (PhaseID, string, bool) {
	if len(p.awaiting) > 0 {
		return "", "", false
	}
	return PhaseRoundStart, "preparation_complete", true
}

// Reprompt re-asks a pending redeal decision, so a freshly installed bot
// decider answers for a disconnected player.
func (p *preparationPhase) Reprompt(player string) {
	if p.awaiting[player] {
		p.m.decider(player).PromptRedeal(p.m, player)
	}
}

func (p *preparationPhase) Data() map[string]any {
	awaiting := make([]string, 0, len(p.awaiting))
	for name := range p.awaiting {
		awaiting = append(awaiting, name)
	}
	return map[string]any{
		"round_number":      p.m.game.RoundNumber,
		"redeal_multiplier": p.m.game.RedealMultiplier,
		"weak_players":      p.m.game.WeakPlayers(),
		"awaiting_decision": awaiting,
	}
}
