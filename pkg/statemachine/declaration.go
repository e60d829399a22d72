package statemachine

import (
	"fmt"

	"liaptui/pkg/game"
)

// declarationPhase collects pile-count targets in fixed seat order from the
// round starter. The sum of all four declarations may never equal exactly
// eight, so the last declarer's option set drops the completing value.
type declarationPhase struct {
	m *Machine

	order    []string       // declaration order, starter first
	declared map[string]int // phase-scoped; copied into game state on exit
	idx      int
}

func (p *declarationPhase) ID() PhaseID { return PhaseDeclaration }

func (p *declarationPhase) Setup() {
	p.declared = make(map[string]int)
	for _, pl := range p.m.game.OrderFrom(p.m.roundStarter) {
		p.order = append(p.order, pl.Name)
	}
	p.promptCurrent()
}

// Teardown copies the final declarations into game-level state; the
// phase-scoped map does not survive the transition.
func (p *declarationPhase) Teardown() {
	for name, value := range p.declared {
		if err := p.m.game.RecordDeclaration(name, value); err != nil {
			p.m.log.Errorf("room %s: recording declaration for %s: %v", p.m.cfg.RoomID, name, err)
		}
	}
}

func (p *declarationPhase) current() string {
	if p.idx >= len(p.order) {
		return ""
	}
	return p.order[p.idx]
}

// Options returns the legal declaration values for the player at the given
// position in the declaration order.
func (p *declarationPhase) Options(position int) []int {
	options := make([]int, 0, game.NumSeats*2+1)
	total := 0
	for _, v := range p.declared {
		total += v
	}
	last := position == game.NumSeats-1
	for v := 0; v <= 8; v++ {
		if last && total+v == 8 {
			continue
		}
		options = append(options, v)
	}
	return options
}

func (p *declarationPhase) promptCurrent() {
	name := p.current()
	if name == "" {
		return
	}
	p.m.decider(name).PromptDeclare(p.m, name, p.Options(p.idx))
}

func (p *declarationPhase) Validate(a Action) error {
	if a.Type != ActionDeclare {
		return fmt.Errorf("action %s not accepted during declaration", a.Type)
	}
	if a.Player != p.current() {
		return fmt.Errorf("not %s's turn to declare", a.Player)
	}
	for _, v := range p.Options(p.idx) {
		if v == a.Value {
			return nil
		}
	}
	return fmt.Errorf("declaration %d not in legal options", a.Value)
}

func (p *declarationPhase) Process(a Action) (Result, error) {
	p.declared[a.Player] = a.Value
	p.idx++

	p.m.broadcast(EventPlayerDeclared, map[string]any{
		"player":   a.Player,
		"value":    a.Value,
		"declared": len(p.declared),
	})
	p.promptCurrent()

	return Result{Success: true, Data: map[string]any{
		"next_declarer": p.current(),
	}}, nil
}

func (p *declarationPhase) CheckTransition() (PhaseID, string, bool) {
	if p.idx < len(p.order) {
		return "", "", false
	}
	return PhaseTurn, "declarations_complete", true
}

func (p *declarationPhase) Reprompt(player string) {
	if player == p.current() {
		p.promptCurrent()
	}
}

func (p *declarationPhase) Data() map[string]any {
	declared := make(map[string]any, len(p.declared))
	for name, v := range p.declared {
		declared[name] = v
	}
	data := map[string]any{
		"declaration_order": append([]string(nil), p.order...),
		"declarations":      declared,
		"current_declarer":  p.current(),
	}
	if name := p.current(); name != "" {
		data["options"] = p.Options(p.idx)
	}
	return data
}
