package statemachine

import (
	"math/rand"
	"time"

	"liaptui/pkg/game"
)

// Decider is the capability dispatch for decision points. The machine asks
// a player's decider whenever that player owes a redeal decision, a
// declaration or a play; it never branches on a bot flag. Prompt methods
// are invoked with the room lock held and must not block.
type Decider interface {
	PromptRedeal(m *Machine, player string)
	PromptDeclare(m *Machine, player string, options []int)
	PromptPlay(m *Machine, player string, requiredCount int, leadType game.PlayType, bestSum int)
}

// HumanDecider waits for external input; the prompts are no-ops because the
// client is driven by the phase_change broadcasts.
type HumanDecider struct{}

func (HumanDecider) PromptRedeal(*Machine, string)                        {}
func (HumanDecider) PromptDeclare(*Machine, string, []int)                {}
func (HumanDecider) PromptPlay(*Machine, string, int, game.PlayType, int) {}

// Oracle is the synchronous decision source backing bot deciders. Inputs
// are copies; implementations must not retain them.
type Oracle interface {
	DecideRedeal(hand []game.Piece) bool
	DecideDeclaration(hand []game.Piece, options []int) int
	DecidePlay(hand []game.Piece, requiredCount int, leadType game.PlayType, bestSum int) []game.Piece
}

// BotDecider answers prompts by querying the oracle after a short thinking
// delay, so sequential bot actions in a phase visibly stagger instead of
// resolving instantaneously. A zero delay range answers within the current
// processing pass, which keeps tests deterministic.
type BotDecider struct {
	Oracle   Oracle
	MinThink time.Duration
	MaxThink time.Duration
}

func (d BotDecider) PromptRedeal(m *Machine, player string) {
	hand := handCopy(m, player)
	d.submit(m, player, func() Action {
		a := NewAction(player, ActionRedealResponse)
		a.IsBot = true
		a.Accept = d.Oracle.DecideRedeal(hand)
		return a
	})
}

func (d BotDecider) PromptDeclare(m *Machine, player string, options []int) {
	hand := handCopy(m, player)
	opts := append([]int(nil), options...)
	d.submit(m, player, func() Action {
		a := NewAction(player, ActionDeclare)
		a.IsBot = true
		a.Value = d.Oracle.DecideDeclaration(hand, opts)
		return a
	})
}

func (d BotDecider) PromptPlay(m *Machine, player string, requiredCount int, leadType game.PlayType, bestSum int) {
	hand := handCopy(m, player)
	d.submit(m, player, func() Action {
		a := NewAction(player, ActionPlayPieces)
		a.IsBot = true
		a.Pieces = d.Oracle.DecidePlay(hand, requiredCount, leadType, bestSum)
		return a
	})
}

// submit enqueues the oracle's answer. With a thinking delay the answer
// arrives through the normal queue; without one it joins the in-progress
// drain pass directly. A delayed answer is dropped if the seat changed
// hands while the bot was thinking, so a reconnected player never has a
// pending decision consumed out from under them.
func (d BotDecider) submit(m *Machine, player string, decide func() Action) {
	if d.MaxThink <= 0 {
		m.enqueueLocked(decide())
		return
	}
	delay := d.MinThink
	if spread := d.MaxThink - d.MinThink; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}
	time.AfterFunc(delay, func() {
		if !m.deciderIs(player, d) {
			return
		}
		m.HandleAction(decide())
	})
}

func handCopy(m *Machine, player string) []game.Piece {
	p, err := m.game.PlayerByName(player)
	if err != nil {
		return nil
	}
	return append([]game.Piece(nil), p.Hand...)
}
