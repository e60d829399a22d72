package statemachine

import (
	"fmt"

	"liaptui/pkg/game"
)

// turnPlay is one player's contribution to a turn.
type turnPlay struct {
	player  string
	pieces  []game.Piece
	typ     game.PlayType
	valid   bool // competes for the turn: valid combination of the lead type
	forfeit bool // auto-resolved short hand
}

// turnOutcome survives the turn phase so TURN_RESULTS can display it.
type turnOutcome struct {
	turnNumber int
	winner     string
	pileCount  int
	plays      []turnPlay
}

// turnPhase runs one trick: the starter leads 1-6 pieces forming a valid
// play, fixing the required piece count, then every other seat follows in
// rotation with exactly that many pieces. Invalid combinations with the
// right count are recorded as non-competing plays rather than rejected, so
// a misplay never stalls the turn. Pieces leave hands the moment a play is
// processed, never batched until turn completion.
type turnPhase struct {
	m *Machine

	order    []string
	required int
	leadType game.PlayType
	plays    []turnPlay
	idx      int
	resolved bool
}

func (p *turnPhase) ID() PhaseID { return PhaseTurn }

func (p *turnPhase) Setup() {
	p.m.game.TurnNumber++
	for _, pl := range p.m.game.OrderFrom(p.m.turnStarter) {
		p.order = append(p.order, pl.Name)
	}
	p.advance()
}

func (p *turnPhase) Teardown() {}

func (p *turnPhase) current() string {
	if p.idx >= len(p.order) {
		return ""
	}
	return p.order[p.idx]
}

// advance auto-resolves players who cannot meet the required count, then
// prompts the next live decision point.
func (p *turnPhase) advance() {
	for {
		name := p.current()
		if name == "" {
			p.resolve()
			return
		}
		pl, err := p.m.game.PlayerByName(name)
		if err != nil {
			p.m.log.Errorf("room %s: turn order references %s: %v", p.m.cfg.RoomID, name, err)
			return
		}
		if p.idx > 0 && len(pl.Hand) < p.required {
			// Short hand: forfeit this turn with whatever is available.
			p.recordPlay(pl, append([]game.Piece(nil), pl.Hand...), true)
			continue
		}
		p.m.decider(name).PromptPlay(p.m, name, p.required, p.leadType, p.bestValidSum())
		return
	}
}

func (p *turnPhase) bestValidSum() int {
	best := 0
	for _, play := range p.plays {
		if play.valid {
			if sum := game.PointSum(play.pieces); sum > best {
				best = sum
			}
		}
	}
	return best
}

func (p *turnPhase) Validate(a Action) error {
	if a.Type != ActionPlayPieces {
		return fmt.Errorf("action %s not accepted during turn", a.Type)
	}
	if a.Player != p.current() {
		return fmt.Errorf("not %s's turn to play", a.Player)
	}
	pl, err := p.m.game.PlayerByName(a.Player)
	if err != nil {
		return err
	}
	if !pl.HasPieces(a.Pieces) {
		return game.ErrPiecesNotInHand
	}
	if p.idx == 0 {
		if len(a.Pieces) < 1 || len(a.Pieces) > 6 {
			return fmt.Errorf("starter must play 1-6 pieces: %w", game.ErrInvalidPieceCount)
		}
		if !game.IsValid(a.Pieces) {
			return fmt.Errorf("starter play does not form a valid combination")
		}
		return nil
	}
	if len(a.Pieces) != p.required {
		return fmt.Errorf("turn requires exactly %d pieces: %w", p.required, game.ErrInvalidPieceCount)
	}
	return nil
}

func (p *turnPhase) Process(a Action) (Result, error) {
	pl, err := p.m.game.PlayerByName(a.Player)
	if err != nil {
		return Result{}, err
	}
	p.recordPlay(pl, a.Pieces, false)
	p.advance()

	return Result{Success: true, Data: map[string]any{
		"next_player":    p.current(),
		"required_count": p.required,
		"turn_complete":  p.idx >= len(p.order),
	}}, nil
}

// recordPlay removes the pieces from the hand immediately and appends the
// play. The starter's play fixes the required count and lead type.
func (p *turnPhase) recordPlay(pl *game.Player, pieces []game.Piece, forfeit bool) {
	if err := pl.RemovePieces(pieces); err != nil {
		// Validation already checked hand contents; a failure here is a bug.
		p.m.log.Errorf("room %s: removing pieces for %s: %v", p.m.cfg.RoomID, pl.Name, err)
		return
	}
	typ := game.Classify(pieces)
	if p.idx == 0 {
		p.required = len(pieces)
		p.leadType = typ
	}
	valid := !forfeit && typ != game.InvalidPlay && typ == p.leadType
	p.plays = append(p.plays, turnPlay{
		player:  pl.Name,
		pieces:  pieces,
		typ:     typ,
		valid:   valid,
		forfeit: forfeit,
	})
	p.idx++

	p.m.broadcast(EventPlayerPlayed, map[string]any{
		"player":         pl.Name,
		"pieces":         piecesData(pieces),
		"play_type":      typ.String(),
		"valid":          valid,
		"required_count": p.required,
		"turn_number":    p.m.game.TurnNumber,
	})
}

// resolve picks the turn winner once all four plays are in: highest point
// sum among valid plays of the lead type, earliest play keeping priority on
// ties. No competing valid play means no winner and no pile award; the
// turn still completes.
func (p *turnPhase) resolve() {
	if p.resolved {
		return
	}
	p.resolved = true

	winner := ""
	bestSum := -1
	for _, play := range p.plays {
		if !play.valid {
			continue
		}
		if sum := game.PointSum(play.pieces); sum > bestSum {
			bestSum = sum
			winner = play.player
		}
	}

	pileCount := 0
	if winner != "" {
		pileCount = p.required
		if err := p.m.game.AwardPiles(winner, pileCount); err != nil {
			p.m.log.Errorf("room %s: awarding piles: %v", p.m.cfg.RoomID, err)
		}
		p.m.turnStarter = winner
	}

	p.m.lastTurn = &turnOutcome{
		turnNumber: p.m.game.TurnNumber,
		winner:     winner,
		pileCount:  pileCount,
		plays:      p.plays,
	}
	p.m.broadcast(EventTurnCompleted, map[string]any{
		"turn_number": p.m.game.TurnNumber,
		"winner":      winner,
		"pile_count":  pileCount,
		"plays":       playsData(p.plays),
	})
}

func (p *turnPhase) CheckTransition() (PhaseID, string, bool) {
	if p.idx < len(p.order) {
		return "", "", false
	}
	return PhaseTurnResults, "turn_complete", true
}

func (p *turnPhase) Reprompt(player string) {
	if player == p.current() {
		p.advance()
	}
}

func (p *turnPhase) Data() map[string]any {
	return map[string]any{
		"turn_number":    p.m.game.TurnNumber,
		"turn_order":     append([]string(nil), p.order...),
		"current_player": p.current(),
		"required_count": p.required,
		"lead_type":      p.leadType.String(),
		"plays":          playsData(p.plays),
	}
}

func playsData(plays []turnPlay) []map[string]any {
	out := make([]map[string]any, 0, len(plays))
	for _, play := range plays {
		out = append(out, map[string]any{
			"player":    play.player,
			"pieces":    piecesData(play.pieces),
			"play_type": play.typ.String(),
			"valid":     play.valid,
			"forfeit":   play.forfeit,
			"points":    game.PointSum(play.pieces),
		})
	}
	return out
}
