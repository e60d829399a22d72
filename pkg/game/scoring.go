package game

import "fmt"

// ScoreEntry is one player's result for a finished round.
type ScoreEntry struct {
	Name       string `json:"name"`
	Declared   int    `json:"declared"`
	Actual     int    `json:"actual"`
	BaseScore  int    `json:"base_score"`
	Multiplier int    `json:"multiplier"`
	Delta      int    `json:"delta"`
	Total      int    `json:"total"`
}

// BaseScore computes the unmultiplied round score from the declared target
// and the piles actually captured.
func BaseScore(declared, actual int) int {
	switch {
	case declared == 0 && actual == 0:
		return 3
	case declared == 0:
		return -actual
	case declared == actual:
		return declared + 5
	default:
		diff := declared - actual
		if diff < 0 {
			diff = -diff
		}
		return -diff
	}
}

// ScoreRound applies the round's scores to every player and returns the
// per-player breakdown. Missing declarations are an implementation bug and
// fail loudly rather than producing silently wrong scores.
func (g *Game) ScoreRound() ([]ScoreEntry, error) {
	entries := make([]ScoreEntry, 0, NumSeats)
	for _, p := range g.players {
		if !p.HasDeclared {
			return nil, fmt.Errorf("scoring round %d: player %s: %w", g.RoundNumber, p.Name, ErrMissingDeclaration)
		}
		base := BaseScore(p.Declared, p.CapturedPiles)
		delta := base * g.RedealMultiplier
		p.Score += delta
		entries = append(entries, ScoreEntry{
			Name:       p.Name,
			Declared:   p.Declared,
			Actual:     p.CapturedPiles,
			BaseScore:  base,
			Multiplier: g.RedealMultiplier,
			Delta:      delta,
			Total:      p.Score,
		})
	}
	return entries, nil
}
