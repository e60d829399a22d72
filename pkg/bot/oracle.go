// Package bot implements the built-in decision strategy that drives bot
// seats and substitutes for disconnected players. The oracle is stateless
// between decisions: every answer is computed from the hand it is handed.
package bot

import (
	"sort"

	"github.com/decred/slog"

	"liaptui/pkg/game"
)

// Config tunes the oracle's thresholds.
type Config struct {
	// RedealAcceptBelow accepts a redeal offer when the strongest piece in
	// hand is strictly below this point value.
	RedealAcceptBelow int
	// StrongPieceFloor is the point value from which a piece counts toward
	// the declaration estimate.
	StrongPieceFloor int
	Log              slog.Logger
}

// DefaultConfig returns the standard strategy thresholds.
func DefaultConfig() Config {
	return Config{
		RedealAcceptBelow: 8,
		StrongPieceFloor:  11,
	}
}

// Oracle answers redeal, declaration and play prompts.
type Oracle struct {
	cfg Config
	log slog.Logger
}

// New creates an oracle with the given thresholds.
func New(cfg Config) *Oracle {
	if cfg.RedealAcceptBelow == 0 {
		cfg.RedealAcceptBelow = DefaultConfig().RedealAcceptBelow
	}
	if cfg.StrongPieceFloor == 0 {
		cfg.StrongPieceFloor = DefaultConfig().StrongPieceFloor
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Oracle{cfg: cfg, log: log}
}

// DecideRedeal accepts when even the strongest piece cannot win a
// contested single.
func (o *Oracle) DecideRedeal(hand []game.Piece) bool {
	best := 0
	for _, p := range hand {
		if v := p.Points(); v > best {
			best = v
		}
	}
	return best < o.cfg.RedealAcceptBelow
}

// DecideDeclaration estimates how many piles the hand can capture and picks
// the closest legal option, rounding down on ties. The estimate counts
// individually strong pieces plus multi-piece combinations, which tend to
// take a turn when led.
func (o *Oracle) DecideDeclaration(hand []game.Piece, options []int) int {
	estimate := 0
	for _, p := range hand {
		if p.Points() >= o.cfg.StrongPieceFloor {
			estimate++
		}
	}
	if len(bestCombos(hand)) > 0 {
		estimate++
	}

	best := options[0]
	bestDist := distance(best, estimate)
	for _, opt := range options[1:] {
		d := distance(opt, estimate)
		if d < bestDist || (d == bestDist && opt < best) {
			best, bestDist = opt, d
		}
	}
	return best
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// DecidePlay picks the pieces to put down. Leading, it dumps the largest
// cheap combination it holds. Following, it plays the cheapest winning set
// of the lead type, or sheds its lowest pieces when it cannot win.
func (o *Oracle) DecidePlay(hand []game.Piece, requiredCount int, leadType game.PlayType, bestSum int) []game.Piece {
	if requiredCount == 0 {
		return o.lead(hand)
	}
	return o.follow(hand, requiredCount, leadType, bestSum)
}

// lead prefers the biggest valid combination, breaking size ties toward the
// lowest point total so strong pieces stay in hand for contested turns.
func (o *Oracle) lead(hand []game.Piece) []game.Piece {
	combos := bestCombos(hand)
	if len(combos) > 0 {
		pick := combos[0]
		for _, c := range combos[1:] {
			if len(c) > len(pick) || (len(c) == len(pick) && game.PointSum(c) < game.PointSum(pick)) {
				pick = c
			}
		}
		o.log.Debugf("leading %s (%d points)", game.Classify(pick), game.PointSum(pick))
		return pick
	}
	return []game.Piece{lowestPiece(hand)}
}

// follow searches every subset of the required size. Among subsets that
// beat the current best play of the lead type it takes the cheapest; with
// no winning subset it sheds the lowest pieces it holds.
func (o *Oracle) follow(hand []game.Piece, requiredCount int, leadType game.PlayType, bestSum int) []game.Piece {
	if requiredCount >= len(hand) {
		return append([]game.Piece(nil), hand...)
	}

	var winner []game.Piece
	winnerSum := 0
	forEachSubset(hand, requiredCount, func(subset []game.Piece) {
		if game.Classify(subset) != leadType {
			return
		}
		sum := game.PointSum(subset)
		if sum <= bestSum {
			return
		}
		if winner == nil || sum < winnerSum {
			winner = append([]game.Piece(nil), subset...)
			winnerSum = sum
		}
	})
	if winner != nil {
		o.log.Debugf("following with %d points over %d", winnerSum, bestSum)
		return winner
	}

	sorted := sortedByPoints(hand)
	return sorted[:requiredCount]
}

// bestCombos returns every valid multi-piece combination in the hand.
func bestCombos(hand []game.Piece) [][]game.Piece {
	var combos [][]game.Piece
	max := len(hand)
	if max > 6 {
		max = 6
	}
	for size := 2; size <= max; size++ {
		forEachSubset(hand, size, func(subset []game.Piece) {
			if game.IsValid(subset) {
				combos = append(combos, append([]game.Piece(nil), subset...))
			}
		})
	}
	return combos
}

// forEachSubset visits every k-subset of the hand. Hands never exceed eight
// pieces, so exhaustive enumeration stays trivially small.
func forEachSubset(hand []game.Piece, k int, visit func([]game.Piece)) {
	if k <= 0 || k > len(hand) {
		return
	}
	idx := make([]int, k)
	subset := make([]game.Piece, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			for i, j := range idx {
				subset[i] = hand[j]
			}
			visit(subset)
			return
		}
		for i := start; i <= len(hand)-(k-depth); i++ {
			idx[depth] = i
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
}

func sortedByPoints(hand []game.Piece) []game.Piece {
	sorted := append([]game.Piece(nil), hand...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Points() < sorted[j].Points()
	})
	return sorted
}

func lowestPiece(hand []game.Piece) game.Piece {
	low := hand[0]
	for _, p := range hand[1:] {
		if p.Points() < low.Points() {
			low = p
		}
	}
	return low
}
