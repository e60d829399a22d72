package game

import (
	"fmt"
	"time"
)

// Player is the mutable per-seat aggregate. All mutation happens under the
// owning room's processing lock; Player itself carries no synchronization.
type Player struct {
	Name string

	// Bot / connection state. OriginalIsBot preserves the pre-disconnect
	// value so reconnection restores the exact prior control mode.
	IsBot          bool
	OriginalIsBot  bool
	IsConnected    bool
	DisconnectTime time.Time

	// Round state.
	Hand          []Piece
	Score         int
	Declared      int
	CapturedPiles int
	HasDeclared   bool
}

// NewPlayer creates a player. Bots are always considered connected.
func NewPlayer(name string, isBot bool) *Player {
	return &Player{
		Name:          name,
		IsBot:         isBot,
		OriginalIsBot: isBot,
		IsConnected:   true,
		Declared:      -1,
	}
}

// SetHand replaces the player's hand. Used on deal and redeal only; within
// a round the hand shrinks monotonically through RemovePieces.
func (p *Player) SetHand(pieces []Piece) {
	p.Hand = append(p.Hand[:0:0], pieces...)
}

// HasPieces reports whether every requested piece is present in the hand,
// respecting multiplicity.
func (p *Player) HasPieces(pieces []Piece) bool {
	remaining := append([]Piece(nil), p.Hand...)
	for _, want := range pieces {
		found := -1
		for i, have := range remaining {
			if have == want {
				found = i
				break
			}
		}
		if found < 0 {
			return false
		}
		remaining = append(remaining[:found], remaining[found+1:]...)
	}
	return true
}

// RemovePieces takes the given pieces out of the hand. It fails without
// mutating if any piece is missing.
func (p *Player) RemovePieces(pieces []Piece) error {
	if !p.HasPieces(pieces) {
		return fmt.Errorf("player %s: %w", p.Name, ErrPiecesNotInHand)
	}
	for _, want := range pieces {
		for i, have := range p.Hand {
			if have == want {
				p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
				break
			}
		}
	}
	return nil
}

// MaxPoints returns the point value of the strongest piece in hand.
func (p *Player) MaxPoints() int {
	max := 0
	for _, piece := range p.Hand {
		if v := piece.Points(); v > max {
			max = v
		}
	}
	return max
}

// HasWeakHand reports whether the strongest piece is at or below the
// weak-hand threshold, making the player eligible for a redeal vote.
func (p *Player) HasWeakHand(threshold int) bool {
	return len(p.Hand) > 0 && p.MaxPoints() <= threshold
}

// HoldsPiece reports whether a specific piece kind is in hand.
func (p *Player) HoldsPiece(piece Piece) bool {
	for _, have := range p.Hand {
		if have == piece {
			return true
		}
	}
	return false
}

// ResetForNewRound clears per-round state while keeping the running score
// and connection state.
func (p *Player) ResetForNewRound() {
	p.Hand = nil
	p.Declared = -1
	p.HasDeclared = false
	p.CapturedPiles = 0
}
