package game

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/decred/slog"
)

// NumSeats is fixed: the game is always played four-handed.
const NumSeats = 4

// Config holds the balance constants and wiring for a new game. The
// thresholds are game-balance knobs, not structural requirements, so they
// stay configurable with package defaults.
type Config struct {
	WeakHandThreshold int
	WinningScore      int
	RedealLimit       int
	HandSize          int
	Seed              int64 // optional seed for deterministic deals
	Log               slog.Logger
}

// DefaultConfig returns the standard balance constants.
func DefaultConfig() Config {
	return Config{
		WeakHandThreshold: 9,
		WinningScore:      50,
		RedealLimit:       3,
		HandSize:          8,
	}
}

// Game is the authoritative round/turn state for one room. It is mutated
// only by the currently active phase under the room's processing lock.
type Game struct {
	cfg     Config
	players [NumSeats]*Player
	rng     *rand.Rand

	RoundNumber      int
	TurnNumber       int
	RedealMultiplier int

	// Per-round bookkeeping, copied out of phase-scoped data at transition
	// boundaries.
	Declarations   map[string]int
	PileCounts     map[string]int
	LastTurnWinner string
	RedealAcceptor string

	startedAt time.Time
	log       slog.Logger
}

// New creates a game for exactly four players seated in the given order.
func New(cfg Config, players [NumSeats]*Player) *Game {
	for seat, p := range players {
		if p == nil {
			panic(fmt.Sprintf("game: nil player at seat %d", seat))
		}
	}
	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Game{
		cfg:              cfg,
		players:          players,
		rng:              rng,
		RoundNumber:      0,
		RedealMultiplier: 1,
		Declarations:     make(map[string]int),
		PileCounts:       make(map[string]int),
		startedAt:        time.Now(),
		log:              log,
	}
}

// Config returns the game's balance constants.
func (g *Game) Config() Config { return g.cfg }

// Players returns the seat-ordered player list.
func (g *Game) Players() []*Player {
	return g.players[:]
}

// PlayerByName finds a player by name.
func (g *Game) PlayerByName(name string) (*Player, error) {
	for _, p := range g.players {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrPlayerNotFound)
}

// SeatOf returns a player's seat index, or -1.
func (g *Game) SeatOf(name string) int {
	for seat, p := range g.players {
		if p.Name == name {
			return seat
		}
	}
	return -1
}

// OrderFrom returns all four players in seat rotation starting at the named
// player. Falls back to seat 0 when the name is unknown.
func (g *Game) OrderFrom(starter string) []*Player {
	start := g.SeatOf(starter)
	if start < 0 {
		start = 0
	}
	order := make([]*Player, 0, NumSeats)
	for i := 0; i < NumSeats; i++ {
		order = append(order, g.players[(start+i)%NumSeats])
	}
	return order
}

// Deal shuffles the full deck and replaces every hand. Used for the initial
// deal of a round and for accepted redeals alike.
func (g *Game) Deal() {
	deck := BuildDeck()
	g.rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	for seat, p := range g.players {
		start := seat * g.cfg.HandSize
		p.SetHand(deck[start : start+g.cfg.HandSize])
	}
	g.log.Debugf("dealt round %d hands (multiplier=%d)", g.RoundNumber, g.RedealMultiplier)
}

// WeakPlayers returns the names of players whose strongest piece is at or
// below the weak-hand threshold.
func (g *Game) WeakPlayers() []string {
	weak := make([]string, 0, NumSeats)
	for _, p := range g.players {
		if p.HasWeakHand(g.cfg.WeakHandThreshold) {
			weak = append(weak, p.Name)
		}
	}
	return weak
}

// RedealAllowed reports whether another redeal may still be offered.
func (g *Game) RedealAllowed() bool {
	return g.RedealMultiplier <= g.cfg.RedealLimit
}

// AcceptRedeal applies an accepted redeal: full re-deal for everyone and a
// bumped multiplier. The accepting player becomes the round starter.
func (g *Game) AcceptRedeal(acceptor string) {
	g.RedealMultiplier++
	g.RedealAcceptor = acceptor
	g.Deal()
	g.log.Infof("redeal accepted by %s, multiplier now %d", acceptor, g.RedealMultiplier)
}

// GeneralRedHolder returns the player holding the red GENERAL, or "".
func (g *Game) GeneralRedHolder() string {
	target := Piece{Name: General, Color: Red}
	for _, p := range g.players {
		if p.HoldsPiece(target) {
			return p.Name
		}
	}
	return ""
}

// DetermineStarter resolves the round starter and the transition reason,
// executed once at the PREPARATION to ROUND_START boundary.
func (g *Game) DetermineStarter() (starter, reason string) {
	if g.RedealAcceptor != "" {
		return g.RedealAcceptor, "accepted_redeal"
	}
	if g.RoundNumber == 1 {
		if holder := g.GeneralRedHolder(); holder != "" {
			return holder, "has_general_red"
		}
		// A full deck always places the red GENERAL somewhere; guard anyway.
		return g.players[0].Name, "default"
	}
	return g.LastTurnWinner, "won_last_turn"
}

// RecordDeclaration commits a player's declared pile target into game state.
func (g *Game) RecordDeclaration(name string, value int) error {
	p, err := g.PlayerByName(name)
	if err != nil {
		return err
	}
	p.Declared = value
	p.HasDeclared = true
	g.Declarations[name] = value
	return nil
}

// DeclarationTotal sums all recorded declarations.
func (g *Game) DeclarationTotal() int {
	total := 0
	for _, v := range g.Declarations {
		total += v
	}
	return total
}

// AwardPiles credits a turn's winner and advances the turn counter.
func (g *Game) AwardPiles(winner string, count int) error {
	p, err := g.PlayerByName(winner)
	if err != nil {
		return err
	}
	p.CapturedPiles += count
	g.PileCounts[winner] = p.CapturedPiles
	g.LastTurnWinner = winner
	return nil
}

// AllHandsEmpty reports whether the round is over.
func (g *Game) AllHandsEmpty() bool {
	for _, p := range g.players {
		if len(p.Hand) > 0 {
			return false
		}
	}
	return true
}

// StartRound advances the round counter and deals fresh hands. Per-round
// bookkeeping resets; running scores persist on the players.
func (g *Game) StartRound() {
	g.RoundNumber++
	g.TurnNumber = 0
	g.RedealMultiplier = 1
	g.RedealAcceptor = ""
	g.Declarations = make(map[string]int)
	g.PileCounts = make(map[string]int)
	for _, p := range g.players {
		p.ResetForNewRound()
	}
	g.Deal()
}

// Winners returns the names of players at or above the winning score.
func (g *Game) Winners() []string {
	winners := make([]string, 0, 1)
	for _, p := range g.players {
		if p.Score >= g.cfg.WinningScore {
			winners = append(winners, p.Name)
		}
	}
	return winners
}

// Ranking is one row of the final standings.
type Ranking struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Rank  int    `json:"rank"`
}

// Rankings returns players sorted descending by score. Ties keep seat
// order; tied players share a rank.
func (g *Game) Rankings() []Ranking {
	ordered := append([]*Player(nil), g.players[:]...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})
	rankings := make([]Ranking, len(ordered))
	for i, p := range ordered {
		rank := i + 1
		if i > 0 && p.Score == ordered[i-1].Score {
			rank = rankings[i-1].Rank
		}
		rankings[i] = Ranking{Name: p.Name, Score: p.Score, Rank: rank}
	}
	return rankings
}

// Elapsed returns the wall-clock duration since game start.
func (g *Game) Elapsed() time.Duration {
	return time.Since(g.startedAt)
}
