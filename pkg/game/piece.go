package game

import "fmt"

// Color is the tile color. The full deck carries two copies of the piece
// roster, one per color, with red pieces always worth one point more than
// their black counterparts.
type Color int

const (
	Red Color = iota
	Black
)

func (c Color) String() string {
	if c == Red {
		return "RED"
	}
	return "BLACK"
}

// PieceName identifies one of the seven piece ranks.
type PieceName int

const (
	General PieceName = iota
	Advisor
	Elephant
	Chariot
	Horse
	Cannon
	Soldier
)

var pieceNameStrings = map[PieceName]string{
	General:  "GENERAL",
	Advisor:  "ADVISOR",
	Elephant: "ELEPHANT",
	Chariot:  "CHARIOT",
	Horse:    "HORSE",
	Cannon:   "CANNON",
	Soldier:  "SOLDIER",
}

func (n PieceName) String() string {
	if s, ok := pieceNameStrings[n]; ok {
		return s
	}
	return "UNKNOWN"
}

// Piece is an immutable tile value. Pieces are constructed once per deck
// build and only change owners, never contents.
type Piece struct {
	Name  PieceName `json:"name"`
	Color Color     `json:"color"`
}

// Fixed point table, 1-14. Red outranks black by one point at every rank.
var piecePoints = map[Color]map[PieceName]int{
	Red: {
		General:  14,
		Advisor:  12,
		Elephant: 10,
		Chariot:  8,
		Horse:    6,
		Cannon:   4,
		Soldier:  2,
	},
	Black: {
		General:  13,
		Advisor:  11,
		Elephant: 9,
		Chariot:  7,
		Horse:    5,
		Cannon:   3,
		Soldier:  1,
	},
}

// Copies of each rank per color; 16 pieces per color, 32 total.
var pieceCopies = map[PieceName]int{
	General:  1,
	Advisor:  2,
	Elephant: 2,
	Chariot:  2,
	Horse:    2,
	Cannon:   2,
	Soldier:  5,
}

// Points returns the fixed point value of the piece.
func (p Piece) Points() int {
	return piecePoints[p.Color][p.Name]
}

func (p Piece) String() string {
	return fmt.Sprintf("%s_%s", p.Name, p.Color)
}

// BuildDeck returns the full 32-piece deck in deterministic order.
func BuildDeck() []Piece {
	deck := make([]Piece, 0, 32)
	for _, color := range []Color{Red, Black} {
		for _, name := range []PieceName{General, Advisor, Elephant, Chariot, Horse, Cannon, Soldier} {
			for i := 0; i < pieceCopies[name]; i++ {
				deck = append(deck, Piece{Name: name, Color: color})
			}
		}
	}
	return deck
}

// ParseColor maps a wire color string back to a Color.
func ParseColor(s string) (Color, error) {
	switch s {
	case "RED":
		return Red, nil
	case "BLACK":
		return Black, nil
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

// ParsePieceName maps a wire name string back to a PieceName.
func ParsePieceName(s string) (PieceName, error) {
	for name, str := range pieceNameStrings {
		if str == s {
			return name, nil
		}
	}
	return 0, fmt.Errorf("unknown piece name %q", s)
}

// PointSum totals the point values of a set of pieces.
func PointSum(pieces []Piece) int {
	sum := 0
	for _, p := range pieces {
		sum += p.Points()
	}
	return sum
}
