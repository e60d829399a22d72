package game

// PlayType classifies a set of played pieces.
type PlayType int

const (
	InvalidPlay PlayType = iota
	Single
	Pair
	ThreeOfAKind
	Straight
	FourOfAKind
	ExtendedStraight
	FiveOfAKind
	ExtendedStraight5
	DoubleStraight
)

var playTypeStrings = map[PlayType]string{
	InvalidPlay:       "INVALID",
	Single:            "SINGLE",
	Pair:              "PAIR",
	ThreeOfAKind:      "THREE_OF_A_KIND",
	Straight:          "STRAIGHT",
	FourOfAKind:       "FOUR_OF_A_KIND",
	ExtendedStraight:  "EXTENDED_STRAIGHT",
	FiveOfAKind:       "FIVE_OF_A_KIND",
	ExtendedStraight5: "EXTENDED_STRAIGHT_5",
	DoubleStraight:    "DOUBLE_STRAIGHT",
}

func (t PlayType) String() string {
	if s, ok := playTypeStrings[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// CompareResult is the outcome of comparing two plays of the same type.
type CompareResult int

const (
	Tie CompareResult = iota
	AWins
	BWins
)

// The two straight triads. A straight is three distinct names from one
// triad, all in one color; extended straights duplicate names within the
// same triad.
var triads = [2][3]PieceName{
	{General, Advisor, Elephant},
	{Chariot, Horse, Cannon},
}

// Classify determines the play type of an ordered set of pieces.
// Classification is deterministic: piece count selects the candidate types,
// and the first matching rule wins.
func Classify(pieces []Piece) PlayType {
	switch len(pieces) {
	case 1:
		return Single
	case 2:
		if samePair(pieces) {
			return Pair
		}
	case 3:
		if allSoldiersSameColor(pieces) {
			return ThreeOfAKind
		}
		if isTriadRun(pieces, 0) {
			return Straight
		}
	case 4:
		if allSoldiersSameColor(pieces) {
			return FourOfAKind
		}
		if isTriadRun(pieces, 1) {
			return ExtendedStraight
		}
	case 5:
		if allSoldiersSameColor(pieces) {
			return FiveOfAKind
		}
		if isTriadRun(pieces, 2) {
			return ExtendedStraight5
		}
	case 6:
		if isDoubleRun(pieces) {
			return DoubleStraight
		}
	}
	return InvalidPlay
}

// IsValid reports whether the pieces form any legal play.
func IsValid(pieces []Piece) bool {
	return Classify(pieces) != InvalidPlay
}

// Compare ranks two plays of the same type by total point value. Comparing
// plays of different types is undefined; callers must gate on type equality
// first.
func Compare(a, b []Piece) CompareResult {
	sumA, sumB := PointSum(a), PointSum(b)
	switch {
	case sumA > sumB:
		return AWins
	case sumB > sumA:
		return BWins
	default:
		return Tie
	}
}

func samePair(pieces []Piece) bool {
	return pieces[0].Name == pieces[1].Name && pieces[0].Color == pieces[1].Color
}

func allSameColor(pieces []Piece) bool {
	c := pieces[0].Color
	for _, p := range pieces {
		if p.Color != c {
			return false
		}
	}
	return true
}

func allSoldiersSameColor(pieces []Piece) bool {
	if !allSameColor(pieces) {
		return false
	}
	for _, p := range pieces {
		if p.Name != Soldier {
			return false
		}
	}
	return true
}

// isTriadRun checks for a same-color run covering all three names of one
// triad with exactly `extra` duplicated pieces beyond the base three.
func isTriadRun(pieces []Piece, extra int) bool {
	if !allSameColor(pieces) {
		return false
	}
	if len(pieces) != 3+extra {
		return false
	}
	for _, triad := range triads {
		counts := triadCounts(pieces, triad)
		if counts == nil {
			continue
		}
		complete := true
		dups := 0
		for _, n := range counts {
			if n == 0 {
				complete = false
				break
			}
			dups += n - 1
		}
		if complete && dups == extra {
			return true
		}
	}
	return false
}

// isDoubleRun checks for exactly two copies of every name in one triad,
// all in one color.
func isDoubleRun(pieces []Piece) bool {
	if !allSameColor(pieces) || len(pieces) != 6 {
		return false
	}
	for _, triad := range triads {
		counts := triadCounts(pieces, triad)
		if counts == nil {
			continue
		}
		if counts[0] == 2 && counts[1] == 2 && counts[2] == 2 {
			return true
		}
	}
	return false
}

// triadCounts tallies pieces per triad name, or returns nil if any piece
// falls outside the triad.
func triadCounts(pieces []Piece, triad [3]PieceName) []int {
	counts := make([]int, 3)
	for _, p := range pieces {
		matched := false
		for i, name := range triad {
			if p.Name == name {
				counts[i]++
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}
	}
	return counts
}
