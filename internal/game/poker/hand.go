// Package poker implements Texas hold'em hand ranking and table play.
package poker

import (
	"sort"

	"social-casino/internal/model"
)

// Category is a hand class, ordered from weakest to strongest.
type Category int

// Hand categories.
const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

var categoryNames = map[Category]string{
	HighCard:      "high card",
	OnePair:       "pair",
	TwoPair:       "two pair",
	ThreeOfAKind:  "three of a kind",
	Straight:      "straight",
	Flush:         "flush",
	FullHouse:     "full house",
	FourOfAKind:   "four of a kind",
	StraightFlush: "straight flush",
}

func (c Category) String() string {
	return categoryNames[c]
}

// Hand is an evaluated five-card hand. Ranks are the tiebreak values in
// significance order, aces high (14).
type Hand struct {
	Category Category
	Ranks    []int
}

// Compare returns 1 if h beats o, -1 if o beats h, 0 on a tie.
func (h Hand) Compare(o Hand) int {
	if h.Category != o.Category {
		if h.Category > o.Category {
			return 1
		}
		return -1
	}
	for i := 0; i < len(h.Ranks) && i < len(o.Ranks); i++ {
		switch {
		case h.Ranks[i] > o.Ranks[i]:
			return 1
		case h.Ranks[i] < o.Ranks[i]:
			return -1
		}
	}
	return 0
}

// Value returns the poker value of c with aces high.
func Value(c model.Card) int {
	if c.Rank == 1 {
		return 14
	}
	return c.Rank
}

// Evaluate returns the best five-card hand in cards. With fewer than five
// cards only rank groups are considered.
func Evaluate(cards []model.Card) Hand {
	if len(cards) <= 5 {
		return evaluate(cards)
	}

	var best Hand
	first := true
	combo := make([]model.Card, 5)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == 5 {
			h := evaluate(combo)
			if first || h.Compare(best) > 0 {
				best, first = h, false
			}
			return
		}
		for i := start; i <= len(cards)-(5-depth); i++ {
			combo[depth] = cards[i]
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
	return best
}

type group struct {
	value, count int
}

func evaluate(cards []model.Card) Hand {
	counts := make(map[int]int)
	for _, c := range cards {
		counts[Value(c)]++
	}
	groups := make([]group, 0, len(counts))
	for v, n := range counts {
		groups = append(groups, group{v, n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].value > groups[j].value
	})
	ranks := make([]int, len(groups))
	for i, g := range groups {
		ranks[i] = g.value
	}

	if len(cards) == 5 {
		flush := isFlush(cards)
		high, straight := straightHigh(ranks)
		switch {
		case straight && flush:
			return Hand{StraightFlush, []int{high}}
		case groups[0].count == 4:
			return Hand{FourOfAKind, ranks}
		case groups[0].count == 3 && groups[1].count == 2:
			return Hand{FullHouse, ranks}
		case flush:
			return Hand{Flush, ranks}
		case straight:
			return Hand{Straight, []int{high}}
		}
	}

	switch {
	case len(groups) == 0:
		return Hand{HighCard, nil}
	case groups[0].count == 4:
		return Hand{FourOfAKind, ranks}
	case groups[0].count == 3 && len(groups) > 1 && groups[1].count == 2:
		return Hand{FullHouse, ranks}
	case groups[0].count == 3:
		return Hand{ThreeOfAKind, ranks}
	case groups[0].count == 2 && len(groups) > 1 && groups[1].count == 2:
		return Hand{TwoPair, ranks}
	case groups[0].count == 2:
		return Hand{OnePair, ranks}
	default:
		return Hand{HighCard, ranks}
	}
}

func isFlush(cards []model.Card) bool {
	for _, c := range cards[1:] {
		if c.Suit != cards[0].Suit {
			return false
		}
	}
	return true
}

// straightHigh reports whether five distinct descending ranks form a
// straight, and its top card. A-2-3-4-5 plays as five high.
func straightHigh(ranks []int) (int, bool) {
	if len(ranks) != 5 {
		return 0, false
	}
	if ranks[0]-ranks[4] == 4 {
		return ranks[0], true
	}
	if ranks[0] == 14 && ranks[1] == 5 && ranks[4] == 2 {
		return 5, true
	}
	return 0, false
}
