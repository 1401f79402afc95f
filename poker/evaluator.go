package poker

import (
	"errors"
	"sort"
)

// HandCategory enumerates poker hand categories from weakest to strongest.
type HandCategory uint8

const (
	HighCard HandCategory = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns a human-readable category name.
func (c HandCategory) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// ErrNotEnoughCards is returned by Evaluate when fewer than five cards are
// supplied.
var ErrNotEnoughCards = errors.New("poker: not enough cards to evaluate")

// HandValue is the result of evaluating a hand. Key is a strictly ordered
// comparison value: for any two hands a and b, a.Key > b.Key iff a wins under
// standard poker ranking, kickers included. Equal keys tie.
type HandValue struct {
	Category HandCategory
	Key      int64
	Cards    [5]Card // The best five cards, strongest grouping first.
}

// Compare returns 1 if v beats o, -1 if o beats v, 0 on a tie.
func (v HandValue) Compare(o HandValue) int {
	switch {
	case v.Key > o.Key:
		return 1
	case v.Key < o.Key:
		return -1
	default:
		return 0
	}
}

// Evaluate returns the best five-card hand from the supplied cards,
// considering every C(n,5) subset. It fails with ErrNotEnoughCards when fewer
// than five cards are given. Evaluate is stateless and safe to call from any
// goroutine.
func Evaluate(cards ...Card) (HandValue, error) {
	n := len(cards)
	if n < 5 {
		return HandValue{}, ErrNotEnoughCards
	}

	var best HandValue
	var combo [5]Card
	found := false

	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == 5 {
			v := evaluateFive(combo)
			if !found || v.Key > best.Key {
				best = v
				found = true
			}
			return
		}
		for i := start; i <= n-(5-depth); i++ {
			combo[depth] = cards[i]
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)

	return best, nil
}

// evaluateFive ranks exactly five cards.
func evaluateFive(cards [5]Card) HandValue {
	sorted := cards
	sort.Slice(sorted[:], func(i, j int) bool { return sorted[i].Rank > sorted[j].Rank })

	flush := true
	for i := 1; i < 5; i++ {
		if sorted[i].Suit != sorted[0].Suit {
			flush = false
			break
		}
	}

	straightTop := straightTopRank(sorted)

	// Rank multiplicities, highest group first, ties broken by rank.
	type group struct {
		rank  Rank
		count int
	}
	counts := map[Rank]int{}
	for _, c := range sorted {
		counts[c.Rank]++
	}
	groups := make([]group, 0, 5)
	for r, n := range counts {
		groups = append(groups, group{rank: r, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	var category HandCategory
	var tiebreak []Rank

	switch {
	case flush && straightTop == Ace:
		category = RoyalFlush
		tiebreak = []Rank{Ace}
	case flush && straightTop != 0:
		category = StraightFlush
		tiebreak = []Rank{straightTop}
	case groups[0].count == 4:
		category = FourOfAKind
		tiebreak = []Rank{groups[0].rank, groups[1].rank}
	case groups[0].count == 3 && groups[1].count == 2:
		category = FullHouse
		tiebreak = []Rank{groups[0].rank, groups[1].rank}
	case flush:
		category = Flush
		tiebreak = ranksOf(sorted)
	case straightTop != 0:
		category = Straight
		tiebreak = []Rank{straightTop}
	case groups[0].count == 3:
		category = ThreeOfAKind
		tiebreak = []Rank{groups[0].rank, groups[1].rank, groups[2].rank}
	case groups[0].count == 2 && groups[1].count == 2:
		category = TwoPair
		tiebreak = []Rank{groups[0].rank, groups[1].rank, groups[2].rank}
	case groups[0].count == 2:
		category = OnePair
		tiebreak = []Rank{groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank}
	default:
		category = HighCard
		tiebreak = ranksOf(sorted)
	}

	key := int64(category)
	for i := 0; i < 5; i++ {
		var r Rank
		if i < len(tiebreak) {
			r = tiebreak[i]
		}
		key = key<<8 | int64(r)
	}

	return HandValue{Category: category, Key: key, Cards: sorted}
}

// straightTopRank returns the top rank of a straight formed by the five
// rank-descending cards, or 0 when they do not form one. The wheel
// (A-2-3-4-5) counts the Ace low; its top rank is Five.
func straightTopRank(sorted [5]Card) Rank {
	consecutive := true
	for i := 1; i < 5; i++ {
		if sorted[i-1].Rank != sorted[i].Rank+1 {
			consecutive = false
			break
		}
	}
	if consecutive {
		return sorted[0].Rank
	}

	if sorted[0].Rank == Ace &&
		sorted[1].Rank == Five && sorted[2].Rank == Four &&
		sorted[3].Rank == Three && sorted[4].Rank == Two {
		return Five
	}

	return 0
}

func ranksOf(cards [5]Card) []Rank {
	ranks := make([]Rank, 5)
	for i, c := range cards {
		ranks[i] = c.Rank
	}
	return ranks
}
