package poker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEval(t *testing.T, cards string) HandValue {
	t.Helper()
	parsed, err := ParseCards(cards)
	require.NoError(t, err)
	v, err := Evaluate(parsed...)
	require.NoError(t, err)
	return v
}

func TestEvaluateCategories(t *testing.T) {
	tests := []struct {
		name     string
		cards    string
		category HandCategory
	}{
		{"high card", "Ah Kd 9s 7c 2h", HighCard},
		{"one pair", "Ah Ad 9s 7c 2h", OnePair},
		{"two pair", "Ah Ad 9s 9c 2h", TwoPair},
		{"three of a kind", "Ah Ad As 7c 2h", ThreeOfAKind},
		{"straight", "9h 8d 7s 6c 5h", Straight},
		{"wheel straight", "Ah 2d 3s 4c 5h", Straight},
		{"flush", "Ah Kh 9h 7h 2h", Flush},
		{"full house", "Ah Ad As 7c 7h", FullHouse},
		{"four of a kind", "Ah Ad As Ac 2h", FourOfAKind},
		{"straight flush", "9h 8h 7h 6h 5h", StraightFlush},
		{"royal flush", "Ah Kh Qh Jh Th", RoyalFlush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustEval(t, tt.cards)
			assert.Equal(t, tt.category, v.Category)
		})
	}
}

func TestEvaluateOrdering(t *testing.T) {
	// Each hand must beat the next one down.
	hands := []string{
		"Ah Kh Qh Jh Th", // royal flush
		"9h 8h 7h 6h 5h", // straight flush
		"Ah Ad As Ac 2h", // quads
		"Kh Kd Ks 7c 7h", // full house
		"Ah Kh 9h 7h 2h", // flush
		"9h 8d 7s 6c 5h", // straight
		"Ah 2d 3s 4c 5h", // wheel
		"Qh Qd Qs 7c 2h", // trips
		"Ah Ad 9s 9c 2h", // two pair
		"Ah Ad 9s 7c 2h", // pair
		"Ah Kd 9s 7c 2h", // high card
	}

	for i := 0; i < len(hands)-1; i++ {
		stronger := mustEval(t, hands[i])
		weaker := mustEval(t, hands[i+1])
		assert.Equal(t, 1, stronger.Compare(weaker), "%q should beat %q", hands[i], hands[i+1])
		assert.Equal(t, -1, weaker.Compare(stronger))
	}
}

func TestWheelStraightTopsAtFive(t *testing.T) {
	wheel := mustEval(t, "Ah 2d 3s 4c 5h")
	sixHigh := mustEval(t, "2d 3s 4c 5h 6d")
	assert.Equal(t, 1, sixHigh.Compare(wheel), "6-high straight beats the wheel")

	wheelFlush := mustEval(t, "Ah 2h 3h 4h 5h")
	assert.Equal(t, StraightFlush, wheelFlush.Category)
	steelSix := mustEval(t, "2h 3h 4h 5h 6h")
	assert.Equal(t, 1, steelSix.Compare(wheelFlush))
}

func TestKickersBreakTies(t *testing.T) {
	tests := []struct {
		name   string
		better string
		worse  string
	}{
		{"pair kicker", "Ah Ad Ks 7c 2h", "As Ac Qs 7d 2d"},
		{"two pair kicker", "Ah Ad 9s 9c Kh", "As Ac 9d 9h Qh"},
		{"higher pair in two pair", "Ah Ad 3s 3c 2h", "Kh Kd Qs Qc Jh"},
		{"quads kicker", "9h 9d 9s 9c Ah", "9h 9d 9s 9c Kh"},
		{"full house trips rank", "9h 9d 9s Ac Ah", "8h 8d 8s Ac Ah"},
		{"flush high card", "Ah Kh 9h 7h 2h", "Ah Qh Jh 7h 2h"},
		{"high card chain", "Ah Kd 9s 7c 3h", "Ah Kd 9s 7c 2h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			better := mustEval(t, tt.better)
			worse := mustEval(t, tt.worse)
			assert.Equal(t, 1, better.Compare(worse))
		})
	}
}

func TestEqualHandsTie(t *testing.T) {
	a := mustEval(t, "Ah Kd 9s 7c 2h")
	b := mustEval(t, "As Kc 9d 7h 2s")
	assert.Equal(t, 0, a.Compare(b), "suits alone never break ties")
}

func TestEvaluateSevenCardsPicksBestFive(t *testing.T) {
	// Board pairs the hole cards into a full house even though the best
	// five-card subset is not the first five.
	v := mustEval(t, "Ah Ad 9s 9c 9h 2d 3c")
	assert.Equal(t, FullHouse, v.Category)

	// Seven cards with a hidden flush.
	v = mustEval(t, "Ah Kd 9h 7h 2h 5h 3c")
	assert.Equal(t, Flush, v.Category)
}

func TestEvaluateSixCards(t *testing.T) {
	v := mustEval(t, "Ah Ad As 7c 2h 9d")
	assert.Equal(t, ThreeOfAKind, v.Category)
}

func TestEvaluateNotEnoughCards(t *testing.T) {
	cards, err := ParseCards("Ah Kd 9s 7c")
	require.NoError(t, err)
	_, err = Evaluate(cards...)
	assert.ErrorIs(t, err, ErrNotEnoughCards)

	_, err = Evaluate()
	assert.ErrorIs(t, err, ErrNotEnoughCards)
}

func TestHandValueCardsPopulated(t *testing.T) {
	v := mustEval(t, "Ah Kh Qh Jh Th 2c 3d")
	assert.Equal(t, RoyalFlush, v.Category)
	for _, c := range v.Cards {
		assert.Equal(t, Hearts, c.Suit)
	}
}
