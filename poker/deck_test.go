package poker

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeckDealsDistinctCards(t *testing.T) {
	d := NewDeck(rand.New(rand.NewSource(1)))

	seen := make(map[Card]bool)
	cards := d.Deal(52)
	require.Len(t, cards, 52)
	for _, c := range cards {
		assert.False(t, seen[c], "card %s dealt twice", c)
		seen[c] = true
	}
	assert.Len(t, seen, 52)
	assert.Equal(t, 0, d.CardsRemaining())
	assert.Nil(t, d.Deal(1))
}

func TestDeckDeterministicWithSeed(t *testing.T) {
	a := NewDeck(rand.New(rand.NewSource(42)))
	b := NewDeck(rand.New(rand.NewSource(42)))
	assert.Equal(t, a.Deal(52), b.Deal(52))
}

func TestDeckReset(t *testing.T) {
	d := NewDeck(rand.New(rand.NewSource(7)))
	d.Deal(20)
	require.Equal(t, 32, d.CardsRemaining())
	d.Reset()
	assert.Equal(t, 52, d.CardsRemaining())
}

func TestDealOne(t *testing.T) {
	d := NewDeck(rand.New(rand.NewSource(3)))
	for i := 0; i < 52; i++ {
		_, ok := d.DealOne()
		require.True(t, ok)
	}
	_, ok := d.DealOne()
	assert.False(t, ok)
}

func TestStackDealsInOrder(t *testing.T) {
	cards := MustParseCards("Ah Kd 2c")
	s := NewStack(cards...)

	dealt := s.Deal(2)
	assert.Equal(t, cards[:2], dealt)
	assert.Equal(t, cards[2:], s.Deal(1))
	assert.Nil(t, s.Deal(1))
}

func TestCardParseRoundTrip(t *testing.T) {
	for _, code := range []string{"Ah", "Td", "2c", "Ks", "9h"} {
		c, err := ParseCard(code)
		require.NoError(t, err)
		assert.Equal(t, code, c.String())
	}

	_, err := ParseCard("Zx")
	assert.Error(t, err)
	_, err = ParseCard("A")
	assert.Error(t, err)
}
