package poker

import (
	"math/rand"
)

// Deck represents a standard 52-card deck. Cards are dealt without
// replacement until Reset is called.
type Deck struct {
	cards [52]Card
	next  int
	rng   *rand.Rand
}

// NewDeck creates a new shuffled deck with an explicit RNG. Passing the same
// seeded RNG yields a deterministic deal order, which the engine tests rely on.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}

	i := 0
	for suit := range uint8(4) {
		for rank := uint8(2); rank <= 14; rank++ {
			d.cards[i] = NewCard(Rank(rank), Suit(suit))
			i++
		}
	}

	d.Shuffle()
	return d
}

// Shuffle reshuffles the full deck using Fisher-Yates and rewinds the deal
// position.
func (d *Deck) Shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.Intn(i + 1)
		} else {
			j = rand.Intn(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal deals n cards from the deck, or nil if fewer than n remain.
func (d *Deck) Deal(n int) []Card {
	if d.next+n > len(d.cards) {
		return nil
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards
}

// DealOne deals a single card from the deck.
func (d *Deck) DealOne() (Card, bool) {
	if d.next >= len(d.cards) {
		return Card{}, false
	}
	card := d.cards[d.next]
	d.next++
	return card, true
}

// Reset reshuffles the deck for a new hand.
func (d *Deck) Reset() {
	d.Shuffle()
}

// CardsRemaining returns the number of undealt cards.
func (d *Deck) CardsRemaining() int {
	return len(d.cards) - d.next
}

// Stack is a fixed sequence of cards used in place of a shuffled deck for
// deterministic tests. Cards are dealt in the order given.
type Stack struct {
	cards []Card
	next  int
}

// NewStack creates a card source that deals the given cards in order.
func NewStack(cards ...Card) *Stack {
	return &Stack{cards: cards}
}

// Deal deals n cards from the stack, or nil if fewer than n remain.
func (s *Stack) Deal(n int) []Card {
	if s.next+n > len(s.cards) {
		return nil
	}
	cards := make([]Card, n)
	copy(cards, s.cards[s.next:s.next+n])
	s.next += n
	return cards
}

// CardSource abstracts a deck for the engine: anything that yields distinct
// cards in sequence.
type CardSource interface {
	Deal(n int) []Card
}
