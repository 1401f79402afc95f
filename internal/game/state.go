package game

import "github.com/botfelt/botfelt/poker"

// Phase represents the lifecycle phase of a hand.
type Phase string

const (
	PhasePreFlop      Phase = "preflop"
	PhaseFlop         Phase = "flop"
	PhaseTurn         Phase = "turn"
	PhaseRiver        Phase = "river"
	PhaseShowdown     Phase = "showdown"
	PhaseHandComplete Phase = "hand_complete"
)

// GameState holds the full table state for one game. The engine is the sole
// writer; everything else reads it through projections or typed accessors.
type GameState struct {
	Players []*Player // Seating ring, clockwise by index.

	DealerIndex     int
	SmallBlindIndex int
	BigBlindIndex   int

	SmallBlindAmount int
	BigBlindAmount   int

	// CurrentBet is the bet to match this round. MinimumRaise is the size of
	// the increment a complete raise must add; it resets to the big blind each
	// street. LastRaiseAmount tracks the most recent complete raise size.
	CurrentBet      int
	MinimumRaise    int
	LastRaiseAmount int

	Phase          Phase
	CommunityCards []poker.Card
	HandNumber     int

	// CurrentPlayerToAct is a seat index into Players, or -1 when nobody acts.
	CurrentPlayerToAct int

	// LastAggressor is the seat of the last player whose bet or raise
	// strictly increased the bet to match, across the whole hand;
	// RoundAggressor is the same within the current street. -1 when none.
	LastAggressor  int
	RoundAggressor int

	// betOccurredThisRound is set once any voluntary bet or raise lands this
	// street. Blind posts do not set it; the big blind keeps its option.
	betOccurredThisRound bool

	// ShownCards records seats whose hole cards were revealed at showdown.
	ShownCards map[string]bool
}

func newGameState(smallBlind, bigBlind int) *GameState {
	return &GameState{
		SmallBlindAmount:   smallBlind,
		BigBlindAmount:     bigBlind,
		MinimumRaise:       bigBlind,
		LastRaiseAmount:    bigBlind,
		Phase:              PhaseHandComplete,
		CurrentPlayerToAct: -1,
		LastAggressor:      -1,
		RoundAggressor:     -1,
		ShownCards:         make(map[string]bool),
	}
}

// PlayerByID returns the seat with the given id, or nil.
func (gs *GameState) PlayerByID(id string) *Player {
	for _, p := range gs.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// SeatIndex returns the ring index of the seat with the given id, or -1.
func (gs *GameState) SeatIndex(id string) int {
	for i, p := range gs.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// CallAmount returns the chips the seat must add to match the current bet.
func (gs *GameState) CallAmount(p *Player) int {
	amount := gs.CurrentBet - p.CurrentBet
	if amount < 0 {
		return 0
	}
	return amount
}

// CurrentActor returns the seat due to act, or nil.
func (gs *GameState) CurrentActor() *Player {
	if gs.CurrentPlayerToAct < 0 || gs.CurrentPlayerToAct >= len(gs.Players) {
		return nil
	}
	return gs.Players[gs.CurrentPlayerToAct]
}

// nextSeatThatCanAct walks clockwise from the given index (inclusive) and
// returns the first seat able to act, or -1.
func (gs *GameState) nextSeatThatCanAct(from int) int {
	n := len(gs.Players)
	if n == 0 {
		return -1
	}
	for i := 0; i < n; i++ {
		idx := ((from+i)%n + n) % n
		if gs.Players[idx].CanAct() {
			return idx
		}
	}
	return -1
}

// seatsInHand counts seats that have not folded out of the hand.
func (gs *GameState) seatsInHand() int {
	count := 0
	for _, p := range gs.Players {
		if p.InHand() {
			count++
		}
	}
	return count
}

// seatsThatCanAct counts seats still able to take a voluntary action.
func (gs *GameState) seatsThatCanAct() int {
	count := 0
	for _, p := range gs.Players {
		if p.CanAct() {
			count++
		}
	}
	return count
}

// distanceFromDealer returns the clockwise distance from the dealer button to
// the given seat index. The dealer itself is 0.
func (gs *GameState) distanceFromDealer(idx int) int {
	n := len(gs.Players)
	if n == 0 {
		return 0
	}
	return ((idx-gs.DealerIndex)%n + n) % n
}

// bettingRoundComplete reports whether the current street is finished: nobody
// can act, or every seat that can act has acted since the last complete raise
// and matches the current bet.
func (gs *GameState) bettingRoundComplete() bool {
	canAct := gs.seatsThatCanAct()
	if canAct == 0 {
		return true
	}
	for _, p := range gs.Players {
		if !p.CanAct() {
			continue
		}
		if !p.HasActed || p.CurrentBet != gs.CurrentBet {
			return false
		}
	}
	return true
}
