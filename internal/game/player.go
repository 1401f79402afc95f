package game

import "github.com/botfelt/botfelt/poker"

// Player is a seat at a table. The engine owns the seat array; other
// components refer to seats by their stable ID, which survives disconnects.
type Player struct {
	ID       string
	Name     string
	Chips    int
	Position string // Position tag for the current hand (D, SB, BB, UTG...).

	HoleCards []poker.Card

	CurrentBet       int // Chips committed this betting round.
	TotalBetThisHand int // Chips committed across the whole hand.

	IsActive    bool // Seated and participating in hands.
	HasActed    bool // Acted since the round started or the last complete raise.
	IsFolded    bool
	IsAllIn     bool
	IsConnected bool

	// RoundActions is the per-round action trail, reset each street.
	RoundActions []Action
}

// NewPlayer creates a seated, connected player with the given stack.
func NewPlayer(id, name string, chips int) *Player {
	return &Player{
		ID:          id,
		Name:        name,
		Chips:       chips,
		IsActive:    true,
		IsConnected: true,
	}
}

// CanAct reports whether the seat can take a voluntary action: dealt into the
// hand, not folded, not all-in, with chips behind. Seats that joined mid-hand
// hold no cards and therefore cannot act until the next deal.
func (p *Player) CanAct() bool {
	return p.IsActive && !p.IsFolded && !p.IsAllIn && p.Chips > 0 && len(p.HoleCards) > 0
}

// InHand reports whether the seat still contests the pot.
func (p *Player) InHand() bool {
	return p.IsActive && !p.IsFolded && len(p.HoleCards) > 0
}

// commit moves up to amount chips from the stack into the current bet,
// returning what was actually committed. Going to zero chips marks the seat
// all-in.
func (p *Player) commit(amount int) int {
	if amount > p.Chips {
		amount = p.Chips
	}
	p.Chips -= amount
	p.CurrentBet += amount
	p.TotalBetThisHand += amount
	if p.Chips == 0 {
		p.IsAllIn = true
	}
	return amount
}

// resetForHand clears all per-hand state ahead of a new deal.
func (p *Player) resetForHand() {
	p.HoleCards = nil
	p.CurrentBet = 0
	p.TotalBetThisHand = 0
	p.HasActed = false
	p.IsFolded = false
	p.IsAllIn = false
	p.Position = ""
	p.RoundActions = nil
}

// resetForRound clears per-street state between betting rounds.
func (p *Player) resetForRound() {
	p.CurrentBet = 0
	p.HasActed = false
	p.RoundActions = nil
}
