package game

import (
	"sort"

	"github.com/botfelt/botfelt/poker"
)

// Pot is a main or side pot. Eligible lists the seat ids that can win it;
// folded contributions stay in Amount but folded seats are never eligible.
type Pot struct {
	Amount   int      `json:"amount"`
	Eligible []string `json:"eligible"`
	IsMain   bool     `json:"isMain"`
}

// eligibleFor reports whether the seat id can win this pot.
func (p Pot) eligibleFor(id string) bool {
	for _, e := range p.Eligible {
		if e == id {
			return true
		}
	}
	return false
}

// Payout records chips awarded to a seat from one pot.
type Payout struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
	PotIndex int    `json:"potIndex"`
}

// PotManager tracks per-hand contributions and exposes the canonical pot
// layout including side pots. Exactly one engine owns each manager.
type PotManager struct {
	contributions map[string]int
	pots          []Pot
}

// NewPotManager creates an empty pot manager.
func NewPotManager() *PotManager {
	pm := &PotManager{}
	pm.Reset()
	return pm
}

// Reset clears all contributions and recreates a single empty main pot.
func (pm *PotManager) Reset() {
	pm.contributions = make(map[string]int)
	pm.pots = []Pot{{IsMain: true}}
}

// AddBet records a contribution into the running main pot.
func (pm *PotManager) AddBet(playerID string, amount int) {
	if amount <= 0 {
		return
	}
	pm.contributions[playerID] += amount
	pm.pots[0].Amount += amount
	if !pm.pots[0].eligibleFor(playerID) {
		pm.pots[0].Eligible = append(pm.pots[0].Eligible, playerID)
	}
}

// Pots returns the current pot layout. Index 0 is the main pot.
func (pm *PotManager) Pots() []Pot {
	out := make([]Pot, len(pm.pots))
	copy(out, pm.pots)
	return out
}

// Total returns the sum across all pots.
func (pm *PotManager) Total() int {
	total := 0
	for _, pot := range pm.pots {
		total += pot.Amount
	}
	return total
}

// CreateSidePots rebuilds the pot list from each seat's total contribution
// this hand. Layer boundaries are the distinct contribution levels of the
// non-folded seats, ascending; each layer holds (level - previous) chips from
// every seat that contributed at least that much, plus folded partials below
// it. Only non-folded seats at the level are eligible; folded money stays in
// the pots but folded seats never win.
func (pm *PotManager) CreateSidePots(seats []*Player) {
	levelSet := make(map[int]bool)
	for _, p := range seats {
		if !p.IsFolded && p.TotalBetThisHand > 0 {
			levelSet[p.TotalBetThisHand] = true
		}
	}

	levels := make([]int, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	total := 0
	for _, p := range seats {
		total += p.TotalBetThisHand
	}

	pots := make([]Pot, 0, len(levels))
	prev := 0
	layered := 0
	for i, level := range levels {
		pot := Pot{IsMain: i == 0}
		for _, p := range seats {
			if p.TotalBetThisHand < level {
				// Partial contributions below this layer still belong to it.
				if p.TotalBetThisHand > prev {
					pot.Amount += p.TotalBetThisHand - prev
				}
				continue
			}
			pot.Amount += level - prev
			if !p.IsFolded {
				pot.Eligible = append(pot.Eligible, p.ID)
			}
		}
		layered += pot.Amount
		pots = append(pots, pot)
		prev = level
	}

	if len(pots) == 0 {
		pots = []Pot{{IsMain: true}}
	}

	// Folded contributions above the top live level have no layer of their
	// own; they sweeten the top pot so Σ pots = Σ contributions holds.
	if excess := total - layered; excess > 0 {
		pots[len(pots)-1].Amount += excess
	}

	pm.pots = pots
}

// DistributePots awards every pot, lowest layer first. For each pot the
// strictly best-ranked eligible seats share it; when no rankings are supplied
// for a pot's eligible seats the pot splits evenly among them. Splits use
// integer division with odd chips going to the tied winner with the worst
// table position, where worse(a, b) reports that seat a ranks behind seat b.
func (pm *PotManager) DistributePots(values map[string]poker.HandValue, worse func(a, b string) bool) []Payout {
	var payouts []Payout

	for potIdx, pot := range pm.pots {
		if pot.Amount == 0 || len(pot.Eligible) == 0 {
			continue
		}

		winners := bestRanked(pot.Eligible, values)
		if len(winners) == 0 {
			// No evaluations for this pot (hand ended before showdown).
			winners = append(winners, pot.Eligible...)
		}

		share := pot.Amount / len(winners)
		odd := pot.Amount - share*len(winners)

		oddTo := winners[0]
		for _, id := range winners[1:] {
			if worse(id, oddTo) {
				oddTo = id
			}
		}

		for _, id := range winners {
			amount := share
			if id == oddTo {
				amount += odd
			}
			if amount > 0 {
				payouts = append(payouts, Payout{PlayerID: id, Amount: amount, PotIndex: potIdx})
			}
		}
	}

	return payouts
}

// bestRanked returns the eligible ids holding the strictly best hand value,
// or nil when none of them have a value.
func bestRanked(eligible []string, values map[string]poker.HandValue) []string {
	var best poker.HandValue
	var winners []string
	for _, id := range eligible {
		v, ok := values[id]
		if !ok {
			continue
		}
		if len(winners) == 0 || v.Key > best.Key {
			best = v
			winners = []string{id}
		} else if v.Key == best.Key {
			winners = append(winners, id)
		}
	}
	return winners
}
