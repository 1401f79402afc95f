package game

import "github.com/botfelt/botfelt/poker"

// ViewRole selects how much of the table a projection reveals.
type ViewRole string

const (
	// RolePublic hides every hole card.
	RolePublic ViewRole = "public"
	// RoleComplete reveals every hole card. Engine-internal and replay-input only.
	RoleComplete ViewRole = "complete"
	// RolePlayer reveals the viewer's own cards plus showdown hands.
	RolePlayer ViewRole = "player"
	// RoleSpectator sees what any showdown viewer sees.
	RoleSpectator ViewRole = "spectator"
	// RoleReplay is the redaction applied to persisted snapshots.
	RoleReplay ViewRole = "replay"
)

// PlayerView is a seat as seen by one viewer.
type PlayerView struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Chips            int          `json:"chips"`
	Position         string       `json:"position,omitempty"`
	HoleCards        []poker.Card `json:"holeCards,omitempty"`
	CurrentBet       int          `json:"currentBet"`
	TotalBetThisHand int          `json:"totalBetThisHand"`
	HasActed         bool         `json:"hasActed"`
	IsActive         bool         `json:"isActive"`
	IsFolded         bool         `json:"isFolded"`
	IsAllIn          bool         `json:"isAllIn"`
	IsConnected      bool         `json:"isConnected"`
}

// GameStateView is a self-contained snapshot of the table for one viewer.
type GameStateView struct {
	HandNumber         int          `json:"handNumber"`
	Phase              Phase        `json:"phase"`
	CommunityCards     []poker.Card `json:"communityCards"`
	Pots               []Pot        `json:"pots"`
	PotTotal           int          `json:"potTotal"`
	CurrentBet         int          `json:"currentBet"`
	MinimumRaise       int          `json:"minimumRaise"`
	SmallBlindAmount   int          `json:"smallBlindAmount"`
	BigBlindAmount     int          `json:"bigBlindAmount"`
	DealerIndex        int          `json:"dealerIndex"`
	CurrentPlayerToAct string       `json:"currentPlayerToAct,omitempty"`
	Players            []PlayerView `json:"players"`
}

// projectState renders the game state for a viewer. Hole cards are revealed
// when the viewer is the seat itself, or when the hand has reached showdown
// and the seat has not folded. Folded seats are never revealed.
func projectState(gs *GameState, pots []Pot, role ViewRole, viewerID string) GameStateView {
	view := GameStateView{
		HandNumber:       gs.HandNumber,
		Phase:            gs.Phase,
		CommunityCards:   append([]poker.Card(nil), gs.CommunityCards...),
		Pots:             pots,
		CurrentBet:       gs.CurrentBet,
		MinimumRaise:     gs.MinimumRaise,
		SmallBlindAmount: gs.SmallBlindAmount,
		BigBlindAmount:   gs.BigBlindAmount,
		DealerIndex:      gs.DealerIndex,
		Players:          make([]PlayerView, len(gs.Players)),
	}
	for _, pot := range pots {
		view.PotTotal += pot.Amount
	}
	if actor := gs.CurrentActor(); actor != nil {
		view.CurrentPlayerToAct = actor.ID
	}

	atShowdown := gs.Phase == PhaseShowdown || gs.Phase == PhaseHandComplete

	for i, p := range gs.Players {
		pv := PlayerView{
			ID:               p.ID,
			Name:             p.Name,
			Chips:            p.Chips,
			Position:         p.Position,
			CurrentBet:       p.CurrentBet,
			TotalBetThisHand: p.TotalBetThisHand,
			HasActed:         p.HasActed,
			IsActive:         p.IsActive,
			IsFolded:         p.IsFolded,
			IsAllIn:          p.IsAllIn,
			IsConnected:      p.IsConnected,
		}
		if revealHoleCards(p, role, viewerID, atShowdown) {
			pv.HoleCards = append([]poker.Card(nil), p.HoleCards...)
		}
		view.Players[i] = pv
	}

	return view
}

// RedactViewFor narrows a complete snapshot to what one viewer may see,
// applying the same reveal rules as the live projection. Used where the
// engine cannot be re-entered, such as event fan-out.
func RedactViewFor(view *GameStateView, viewerID string) GameStateView {
	out := *view
	out.Players = make([]PlayerView, len(view.Players))
	copy(out.Players, view.Players)

	atShowdown := view.Phase == PhaseShowdown || view.Phase == PhaseHandComplete
	for i := range out.Players {
		p := &out.Players[i]
		if p.ID == viewerID {
			continue
		}
		if atShowdown && !p.IsFolded {
			continue
		}
		p.HoleCards = nil
	}
	return out
}

func revealHoleCards(p *Player, role ViewRole, viewerID string, atShowdown bool) bool {
	switch role {
	case RoleComplete:
		return true
	case RolePublic:
		return false
	default:
		if p.ID == viewerID {
			return true
		}
		return atShowdown && !p.IsFolded
	}
}
