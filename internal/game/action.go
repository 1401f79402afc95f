package game

import "time"

// ActionType identifies a player action.
type ActionType string

const (
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionBet   ActionType = "bet"
	ActionRaise ActionType = "raise"
	ActionAllIn ActionType = "allin"
)

// Valid reports whether the action type is one of the known kinds.
func (t ActionType) Valid() bool {
	switch t {
	case ActionFold, ActionCheck, ActionCall, ActionBet, ActionRaise, ActionAllIn:
		return true
	}
	return false
}

// Action is a player action. Amount is nil when the client supplied none;
// Bet and Raise require it, Call accepts it as an exactness check.
// For Raise the amount is the total bet to raise to, not the increment.
type Action struct {
	Type      ActionType `json:"type"`
	Amount    *int       `json:"amount,omitempty"`
	PlayerID  string     `json:"playerId"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewAction builds an action without an amount.
func NewAction(playerID string, t ActionType) Action {
	return Action{Type: t, PlayerID: playerID, Timestamp: time.Now()}
}

// NewAmountAction builds an action carrying an amount.
func NewAmountAction(playerID string, t ActionType, amount int) Action {
	return Action{Type: t, Amount: &amount, PlayerID: playerID, Timestamp: time.Now()}
}

// PossibleAction describes one currently legal action for a seat, with the
// amount bounds that apply to it.
type PossibleAction struct {
	Type      ActionType `json:"type"`
	MinAmount int        `json:"minAmount,omitempty"`
	MaxAmount int        `json:"maxAmount,omitempty"`
}
