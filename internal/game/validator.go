package game

// ActionValidator checks actions against the rules of no-limit hold'em. It is
// a pure reader of GameState: validation never mutates anything, so a failed
// action leaves the table untouched.
type ActionValidator struct{}

// Validate returns nil when the action is legal, or a *ValidationError
// explaining the first rule it breaks. Checks run in a fixed order: unknown
// player, out of turn, unable to act, then action-specific rules.
func (v ActionValidator) Validate(gs *GameState, action Action) error {
	p := gs.PlayerByID(action.PlayerID)
	if p == nil {
		return validationErr(KindPlayerNotFound, "player not found")
	}
	if gs.CurrentActor() != p {
		return validationErr(KindNotPlayersTurn, "not player's turn to act")
	}
	if !p.CanAct() {
		return validationErr(KindPlayerCannotAct, "player cannot act")
	}

	switch action.Type {
	case ActionFold:
		return nil
	case ActionCheck:
		return v.validateCheck(gs, p)
	case ActionCall:
		return v.validateCall(gs, p, action)
	case ActionBet:
		return v.validateBet(gs, p, action)
	case ActionRaise:
		return v.validateRaise(gs, p, action)
	case ActionAllIn:
		return v.validateAllIn(p)
	default:
		return validationErr(KindInvalidActionType, "invalid action type")
	}
}

func (v ActionValidator) validateCheck(gs *GameState, p *Player) error {
	if gs.CallAmount(p) > 0 {
		return validationErr(KindCannotCheck, "cannot check when there is a bet")
	}
	return nil
}

func (v ActionValidator) validateCall(gs *GameState, p *Player, action Action) error {
	toCall := gs.CallAmount(p)
	if toCall == 0 {
		return validationErr(KindCannotCall, "cannot call when there is no bet")
	}
	if action.Amount != nil && *action.Amount != toCall {
		return validationErr(KindCallAmount, "call amount must be %d", toCall)
	}
	if p.Chips < toCall {
		return validationErr(KindNotEnoughToCall, "not enough chips to call")
	}
	return nil
}

func (v ActionValidator) validateBet(gs *GameState, p *Player, action Action) error {
	if gs.CurrentBet > 0 {
		return validationErr(KindBetExists, "cannot bet when there is already a bet")
	}
	if gs.betOccurredThisRound {
		return validationErr(KindBettingOccurred, "cannot bet after betting has occurred this round")
	}
	if action.Amount == nil {
		return validationErr(KindAmountRequired, "bet amount required")
	}
	amount := *action.Amount
	if amount < gs.BigBlindAmount {
		return validationErr(KindBetTooSmall, "bet must be at least %d", gs.BigBlindAmount)
	}
	if amount > p.Chips {
		return validationErr(KindNotEnoughToBet, "not enough chips to bet")
	}
	return nil
}

func (v ActionValidator) validateRaise(gs *GameState, p *Player, action Action) error {
	if gs.CurrentBet == 0 {
		return validationErr(KindNoBetToRaise, "cannot raise when there is no bet")
	}
	if action.Amount == nil {
		return validationErr(KindAmountRequired, "raise amount required")
	}
	if p.HasActed {
		// The seat already acted this round and action was never reopened:
		// an incomplete all-in raise leaves callers with call or fold only.
		return validationErr(KindRaiseNotReopened, "cannot raise: action has not been reopened")
	}

	amount := *action.Amount
	minRaise := gs.CurrentBet + gs.MinimumRaise
	maxRaise := p.Chips + p.CurrentBet

	if amount > maxRaise {
		return validationErr(KindRaiseTooLarge, "cannot raise more than %d", maxRaise)
	}
	if amount < minRaise {
		// A raise below the minimum is legal only as an all-in for the
		// player's whole stack, and it must still exceed the current bet.
		if amount != maxRaise || amount <= gs.CurrentBet {
			return validationErr(KindRaiseTooSmall, "raise must be at least %d", minRaise)
		}
	}
	return nil
}

func (v ActionValidator) validateAllIn(p *Player) error {
	if p.IsAllIn {
		return validationErr(KindAlreadyAllIn, "player is already all-in")
	}
	if p.Chips <= 0 {
		return validationErr(KindNoChipsForAllIn, "player has no chips to go all-in")
	}
	return nil
}

// PossibleActions returns the actions the seat may legally take right now,
// with amount bounds. An empty slice means the seat cannot act at all.
func (v ActionValidator) PossibleActions(gs *GameState, playerID string) []PossibleAction {
	p := gs.PlayerByID(playerID)
	if p == nil || gs.CurrentActor() != p || !p.CanAct() {
		return nil
	}

	actions := []PossibleAction{{Type: ActionFold}}
	toCall := gs.CallAmount(p)

	if toCall == 0 {
		actions = append(actions, PossibleAction{Type: ActionCheck})
	} else if p.Chips >= toCall {
		// An exact-stack call is legal, so it is listed even though it
		// leaves the seat all-in.
		actions = append(actions, PossibleAction{Type: ActionCall, MinAmount: toCall, MaxAmount: toCall})
	}

	if gs.CurrentBet == 0 && !gs.betOccurredThisRound && p.Chips >= gs.BigBlindAmount {
		actions = append(actions, PossibleAction{
			Type:      ActionBet,
			MinAmount: gs.BigBlindAmount,
			MaxAmount: p.Chips,
		})
	}

	// Raising requires an outstanding bet, chips beyond the call, and an
	// action that is still open for this seat.
	if gs.CurrentBet > 0 && !p.HasActed && p.Chips > toCall {
		maxRaise := p.Chips + p.CurrentBet
		minRaise := gs.CurrentBet + gs.MinimumRaise
		if minRaise > maxRaise {
			minRaise = maxRaise
		}
		actions = append(actions, PossibleAction{
			Type:      ActionRaise,
			MinAmount: minRaise,
			MaxAmount: maxRaise,
		})
	}

	if p.Chips > 0 {
		actions = append(actions, PossibleAction{Type: ActionAllIn, MinAmount: p.Chips, MaxAmount: p.Chips})
	}

	return actions
}

// ForceAction returns the default action applied when a seat times out:
// check when checking is free, fold otherwise.
func (v ActionValidator) ForceAction(gs *GameState, playerID string) Action {
	p := gs.PlayerByID(playerID)
	if p != nil && gs.CallAmount(p) == 0 {
		return NewAction(playerID, ActionCheck)
	}
	return NewAction(playerID, ActionFold)
}
