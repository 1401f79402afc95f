package game

import (
	"errors"
	"fmt"
)

// Engine-level failures.
var (
	ErrGameNotRunning     = errors.New("game is not running")
	ErrGameAlreadyRunning = errors.New("game is already running")
	ErrNotEnoughPlayers   = errors.New("not enough players to start a hand")
	ErrTableFull          = errors.New("table is full")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrCannotAdvance      = errors.New("cannot advance from current phase")
)

// ErrorKind classifies action validation failures. The set matches the error
// taxonomy surfaced to clients.
type ErrorKind string

const (
	KindPlayerNotFound    ErrorKind = "player_not_found"
	KindNotPlayersTurn    ErrorKind = "not_players_turn"
	KindPlayerCannotAct   ErrorKind = "player_cannot_act"
	KindCannotCheck       ErrorKind = "cannot_check"
	KindCannotCall        ErrorKind = "cannot_call"
	KindCallAmount        ErrorKind = "call_amount_mismatch"
	KindNotEnoughToCall   ErrorKind = "not_enough_chips_to_call"
	KindBetExists         ErrorKind = "bet_exists"
	KindBettingOccurred   ErrorKind = "betting_occurred"
	KindBetTooSmall       ErrorKind = "bet_too_small"
	KindNotEnoughToBet    ErrorKind = "not_enough_chips_to_bet"
	KindNoBetToRaise      ErrorKind = "no_bet_to_raise"
	KindRaiseTooSmall     ErrorKind = "raise_too_small"
	KindRaiseTooLarge     ErrorKind = "raise_too_large"
	KindRaiseNotReopened  ErrorKind = "raise_not_reopened"
	KindNoChipsForAllIn   ErrorKind = "no_chips_for_allin"
	KindAlreadyAllIn      ErrorKind = "already_allin"
	KindAmountRequired    ErrorKind = "amount_required"
	KindInvalidActionType ErrorKind = "invalid_action_type"
)

// ValidationError is a rules violation detected before any state mutation.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is match any ValidationError against another of the same kind.
func (e *ValidationError) Is(target error) bool {
	var other *ValidationError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func validationErr(kind ErrorKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
