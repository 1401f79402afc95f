package replay

import (
	"time"

	"github.com/botfelt/botfelt/internal/game"
)

// DecisionContext captures what a player knew at the moment they acted. The
// table session assembles it when the turn starts and attaches it to the
// matching action record.
type DecisionContext struct {
	PossibleActions    []game.PossibleAction `json:"possibleActions,omitempty"`
	TimeToDecide       float64               `json:"timeToDecide"` // Seconds from turn start to action.
	Position           string                `json:"position,omitempty"`
	ChipStack          int                   `json:"chipStack"`
	PotOdds            float64               `json:"potOdds"`
	EffectiveStackSize int                   `json:"effectiveStackSize"`
}

// Record is one line of a table's replay log. Snapshots are redacted before
// persistence: hole cards only survive for seats that showed at showdown.
type Record struct {
	SequenceID      int64               `json:"sequenceId"`
	Type            game.EventType      `json:"type"`
	Timestamp       int64               `json:"timestamp"` // Unix milliseconds.
	HandNumber      int                 `json:"handNumber"`
	Phase           game.Phase          `json:"phase"`
	PlayerID        string              `json:"playerId,omitempty"`
	Action          *game.Action        `json:"action,omitempty"`
	Payouts         []game.Payout       `json:"payouts,omitempty"`
	GameStateBefore *game.GameStateView `json:"gameStateBefore,omitempty"`
	GameStateAfter  *game.GameStateView `json:"gameStateAfter,omitempty"`
	DecisionContext *DecisionContext    `json:"playerDecisionContext,omitempty"`
	EventDuration   float64             `json:"eventDuration,omitempty"` // Seconds since the previous record.
}

// FromEvent converts an engine event into a persistable record, redacting the
// embedded snapshots.
func FromEvent(event game.Event) Record {
	return Record{
		SequenceID:      event.SequenceID,
		Type:            event.Type,
		Timestamp:       event.Timestamp.UnixMilli(),
		HandNumber:      event.HandNumber,
		Phase:           event.Phase,
		PlayerID:        event.PlayerID,
		Action:          event.Action,
		Payouts:         event.Payouts,
		GameStateBefore: redactView(event.GameStateBefore),
		GameStateAfter:  redactView(event.GameStateAfter),
	}
}

// redactView strips hole cards a post-hoc reader must not see: everything
// except cards legitimately revealed at showdown by seats that did not fold.
func redactView(view *game.GameStateView) *game.GameStateView {
	if view == nil {
		return nil
	}

	out := *view
	out.Players = make([]game.PlayerView, len(view.Players))
	copy(out.Players, view.Players)

	atShowdown := view.Phase == game.PhaseShowdown || view.Phase == game.PhaseHandComplete
	for i := range out.Players {
		if atShowdown && !out.Players[i].IsFolded {
			continue
		}
		out.Players[i].HoleCards = nil
	}
	return &out
}

// PotOdds computes the pot odds a caller faces: call amount over pot after
// calling. Zero when there is nothing to call.
func PotOdds(callAmount, potTotal int) float64 {
	if callAmount <= 0 {
		return 0
	}
	return float64(callAmount) / float64(potTotal+callAmount)
}

// TimeToDecide returns the seconds elapsed between a turn starting and the
// action landing.
func TimeToDecide(turnStart, actedAt time.Time) float64 {
	if turnStart.IsZero() || actedAt.Before(turnStart) {
		return 0
	}
	return actedAt.Sub(turnStart).Seconds()
}
