package game

import "time"

// EventType identifies a hand lifecycle transition or action effect.
type EventType string

const (
	EventPlayerJoined     EventType = "player_joined"
	EventPlayerLeft       EventType = "player_left"
	EventHandStarted      EventType = "hand_started"
	EventHoleCardsDealt   EventType = "hole_cards_dealt"
	EventBlindsPosted     EventType = "blinds_posted"
	EventActionTaken      EventType = "action_taken"
	EventFlopDealt        EventType = "flop_dealt"
	EventTurnDealt        EventType = "turn_dealt"
	EventRiverDealt       EventType = "river_dealt"
	EventShowdownComplete EventType = "showdown_complete"
	EventHandComplete     EventType = "hand_complete"
	EventPlayerTimeout    EventType = "player_timeout"
)

// Event is one record in a table's totally ordered event stream. Sequence ids
// are monotonic per engine; snapshots use the complete view and are redacted
// downstream by the replay projection.
type Event struct {
	SequenceID      int64          `json:"sequenceId"`
	Type            EventType      `json:"type"`
	Timestamp       time.Time      `json:"timestamp"`
	HandNumber      int            `json:"handNumber"`
	Phase           Phase          `json:"phase"`
	PlayerID        string         `json:"playerId,omitempty"`
	Action          *Action        `json:"action,omitempty"`
	Payouts         []Payout       `json:"payouts,omitempty"`
	GameStateBefore *GameStateView `json:"gameStateBefore,omitempty"`
	GameStateAfter  *GameStateView `json:"gameStateAfter,omitempty"`
}

// EventHandler receives engine events. Handlers run synchronously on the
// table's single writer; a panic in one handler is recovered and does not
// reach the others.
type EventHandler func(Event)
