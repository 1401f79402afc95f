package server

import (
	"encoding/json"
	"time"

	"github.com/botfelt/botfelt/internal/game"
)

// Message is the base wire frame: a string-tagged payload.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in a timestamped frame.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	var dataBytes json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		dataBytes = b
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server payloads

type IdentifyData struct {
	BotName   string `json:"botName"`
	GameID    string `json:"gameId"`
	ChipStack int    `json:"chipStack"`
	APIKey    string `json:"apiKey,omitempty"`
}

type ActionData struct {
	Action string `json:"action"`
	Amount *int   `json:"amount,omitempty"`
}

type ReconnectData struct {
	BotName string `json:"botName"`
	GameID  string `json:"gameId"`
}

// Server → Client payloads

type IdentificationSuccessData struct {
	GameID    string             `json:"gameId"`
	PlayerID  string             `json:"playerId"`
	Reconnect bool               `json:"reconnect,omitempty"`
	GameState game.GameStateView `json:"gameState"`
}

type IdentificationErrorData struct {
	Error string `json:"error"`
}

type TurnStartData struct {
	PlayerID   string  `json:"playerId"`
	TimeLimit  float64 `json:"timeLimit"` // Seconds.
	HandNumber int     `json:"handNumber"`
	Phase      string  `json:"phase"`
	CurrentBet int     `json:"currentBet"`
	CallAmount int     `json:"callAmount"`
	PotTotal   int     `json:"potTotal"`
}

type TurnWarningData struct {
	TimeRemaining float64 `json:"timeRemaining"` // Seconds.
}

type TurnTimeoutData struct {
	PlayerID string `json:"playerId"`
}

type ActionSuccessData struct {
	Action string `json:"action"`
	Amount *int   `json:"amount,omitempty"`
}

type ActionErrorData struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type PossibleActionsData struct {
	Actions []game.PossibleAction `json:"actions"`
}

type GameEventData struct {
	Event ViewerEvent `json:"event"`
}

// ViewerEvent is the client-facing event envelope. Snapshots are stripped;
// clients receive fresh per-viewer gameState projections separately, so the
// envelope can never leak another seat's hole cards.
type ViewerEvent struct {
	SequenceID int64          `json:"sequenceId"`
	Type       game.EventType `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	HandNumber int            `json:"handNumber"`
	Phase      game.Phase     `json:"phase"`
	PlayerID   string         `json:"playerId,omitempty"`
	Action     *game.Action   `json:"action,omitempty"`
	Payouts    []game.Payout  `json:"payouts,omitempty"`
}

// ViewerEventFromGame strips an engine event down to its client-safe envelope.
func ViewerEventFromGame(event game.Event) ViewerEvent {
	return ViewerEvent{
		SequenceID: event.SequenceID,
		Type:       event.Type,
		Timestamp:  event.Timestamp,
		HandNumber: event.HandNumber,
		Phase:      event.Phase,
		PlayerID:   event.PlayerID,
		Action:     event.Action,
		Payouts:    event.Payouts,
	}
}

type LeftGameData struct {
	GameID string `json:"gameId"`
}

type UnseatConfirmedData struct {
	GameID   string `json:"gameId"`
	Deferred bool   `json:"deferred"` // True when the seat leaves at the next hand boundary.
}

type UnseatErrorData struct {
	Error string `json:"error"`
}

type ForceActionErrorData struct {
	Error string `json:"error"`
}

type GameInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	SmallBlind  int    `json:"smallBlind"`
	BigBlind    int    `json:"bigBlind"`
	Running     bool   `json:"running"`
}

type GamesListData struct {
	Games []GameInfo `json:"games"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
