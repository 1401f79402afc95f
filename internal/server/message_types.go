package server

// MessageType tags a wire message.
type MessageType string

func (t MessageType) String() string { return string(t) }

// Client → server.
const (
	MessageTypeIdentify               MessageType = "identify"
	MessageTypeAction                 MessageType = "action"
	MessageTypeRequestPossibleActions MessageType = "requestPossibleActions"
	MessageTypeRequestGameState       MessageType = "requestGameState"
	MessageTypeLeaveGame              MessageType = "leaveGame"
	MessageTypeUnseat                 MessageType = "unseat"
	MessageTypePing                   MessageType = "ping"
	MessageTypeListGames              MessageType = "listGames"
	MessageTypeReconnect              MessageType = "reconnect"
)

// Server → client.
const (
	MessageTypeIdentificationSuccess MessageType = "identificationSuccess"
	MessageTypeIdentificationError   MessageType = "identificationError"
	MessageTypeTurnStart             MessageType = "turnStart"
	MessageTypeTurnWarning           MessageType = "turnWarning"
	MessageTypeTurnTimeout           MessageType = "turnTimeout"
	MessageTypeActionSuccess         MessageType = "actionSuccess"
	MessageTypeActionError           MessageType = "actionError"
	MessageTypePossibleActions       MessageType = "possibleActions"
	MessageTypeGameState             MessageType = "gameState"
	MessageTypeGameEvent             MessageType = "gameEvent"
	MessageTypeLeftGame              MessageType = "leftGame"
	MessageTypeUnseatConfirmed       MessageType = "unseatConfirmed"
	MessageTypeUnseatError           MessageType = "unseatError"
	MessageTypePong                  MessageType = "pong"
	MessageTypeForceActionError      MessageType = "forceActionError"
	MessageTypeGamesList             MessageType = "gamesList"
	MessageTypeError                 MessageType = "error"
)
