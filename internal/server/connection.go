package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/botfelt/botfelt/internal/auth"
	"github.com/botfelt/botfelt/internal/game"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// stateBearingEvents are the event types after which the dispatcher re-sends
// a fresh per-viewer gameState projection.
var stateBearingEvents = map[game.EventType]bool{
	game.EventHandStarted:      true,
	game.EventActionTaken:      true,
	game.EventFlopDealt:        true,
	game.EventTurnDealt:        true,
	game.EventRiverDealt:       true,
	game.EventShowdownComplete: true,
	game.EventHandComplete:     true,
}

// Connection is one client session: the websocket pumps plus the seat
// binding, event subscription, and turn timer for that seat.
type Connection struct {
	conn       *websocket.Conn
	send       chan *Message
	logger     *log.Logger
	controller *GameController
	botAuth    auth.BotAuth
	clock      quartz.Clock

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu           sync.Mutex
	playerID     string
	gameID       string
	subID        int64
	lastActivity time.Time

	// Turn timer state. turnGen invalidates stale timer callbacks.
	turnGen      int64
	warningTimer *quartz.Timer
	timeoutTimer *quartz.Timer
}

// NewConnection wraps an upgraded websocket.
func NewConnection(conn *websocket.Conn, logger *log.Logger, controller *GameController, botAuth auth.BotAuth, clock quartz.Clock) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:         conn,
		send:         make(chan *Message, 256),
		logger:       logger.WithPrefix("conn"),
		controller:   controller,
		botAuth:      botAuth,
		clock:        clock,
		ctx:          ctx,
		cancel:       cancel,
		lastActivity: clock.Now(),
	}
}

// Start begins the read and write pumps.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the session down: timers cancelled, subscription kept until
// unregister cleanup, socket closed.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.cancelTurnTimer()
		close(c.send)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Cleanup releases the seat's subscription and marks it disconnected. The
// seat itself stays; reconnection rebinds it, and the table's turn backstop
// keeps forcing timed-out actions meanwhile.
func (c *Connection) Cleanup() {
	c.mu.Lock()
	playerID, gameID, subID := c.playerID, c.gameID, c.subID
	c.mu.Unlock()

	if gameID != "" && subID != 0 {
		c.controller.Unsubscribe(gameID, subID)
	}
	if playerID != "" {
		c.controller.SetPlayerConnected(playerID, false)
	}
}

// SendMessage queues a message for the client. Never blocks: a full buffer
// closes the connection.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// PlayerID returns the bound seat id, or "".
func (c *Connection) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// GameID returns the bound table id, or "".
func (c *Connection) GameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

// LastActive returns when the client last sent a message.
func (c *Connection) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.mu.Lock()
	c.lastActivity = c.clock.Now()
	c.mu.Unlock()

	c.logger.Debug("received message", "type", msg.Type, "player", c.PlayerID())

	switch msg.Type {
	case MessageTypeIdentify:
		var data IdentifyData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse identify data")
			return
		}
		c.handleIdentify(data)

	case MessageTypeReconnect:
		var data ReconnectData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse reconnect data")
			return
		}
		c.handleIdentify(IdentifyData{BotName: data.BotName, GameID: data.GameID})

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse action data")
			return
		}
		c.handleAction(data)

	case MessageTypeRequestPossibleActions:
		c.handleRequestPossibleActions()

	case MessageTypeRequestGameState:
		c.handleRequestGameState()

	case MessageTypeLeaveGame:
		c.handleLeaveGame()

	case MessageTypeUnseat:
		c.handleUnseat()

	case MessageTypePing:
		response, _ := NewMessage(MessageTypePong, nil)
		_ = c.SendMessage(response)

	case MessageTypeListGames:
		response, _ := NewMessage(MessageTypeGamesList, GamesListData{Games: c.controller.ListGames()})
		_ = c.SendMessage(response)

	default:
		c.sendError("unknown_message_type", "unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	_ = c.SendMessage(errorMsg)
}

func (c *Connection) sendIdentificationError(message string) {
	response, _ := NewMessage(MessageTypeIdentificationError, IdentificationErrorData{Error: message})
	_ = c.SendMessage(response)
}

func (c *Connection) handleIdentify(data IdentifyData) {
	c.logger.Info("identify request", "bot", data.BotName, "game", data.GameID)

	if data.BotName == "" {
		c.sendIdentificationError("bot name required")
		return
	}
	if !c.botAuth.Validate(data.BotName, data.APIKey) {
		c.sendIdentificationError("invalid credentials")
		return
	}

	if bound := c.GameID(); bound != "" && bound != data.GameID {
		c.sendIdentificationError("already in a game")
		return
	}

	// A seat that already exists at this table means reconnection: rebind
	// this connection instead of rejecting.
	if t, ok := c.controller.TableForSeat(data.BotName); ok {
		if t.ID != data.GameID && t.Name != data.GameID {
			c.sendIdentificationError("already in a game")
			return
		}
		c.bindSeat(t, data.BotName, true)
		return
	}

	t, err := c.controller.Seat(data.GameID, data.BotName, data.BotName, data.ChipStack)
	if err != nil {
		c.sendIdentificationError(err.Error())
		return
	}
	c.bindSeat(t, data.BotName, false)
}

// bindSeat associates this connection with a seat, subscribes the event
// handler, and sends the identification response with the current state.
func (c *Connection) bindSeat(t *Table, playerID string, reconnect bool) {
	subID, err := c.controller.Subscribe(t.ID, c.handleGameEvent)
	if err != nil {
		c.sendIdentificationError(err.Error())
		return
	}

	c.mu.Lock()
	c.playerID = playerID
	c.gameID = t.ID
	c.subID = subID
	c.mu.Unlock()

	c.controller.SetPlayerConnected(playerID, true)

	state, err := c.controller.StateFor(t.ID, game.RolePlayer, playerID)
	if err != nil {
		c.sendIdentificationError(err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeIdentificationSuccess, IdentificationSuccessData{
		GameID:    t.ID,
		PlayerID:  playerID,
		Reconnect: reconnect,
		GameState: state,
	})
	_ = c.SendMessage(response)

	// Reconnecting mid-turn resumes the clock rather than granting more
	// time: the table's deadline survives the old session, so the timers
	// re-arm for whatever is left of it.
	if state.CurrentPlayerToAct == playerID {
		c.startTurnClock(&state, c.controller.TurnRemaining(t.ID))
	}
}

func (c *Connection) handleAction(data ActionData) {
	c.mu.Lock()
	playerID, gameID := c.playerID, c.gameID
	c.mu.Unlock()

	if playerID == "" {
		c.sendError("not_identified", "must identify first")
		return
	}

	actionType := game.ActionType(data.Action)
	if !actionType.Valid() {
		response, _ := NewMessage(MessageTypeActionError, ActionErrorData{Error: "invalid action type"})
		_ = c.SendMessage(response)
		return
	}

	// Any action from the seat cancels its pending turn timer.
	c.cancelTurnTimer()

	action := game.Action{
		Type:      actionType,
		Amount:    data.Amount,
		PlayerID:  playerID,
		Timestamp: time.Now(),
	}
	if err := c.controller.ProcessAction(gameID, action); err != nil {
		errData := ActionErrorData{Error: err.Error()}
		var verr *game.ValidationError
		if errors.As(err, &verr) {
			errData.Kind = string(verr.Kind)
		}
		response, _ := NewMessage(MessageTypeActionError, errData)
		_ = c.SendMessage(response)
		return
	}

	response, _ := NewMessage(MessageTypeActionSuccess, ActionSuccessData{
		Action: data.Action,
		Amount: data.Amount,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleRequestPossibleActions() {
	c.mu.Lock()
	playerID, gameID := c.playerID, c.gameID
	c.mu.Unlock()

	if playerID == "" {
		c.sendError("not_identified", "bot is not in a game")
		return
	}

	actions, err := c.controller.PossibleActions(gameID, playerID)
	if err != nil {
		c.sendError("possible_actions_failed", err.Error())
		return
	}
	response, _ := NewMessage(MessageTypePossibleActions, PossibleActionsData{Actions: actions})
	_ = c.SendMessage(response)
}

func (c *Connection) handleRequestGameState() {
	c.mu.Lock()
	playerID, gameID := c.playerID, c.gameID
	c.mu.Unlock()

	if playerID == "" {
		c.sendError("not_identified", "bot is not in a game")
		return
	}

	state, err := c.controller.StateFor(gameID, game.RolePlayer, playerID)
	if err != nil {
		c.sendError("game_state_failed", err.Error())
		return
	}
	response, _ := NewMessage(MessageTypeGameState, state)
	_ = c.SendMessage(response)
}

func (c *Connection) handleLeaveGame() {
	c.mu.Lock()
	playerID, gameID, subID := c.playerID, c.gameID, c.subID
	c.mu.Unlock()

	if playerID == "" {
		c.sendError("not_identified", "bot is not in a game")
		return
	}

	c.cancelTurnTimer()
	if err := c.controller.LeaveGame(playerID); err != nil {
		c.sendError("leave_failed", err.Error())
		return
	}
	c.controller.Unsubscribe(gameID, subID)

	c.mu.Lock()
	c.playerID, c.gameID, c.subID = "", "", 0
	c.mu.Unlock()

	response, _ := NewMessage(MessageTypeLeftGame, LeftGameData{GameID: gameID})
	_ = c.SendMessage(response)
}

func (c *Connection) handleUnseat() {
	c.mu.Lock()
	playerID, gameID := c.playerID, c.gameID
	c.mu.Unlock()

	if playerID == "" {
		response, _ := NewMessage(MessageTypeUnseatError, UnseatErrorData{Error: "bot is not in a game"})
		_ = c.SendMessage(response)
		return
	}

	deferred, err := c.controller.Unseat(gameID, playerID)
	if err != nil {
		response, _ := NewMessage(MessageTypeUnseatError, UnseatErrorData{Error: err.Error()})
		_ = c.SendMessage(response)
		return
	}

	response, _ := NewMessage(MessageTypeUnseatConfirmed, UnseatConfirmedData{
		GameID:   gameID,
		Deferred: deferred,
	})
	_ = c.SendMessage(response)
}

// handleGameEvent runs on the table's writer goroutine. It forwards the event
// envelope, re-sends this viewer's state projection for state-bearing events,
// and manages the turn timer off the event snapshot.
func (c *Connection) handleGameEvent(event game.Event) {
	c.mu.Lock()
	playerID := c.playerID
	c.mu.Unlock()
	if playerID == "" {
		return
	}

	envelope, _ := NewMessage(MessageTypeGameEvent, GameEventData{Event: ViewerEventFromGame(event)})
	_ = c.SendMessage(envelope)

	if !stateBearingEvents[event.Type] {
		return
	}

	var view game.GameStateView
	if event.GameStateAfter != nil {
		view = game.RedactViewFor(event.GameStateAfter, playerID)
	} else {
		return
	}

	stateMsg, _ := NewMessage(MessageTypeGameState, view)
	_ = c.SendMessage(stateMsg)

	if view.CurrentPlayerToAct == playerID {
		c.startTurnTimer(&view)
	} else {
		c.cancelTurnTimer()
	}
}

// startTurnTimer arms the turn clock with the full configured limit.
func (c *Connection) startTurnTimer(view *game.GameStateView) {
	c.startTurnClock(view, -1)
}

// startTurnClock arms the warning and timeout timers for this seat's turn.
// The warning fires at 70% of the limit (only for limits over a second) with
// the remaining 30%; the timeout forces the default action through the
// controller. A non-positive limit times out immediately. A non-negative
// remaining resumes a clock that is already running, so the timeout fires at
// the original deadline and the warning is skipped when its moment has
// already passed.
func (c *Connection) startTurnClock(view *game.GameStateView, remaining time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelTurnTimerLocked()
	c.turnGen++
	gen := c.turnGen

	t, ok := c.controller.Lookup(c.gameID)
	if !ok {
		return
	}
	limit := t.Config.TurnTimeLimit

	full := time.Duration(limit * float64(time.Second))
	if full < 0 {
		full = 0
	}
	if remaining < 0 || remaining > full {
		remaining = full
	}

	playerID := c.playerID
	gameID := c.gameID

	if limit > 1 {
		warnRemaining := limit * 0.3
		warnAt := remaining - time.Duration(warnRemaining*float64(time.Second))
		if warnAt > 0 {
			c.warningTimer = c.clock.AfterFunc(warnAt, func() {
				if !c.turnStillCurrent(gen) {
					return
				}
				msg, _ := NewMessage(MessageTypeTurnWarning, TurnWarningData{TimeRemaining: warnRemaining})
				_ = c.SendMessage(msg)
			})
		}
	}

	c.timeoutTimer = c.clock.AfterFunc(remaining, func() {
		if !c.turnStillCurrent(gen) {
			return
		}
		c.fireTurnTimeout(gameID, playerID)
	})

	callAmount := view.CurrentBet
	for _, p := range view.Players {
		if p.ID == playerID {
			callAmount = view.CurrentBet - p.CurrentBet
			break
		}
	}
	msg, _ := NewMessage(MessageTypeTurnStart, TurnStartData{
		PlayerID:   playerID,
		TimeLimit:  remaining.Seconds(),
		HandNumber: view.HandNumber,
		Phase:      string(view.Phase),
		CurrentBet: view.CurrentBet,
		CallAmount: callAmount,
		PotTotal:   view.PotTotal,
	})
	_ = c.SendMessage(msg)
}

func (c *Connection) turnStillCurrent(gen int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnGen == gen
}

// fireTurnTimeout sends turnTimeout and forces the default action. A failed
// force action is reported to this connection and never propagated.
func (c *Connection) fireTurnTimeout(gameID, playerID string) {
	msg, _ := NewMessage(MessageTypeTurnTimeout, TurnTimeoutData{PlayerID: playerID})
	_ = c.SendMessage(msg)

	if _, err := c.controller.ForcePlayerAction(gameID, playerID); err != nil {
		c.logger.Warn("force action failed", "player", playerID, "error", err)
		errMsg, _ := NewMessage(MessageTypeForceActionError, ForceActionErrorData{Error: err.Error()})
		_ = c.SendMessage(errMsg)
	}
}

func (c *Connection) cancelTurnTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTurnTimerLocked()
}

func (c *Connection) cancelTurnTimerLocked() {
	c.turnGen++
	if c.warningTimer != nil {
		c.warningTimer.Stop()
		c.warningTimer = nil
	}
	if c.timeoutTimer != nil {
		c.timeoutTimer.Stop()
		c.timeoutTimer = nil
	}
}
