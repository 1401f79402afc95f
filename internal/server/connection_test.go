package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botfelt/botfelt/internal/auth"
	"github.com/botfelt/botfelt/internal/game"
)

// newTestConnection builds a session without a websocket. Handlers and timers
// only touch the send queue, so tests read messages straight from it.
func newTestConnection(c *GameController, clock quartz.Clock) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		send:         make(chan *Message, 256),
		logger:       testLogger(),
		controller:   c,
		botAuth:      auth.NoopAuth{},
		clock:        clock,
		ctx:          ctx,
		cancel:       cancel,
		lastActivity: clock.Now(),
	}
}

func drainMessages(c *Connection) []*Message {
	var out []*Message
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func messagesOfType(msgs []*Message, mt MessageType) []*Message {
	var out []*Message
	for _, m := range msgs {
		if m.Type == mt {
			out = append(out, m)
		}
	}
	return out
}

func requireOne(t *testing.T, msgs []*Message, mt MessageType) *Message {
	t.Helper()
	matches := messagesOfType(msgs, mt)
	require.Len(t, matches, 1, "expected exactly one %s", mt)
	return matches[0]
}

func identify(t *testing.T, c *Connection, bot, gameID string, chips int) {
	t.Helper()
	c.handleIdentify(IdentifyData{BotName: bot, GameID: gameID, ChipStack: chips})
}

func TestIdentifySeatsAndResponds(t *testing.T) {
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))
	tbl := ctrl.CreateTable("main", testTableConfig())

	conn := newTestConnection(ctrl, mock)
	identify(t, conn, "sb", tbl.ID, 1000)

	msg := requireOne(t, drainMessages(conn), MessageTypeIdentificationSuccess)
	var data IdentificationSuccessData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, tbl.ID, data.GameID)
	assert.Equal(t, "sb", data.PlayerID)
	assert.False(t, data.Reconnect)
	assert.Equal(t, "sb", conn.PlayerID())
	assert.Equal(t, 1, tableSeatCount(tbl))
}

func TestIdentifyUnknownGame(t *testing.T) {
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))

	conn := newTestConnection(ctrl, mock)
	identify(t, conn, "sb", "nope", 1000)

	requireOne(t, drainMessages(conn), MessageTypeIdentificationError)
	assert.Empty(t, conn.PlayerID())
}

func TestReconnectRebindsExistingSeat(t *testing.T) {
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))
	tbl := ctrl.CreateTable("main", testTableConfig())

	first := newTestConnection(ctrl, mock)
	identify(t, first, "sb", tbl.ID, 1000)
	drainMessages(first)

	second := newTestConnection(ctrl, mock)
	identify(t, second, "sb", tbl.ID, 1000)

	msg := requireOne(t, drainMessages(second), MessageTypeIdentificationSuccess)
	var data IdentificationSuccessData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.True(t, data.Reconnect)
	assert.Equal(t, 1, tableSeatCount(tbl), "reconnection does not add a seat")
}

func TestTurnTimerWarningAndTimeout(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))

	cfg := testTableConfig()
	cfg.TurnTimeLimit = 2
	tbl := ctrl.CreateTable("main", cfg)

	sb := newTestConnection(ctrl, mock)
	bb := newTestConnection(ctrl, mock)
	identify(t, sb, "sb", tbl.ID, 1000)
	identify(t, bb, "bb", tbl.ID, 1000)
	drainMessages(sb)
	drainMessages(bb)

	mock.Advance(time.Millisecond).MustWait(ctx)
	require.True(t, tableRunning(tbl))

	// The small blind acts first heads-up and gets the turn frame.
	start := requireOne(t, drainMessages(sb), MessageTypeTurnStart)
	var startData TurnStartData
	require.NoError(t, json.Unmarshal(start.Data, &startData))
	assert.Equal(t, "sb", startData.PlayerID)
	assert.Equal(t, 2.0, startData.TimeLimit)
	assert.Equal(t, 5, startData.CallAmount)
	assert.Equal(t, 15, startData.PotTotal)

	assert.Empty(t, messagesOfType(drainMessages(bb), MessageTypeTurnStart),
		"only the acting seat gets a turn frame")

	// Warning at 70% of the limit with the remaining 30%. The mock clock
	// only advances up to the next timer event per call, so step through it.
	mock.Advance(1400 * time.Millisecond).MustWait(ctx)
	mock.Advance(100 * time.Millisecond).MustWait(ctx)
	warning := requireOne(t, drainMessages(sb), MessageTypeTurnWarning)
	var warnData TurnWarningData
	require.NoError(t, json.Unmarshal(warning.Data, &warnData))
	assert.InDelta(t, 0.6, warnData.TimeRemaining, 1e-9)

	// Timeout forces the default action: facing the blind, the seat folds.
	mock.Advance(500 * time.Millisecond).MustWait(ctx)
	requireOne(t, drainMessages(sb), MessageTypeTurnTimeout)

	assert.False(t, tableRunning(tbl))
	tbl.mu.Lock()
	for _, p := range tbl.engine.Seats() {
		switch p.ID {
		case "sb":
			assert.Equal(t, 995, p.Chips)
		case "bb":
			assert.Equal(t, 1005, p.Chips)
		}
	}
	tbl.mu.Unlock()
}

func TestDisconnectMidTurnDoesNotStallHand(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))

	cfg := testTableConfig()
	cfg.TurnTimeLimit = 2
	tbl := ctrl.CreateTable("main", cfg)

	sb := newTestConnection(ctrl, mock)
	bb := newTestConnection(ctrl, mock)
	identify(t, sb, "sb", tbl.ID, 1000)
	identify(t, bb, "bb", tbl.ID, 1000)

	mock.Advance(time.Millisecond).MustWait(ctx)
	require.True(t, tableRunning(tbl))

	// The acting seat drops mid-turn, torn down the way the server's
	// unregister path does it. The session's own timers die with it; the
	// table's backstop must still end the turn at the deadline.
	sb.Cleanup()
	require.NoError(t, sb.Close())

	mock.Advance(2 * time.Second).MustWait(ctx)

	assert.False(t, tableRunning(tbl), "hand must not stall on a dead session")
	tbl.mu.Lock()
	for _, p := range tbl.engine.Seats() {
		switch p.ID {
		case "sb":
			assert.Equal(t, 995, p.Chips, "forced fold surrenders the small blind")
		case "bb":
			assert.Equal(t, 1005, p.Chips)
		}
	}
	tbl.mu.Unlock()
}

func TestZeroTurnLimitTimesOutImmediately(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))

	cfg := testTableConfig()
	cfg.TurnTimeLimit = 0
	tbl := ctrl.CreateTable("main", cfg)

	sb := newTestConnection(ctrl, mock)
	bb := newTestConnection(ctrl, mock)
	identify(t, sb, "sb", tbl.ID, 1000)
	identify(t, bb, "bb", tbl.ID, 1000)

	mock.Advance(time.Millisecond).MustWait(ctx)
	require.True(t, tableRunning(tbl))

	// The zero-second clock fires the instant the turn starts; wait for the
	// timeout and the forced action to land, with no warning.
	require.Eventually(t, func() bool { return !tableRunning(tbl) },
		time.Second, time.Millisecond)

	msgs := drainMessages(sb)
	requireOne(t, msgs, MessageTypeTurnTimeout)
	assert.Empty(t, messagesOfType(msgs, MessageTypeTurnWarning))
	assert.False(t, tableRunning(tbl))
}

func TestReconnectMidTurnResumesClock(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))

	cfg := testTableConfig()
	cfg.TurnTimeLimit = 2
	tbl := ctrl.CreateTable("main", cfg)

	sb := newTestConnection(ctrl, mock)
	bb := newTestConnection(ctrl, mock)
	identify(t, sb, "sb", tbl.ID, 1000)
	identify(t, bb, "bb", tbl.ID, 1000)
	mock.Advance(time.Millisecond).MustWait(ctx)
	require.True(t, tableRunning(tbl))

	// Half the turn elapses before the acting seat drops and comes back.
	mock.Advance(time.Second).MustWait(ctx)
	sb.Cleanup()
	require.NoError(t, sb.Close())

	again := newTestConnection(ctrl, mock)
	identify(t, again, "sb", tbl.ID, 1000)

	msgs := drainMessages(again)
	requireOne(t, msgs, MessageTypeIdentificationSuccess)
	start := requireOne(t, msgs, MessageTypeTurnStart)
	var startData TurnStartData
	require.NoError(t, json.Unmarshal(start.Data, &startData))
	assert.InDelta(t, 1.0, startData.TimeLimit, 1e-9, "only the unspent half of the limit remains")

	// The original deadline still stands for the rebound session. Step over
	// the rearmed warning on the way to it.
	mock.Advance(400 * time.Millisecond).MustWait(ctx)
	mock.Advance(600 * time.Millisecond).MustWait(ctx)
	requireOne(t, drainMessages(again), MessageTypeTurnTimeout)
	assert.False(t, tableRunning(tbl))
}

func TestActionCancelsTurnTimer(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))
	tbl := ctrl.CreateTable("main", testTableConfig())

	sb := newTestConnection(ctrl, mock)
	bb := newTestConnection(ctrl, mock)
	identify(t, sb, "sb", tbl.ID, 1000)
	identify(t, bb, "bb", tbl.ID, 1000)

	mock.Advance(time.Millisecond).MustWait(ctx)
	drainMessages(sb)
	drainMessages(bb)

	sb.handleAction(ActionData{Action: "fold"})
	msgs := drainMessages(sb)
	requireOne(t, msgs, MessageTypeActionSuccess)

	// Nothing fires for the cancelled turn even well past its limit. The
	// next hand's start timer is the only pending event; step over it.
	mock.Advance(time.Millisecond).MustWait(ctx)
	mock.Advance(10*time.Second - time.Millisecond).MustWait(ctx)
	assert.Empty(t, messagesOfType(drainMessages(sb), MessageTypeTurnTimeout))
	assert.Empty(t, messagesOfType(drainMessages(bb), MessageTypeTurnTimeout))
}

func TestActionErrorCarriesValidationKind(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))
	tbl := ctrl.CreateTable("main", testTableConfig())

	sb := newTestConnection(ctrl, mock)
	bb := newTestConnection(ctrl, mock)
	identify(t, sb, "sb", tbl.ID, 1000)
	identify(t, bb, "bb", tbl.ID, 1000)
	mock.Advance(time.Millisecond).MustWait(ctx)
	drainMessages(bb)

	// Big blind acts out of turn pre-flop heads-up.
	bb.handleAction(ActionData{Action: "check"})

	msg := requireOne(t, drainMessages(bb), MessageTypeActionError)
	var data ActionErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, string(game.KindNotPlayersTurn), data.Kind)
}

func TestHandleMessagePingAndListGames(t *testing.T) {
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))
	ctrl.CreateTable("main", testTableConfig())

	conn := newTestConnection(ctrl, mock)
	conn.handleMessage(&Message{Type: MessageTypePing})
	conn.handleMessage(&Message{Type: MessageTypeListGames})

	msgs := drainMessages(conn)
	requireOne(t, msgs, MessageTypePong)
	list := requireOne(t, msgs, MessageTypeGamesList)
	var data GamesListData
	require.NoError(t, json.Unmarshal(list.Data, &data))
	require.Len(t, data.Games, 1)
	assert.Equal(t, "main", data.Games[0].Name)
}

func TestGameEventEnvelopeCarriesNoSnapshots(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	ctrl := NewGameController(testLogger(), WithClock(mock))
	tbl := ctrl.CreateTable("main", testTableConfig())

	sb := newTestConnection(ctrl, mock)
	bb := newTestConnection(ctrl, mock)
	identify(t, sb, "sb", tbl.ID, 1000)
	identify(t, bb, "bb", tbl.ID, 1000)
	mock.Advance(time.Millisecond).MustWait(ctx)

	// The opponent's hole cards must not appear anywhere in bb's traffic.
	var sbCards []string
	tbl.mu.Lock()
	for _, p := range tbl.engine.Seats() {
		if p.ID == "sb" {
			for _, card := range p.HoleCards {
				sbCards = append(sbCards, card.String())
			}
		}
	}
	tbl.mu.Unlock()
	require.Len(t, sbCards, 2)

	for _, msg := range drainMessages(bb) {
		raw, err := json.Marshal(msg)
		require.NoError(t, err)
		for _, card := range sbCards {
			assert.NotContains(t, string(raw), `"`+card+`"`,
				"message %s leaks an opponent hole card", msg.Type)
		}
	}
}
