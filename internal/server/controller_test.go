package server

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botfelt/botfelt/internal/game"
	"github.com/botfelt/botfelt/internal/replay"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func testTableConfig() game.Config {
	return game.Config{
		MaxPlayers:       6,
		SmallBlindAmount: 5,
		BigBlindAmount:   10,
		TurnTimeLimit:    30,
		HandStartDelay:   time.Millisecond,
	}
}

func tableRunning(t *Table) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.IsGameRunning()
}

func tableSeatCount(t *Table) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.engine.Seats())
}

func TestSeatAutoStartsHand(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	c := NewGameController(testLogger(), WithClock(mock))
	tbl := c.CreateTable("main", testTableConfig())

	_, err := c.Seat(tbl.ID, "a", "a", 1000)
	require.NoError(t, err)
	assert.False(t, tableRunning(tbl), "no hand with one seat")

	_, err = c.Seat(tbl.ID, "b", "b", 1000)
	require.NoError(t, err)
	assert.False(t, tableRunning(tbl), "hand start is delayed")

	mock.Advance(time.Millisecond).MustWait(ctx)
	assert.True(t, tableRunning(tbl))
}

func TestSeatValidation(t *testing.T) {
	c := NewGameController(testLogger(), WithClock(quartz.NewMock(t)))
	tbl := c.CreateTable("main", testTableConfig())

	_, err := c.Seat("nope", "a", "a", 1000)
	assert.Error(t, err)

	_, err = c.Seat(tbl.ID, "a", "a", 0)
	assert.Error(t, err, "chip stack must be positive")
}

func TestLookupByIDAndName(t *testing.T) {
	c := NewGameController(testLogger(), WithClock(quartz.NewMock(t)))
	tbl := c.CreateTable("main", testTableConfig())

	byID, ok := c.Lookup(tbl.ID)
	require.True(t, ok)
	byName, ok2 := c.Lookup("main")
	require.True(t, ok2)
	assert.Same(t, byID, byName)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestListGames(t *testing.T) {
	c := NewGameController(testLogger(), WithClock(quartz.NewMock(t)))
	tbl := c.CreateTable("main", testTableConfig())
	_, err := c.Seat(tbl.ID, "a", "a", 1000)
	require.NoError(t, err)

	games := c.ListGames()
	require.Len(t, games, 1)
	assert.Equal(t, tbl.ID, games[0].ID)
	assert.Equal(t, "main", games[0].Name)
	assert.Equal(t, 1, games[0].PlayerCount)
	assert.Equal(t, 5, games[0].SmallBlind)
	assert.Equal(t, 10, games[0].BigBlind)
	assert.False(t, games[0].Running)
}

func TestEmptyTableGarbageCollected(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	c := NewGameController(testLogger(), WithClock(mock))
	tbl := c.CreateTable("main", testTableConfig())

	_, err := c.Seat(tbl.ID, "a", "a", 1000)
	require.NoError(t, err)
	require.NoError(t, c.LeaveGame("a"))

	mock.Advance(emptyTableGCDelay).MustWait(ctx)
	_, ok := c.Lookup(tbl.ID)
	assert.False(t, ok, "empty table removed after the grace period")
}

func TestRejoinCancelsGarbageCollection(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	c := NewGameController(testLogger(), WithClock(mock))
	tbl := c.CreateTable("main", testTableConfig())

	_, err := c.Seat(tbl.ID, "a", "a", 1000)
	require.NoError(t, err)
	require.NoError(t, c.LeaveGame("a"))

	mock.Advance(emptyTableGCDelay / 2).MustWait(ctx)
	_, err = c.Seat(tbl.ID, "b", "b", 1000)
	require.NoError(t, err)

	mock.Advance(emptyTableGCDelay).MustWait(ctx)
	_, ok := c.Lookup(tbl.ID)
	assert.True(t, ok, "a join within the grace period keeps the table")
}

func TestUnseatDeferredDuringHand(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	c := NewGameController(testLogger(), WithClock(mock))
	tbl := c.CreateTable("main", testTableConfig())

	_, err := c.Seat(tbl.ID, "a", "a", 1000)
	require.NoError(t, err)
	_, err = c.Seat(tbl.ID, "b", "b", 1000)
	require.NoError(t, err)
	mock.Advance(time.Millisecond).MustWait(ctx)
	require.True(t, tableRunning(tbl))

	deferred, err := c.Unseat(tbl.ID, "a")
	require.NoError(t, err)
	assert.True(t, deferred)
	assert.Equal(t, 2, tableSeatCount(tbl), "seat stays until the hand ends")

	// Heads-up: the current actor folding ends the hand.
	state, err := c.StateFor(tbl.ID, game.RoleComplete, "")
	require.NoError(t, err)
	require.NotEmpty(t, state.CurrentPlayerToAct)
	require.NoError(t, c.ProcessAction(tbl.ID, game.NewAction(state.CurrentPlayerToAct, game.ActionFold)))

	assert.False(t, tableRunning(tbl))
	assert.Equal(t, 1, tableSeatCount(tbl), "deferred unseat applied at the hand boundary")
	_, seated := c.TableForSeat("a")
	assert.False(t, seated)
}

func TestUnseatImmediateBetweenHands(t *testing.T) {
	c := NewGameController(testLogger(), WithClock(quartz.NewMock(t)))
	tbl := c.CreateTable("main", testTableConfig())

	_, err := c.Seat(tbl.ID, "a", "a", 1000)
	require.NoError(t, err)

	deferred, err := c.Unseat(tbl.ID, "a")
	require.NoError(t, err)
	assert.False(t, deferred)
	assert.Equal(t, 0, tableSeatCount(tbl))
}

func TestLeaveGameNotSeated(t *testing.T) {
	c := NewGameController(testLogger(), WithClock(quartz.NewMock(t)))
	err := c.LeaveGame("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in a game")
}

func TestStaleTableSweep(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	c := NewGameController(testLogger(), WithClock(mock))
	empty := c.CreateTable("empty", testTableConfig())
	seated := c.CreateTable("seated", testTableConfig())
	_, err := c.Seat(seated.ID, "a", "a", 1000)
	require.NoError(t, err)

	mock.Advance(staleTableMaxIdle - time.Minute).MustWait(ctx)
	c.sweepStaleTables()
	_, ok := c.Lookup(empty.ID)
	assert.True(t, ok, "table under the idle limit survives")

	mock.Advance(2 * time.Minute).MustWait(ctx)
	c.sweepStaleTables()
	_, ok = c.Lookup(empty.ID)
	assert.False(t, ok, "abandoned empty table swept")
	_, ok = c.Lookup(seated.ID)
	assert.True(t, ok, "a table with seats is never swept")
	_, seatedStill := c.TableForSeat("a")
	assert.True(t, seatedStill)
}

type countingRecorder struct {
	writes atomic.Int64
	closes atomic.Int64
}

func (r *countingRecorder) Write(replay.Record) { r.writes.Add(1) }
func (r *countingRecorder) Close() error       { r.closes.Add(1); return nil }

func TestRecorderReceivesEventsAndClosesOnRemove(t *testing.T) {
	ctx := context.Background()
	mock := quartz.NewMock(t)
	rec := &countingRecorder{}
	c := NewGameController(testLogger(),
		WithClock(mock),
		WithRecorderFactory(func(tableID, tableName string) replay.Recorder { return rec }))
	tbl := c.CreateTable("main", testTableConfig())

	_, err := c.Seat(tbl.ID, "a", "a", 1000)
	require.NoError(t, err)
	_, err = c.Seat(tbl.ID, "b", "b", 1000)
	require.NoError(t, err)
	mock.Advance(time.Millisecond).MustWait(ctx)

	assert.Greater(t, rec.writes.Load(), int64(0), "hand start events reach the recorder")

	require.NoError(t, c.RemoveTable(tbl.ID))
	assert.Equal(t, int64(1), rec.closes.Load())
}

func TestShutdownRemovesEverything(t *testing.T) {
	c := NewGameController(testLogger(), WithClock(quartz.NewMock(t)))
	a := c.CreateTable("a", testTableConfig())
	b := c.CreateTable("b", testTableConfig())

	c.Shutdown()
	_, ok := c.Lookup(a.ID)
	assert.False(t, ok)
	_, ok = c.Lookup(b.ID)
	assert.False(t, ok)
}
