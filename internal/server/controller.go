package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/botfelt/botfelt/internal/game"
	"github.com/botfelt/botfelt/internal/replay"
)

const (
	// emptyTableGCDelay is how long a table with no seats survives before
	// removal. A join within the window cancels it.
	emptyTableGCDelay = 5 * time.Second

	// staleTableSweepInterval drives the periodic sweep for abandoned tables.
	staleTableSweepInterval = time.Minute

	// staleTableMaxIdle is how long a seatless table may sit before the sweep
	// removes it. Tables with seats are never swept; their players are
	// reclaimed through connection reaping instead.
	staleTableMaxIdle = 30 * time.Minute
)

// RecorderFactory builds the replay recorder for a new table.
type RecorderFactory func(tableID, tableName string) replay.Recorder

// Table binds one engine to its registry bookkeeping. All engine access goes
// through mu: the engine itself is single-threaded by contract.
type Table struct {
	ID     string
	Name   string
	Config game.Config

	engine *game.GameEngine
	mu     sync.Mutex

	subsMu  sync.RWMutex
	subs    map[int64]game.EventHandler
	nextSub int64

	recorder       replay.Recorder
	pendingUnseats map[string]bool
	pendingCtx     map[string]*replay.DecisionContext
	turnStartedAt  time.Time
	lastEventAt    time.Time
	lastActivity   time.Time

	startTimer *quartz.Timer
	gcTimer    *quartz.Timer

	// The turn backstop forces the default action at the deadline when the
	// acting seat has no live connection to time itself out. It is owned by
	// the table so tearing a session down cannot stall the hand. turnGen
	// invalidates callbacks from superseded turns.
	turnGen      int64
	turnTimer    *quartz.Timer
	turnDeadline time.Time
}

// GameController owns the table directory and the seat→table index. The
// registry lock is never held during engine work; per-table serialization is
// the table's own mutex.
type GameController struct {
	logger      *log.Logger
	clock       quartz.Clock
	newRecorder RecorderFactory

	mu     sync.RWMutex
	tables map[string]*Table // Keyed by id; names resolve through lookup.
	seats  map[string]string // playerID -> tableID.

	sweepStop chan struct{}
	sweepOnce sync.Once
	closeOnce sync.Once
}

// ControllerOption configures a GameController.
type ControllerOption func(*GameController)

// WithClock substitutes the wall clock. Tests pass a quartz mock.
func WithClock(clock quartz.Clock) ControllerOption {
	return func(c *GameController) { c.clock = clock }
}

// WithRecorderFactory enables replay recording for new tables.
func WithRecorderFactory(f RecorderFactory) ControllerOption {
	return func(c *GameController) { c.newRecorder = f }
}

// NewGameController creates an empty registry.
func NewGameController(logger *log.Logger, opts ...ControllerOption) *GameController {
	c := &GameController{
		logger:    logger.WithPrefix("controller"),
		clock:     quartz.NewReal(),
		tables:    make(map[string]*Table),
		seats:     make(map[string]string),
		sweepStop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSweeper begins the periodic removal of seatless tables that have sat
// idle longer than 30 minutes. Runs until Shutdown.
func (c *GameController) StartSweeper() {
	c.sweepOnce.Do(func() {
		go func() {
			ticker := c.clock.NewTicker(staleTableSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.sweepStaleTables()
				case <-c.sweepStop:
					return
				}
			}
		}()
	})
}

func (c *GameController) sweepStaleTables() {
	c.mu.RLock()
	candidates := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		candidates = append(candidates, t)
	}
	c.mu.RUnlock()

	now := c.clock.Now()
	for _, t := range candidates {
		t.mu.Lock()
		// A table with seats is never swept out from under its players,
		// however long it idles; only abandoned empty tables qualify.
		stale := len(t.engine.Seats()) == 0 &&
			!t.engine.IsGameRunning() &&
			now.Sub(t.lastActivity) > staleTableMaxIdle
		t.mu.Unlock()
		if stale {
			c.logger.Info("removing stale table", "table", t.ID, "name", t.Name)
			_ = c.RemoveTable(t.ID)
		}
	}
}

// CreateTable registers a new table and subscribes the controller's own
// event handler for replay, fan-out, and hand-boundary housekeeping.
func (c *GameController) CreateTable(name string, cfg game.Config) *Table {
	t := &Table{
		ID:             uuid.NewString(),
		Name:           name,
		Config:         cfg,
		subs:           make(map[int64]game.EventHandler),
		pendingUnseats: make(map[string]bool),
		pendingCtx:     make(map[string]*replay.DecisionContext),
		recorder:       replay.NopRecorder{},
		lastActivity:   c.clock.Now(),
	}
	t.engine = game.NewGameEngine(c.logger.With("table", name), cfg)
	if c.newRecorder != nil {
		t.recorder = c.newRecorder(t.ID, name)
	}

	t.engine.OnEvent(func(event game.Event) {
		c.handleEngineEvent(t, event)
	})

	c.mu.Lock()
	c.tables[t.ID] = t
	c.mu.Unlock()

	c.logger.Info("table created", "table", t.ID, "name", name,
		"blinds", fmt.Sprintf("%d/%d", cfg.SmallBlindAmount, cfg.BigBlindAmount))
	return t
}

// RemoveTable cancels the table's pending timers, unseats everyone, and drops
// it from the registry.
func (c *GameController) RemoveTable(id string) error {
	c.mu.Lock()
	t, ok := c.tables[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("game with ID %s not found", id)
	}
	delete(c.tables, id)
	for playerID, tableID := range c.seats {
		if tableID == id {
			delete(c.seats, playerID)
		}
	}
	c.mu.Unlock()

	t.mu.Lock()
	if t.startTimer != nil {
		t.startTimer.Stop()
		t.startTimer = nil
	}
	if t.gcTimer != nil {
		t.gcTimer.Stop()
		t.gcTimer = nil
	}
	c.cancelTurnBackstopLocked(t)
	recorder := t.recorder
	t.mu.Unlock()

	if err := recorder.Close(); err != nil {
		c.logger.Error("closing replay recorder", "table", id, "error", err)
	}
	c.logger.Info("table removed", "table", id, "name", t.Name)
	return nil
}

// Lookup resolves a table by id or by configured name.
func (c *GameController) Lookup(idOrName string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.tables[idOrName]; ok {
		return t, true
	}
	for _, t := range c.tables {
		if t.Name == idOrName {
			return t, true
		}
	}
	return nil, false
}

// TableForSeat returns the table a player is seated at.
func (c *GameController) TableForSeat(playerID string) (*Table, bool) {
	c.mu.RLock()
	tableID, ok := c.seats[playerID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return c.Lookup(tableID)
}

// ListGames snapshots the directory for the games list message.
func (c *GameController) ListGames() []GameInfo {
	c.mu.RLock()
	tables := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		tables = append(tables, t)
	}
	c.mu.RUnlock()

	games := make([]GameInfo, 0, len(tables))
	for _, t := range tables {
		t.mu.Lock()
		games = append(games, GameInfo{
			ID:          t.ID,
			Name:        t.Name,
			PlayerCount: len(t.engine.Seats()),
			MaxPlayers:  t.Config.MaxPlayers,
			SmallBlind:  t.Config.SmallBlindAmount,
			BigBlind:    t.Config.BigBlindAmount,
			Running:     t.engine.IsGameRunning(),
		})
		t.mu.Unlock()
	}
	return games
}

// Seat adds a player to a table, cancelling any pending empty-table GC and
// scheduling the next hand when enough players are present.
func (c *GameController) Seat(gameID, playerID, name string, chips int) (*Table, error) {
	t, ok := c.Lookup(gameID)
	if !ok {
		return nil, fmt.Errorf("game with ID %s not found", gameID)
	}
	if chips <= 0 {
		return nil, fmt.Errorf("invalid chip stack: %d", chips)
	}

	t.mu.Lock()
	if err := t.engine.AddPlayer(playerID, name, chips); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if t.gcTimer != nil {
		t.gcTimer.Stop()
		t.gcTimer = nil
	}
	t.lastActivity = c.clock.Now()
	c.scheduleHandStartLocked(t)
	t.mu.Unlock()

	c.mu.Lock()
	c.seats[playerID] = t.ID
	c.mu.Unlock()
	return t, nil
}

// Unseat removes a player's seat. During a hand the unseat is deferred to the
// hand boundary and reported as such; between hands it applies immediately.
func (c *GameController) Unseat(gameID, playerID string) (deferred bool, err error) {
	t, ok := c.Lookup(gameID)
	if !ok {
		return false, fmt.Errorf("game with ID %s not found", gameID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.engine.IsGameRunning() {
		t.pendingUnseats[playerID] = true
		c.logger.Info("unseat deferred to hand boundary", "table", t.ID, "player", playerID)
		return true, nil
	}

	if err := t.engine.RemovePlayer(playerID); err != nil {
		return false, err
	}
	c.afterSeatRemovedLocked(t, playerID)
	return false, nil
}

// LeaveGame removes a player immediately. Mid-hand the engine folds the seat
// and reclaims it when the hand completes.
func (c *GameController) LeaveGame(playerID string) error {
	t, ok := c.TableForSeat(playerID)
	if !ok {
		return fmt.Errorf("bot is not in a game")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.engine.RemovePlayer(playerID); err != nil {
		return err
	}
	c.afterSeatRemovedLocked(t, playerID)
	return nil
}

// afterSeatRemovedLocked updates the seat index and schedules empty-table GC.
// Caller holds t.mu.
func (c *GameController) afterSeatRemovedLocked(t *Table, playerID string) {
	c.mu.Lock()
	delete(c.seats, playerID)
	c.mu.Unlock()

	t.lastActivity = c.clock.Now()
	if len(t.engine.Seats()) == 0 {
		c.scheduleGCLocked(t)
	}
}

// scheduleGCLocked arms the 5 second empty-table timer. Caller holds t.mu.
func (c *GameController) scheduleGCLocked(t *Table) {
	if t.gcTimer != nil {
		return
	}
	t.gcTimer = c.clock.AfterFunc(emptyTableGCDelay, func() {
		t.mu.Lock()
		t.gcTimer = nil
		empty := len(t.engine.Seats()) == 0
		t.mu.Unlock()
		if empty {
			_ = c.RemoveTable(t.ID)
		}
	})
}

// scheduleHandStartLocked arms the hand auto-start timer when a hand can be
// played and none is running or pending. Caller holds t.mu.
func (c *GameController) scheduleHandStartLocked(t *Table) {
	if t.startTimer != nil || t.engine.IsGameRunning() {
		return
	}
	eligible := 0
	for _, p := range t.engine.Seats() {
		if p.IsActive && p.Chips > 0 {
			eligible++
		}
	}
	if eligible < 2 {
		return
	}

	t.startTimer = c.clock.AfterFunc(t.Config.HandStartDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.startTimer = nil
		if err := t.engine.StartHand(); err != nil {
			c.logger.Debug("auto-start skipped", "table", t.ID, "error", err)
		}
	})
}

// ProcessAction applies a player action under the table lock.
func (c *GameController) ProcessAction(gameID string, action game.Action) error {
	t, ok := c.Lookup(gameID)
	if !ok {
		return fmt.Errorf("game with ID %s not found", gameID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = c.clock.Now()
	return t.engine.ProcessAction(action)
}

// ForcePlayerAction applies the timeout default for a seat.
func (c *GameController) ForcePlayerAction(gameID, playerID string) (game.Action, error) {
	t, ok := c.Lookup(gameID)
	if !ok {
		return game.Action{}, fmt.Errorf("game with ID %s not found", gameID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = c.clock.Now()
	return t.engine.ForcePlayerAction(playerID)
}

// PossibleActions lists the legal actions for a seat.
func (c *GameController) PossibleActions(gameID, playerID string) ([]game.PossibleAction, error) {
	t, ok := c.Lookup(gameID)
	if !ok {
		return nil, fmt.Errorf("game with ID %s not found", gameID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.GetPossibleActions(playerID)
}

// StateFor projects the table state for one viewer.
func (c *GameController) StateFor(gameID string, role game.ViewRole, viewerID string) (game.GameStateView, error) {
	t, ok := c.Lookup(gameID)
	if !ok {
		return game.GameStateView{}, fmt.Errorf("game with ID %s not found", gameID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.ViewFor(role, viewerID), nil
}

// SetPlayerConnected updates a seat's connection flag.
func (c *GameController) SetPlayerConnected(playerID string, connected bool) {
	t, ok := c.TableForSeat(playerID)
	if !ok {
		return
	}
	t.mu.Lock()
	t.engine.SetPlayerConnected(playerID, connected)
	t.mu.Unlock()
}

// Subscribe registers a session's event handler on a table.
func (c *GameController) Subscribe(gameID string, handler game.EventHandler) (int64, error) {
	t, ok := c.Lookup(gameID)
	if !ok {
		return 0, fmt.Errorf("game with ID %s not found", gameID)
	}
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	t.nextSub++
	id := t.nextSub
	t.subs[id] = handler
	return id, nil
}

// Unsubscribe removes a session's event handler.
func (c *GameController) Unsubscribe(gameID string, id int64) {
	t, ok := c.Lookup(gameID)
	if !ok {
		return
	}
	t.subsMu.Lock()
	delete(t.subs, id)
	t.subsMu.Unlock()
}

// handleEngineEvent runs on the table's writer goroutine for every engine
// event: record the replay line, fan out to sessions, and handle the hand
// boundary.
func (c *GameController) handleEngineEvent(t *Table, event game.Event) {
	now := c.clock.Now()
	t.lastActivity = now

	rec := replay.FromEvent(event)
	if !t.lastEventAt.IsZero() {
		rec.EventDuration = now.Sub(t.lastEventAt).Seconds()
	}
	t.lastEventAt = now

	if event.Type == game.EventActionTaken && event.Action != nil {
		if ctx, ok := t.pendingCtx[event.PlayerID]; ok {
			ctx.TimeToDecide = replay.TimeToDecide(t.turnStartedAt, now)
			rec.DecisionContext = ctx
			delete(t.pendingCtx, event.PlayerID)
		}
	}
	t.recorder.Write(rec)

	// A snapshot nominating a new actor opens that player's decision window
	// and re-arms the turn backstop; one with nobody to act disarms it.
	if after := event.GameStateAfter; after != nil {
		if after.CurrentPlayerToAct != "" {
			c.openDecisionWindow(t, after)
			c.armTurnBackstopLocked(t, after.CurrentPlayerToAct)
		} else {
			c.cancelTurnBackstopLocked(t)
		}
	}

	t.subsMu.RLock()
	handlers := make([]game.EventHandler, 0, len(t.subs))
	for _, h := range t.subs {
		handlers = append(handlers, h)
	}
	t.subsMu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("event subscriber panicked", "table", t.ID, "event", event.Type, "panic", r)
				}
			}()
			handler(event)
		}()
	}

	if event.Type == game.EventHandComplete {
		c.onHandComplete(t)
	}
}

// openDecisionWindow snapshots what the nominated player knows for the replay
// decision context.
func (c *GameController) openDecisionWindow(t *Table, view *game.GameStateView) {
	playerID := view.CurrentPlayerToAct
	actions, err := t.engine.GetPossibleActions(playerID)
	if err != nil {
		return
	}

	var actor *game.PlayerView
	largestOther := 0
	for i := range view.Players {
		p := &view.Players[i]
		if p.ID == playerID {
			actor = p
			continue
		}
		if !p.IsFolded && p.Chips+p.TotalBetThisHand > largestOther {
			largestOther = p.Chips + p.TotalBetThisHand
		}
	}
	if actor == nil {
		return
	}

	callAmount := view.CurrentBet - actor.CurrentBet
	effective := actor.Chips + actor.TotalBetThisHand
	if largestOther < effective {
		effective = largestOther
	}

	t.turnStartedAt = c.clock.Now()
	t.pendingCtx[playerID] = &replay.DecisionContext{
		PossibleActions:    actions,
		Position:           actor.Position,
		ChipStack:          actor.Chips,
		PotOdds:            replay.PotOdds(callAmount, view.PotTotal),
		EffectiveStackSize: effective,
	}
}

// armTurnBackstopLocked schedules the force action for the nominated seat's
// deadline. A connected client times itself out through its own session
// timer, so the callback only acts when the seat has no live connection left
// to do so. Caller holds t.mu.
func (c *GameController) armTurnBackstopLocked(t *Table, playerID string) {
	t.turnGen++
	gen := t.turnGen
	if t.turnTimer != nil {
		t.turnTimer.Stop()
	}

	wait := time.Duration(t.Config.TurnTimeLimit * float64(time.Second))
	if wait < 0 {
		wait = 0
	}
	t.turnDeadline = c.clock.Now().Add(wait)

	t.turnTimer = c.clock.AfterFunc(wait, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.turnGen != gen {
			return
		}
		t.turnTimer = nil

		var seat *game.Player
		for _, p := range t.engine.Seats() {
			if p.ID == playerID {
				seat = p
				break
			}
		}
		if seat == nil || seat.IsConnected {
			return
		}
		if _, err := t.engine.ForcePlayerAction(playerID); err != nil {
			c.logger.Warn("backstop force action failed", "table", t.ID, "player", playerID, "error", err)
		}
	})
}

// cancelTurnBackstopLocked disarms the pending backstop. Caller holds t.mu.
func (c *GameController) cancelTurnBackstopLocked(t *Table) {
	t.turnGen++
	if t.turnTimer != nil {
		t.turnTimer.Stop()
		t.turnTimer = nil
	}
}

// TurnRemaining reports the time left on the current turn's clock, so a
// session rebinding mid-turn resumes the running deadline instead of getting
// a fresh one. With no turn pending it returns the full limit.
func (c *GameController) TurnRemaining(gameID string) time.Duration {
	t, ok := c.Lookup(gameID)
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	limit := time.Duration(t.Config.TurnTimeLimit * float64(time.Second))
	if limit < 0 {
		limit = 0
	}
	if t.turnTimer == nil {
		return limit
	}
	remaining := t.turnDeadline.Sub(c.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	if remaining > limit {
		remaining = limit
	}
	return remaining
}

// onHandComplete applies deferred unseats and lines up the next hand. Runs
// with t.mu held by the action that finished the hand.
func (c *GameController) onHandComplete(t *Table) {
	for playerID := range t.pendingUnseats {
		if err := t.engine.RemovePlayer(playerID); err != nil {
			c.logger.Warn("deferred unseat failed", "table", t.ID, "player", playerID, "error", err)
		}
		c.mu.Lock()
		delete(c.seats, playerID)
		c.mu.Unlock()
	}
	t.pendingUnseats = make(map[string]bool)
	t.pendingCtx = make(map[string]*replay.DecisionContext)

	if len(t.engine.Seats()) == 0 {
		c.scheduleGCLocked(t)
		return
	}
	c.scheduleHandStartLocked(t)
}

// Shutdown stops the sweeper and removes every table.
func (c *GameController) Shutdown() {
	c.closeOnce.Do(func() { close(c.sweepStop) })

	c.mu.RLock()
	ids := make([]string, 0, len(c.tables))
	for id := range c.tables {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	for _, id := range ids {
		_ = c.RemoveTable(id)
	}
}
