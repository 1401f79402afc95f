package game

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/botfelt/botfelt/poker"
)

// Config is the per-table game configuration.
type Config struct {
	MaxPlayers       int
	SmallBlindAmount int
	BigBlindAmount   int
	TurnTimeLimit    float64       // Seconds; fractional allowed. <= 0 times out immediately.
	HandStartDelay   time.Duration // Delay before the next hand auto-starts.
	IsTournament     bool          // Informational only.
}

// DeckFactory yields a fresh card source per hand.
type DeckFactory func() poker.CardSource

// Option configures a GameEngine.
type Option func(*GameEngine)

// WithDeckFactory overrides the deck used for each hand. Tests use this with
// poker.NewStack for deterministic deals.
func WithDeckFactory(f DeckFactory) Option {
	return func(e *GameEngine) { e.newDeck = f }
}

// WithRNG sets the RNG used for shuffling the default deck.
func WithRNG(rng *rand.Rand) Option {
	return func(e *GameEngine) {
		e.newDeck = func() poker.CardSource { return poker.NewDeck(rng) }
	}
}

// GameEngine is the per-table hand state machine. It is the sole writer of
// its GameState; callers must serialize all mutating calls (the controller
// does this with a per-table lock). Event handlers run synchronously on the
// caller's goroutine.
type GameEngine struct {
	config    Config
	state     *GameState
	pots      *PotManager
	validator ActionValidator
	deck      poker.CardSource
	newDeck   DeckFactory
	logger    *log.Logger

	handlers      map[int64]EventHandler
	nextHandlerID int64
	seq           int64

	running          bool
	handParticipants int
}

// NewGameEngine creates an engine for one table.
func NewGameEngine(logger *log.Logger, cfg Config, opts ...Option) *GameEngine {
	e := &GameEngine{
		config:   cfg,
		state:    newGameState(cfg.SmallBlindAmount, cfg.BigBlindAmount),
		pots:     NewPotManager(),
		logger:   logger.WithPrefix("engine"),
		handlers: make(map[int64]EventHandler),
	}
	e.state.DealerIndex = -1 // Advances to seat 0 on the first hand.
	for _, opt := range opts {
		opt(e)
	}
	if e.newDeck == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		e.newDeck = func() poker.CardSource { return poker.NewDeck(rng) }
	}
	return e
}

// IsGameRunning reports whether a hand is in progress.
func (e *GameEngine) IsGameRunning() bool {
	return e.running
}

// Config returns the table configuration.
func (e *GameEngine) Config() Config {
	return e.config
}

// PotTotal returns the chips currently in all pots.
func (e *GameEngine) PotTotal() int {
	return e.pots.Total()
}

// Seats returns the seating ring. Callers must not mutate the seats.
func (e *GameEngine) Seats() []*Player {
	return e.state.Players
}

// AddPlayer seats a new player. A player joining mid-hand waits for the next
// deal; they hold no cards so the current hand ignores them.
func (e *GameEngine) AddPlayer(id, name string, chips int) error {
	if e.config.MaxPlayers > 0 && len(e.state.Players) >= e.config.MaxPlayers {
		return ErrTableFull
	}
	if e.state.PlayerByID(id) != nil {
		return fmt.Errorf("player %s already seated", id)
	}

	p := NewPlayer(id, name, chips)
	e.state.Players = append(e.state.Players, p)
	e.logger.Info("player joined", "player", id, "chips", chips, "seats", len(e.state.Players))
	e.emit(Event{Type: EventPlayerJoined, PlayerID: id})
	return nil
}

// RemovePlayer unseats a player. Mid-hand the seat is folded and deactivated;
// the ring slot is reclaimed once the hand completes. Between hands the seat
// is removed immediately.
func (e *GameEngine) RemovePlayer(id string) error {
	idx := e.state.SeatIndex(id)
	if idx < 0 {
		return ErrPlayerNotFound
	}

	p := e.state.Players[idx]
	if e.running && p.InHand() {
		p.IsActive = false
		e.logger.Info("player leaving mid-hand, folding", "player", id)
		e.foldSeatOutOfTurn(idx)
		e.emit(Event{Type: EventPlayerLeft, PlayerID: id})
		return nil
	}

	e.removeSeat(idx)
	e.emit(Event{Type: EventPlayerLeft, PlayerID: id})
	return nil
}

// SetPlayerConnected flags a seat's connection state. Disconnection never
// pauses the game; the turn timer handles stalled seats.
func (e *GameEngine) SetPlayerConnected(id string, connected bool) {
	if p := e.state.PlayerByID(id); p != nil {
		p.IsConnected = connected
	}
}

func (e *GameEngine) removeSeat(idx int) {
	removed := e.state.Players[idx]
	e.state.Players = append(e.state.Players[:idx], e.state.Players[idx+1:]...)
	if e.state.DealerIndex >= len(e.state.Players) {
		e.state.DealerIndex = len(e.state.Players) - 1
	}
	e.logger.Info("player left", "player", removed.ID, "seats", len(e.state.Players))
}

// StartHand begins a new hand: advances the button, resets per-hand state,
// deals hole cards, posts blinds, and selects the first player to act.
func (e *GameEngine) StartHand() error {
	if e.running {
		return ErrGameAlreadyRunning
	}

	eligible := 0
	for _, p := range e.state.Players {
		if p.IsActive && p.Chips > 0 {
			eligible++
		}
	}
	if eligible < 2 {
		return ErrNotEnoughPlayers
	}

	gs := e.state
	gs.HandNumber++
	gs.Phase = PhasePreFlop
	gs.CommunityCards = nil
	gs.CurrentBet = 0
	gs.MinimumRaise = gs.BigBlindAmount
	gs.LastRaiseAmount = gs.BigBlindAmount
	gs.LastAggressor = -1
	gs.RoundAggressor = -1
	gs.betOccurredThisRound = false
	gs.ShownCards = make(map[string]bool)
	e.pots.Reset()

	for _, p := range gs.Players {
		p.resetForHand()
		if !p.IsActive || p.Chips == 0 {
			// Sitting out this hand; no cards, no pot eligibility.
			p.IsFolded = true
		}
	}

	// The button moves to the next seat regardless of whether that seat is
	// sitting out.
	gs.DealerIndex = (gs.DealerIndex + 1) % len(gs.Players)
	if gs.DealerIndex < 0 {
		gs.DealerIndex += len(gs.Players)
	}

	e.handParticipants = eligible
	e.assignPositions()

	e.deck = e.newDeck()
	for _, p := range gs.Players {
		if p.IsFolded {
			continue
		}
		p.HoleCards = e.deck.Deal(2)
	}

	e.running = true
	e.logger.Info("hand started",
		"hand", gs.HandNumber,
		"players", eligible,
		"dealer", gs.DealerIndex)

	e.postBlinds()
	e.selectFirstToActPreFlop()

	// Blinds can put every participant all-in (short stacks); the hand then
	// runs out with no voluntary action at all.
	roundDone := gs.bettingRoundComplete()
	if roundDone {
		gs.CurrentPlayerToAct = -1
	}

	after := e.snapshot()
	e.emit(Event{Type: EventHandStarted, GameStateAfter: &after})
	e.emit(Event{Type: EventHoleCardsDealt})
	e.emit(Event{Type: EventBlindsPosted, GameStateAfter: &after})

	if roundDone {
		e.endBettingRound()
	}
	return nil
}

// assignPositions stamps position tags clockwise from the button over the
// seats dealt into this hand.
func (e *GameEngine) assignPositions() {
	gs := e.state
	n := len(gs.Players)

	nextEligible := func(from int) int {
		for i := 0; i < n; i++ {
			idx := ((from+i)%n + n) % n
			p := gs.Players[idx]
			if p.IsActive && p.Chips > 0 {
				return idx
			}
		}
		return -1
	}

	if e.handParticipants == 2 {
		// Heads-up: the button posts the small blind.
		sb := nextEligible(gs.DealerIndex)
		bb := nextEligible(sb + 1)
		gs.SmallBlindIndex = sb
		gs.BigBlindIndex = bb
		gs.Players[sb].Position = "D/SB"
		gs.Players[bb].Position = "BB"
		return
	}

	sb := nextEligible(gs.DealerIndex + 1)
	bb := nextEligible(sb + 1)
	gs.SmallBlindIndex = sb
	gs.BigBlindIndex = bb
	if gs.Players[gs.DealerIndex].IsActive && gs.Players[gs.DealerIndex].Chips > 0 {
		gs.Players[gs.DealerIndex].Position = "D"
	}
	gs.Players[sb].Position = "SB"
	gs.Players[bb].Position = "BB"
	if utg := nextEligible(bb + 1); utg >= 0 && gs.Players[utg].Position == "" {
		gs.Players[utg].Position = "UTG"
	}
}

// postBlinds commits the blinds. Short stacks post what they have and are
// all-in; posting never sets hasActed, so the big blind keeps its option.
func (e *GameEngine) postBlinds() {
	gs := e.state
	sb := gs.Players[gs.SmallBlindIndex]
	bb := gs.Players[gs.BigBlindIndex]

	posted := sb.commit(gs.SmallBlindAmount)
	e.pots.AddBet(sb.ID, posted)

	posted = bb.commit(gs.BigBlindAmount)
	e.pots.AddBet(bb.ID, posted)

	gs.CurrentBet = gs.BigBlindAmount

	e.logger.Debug("blinds posted",
		"sb", sb.ID, "sbAmount", sb.CurrentBet,
		"bb", bb.ID, "bbAmount", bb.CurrentBet)
}

func (e *GameEngine) selectFirstToActPreFlop() {
	gs := e.state
	if e.handParticipants == 2 {
		// Heads-up pre-flop the button/small blind acts first.
		if gs.Players[gs.SmallBlindIndex].CanAct() {
			gs.CurrentPlayerToAct = gs.SmallBlindIndex
		} else {
			gs.CurrentPlayerToAct = gs.nextSeatThatCanAct(gs.SmallBlindIndex + 1)
		}
		return
	}
	gs.CurrentPlayerToAct = gs.nextSeatThatCanAct(gs.BigBlindIndex + 1)
}

// ProcessAction validates and applies one player action. Validation failures
// leave the state untouched; a valid action's effects apply atomically and
// the hand advances as far as it can (through runouts and showdown).
func (e *GameEngine) ProcessAction(action Action) error {
	if !e.running {
		return ErrGameNotRunning
	}
	if err := e.validator.Validate(e.state, action); err != nil {
		return err
	}

	gs := e.state
	p := gs.PlayerByID(action.PlayerID)
	seat := gs.SeatIndex(action.PlayerID)
	before := e.snapshot()

	oldCurrentBet := gs.CurrentBet
	oldMinRaise := gs.MinimumRaise

	p.HasActed = true
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}
	p.RoundActions = append(p.RoundActions, action)

	switch action.Type {
	case ActionFold:
		p.IsFolded = true

	case ActionCheck:
		// No chips move.

	case ActionCall:
		committed := p.commit(gs.CallAmount(p))
		e.pots.AddBet(p.ID, committed)

	case ActionBet, ActionRaise:
		committed := p.commit(*action.Amount - p.CurrentBet)
		e.pots.AddBet(p.ID, committed)

	case ActionAllIn:
		committed := p.commit(p.Chips)
		e.pots.AddBet(p.ID, committed)
	}

	// Aggression bookkeeping: any action that strictly increased the bet to
	// match sets the aggressor; only a complete raise re-opens the action and
	// moves the minimum raise.
	if p.CurrentBet > oldCurrentBet {
		raiseSize := p.CurrentBet - oldCurrentBet
		gs.CurrentBet = p.CurrentBet
		gs.LastAggressor = seat
		gs.RoundAggressor = seat
		gs.betOccurredThisRound = true

		if raiseSize >= oldMinRaise {
			gs.MinimumRaise = raiseSize
			gs.LastRaiseAmount = raiseSize
			for _, other := range gs.Players {
				if other != p && other.CanAct() {
					other.HasActed = false
				}
			}
		}
		// An all-in short of a complete raise does not reset hasActed:
		// players who already called may only call the difference or fold.
	}

	e.logger.Debug("action applied",
		"hand", gs.HandNumber,
		"phase", gs.Phase,
		"player", p.ID,
		"action", action.Type,
		"bet", p.CurrentBet,
		"chips", p.Chips,
		"pot", e.pots.Total())

	// Resolve the turn before snapshotting so the action event carries the
	// next actor (dispatchers start turn timers off that snapshot).
	continuation := e.resolveTurn(seat)

	after := e.snapshot()
	e.emit(Event{
		Type:            EventActionTaken,
		PlayerID:        p.ID,
		Action:          &action,
		GameStateBefore: &before,
		GameStateAfter:  &after,
	})

	if continuation != nil {
		continuation()
	}
	return nil
}

// ForcePlayerAction applies the timeout default for a seat: check when
// checking is free, fold otherwise. Returns the action taken.
func (e *GameEngine) ForcePlayerAction(playerID string) (Action, error) {
	if !e.running {
		return Action{}, ErrGameNotRunning
	}
	if e.state.PlayerByID(playerID) == nil {
		return Action{}, ErrPlayerNotFound
	}

	action := e.validator.ForceAction(e.state, playerID)
	// Validate before emitting so a rejected force leaves no timeout event
	// in the stream or the replay log.
	if err := e.validator.Validate(e.state, action); err != nil {
		return Action{}, err
	}
	e.logger.Info("forcing action on timeout", "player", playerID, "action", action.Type)
	e.emit(Event{Type: EventPlayerTimeout, PlayerID: playerID, Action: &action})

	if err := e.ProcessAction(action); err != nil {
		return Action{}, err
	}
	return action, nil
}

// GetPossibleActions lists the legal actions for a seat right now.
func (e *GameEngine) GetPossibleActions(playerID string) ([]PossibleAction, error) {
	if !e.running {
		return nil, ErrGameNotRunning
	}
	if e.state.PlayerByID(playerID) == nil {
		return nil, ErrPlayerNotFound
	}
	return e.validator.PossibleActions(e.state, playerID), nil
}

// resolveTurn moves the turn after a seat acted. It either nominates the next
// actor in place, or returns the deferred transition (round end, fold-out) to
// run after the action event is emitted.
func (e *GameEngine) resolveTurn(lastSeat int) func() {
	gs := e.state

	if gs.seatsInHand() < 2 {
		gs.CurrentPlayerToAct = -1
		return func() { e.finishHand(nil) }
	}

	if gs.bettingRoundComplete() {
		gs.CurrentPlayerToAct = -1
		return e.endBettingRound
	}

	gs.CurrentPlayerToAct = gs.nextSeatThatCanAct(lastSeat + 1)
	if gs.CurrentPlayerToAct == -1 {
		return e.endBettingRound
	}
	return nil
}

// foldSeatOutOfTurn folds a seat immediately (leave/kick paths) and keeps the
// hand moving if it was that seat's turn.
func (e *GameEngine) foldSeatOutOfTurn(idx int) {
	gs := e.state
	p := gs.Players[idx]
	if p.IsFolded {
		return
	}
	p.IsFolded = true
	p.HasActed = true

	if gs.seatsInHand() < 2 {
		gs.CurrentPlayerToAct = -1
		e.finishHand(nil)
		return
	}
	if gs.CurrentPlayerToAct == idx {
		if continuation := e.resolveTurn(idx); continuation != nil {
			continuation()
		}
	} else if gs.bettingRoundComplete() {
		gs.CurrentPlayerToAct = -1
		e.endBettingRound()
	}
}

// endBettingRound routes a finished street: fold-out, all-in runout, or the
// next street.
func (e *GameEngine) endBettingRound() {
	gs := e.state

	if gs.seatsInHand() < 2 {
		e.finishHand(nil)
		return
	}

	// All but at most one seat all-in: no more betting is possible, so run
	// the remaining streets out and go to showdown.
	if gs.seatsThatCanAct() <= 1 {
		for gs.Phase != PhaseRiver {
			eventType := e.dealNextStreet()
			after := e.snapshot()
			e.emit(Event{Type: eventType, GameStateAfter: &after})
		}
		e.showdown()
		return
	}

	if gs.Phase == PhaseRiver {
		e.showdown()
		return
	}

	eventType := e.dealNextStreet()
	e.selectFirstToActPostFlop()
	after := e.snapshot()
	e.emit(Event{Type: eventType, GameStateAfter: &after})
}

// dealNextStreet resets per-round betting state and deals the next street's
// community cards. The caller nominates the first actor and emits the street
// event so its snapshot carries the new turn.
func (e *GameEngine) dealNextStreet() EventType {
	gs := e.state

	for _, p := range gs.Players {
		p.resetForRound()
	}
	gs.CurrentBet = 0
	gs.MinimumRaise = gs.BigBlindAmount
	gs.LastRaiseAmount = gs.BigBlindAmount
	gs.RoundAggressor = -1
	gs.betOccurredThisRound = false
	gs.CurrentPlayerToAct = -1

	var eventType EventType
	switch gs.Phase {
	case PhasePreFlop:
		gs.Phase = PhaseFlop
		gs.CommunityCards = append(gs.CommunityCards, e.deck.Deal(3)...)
		eventType = EventFlopDealt
	case PhaseFlop:
		gs.Phase = PhaseTurn
		gs.CommunityCards = append(gs.CommunityCards, e.deck.Deal(1)...)
		eventType = EventTurnDealt
	case PhaseTurn:
		gs.Phase = PhaseRiver
		gs.CommunityCards = append(gs.CommunityCards, e.deck.Deal(1)...)
		eventType = EventRiverDealt
	}

	e.logger.Debug("street dealt", "phase", gs.Phase, "board", gs.CommunityCards)
	return eventType
}

func (e *GameEngine) selectFirstToActPostFlop() {
	gs := e.state
	if e.handParticipants == 2 {
		// Heads-up post-flop the dealer acts first.
		if gs.Players[gs.DealerIndex].CanAct() {
			gs.CurrentPlayerToAct = gs.DealerIndex
		} else {
			gs.CurrentPlayerToAct = gs.nextSeatThatCanAct(gs.DealerIndex + 1)
		}
		return
	}
	gs.CurrentPlayerToAct = gs.nextSeatThatCanAct(gs.DealerIndex + 1)
}

// showdown orders the reveal, evaluates the live hands, rebuilds the pot
// layout, and pays every pot from the lowest layer up.
func (e *GameEngine) showdown() {
	gs := e.state
	gs.Phase = PhaseShowdown
	gs.CurrentPlayerToAct = -1

	for _, idx := range e.showdownOrder() {
		gs.ShownCards[gs.Players[idx].ID] = true
	}

	values := make(map[string]poker.HandValue)
	for _, p := range gs.Players {
		if !p.InHand() {
			continue
		}
		cards := append(append([]poker.Card(nil), p.HoleCards...), gs.CommunityCards...)
		v, err := poker.Evaluate(cards...)
		if err != nil {
			e.logger.Error("hand evaluation failed", "player", p.ID, "error", err)
			continue
		}
		values[p.ID] = v
		e.logger.Debug("showdown hand", "player", p.ID, "category", v.Category, "cards", p.HoleCards)
	}

	payouts := e.settlePots(values)

	after := e.snapshot()
	e.emit(Event{Type: EventShowdownComplete, Payouts: payouts, GameStateAfter: &after})

	e.finishHand(payouts)
}

// showdownOrder returns seat indices in reveal order: the river aggressor
// first when the river saw aggression, otherwise the first live seat
// clockwise from the button.
func (e *GameEngine) showdownOrder() []int {
	gs := e.state
	n := len(gs.Players)

	start := gs.RoundAggressor
	if start < 0 || !gs.Players[start].InHand() {
		start = -1
		for i := 1; i <= n; i++ {
			idx := (gs.DealerIndex + i) % n
			if gs.Players[idx].InHand() {
				start = idx
				break
			}
		}
	}
	if start < 0 {
		return nil
	}

	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if gs.Players[idx].InHand() {
			order = append(order, idx)
		}
	}
	return order
}

// settlePots rebuilds side pots from total contributions and distributes
// them, crediting winners' stacks. Pass nil values when the hand ended
// without a showdown.
func (e *GameEngine) settlePots(values map[string]poker.HandValue) []Payout {
	gs := e.state
	e.pots.CreateSidePots(gs.Players)

	worse := func(a, b string) bool {
		return gs.distanceFromDealer(gs.SeatIndex(a)) > gs.distanceFromDealer(gs.SeatIndex(b))
	}
	payouts := e.pots.DistributePots(values, worse)

	for _, payout := range payouts {
		if p := gs.PlayerByID(payout.PlayerID); p != nil {
			p.Chips += payout.Amount
			e.logger.Info("pot awarded",
				"player", payout.PlayerID,
				"amount", payout.Amount,
				"pot", payout.PotIndex)
		}
	}
	return payouts
}

// finishHand closes out the hand. When payouts is nil the hand ended before
// showdown (everyone folded to one seat) and the pots are settled here.
func (e *GameEngine) finishHand(payouts []Payout) {
	gs := e.state

	if payouts == nil {
		payouts = e.settlePots(nil)
	}

	gs.Phase = PhaseHandComplete
	gs.CurrentPlayerToAct = -1
	e.running = false

	after := e.snapshot()
	e.emit(Event{Type: EventHandComplete, Payouts: payouts, GameStateAfter: &after})

	// Reclaim seats abandoned mid-hand.
	for i := len(gs.Players) - 1; i >= 0; i-- {
		if !gs.Players[i].IsActive {
			e.removeSeat(i)
		}
	}
}

// snapshot renders the complete (unredacted) state view for event records.
func (e *GameEngine) snapshot() GameStateView {
	return projectState(e.state, e.pots.Pots(), RoleComplete, "")
}

// GetGameState returns the complete, unredacted state view.
func (e *GameEngine) GetGameState() GameStateView {
	return e.snapshot()
}

// GetPublicGameState returns the state with every hole card hidden.
func (e *GameEngine) GetPublicGameState() GameStateView {
	return projectState(e.state, e.pots.Pots(), RolePublic, "")
}

// GetBotGameState returns the state as seen by one seated player.
func (e *GameEngine) GetBotGameState(playerID string) GameStateView {
	return projectState(e.state, e.pots.Pots(), RolePlayer, playerID)
}

// ViewFor returns the state projected for an arbitrary viewer role.
func (e *GameEngine) ViewFor(role ViewRole, viewerID string) GameStateView {
	return projectState(e.state, e.pots.Pots(), role, viewerID)
}

// OnEvent subscribes a handler to the engine's event stream and returns a
// subscription id for OffEvent.
func (e *GameEngine) OnEvent(handler EventHandler) int64 {
	e.nextHandlerID++
	id := e.nextHandlerID
	e.handlers[id] = handler
	return id
}

// OffEvent removes an event subscription.
func (e *GameEngine) OffEvent(id int64) {
	delete(e.handlers, id)
}

// emit stamps ordering metadata onto the event and delivers it to every
// subscriber. A panicking subscriber is logged and skipped; the others and
// the engine are unaffected.
func (e *GameEngine) emit(event Event) {
	e.seq++
	event.SequenceID = e.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.HandNumber = e.state.HandNumber
	event.Phase = e.state.Phase

	ids := make([]int64, 0, len(e.handlers))
	for id := range e.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		handler := e.handlers[id]
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("event handler panicked", "event", event.Type, "panic", r)
				}
			}()
			handler(event)
		}()
	}
}
