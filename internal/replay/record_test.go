package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botfelt/botfelt/internal/game"
	"github.com/botfelt/botfelt/poker"
)

func snapshotWithCards(phase game.Phase) *game.GameStateView {
	return &game.GameStateView{
		Phase: phase,
		Players: []game.PlayerView{
			{ID: "live", HoleCards: poker.MustParseCards("Ah Kd")},
			{ID: "folded", IsFolded: true, HoleCards: poker.MustParseCards("2c 7s")},
		},
	}
}

func TestFromEventRedactsMidHandSnapshots(t *testing.T) {
	event := game.Event{
		SequenceID:      4,
		Type:            game.EventActionTaken,
		Timestamp:       time.UnixMilli(1700000000000),
		HandNumber:      2,
		Phase:           game.PhaseFlop,
		PlayerID:        "live",
		GameStateBefore: snapshotWithCards(game.PhaseFlop),
		GameStateAfter:  snapshotWithCards(game.PhaseFlop),
	}

	rec := FromEvent(event)
	assert.Equal(t, int64(4), rec.SequenceID)
	assert.Equal(t, int64(1700000000000), rec.Timestamp)

	for _, view := range []*game.GameStateView{rec.GameStateBefore, rec.GameStateAfter} {
		require.NotNil(t, view)
		for _, p := range view.Players {
			assert.Empty(t, p.HoleCards, "no hole cards persist before showdown")
		}
	}

	// The event's own snapshot is untouched.
	assert.NotEmpty(t, event.GameStateAfter.Players[0].HoleCards)
}

func TestFromEventKeepsShowdownReveals(t *testing.T) {
	event := game.Event{
		Type:           game.EventShowdownComplete,
		Phase:          game.PhaseShowdown,
		GameStateAfter: snapshotWithCards(game.PhaseShowdown),
	}

	rec := FromEvent(event)
	require.NotNil(t, rec.GameStateAfter)
	for _, p := range rec.GameStateAfter.Players {
		if p.IsFolded {
			assert.Empty(t, p.HoleCards, "folded seats stay hidden even at showdown")
		} else {
			assert.NotEmpty(t, p.HoleCards, "shown hands are part of the record")
		}
	}
}

func TestFromEventNilSnapshots(t *testing.T) {
	rec := FromEvent(game.Event{Type: game.EventPlayerJoined})
	assert.Nil(t, rec.GameStateBefore)
	assert.Nil(t, rec.GameStateAfter)
}

func TestPotOdds(t *testing.T) {
	assert.Zero(t, PotOdds(0, 100))
	assert.Zero(t, PotOdds(-5, 100))
	assert.InDelta(t, 0.25, PotOdds(25, 75), 1e-9)
	assert.InDelta(t, 0.5, PotOdds(100, 100), 1e-9)
}

func TestTimeToDecide(t *testing.T) {
	start := time.UnixMilli(1700000000000)
	assert.InDelta(t, 1.5, TimeToDecide(start, start.Add(1500*time.Millisecond)), 1e-9)
	assert.Zero(t, TimeToDecide(time.Time{}, start))
	assert.Zero(t, TimeToDecide(start, start.Add(-time.Second)))
}
