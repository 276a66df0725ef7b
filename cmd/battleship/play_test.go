package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/app"
	"battleship/internal/game"
)

func newGame(t *testing.T, opts ...app.Option) *app.Controller {
	t.Helper()
	cfg := game.DefaultConfig()
	cfg.Seed = 3
	ctl, err := app.New(cfg, append(opts, app.WithLogger(zerolog.Nop()))...)
	require.NoError(t, err)
	return ctl
}

func TestPlay(t *testing.T) {
	ctl := newGame(t)
	in := strings.NewReader(strings.Join([]string{
		"place Aircraft Carrier 0 0 h",
		"place Patrol Boat 1 0 h",
		"place Boat 1 0",
		"random",
		"0 0",
		"0 0",
		"20 20",
		"",
		"stats",
		"save",
		"bogus",
		"quit",
		"0 1",
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, play(ctl, in, &out, ""))

	s := out.String()
	assert.Contains(t, s, "place: Battleship(4), Submarine(3), Destroyer(3), Patrol Boat(2)")
	assert.Contains(t, s, "cannot place Patrol Boat at (1,0)")
	assert.Contains(t, s, "usage: place NAME R C h|v")
	assert.Contains(t, s, "your turn")
	assert.Contains(t, s, "AI fires at")
	assert.Contains(t, s, "Position already targeted")
	assert.Contains(t, s, "Position out of bounds")
	assert.Contains(t, s, "shots 1, hits")
	assert.Contains(t, s, "saving needs a database and a player")
	assert.Contains(t, s, "unknown command")
	assert.Contains(t, s, "you forfeit")
	assert.Contains(t, s, "The AI wins.")

	assert.Equal(t, app.StateEnded, ctl.GameState())
	assert.Equal(t, app.SideAI, ctl.Winner())
	assert.Equal(t, 1, ctl.Stats().TotalShots, "input after quit is not read")
}

func TestPlay_RevealAfterForfeit(t *testing.T) {
	fair, err := app.NewFairPlay("")
	require.NoError(t, err)
	ctl := newGame(t, app.WithFairPlay(fair))

	var out bytes.Buffer
	require.NoError(t, play(ctl, strings.NewReader("random\nquit\n"), &out, ""))
	s := out.String()
	assert.Contains(t, s, "AI fleet commitment: 0x")
	assert.Contains(t, s, "✓ AI fleet matches commitment")
}

func TestPlay_EOF(t *testing.T) {
	ctl := newGame(t)
	var out bytes.Buffer
	require.NoError(t, play(ctl, strings.NewReader("random"), &out, ""))
	assert.Equal(t, app.StatePlaying, ctl.GameState(), "end of input leaves the game running")
}

func TestRender_HidesAIShips(t *testing.T) {
	ctl := newGame(t)
	require.True(t, ctl.PlacePlayerShipsRandomly())

	var out bytes.Buffer
	(&session{ctl: ctl, out: &out}).render()
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 12)

	ships := 0
	for _, l := range lines[2:] {
		half := len(l) / 2
		assert.NotContains(t, l[half:], "S")
		ships += strings.Count(l[:half], "S")
	}
	assert.Equal(t, 17, ships)
}

func TestParseCoord(t *testing.T) {
	pos, err := parseCoord([]string{"3", "7"})
	require.NoError(t, err)
	assert.Equal(t, game.Coord{Row: 3, Col: 7}, pos)

	for _, bad := range [][]string{{"3"}, {"a", "1"}, {"1", "b"}, {"1", "2", "3"}} {
		_, err := parseCoord(bad)
		assert.Error(t, err, bad)
	}
}
