package player

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/game"
)

func newPlayer(t *testing.T, size int, seed int64) *Player {
	t.Helper()
	cfg := game.DefaultConfig().WithGridSize(size)
	cfg.Seed = seed
	p, err := New(cfg, nil, nil)
	require.NoError(t, err)
	return p
}

// assertNoTouch checks that no two ships share or border a cell.
func assertNoTouch(t *testing.T, ships []game.Info) {
	t.Helper()
	for i := range ships {
		for j := i + 1; j < len(ships); j++ {
			for _, a := range ships[i].Cells {
				for _, b := range ships[j].Cells {
					assert.False(t, a.Touches(b), "%s %v touches %s %v", ships[i].Name, a, ships[j].Name, b)
				}
			}
		}
	}
}

func TestPlaceShip_OnlyRemaining(t *testing.T) {
	p := newPlayer(t, 10, 1)

	assert.False(t, p.PlaceShip("Frigate", 3, game.Coord{Row: 0, Col: 0}, game.Horizontal), "unknown ship")
	assert.False(t, p.PlaceShip("Destroyer", 4, game.Coord{Row: 0, Col: 0}, game.Horizontal), "wrong length")

	require.True(t, p.PlaceShip("Destroyer", 3, game.Coord{Row: 5, Col: 5}, game.Horizontal))
	assert.Len(t, p.RemainingShips(), 4)
	assert.False(t, p.PlaceShip("Destroyer", 3, game.Coord{Row: 0, Col: 0}, game.Horizontal), "already placed")
	assert.Equal(t, []game.Coord{{Row: 5, Col: 5}, {Row: 5, Col: 6}, {Row: 5, Col: 7}}, p.ShipCells("Destroyer"))

	assert.False(t, p.PlaceShip("Patrol Boat", 2, game.Coord{Row: 6, Col: 6}, game.Vertical), "diagonal adjacency")
	assert.Len(t, p.RemainingShips(), 4)
}

func TestPlaceShipsRandomly(t *testing.T) {
	for _, size := range game.GridSizes {
		for seed := int64(1); seed <= 30; seed++ {
			p := newPlayer(t, size, seed)
			require.True(t, p.PlaceShipsRandomly(), "size %d seed %d", size, seed)
			assert.Empty(t, p.RemainingShips())

			ships := p.PlacedShips()
			require.Len(t, ships, len(game.DefaultFleet()))
			assertNoTouch(t, ships)
			for _, s := range ships {
				assert.Len(t, s.Cells, s.Length)
			}
		}
	}
}

func TestPlaceShipsRandomly_KeepsHandPlaced(t *testing.T) {
	p := newPlayer(t, 10, 7)
	require.True(t, p.PlaceShip("Aircraft Carrier", 5, game.Coord{Row: 0, Col: 0}, game.Horizontal))

	require.True(t, p.PlaceShipsRandomly())
	assert.Equal(t, game.Line(game.Coord{Row: 0, Col: 0}, 5, game.Horizontal), p.ShipCells("Aircraft Carrier"))
	assertNoTouch(t, p.PlacedShips())
}

func TestPlaceShipsRandomly_ImpossibleFleetRestores(t *testing.T) {
	fleet := make([]game.ShipSpec, 0, 30)
	for i := 0; i < 30; i++ {
		fleet = append(fleet, game.ShipSpec{Name: string(rune('A' + i)), Length: 4})
	}
	cfg := game.Config{GridSize: 10, Fleet: fleet}
	p, err := New(cfg, nil, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	assert.False(t, p.PlaceShipsRandomly())
	assert.Len(t, p.RemainingShips(), 30)
	assert.Empty(t, p.PlacedShips())
	for _, v := range p.Grid().Occupancy() {
		require.Zero(t, v)
	}
}

func TestPlaceShipsRandomly_RestoresHandPlaced(t *testing.T) {
	fleet := []game.ShipSpec{{Name: "X", Length: 2}}
	for i := 0; i < 10; i++ {
		fleet = append(fleet, game.ShipSpec{Name: string(rune('A' + i)), Length: 10})
	}
	cfg := game.Config{GridSize: 10, Fleet: fleet}
	p, err := New(cfg, nil, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	require.True(t, p.PlaceShip("X", 2, game.Coord{Row: 0, Col: 0}, game.Horizontal))
	before := p.RemainingShips()
	occupancy := p.Grid().Occupancy()

	assert.False(t, p.PlaceShipsRandomly())
	assert.Equal(t, before, p.RemainingShips())
	require.Len(t, p.PlacedShips(), 1)
	assert.Equal(t, "X", p.PlacedShips()[0].Name)
	assert.Equal(t, occupancy, p.Grid().Occupancy())
	assert.Nil(t, p.ShipCells("A"))

	require.True(t, p.PlaceShip("A", 10, game.Coord{Row: 2, Col: 0}, game.Horizontal), "restored board is usable")
}

func TestNew_ZeroSeedVaries(t *testing.T) {
	layouts := make(map[string]bool)
	for range 5 {
		p := newPlayer(t, 15, 0)
		require.True(t, p.PlaceShipsRandomly())
		layouts[string(p.Grid().Occupancy())] = true
	}
	assert.Greater(t, len(layouts), 1, "seed 0 is time based")
}

func TestReceiveShot_RecordsHistory(t *testing.T) {
	p := newPlayer(t, 10, 1)
	require.True(t, p.PlaceShip("Patrol Boat", 2, game.Coord{Row: 0, Col: 0}, game.Horizontal))

	assert.Equal(t, game.OutcomeHit, p.ReceiveShot(game.Coord{Row: 0, Col: 0}).Outcome)
	assert.Equal(t, game.OutcomeInvalid, p.ReceiveShot(game.Coord{Row: 0, Col: 0}).Outcome)
	assert.Equal(t, game.OutcomeSunk, p.ReceiveShot(game.Coord{Row: 0, Col: 1}).Outcome)
	assert.Equal(t, game.OutcomeInvalid, p.ReceiveShot(game.Coord{Row: 10, Col: 0}).Outcome)
	assert.Equal(t, []game.Coord{{Row: 0, Col: 0}, {Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 10, Col: 0}}, p.ShotsReceived())
	assert.Len(t, p.Grid().ShotsFired(), 2, "invalid shots leave the grid alone")
}

type recordingStrategy struct {
	Manual
	seen []game.Outcome
}

func (r *recordingStrategy) OnShotResult(_ game.Coord, out game.ShotOutcome) {
	r.seen = append(r.seen, out.Outcome)
}

func TestRecordShot_FeedsStrategy(t *testing.T) {
	rs := &recordingStrategy{}
	p, err := New(game.DefaultConfig(), rs, nil)
	require.NoError(t, err)

	opp := newPlayer(t, 10, 2)
	require.True(t, opp.PlaceShip("Patrol Boat", 2, game.Coord{Row: 3, Col: 3}, game.Vertical))

	for _, c := range []game.Coord{{Row: 3, Col: 3}, {Row: 0, Col: 0}, {Row: 0, Col: 0}} {
		p.RecordShot(c, opp.ReceiveShot(c))
	}
	assert.Equal(t, []game.Outcome{game.OutcomeHit, game.OutcomeMiss}, rs.seen)
	assert.Equal(t, []game.Coord{{Row: 3, Col: 3}}, p.Hits(opp.Grid()))
	assert.Equal(t, []game.Coord{{Row: 0, Col: 0}}, p.Misses(opp.Grid()))

	_, ok := newPlayer(t, 10, 1).NextShot()
	assert.False(t, ok, "manual strategy never picks")
}

func TestPlaceFleet(t *testing.T) {
	src := newPlayer(t, 15, 9)
	require.True(t, src.PlaceShipsRandomly())

	dst := newPlayer(t, 15, 10)
	require.NoError(t, dst.PlaceFleet(src.PlacedShips()))
	assert.Equal(t, src.Grid().Occupancy(), dst.Grid().Occupancy())
	assert.Empty(t, dst.RemainingShips())

	bad := src.PlacedShips()
	bad[0].Cells[1] = game.Coord{Row: 14, Col: 14}
	assert.Error(t, dst.PlaceFleet(bad))
	assert.Empty(t, dst.PlacedShips())
	assert.Len(t, dst.RemainingShips(), 5)
}
