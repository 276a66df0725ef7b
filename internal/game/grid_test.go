package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGrid(t *testing.T, size int) *Grid {
	t.Helper()
	g, err := NewGrid(size)
	require.NoError(t, err)
	return g
}

func mustShip(t *testing.T, name string, n int) *Ship {
	t.Helper()
	s, err := NewShip(name, n)
	require.NoError(t, err)
	return s
}

func TestNewGrid_Sizes(t *testing.T) {
	for _, n := range []int{10, 15} {
		g := newTestGrid(t, n)
		assert.Equal(t, n, g.Size())
	}
	_, err := NewGrid(12)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGrid_TwoShotSink(t *testing.T) {
	g := newTestGrid(t, 10)
	boat := mustShip(t, "Patrol Boat", 2)
	require.True(t, g.Place(boat, Coord{0, 0}, Horizontal))
	assert.Equal(t, []Coord{{0, 0}, {0, 1}}, boat.Cells())

	out := g.ReceiveShot(Coord{0, 0})
	assert.Equal(t, OutcomeHit, out.Outcome)
	assert.Nil(t, out.Sunk)

	out = g.ReceiveShot(Coord{0, 1})
	assert.Equal(t, OutcomeSunk, out.Outcome)
	require.NotNil(t, out.Sunk)
	assert.Equal(t, "Patrol Boat", out.Sunk.Name)
	assert.True(t, boat.IsSunk())
	assert.True(t, g.AllSunk())
}

func TestGrid_PlaceRejects(t *testing.T) {
	g := newTestGrid(t, 10)
	require.True(t, g.Place(mustShip(t, "Destroyer", 3), Coord{5, 5}, Horizontal))

	cases := []struct {
		name  string
		n     int
		start Coord
		o     Orientation
	}{
		{"diagonal touch", 2, Coord{6, 6}, Vertical},
		{"overlap", 2, Coord{4, 6}, Vertical},
		{"side touch", 2, Coord{5, 3}, Horizontal},
		{"corner touch", 2, Coord{3, 4}, Vertical},
		{"off the right edge", 3, Coord{0, 8}, Horizontal},
		{"off the bottom edge", 3, Coord{8, 0}, Vertical},
		{"negative start", 2, Coord{-1, 0}, Vertical},
		{"no orientation", 2, Coord{0, 0}, NoOrientation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := mustShip(t, "Patrol Boat", tc.n)
			before := g.Occupancy()
			assert.False(t, g.CanPlace(tc.n, tc.start, tc.o))
			assert.False(t, g.Place(s, tc.start, tc.o))
			assert.False(t, s.Placed())
			assert.Equal(t, before, g.Occupancy(), "failed placement must not mutate")
			assert.Len(t, g.Ships(), 1)
		})
	}

	assert.True(t, g.Place(mustShip(t, "Patrol Boat", 2), Coord{7, 5}, Horizontal), "one empty row between ships is fine")
}

func TestGrid_ReceiveShotIdempotent(t *testing.T) {
	g := newTestGrid(t, 10)
	require.True(t, g.Place(mustShip(t, "Submarine", 3), Coord{2, 2}, Vertical))

	assert.Equal(t, OutcomeHit, g.ReceiveShot(Coord{2, 2}).Outcome)
	assert.Equal(t, OutcomeMiss, g.ReceiveShot(Coord{0, 0}).Outcome)

	for i := 0; i < 3; i++ {
		assert.Equal(t, OutcomeInvalid, g.ReceiveShot(Coord{2, 2}).Outcome)
		assert.Equal(t, OutcomeInvalid, g.ReceiveShot(Coord{0, 0}).Outcome)
	}
	assert.Equal(t, OutcomeInvalid, g.ReceiveShot(Coord{10, 0}).Outcome)
	assert.Equal(t, OutcomeInvalid, g.ReceiveShot(Coord{0, -1}).Outcome)

	assert.Len(t, g.Hits(), 1)
	assert.Len(t, g.Misses(), 1)
	assert.Len(t, g.ShotsFired(), 2)

	s, ok := g.ShipAt(Coord{2, 2})
	require.True(t, ok)
	assert.Equal(t, 1, s.HitCount())
}

func TestGrid_CellStatePrecedence(t *testing.T) {
	g := newTestGrid(t, 10)
	require.True(t, g.Place(mustShip(t, "Patrol Boat", 2), Coord{0, 0}, Horizontal))

	assert.Equal(t, CellShip, g.CellState(Coord{0, 0}))
	assert.Equal(t, CellEmpty, g.CellState(Coord{5, 5}))
	assert.Equal(t, CellInvalid, g.CellState(Coord{10, 10}))

	g.ReceiveShot(Coord{0, 0})
	g.ReceiveShot(Coord{5, 5})
	assert.Equal(t, CellHit, g.CellState(Coord{0, 0}))
	assert.Equal(t, CellMiss, g.CellState(Coord{5, 5}))
	assert.Equal(t, CellShip, g.CellState(Coord{0, 1}))
}

func TestGrid_HitsAndMissesPartitionShots(t *testing.T) {
	g := newTestGrid(t, 10)
	require.True(t, g.Place(mustShip(t, "Battleship", 4), Coord{3, 1}, Horizontal))
	for r := 0; r < 10; r++ {
		g.ReceiveShot(Coord{r, r})
		g.ReceiveShot(Coord{3, r})
	}
	hits, misses, shots := g.Hits(), g.Misses(), g.ShotsFired()
	assert.Equal(t, len(shots), len(hits)+len(misses))
	for c := range hits {
		_, miss := misses[c]
		assert.False(t, miss)
		_, owned := g.ShipAt(c)
		assert.True(t, owned)
	}
	assert.True(t, g.AllSunk())
}

func TestGrid_ClearAndResize(t *testing.T) {
	g := newTestGrid(t, 10)
	require.True(t, g.Place(mustShip(t, "Patrol Boat", 2), Coord{0, 0}, Horizontal))
	g.ReceiveShot(Coord{0, 0})

	g.Clear()
	assert.Empty(t, g.Ships())
	assert.Empty(t, g.ShotsFired())
	assert.False(t, g.AllSunk())

	require.NoError(t, g.Resize(15))
	assert.Equal(t, 15, g.Size())
	assert.Equal(t, CellEmpty, g.CellState(Coord{14, 14}))
	assert.Error(t, g.Resize(11))
}

func TestGrid_SnapshotsAreCopies(t *testing.T) {
	g := newTestGrid(t, 10)
	g.ReceiveShot(Coord{1, 1})
	shots := g.ShotsFired()
	delete(shots, Coord{1, 1})
	assert.True(t, g.Fired(Coord{1, 1}))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, 17, DefaultConfig().TotalShipCells())

	bad := []Config{
		{GridSize: 12, Fleet: DefaultFleet()},
		{GridSize: 10},
		{GridSize: 10, Fleet: []ShipSpec{{Name: "", Length: 2}}},
		{GridSize: 10, Fleet: []ShipSpec{{Name: "A", Length: 0}}},
		{GridSize: 10, Fleet: []ShipSpec{{Name: "A", Length: 2}, {Name: "A", Length: 3}}},
	}
	for _, c := range bad {
		assert.ErrorIs(t, c.Validate(), ErrInvalidConfig, "%+v", c)
	}

	l, ok := DefaultConfig().FleetLength("Battleship")
	assert.True(t, ok)
	assert.Equal(t, 4, l)
}
