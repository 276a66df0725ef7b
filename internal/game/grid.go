package game

import (
	"fmt"
	"maps"
	"slices"
)

// CellState is what a single cell looks like to an observer.
type CellState int

const (
	CellInvalid CellState = iota
	CellEmpty
	CellShip
	CellHit
	CellMiss
)

var cellStateNames = [...]string{"invalid", "empty", "ship", "hit", "miss"}

func (s CellState) String() string {
	if s < 0 || int(s) >= len(cellStateNames) {
		return "invalid"
	}
	return cellStateNames[s]
}

func (s CellState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome classifies a shot.
type Outcome int

const (
	OutcomeInvalid Outcome = iota
	OutcomeMiss
	OutcomeHit
	OutcomeSunk
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMiss:
		return "miss"
	case OutcomeHit:
		return "hit"
	case OutcomeSunk:
		return "sunk"
	}
	return "invalid"
}

// ShotOutcome is the grid's answer to a shot. Sunk is set only for OutcomeSunk.
type ShotOutcome struct {
	Outcome Outcome
	Sunk    *Info
}

func (o ShotOutcome) Valid() bool { return o.Outcome != OutcomeInvalid }
func (o ShotOutcome) Hit() bool { return o.Outcome == OutcomeHit || o.Outcome == OutcomeSunk }

// matrix is a dense w*w cell store.
type matrix[T any] struct {
	w    int
	data []T
}

func makeMatrix[T any](w int) matrix[T] { return matrix[T]{w, make([]T, w*w)} }

func (m matrix[T]) at(c Coord) T { return m.data[c.Row*m.w+c.Col] }
func (m matrix[T]) set(c Coord, t T) { m.data[c.Row*m.w+c.Col] = t }

// Grid is one side's board: ship ownership per cell plus shot bookkeeping.
type Grid struct {
	size   int
	owner  matrix[*Ship]
	ships  []*Ship
	shots  map[Coord]struct{}
	hits   map[Coord]struct{}
	misses map[Coord]struct{}
}

// NewGrid returns an empty size x size grid. Only the sizes in GridSizes are accepted.
func NewGrid(size int) (*Grid, error) {
	if !slices.Contains(GridSizes, size) {
		return nil, fmt.Errorf("%w: grid size %d not in %v", ErrInvalidConfig, size, GridSizes)
	}
	g := &Grid{}
	g.reset(size)
	return g, nil
}

func (g *Grid) reset(size int) {
	g.size = size
	g.owner = makeMatrix[*Ship](size)
	g.ships = nil
	g.shots = make(map[Coord]struct{})
	g.hits = make(map[Coord]struct{})
	g.misses = make(map[Coord]struct{})
}

func (g *Grid) Size() int { return g.size }

// Clear drops every ship and shot.
func (g *Grid) Clear() { g.reset(g.size) }

// Resize clears the grid and changes its dimension.
func (g *Grid) Resize(size int) error {
	if !slices.Contains(GridSizes, size) {
		return fmt.Errorf("%w: grid size %d not in %v", ErrInvalidConfig, size, GridSizes)
	}
	g.reset(size)
	return nil
}

func (g *Grid) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < g.size && c.Col >= 0 && c.Col < g.size
}

// footprint returns the cells a ship of length n would cover, or nil when
// any of them falls outside the grid.
func (g *Grid) footprint(n int, start Coord, o Orientation) []Coord {
	if o != Horizontal && o != Vertical {
		return nil
	}
	cells := Line(start, n, o)
	for _, c := range cells {
		if !g.InBounds(c) {
			return nil
		}
	}
	return cells
}

// clearOfShips checks the no-touch rule: no cell, and none of its 8 neighbours, may be owned.
func (g *Grid) clearOfShips(cells []Coord) bool {
	for _, c := range cells {
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				n := c.Add(dr, dc)
				if g.InBounds(n) && g.owner.at(n) != nil {
					return false
				}
			}
		}
	}
	return true
}

// CanPlace reports whether a ship of length n fits at start without mutating the grid.
func (g *Grid) CanPlace(n int, start Coord, o Orientation) bool {
	cells := g.footprint(n, start, o)
	return cells != nil && g.clearOfShips(cells)
}

// Place puts ship on the grid. It returns false, leaving the grid untouched,
// when the run leaves the grid or touches another ship.
func (g *Grid) Place(ship *Ship, start Coord, o Orientation) bool {
	if ship == nil || ship.Placed() {
		return false
	}
	cells := g.footprint(ship.Length(), start, o)
	if cells == nil || !g.clearOfShips(cells) {
		return false
	}
	if err := ship.setCells(cells, o); err != nil {
		return false
	}
	for _, c := range cells {
		g.owner.set(c, ship)
	}
	g.ships = append(g.ships, ship)
	return true
}

// ReceiveShot resolves a shot. Out of bounds or repeated shots are OutcomeInvalid
// and change nothing.
func (g *Grid) ReceiveShot(pos Coord) ShotOutcome {
	if !g.InBounds(pos) {
		return ShotOutcome{}
	}
	if _, seen := g.shots[pos]; seen {
		return ShotOutcome{}
	}
	g.shots[pos] = struct{}{}

	ship := g.owner.at(pos)
	if ship == nil {
		g.misses[pos] = struct{}{}
		return ShotOutcome{Outcome: OutcomeMiss}
	}
	g.hits[pos] = struct{}{}
	ship.TakeHit(pos)
	if ship.IsSunk() {
		inf := ship.Info()
		return ShotOutcome{Outcome: OutcomeSunk, Sunk: &inf}
	}
	return ShotOutcome{Outcome: OutcomeHit}
}

// CellState reports hit/miss ahead of ship/empty.
func (g *Grid) CellState(pos Coord) CellState {
	if !g.InBounds(pos) {
		return CellInvalid
	}
	if _, ok := g.hits[pos]; ok {
		return CellHit
	}
	if _, ok := g.misses[pos]; ok {
		return CellMiss
	}
	if g.owner.at(pos) != nil {
		return CellShip
	}
	return CellEmpty
}

// Fired reports whether pos has already been shot at.
func (g *Grid) Fired(pos Coord) bool {
	_, ok := g.shots[pos]
	return ok
}

// ShipAt returns the ship owning pos, if any.
func (g *Grid) ShipAt(pos Coord) (*Ship, bool) {
	if !g.InBounds(pos) {
		return nil, false
	}
	s := g.owner.at(pos)
	return s, s != nil
}

// AllSunk is true when every placed ship is sunk. An empty grid is not "all sunk".
func (g *Grid) AllSunk() bool {
	if len(g.ships) == 0 {
		return false
	}
	for _, s := range g.ships {
		if !s.IsSunk() {
			return false
		}
	}
	return true
}

// Ships returns snapshots of the placed ships in placement order.
func (g *Grid) Ships() []Info {
	out := make([]Info, len(g.ships))
	for i, s := range g.ships {
		out[i] = s.Info()
	}
	return out
}

// ShipCells returns every occupied cell.
func (g *Grid) ShipCells() map[Coord]struct{} {
	out := make(map[Coord]struct{})
	for _, s := range g.ships {
		for _, c := range s.cells {
			out[c] = struct{}{}
		}
	}
	return out
}

func (g *Grid) ShotsFired() map[Coord]struct{} { return maps.Clone(g.shots) }
func (g *Grid) Hits() map[Coord]struct{} { return maps.Clone(g.hits) }
func (g *Grid) Misses() map[Coord]struct{} { return maps.Clone(g.misses) }

// Occupancy flattens the grid row-major: 1 where a ship sits, 0 elsewhere.
func (g *Grid) Occupancy() []uint8 {
	out := make([]uint8, g.size*g.size)
	for i, s := range g.owner.data {
		if s != nil {
			out[i] = 1
		}
	}
	return out
}

// SortedCoords orders a cell set row-major, for stable output.
func SortedCoords(set map[Coord]struct{}) []Coord {
	out := slices.Collect(maps.Keys(set))
	slices.SortFunc(out, func(a, b Coord) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	return out
}
