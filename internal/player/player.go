package player

import (
	"fmt"
	"math/rand"
	"slices"
	"time"

	"battleship/internal/game"
)

const (
	maxPlacementAttempts = 200
	resetEvery           = 50
)

// Player owns one grid and the fleet still waiting to be placed.
type Player struct {
	cfg       game.Config
	grid      *game.Grid
	remaining []game.ShipSpec
	placed    map[string]*game.Ship
	fired     []game.Coord
	received  []game.Coord
	strategy  TargetingStrategy
	rng       *rand.Rand
}

// New builds a player for cfg. A nil strategy means Manual.
func New(cfg game.Config, strategy TargetingStrategy, rng *rand.Rand) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := game.NewGrid(cfg.GridSize)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		strategy = Manual{}
	}
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	p := &Player{
		cfg:       cfg,
		grid:      grid,
		remaining: slices.Clone(cfg.Fleet),
		placed:    make(map[string]*game.Ship),
		strategy:  strategy,
		rng:       rng,
	}
	strategy.Reset(cfg)
	return p, nil
}

func (p *Player) Config() game.Config { return p.cfg }
func (p *Player) Grid() *game.Grid { return p.grid }
func (p *Player) Strategy() TargetingStrategy { return p.strategy }

// RemainingShips returns the ship specs not yet placed.
func (p *Player) RemainingShips() []game.ShipSpec { return slices.Clone(p.remaining) }

func (p *Player) remainingIndex(name string) int {
	return slices.IndexFunc(p.remaining, func(s game.ShipSpec) bool { return s.Name == name })
}

// PlaceShip places a still-unplaced ship. Once placed a ship cannot be moved
// for the rest of the round.
func (p *Player) PlaceShip(name string, length int, start game.Coord, o game.Orientation) bool {
	i := p.remainingIndex(name)
	if i < 0 || p.remaining[i].Length != length {
		return false
	}
	ship, err := game.NewShip(name, length)
	if err != nil {
		return false
	}
	if !p.grid.Place(ship, start, o) {
		return false
	}
	p.placed[name] = ship
	p.remaining = slices.Delete(p.remaining, i, i+1)
	return true
}

// ValidStarts lists every start cell where a ship of length n fits in orientation o.
func (p *Player) ValidStarts(n int, o game.Orientation) []game.Coord {
	size := p.grid.Size()
	maxRow, maxCol := size, size
	if o == game.Horizontal {
		maxCol = size - n + 1
	} else {
		maxRow = size - n + 1
	}
	var out []game.Coord
	for r := 0; r < maxRow; r++ {
		for c := 0; c < maxCol; c++ {
			if p.grid.CanPlace(n, game.Coord{Row: r, Col: c}, o) {
				out = append(out, game.Coord{Row: r, Col: c})
			}
		}
	}
	return out
}

// PlaceShipsRandomly places all remaining ships. Every resetEvery failed
// attempts the board is wiped and placement restarts; once the attempt
// budget runs out the pre-call state is restored and false is returned.
func (p *Player) PlaceShipsRandomly() bool {
	original := slices.Clone(p.remaining)
	if len(p.placed) > 0 {
		// only an untouched board can be restored exactly
		return p.placeAroundExisting()
	}

	attempts := 0
	for len(p.remaining) > 0 && attempts < maxPlacementAttempts {
		spec := p.remaining[0]
		o := game.Horizontal
		if p.rng.Intn(2) == 0 {
			o = game.Vertical
		}
		if starts := p.ValidStarts(spec.Length, o); len(starts) > 0 {
			if p.PlaceShip(spec.Name, spec.Length, starts[p.rng.Intn(len(starts))], o) {
				continue
			}
		}
		attempts++
		if attempts%resetEvery == 0 {
			p.resetBoard(original)
		}
	}
	if len(p.remaining) > 0 {
		p.resetBoard(original)
		return false
	}
	return true
}

// placeAroundExisting finishes a partly hand-placed fleet without touching
// the ships already down. On failure the hand-placed layout is restored.
func (p *Player) placeAroundExisting() bool {
	original := slices.Clone(p.remaining)
	kept := p.grid.Ships()
	for attempts := 0; len(p.remaining) > 0 && attempts < maxPlacementAttempts; attempts++ {
		spec := p.remaining[0]
		var starts []game.Coord
		var o game.Orientation
		for _, cand := range p.rng.Perm(2) {
			o = game.Horizontal
			if cand == 1 {
				o = game.Vertical
			}
			if starts = p.ValidStarts(spec.Length, o); len(starts) > 0 {
				break
			}
		}
		if len(starts) == 0 {
			break
		}
		p.PlaceShip(spec.Name, spec.Length, starts[p.rng.Intn(len(starts))], o)
	}
	if len(p.remaining) == 0 {
		return true
	}
	p.restoreLayout(kept, original)
	return false
}

// restoreLayout rebuilds the board from ships placed earlier in setup.
func (p *Player) restoreLayout(ships []game.Info, remaining []game.ShipSpec) {
	p.resetBoard(p.cfg.Fleet)
	for _, s := range ships {
		p.PlaceShip(s.Name, s.Length, s.Cells[0], s.Orientation)
	}
	p.remaining = slices.Clone(remaining)
}

func (p *Player) resetBoard(remaining []game.ShipSpec) {
	p.grid.Clear()
	clear(p.placed)
	p.remaining = slices.Clone(remaining)
}

// ReceiveShot records every incoming shot, repeats included, and resolves it
// on the grid.
func (p *Player) ReceiveShot(pos game.Coord) game.ShotOutcome {
	p.received = append(p.received, pos)
	return p.grid.ReceiveShot(pos)
}

// RecordShot notes a shot this player fired and passes the answer to the strategy.
func (p *Player) RecordShot(pos game.Coord, out game.ShotOutcome) {
	if !out.Valid() {
		return
	}
	p.fired = append(p.fired, pos)
	p.strategy.OnShotResult(pos, out)
}

// NextShot asks the strategy for a target.
func (p *Player) NextShot() (game.Coord, bool) { return p.strategy.SelectShot() }

func (p *Player) AllSunk() bool { return p.grid.AllSunk() }

// ShipCells returns the cells of a placed ship, or nil.
func (p *Player) ShipCells(name string) []game.Coord {
	if s, ok := p.placed[name]; ok {
		return s.Cells()
	}
	return nil
}

// PlacedShips returns snapshots of the placed fleet.
func (p *Player) PlacedShips() []game.Info { return p.grid.Ships() }

// ShotsFired lists the shots this player fired at the opponent, in order.
func (p *Player) ShotsFired() []game.Coord { return slices.Clone(p.fired) }

// ShotsReceived lists the shots the opponent fired at this player, in order.
func (p *Player) ShotsReceived() []game.Coord { return slices.Clone(p.received) }

// Hits splits ShotsFired by the opponent grid's answer.
func (p *Player) Hits(opponent *game.Grid) []game.Coord {
	return p.filterFired(opponent, game.CellHit)
}

func (p *Player) Misses(opponent *game.Grid) []game.Coord {
	return p.filterFired(opponent, game.CellMiss)
}

func (p *Player) filterFired(opponent *game.Grid, want game.CellState) []game.Coord {
	var out []game.Coord
	for _, c := range p.fired {
		if opponent.CellState(c) == want {
			out = append(out, c)
		}
	}
	return out
}

// PlaceFleet places ships from a saved layout. Any inconsistency returns an
// error and leaves a fresh, empty board.
func (p *Player) PlaceFleet(ships []game.Info) error {
	p.resetBoard(p.cfg.Fleet)
	for _, s := range ships {
		if len(s.Cells) == 0 {
			p.resetBoard(p.cfg.Fleet)
			return fmt.Errorf("ship %q has no cells", s.Name)
		}
		if !p.PlaceShip(s.Name, s.Length, s.Cells[0], s.Orientation) {
			p.resetBoard(p.cfg.Fleet)
			return fmt.Errorf("cannot place %q at %v %v", s.Name, s.Cells[0], s.Orientation)
		}
		if got := p.placed[s.Name].Cells(); !slices.Equal(got, s.Cells) {
			p.resetBoard(p.cfg.Fleet)
			return fmt.Errorf("ship %q cells do not match its start and orientation", s.Name)
		}
	}
	return nil
}
