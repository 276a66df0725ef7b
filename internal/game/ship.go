package game

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidShip = errors.New("invalid ship")

// Ship is a fixed-length vessel. Cells are assigned once, at placement.
type Ship struct {
	name        string
	length      int
	cells       []Coord
	orientation Orientation
	hits        map[Coord]struct{}
}

// NewShip builds an unplaced ship.
func NewShip(name string, length int) (*Ship, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidShip)
	}
	if length <= 0 {
		return nil, fmt.Errorf("%w: %s has length %d", ErrInvalidShip, name, length)
	}
	return &Ship{name: name, length: length, hits: make(map[Coord]struct{})}, nil
}

func (s *Ship) Name() string { return s.name }
func (s *Ship) Length() int { return s.length }
func (s *Ship) Orientation() Orientation { return s.orientation }
func (s *Ship) Placed() bool { return len(s.cells) > 0 }

// Cells returns a copy of the occupied cells in placement order.
func (s *Ship) Cells() []Coord { return slices.Clone(s.cells) }

// setCells assigns the ship's footprint. It may only happen once.
func (s *Ship) setCells(cells []Coord, o Orientation) error {
	if s.Placed() {
		return fmt.Errorf("%w: %s already placed", ErrInvalidShip, s.name)
	}
	if len(cells) != s.length {
		return fmt.Errorf("%w: %s needs %d cells, got %d", ErrInvalidShip, s.name, s.length, len(cells))
	}
	s.cells = slices.Clone(cells)
	s.orientation = o
	return nil
}

func (s *Ship) occupies(pos Coord) bool { return slices.Contains(s.cells, pos) }

// TakeHit records a hit on pos. Hits outside the ship or repeated hits return false.
func (s *Ship) TakeHit(pos Coord) bool {
	if !s.occupies(pos) {
		return false
	}
	if _, dup := s.hits[pos]; dup {
		return false
	}
	s.hits[pos] = struct{}{}
	return true
}

func (s *Ship) IsHitAt(pos Coord) bool {
	_, ok := s.hits[pos]
	return ok
}

func (s *Ship) HitCount() int { return len(s.hits) }

func (s *Ship) IsSunk() bool { return len(s.hits) == s.length }

func (s *Ship) DamagePercent() float64 {
	return float64(len(s.hits)) / float64(s.length) * 100
}

// ClearHits forgets all damage.
func (s *Ship) ClearHits() { clear(s.hits) }

func (s *Ship) String() string {
	if s.IsSunk() {
		return fmt.Sprintf("%s (%d) - SUNK", s.name, s.length)
	}
	return fmt.Sprintf("%s (%d) - Health: %.0f%%", s.name, s.length, 100-s.DamagePercent())
}

// Info is an immutable view of a ship handed across package boundaries.
type Info struct {
	Name        string      `json:"name"`
	Length      int         `json:"length"`
	Cells       []Coord     `json:"cells"`
	Orientation Orientation `json:"orientation"`
	Hits        []Coord     `json:"hits,omitempty"`
	Sunk        bool        `json:"sunk"`
}

// Info snapshots the ship. Hits are listed in cell order.
func (s *Ship) Info() Info {
	inf := Info{
		Name:        s.name,
		Length:      s.length,
		Cells:       s.Cells(),
		Orientation: s.orientation,
		Sunk:        s.IsSunk(),
	}
	for _, c := range s.cells {
		if s.IsHitAt(c) {
			inf.Hits = append(inf.Hits, c)
		}
	}
	return inf
}
