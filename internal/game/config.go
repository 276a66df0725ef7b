package game

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidConfig = errors.New("invalid game config")

// GridSizes lists the supported board dimensions.
var GridSizes = []int{10, 15}

// ShipSpec names a ship class and its length.
type ShipSpec struct {
	Name   string `json:"name" yaml:"name"`
	Length int    `json:"length" yaml:"length"`
}

// Config is passed explicitly to everything that needs board dimensions or the fleet.
type Config struct {
	GridSize int        `json:"grid_size" yaml:"grid_size"`
	Fleet    []ShipSpec `json:"fleet" yaml:"fleet"`
	// Seed drives all randomness; 0 picks a time-based seed.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultFleet is the classic five-ship fleet, 17 cells in total.
func DefaultFleet() []ShipSpec {
	return []ShipSpec{
		{Name: "Aircraft Carrier", Length: 5},
		{Name: "Battleship", Length: 4},
		{Name: "Submarine", Length: 3},
		{Name: "Destroyer", Length: 3},
		{Name: "Patrol Boat", Length: 2},
	}
}

func DefaultConfig() Config {
	return Config{GridSize: 10, Fleet: DefaultFleet()}
}

// Validate checks grid size, unique non-empty names and positive lengths.
func (c Config) Validate() error {
	if !slices.Contains(GridSizes, c.GridSize) {
		return fmt.Errorf("%w: grid size %d not in %v", ErrInvalidConfig, c.GridSize, GridSizes)
	}
	if len(c.Fleet) == 0 {
		return fmt.Errorf("%w: empty fleet", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Fleet))
	for _, s := range c.Fleet {
		if s.Name == "" {
			return fmt.Errorf("%w: ship without a name", ErrInvalidConfig)
		}
		if s.Length <= 0 || s.Length > c.GridSize {
			return fmt.Errorf("%w: %s has length %d", ErrInvalidConfig, s.Name, s.Length)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate ship %q", ErrInvalidConfig, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// FleetLength returns the length of the named ship class.
func (c Config) FleetLength(name string) (int, bool) {
	for _, s := range c.Fleet {
		if s.Name == name {
			return s.Length, true
		}
	}
	return 0, false
}

// TotalShipCells is the number of cells the whole fleet covers.
func (c Config) TotalShipCells() int {
	n := 0
	for _, s := range c.Fleet {
		n += s.Length
	}
	return n
}

// WithGridSize returns a copy with a different board dimension.
func (c Config) WithGridSize(n int) Config {
	c.Fleet = slices.Clone(c.Fleet)
	c.GridSize = n
	return c
}
