package game

import "fmt"

// Coord is one (row, col) cell.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// None is returned when no cell is available.
var None = Coord{Row: -1, Col: -1}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

// Add offsets c by dr rows and dc columns.
func (c Coord) Add(dr, dc int) Coord { return Coord{Row: c.Row + dr, Col: c.Col + dc} }

// Neighbors4 returns the orthogonal neighbours of c in N, S, W, E order.
// Bounds are not checked.
func (c Coord) Neighbors4() [4]Coord {
	return [4]Coord{c.Add(-1, 0), c.Add(1, 0), c.Add(0, -1), c.Add(0, 1)}
}

// Touches reports whether c and o are equal or 8-adjacent.
func (c Coord) Touches(o Coord) bool {
	return abs(c.Row-o.Row) <= 1 && abs(c.Col-o.Col) <= 1
}

// Manhattan distance between two cells.
func (c Coord) Manhattan(o Coord) int { return abs(c.Row-o.Row) + abs(c.Col-o.Col) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Orientation of a ship or a line of hits.
type Orientation int

const (
	NoOrientation Orientation = iota
	Horizontal
	Vertical
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	}
	return "none"
}

// Perpendicular flips horizontal and vertical; NoOrientation stays as is.
func (o Orientation) Perpendicular() Orientation {
	switch o {
	case Horizontal:
		return Vertical
	case Vertical:
		return Horizontal
	}
	return NoOrientation
}

// Step is the unit (dr, dc) moving forward along o.
func (o Orientation) Step() (int, int) {
	if o == Vertical {
		return 1, 0
	}
	return 0, 1
}

// ParseOrientation accepts "horizontal"/"h" and "vertical"/"v".
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "horizontal", "h", "H":
		return Horizontal, nil
	case "vertical", "v", "V":
		return Vertical, nil
	}
	return NoOrientation, fmt.Errorf("unknown orientation %q", s)
}

func (o Orientation) MarshalText() ([]byte, error) {
	if o == NoOrientation {
		return []byte(""), nil
	}
	return []byte(o.String()), nil
}

func (o *Orientation) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*o = NoOrientation
		return nil
	}
	v, err := ParseOrientation(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Line returns the n cells starting at start and running along o.
func Line(start Coord, n int, o Orientation) []Coord {
	dr, dc := o.Step()
	out := make([]Coord, n)
	for i := 0; i < n; i++ {
		out[i] = start.Add(dr*i, dc*i)
	}
	return out
}
