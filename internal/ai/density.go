package ai

import (
	"battleship/internal/game"
)

const (
	densityRadius = 2
	// fitBoost favours cells through which the largest unsunk ship still fits.
	fitBoost   = 1.5
	alignBoost = 1.5
)

// sectorSize is 3 on the small board and 5 on anything larger.
func sectorSize(grid int) int {
	if grid > 10 {
		return 5
	}
	return 3
}

type sector struct {
	cells  []game.Coord
	weight float64
}

// sectorShot splits the board into square sectors, weights each by the mean
// density of its candidate cells, draws a sector proportionally to weight
// and then a cell uniformly inside it.
func (t *Targeter) sectorShot() (game.Coord, bool) {
	sectors := t.sectors()
	total := 0.0
	for _, s := range sectors {
		total += s.weight
	}
	if total <= 0 {
		return game.None, false
	}
	r := t.rng.Float64() * total
	acc := 0.0
	for _, s := range sectors {
		acc += s.weight
		if r < acc {
			return s.cells[t.rng.Intn(len(s.cells))], true
		}
	}
	last := sectors[len(sectors)-1]
	return last.cells[t.rng.Intn(len(last.cells))], true
}

func (t *Targeter) sectors() []sector {
	step := sectorSize(t.size)
	smallest, largest := t.shipBounds()
	var out []sector
	for br := 0; br < t.size; br += step {
		for bc := 0; bc < t.size; bc += step {
			var s sector
			sum := 0.0
			for r := br; r < min(br+step, t.size); r++ {
				for c := bc; c < min(bc+step, t.size); c++ {
					pos := game.Coord{Row: r, Col: c}
					if !t.available(pos) || !t.fits(pos, smallest) {
						continue
					}
					s.cells = append(s.cells, pos)
					sum += t.density(pos, largest)
				}
			}
			if len(s.cells) > 0 {
				s.weight = sum / float64(len(s.cells))
				out = append(out, s)
			}
		}
	}
	return out
}

// shipBounds returns the shortest and longest unsunk enemy ship.
func (t *Targeter) shipBounds() (int, int) {
	if len(t.remaining) == 0 {
		return 1, 1
	}
	return t.remaining[0], t.remaining[len(t.remaining)-1]
}

// openness is the share of on-board cells within densityRadius of c that are
// still worth shooting at.
func (t *Targeter) openness(c game.Coord) float64 {
	valid, open := 0, 0
	for dr := -densityRadius; dr <= densityRadius; dr++ {
		for dc := -densityRadius; dc <= densityRadius; dc++ {
			n := c.Add(dr, dc)
			if !t.inBounds(n) {
				continue
			}
			valid++
			if t.available(n) {
				open++
			}
		}
	}
	if valid == 0 {
		return 0
	}
	return float64(open) / float64(valid)
}

// density is openness, boosted when a ship of length largest still fits through c.
func (t *Targeter) density(c game.Coord, largest int) float64 {
	d := t.openness(c)
	if t.fits(c, largest) {
		d *= fitBoost
	}
	return d
}

// fits reports whether an n-long ship could lie across c on available cells.
func (t *Targeter) fits(c game.Coord, n int) bool {
	for _, o := range [2]game.Orientation{game.Horizontal, game.Vertical} {
		if 1+t.reach(c, o, 1)+t.reach(c, o, -1) >= n {
			return true
		}
	}
	return false
}

// reach counts available cells from c (exclusive) going along o in direction dir.
func (t *Targeter) reach(c game.Coord, o game.Orientation, dir int) int {
	dr, dc := o.Step()
	n := 0
	for cur := c.Add(dr*dir, dc*dir); t.available(cur); cur = cur.Add(dr*dir, dc*dir) {
		n++
	}
	return n
}
