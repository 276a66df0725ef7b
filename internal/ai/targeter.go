// Package ai implements the computer opponent's targeting engine.
//
// The engine runs a three-phase state machine. In Search it fires
// density-weighted shots into open water. The first hit on a ship switches to
// Hunt, which probes the hit's orthogonal neighbours. Once two hits line up
// the engine moves to Track and extends the run from both ends, flipping to
// the perpendicular axis when the line is exhausted. Sinking the ship returns
// to Search.
//
// Ships on the opponent board never touch, not even diagonally, so cells
// bordering a sunk ship, cells diagonal to a hit and cells beside a known line
// are marked known-empty and skipped by every heuristic.
package ai

import (
	"math/rand"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"battleship/internal/game"
)

// Phase is the targeting state.
type Phase int

const (
	Search Phase = iota
	Hunt
	Track
)

func (p Phase) String() string {
	switch p {
	case Hunt:
		return "hunt"
	case Track:
		return "track"
	}
	return "search"
}

type target struct {
	pos      game.Coord
	priority float64
}

// Targeter is the AI side's TargetingStrategy.
type Targeter struct {
	cfg  game.Config
	size int
	rng  *rand.Rand
	log  zerolog.Logger

	shots      map[game.Coord]struct{}
	knownEmpty map[game.Coord]struct{}
	// lengths of enemy ships not yet sunk
	remaining []int

	hunting      bool
	firstHit     game.Coord
	direction    game.Orientation
	hitPositions []game.Coord
	queue        []target
}

type Option func(*Targeter)

func WithLogger(l zerolog.Logger) Option { return func(t *Targeter) { t.log = l } }

// WithRand fixes the random source, for reproducible games.
func WithRand(r *rand.Rand) Option { return func(t *Targeter) { t.rng = r } }

// New returns a targeter for an opponent laid out according to cfg.
func New(cfg game.Config, opts ...Option) *Targeter {
	t := &Targeter{log: zerolog.Nop()}
	for _, o := range opts {
		o(t)
	}
	if t.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		t.rng = rand.New(rand.NewSource(seed))
	}
	t.Reset(cfg)
	return t
}

// Reset clears all targeting state and adopts cfg.
func (t *Targeter) Reset(cfg game.Config) {
	t.cfg = cfg
	t.size = cfg.GridSize
	t.shots = make(map[game.Coord]struct{})
	t.knownEmpty = make(map[game.Coord]struct{})
	t.remaining = t.remaining[:0]
	for _, s := range cfg.Fleet {
		t.remaining = append(t.remaining, s.Length)
	}
	slices.Sort(t.remaining)
	t.resetHunt()
	t.queue = nil
}

func (t *Targeter) resetHunt() {
	t.hunting = false
	t.firstHit = game.None
	t.direction = game.NoOrientation
	t.hitPositions = nil
}

// Phase reports the current state of the machine.
func (t *Targeter) Phase() Phase {
	switch {
	case !t.hunting:
		return Search
	case t.direction != game.NoOrientation:
		return Track
	}
	return Hunt
}

// State is a copy of the targeting state, for inspection.
type State struct {
	Phase            Phase
	Hunting          bool
	FirstHit         *game.Coord
	Direction        game.Orientation
	HitPositions     []game.Coord
	PotentialTargets []game.Coord
	ShotsTaken       int
}

func (t *Targeter) State() State {
	st := State{
		Phase:        t.Phase(),
		Hunting:      t.hunting,
		Direction:    t.direction,
		HitPositions: slices.Clone(t.hitPositions),
		ShotsTaken:   len(t.shots),
	}
	if t.hunting {
		fh := t.firstHit
		st.FirstHit = &fh
	}
	for _, q := range t.queue {
		st.PotentialTargets = append(st.PotentialTargets, q.pos)
	}
	return st
}

func (t *Targeter) inBounds(c game.Coord) bool {
	return c.Row >= 0 && c.Row < t.size && c.Col >= 0 && c.Col < t.size
}

func (t *Targeter) fired(c game.Coord) bool {
	_, ok := t.shots[c]
	return ok
}

// available is true for cells worth shooting at: on the board, not yet shot
// and not known to be empty.
func (t *Targeter) available(c game.Coord) bool {
	if !t.inBounds(c) || t.fired(c) {
		return false
	}
	_, empty := t.knownEmpty[c]
	return !empty
}

// SelectShot picks the next cell. Whatever a heuristic proposes is checked
// here; an unusable proposal is replaced by a random unfired cell, so the
// engine never repeats a shot.
func (t *Targeter) SelectShot() (game.Coord, bool) {
	pos, via := t.pick()
	if !t.inBounds(pos) || t.fired(pos) {
		if pos != game.None {
			t.log.Warn().Stringer("pos", pos).Str("via", via).Msg("discarding unusable ai proposal")
		}
		pos, via = t.anyUnfired(), "fallback"
	}
	if pos == game.None {
		return game.None, false
	}
	t.log.Debug().
		Stringer("phase", t.Phase()).
		Str("via", via).
		Stringer("pos", pos).
		Int("queued", len(t.queue)).
		Msg("ai shot selected")
	return pos, true
}

func (t *Targeter) pick() (game.Coord, string) {
	if t.hunting {
		if c, ok := t.directionalShot(); ok {
			return c, "track"
		}
	}
	if c, ok := t.popTarget(); ok {
		return c, "queue"
	}
	if c, ok := t.sectorShot(); ok {
		return c, "sector"
	}
	return t.anyUnfired(), "random"
}

// directionalShot extends the current line of hits. It infers the axis from
// the two latest hits when none is set, and flips to the perpendicular axis
// through the first hit when the current one is exhausted.
func (t *Targeter) directionalShot() (game.Coord, bool) {
	if t.direction == game.NoOrientation {
		if len(t.hitPositions) < 2 {
			return game.None, false
		}
		t.setDirection(inferDirection(t.hitPositions))
		if t.direction == game.NoOrientation {
			return game.None, false
		}
	}
	for range 2 {
		if c, ok := t.extend(t.direction); ok {
			return c, true
		}
		t.log.Debug().Stringer("from", t.direction).Msg("line exhausted, flipping axis")
		t.direction = t.direction.Perpendicular()
	}
	t.direction = game.NoOrientation
	return game.None, false
}

// inferDirection reads the axis off the two most recent hits.
func inferDirection(hits []game.Coord) game.Orientation {
	a, b := hits[len(hits)-2], hits[len(hits)-1]
	switch {
	case a.Row == b.Row && a.Col != b.Col:
		return game.Horizontal
	case a.Col == b.Col && a.Row != b.Row:
		return game.Vertical
	}
	return game.NoOrientation
}

// run returns both ends of the contiguous run of current-target hits that
// passes through the first hit along o.
func (t *Targeter) run(o game.Orientation) (lo, hi game.Coord) {
	dr, dc := o.Step()
	lo, hi = t.firstHit, t.firstHit
	for t.isTargetHit(lo.Add(-dr, -dc)) {
		lo = lo.Add(-dr, -dc)
	}
	for t.isTargetHit(hi.Add(dr, dc)) {
		hi = hi.Add(dr, dc)
	}
	return lo, hi
}

func (t *Targeter) isTargetHit(c game.Coord) bool { return slices.Contains(t.hitPositions, c) }

// extend proposes the cell just past one end of the run, preferring the end
// closest to the latest hit.
func (t *Targeter) extend(o game.Orientation) (game.Coord, bool) {
	dr, dc := o.Step()
	lo, hi := t.run(o)
	before, after := lo.Add(-dr, -dc), hi.Add(dr, dc)
	last := t.hitPositions[len(t.hitPositions)-1]
	cands := [2]game.Coord{after, before}
	if last.Manhattan(lo) < last.Manhattan(hi) {
		cands = [2]game.Coord{before, after}
	}
	for _, c := range cands {
		if t.available(c) {
			return c, true
		}
	}
	return game.None, false
}

// popTarget returns the first usable queued candidate, dropping stale ones.
func (t *Targeter) popTarget() (game.Coord, bool) {
	for len(t.queue) > 0 {
		next := t.queue[0]
		t.queue = t.queue[1:]
		if t.available(next.pos) {
			return next.pos, true
		}
	}
	return game.None, false
}

// anyUnfired is the last resort: a uniform pick among cells not yet shot,
// preferring those not known to be empty.
func (t *Targeter) anyUnfired() game.Coord {
	var open, rest []game.Coord
	for r := 0; r < t.size; r++ {
		for c := 0; c < t.size; c++ {
			pos := game.Coord{Row: r, Col: c}
			switch {
			case t.available(pos):
				open = append(open, pos)
			case !t.fired(pos):
				rest = append(rest, pos)
			}
		}
	}
	if len(open) > 0 {
		return open[t.rng.Intn(len(open))]
	}
	if len(rest) > 0 {
		return rest[t.rng.Intn(len(rest))]
	}
	return game.None
}

// OnShotResult updates the state machine with the opponent grid's answer.
func (t *Targeter) OnShotResult(pos game.Coord, out game.ShotOutcome) {
	if !out.Valid() || !t.inBounds(pos) {
		return
	}
	t.shots[pos] = struct{}{}
	t.dropQueued(func(c game.Coord) bool { return c == pos })

	switch out.Outcome {
	case game.OutcomeMiss:
		t.onMiss(pos)
	case game.OutcomeHit:
		t.onHit(pos)
	case game.OutcomeSunk:
		t.onSunk(pos, out.Sunk)
	}
}

func (t *Targeter) onMiss(pos game.Coord) {
	if !t.hunting || t.direction == game.NoOrientation {
		return
	}
	dr, dc := t.direction.Step()
	origin := t.firstHit
	onLine := (dr == 0 && pos.Row == origin.Row) || (dc == 0 && pos.Col == origin.Col)
	if !onLine {
		return
	}
	// everything further out past the miss on this line is dead
	offset := func(c game.Coord) int { return (c.Row - origin.Row) + (c.Col - origin.Col) }
	miss := offset(pos)
	t.dropQueued(func(c game.Coord) bool {
		if (dr == 0 && c.Row != origin.Row) || (dc == 0 && c.Col != origin.Col) {
			return false
		}
		d := offset(c)
		return sign(d) == sign(miss) && abs(d) > abs(miss)
	})
}

func (t *Targeter) onHit(pos game.Coord) {
	if !t.hunting {
		t.hunting = true
		t.firstHit = pos
		t.log.Debug().Stringer("pos", pos).Msg("ship found, hunting")
	}
	if !t.isTargetHit(pos) {
		t.hitPositions = append(t.hitPositions, pos)
	}
	for _, d := range [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}} {
		t.markEmpty(pos.Add(d[0], d[1]))
	}
	if len(t.hitPositions) >= 2 {
		if o := inferDirection(t.hitPositions); o != game.NoOrientation {
			t.setDirection(o)
		}
	}
	for _, n := range pos.Neighbors4() {
		if t.available(n) && !t.queued(n) {
			t.queue = append(t.queue, target{pos: n})
		}
	}
	t.reprioritize()
}

// setDirection fixes the hunting axis. Cells flanking the line cannot hold a
// ship, so they are marked empty.
func (t *Targeter) setDirection(o game.Orientation) {
	t.direction = o
	if o == game.NoOrientation {
		return
	}
	pr, pc := o.Perpendicular().Step()
	for _, h := range t.hitPositions {
		t.markEmpty(h.Add(pr, pc))
		t.markEmpty(h.Add(-pr, -pc))
	}
}

func (t *Targeter) onSunk(pos game.Coord, sunk *game.Info) {
	cells := []game.Coord{pos}
	length := 1
	if sunk != nil {
		cells = sunk.Cells
		length = sunk.Length
	}
	if i := slices.Index(t.remaining, length); i >= 0 {
		t.remaining = slices.Delete(t.remaining, i, i+1)
	}
	for _, c := range cells {
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				t.markEmpty(c.Add(dr, dc))
			}
		}
	}
	t.dropQueued(func(q game.Coord) bool {
		return slices.ContainsFunc(cells, q.Touches)
	})

	var leftover []game.Coord
	for _, h := range t.hitPositions {
		if h != pos && !slices.Contains(cells, h) {
			leftover = append(leftover, h)
		}
	}
	t.log.Debug().Stringer("pos", pos).Int("length", length).Ints("remaining", t.remaining).Msg("ship sunk")
	t.resetHunt()

	// hits that belonged to a different ship restart the hunt on that ship
	for _, h := range leftover {
		t.onHit(h)
	}
}

func (t *Targeter) markEmpty(c game.Coord) {
	if t.inBounds(c) && !t.fired(c) {
		t.knownEmpty[c] = struct{}{}
	}
}

func (t *Targeter) queued(c game.Coord) bool {
	return slices.ContainsFunc(t.queue, func(q target) bool { return q.pos == c })
}

func (t *Targeter) dropQueued(drop func(game.Coord) bool) {
	t.queue = slices.DeleteFunc(t.queue, func(q target) bool { return drop(q.pos) })
}

// reprioritize orders the queue by closeness to the current hits, local
// openness and, once an axis is known, alignment with it.
func (t *Targeter) reprioritize() {
	for i := range t.queue {
		t.queue[i].priority = t.priority(t.queue[i].pos)
	}
	slices.SortStableFunc(t.queue, func(a, b target) int {
		switch {
		case a.priority > b.priority:
			return -1
		case a.priority < b.priority:
			return 1
		}
		return 0
	})
}

func (t *Targeter) priority(c game.Coord) float64 {
	p := 0.0
	for _, h := range t.hitPositions {
		p += 1 / float64(c.Manhattan(h)+1)
	}
	p += 2 * t.openness(c)
	if t.aligned(c) {
		p *= alignBoost
	}
	return p
}

func (t *Targeter) aligned(c game.Coord) bool {
	for _, h := range t.hitPositions {
		if (t.direction == game.Horizontal && h.Row == c.Row) ||
			(t.direction == game.Vertical && h.Col == c.Col) {
			return true
		}
	}
	return false
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
