package app

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"battleship/internal/ai"
	"battleship/internal/game"
	"battleship/internal/player"
)

// SimReport compares the targeting engine with blind random search over the
// same number of randomly placed fleets.
type SimReport struct {
	Games            int     `json:"games"`
	AIAvgShots       float64 `json:"ai_avg_shots"`
	AIMinShots       int     `json:"ai_min_shots"`
	AIMaxShots       int     `json:"ai_max_shots"`
	BaselineAvgShots float64 `json:"baseline_avg_shots"`
	Repeats          int     `json:"repeats"` // repeated AI shots, must stay 0
}

// Simulate plays games solo rounds for each strategy: shoot at a random
// fleet until it sinks.
func Simulate(cfg game.Config, games int, log zerolog.Logger) (SimReport, error) {
	if err := cfg.Validate(); err != nil {
		return SimReport{}, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	rep := SimReport{Games: games}
	var aiTotal, baseTotal int
	for i := range games {
		shots, repeats, err := playOut(cfg, rng, ai.New(cfg, ai.WithRand(rng), ai.WithLogger(log)))
		if err != nil {
			return rep, fmt.Errorf("game %d: %w", i, err)
		}
		aiTotal += shots
		rep.Repeats += repeats
		if i == 0 || shots < rep.AIMinShots {
			rep.AIMinShots = shots
		}
		rep.AIMaxShots = max(rep.AIMaxShots, shots)

		shots, _, err = playOut(cfg, rng, newRandomSearch(cfg, rng))
		if err != nil {
			return rep, fmt.Errorf("baseline game %d: %w", i, err)
		}
		baseTotal += shots
		log.Debug().Int("game", i).Int("baseline", shots).Msg("simulated")
	}
	if games > 0 {
		rep.AIAvgShots = float64(aiTotal) / float64(games)
		rep.BaselineAvgShots = float64(baseTotal) / float64(games)
	}
	return rep, nil
}

func playOut(cfg game.Config, rng *rand.Rand, s player.TargetingStrategy) (shots, repeats int, err error) {
	defender, err := player.New(cfg, nil, rng)
	if err != nil {
		return 0, 0, err
	}
	if !defender.PlaceShipsRandomly() {
		return 0, 0, fmt.Errorf("fleet does not fit")
	}

	limit := 2 * cfg.GridSize * cfg.GridSize
	seen := make(map[game.Coord]bool, limit)
	for !defender.AllSunk() {
		if shots >= limit {
			return shots, repeats, fmt.Errorf("no win after %d shots", shots)
		}
		pos, ok := s.SelectShot()
		if !ok {
			return shots, repeats, fmt.Errorf("strategy gave up after %d shots", shots)
		}
		if seen[pos] {
			repeats++
		}
		seen[pos] = true
		s.OnShotResult(pos, defender.ReceiveShot(pos))
		shots++
	}
	return shots, repeats, nil
}

// randomSearch shoots every cell once in shuffled order.
type randomSearch struct {
	rng   *rand.Rand
	cells []game.Coord
}

func newRandomSearch(cfg game.Config, rng *rand.Rand) *randomSearch {
	s := &randomSearch{rng: rng}
	s.Reset(cfg)
	return s
}

func (s *randomSearch) Reset(cfg game.Config) {
	s.cells = s.cells[:0]
	for r := range cfg.GridSize {
		for c := range cfg.GridSize {
			s.cells = append(s.cells, game.Coord{Row: r, Col: c})
		}
	}
	s.rng.Shuffle(len(s.cells), func(i, j int) { s.cells[i], s.cells[j] = s.cells[j], s.cells[i] })
}

func (s *randomSearch) SelectShot() (game.Coord, bool) {
	if len(s.cells) == 0 {
		return game.None, false
	}
	pos := s.cells[len(s.cells)-1]
	s.cells = s.cells[:len(s.cells)-1]
	return pos, true
}

func (s *randomSearch) OnShotResult(game.Coord, game.ShotOutcome) {}
