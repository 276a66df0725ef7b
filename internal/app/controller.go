package app

import (
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"battleship/internal/ai"
	"battleship/internal/codec"
	"battleship/internal/game"
	"battleship/internal/merkle"
	"battleship/internal/player"
)

// ErrNoPersistence is returned by Save and Resume when there is no store or
// no current player to save for.
var ErrNoPersistence = errors.New("no persistence or current player")

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option { return func(c *Controller) { c.log = l } }

func WithPersistence(p Persistence) Option { return func(c *Controller) { c.persist = p } }

// WithFairPlay commits every AI fleet and, if f proves, attaches a proof to
// each answer the AI grid gives.
func WithFairPlay(f *FairPlay) Option { return func(c *Controller) { c.fair = f } }

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// Controller runs one human-vs-AI game at a time: setup, then strictly
// alternating shots, then ended. It is not safe for concurrent use.
type Controller struct {
	cfg     game.Config
	log     zerolog.Logger
	rng     *rand.Rand
	persist Persistence
	fair    *FairPlay
	now     func() time.Time

	id       string
	human    *player.Player
	computer *player.Player
	targeter *ai.Targeter
	state    State
	turn     Side
	winner   Side
	moves    []codec.Move
	stats    Stats

	started time.Time
	elapsed time.Duration

	secret *codec.Secret
	commit codec.Commitment

	playerID   int64
	playerName string
}

// New validates cfg and starts the first game in setup.
func New(cfg game.Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{cfg: cfg, log: zerolog.Nop(), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	c.rng = rand.New(rand.NewSource(seed))
	if err := c.NewGame(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) newPlayers(cfg game.Config) (*player.Player, *player.Player, *ai.Targeter, error) {
	t := ai.New(cfg, ai.WithLogger(c.log), ai.WithRand(c.rng))
	human, err := player.New(cfg, nil, c.rng)
	if err != nil {
		return nil, nil, nil, err
	}
	computer, err := player.New(cfg, t, c.rng)
	if err != nil {
		return nil, nil, nil, err
	}
	return human, computer, t, nil
}

// NewGame throws away the current game. The AI places its fleet at once;
// the human starts in setup and moves first.
func (c *Controller) NewGame() error {
	human, computer, t, err := c.newPlayers(c.cfg)
	if err != nil {
		return err
	}
	if !computer.PlaceShipsRandomly() {
		return fmt.Errorf("%w: fleet does not fit a %dx%d grid", game.ErrInvalidConfig, c.cfg.GridSize, c.cfg.GridSize)
	}

	c.human, c.computer, c.targeter = human, computer, t
	c.id = uuid.NewString()
	c.state = StateSetup
	c.turn = SidePlayer
	c.winner = SideNone
	c.moves = nil
	c.started = time.Time{}
	c.elapsed = 0
	c.resetGameCounters()

	c.secret, c.commit = nil, codec.Commitment{}
	if c.fair != nil {
		if err := c.commitFleet(nil); err != nil {
			return err
		}
	}

	c.log.Info().Str("game", c.id).Int("grid", c.cfg.GridSize).Msg("new game")
	return nil
}

func (c *Controller) resetGameCounters() {
	c.stats.TotalShots, c.stats.Hits, c.stats.Misses = 0, 0, 0
	c.stats.AIShots, c.stats.AIHits = 0, 0
}

// commitFleet commits the AI occupancy. A nil salt draws a fresh one.
func (c *Controller) commitFleet(salt *big.Int) error {
	occ := c.computer.Grid().Occupancy()
	var (
		res *CommitResult
		err error
	)
	if salt == nil {
		res, err = Commit(occ)
	} else {
		res, err = commitWithSalt(occ, salt)
	}
	if err != nil {
		return fmt.Errorf("commit ai fleet: %w", err)
	}
	c.secret = &res.Secret
	c.commit = codec.Commitment{RootHex: res.RootHex}
	c.log.Debug().Str("game", c.id).Str("root", res.RootHex).Msg("ai fleet committed")
	return nil
}

// PlacePlayerShip places one ship of the configured fleet. Placing the last
// ship starts the game.
func (c *Controller) PlacePlayerShip(name string, start game.Coord, o game.Orientation) bool {
	if c.state != StateSetup {
		return false
	}
	n, ok := c.cfg.FleetLength(name)
	if !ok || !c.human.PlaceShip(name, n, start, o) {
		return false
	}
	if len(c.human.RemainingShips()) == 0 {
		c.StartGameplay()
	}
	return true
}

// PlacePlayerShipsRandomly fills in the rest of the human fleet and starts the game.
func (c *Controller) PlacePlayerShipsRandomly() bool {
	if c.state != StateSetup {
		return false
	}
	if !c.human.PlaceShipsRandomly() {
		return false
	}
	return c.StartGameplay()
}

// StartGameplay moves setup to playing once both fleets are down.
func (c *Controller) StartGameplay() bool {
	if c.state != StateSetup {
		return false
	}
	if len(c.human.RemainingShips()) > 0 || len(c.computer.RemainingShips()) > 0 {
		return false
	}
	c.state = StatePlaying
	c.turn = SidePlayer
	c.started = c.now()
	c.log.Info().Str("game", c.id).Msg("gameplay started")
	return true
}

// ProcessPlayerShot fires the human's shot at the AI grid. Rejected shots
// change nothing and keep the turn.
func (c *Controller) ProcessPlayerShot(pos game.Coord) ShotResult {
	if c.state != StatePlaying || c.turn != SidePlayer {
		return rejected(pos, "Not your turn")
	}
	target := c.computer.Grid()
	if !target.InBounds(pos) {
		return rejected(pos, "Position out of bounds")
	}
	if target.Fired(pos) {
		return rejected(pos, "Position already targeted")
	}

	out := c.computer.ReceiveShot(pos)
	c.human.RecordShot(pos, out)
	c.moves = append(c.moves, codec.Move{Side: string(SidePlayer), Pos: pos})
	c.stats.TotalShots++
	if out.Hit() {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}

	res := resolved(SidePlayer, pos, out)
	res.Proof = c.proveAnswer(pos, out)

	if c.computer.AllSunk() {
		c.endGame(SidePlayer, codec.OutcomeWin)
		res.finish(SidePlayer)
	} else {
		c.turn = SideAI
	}
	return res
}

func (c *Controller) proveAnswer(pos game.Coord, out game.ShotOutcome) *codec.ShotProofPayload {
	if c.fair == nil || !c.fair.Proving() || c.secret == nil {
		return nil
	}
	sr, err := c.fair.Shoot(*c.secret, c.cfg.GridSize, pos)
	if err != nil {
		c.log.Warn().Err(err).Stringer("pos", pos).Msg("shot proof failed")
		return nil
	}
	if (sr.Bit == 1) != out.Hit() {
		c.log.Error().Stringer("pos", pos).Msg("committed fleet disagrees with the grid")
		return nil
	}
	return &sr.Payload
}

// ProcessAITurn lets the AI shoot at the human grid. A proposal that is off
// the board or already fired is replaced by a random unfired cell.
func (c *Controller) ProcessAITurn() ShotResult {
	if c.state != StatePlaying || c.turn != SideAI {
		return rejected(game.None, "Not AI turn")
	}
	target := c.human.Grid()
	pos, ok := c.computer.NextShot()
	if !ok || !target.InBounds(pos) || target.Fired(pos) {
		c.log.Warn().Stringer("pos", pos).Msg("ai proposal unusable, shooting at random")
		if pos, ok = c.fallbackShot(target); !ok {
			return rejected(game.None, "No target available")
		}
	}

	out := c.human.ReceiveShot(pos)
	c.computer.RecordShot(pos, out)
	c.moves = append(c.moves, codec.Move{Side: string(SideAI), Pos: pos})
	c.stats.AIShots++
	if out.Hit() {
		c.stats.AIHits++
	}

	res := resolved(SideAI, pos, out)
	if c.human.AllSunk() {
		c.endGame(SideAI, codec.OutcomeLoss)
		res.finish(SideAI)
	} else {
		c.turn = SidePlayer
	}
	return res
}

func (c *Controller) fallbackShot(g *game.Grid) (game.Coord, bool) {
	var open []game.Coord
	for r := range g.Size() {
		for col := range g.Size() {
			if p := (game.Coord{Row: r, Col: col}); !g.Fired(p) {
				open = append(open, p)
			}
		}
	}
	if len(open) == 0 {
		return game.None, false
	}
	return open[c.rng.Intn(len(open))], true
}

// EndGame closes the game. SideNone is recorded as a forfeit, which scores
// as an AI win like ForceEndGame.
func (c *Controller) EndGame(winner Side) {
	if c.state == StateEnded {
		return
	}
	switch winner {
	case SidePlayer:
		c.endGame(SidePlayer, codec.OutcomeWin)
	case SideAI:
		c.endGame(SideAI, codec.OutcomeLoss)
	default:
		c.endGame(SideAI, codec.OutcomeForfeit)
	}
}

// ForceEndGame forfeits the current game. It always scores as an AI win.
func (c *Controller) ForceEndGame() bool {
	if c.state == StateEnded {
		return false
	}
	c.endGame(SideAI, codec.OutcomeForfeit)
	return true
}

func (c *Controller) endGame(winner Side, outcome string) {
	c.elapsed = c.CurrentGameDuration()
	c.state = StateEnded
	c.turn = SideNone
	c.winner = winner
	c.stats.GamesPlayed++
	if winner == SidePlayer {
		c.stats.GamesWon++
	}
	if c.secret != nil {
		c.commit.SaltHex = c.secret.SaltHex
	}

	c.log.Info().
		Str("game", c.id).
		Str("winner", string(winner)).
		Str("outcome", outcome).
		Int("shots", c.stats.TotalShots).
		Int("hits", c.stats.Hits).
		Dur("duration", c.elapsed).
		Msg("game over")
	c.saveRound(outcome)
}

func (c *Controller) saveRound(outcome string) {
	if c.persist == nil {
		return
	}
	if c.playerID == 0 {
		c.log.Warn().Str("game", c.id).Msg("no current player, round not recorded")
		return
	}
	r := codec.RoundResult{
		Outcome:         outcome,
		Shots:           c.stats.TotalShots,
		Hits:            c.stats.Hits,
		Misses:          c.stats.Misses,
		DurationSeconds: int(c.elapsed / time.Second),
		GridSize:        c.cfg.GridSize,
	}
	if err := c.persist.SaveRoundResult(c.playerID, r); err != nil {
		c.log.Warn().Err(err).Int64("player", c.playerID).Msg("save round result")
	}
	if err := c.persist.ClearState(c.playerID); err != nil {
		c.log.Warn().Err(err).Int64("player", c.playerID).Msg("clear saved game")
	}
}

// CellState reads the human grid or the AI grid. Ships are reported as is;
// hiding the AI fleet is up to the caller.
func (c *Controller) CellState(isPlayerGrid bool, pos game.Coord) game.CellState {
	if isPlayerGrid {
		return c.human.Grid().CellState(pos)
	}
	return c.computer.Grid().CellState(pos)
}

func (c *Controller) GameID() string { return c.id }
func (c *Controller) Config() game.Config { return c.cfg }
func (c *Controller) GameState() State { return c.state }
func (c *Controller) CurrentTurn() Side { return c.turn }
func (c *Controller) Winner() Side { return c.winner }
func (c *Controller) PlayerID() int64 { return c.playerID }
func (c *Controller) PlayerName() string { return c.playerName }
func (c *Controller) FairPlay() *FairPlay { return c.fair }
func (c *Controller) TargeterState() ai.State { return c.targeter.State() }
func (c *Controller) Moves() []codec.Move { return slices.Clone(c.moves) }

func (c *Controller) PlayerShips() []game.Info { return c.human.PlacedShips() }

func (c *Controller) RemainingPlayerShips() []game.ShipSpec { return c.human.RemainingShips() }

// AIShips lists the sunk AI ships, or the whole fleet once the game is over.
func (c *Controller) AIShips() []game.Info {
	ships := c.computer.PlacedShips()
	if c.state == StateEnded {
		return ships
	}
	return slices.DeleteFunc(ships, func(s game.Info) bool { return !s.Sunk })
}

// Commitment returns the published root of the AI fleet. The salt is set
// only after the game ends.
func (c *Controller) Commitment() (codec.Commitment, bool) {
	return c.commit, c.secret != nil
}

// Reveal hands out the AI occupancy and salt once the game is over so the
// commitment can be checked with merkle.VerifyReveal.
func (c *Controller) Reveal() ([]uint8, codec.Commitment, bool) {
	if c.state != StateEnded || c.secret == nil {
		return nil, codec.Commitment{}, false
	}
	return slices.Clone(c.secret.Occupancy), c.commit, true
}

// CurrentGameDuration counts only time spent playing, including play before a resume.
func (c *Controller) CurrentGameDuration() time.Duration {
	if c.state == StatePlaying {
		return c.elapsed + c.now().Sub(c.started)
	}
	return c.elapsed
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	s := c.stats
	s.Accuracy = accuracy(s.Hits, s.TotalShots)
	s.DurationSeconds = int(c.CurrentGameDuration() / time.Second)
	return s
}

// SetCurrentPlayer names who is playing and seeds the games counters with
// their lifetime totals.
func (c *Controller) SetCurrentPlayer(id int64, name string, t Totals) {
	c.playerID = id
	c.playerName = name
	c.stats.GamesPlayed = t.GamesPlayed
	c.stats.GamesWon = t.GamesWon
}

// UpdateSettings switches the grid size. A change restarts the game.
func (c *Controller) UpdateSettings(gridSize int) error {
	if gridSize == c.cfg.GridSize {
		return nil
	}
	cfg := c.cfg.WithGridSize(gridSize)
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return c.NewGame()
}

// Save stores the game in progress for the current player. An ended game
// clears the slot instead.
func (c *Controller) Save() error {
	if c.persist == nil || c.playerID == 0 {
		return ErrNoPersistence
	}
	if c.state == StateEnded {
		return c.persist.ClearState(c.playerID)
	}
	data, err := codec.Encode(c.snapshot())
	if err != nil {
		return err
	}
	if err := c.persist.SaveState(c.playerID, data); err != nil {
		return err
	}
	c.log.Info().Str("game", c.id).Int("moves", len(c.moves)).Msg("game saved")
	return nil
}

func (c *Controller) snapshot() codec.Snapshot {
	s := codec.Snapshot{
		GameID:      c.id,
		GridSize:    c.cfg.GridSize,
		Fleet:       slices.Clone(c.cfg.Fleet),
		State:       string(c.state),
		Turn:        string(c.turn),
		PlayerShips: c.human.PlacedShips(),
		AIShips:     c.computer.PlacedShips(),
		Moves:       slices.Clone(c.moves),
		PlayerGrid:  shotSets(c.human.Grid()),
		AIGrid:      shotSets(c.computer.Grid()),
		Counters:    codec.Counters{Shots: c.stats.TotalShots, Hits: c.stats.Hits, Misses: c.stats.Misses},
		Elapsed:     int64(c.CurrentGameDuration() / time.Second),
	}
	if c.secret != nil {
		s.FairPlay = &codec.Commitment{RootHex: c.commit.RootHex, SaltHex: c.secret.SaltHex}
	}
	return s
}

func shotSets(g *game.Grid) codec.ShotSets {
	return codec.ShotSets{
		Fired:  game.SortedCoords(g.ShotsFired()),
		Hits:   game.SortedCoords(g.Hits()),
		Misses: game.SortedCoords(g.Misses()),
	}
}

// Resume loads the current player's saved game. Nothing saved, or a save
// that fails any check, gives a fresh game and false.
func (c *Controller) Resume() (bool, error) {
	if c.persist == nil || c.playerID == 0 {
		return false, ErrNoPersistence
	}
	data, err := c.persist.LoadState(c.playerID)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, c.NewGame()
	}

	snap, err := codec.Decode(data)
	if err == nil {
		err = c.restore(snap)
	}
	if err != nil {
		c.log.Warn().Err(err).Int64("player", c.playerID).Msg("discarding saved game")
		if cerr := c.persist.ClearState(c.playerID); cerr != nil {
			c.log.Warn().Err(cerr).Int64("player", c.playerID).Msg("clear saved game")
		}
		return false, c.NewGame()
	}
	c.log.Info().Str("game", c.id).Int("moves", len(c.moves)).Msg("game resumed")
	return true, nil
}

// restore rebuilds a game by placing both fleets and replaying the move log.
// Nothing is installed unless every check passes.
func (c *Controller) restore(s codec.Snapshot) error {
	cfg := c.cfg
	cfg.GridSize = s.GridSize
	cfg.Fleet = slices.Clone(s.Fleet)
	if err := cfg.Validate(); err != nil {
		return err
	}
	state := State(s.State)
	if state != StateSetup && state != StatePlaying {
		return fmt.Errorf("cannot resume a game in state %q", s.State)
	}

	human, computer, t, err := c.newPlayers(cfg)
	if err != nil {
		return err
	}
	if err := human.PlaceFleet(s.PlayerShips); err != nil {
		return fmt.Errorf("player fleet: %w", err)
	}
	if err := computer.PlaceFleet(s.AIShips); err != nil {
		return fmt.Errorf("ai fleet: %w", err)
	}
	if len(computer.RemainingShips()) > 0 {
		return errors.New("ai fleet incomplete")
	}
	if state == StatePlaying && len(human.RemainingShips()) > 0 {
		return errors.New("player fleet incomplete")
	}
	if state == StateSetup && len(s.Moves) > 0 {
		return errors.New("moves recorded during setup")
	}

	turn := SidePlayer
	var counters codec.Counters
	var aiShots, aiHits int
	for i, m := range s.Moves {
		if Side(m.Side) != turn {
			return fmt.Errorf("move %d: expected %s to shoot", i, turn)
		}
		var out game.ShotOutcome
		if turn == SidePlayer {
			out = computer.ReceiveShot(m.Pos)
			human.RecordShot(m.Pos, out)
			counters.Shots++
			if out.Hit() {
				counters.Hits++
			} else {
				counters.Misses++
			}
		} else {
			out = human.ReceiveShot(m.Pos)
			computer.RecordShot(m.Pos, out)
			aiShots++
			if out.Hit() {
				aiHits++
			}
		}
		if !out.Valid() {
			return fmt.Errorf("move %d: invalid shot at %v", i, m.Pos)
		}
		if human.AllSunk() || computer.AllSunk() {
			return fmt.Errorf("move %d ends the game", i)
		}
		turn = turn.Other()
	}
	if Side(s.Turn) != turn {
		return fmt.Errorf("saved turn %q does not follow the move log", s.Turn)
	}
	if counters != s.Counters {
		return errors.New("counters do not match the move log")
	}
	if !sameShots(shotSets(human.Grid()), s.PlayerGrid) || !sameShots(shotSets(computer.Grid()), s.AIGrid) {
		return errors.New("shot sets do not match the move log")
	}

	var salt *big.Int
	if s.FairPlay != nil {
		if salt, err = merkle.ParseHex(s.FairPlay.SaltHex); err != nil {
			return fmt.Errorf("fair play salt: %w", err)
		}
		ok, err := merkle.VerifyReveal(computer.Grid().Occupancy(), s.FairPlay.SaltHex, s.FairPlay.RootHex)
		if err != nil {
			return fmt.Errorf("fair play root: %w", err)
		}
		if !ok {
			return errors.New("ai fleet does not match its commitment")
		}
	}

	c.cfg = cfg
	c.human, c.computer, c.targeter = human, computer, t
	c.id = s.GameID
	c.state = state
	c.turn = turn
	c.winner = SideNone
	c.moves = slices.Clone(s.Moves)
	c.resetGameCounters()
	c.stats.TotalShots, c.stats.Hits, c.stats.Misses = counters.Shots, counters.Hits, counters.Misses
	c.stats.AIShots, c.stats.AIHits = aiShots, aiHits
	c.elapsed = time.Duration(s.Elapsed) * time.Second
	c.started = c.now()

	c.secret, c.commit = nil, codec.Commitment{}
	if c.fair != nil {
		// a save without a commitment gets a fresh one
		if err := c.commitFleet(salt); err != nil {
			return err
		}
	}
	return nil
}

func sameShots(a, b codec.ShotSets) bool {
	return slices.Equal(a.Fired, b.Fired) && slices.Equal(a.Hits, b.Hits) && slices.Equal(a.Misses, b.Misses)
}
