package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"battleship/internal/app"
	"battleship/internal/codec"
	"battleship/internal/config"
	"battleship/internal/game"
	"battleship/internal/logging"
	"battleship/internal/merkle"
	"battleship/internal/server"
	"battleship/internal/store"
	"battleship/internal/zk"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "play":
		cmdPlay()
	case "serve":
		cmdServe()
	case "simulate":
		cmdSimulate()
	case "stats":
		cmdStats()
	case "keys":
		cmdKeys()
	case "verify":
		cmdVerify()
	default:
		usage()
	}
}

func usage() {
	fmt.Println(`Battleship CLI

Commands:
  play     [--config battleship.yaml] [--player NAME] [--grid 10|15] [--resume] [--proofs-out DIR]
  serve    [--config battleship.yaml] [--addr :8080]
  simulate [--grid 10|15] [--seed N] -n GAMES
  stats    --player NAME [--period all|week|month|year] [--db battleship.db]
  keys     --dir ./keys
  verify   --vk ./keys/shot.vk --root ROOT_HEX --proof proof.json [--row R --col C --grid N]

Every game command also takes --seed, --db, --fairplay, --proofs, --keys,
--log-level and --pretty. Flags override the config file.`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// gameFlags declares the flags config.ApplyFlags understands.
func gameFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath := fs.String("config", "battleship.yaml", "config file, missing is fine")
	fs.Int("grid", 10, "grid size (10 or 15)")
	fs.Int64("seed", 0, "random seed, 0 for time based")
	fs.String("db", "battleship.db", "sqlite database, empty disables persistence")
	fs.Bool("fairplay", false, "commit to the AI fleet before play")
	fs.Bool("proofs", false, "prove every answer the AI grid gives")
	fs.String("keys", "./keys", "keys directory")
	fs.String("addr", ":8080", "listen address")
	fs.String("player", "player", "player name")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.Bool("pretty", false, "console logs instead of JSON")
	return fs, cfgPath
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) { set = set || f.Name == name })
	return set
}

// env is everything a game command needs once flags are parsed.
type env struct {
	cfg   config.Config
	log   zerolog.Logger
	store *store.Store
	ctl   *app.Controller
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

func setup(fs *flag.FlagSet, cfgPath string) (*env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyFlags(fs)
	gc, err := cfg.GameConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return nil, err
	}
	logging.RouteGnark(log)

	e := &env{cfg: cfg, log: log}
	opts := []app.Option{app.WithLogger(log)}
	if cfg.Store.Path != "" {
		if e.store, err = store.New(cfg.Store.Path); err != nil {
			return nil, err
		}
		opts = append(opts, app.WithPersistence(e.store))
	}
	if cfg.FairPlay.Enabled || cfg.FairPlay.Proofs {
		keysDir := ""
		if cfg.FairPlay.Proofs {
			keysDir = cfg.FairPlay.KeysDir
		}
		fair, err := app.NewFairPlay(keysDir)
		if err != nil {
			e.Close()
			return nil, err
		}
		opts = append(opts, app.WithFairPlay(fair))
	}
	if e.ctl, err = app.New(gc, opts...); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.login(flagSet(fs, "grid")); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// login loads the configured player. An explicit --grid is remembered as the
// player's setting; otherwise the saved setting wins over the config file.
func (e *env) login(gridFlag bool) error {
	if e.store == nil || e.cfg.Player.Name == "" {
		return nil
	}
	p, err := e.store.FindOrCreatePlayer(e.cfg.Player.Name)
	if err != nil {
		return err
	}
	e.ctl.SetCurrentPlayer(p.ID, p.Name, app.Totals{GamesPlayed: p.GamesPlayed, GamesWon: p.GamesWon})

	if gridFlag {
		return e.store.SaveSettings(p.ID, store.Settings{GridSize: e.ctl.Config().GridSize})
	}
	st, err := e.store.LoadSettings(p.ID)
	if err != nil {
		return err
	}
	if err := e.ctl.UpdateSettings(st.GridSize); err != nil {
		e.log.Warn().Err(err).Int("grid", st.GridSize).Msg("ignoring saved grid size")
	}
	e.log.Info().Str("player", p.Name).Int("games", p.GamesPlayed).Msg("logged in")
	return nil
}

func cmdPlay() {
	fs, cfgPath := gameFlags("play")
	resume := fs.Bool("resume", false, "continue the saved game")
	proofsOut := fs.String("proofs-out", "", "write every shot proof to this directory")
	_ = fs.Parse(os.Args[2:])

	e, err := setup(fs, *cfgPath)
	if err != nil {
		fatal(err)
	}
	defer e.Close()

	if *resume {
		ok, err := e.ctl.Resume()
		if err != nil {
			fatal(err)
		}
		if !ok {
			fmt.Println("no usable saved game, starting fresh")
		}
	}
	if *proofsOut != "" {
		if err := os.MkdirAll(*proofsOut, 0o755); err != nil {
			fatal(err)
		}
	}
	if err := play(e.ctl, os.Stdin, os.Stdout, *proofsOut); err != nil {
		fatal(err)
	}
}

func cmdServe() {
	fs, cfgPath := gameFlags("serve")
	_ = fs.Parse(os.Args[2:])

	e, err := setup(fs, *cfgPath)
	if err != nil {
		fatal(err)
	}
	defer e.Close()

	srv := &http.Server{
		Addr:              e.cfg.Server.Addr,
		Handler:           server.New(e.ctl, e.log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	e.log.Info().Str("addr", srv.Addr).Msg("serving")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.log.Fatal().Err(err).Msg("server stopped")
	}
}

func cmdSimulate() {
	fs, cfgPath := gameFlags("simulate")
	n := fs.Int("n", 100, "games per strategy")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal(err)
	}
	cfg.ApplyFlags(fs)
	gc, err := cfg.GameConfig()
	if err != nil {
		fatal(err)
	}
	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		fatal(err)
	}

	rep, err := app.Simulate(gc, *n, log)
	if err != nil {
		fatal(err)
	}
	if err := writeJSON(os.Stdout, rep); err != nil {
		fatal(err)
	}
	if rep.Repeats > 0 {
		fatal(fmt.Errorf("targeting repeated %d shots", rep.Repeats))
	}
}

func cmdStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "battleship.db", "sqlite database")
	name := fs.String("player", "", "player name")
	period := fs.String("period", "all", "leaderboard window: all, week, month or year")
	limit := fs.Int("limit", 10, "leaderboard and history length")
	_ = fs.Parse(os.Args[2:])

	st, err := store.New(*dbPath)
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	out := struct {
		Player      *store.Player            `json:"player,omitempty"`
		Statistics  *store.PlayerStatistics  `json:"statistics,omitempty"`
		History     []store.GameRecord       `json:"history,omitempty"`
		Leaderboard []store.LeaderboardEntry `json:"leaderboard"`
	}{}

	if *name != "" {
		p, err := st.FindPlayerByName(*name)
		if err != nil {
			fatal(err)
		}
		if p == nil {
			fatal(fmt.Errorf("%w: %s", store.ErrPlayerNotFound, *name))
		}
		ps, err := st.PlayerStatistics(p.ID)
		if err != nil {
			fatal(err)
		}
		hist, err := st.GameHistory(p.ID, *limit)
		if err != nil {
			fatal(err)
		}
		out.Player, out.Statistics, out.History = p, &ps, hist
	}
	if out.Leaderboard, err = st.Leaderboard(*limit, *period); err != nil {
		fatal(err)
	}
	if err := writeJSON(os.Stdout, out); err != nil {
		fatal(err)
	}
}

func cmdKeys() {
	fs := flag.NewFlagSet("keys", flag.ExitOnError)
	dir := fs.String("dir", "./keys", "keys directory")
	_ = fs.Parse(os.Args[2:])

	keys, err := zk.EnsureShotKeys(*dir)
	if err != nil {
		fatal(err)
	}
	fmt.Println("✓ verifying key", keys.VKPath())
}

func cmdVerify() {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	vkPath := fs.String("vk", "./keys/shot.vk", "verifying key file")
	rootHex := fs.String("root", "", "salted root, 0x prefixed")
	proofPath := fs.String("proof", "proof.json", "proof payload json")
	grid := fs.Int("grid", 10, "grid size the proof was made on")
	row := fs.Int("row", -1, "expected row")
	col := fs.Int("col", -1, "expected col")
	_ = fs.Parse(os.Args[2:])

	if *rootHex == "" {
		fatal(errors.New("--root required"))
	}
	root, err := merkle.ParseHex(*rootHex)
	if err != nil {
		fatal(err)
	}

	var payload codec.ShotProofPayload
	if err := loadJSON(*proofPath, &payload); err != nil {
		fatal(err)
	}
	if *row >= 0 || *col >= 0 {
		if *row < 0 || *row >= *grid || *col < 0 || *col >= *grid {
			fatal(errors.New("row/col out of range"))
		}
		if want := *row*(*grid) + *col; payload.Public.Index != want {
			fatal(fmt.Errorf("proof is for cell %d but expected %d", payload.Public.Index, want))
		}
	}

	f, err := os.Open(*vkPath)
	if err != nil {
		fatal(err)
	}
	vk, err := zk.ReadVK(f)
	f.Close()
	if err != nil {
		fatal(err)
	}

	res, err := app.VerifyWithRoot(vk, root, payload)
	if err != nil {
		fatal(err)
	}
	if !res.Valid {
		fatal(errors.New("invalid proof"))
	}
	fmt.Println(map[uint8]string{0: "MISS", 1: "HIT"}[res.Hit], game.Coord{Row: res.Index / *grid, Col: res.Index % *grid})
}

func writeJSON(f *os.File, v any) error {
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func saveJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeJSON(f, v)
}

func loadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
