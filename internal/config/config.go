package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"battleship/internal/game"
)

type Config struct {
	Game     Game     `yaml:"game"`
	Store    Store    `yaml:"store"`
	FairPlay FairPlay `yaml:"fairplay"`
	Server   Server   `yaml:"server"`
	Player   Player   `yaml:"player"`
	Log      Log      `yaml:"log"`
}

type Game struct {
	GridSize int             `yaml:"grid_size"`
	Seed     int64           `yaml:"seed"`
	Fleet    []game.ShipSpec `yaml:"fleet"`
}

type Store struct {
	Path string `yaml:"path"` // empty disables persistence
}

type FairPlay struct {
	Enabled bool   `yaml:"enabled"`
	Proofs  bool   `yaml:"proofs"` // Groth16 proof per answer; needs KeysDir
	KeysDir string `yaml:"keys_dir"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Player struct {
	Name string `yaml:"name"`
}

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func Default() Config {
	def := game.DefaultConfig()
	return Config{
		Game:     Game{GridSize: def.GridSize, Fleet: def.Fleet},
		Store:    Store{Path: "battleship.db"},
		FairPlay: FairPlay{KeysDir: "./keys"},
		Server:   Server{Addr: ":8080"},
		Player:   Player{Name: "player"},
		Log:      Log{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an
// error; unknown keys are.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if len(cfg.Game.Fleet) == 0 {
		cfg.Game.Fleet = game.DefaultFleet()
	}
	if _, err := cfg.GameConfig(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// GameConfig is the validated game section.
func (c Config) GameConfig() (game.Config, error) {
	gc := game.Config{
		GridSize: c.Game.GridSize,
		Fleet:    slices.Clone(c.Game.Fleet),
		Seed:     c.Game.Seed,
	}
	return gc, gc.Validate()
}

// ApplyFlags copies every flag the user actually set onto c. Flags are
// matched by name; unknown names are ignored.
func (c *Config) ApplyFlags(set *flag.FlagSet) {
	set.Visit(func(f *flag.Flag) {
		g, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		v := g.Get()
		switch f.Name {
		case "grid":
			c.Game.GridSize = v.(int)
		case "seed":
			c.Game.Seed = v.(int64)
		case "db":
			c.Store.Path = v.(string)
		case "fairplay":
			c.FairPlay.Enabled = v.(bool)
		case "proofs":
			c.FairPlay.Proofs = v.(bool)
		case "keys":
			c.FairPlay.KeysDir = v.(string)
		case "addr":
			c.Server.Addr = v.(string)
		case "player":
			c.Player.Name = v.(string)
		case "log-level":
			c.Log.Level = v.(string)
		case "pretty":
			c.Log.Pretty = v.(bool)
		}
	})
}
