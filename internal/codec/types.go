package codec

import (
	"battleship/internal/game"
	"battleship/internal/merkle"
	"battleship/internal/zk"
)

// Secret is what the committing side keeps to itself until the reveal.
type Secret struct {
	Occupancy []uint8      `json:"occupancy"`
	Tree      *merkle.Tree `json:"tree"`
	SaltHex   string       `json:"salt_hex"`
}

type ShotProofPayload struct {
	Proof  []byte        `json:"proof"`
	Public zk.ShotPublic `json:"public"` // salted root, cell index and the hit bit
}

// Commitment is the public root of a fleet commitment. The salt stays empty
// until the fleet is revealed, except in saved games.
type Commitment struct {
	RootHex string `json:"root"`
	SaltHex string `json:"salt,omitempty"`
}

// Move is one resolved shot in play order.
type Move struct {
	Side string     `json:"side"`
	Pos  game.Coord `json:"pos"`
}

// ShotSets mirrors one grid's shot bookkeeping.
type ShotSets struct {
	Fired  []game.Coord `json:"fired"`
	Hits   []game.Coord `json:"hits"`
	Misses []game.Coord `json:"misses"`
}

type Counters struct {
	Shots  int `json:"shots"`
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// Snapshot is a resumable game in progress.
type Snapshot struct {
	Version     int             `json:"version"`
	GameID      string          `json:"game_id"`
	GridSize    int             `json:"grid_size"`
	Fleet       []game.ShipSpec `json:"fleet"`
	State       string          `json:"state"`
	Turn        string          `json:"turn"`
	PlayerShips []game.Info     `json:"player_ships"`
	AIShips     []game.Info     `json:"ai_ships"`
	Moves       []Move          `json:"moves"`
	PlayerGrid  ShotSets        `json:"player_grid"` // shots the AI fired at the player
	AIGrid      ShotSets        `json:"ai_grid"`     // shots the player fired at the AI
	Counters    Counters        `json:"counters"`
	Elapsed     int64           `json:"elapsed_seconds"`
	FairPlay    *Commitment     `json:"fair_play,omitempty"`
}

// RoundResult is what the persistence side records for a finished game.
type RoundResult struct {
	Outcome         string `json:"outcome"` // win, loss or forfeit
	Shots           int    `json:"shots"`
	Hits            int    `json:"hits"`
	Misses          int    `json:"misses"`
	DurationSeconds int    `json:"duration_seconds"`
	GridSize        int    `json:"grid_size"`
}

const (
	OutcomeWin     = "win"
	OutcomeLoss    = "loss"
	OutcomeForfeit = "forfeit"
)
