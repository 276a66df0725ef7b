package app

import (
	"battleship/internal/codec"
	"battleship/internal/game"
)

type Side string

const (
	SideNone   Side = ""
	SidePlayer Side = "player"
	SideAI     Side = "ai"
)

func (s Side) Other() Side {
	switch s {
	case SidePlayer:
		return SideAI
	case SideAI:
		return SidePlayer
	}
	return SideNone
}

type State string

const (
	StateSetup   State = "setup"
	StatePlaying State = "playing"
	StateEnded   State = "ended"
)

// ShotResult answers one shot request. Build it with rejected or resolved.
type ShotResult struct {
	Valid    bool                    `json:"valid"`
	Side     Side                    `json:"side,omitempty"`
	Position game.Coord              `json:"position"`
	Hit      bool                    `json:"hit"`
	Sunk     bool                    `json:"sunk"`
	ShipName string                  `json:"ship_name,omitempty"`
	GameOver bool                    `json:"game_over"`
	Winner   Side                    `json:"winner,omitempty"`
	Message  string                  `json:"message"`
	Proof    *codec.ShotProofPayload `json:"proof,omitempty"`
}

func rejected(pos game.Coord, msg string) ShotResult {
	return ShotResult{Position: pos, Message: msg}
}

func resolved(side Side, pos game.Coord, out game.ShotOutcome) ShotResult {
	r := ShotResult{Valid: true, Side: side, Position: pos, Hit: out.Hit()}
	if out.Sunk != nil {
		r.Sunk = true
		r.ShipName = out.Sunk.Name
	}
	r.Message = shotMessage(side, r)
	return r
}

func shotMessage(side Side, r ShotResult) string {
	switch {
	case side == SidePlayer && r.Sunk:
		return "Hit! You sunk the " + r.ShipName + "!"
	case side == SidePlayer && r.Hit:
		return "Hit!"
	case side == SidePlayer:
		return "Miss!"
	case r.Sunk:
		return "AI Hit! AI sunk your " + r.ShipName + "!"
	case r.Hit:
		return "AI Hit!"
	default:
		return "AI Missed!"
	}
}

func (r *ShotResult) finish(winner Side) {
	r.GameOver = true
	r.Winner = winner
}
