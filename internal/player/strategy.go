package player

import "battleship/internal/game"

// TargetingStrategy picks where a side fires next and learns from the answer.
type TargetingStrategy interface {
	// SelectShot returns the next cell to fire at; ok is false when the
	// strategy cannot choose on its own (a human side) or nothing is left.
	SelectShot() (pos game.Coord, ok bool)
	// OnShotResult feeds back the opponent grid's answer for pos.
	OnShotResult(pos game.Coord, out game.ShotOutcome)
	// Reset forgets all targeting state for a new round.
	Reset(cfg game.Config)
}

// Manual is the human side's strategy: shots come from outside.
type Manual struct{}

func (Manual) SelectShot() (game.Coord, bool) { return game.None, false }
func (Manual) OnShotResult(game.Coord, game.ShotOutcome) {}
func (Manual) Reset(game.Config) {}
