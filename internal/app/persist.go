package app

import "battleship/internal/codec"

// Persistence receives finished rounds and holds one resumable game per
// player. LoadState returns nil data when nothing is saved.
type Persistence interface {
	SaveRoundResult(playerID int64, r codec.RoundResult) error
	SaveState(playerID int64, data []byte) error
	LoadState(playerID int64) ([]byte, error)
	ClearState(playerID int64) error
}
