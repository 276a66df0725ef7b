package codec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/game"
)

func sample() Snapshot {
	return Snapshot{
		GameID:   "g-1",
		GridSize: 10,
		Fleet:    []game.ShipSpec{{Name: "Patrol Boat", Length: 2}},
		State:    "playing",
		Turn:     "ai",
		PlayerShips: []game.Info{{
			Name: "Patrol Boat", Length: 2,
			Cells:       []game.Coord{{Row: 0, Col: 0}, {Row: 0, Col: 1}},
			Orientation: game.Horizontal,
		}},
		Moves:    []Move{{Side: "player", Pos: game.Coord{Row: 4, Col: 4}}},
		AIGrid:   ShotSets{Fired: []game.Coord{{Row: 4, Col: 4}}, Misses: []game.Coord{{Row: 4, Col: 4}}},
		Counters: Counters{Shots: 1, Misses: 1},
		Elapsed:  12,
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(sample())
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, "g-1", got.GameID)
	assert.Equal(t, game.Horizontal, got.PlayerShips[0].Orientation)
	assert.Equal(t, []Move{{Side: "player", Pos: game.Coord{Row: 4, Col: 4}}}, got.Moves)
	assert.Equal(t, int64(12), got.Elapsed)
}

func TestDecode_Corrupt(t *testing.T) {
	good, err := Encode(sample())
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(good, &env))

	tampered := env
	tampered.State = bytes.Replace(env.State, []byte(`"ai"`), []byte(`"player"`), 1)
	tamperedBytes, err := json.Marshal(tampered)
	require.NoError(t, err)

	future := env
	future.Version = Version + 1
	futureBytes, err := json.Marshal(future)
	require.NoError(t, err)

	badDigest := env
	badDigest.Digest = "nothex"
	badDigestBytes, err := json.Marshal(badDigest)
	require.NoError(t, err)

	cases := map[string][]byte{
		"garbage":    []byte("{not json"),
		"empty":      nil,
		"tampered":   tamperedBytes,
		"version":    futureBytes,
		"bad digest": badDigestBytes,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
