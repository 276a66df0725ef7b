package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"battleship/internal/merkle"
)

// Version tags the snapshot layout. Anything else is refused.
const Version = 1

var ErrCorrupt = errors.New("corrupt snapshot")

type envelope struct {
	Version int             `json:"version"`
	Digest  string          `json:"digest"`
	State   json.RawMessage `json:"state"`
}

// Encode stamps the snapshot with the current version and wraps it with a
// MiMC digest of its JSON body.
func Encode(s Snapshot) ([]byte, error) {
	s.Version = Version
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Version: Version,
		Digest:  merkle.Hex(merkle.HashBytesMiMC(body)),
		State:   body,
	})
}

// Decode checks version and digest before handing back the snapshot. Every
// failure wraps ErrCorrupt.
func Decode(data []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Version != Version {
		return Snapshot{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, env.Version)
	}
	want, err := merkle.ParseHex(env.Digest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if merkle.HashBytesMiMC(env.State).Cmp(want) != 0 {
		return Snapshot{}, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	var s Snapshot
	if err := json.Unmarshal(env.State, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if s.Version != env.Version {
		return Snapshot{}, fmt.Errorf("%w: version mismatch", ErrCorrupt)
	}
	return s, nil
}
