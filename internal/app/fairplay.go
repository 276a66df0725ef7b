package app

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"

	"battleship/internal/codec"
	"battleship/internal/game"
	"battleship/internal/merkle"
	"battleship/internal/zk"
)

// FairPlay commits the AI fleet before the first shot and, when keys are
// loaded, proves every answer the AI grid gives.
type FairPlay struct {
	keys *zk.Keys
}

// NewFairPlay loads or generates the shot keys in keysDir. An empty keysDir
// gives commitments without per-shot proofs.
func NewFairPlay(keysDir string) (*FairPlay, error) {
	if keysDir == "" {
		return &FairPlay{}, nil
	}
	keys, err := zk.EnsureShotKeys(keysDir)
	if err != nil {
		return nil, fmt.Errorf("shot keys: %w", err)
	}
	return &FairPlay{keys: keys}, nil
}

func (f *FairPlay) Proving() bool { return f.keys != nil }

// VerifyingKey is nil when proofs are off.
func (f *FairPlay) VerifyingKey() groth16.VerifyingKey {
	if f.keys == nil {
		return nil
	}
	return f.keys.VK()
}

func (f *FairPlay) VerifyingKeyBytes() ([]byte, error) {
	if f.keys == nil {
		return nil, fmt.Errorf("proofs are disabled")
	}
	return f.keys.VerifyingKey()
}

type CommitResult struct {
	RootHex string
	Secret  codec.Secret
}

// Commit hashes a row-major occupancy vector into the board tree and salts
// the root.
func Commit(occupancy []uint8) (*CommitResult, error) {
	// this is to make root unique for same boards
	salt, err := rand.Int(rand.Reader, merkle.Modulus())
	if err != nil {
		return nil, err
	}
	return commitWithSalt(occupancy, salt)
}

func commitWithSalt(occupancy []uint8, salt *big.Int) (*CommitResult, error) {
	if len(occupancy) > merkle.Leaves {
		return nil, fmt.Errorf("board of %d cells exceeds %d leaves", len(occupancy), merkle.Leaves)
	}
	t, err := merkle.BuildBoardTree(occupancy)
	if err != nil {
		return nil, err
	}
	sec := codec.Secret{
		Occupancy: occupancy,
		Tree:      t,
		SaltHex:   merkle.Hex(salt),
	}
	return &CommitResult{RootHex: merkle.Hex(merkle.SaltedRoot(salt, t.Root())), Secret: sec}, nil
}

type ShootResult struct {
	Payload codec.ShotProofPayload
	Bit     uint8
}

// Shoot proves the committed bit at pos on a size×size board.
func (f *FairPlay) Shoot(sec codec.Secret, size int, pos game.Coord) (*ShootResult, error) {
	if f.keys == nil {
		return nil, fmt.Errorf("proofs are disabled")
	}
	if pos.Row < 0 || pos.Row >= size || pos.Col < 0 || pos.Col >= size {
		return nil, fmt.Errorf("row/col out of range")
	}
	salt, err := merkle.ParseHex(sec.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("missing or invalid salt in secret: %w", err)
	}

	idx := pos.Row*size + pos.Col
	if idx >= len(sec.Occupancy) {
		return nil, fmt.Errorf("index %d outside committed board", idx)
	}
	bit := sec.Occupancy[idx]
	path, dir, err := sec.Tree.Path(idx)
	if err != nil {
		return nil, err
	}

	proof, pub, err := f.keys.ProveShot(zk.ShotWitness{
		Bit:   bit,
		Index: idx,
		Path:  path,
		Dir:   dir,
		Salt:  salt,
		Root:  merkle.SaltedRoot(salt, sec.Tree.Root()),
	})
	if err != nil {
		return nil, err
	}
	return &ShootResult{
		Payload: codec.ShotProofPayload{Proof: proof, Public: pub},
		Bit:     bit,
	}, nil
}

type VerifyResult struct {
	Valid bool
	Hit   uint8
	Index int
}

// VerifyWithRoot checks a shot proof against a published salted root.
func VerifyWithRoot(vk groth16.VerifyingKey, root *big.Int, payload codec.ShotProofPayload) (*VerifyResult, error) {
	if payload.Public.Root == nil || payload.Public.Root.Sign() == 0 {
		payload.Public.Root = new(big.Int).Set(root)
	}
	if payload.Public.Hit != 0 && payload.Public.Hit != 1 {
		return nil, fmt.Errorf("invalid hit public output")
	}
	res, err := zk.VerifyShot(vk, payload.Proof, payload.Public, root)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Valid: res, Hit: payload.Public.Hit, Index: payload.Public.Index}, nil
}
