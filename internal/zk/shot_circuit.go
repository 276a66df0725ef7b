package zk

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

const MerkleDepth = 8 // 256 leaves

// ShotCircuit proves that the answer to a shot at Index matches the committed
// board: the leaf at Index hashes to Bit, the path folds to the tree root and
// MiMC(Salt, root) equals the published Root.
type ShotCircuit struct {
	Bit  frontend.Variable              `gnark:",secret"`
	Path [MerkleDepth]frontend.Variable `gnark:",secret"`
	Dir  [MerkleDepth]frontend.Variable `gnark:",secret"`
	Salt frontend.Variable              `gnark:",secret"`

	Root  frontend.Variable `gnark:",public"`
	Index frontend.Variable `gnark:",public"`
	Hit   frontend.Variable `gnark:",public"`
}

func (c *ShotCircuit) Define(api frontend.API) error {
	api.AssertIsBoolean(c.Bit)
	api.AssertIsEqual(c.Hit, c.Bit)

	// the direction bits spell the leaf index, least significant first
	var idx frontend.Variable = 0
	for i := 0; i < MerkleDepth; i++ {
		api.AssertIsBoolean(c.Dir[i])
		idx = api.Add(idx, api.Mul(c.Dir[i], 1<<i))
	}
	api.AssertIsEqual(idx, c.Index)

	// (v0.14 returns (MiMC, error))
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Reset()
	h.Write(c.Bit)
	curr := h.Sum()

	for i := 0; i < MerkleDepth; i++ {
		h.Reset()
		isRight := c.Dir[i]

		left := api.Select(isRight, c.Path[i], curr)
		right := api.Select(isRight, curr, c.Path[i])

		h.Write(left, right)
		curr = h.Sum()
	}

	h.Reset()
	h.Write(c.Salt, curr)
	api.AssertIsEqual(h.Sum(), c.Root)
	return nil
}
