package zk

import (
	"math/big"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/merkle"
)

func testBoard(t *testing.T) (*merkle.Tree, []uint8, *big.Int, *big.Int) {
	t.Helper()
	occ := make([]uint8, 100)
	for c := 2; c < 5; c++ {
		occ[3*10+c] = 1
	}
	tree, err := merkle.BuildBoardTree(occ)
	require.NoError(t, err)
	salt := big.NewInt(424242)
	return tree, occ, salt, merkle.SaltedRoot(salt, tree.Root())
}

func witnessFor(t *testing.T, tree *merkle.Tree, occ []uint8, salt, root *big.Int, idx int) ShotWitness {
	t.Helper()
	path, dir, err := tree.Path(idx)
	require.NoError(t, err)
	return ShotWitness{Bit: occ[idx], Index: idx, Path: path, Dir: dir, Salt: salt, Root: root}
}

func TestProveAndVerifyShot(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	dir := t.TempDir()
	keys, err := EnsureShotKeys(dir)
	require.NoError(t, err)

	tree, occ, salt, root := testBoard(t)

	for _, idx := range []int{32, 33, 0, 99} {
		proof, pub, err := keys.ProveShot(witnessFor(t, tree, occ, salt, root, idx))
		require.NoError(t, err)
		assert.Equal(t, occ[idx], pub.Hit)
		assert.Equal(t, idx, pub.Index)

		ok, err := VerifyShot(keys.vk, proof, pub, root)
		require.NoError(t, err)
		assert.True(t, ok, "index %d", idx)
	}

	// flipping the public answer or index must break verification
	proof, pub, err := keys.ProveShot(witnessFor(t, tree, occ, salt, root, 32))
	require.NoError(t, err)
	flipped := pub
	flipped.Hit = 0
	ok, err := VerifyShot(keys.vk, proof, flipped, root)
	assert.Error(t, err)
	assert.False(t, ok)

	moved := pub
	moved.Index = 31
	ok, err = VerifyShot(keys.vk, proof, moved, root)
	assert.Error(t, err)
	assert.False(t, ok)

	ok, err = VerifyShot(keys.vk, proof, pub, big.NewInt(1))
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestProveShotRejectsLies(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	keys, err := EnsureShotKeys(t.TempDir())
	require.NoError(t, err)
	tree, occ, salt, root := testBoard(t)

	w := witnessFor(t, tree, occ, salt, root, 0)
	w.Bit = 1
	_, _, err = keys.ProveShot(w)
	assert.Error(t, err)

	w = witnessFor(t, tree, occ, salt, root, 0)
	w.Salt = big.NewInt(7)
	_, _, err = keys.ProveShot(w)
	assert.Error(t, err)

	w = witnessFor(t, tree, occ, salt, root, 0)
	w.Path = w.Path[:3]
	_, _, err = keys.ProveShot(w)
	assert.Error(t, err)
}

func TestEnsureShotKeysReusesFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	dir := t.TempDir()
	first, err := EnsureShotKeys(dir)
	require.NoError(t, err)
	vk1, err := first.VerifyingKey()
	require.NoError(t, err)

	second, err := EnsureShotKeys(dir)
	require.NoError(t, err)
	vk2, err := second.VerifyingKey()
	require.NoError(t, err)
	assert.Equal(t, vk1, vk2)

	f, err := os.Open(second.VKPath())
	require.NoError(t, err)
	defer f.Close()
	_, err = ReadVK(f)
	assert.NoError(t, err)
}
