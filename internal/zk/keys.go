package zk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

const (
	vkFile = "shot.vk"
	pkFile = "shot.pk"
)

// ShotPublic is what a verifier sees: the salted root, the cell index and the answer.
type ShotPublic struct {
	Root  *big.Int `json:"root"`
	Index int      `json:"index"`
	Hit   uint8    `json:"hit"`
}

// ShotWitness is the prover's private view of one cell.
type ShotWitness struct {
	Bit   uint8
	Index int
	Path  []*big.Int
	Dir   []uint8
	Salt  *big.Int
	Root  *big.Int
}

// Keys holds the compiled circuit and its Groth16 key pair.
type Keys struct {
	Dir string
	cs  constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

func compile() (constraint.ConstraintSystem, error) {
	var circuit ShotCircuit
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
}

// EnsureShotKeys loads the key pair from dir, or runs setup and writes it
// when the files are missing or unreadable.
func EnsureShotKeys(dir string) (*Keys, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	cs, err := compile()
	if err != nil {
		return nil, fmt.Errorf("compile shot circuit: %w", err)
	}
	k := &Keys{Dir: dir, cs: cs}

	vkPath, pkPath := filepath.Join(dir, vkFile), filepath.Join(dir, pkFile)
	if vk, pk, err := readKeys(vkPath, pkPath); err == nil {
		k.vk, k.pk = vk, pk
		return k, nil
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	if err := writeKey(vkPath, vk); err != nil {
		return nil, err
	}
	if err := writeKey(pkPath, pk); err != nil {
		return nil, err
	}
	k.vk, k.pk = vk, pk
	return k, nil
}

// VKPath is where the verifying key lives on disk.
func (k *Keys) VKPath() string { return filepath.Join(k.Dir, vkFile) }

func (k *Keys) VK() groth16.VerifyingKey { return k.vk }

// VerifyingKey serialises the verifying key for sharing with a client.
func (k *Keys) VerifyingKey() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := k.vk.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ProveShot proves one cell answer.
func (k *Keys) ProveShot(w ShotWitness) ([]byte, ShotPublic, error) {
	if len(w.Path) != MerkleDepth || len(w.Dir) != MerkleDepth {
		return nil, ShotPublic{}, errors.New("bad path length")
	}
	if w.Salt == nil || w.Root == nil {
		return nil, ShotPublic{}, errors.New("missing salt or root")
	}

	var assign ShotCircuit
	assign.Bit = w.Bit
	for i := 0; i < MerkleDepth; i++ {
		assign.Path[i] = w.Path[i]
		assign.Dir[i] = w.Dir[i]
	}
	assign.Salt = w.Salt
	assign.Root = w.Root
	assign.Index = w.Index
	assign.Hit = w.Bit

	fullWit, err := frontend.NewWitness(&assign, ecc.BN254.ScalarField())
	if err != nil {
		return nil, ShotPublic{}, err
	}
	proof, err := groth16.Prove(k.cs, k.pk, fullWit)
	if err != nil {
		return nil, ShotPublic{}, err
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, ShotPublic{}, err
	}
	return buf.Bytes(), ShotPublic{Root: new(big.Int).Set(w.Root), Index: w.Index, Hit: w.Bit}, nil
}

// VerifyShot checks a proof against the expected root. (Verify returns only error; nil => valid)
func VerifyShot(vk groth16.VerifyingKey, proofBin []byte, pub ShotPublic, root *big.Int) (bool, error) {
	if pub.Root == nil {
		return false, errors.New("proof payload missing public root")
	}
	if pub.Root.Cmp(root) != 0 {
		return false, errors.New("root mismatch")
	}
	if pub.Hit > 1 {
		return false, errors.New("invalid hit public output")
	}

	var pubAssign ShotCircuit
	pubAssign.Root = root
	pubAssign.Index = pub.Index
	pubAssign.Hit = pub.Hit

	pubWit, err := frontend.NewWitness(&pubAssign, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, err
	}
	pr := groth16.NewProof(ecc.BN254)
	if _, err := pr.ReadFrom(bytes.NewReader(proofBin)); err != nil {
		return false, err
	}
	if err := groth16.Verify(pr, vk, pubWit); err != nil {
		return false, err
	}
	return true, nil
}

// --- key IO helpers using io.WriterTo / io.ReaderFrom ---

func writeKey(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = key.WriteTo(f)
	return err
}

// ReadVK parses a verifying key, e.g. one shared by the other side.
func ReadVK(r io.Reader) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, err
	}
	return vk, nil
}

func readVKFile(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadVK(f)
}

func readPK(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func readKeys(vkPath, pkPath string) (groth16.VerifyingKey, groth16.ProvingKey, error) {
	vk, err := readVKFile(vkPath)
	if err != nil {
		return nil, nil, err
	}
	pk, err := readPK(pkPath)
	if err != nil {
		return nil, nil, err
	}
	return vk, pk, nil
}
