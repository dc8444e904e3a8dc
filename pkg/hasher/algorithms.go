package hasher

import (
	"crypto/sha256"
	"hash"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// Supported algorithm names for NewTreeHasherForAlgorithm
const (
	AlgorithmSHA256    = "sha256"
	AlgorithmKeccak256 = "keccak256"
	AlgorithmSHA3_256  = "sha3-256"
	AlgorithmMiMCBN254 = "mimc-bn254"
)

// algorithms maps algorithm names to hash constructors.
// keccak256 is provided for Solidity compatibility, mimc-bn254 for
// zk-circuit-friendly commitments.
var algorithms = map[string]func() hash.Hash{
	AlgorithmSHA256:    sha256.New,
	AlgorithmKeccak256: func() hash.Hash { return ethcrypto.NewKeccakState() },
	AlgorithmSHA3_256:  sha3.New256,
	AlgorithmMiMCBN254: newMiMCByteHasher,
}

// NewTreeHasherForAlgorithm returns a TreeHasher for a named algorithm.
// Returns ErrHashUnavailable for unknown algorithm names.
func NewTreeHasherForAlgorithm(name string) (*TreeHasher, error) {
	newHash, ok := algorithms[name]
	if !ok {
		return nil, errors.Wrapf(ErrHashUnavailable, "unknown algorithm %q", name)
	}
	return NewTreeHasher(newHash)
}

// SupportedAlgorithms returns the names of all registered hash algorithms.
func SupportedAlgorithms() []string {
	return []string{
		AlgorithmSHA256,
		AlgorithmKeccak256,
		AlgorithmSHA3_256,
		AlgorithmMiMCBN254,
	}
}
