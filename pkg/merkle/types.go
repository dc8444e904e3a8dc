package merkle

import (
	"github.com/merklekit/merklekit/pkg/hasher"
)

// Side indicates which side of the current hash a proof sibling sits on
// when recombining upward.
type Side uint8

const (
	// SideLeft means the sibling is the left input to HashNode.
	SideLeft Side = iota

	// SideRight means the sibling is the right input to HashNode.
	SideRight
)

// String returns a human-readable side name.
func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "unknown"
	}
}

// ProofNode is one step of an inclusion proof: a sibling digest and the side
// it occupies when combined with the running hash.
type ProofNode struct {
	Sibling []byte `json:"sibling"`
	Side    Side   `json:"side"`
}

// MerkleTree is a binary merkle tree built over an ordered sequence of data
// blocks. Once built, a tree is immutable and safe for unlimited concurrent
// readers.
//
// Digests are stored in a single flat arena with per-level offsets rather
// than nested slices, so level construction is one contiguous allocation.
type MerkleTree struct {
	hasher *hasher.TreeHasher

	// blocks holds the original leaf data, index-ordered. Retained so proofs
	// can carry the proven value.
	blocks [][]byte

	// arena holds all level digests bottom-up, each digestSize bytes
	arena      []byte
	digestSize int

	// levels[i] describes the slice of arena holding level i.
	// levels[0] = leaves, the last level has exactly one digest (the root).
	levels []levelSpan
}

// levelSpan locates one tree level inside the digest arena.
// offset and count are in digests, not bytes.
type levelSpan struct {
	offset int
	count  int
}

// MerkleProof is an inclusion proof for a single leaf. It carries everything
// needed for independent verification: the original leaf data, its digest,
// and the ordered sibling path from leaf level up to (but not including) the
// root. Levels where the leaf's ancestor was promoted unpaired contribute no
// path entry.
type MerkleProof struct {
	// LeafIndex is the zero-based position of the leaf in the input sequence
	LeafIndex int `json:"leaf_index"`

	// LeafData is the original data block being proven
	LeafData []byte `json:"leaf_data"`

	// LeafDigest is the domain-separated hash of LeafData
	LeafDigest []byte `json:"leaf_digest"`

	// Path contains the sibling nodes from leaf level to root.
	// Path[0] is the leaf's sibling, Path[len-1] is nearest the root.
	Path []ProofNode `json:"path"`
}
