package merkle

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/merklekit/merklekit/pkg/hasher"
)

var (
	// ErrEmptyInput indicates an attempt to build a tree from zero blocks.
	ErrEmptyInput = errors.New("cannot build merkle tree from empty input")

	// ErrIndexOutOfRange indicates a leaf index beyond the tree bounds.
	ErrIndexOutOfRange = errors.New("leaf index out of range")

	// ErrLeafDigestMismatch indicates a proof whose stored leaf digest
	// disagrees with the recomputed hash of its stored data. The proof
	// object is corrupted or forged.
	ErrLeafDigestMismatch = errors.New("proof leaf digest does not match leaf data")
)

// BuildMerkleTree creates a binary merkle tree from an ordered sequence of
// data blocks using the given hasher. Block order is preserved: leaf i is
// always the digest of blocks[i].
//
// Odd-count policy: when a level has an odd number of digests, the last
// unpaired digest is promoted to the next level unchanged. It is never
// duplicated and hashed with itself. Verifiers must reproduce this exactly.
func BuildMerkleTree(blocks [][]byte, th *hasher.TreeHasher) (*MerkleTree, error) {
	if th == nil {
		return nil, hasher.ErrHashUnavailable
	}
	if len(blocks) == 0 {
		return nil, ErrEmptyInput
	}

	ds := th.DigestSize()

	// Size the arena up front: one slot per digest across all levels
	total := 0
	for n := len(blocks); ; n = (n + 1) / 2 {
		total += n
		if n == 1 {
			break
		}
	}

	mt := &MerkleTree{
		hasher:     th,
		digestSize: ds,
		arena:      make([]byte, total*ds),
	}

	// Copy leaf data so the tree owns it for its lifetime
	mt.blocks = make([][]byte, len(blocks))
	for i, b := range blocks {
		cp := make([]byte, len(b))
		copy(cp, b)
		mt.blocks[i] = cp
	}

	// Level 0: leaf digests
	mt.levels = append(mt.levels, levelSpan{offset: 0, count: len(blocks)})
	mt.hashLeaves()

	// Upper levels: pair adjacent digests left to right
	for mt.levels[len(mt.levels)-1].count > 1 {
		cur := mt.levels[len(mt.levels)-1]
		next := levelSpan{offset: cur.offset + cur.count, count: (cur.count + 1) / 2}

		for i := 0; i+1 < cur.count; i += 2 {
			parent := th.HashNode(mt.digestAt(cur, i), mt.digestAt(cur, i+1))
			copy(mt.arena[(next.offset+i/2)*ds:], parent)
		}

		// Promote the unpaired trailing digest unchanged
		if cur.count%2 == 1 {
			copy(mt.arena[(next.offset+next.count-1)*ds:], mt.digestAt(cur, cur.count-1))
		}

		mt.levels = append(mt.levels, next)
	}

	return mt, nil
}

// digestAt returns the i-th digest of a level as a view into the arena.
// Callers must not mutate the returned slice.
func (mt *MerkleTree) digestAt(span levelSpan, i int) []byte {
	start := (span.offset + i) * mt.digestSize
	return mt.arena[start : start+mt.digestSize]
}

// copyDigestAt returns the i-th digest of a level as an owned copy.
func (mt *MerkleTree) copyDigestAt(span levelSpan, i int) []byte {
	cp := make([]byte, mt.digestSize)
	copy(cp, mt.digestAt(span, i))
	return cp
}

// Root returns the merkle root digest.
func (mt *MerkleTree) Root() []byte {
	return mt.copyDigestAt(mt.levels[len(mt.levels)-1], 0)
}

// LeafCount returns the number of leaves in the tree.
func (mt *MerkleTree) LeafCount() int {
	return len(mt.blocks)
}

// LevelCount returns the number of levels, leaves included.
func (mt *MerkleTree) LevelCount() int {
	return len(mt.levels)
}

// LeafDigest returns the digest of the leaf at the given index.
func (mt *MerkleTree) LeafDigest(index int) ([]byte, error) {
	if index < 0 || index >= len(mt.blocks) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "leaf digest %d (tree has %d leaves)", index, len(mt.blocks))
	}
	return mt.copyDigestAt(mt.levels[0], index), nil
}

// Leaf returns the original data block at the given index.
func (mt *MerkleTree) Leaf(index int) ([]byte, error) {
	if index < 0 || index >= len(mt.blocks) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "leaf %d (tree has %d leaves)", index, len(mt.blocks))
	}
	cp := make([]byte, len(mt.blocks[index]))
	copy(cp, mt.blocks[index])
	return cp, nil
}

// GenerateProof creates an inclusion proof for the leaf at the given index.
// The proof consists of sibling digests with sides along the path from leaf
// to root. A level where the leaf's ancestor sat unpaired (and was promoted)
// contributes no path entry; the verifier passes the digest through
// unchanged at that level.
//
// Generation is deterministic: the same (tree, index) always yields an
// identical proof. The tree is only read, so concurrent calls are safe.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.blocks) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "proof for leaf %d (tree has %d leaves)", leafIndex, len(mt.blocks))
	}

	path := make([]ProofNode, 0, len(mt.levels)-1)
	pos := leafIndex

	for level := 0; level < len(mt.levels)-1; level++ {
		span := mt.levels[level]

		if pos%2 == 0 {
			if pos+1 < span.count {
				path = append(path, ProofNode{
					Sibling: mt.copyDigestAt(span, pos+1),
					Side:    SideRight,
				})
			}
			// No right sibling: this node was promoted, nothing to record
		} else {
			path = append(path, ProofNode{
				Sibling: mt.copyDigestAt(span, pos-1),
				Side:    SideLeft,
			})
		}

		pos /= 2
	}

	data := make([]byte, len(mt.blocks[leafIndex]))
	copy(data, mt.blocks[leafIndex])

	return &MerkleProof{
		LeafIndex:  leafIndex,
		LeafData:   data,
		LeafDigest: mt.copyDigestAt(mt.levels[0], leafIndex),
		Path:       path,
	}, nil
}

// VerifyProof checks an inclusion proof against a trusted root digest.
// The leaf digest is recomputed from the proof's stored data and compared
// with the stored digest before the path is folded, so a corrupted proof
// object fails with ErrLeafDigestMismatch rather than a silent false.
//
// Returns true only if the recomputed root equals trustedRoot byte for byte.
// The result is final; verification is pure and safe to run concurrently.
func VerifyProof(proof *MerkleProof, th *hasher.TreeHasher, trustedRoot []byte) (bool, error) {
	if proof == nil {
		return false, errors.New("cannot verify nil proof")
	}
	if th == nil {
		return false, hasher.ErrHashUnavailable
	}

	current := th.HashLeaf(proof.LeafData)
	if !bytes.Equal(current, proof.LeafDigest) {
		return false, errors.Wrapf(ErrLeafDigestMismatch, "leaf %d", proof.LeafIndex)
	}

	for i, node := range proof.Path {
		switch node.Side {
		case SideRight:
			current = th.HashNode(current, node.Sibling)
		case SideLeft:
			current = th.HashNode(node.Sibling, current)
		default:
			return false, errors.Errorf("proof path entry %d has invalid side %d", i, node.Side)
		}
	}

	return bytes.Equal(current, trustedRoot), nil
}
