package merkle

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merklekit/merklekit/pkg/hasher"
)

// newTestHasher returns a sha256-backed TreeHasher for tests
func newTestHasher(t testing.TB) *hasher.TreeHasher {
	t.Helper()
	th, err := hasher.NewTreeHasher(sha256.New)
	require.NoError(t, err)
	return th
}

// createTestBlocks creates n distinct data blocks
func createTestBlocks(n int) [][]byte {
	blocks := make([][]byte, n)
	for i := 0; i < n; i++ {
		blocks[i] = []byte(fmt.Sprintf("block-%d", i))
	}
	return blocks
}

// TestBuildMerkleTree tests tree construction with various leaf counts
func TestBuildMerkleTree(t *testing.T) {
	testCases := []struct {
		name      string
		numBlocks int
	}{
		{"Single block", 1},
		{"Two blocks", 2},
		{"Three blocks", 3},
		{"Four blocks (power of 2)", 4},
		{"Seven blocks", 7},
		{"Eight blocks (power of 2)", 8},
		{"Fifteen blocks", 15},
		{"Sixteen blocks (power of 2)", 16},
	}

	th := newTestHasher(t)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			blocks := createTestBlocks(tc.numBlocks)
			tree, err := BuildMerkleTree(blocks, th)
			require.NoError(t, err)
			require.NotNil(t, tree)

			require.Equal(t, tc.numBlocks, tree.LeafCount())
			require.Len(t, tree.Root(), th.DigestSize())

			// Every leaf digest must be the domain-separated hash of its block
			for i := 0; i < tc.numBlocks; i++ {
				digest, err := tree.LeafDigest(i)
				require.NoError(t, err)
				require.Equal(t, th.HashLeaf(blocks[i]), digest)
			}

			// Generate and verify proofs for all leaves
			for i := 0; i < tc.numBlocks; i++ {
				proof, err := tree.GenerateProof(i)
				require.NoError(t, err)
				require.Equal(t, i, proof.LeafIndex)
				require.Equal(t, blocks[i], proof.LeafData)

				valid, err := VerifyProof(proof, th, tree.Root())
				require.NoError(t, err)
				require.True(t, valid, "proof for leaf %d should be valid", i)
			}
		})
	}
}

// TestBuildMerkleTreeEmpty tests that building from zero blocks fails
func TestBuildMerkleTreeEmpty(t *testing.T) {
	tree, err := BuildMerkleTree(nil, newTestHasher(t))
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Nil(t, tree)

	tree, err = BuildMerkleTree([][]byte{}, newTestHasher(t))
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Nil(t, tree)
}

// TestSingleLeafTree tests the degenerate one-block tree: the leaf digest is
// the root and the proof path is empty
func TestSingleLeafTree(t *testing.T) {
	th := newTestHasher(t)
	block := []byte("only block")

	tree, err := BuildMerkleTree([][]byte{block}, th)
	require.NoError(t, err)

	require.Equal(t, 1, tree.LevelCount())
	require.Equal(t, th.HashLeaf(block), tree.Root())

	proof, err := tree.GenerateProof(0)
	require.NoError(t, err)
	require.Empty(t, proof.Path)

	valid, err := VerifyProof(proof, th, tree.Root())
	require.NoError(t, err)
	require.True(t, valid)
}

// TestThreeLeafPromotion pins the odd-count policy: the unpaired digest is
// promoted unchanged, never hashed with a copy of itself.
func TestThreeLeafPromotion(t *testing.T) {
	th := newTestHasher(t)
	a, b, c := []byte("a"), []byte("b"), []byte("c")

	tree, err := BuildMerkleTree([][]byte{a, b, c}, th)
	require.NoError(t, err)

	hA, hB, hC := th.HashLeaf(a), th.HashLeaf(b), th.HashLeaf(c)
	hAB := th.HashNode(hA, hB)

	// Root = HashNode(HashNode(H(a), H(b)), H(c)) — c carried up unchanged
	require.Equal(t, th.HashNode(hAB, hC), tree.Root())
	require.Equal(t, 3, tree.LevelCount())

	// Proof for c: no sibling at the leaf level (promoted), one left sibling
	// at the next level
	proofC, err := tree.GenerateProof(2)
	require.NoError(t, err)
	require.Len(t, proofC.Path, 1)
	require.Equal(t, hAB, proofC.Path[0].Sibling)
	require.Equal(t, SideLeft, proofC.Path[0].Side)

	valid, err := VerifyProof(proofC, th, tree.Root())
	require.NoError(t, err)
	require.True(t, valid)

	// Proof for a: right sibling H(b), then right sibling H(c)
	proofA, err := tree.GenerateProof(0)
	require.NoError(t, err)
	require.Len(t, proofA.Path, 2)
	require.Equal(t, hB, proofA.Path[0].Sibling)
	require.Equal(t, SideRight, proofA.Path[0].Side)
	require.Equal(t, hC, proofA.Path[1].Sibling)
	require.Equal(t, SideRight, proofA.Path[1].Side)
}

// TestProofVerification tests verification with valid and invalid proofs
func TestProofVerification(t *testing.T) {
	th := newTestHasher(t)
	blocks := createTestBlocks(7)
	tree, err := BuildMerkleTree(blocks, th)
	require.NoError(t, err)

	t.Run("Valid proof", func(t *testing.T) {
		proof, err := tree.GenerateProof(3)
		require.NoError(t, err)

		valid, err := VerifyProof(proof, th, tree.Root())
		require.NoError(t, err)
		require.True(t, valid)
	})

	t.Run("Wrong root", func(t *testing.T) {
		proof, err := tree.GenerateProof(3)
		require.NoError(t, err)

		wrongRoot := make([]byte, th.DigestSize())
		valid, err := VerifyProof(proof, th, wrongRoot)
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("Corrupted leaf data", func(t *testing.T) {
		proof, err := tree.GenerateProof(3)
		require.NoError(t, err)

		proof.LeafData[0] ^= 0xFF
		valid, err := VerifyProof(proof, th, tree.Root())
		require.ErrorIs(t, err, ErrLeafDigestMismatch)
		require.False(t, valid)
	})

	t.Run("Tampered leaf with recomputed digest", func(t *testing.T) {
		proof, err := tree.GenerateProof(3)
		require.NoError(t, err)

		// Keep the proof internally consistent so only the root check fails
		proof.LeafData[0] ^= 0xFF
		proof.LeafDigest = th.HashLeaf(proof.LeafData)

		valid, err := VerifyProof(proof, th, tree.Root())
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("Tampered sibling", func(t *testing.T) {
		proof, err := tree.GenerateProof(3)
		require.NoError(t, err)

		proof.Path[0].Sibling[0] ^= 0xFF
		valid, err := VerifyProof(proof, th, tree.Root())
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("Swapped side", func(t *testing.T) {
		proof, err := tree.GenerateProof(3)
		require.NoError(t, err)

		if proof.Path[0].Side == SideLeft {
			proof.Path[0].Side = SideRight
		} else {
			proof.Path[0].Side = SideLeft
		}

		valid, err := VerifyProof(proof, th, tree.Root())
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("Truncated path", func(t *testing.T) {
		proof, err := tree.GenerateProof(3)
		require.NoError(t, err)

		proof.Path = proof.Path[:len(proof.Path)-1]
		valid, err := VerifyProof(proof, th, tree.Root())
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("Extra path entry", func(t *testing.T) {
		proof, err := tree.GenerateProof(3)
		require.NoError(t, err)

		extra := ProofNode{Sibling: th.HashLeaf([]byte("bogus")), Side: SideRight}
		proof.Path = append(proof.Path, extra)

		valid, err := VerifyProof(proof, th, tree.Root())
		require.NoError(t, err)
		require.False(t, valid)
	})

	t.Run("Invalid side value", func(t *testing.T) {
		proof, err := tree.GenerateProof(3)
		require.NoError(t, err)

		proof.Path[0].Side = Side(7)
		valid, err := VerifyProof(proof, th, tree.Root())
		require.Error(t, err)
		require.False(t, valid)
	})

	t.Run("Nil proof", func(t *testing.T) {
		valid, err := VerifyProof(nil, th, tree.Root())
		require.Error(t, err)
		require.False(t, valid)
	})
}

// TestMutatedBlockProof verifies that a proof generated from a mutated data
// set never validates against the original root
func TestMutatedBlockProof(t *testing.T) {
	th := newTestHasher(t)
	blocks := createTestBlocks(8)

	original, err := BuildMerkleTree(blocks, th)
	require.NoError(t, err)

	mutated := createTestBlocks(8)
	mutated[5][0] ^= 0x01

	tree2, err := BuildMerkleTree(mutated, th)
	require.NoError(t, err)
	require.NotEqual(t, original.Root(), tree2.Root())

	proof, err := tree2.GenerateProof(5)
	require.NoError(t, err)

	valid, err := VerifyProof(proof, th, original.Root())
	require.NoError(t, err)
	require.False(t, valid)
}

// TestGenerateProofInvalidIndex tests out-of-range index handling
func TestGenerateProofInvalidIndex(t *testing.T) {
	th := newTestHasher(t)
	tree, err := BuildMerkleTree(createTestBlocks(4), th)
	require.NoError(t, err)

	for _, index := range []int{-1, 4, 100} {
		proof, err := tree.GenerateProof(index)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		require.Nil(t, proof)

		_, err = tree.LeafDigest(index)
		require.ErrorIs(t, err, ErrIndexOutOfRange)

		_, err = tree.Leaf(index)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	}
}

// TestMerkleTreeDeterminism verifies identical input yields identical trees
// and identical proofs
func TestMerkleTreeDeterminism(t *testing.T) {
	th := newTestHasher(t)
	blocks := createTestBlocks(10)

	tree1, err := BuildMerkleTree(blocks, th)
	require.NoError(t, err)
	tree2, err := BuildMerkleTree(blocks, th)
	require.NoError(t, err)

	require.Equal(t, tree1.Root(), tree2.Root())

	for i := 0; i < 10; i++ {
		proof1, err := tree1.GenerateProof(i)
		require.NoError(t, err)
		proof2, err := tree2.GenerateProof(i)
		require.NoError(t, err)
		require.Equal(t, proof1, proof2)
	}
}

// TestTreeOwnsLeafData verifies mutating caller-held blocks after build does
// not affect the tree
func TestTreeOwnsLeafData(t *testing.T) {
	th := newTestHasher(t)
	blocks := createTestBlocks(4)

	tree, err := BuildMerkleTree(blocks, th)
	require.NoError(t, err)
	root := tree.Root()

	blocks[0][0] ^= 0xFF

	leaf, err := tree.Leaf(0)
	require.NoError(t, err)
	require.Equal(t, []byte("block-0"), leaf)
	require.Equal(t, root, tree.Root())
}

// TestLevelSizes verifies the ceil(n/2) level invariant through LevelCount
func TestLevelSizes(t *testing.T) {
	th := newTestHasher(t)

	testCases := []struct {
		numBlocks int
		numLevels int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{5, 4},
		{8, 4},
		{9, 5},
		{16, 5},
		{17, 6},
	}

	for _, tc := range testCases {
		tree, err := BuildMerkleTree(createTestBlocks(tc.numBlocks), th)
		require.NoError(t, err)
		require.Equal(t, tc.numLevels, tree.LevelCount(), "blocks=%d", tc.numBlocks)
	}
}

// TestAllAlgorithms builds and verifies with every registered hash algorithm
func TestAllAlgorithms(t *testing.T) {
	blocks := createTestBlocks(5)
	roots := make(map[string]string)

	for _, name := range hasher.SupportedAlgorithms() {
		t.Run(name, func(t *testing.T) {
			th, err := hasher.NewTreeHasherForAlgorithm(name)
			require.NoError(t, err)

			tree, err := BuildMerkleTree(blocks, th)
			require.NoError(t, err)

			for i := range blocks {
				proof, err := tree.GenerateProof(i)
				require.NoError(t, err)

				valid, err := VerifyProof(proof, th, tree.Root())
				require.NoError(t, err)
				require.True(t, valid)
			}

			roots[name] = string(tree.Root())
		})
	}

	// Different algorithms must commit to different roots
	seen := make(map[string]string)
	for name, root := range roots {
		for other, otherRoot := range seen {
			require.NotEqual(t, otherRoot, root, "%s and %s produced the same root", name, other)
		}
		seen[name] = root
	}
}

// TestLargeTree exercises the parallel leaf hashing path and verifies the
// index-to-digest mapping is preserved
func TestLargeTree(t *testing.T) {
	th := newTestHasher(t)
	blocks := createTestBlocks(3000)

	tree, err := BuildMerkleTree(blocks, th)
	require.NoError(t, err)

	// Index mapping: spot-check leaf digests against direct hashing
	for _, i := range []int{0, 1, 1023, 1024, 1500, 2999} {
		digest, err := tree.LeafDigest(i)
		require.NoError(t, err)
		require.Equal(t, th.HashLeaf(blocks[i]), digest)
	}

	// Parallel build must be deterministic
	tree2, err := BuildMerkleTree(blocks, th)
	require.NoError(t, err)
	require.Equal(t, tree.Root(), tree2.Root())

	for _, i := range []int{0, 750, 1500, 2250, 2999} {
		proof, err := tree.GenerateProof(i)
		require.NoError(t, err)

		valid, err := VerifyProof(proof, th, tree.Root())
		require.NoError(t, err)
		require.True(t, valid)
	}
}

// TestNilHasher verifies build and verify fail fast without a hash primitive
func TestNilHasher(t *testing.T) {
	tree, err := BuildMerkleTree(createTestBlocks(2), nil)
	require.ErrorIs(t, err, hasher.ErrHashUnavailable)
	require.Nil(t, tree)

	th := newTestHasher(t)
	built, err := BuildMerkleTree(createTestBlocks(2), th)
	require.NoError(t, err)
	proof, err := built.GenerateProof(0)
	require.NoError(t, err)

	valid, err := VerifyProof(proof, nil, built.Root())
	require.ErrorIs(t, err, hasher.ErrHashUnavailable)
	require.False(t, valid)
}
