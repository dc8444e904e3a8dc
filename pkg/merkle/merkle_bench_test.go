package merkle

import (
	"fmt"
	"testing"
)

// BenchmarkMerkleTreeBuild benchmarks tree construction with various sizes
func BenchmarkMerkleTreeBuild(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Blocks_%d", size), func(b *testing.B) {
			th := newTestHasher(b)
			blocks := createTestBlocks(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = BuildMerkleTree(blocks, th)
			}
		})
	}
}

// BenchmarkProofGeneration benchmarks proof generation
func BenchmarkProofGeneration(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		th := newTestHasher(b)
		tree, _ := BuildMerkleTree(createTestBlocks(size), th)

		b.Run(fmt.Sprintf("Blocks_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GenerateProof(i % size)
			}
		})
	}
}

// BenchmarkProofVerification benchmarks proof verification
func BenchmarkProofVerification(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		th := newTestHasher(b)
		tree, _ := BuildMerkleTree(createTestBlocks(size), th)
		proof, _ := tree.GenerateProof(0)
		root := tree.Root()

		b.Run(fmt.Sprintf("Blocks_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = VerifyProof(proof, th, root)
			}
		})
	}
}
