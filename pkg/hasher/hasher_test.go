package hasher

import (
	"crypto/sha256"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newSHA256Hasher(t *testing.T) *TreeHasher {
	t.Helper()
	th, err := NewTreeHasher(sha256.New)
	require.NoError(t, err)
	return th
}

// TestHashLeafPinsPrefix pins the exact leaf hashing convention:
// H(0x00 || data) with no other framing.
func TestHashLeafPinsPrefix(t *testing.T) {
	th := newSHA256Hasher(t)

	data := []byte("hello merkle")
	expected := sha256.Sum256(append([]byte{LeafPrefix}, data...))

	require.Equal(t, expected[:], th.HashLeaf(data))
}

// TestHashNodePinsPrefix pins the exact node hashing convention:
// H(0x01 || left || right).
func TestHashNodePinsPrefix(t *testing.T) {
	th := newSHA256Hasher(t)

	left := th.HashLeaf([]byte("left"))
	right := th.HashLeaf([]byte("right"))

	input := []byte{NodePrefix}
	input = append(input, left...)
	input = append(input, right...)
	expected := sha256.Sum256(input)

	require.Equal(t, expected[:], th.HashNode(left, right))
}

// TestHashNodeOrderMatters verifies positional integrity: swapping children
// changes the digest.
func TestHashNodeOrderMatters(t *testing.T) {
	th := newSHA256Hasher(t)

	a := th.HashLeaf([]byte("a"))
	b := th.HashLeaf([]byte("b"))

	require.NotEqual(t, th.HashNode(a, b), th.HashNode(b, a))
}

// TestDomainSeparation verifies a leaf digest can never be replayed as a
// node digest: hashing the same bytes through both paths differs.
func TestDomainSeparation(t *testing.T) {
	th := newSHA256Hasher(t)

	left := th.HashLeaf([]byte("x"))
	right := th.HashLeaf([]byte("y"))

	concat := append(append([]byte{}, left...), right...)

	require.NotEqual(t, th.HashLeaf(concat), th.HashNode(left, right))
}

// TestHashDeterminism verifies identical input always yields identical output
func TestHashDeterminism(t *testing.T) {
	th := newSHA256Hasher(t)

	data := []byte("deterministic")
	require.Equal(t, th.HashLeaf(data), th.HashLeaf(data))
}

// TestNewTreeHasherNilConstructor verifies construction fails fast without
// a usable primitive
func TestNewTreeHasherNilConstructor(t *testing.T) {
	th, err := NewTreeHasher(nil)
	require.Nil(t, th)
	require.ErrorIs(t, err, ErrHashUnavailable)
}

// TestNewTreeHasherForAlgorithm tests the algorithm registry
func TestNewTreeHasherForAlgorithm(t *testing.T) {
	for _, name := range SupportedAlgorithms() {
		t.Run(name, func(t *testing.T) {
			th, err := NewTreeHasherForAlgorithm(name)
			require.NoError(t, err)
			require.NotNil(t, th)

			digest := th.HashLeaf([]byte("payload"))
			require.Len(t, digest, th.DigestSize())
			require.Equal(t, digest, th.HashLeaf([]byte("payload")))
		})
	}

	t.Run("unknown algorithm", func(t *testing.T) {
		th, err := NewTreeHasherForAlgorithm("md5")
		require.Nil(t, th)
		require.True(t, errors.Is(err, ErrHashUnavailable))
	})
}

// TestAlgorithmsDisagree verifies different algorithms produce different
// digests for the same input
func TestAlgorithmsDisagree(t *testing.T) {
	data := []byte("same input")

	seen := make(map[string]string)
	for _, name := range SupportedAlgorithms() {
		th, err := NewTreeHasherForAlgorithm(name)
		require.NoError(t, err)

		digest := string(th.HashLeaf(data))
		for other, otherDigest := range seen {
			require.NotEqual(t, otherDigest, digest, "%s and %s collided", name, other)
		}
		seen[name] = digest
	}
}

// TestMiMCAdapterChunking verifies the MiMC byte adapter handles inputs that
// are not a multiple of the chunk size, including inputs larger than one chunk.
func TestMiMCAdapterChunking(t *testing.T) {
	th, err := NewTreeHasherForAlgorithm(AlgorithmMiMCBN254)
	require.NoError(t, err)

	inputs := [][]byte{
		{},
		[]byte("short"),
		make([]byte, 31),
		make([]byte, 32),
		make([]byte, 100),
	}

	for _, in := range inputs {
		digest := th.HashLeaf(in)
		require.Len(t, digest, th.DigestSize())
		require.Equal(t, digest, th.HashLeaf(in))
	}

	// Chunk boundaries are part of the digest: shifting a byte across a
	// boundary must change the output
	a := th.HashLeaf(append(make([]byte, 30), 0x01))
	b := th.HashLeaf(append(make([]byte, 31), 0x01))
	require.NotEqual(t, a, b)
}
