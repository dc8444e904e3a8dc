package hasher

import (
	"encoding/binary"
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// mimcByteAdapter adapts the MiMC field hasher to arbitrary byte input.
// MiMC only accepts whole canonical field elements, so written bytes are
// buffered and split into 31-byte chunks at Sum time. Each chunk is
// left-padded to 32 bytes, which keeps it below the BN254 scalar modulus.
// A trailing block encoding the input length disambiguates inputs whose
// padded chunks would otherwise coincide.
type mimcByteAdapter struct {
	inner hash.Hash
	buf   []byte
}

const mimcChunkSize = 31

func newMiMCByteHasher() hash.Hash {
	return &mimcByteAdapter{inner: mimc.NewMiMC()}
}

func (m *mimcByteAdapter) Write(p []byte) (int, error) {
	m.buf = append(m.buf, p...)
	return len(p), nil
}

func (m *mimcByteAdapter) Sum(b []byte) []byte {
	m.inner.Reset()

	var block [32]byte
	for off := 0; off < len(m.buf); off += mimcChunkSize {
		end := off + mimcChunkSize
		if end > len(m.buf) {
			end = len(m.buf)
		}
		chunk := m.buf[off:end]

		for i := range block {
			block[i] = 0
		}
		copy(block[32-len(chunk):], chunk)

		// Cannot fail: a left-padded 31-byte chunk is always a canonical element
		_, _ = m.inner.Write(block[:])
	}

	// Length-suffix block
	for i := range block {
		block[i] = 0
	}
	binary.BigEndian.PutUint64(block[24:], uint64(len(m.buf)))
	_, _ = m.inner.Write(block[:])

	return m.inner.Sum(b)
}

func (m *mimcByteAdapter) Reset() {
	m.buf = nil
	m.inner.Reset()
}

func (m *mimcByteAdapter) Size() int {
	return m.inner.Size()
}

func (m *mimcByteAdapter) BlockSize() int {
	return mimcChunkSize
}
