package hasher

import (
	"hash"

	"github.com/pkg/errors"
)

// Domain separation prefixes (RFC 6962 convention).
// A leaf digest can never collide with an internal node digest because the
// two are computed over inputs with distinct first bytes.
const (
	// LeafPrefix is prepended to leaf data before hashing.
	LeafPrefix byte = 0x00

	// NodePrefix is prepended to the concatenated child digests before hashing.
	NodePrefix byte = 0x01
)

// ErrHashUnavailable indicates the underlying hash primitive could not be
// constructed. This is fatal: no tree operation can proceed without it.
var ErrHashUnavailable = errors.New("hash primitive unavailable")

// TreeHasher performs the domain-separated hashing operations required when
// building and verifying merkle trees. The underlying digest function is
// injected so alternate algorithms can be substituted without touching tree
// logic.
//
// A fresh hash.Hash instance is created per operation, so a single TreeHasher
// is safe for concurrent use.
type TreeHasher struct {
	newHash func() hash.Hash
}

// NewTreeHasher returns a TreeHasher backed by the passed-in hash constructor.
// Returns ErrHashUnavailable if the constructor is nil or produces a nil hash.
func NewTreeHasher(newHash func() hash.Hash) (*TreeHasher, error) {
	if newHash == nil {
		return nil, ErrHashUnavailable
	}
	if h := newHash(); h == nil {
		return nil, ErrHashUnavailable
	}
	return &TreeHasher{newHash: newHash}, nil
}

// DigestSize returns the size in bytes of digests produced by this hasher.
func (t *TreeHasher) DigestSize() int {
	return t.newHash().Size()
}

// HashLeaf computes H(LeafPrefix || data).
func (t *TreeHasher) HashLeaf(data []byte) []byte {
	h := t.newHash()
	h.Write([]byte{LeafPrefix})
	h.Write(data)
	return h.Sum(nil)
}

// HashNode computes H(NodePrefix || left || right).
// Order matters: swapping left and right changes the result.
func (t *TreeHasher) HashNode(left, right []byte) []byte {
	h := t.newHash()
	h.Write([]byte{NodePrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
