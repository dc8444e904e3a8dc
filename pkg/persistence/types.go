package persistence

import "time"

// TreeRecord is the stored form of a built merkle tree. Only the inputs are
// persisted: leaf blocks in order plus the algorithm name. Levels are
// recomputed on load, which is cheap and keeps the stored form independent
// of the in-memory level layout.
type TreeRecord struct {
	// ID is the uuid assigned when the tree was first stored
	ID string `json:"id"`

	// Algorithm is the hash algorithm name (see hasher.SupportedAlgorithms)
	Algorithm string `json:"algorithm"`

	// Root is the hex-encoded root digest, stored for integrity checks on load
	Root string `json:"root"`

	// LeafCount is the number of leaves
	LeafCount int `json:"leaf_count"`

	// Blocks holds the ordered original data blocks (base64 in JSON)
	Blocks [][]byte `json:"blocks"`

	// CreatedAt is when the tree was built
	CreatedAt time.Time `json:"created_at"`
}

// ProofNodeRecord is the stored form of one proof path entry.
type ProofNodeRecord struct {
	// Sibling is the hex-encoded sibling digest
	Sibling string `json:"sibling"`

	// Side is "left" or "right"
	Side string `json:"side"`
}

// ProofRecord is the stored, wire-safe form of an inclusion proof. It
// carries everything needed for independent verification: the leaf data,
// its digest, the ordered path, the algorithm, and the root it was
// generated against.
type ProofRecord struct {
	TreeID    string `json:"tree_id"`
	Algorithm string `json:"algorithm"`
	LeafIndex int    `json:"leaf_index"`

	// LeafData is the original block (base64 in JSON)
	LeafData []byte `json:"leaf_data"`

	// LeafDigest is the hex-encoded leaf digest
	LeafDigest string `json:"leaf_digest"`

	// Root is the hex-encoded root the proof was generated against
	Root string `json:"root"`

	// Path holds the ordered sibling entries, leaf level first
	Path []ProofNodeRecord `json:"path"`
}
