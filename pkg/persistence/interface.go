package persistence

// ITreeStore defines the interface for persisting trees and proofs across
// restarts. All implementations must be thread-safe.
//
// Load operations return (nil, nil) when the record does not exist; errors
// are reserved for storage failures.
type ITreeStore interface {
	// SaveTree persists a tree record keyed by its ID.
	// Overwrites any existing record with the same ID.
	SaveTree(record *TreeRecord) error

	// LoadTree retrieves a tree record by ID.
	// Returns nil if the tree doesn't exist, error only on storage failure.
	LoadTree(id string) (*TreeRecord, error)

	// ListTreeIDs returns the IDs of all persisted trees, sorted ascending.
	// Returns an empty slice if no trees exist.
	ListTreeIDs() ([]string, error)

	// DeleteTree removes a tree record and all proofs stored for it.
	// Idempotent - returns nil if the tree doesn't exist.
	DeleteTree(id string) error

	// SaveProof persists a proof record keyed by (treeID, leafIndex).
	// Overwrites any existing record with the same key.
	SaveProof(record *ProofRecord) error

	// LoadProof retrieves a proof record by tree ID and leaf index.
	// Returns nil if the proof doesn't exist, error only on storage failure.
	LoadProof(treeID string, leafIndex int) (*ProofRecord, error)

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
