package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/merklekit/merklekit/pkg/persistence"
)

// MemoryStore is an in-memory implementation of ITreeStore.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryStore struct {
	mu sync.RWMutex

	// Tree storage: id -> TreeRecord
	trees map[string]*persistence.TreeRecord

	// Proof storage: treeID -> leafIndex -> ProofRecord
	proofs map[string]map[int]*persistence.ProofRecord

	closed bool
}

// NewMemoryStore creates a new in-memory tree store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trees:  make(map[string]*persistence.TreeRecord),
		proofs: make(map[string]map[int]*persistence.ProofRecord),
	}
}

// SaveTree persists a tree record.
func (m *MemoryStore) SaveTree(record *persistence.TreeRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TreeRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("tree store is closed")
	}

	m.trees[record.ID] = deepCopyTreeRecord(record)
	return nil
}

// LoadTree retrieves a tree record by ID.
func (m *MemoryStore) LoadTree(id string) (*persistence.TreeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("tree store is closed")
	}

	record, exists := m.trees[id]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return deepCopyTreeRecord(record), nil
}

// ListTreeIDs returns all tree IDs sorted ascending.
func (m *MemoryStore) ListTreeIDs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("tree store is closed")
	}

	ids := make([]string, 0, len(m.trees))
	for id := range m.trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

// DeleteTree removes a tree record and its proofs.
func (m *MemoryStore) DeleteTree(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("tree store is closed")
	}

	delete(m.trees, id)
	delete(m.proofs, id)
	return nil
}

// SaveProof persists a proof record.
func (m *MemoryStore) SaveProof(record *persistence.ProofRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil ProofRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("tree store is closed")
	}

	byIndex, exists := m.proofs[record.TreeID]
	if !exists {
		byIndex = make(map[int]*persistence.ProofRecord)
		m.proofs[record.TreeID] = byIndex
	}
	byIndex[record.LeafIndex] = deepCopyProofRecord(record)

	return nil
}

// LoadProof retrieves a proof record by tree ID and leaf index.
func (m *MemoryStore) LoadProof(treeID string, leafIndex int) (*persistence.ProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("tree store is closed")
	}

	byIndex, exists := m.proofs[treeID]
	if !exists {
		return nil, nil // Not found is not an error
	}

	record, exists := byIndex[leafIndex]
	if !exists {
		return nil, nil
	}

	return deepCopyProofRecord(record), nil
}

// Close shuts down the store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("tree store is closed")
	}

	return nil
}

// Deep copy helpers

func deepCopyTreeRecord(tr *persistence.TreeRecord) *persistence.TreeRecord {
	if tr == nil {
		return nil
	}

	blocks := make([][]byte, len(tr.Blocks))
	for i, b := range tr.Blocks {
		cp := make([]byte, len(b))
		copy(cp, b)
		blocks[i] = cp
	}

	return &persistence.TreeRecord{
		ID:        tr.ID,
		Algorithm: tr.Algorithm,
		Root:      tr.Root,
		LeafCount: tr.LeafCount,
		Blocks:    blocks,
		CreatedAt: tr.CreatedAt,
	}
}

func deepCopyProofRecord(pr *persistence.ProofRecord) *persistence.ProofRecord {
	if pr == nil {
		return nil
	}

	leafData := make([]byte, len(pr.LeafData))
	copy(leafData, pr.LeafData)

	path := make([]persistence.ProofNodeRecord, len(pr.Path))
	copy(path, pr.Path)

	return &persistence.ProofRecord{
		TreeID:     pr.TreeID,
		Algorithm:  pr.Algorithm,
		LeafIndex:  pr.LeafIndex,
		LeafData:   leafData,
		LeafDigest: pr.LeafDigest,
		Root:       pr.Root,
		Path:       path,
	}
}
