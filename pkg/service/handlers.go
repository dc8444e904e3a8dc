package service

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/merklekit/merklekit/pkg/hasher"
	"github.com/merklekit/merklekit/pkg/merkle"
	"github.com/merklekit/merklekit/pkg/persistence"
)

// CreateTreeRequest is the body of POST /trees
type CreateTreeRequest struct {
	// Algorithm selects the hash algorithm; empty uses the service default
	Algorithm string `json:"algorithm,omitempty"`

	// Blocks holds the ordered leaf data (base64 in JSON)
	Blocks [][]byte `json:"blocks"`
}

// TreeResponse describes a stored tree
type TreeResponse struct {
	TreeID    string `json:"tree_id"`
	Algorithm string `json:"algorithm"`
	Root      string `json:"root"`
	LeafCount int    `json:"leaf_count"`
}

// ListTreesResponse is the body of GET /trees
type ListTreesResponse struct {
	TreeIDs []string `json:"tree_ids"`
}

// VerifyRequest is the body of POST /verify
type VerifyRequest struct {
	Proof *persistence.ProofRecord `json:"proof"`

	// TrustedRoot optionally overrides the root embedded in the proof
	// record (hex). Callers with an independently obtained root should
	// always set this.
	TrustedRoot string `json:"trusted_root,omitempty"`
}

// VerifyResponse is the body of a successful POST /verify
type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// handleTrees handles POST /trees (create) and GET /trees (list)
func (s *Service) handleTrees(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateTree(w, r)
	case http.MethodGet:
		s.handleListTrees(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCreateTree builds a tree from the posted blocks and persists it
func (s *Service) handleCreateTree(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	var req CreateTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	algorithm := req.Algorithm
	if algorithm == "" {
		algorithm = s.defaultAlgorithm
	}

	th, err := hasher.NewTreeHasherForAlgorithm(algorithm)
	if err != nil {
		http.Error(w, fmt.Sprintf("Unsupported algorithm: %v", err), http.StatusBadRequest)
		return
	}

	tree, err := merkle.BuildMerkleTree(req.Blocks, th)
	if err != nil {
		if errors.Is(err, merkle.ErrEmptyInput) {
			http.Error(w, "blocks must not be empty", http.StatusBadRequest)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to build tree: %v", err), http.StatusInternalServerError)
		return
	}

	record := &persistence.TreeRecord{
		ID:        uuid.New().String(),
		Algorithm: algorithm,
		Root:      hex.EncodeToString(tree.Root()),
		LeafCount: tree.LeafCount(),
		Blocks:    req.Blocks,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.SaveTree(record); err != nil {
		s.logger.Sugar().Errorw("Failed to save tree", "tree_id", record.ID, "error", err)
		http.Error(w, "Failed to persist tree", http.StatusInternalServerError)
		return
	}

	s.logger.Sugar().Infow("Tree created",
		"tree_id", record.ID,
		"algorithm", algorithm,
		"leaf_count", record.LeafCount)

	writeJSON(w, http.StatusCreated, TreeResponse{
		TreeID:    record.ID,
		Algorithm: record.Algorithm,
		Root:      record.Root,
		LeafCount: record.LeafCount,
	})
}

// handleListTrees returns the IDs of all persisted trees
func (s *Service) handleListTrees(w http.ResponseWriter, _ *http.Request) {
	ids, err := s.store.ListTreeIDs()
	if err != nil {
		http.Error(w, "Failed to list trees", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ListTreesResponse{TreeIDs: ids})
}

// handleTreeByID routes /trees/{id} and /trees/{id}/proof
func (s *Service) handleTreeByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/trees/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Tree ID required", http.StatusNotFound)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetTree(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleDeleteTree(w, r, id)
	case len(parts) == 2 && parts[1] == "proof" && r.Method == http.MethodGet:
		s.handleGetProof(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// loadTreeOr404 loads a tree record, writing the HTTP error on failure
func (s *Service) loadTreeOr404(w http.ResponseWriter, id string) *persistence.TreeRecord {
	record, err := s.store.LoadTree(id)
	if err != nil {
		http.Error(w, "Failed to load tree", http.StatusInternalServerError)
		return nil
	}
	if record == nil {
		http.Error(w, "Tree not found", http.StatusNotFound)
		return nil
	}
	return record
}

// handleGetTree returns tree metadata
func (s *Service) handleGetTree(w http.ResponseWriter, _ *http.Request, id string) {
	record := s.loadTreeOr404(w, id)
	if record == nil {
		return
	}

	writeJSON(w, http.StatusOK, TreeResponse{
		TreeID:    record.ID,
		Algorithm: record.Algorithm,
		Root:      record.Root,
		LeafCount: record.LeafCount,
	})
}

// handleDeleteTree removes a tree and its cached proofs
func (s *Service) handleDeleteTree(w http.ResponseWriter, _ *http.Request, id string) {
	if err := s.store.DeleteTree(id); err != nil {
		http.Error(w, "Failed to delete tree", http.StatusInternalServerError)
		return
	}

	s.logger.Sugar().Infow("Tree deleted", "tree_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetProof generates (or returns a cached) inclusion proof for a leaf
func (s *Service) handleGetProof(w http.ResponseWriter, r *http.Request, id string) {
	indexParam := r.URL.Query().Get("index")
	if indexParam == "" {
		http.Error(w, "index query parameter is required", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(indexParam)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid index %q", indexParam), http.StatusBadRequest)
		return
	}

	record := s.loadTreeOr404(w, id)
	if record == nil {
		return
	}

	if index < 0 || index >= record.LeafCount {
		http.Error(w, fmt.Sprintf("leaf index %d out of range (tree has %d leaves)", index, record.LeafCount), http.StatusBadRequest)
		return
	}

	// Proofs are deterministic, so cached records are always valid
	if cached, err := s.store.LoadProof(id, index); err == nil && cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	proofRecord, err := s.generateProofRecord(record, index)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to generate proof", "tree_id", id, "index", index, "error", err)
		http.Error(w, "Failed to generate proof", http.StatusInternalServerError)
		return
	}

	if err := s.store.SaveProof(proofRecord); err != nil {
		// Caching failure is not fatal; the proof is still served
		s.logger.Sugar().Warnw("Failed to cache proof", "tree_id", id, "index", index, "error", err)
	}

	writeJSON(w, http.StatusOK, proofRecord)
}

// generateProofRecord rebuilds the tree from its stored blocks and produces
// a proof record. The recomputed root is checked against the stored root so
// storage corruption surfaces as an error rather than a bogus proof.
func (s *Service) generateProofRecord(record *persistence.TreeRecord, index int) (*persistence.ProofRecord, error) {
	th, err := hasher.NewTreeHasherForAlgorithm(record.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("stored tree has unusable algorithm %q: %w", record.Algorithm, err)
	}

	tree, err := merkle.BuildMerkleTree(record.Blocks, th)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild tree: %w", err)
	}

	if hex.EncodeToString(tree.Root()) != record.Root {
		return nil, fmt.Errorf("recomputed root does not match stored root for tree %s", record.ID)
	}

	proof, err := tree.GenerateProof(index)
	if err != nil {
		return nil, err
	}

	return persistence.NewProofRecord(record.ID, record.Algorithm, proof, tree.Root())
}

// handleVerify verifies a proof record against a trusted root
func (s *Service) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Proof == nil {
		http.Error(w, "proof is required", http.StatusBadRequest)
		return
	}

	th, err := hasher.NewTreeHasherForAlgorithm(req.Proof.Algorithm)
	if err != nil {
		http.Error(w, fmt.Sprintf("Unsupported algorithm: %v", err), http.StatusBadRequest)
		return
	}

	proof, err := req.Proof.ToProof()
	if err != nil {
		http.Error(w, fmt.Sprintf("Malformed proof: %v", err), http.StatusBadRequest)
		return
	}

	var trustedRoot []byte
	if req.TrustedRoot != "" {
		trustedRoot, err = hex.DecodeString(req.TrustedRoot)
		if err != nil {
			http.Error(w, "trusted_root must be hex", http.StatusBadRequest)
			return
		}
	} else {
		trustedRoot, err = req.Proof.RootBytes()
		if err != nil {
			http.Error(w, fmt.Sprintf("Malformed proof root: %v", err), http.StatusBadRequest)
			return
		}
	}

	valid, err := merkle.VerifyProof(proof, th, trustedRoot)
	if err != nil {
		if errors.Is(err, merkle.ErrLeafDigestMismatch) {
			// A corrupted proof object is a definitive verification failure
			writeJSON(w, http.StatusOK, VerifyResponse{Valid: false, Reason: err.Error()})
			return
		}
		http.Error(w, fmt.Sprintf("Verification error: %v", err), http.StatusBadRequest)
		return
	}

	resp := VerifyResponse{Valid: valid}
	if !valid {
		resp.Reason = "recomputed root does not match trusted root"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth reports store health
func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.HealthCheck(); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
