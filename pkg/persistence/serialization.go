package persistence

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/merklekit/merklekit/pkg/merkle"
)

// MarshalTreeRecord serializes a TreeRecord to JSON bytes.
func MarshalTreeRecord(tr *TreeRecord) ([]byte, error) {
	if tr == nil {
		return nil, fmt.Errorf("cannot marshal nil TreeRecord")
	}

	data, err := json.Marshal(tr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TreeRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalTreeRecord deserializes a TreeRecord from JSON bytes.
func UnmarshalTreeRecord(data []byte) (*TreeRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var tr TreeRecord
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to TreeRecord: %w", err)
	}

	return &tr, nil
}

// MarshalProofRecord serializes a ProofRecord to JSON bytes.
func MarshalProofRecord(pr *ProofRecord) ([]byte, error) {
	if pr == nil {
		return nil, fmt.Errorf("cannot marshal nil ProofRecord")
	}

	return json.Marshal(pr)
}

// UnmarshalProofRecord deserializes a ProofRecord from JSON bytes.
func UnmarshalProofRecord(data []byte) (*ProofRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var pr ProofRecord
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to ProofRecord: %w", err)
	}

	return &pr, nil
}

// NewProofRecord converts an in-memory proof to its stored form.
// Digests are hex encoded; sides become "left"/"right" strings so the wire
// form is unambiguous across implementations.
func NewProofRecord(treeID, algorithm string, proof *merkle.MerkleProof, root []byte) (*ProofRecord, error) {
	if proof == nil {
		return nil, fmt.Errorf("cannot build record from nil proof")
	}

	path := make([]ProofNodeRecord, len(proof.Path))
	for i, node := range proof.Path {
		side, err := sideToString(node.Side)
		if err != nil {
			return nil, err
		}
		path[i] = ProofNodeRecord{
			Sibling: hex.EncodeToString(node.Sibling),
			Side:    side,
		}
	}

	return &ProofRecord{
		TreeID:     treeID,
		Algorithm:  algorithm,
		LeafIndex:  proof.LeafIndex,
		LeafData:   proof.LeafData,
		LeafDigest: hex.EncodeToString(proof.LeafDigest),
		Root:       hex.EncodeToString(root),
		Path:       path,
	}, nil
}

// ToProof converts a stored proof record back to a verifiable proof.
func (pr *ProofRecord) ToProof() (*merkle.MerkleProof, error) {
	leafDigest, err := hex.DecodeString(pr.LeafDigest)
	if err != nil {
		return nil, fmt.Errorf("invalid leaf digest hex: %w", err)
	}

	path := make([]merkle.ProofNode, len(pr.Path))
	for i, node := range pr.Path {
		sibling, err := hex.DecodeString(node.Sibling)
		if err != nil {
			return nil, fmt.Errorf("invalid sibling hex at path entry %d: %w", i, err)
		}
		side, err := sideFromString(node.Side)
		if err != nil {
			return nil, fmt.Errorf("path entry %d: %w", i, err)
		}
		path[i] = merkle.ProofNode{Sibling: sibling, Side: side}
	}

	return &merkle.MerkleProof{
		LeafIndex:  pr.LeafIndex,
		LeafData:   pr.LeafData,
		LeafDigest: leafDigest,
		Path:       path,
	}, nil
}

// RootBytes decodes the record's hex root.
func (pr *ProofRecord) RootBytes() ([]byte, error) {
	root, err := hex.DecodeString(pr.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid root hex: %w", err)
	}
	return root, nil
}

func sideToString(s merkle.Side) (string, error) {
	switch s {
	case merkle.SideLeft:
		return "left", nil
	case merkle.SideRight:
		return "right", nil
	default:
		return "", fmt.Errorf("invalid proof side %d", s)
	}
}

func sideFromString(s string) (merkle.Side, error) {
	switch s {
	case "left":
		return merkle.SideLeft, nil
	case "right":
		return merkle.SideRight, nil
	default:
		return 0, fmt.Errorf("invalid proof side %q", s)
	}
}
