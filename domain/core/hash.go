package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// CohortHash fingerprints the set of hospitals a run was computed over.
type CohortHash Hash

func (h CohortHash) String() string { return Hash(h).String() }

// ComputeCohortHash hashes hospital codes independently of their order.
func ComputeCohortHash(codes []int64) CohortHash {
	sorted := make([]int64, len(codes))
	copy(sorted, codes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var data strings.Builder
	for _, c := range sorted {
		data.WriteString(fmt.Sprintf("%d;", c))
	}
	return CohortHash(NewHash([]byte(data.String())))
}
