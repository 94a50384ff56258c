package run

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"egresos/domain/core"
)

// RunFingerprint ensures deterministic replay
type RunFingerprint struct {
	Hospital         int64           `json:"hospital"`
	CohortHash       core.CohortHash `json:"cohort_hash"`
	ReferenceVersion string          `json:"reference_version"`
	Variables        []string        `json:"variables"`
	GroupKeys        []string        `json:"group_keys"`
	RankingKeys      []string        `json:"ranking_keys"`
	Fingerprint      core.Hash       `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(hospital int64, cohortHash core.CohortHash, referenceVersion string,
	variables, groupKeys, rankingKeys []string) RunFingerprint {

	return RunFingerprint{
		Hospital:         hospital,
		CohortHash:       cohortHash,
		ReferenceVersion: referenceVersion,
		Variables:        variables,
		GroupKeys:        groupKeys,
		RankingKeys:      rankingKeys,
		Fingerprint:      computeRunFingerprint(hospital, cohortHash, referenceVersion, variables, groupKeys, rankingKeys),
	}
}

// computeRunFingerprint generates deterministic hash from all determinism parameters
func computeRunFingerprint(hospital int64, cohortHash core.CohortHash, referenceVersion string,
	variables, groupKeys, rankingKeys []string) core.Hash {

	data := fmt.Sprintf("hospital:%d|cohort:%s|reference:%s|variables:%s|group:%s|ranking:%s",
		hospital, cohortHash, referenceVersion,
		strings.Join(variables, ","), strings.Join(groupKeys, ","), strings.Join(rankingKeys, ","))

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
