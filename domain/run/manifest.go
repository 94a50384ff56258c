package run

import (
	"fmt"

	"egresos/domain/core"
)

// Manifest records what a ranking run computed and over which cohort.
type Manifest struct {
	RunID            core.RunID      `json:"run_id"`
	Hospital         int64           `json:"hospital"`
	ReferenceVersion string          `json:"reference_version"`
	StrataSizes      map[string]int  `json:"strata_sizes"`
	Variables        []string        `json:"variables"`
	GroupKeys        []string        `json:"group_keys"`
	RankingKeys      []string        `json:"ranking_keys"`
	InputRows        int             `json:"input_rows"`
	OutputRows       int             `json:"output_rows"`
	CohortHash       core.CohortHash `json:"cohort_hash"`
	Fingerprint      RunFingerprint  `json:"fingerprint"`
	CreatedAt        core.Timestamp  `json:"created_at"`
}

// NewManifest creates a run manifest; the fingerprint only depends on the
// determinism parameters, never on the run ID or clock.
func NewManifest(
	runID core.RunID,
	hospital int64,
	referenceVersion string,
	cohortCodes []int64,
	strataSizes map[string]int,
	variables, groupKeys, rankingKeys []string,
	inputRows, outputRows int,
) *Manifest {
	cohortHash := core.ComputeCohortHash(cohortCodes)
	return &Manifest{
		RunID:            runID,
		Hospital:         hospital,
		ReferenceVersion: referenceVersion,
		StrataSizes:      strataSizes,
		Variables:        variables,
		GroupKeys:        groupKeys,
		RankingKeys:      rankingKeys,
		InputRows:        inputRows,
		OutputRows:       outputRows,
		CohortHash:       cohortHash,
		Fingerprint:      NewRunFingerprint(hospital, cohortHash, referenceVersion, variables, groupKeys, rankingKeys),
		CreatedAt:        core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return fmt.Errorf("run_manifest: run_id cannot be empty")
	}
	if m.CohortHash == "" {
		return fmt.Errorf("run_manifest: cohort_hash cannot be empty")
	}
	if len(m.Variables) == 0 {
		return fmt.Errorf("run_manifest: at least one ranked variable is required")
	}
	if m.OutputRows != 0 && m.InputRows == 0 {
		return fmt.Errorf("run_manifest: output rows without input rows")
	}
	return nil
}
