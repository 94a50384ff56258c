// Package partition derives the hospital peer groups used for ranking.
package partition

import (
	"egresos/domain/core"
	"egresos/domain/discharge"
	"egresos/domain/strata"
	"egresos/internal"
)

// Partition builds the stratum map from the national table.
//
// privados includes every non-public establishment plus the hospital of
// interest, so a public hospital can still be compared against private peers.
// The reference cohort is intersected with the national codes, keeping
// nacionales a superset of every stratum.
func Partition(national []discharge.Record, hospital discharge.HospitalCode, cfg strata.Config) (strata.Map, error) {
	if len(national) == 0 {
		return strata.Map{}, core.NewEmptyInputError("national records")
	}

	all := strata.CodeSet{}
	public := strata.CodeSet{}
	private := strata.CodeSet{}

	for i := range national {
		r := &national[i]
		all[r.HospitalCode] = struct{}{}
		if r.Ownership == cfg.PublicOwnership {
			public[r.HospitalCode] = struct{}{}
		}
		if r.Ownership != cfg.PublicOwnership || r.HospitalCode == hospital {
			private[r.HospitalCode] = struct{}{}
		}
	}

	if !all.Contains(hospital) {
		return strata.Map{}, core.NewUnknownHospitalError(int64(hospital))
	}

	reference := strata.CodeSet{}
	missing := 0
	for _, code := range cfg.ReferenceCodes {
		if all.Contains(code) {
			reference[code] = struct{}{}
		} else {
			missing++
		}
	}
	if missing > 0 {
		internal.DefaultLogger.Debug("[Partition] %d of %d reference (%s) codes absent from national table",
			missing, len(cfg.ReferenceCodes), cfg.ReferenceVersion)
	}

	return strata.NewMap(map[strata.Name]strata.CodeSet{
		strata.National:  all,
		strata.Public:    public,
		strata.Private:   private,
		strata.Reference: reference,
		strata.Internal:  strata.NewCodeSet(hospital),
	}), nil
}
