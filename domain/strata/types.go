package strata

import (
	"sort"

	"egresos/domain/discharge"
)

// Name identifies a peer group of hospitals.
type Name string

const (
	National  Name = "nacionales"
	Public    Name = "publicos"
	Private   Name = "privados"
	Reference Name = "grd"
	Internal  Name = "interno"
)

// Names returns every stratum in canonical order.
func Names() []Name {
	return []Name{National, Public, Private, Reference, Internal}
}

// Ownership labels used by DEIS in PERTENENCIA_ESTABLECIMIENTO_SALUD.
const (
	OwnershipPublic  = "Pertenecientes al Sistema Nacional de Servicios de Salud, SNSS"
	OwnershipPrivate = "No Pertenecientes al Sistema Nacional de Servicios de Salud, SNSS"
)

// ReferenceVersion tags the built-in GRD cohort.
const ReferenceVersion = "grd-2019"

// referenceCodes is the cohort of hospitals reporting DRG (GRD) data.
var referenceCodes = []discharge.HospitalCode{
	118100, 110100, 115100, 121117, 103100, 116110, 119100, 113100, 114101, 105101,
	116108, 116105, 101100, 114105, 105100, 112102, 133150, 126100, 121110, 121114,
	129106, 113150, 107100, 106100, 113130, 112100, 121121, 109100, 106103, 113180,
	122100, 123100, 107102, 110120, 105102, 111101, 111100, 108101, 124105, 128109,
	109101, 114103, 102100, 103101, 120101, 117101, 121109, 112101, 104103, 115107,
	107101, 110130, 116100, 118105, 115110, 112103, 104100, 108100, 112104, 117102,
	106102, 111195, 129100, 110150, 125100,
}

// Config carries the stratum definitions that are not derived from data.
type Config struct {
	PublicOwnership  string                   `yaml:"public_ownership"`
	ReferenceVersion string                   `yaml:"reference_version"`
	ReferenceCodes   []discharge.HospitalCode `yaml:"reference_codes"`
}

// DefaultConfig returns the built-in SNSS label and GRD cohort.
func DefaultConfig() Config {
	codes := make([]discharge.HospitalCode, len(referenceCodes))
	copy(codes, referenceCodes)
	return Config{
		PublicOwnership:  OwnershipPublic,
		ReferenceVersion: ReferenceVersion,
		ReferenceCodes:   codes,
	}
}

// CodeSet is a set of hospital codes.
type CodeSet map[discharge.HospitalCode]struct{}

// NewCodeSet builds a set from codes.
func NewCodeSet(codes ...discharge.HospitalCode) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s CodeSet) Contains(code discharge.HospitalCode) bool {
	_, ok := s[code]
	return ok
}

func (s CodeSet) Len() int { return len(s) }

// Sorted returns the codes in ascending order.
func (s CodeSet) Sorted() []discharge.HospitalCode {
	out := make([]discharge.HospitalCode, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Map assigns hospital codes to each stratum. It is never mutated after
// construction and may be shared by concurrent ranking passes.
type Map struct {
	sets map[Name]CodeSet
}

// NewMap wraps precomputed stratum sets.
func NewMap(sets map[Name]CodeSet) Map {
	cp := make(map[Name]CodeSet, len(sets))
	for k, v := range sets {
		cp[k] = v
	}
	return Map{sets: cp}
}

// Codes returns the set for a stratum.
func (m Map) Codes(n Name) (CodeSet, bool) {
	s, ok := m.sets[n]
	return s, ok
}

// Names returns the strata present in the map, in canonical order.
func (m Map) Names() []Name {
	var out []Name
	for _, n := range Names() {
		if _, ok := m.sets[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Sizes reports the number of hospitals per stratum.
func (m Map) Sizes() map[Name]int {
	out := make(map[Name]int, len(m.sets))
	for n, s := range m.sets {
		out[n] = s.Len()
	}
	return out
}
