// Package testkit provides deterministic discharge fixtures for tests.
package testkit

import (
	"math/rand"
	"time"

	"egresos/domain/discharge"
	"egresos/domain/strata"
)

// Hospital describes a synthetic establishment.
type Hospital struct {
	Code      discharge.HospitalCode
	Name      string
	Ownership string
}

// DefaultHospitals mixes GRD and non-GRD, public and private establishments.
// 112103 is public and in the GRD cohort.
func DefaultHospitals() []Hospital {
	return []Hospital{
		{112103, "Instituto Nacional del Torax", strata.OwnershipPublic},
		{111195, "Hospital Padre Hurtado", strata.OwnershipPublic},
		{101100, "Hospital Dr. Juan Noe Crevanni", strata.OwnershipPublic},
		{300101, "Hospital Comunitario de Prueba", strata.OwnershipPublic},
		{900201, "Clinica Privada Norte", strata.OwnershipPrivate},
		{900202, "Clinica Privada Sur", strata.OwnershipPrivate},
	}
}

// GeneratorConfig controls GenerateDischarges.
type GeneratorConfig struct {
	Seed      int64
	Years     []int
	Diagnoses []string
	Hospitals []Hospital
	// MaxPerCell bounds discharges per (year, hospital, diagnosis); a cell may be empty.
	MaxPerCell int
}

// DefaultGeneratorConfig returns a small but varied national table.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:       42,
		Years:      []int{2018, 2019},
		Diagnoses:  []string{"J189", "K359", "I219", "C349", "P073"},
		Hospitals:  DefaultHospitals(),
		MaxPerCell: 12,
	}
}

// GenerateDischarges produces a deterministic national table. Every hospital
// gets at least one discharge per year so it is present in the national strata.
func GenerateDischarges(cfg GeneratorConfig) []discharge.Record {
	rng := rand.New(rand.NewSource(cfg.Seed))
	var out []discharge.Record

	for _, year := range cfg.Years {
		for _, h := range cfg.Hospitals {
			for di, diag := range cfg.Diagnoses {
				n := rng.Intn(cfg.MaxPerCell + 1)
				if n == 0 && di == 0 {
					n = 1
				}
				for i := 0; i < n; i++ {
					age := rng.Intn(95)
					out = append(out, discharge.Record{
						Year:          year,
						HospitalCode:  h.Code,
						HospitalName:  h.Name,
						Ownership:     h.Ownership,
						Diagnosis:     diag,
						StayDays:      rng.Intn(30),
						Surgery:       rng.Float64() < 0.3,
						Died:          rng.Float64() < 0.05,
						Sex:           []string{"Hombre", "Mujer"}[rng.Intn(2)],
						Age:           age,
						AgeBand:       discharge.AgeBand(age),
						Region:        "Metropolitana de Santiago",
						Commune:       "Santiago",
						Insurance:     "FONASA",
						DischargeDate: time.Date(year, time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC),
					})
				}
			}
		}
	}
	return out
}

// Cell builds n discharges of one hospital/diagnosis/year. The first
// surgeries records are flagged as surgical, the first deaths as deceased,
// and stay lengths are taken cyclically from stays (zero when empty).
func Cell(h Hospital, year int, diagnosis string, n, surgeries, deaths int, stays ...int) []discharge.Record {
	out := make([]discharge.Record, n)
	for i := 0; i < n; i++ {
		stay := 0
		if len(stays) > 0 {
			stay = stays[i%len(stays)]
		}
		out[i] = discharge.Record{
			Year:         year,
			HospitalCode: h.Code,
			HospitalName: h.Name,
			Ownership:    h.Ownership,
			Diagnosis:    diagnosis,
			StayDays:     stay,
			Surgery:      i < surgeries,
			Died:         i < deaths,
		}
	}
	return out
}

// Concat flattens record batches.
func Concat(batches ...[]discharge.Record) []discharge.Record {
	var out []discharge.Record
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}
