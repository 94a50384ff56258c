// Package aggregation reduces discharge records into per-group summary metrics.
package aggregation

import (
	"sort"

	"egresos/domain/core"
	"egresos/domain/discharge"
	"egresos/domain/metrics"
)

// Aggregate groups records by keys and computes count, total length of stay,
// surgeries and deaths per group. Mean length of stay is derived afterwards
// from the grouped totals. Rows are returned sorted ascending by key.
func Aggregate(records []discharge.Record, keys []discharge.Field) (*metrics.Table, error) {
	if len(records) == 0 {
		return nil, core.NewEmptyInputError("discharge records")
	}
	if len(keys) == 0 {
		return nil, core.NewValidationError("grouping keys", "at least one key is required")
	}
	for _, k := range keys {
		if !discharge.IsDimension(k) {
			return nil, core.NewUnknownFieldError(string(k))
		}
	}

	index := make(map[string]int)
	var rows []metrics.Row

	for i := range records {
		rec := &records[i]
		key, err := rec.KeyOf(keys)
		if err != nil {
			return nil, err
		}

		enc := key.Encode()
		pos, ok := index[enc]
		if !ok {
			pos = len(rows)
			index[enc] = pos
			rows = append(rows, metrics.Row{Key: key})
		}

		row := &rows[pos]
		row.Count++
		row.TotalDays += rec.StayDays
		if rec.Surgery {
			row.Surgeries++
		}
		if rec.Died {
			row.Deaths++
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return discharge.CompareKeys(rows[i].Key, rows[j].Key) < 0
	})

	table := &metrics.Table{
		Keys: append([]discharge.Field(nil), keys...),
		Rows: rows,
	}
	WithMeanDays(table)

	return table, nil
}

// WithMeanDays sets MeanDays = TotalDays / Count on every row, leaving it
// nil for rows without discharges.
func WithMeanDays(t *metrics.Table) {
	for i := range t.Rows {
		r := &t.Rows[i]
		if r.Count == 0 {
			r.MeanDays = nil
			continue
		}
		mean := float64(r.TotalDays) / float64(r.Count)
		r.MeanDays = &mean
	}
}

// FilterRecords keeps the records for which keep returns true.
func FilterRecords(records []discharge.Record, keep func(*discharge.Record) bool) []discharge.Record {
	out := make([]discharge.Record, 0, len(records))
	for i := range records {
		if keep(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

// RestrictToHospitalDiagnoses keeps only the discharges whose principal
// diagnosis was also discharged by hospital, so peers are compared on the
// case mix the hospital actually treats.
func RestrictToHospitalDiagnoses(records []discharge.Record, hospital discharge.HospitalCode) []discharge.Record {
	diagnoses := make(map[string]struct{})
	for i := range records {
		if records[i].HospitalCode == hospital {
			diagnoses[records[i].Diagnosis] = struct{}{}
		}
	}
	return FilterRecords(records, func(r *discharge.Record) bool {
		_, ok := diagnoses[r.Diagnosis]
		return ok
	})
}
