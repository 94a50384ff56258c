// Package ranking ranks aggregated hospital metrics within a stratum.
package ranking

import (
	"fmt"
	"sort"

	"egresos/domain/core"
	"egresos/domain/discharge"
	"egresos/domain/metrics"
	"egresos/domain/strata"

	"gonum.org/v1/gonum/floats"
)

// ZeroTotalPolicy decides what happens when a subgroup's variable sums to zero.
type ZeroTotalPolicy int

const (
	// ZeroTotalFail aborts the pass with ErrEmptySubgroup.
	ZeroTotalFail ZeroTotalPolicy = iota
	// ZeroTotalNull leaves the percentage of every row of the subgroup undefined.
	ZeroTotalNull
)

// Options tunes a ranking pass.
type Options struct {
	ZeroTotal ZeroTotalPolicy
}

// RankedRow is an aggregated row annotated for one (stratum, variable) pass.
type RankedRow struct {
	Key        discharge.Key
	Value      float64
	Rank       int
	Percentage *float64
	Total      float64
}

// Result is the output of one stratum pass.
type Result struct {
	Stratum   strata.Name
	Variable  metrics.Variable
	Keys      []discharge.Field // identity of Rows[i].Key
	GroupKeys []discharge.Field // effective ranking subgroup for this pass
	Subgroups int
	Rows      []RankedRow
}

// ColumnName builds the suffixed output column name, e.g. rank_grd_count.
func ColumnName(prefix string, s strata.Name, v metrics.Variable) string {
	return fmt.Sprintf("%s_%s_%s", prefix, s, v)
}

func (r *Result) RankColumn() string  { return ColumnName("rank", r.Stratum, r.Variable) }
func (r *Result) PctColumn() string   { return ColumnName("pct", r.Stratum, r.Variable) }
func (r *Result) TotalColumn() string { return ColumnName("total", r.Stratum, r.Variable) }

// SubgroupKeys returns a fresh key list for a stratum pass. The internal
// stratum only holds the hospital of interest, so its rows are ranked without
// the diagnosis dimension. keys is never modified.
func SubgroupKeys(stratum strata.Name, keys []discharge.Field) []discharge.Field {
	out := make([]discharge.Field, 0, len(keys))
	for _, k := range keys {
		if stratum == strata.Internal && k == discharge.FieldDiagnosis {
			continue
		}
		out = append(out, k)
	}
	return out
}

type entry struct {
	row   *metrics.Row
	group discharge.Key
	value float64
}

// RankStratum ranks the rows of table whose hospital is in codes.
//
// Rows are stably sorted by the subgroup keys and then the variable, all
// descending. Within each run of equal subgroup keys ranks are 1..N in sorted
// order, so ties keep their input order. total is the subgroup sum of the
// variable and percentage is value/total.
func RankStratum(
	table *metrics.Table,
	stratum strata.Name,
	codes strata.CodeSet,
	groupKeys []discharge.Field,
	variable metrics.Variable,
	opts Options,
) (*Result, error) {
	if _, err := metrics.ParseVariable(string(variable)); err != nil {
		return nil, err
	}

	codePos := table.Index(discharge.FieldHospitalCode)
	if codePos < 0 {
		return nil, core.NewUnknownFieldError(string(discharge.FieldHospitalCode))
	}

	keys := SubgroupKeys(stratum, groupKeys)
	positions, err := table.Positions(keys)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(table.Rows))
	for i := range table.Rows {
		row := &table.Rows[i]
		code, _ := row.Key[codePos].Int64()
		if !codes.Contains(discharge.HospitalCode(code)) {
			continue
		}
		value, ok := row.Variable(variable)
		if !ok {
			return nil, core.NewUndefinedMetricError(string(stratum), string(variable), row.Key.String())
		}
		entries = append(entries, entry{row: row, group: row.Key.Project(positions), value: value})
	}

	if len(entries) == 0 {
		return nil, core.NewEmptySubgroupError(string(stratum), string(variable), "",
			fmt.Sprintf("none of the %d stratum hospitals has aggregated rows", codes.Len()))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := discharge.CompareKeys(entries[i].group, entries[j].group); c != 0 {
			return c > 0
		}
		return entries[i].value > entries[j].value
	})

	result := &Result{
		Stratum:   stratum,
		Variable:  variable,
		Keys:      table.Keys,
		GroupKeys: keys,
		Rows:      make([]RankedRow, 0, len(entries)),
	}

	for start := 0; start < len(entries); {
		end := start + 1
		for end < len(entries) && discharge.CompareKeys(entries[end].group, entries[start].group) == 0 {
			end++
		}

		values := make([]float64, end-start)
		for i := start; i < end; i++ {
			values[i-start] = entries[i].value
		}
		total := floats.Sum(values)

		if total == 0 && opts.ZeroTotal == ZeroTotalFail {
			return nil, core.NewEmptySubgroupError(string(stratum), string(variable),
				entries[start].group.String(), "subgroup total is zero")
		}

		for i := start; i < end; i++ {
			ranked := RankedRow{
				Key:   entries[i].row.Key,
				Value: entries[i].value,
				Rank:  i - start + 1,
				Total: total,
			}
			if total != 0 {
				pct := entries[i].value / total
				ranked.Percentage = &pct
			}
			result.Rows = append(result.Rows, ranked)
		}

		result.Subgroups++
		start = end
	}

	return result, nil
}
