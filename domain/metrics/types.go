package metrics

import (
	"strings"

	"egresos/domain/core"
	"egresos/domain/discharge"
)

// Variable is a per-group metric that can be ranked.
type Variable string

const (
	Count     Variable = "count"
	TotalDays Variable = "total_days"
	MeanDays  Variable = "mean_days"
	Surgeries Variable = "surgeries"
	Deaths    Variable = "deaths"
)

// Columns lists the metric columns of an aggregated table, in output order.
func Columns() []Variable {
	return []Variable{Count, TotalDays, MeanDays, Surgeries, Deaths}
}

// DefaultRankVariables are the variables ranked by a default run.
func DefaultRankVariables() []Variable {
	return []Variable{Count, MeanDays, Surgeries, Deaths}
}

// ParseVariable validates a variable name.
func ParseVariable(s string) (Variable, error) {
	v := Variable(strings.TrimSpace(s))
	switch v {
	case Count, TotalDays, MeanDays, Surgeries, Deaths:
		return v, nil
	}
	return "", core.NewInvalidVariableError(s)
}

// ParseVariables validates a list of variable names, rejecting duplicates.
func ParseVariables(names []string) ([]Variable, error) {
	seen := make(map[Variable]bool, len(names))
	out := make([]Variable, 0, len(names))
	for _, n := range names {
		v, err := ParseVariable(n)
		if err != nil {
			return nil, err
		}
		if seen[v] {
			return nil, core.NewInvalidVariableError(n + " (duplicate)")
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// Row holds the summary metrics of one group of discharges.
//
// MeanDays is TotalDays/Count computed after grouping, and is nil when
// Count is zero.
type Row struct {
	Key       discharge.Key
	Count     int
	TotalDays int
	MeanDays  *float64
	Surgeries int
	Deaths    int
}

// Variable returns the row's value for v; ok is false when the value is undefined.
func (r *Row) Variable(v Variable) (float64, bool) {
	switch v {
	case Count:
		return float64(r.Count), true
	case TotalDays:
		return float64(r.TotalDays), true
	case MeanDays:
		if r.MeanDays == nil {
			return 0, false
		}
		return *r.MeanDays, true
	case Surgeries:
		return float64(r.Surgeries), true
	case Deaths:
		return float64(r.Deaths), true
	}
	return 0, false
}

// Table is an aggregated metrics table. Row keys are aligned with Keys.
type Table struct {
	Keys []discharge.Field
	Rows []Row
}

// Index returns the column position of a key field, or -1.
func (t *Table) Index(f discharge.Field) int {
	return discharge.IndexOf(t.Keys, f)
}

// Positions resolves fields to key positions.
func (t *Table) Positions(fields []discharge.Field) ([]int, error) {
	pos := make([]int, len(fields))
	for i, f := range fields {
		p := t.Index(f)
		if p < 0 {
			return nil, core.NewUnknownFieldError(string(f))
		}
		pos[i] = p
	}
	return pos, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}
