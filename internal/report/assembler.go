// Package report joins per-stratum ranking passes into one wide table.
package report

import (
	"fmt"
	"strconv"

	"egresos/domain/core"
	"egresos/domain/discharge"
	"egresos/domain/metrics"
	"egresos/domain/strata"
	"egresos/internal/ranking"
)

// ColumnKind distinguishes the three derived columns of a pass.
type ColumnKind string

const (
	KindRank  ColumnKind = "rank"
	KindPct   ColumnKind = "pct"
	KindTotal ColumnKind = "total"
)

// Column is a derived column contributed by one ranking pass.
type Column struct {
	Name     string
	Stratum  strata.Name
	Variable metrics.Variable
	Kind     ColumnKind
}

// WideTable is the aggregated table with every pass's columns attached.
// Row i of the wide table is row i of the base table.
type WideTable struct {
	Keys         []discharge.Field
	IdentityKeys []discharge.Field
	Rows         []metrics.Row
	Columns      []Column

	cells [][]*float64
	index map[string]int
}

// Assemble left-joins every pass result onto base, matching rows on
// identityKeys. Passes contribute columns only: rows missing from a pass get
// null cells and the output always has exactly len(base.Rows) rows.
func Assemble(base *metrics.Table, results []*ranking.Result, identityKeys []discharge.Field) (*WideTable, error) {
	if base == nil {
		return nil, core.NewEmptyInputError("base metrics")
	}
	names := discharge.FieldNames(identityKeys)
	if len(identityKeys) == 0 {
		return nil, core.NewJoinKeyMismatchError("base", names, "no identity keys")
	}

	basePos, err := base.Positions(identityKeys)
	if err != nil {
		return nil, core.NewJoinKeyMismatchError("base", names, err.Error())
	}

	rowIndex := make(map[string]int, len(base.Rows))
	for i := range base.Rows {
		id := base.Rows[i].Key.Project(basePos)
		enc := id.Encode()
		if prev, dup := rowIndex[enc]; dup {
			return nil, core.NewJoinKeyMismatchError("base", names,
				fmt.Sprintf("rows %d and %d share identity [%s]", prev, i, id))
		}
		rowIndex[enc] = i
	}

	wide := &WideTable{
		Keys:         base.Keys,
		IdentityKeys: identityKeys,
		Rows:         base.Rows,
		cells:        make([][]*float64, len(base.Rows)),
		index:        make(map[string]int),
	}

	for _, res := range results {
		source := res.RankColumn()
		resPos := make([]int, len(identityKeys))
		for i, f := range identityKeys {
			p := discharge.IndexOf(res.Keys, f)
			if p < 0 {
				return nil, core.NewJoinKeyMismatchError(source, names,
					fmt.Sprintf("identity key %s missing from pass", f))
			}
			resPos[i] = p
		}

		first := len(wide.Columns)
		for _, col := range []Column{
			{Name: res.RankColumn(), Stratum: res.Stratum, Variable: res.Variable, Kind: KindRank},
			{Name: res.PctColumn(), Stratum: res.Stratum, Variable: res.Variable, Kind: KindPct},
			{Name: res.TotalColumn(), Stratum: res.Stratum, Variable: res.Variable, Kind: KindTotal},
		} {
			if _, exists := wide.index[col.Name]; exists {
				return nil, fmt.Errorf("column %s produced by more than one pass", col.Name)
			}
			wide.index[col.Name] = len(wide.Columns)
			wide.Columns = append(wide.Columns, col)
		}
		for i := range wide.cells {
			wide.cells[i] = append(wide.cells[i], nil, nil, nil)
		}

		seen := make(map[string]bool, len(res.Rows))
		for _, r := range res.Rows {
			id := r.Key.Project(resPos)
			enc := id.Encode()
			if seen[enc] {
				return nil, core.NewJoinKeyMismatchError(source, names,
					fmt.Sprintf("pass has duplicate identity [%s]", id))
			}
			seen[enc] = true

			i, ok := rowIndex[enc]
			if !ok {
				continue
			}
			rank := float64(r.Rank)
			total := r.Total
			wide.cells[i][first] = &rank
			wide.cells[i][first+1] = r.Percentage
			wide.cells[i][first+2] = &total
		}
	}

	return wide, nil
}

// Len returns the number of rows.
func (w *WideTable) Len() int {
	return len(w.Rows)
}

// Cell returns a derived cell. ok is false for unknown columns; a nil value is a null cell.
func (w *WideTable) Cell(row int, column string) (value *float64, ok bool) {
	c, ok := w.index[column]
	if !ok {
		return nil, false
	}
	return w.cells[row][c], true
}

// Header lists key columns, metric columns and derived columns in output order.
func (w *WideTable) Header() []string {
	header := discharge.FieldNames(w.Keys)
	for _, v := range metrics.Columns() {
		header = append(header, string(v))
	}
	for _, c := range w.Columns {
		header = append(header, c.Name)
	}
	return header
}

// Records renders every row as strings aligned with Header. Nulls are empty.
func (w *WideTable) Records() [][]string {
	out := make([][]string, len(w.Rows))
	for i := range w.Rows {
		row := &w.Rows[i]
		rec := make([]string, 0, len(w.Keys)+len(metrics.Columns())+len(w.Columns))
		for _, v := range row.Key {
			rec = append(rec, v.String())
		}
		for _, v := range metrics.Columns() {
			val, ok := row.Variable(v)
			rec = append(rec, formatCell(val, ok))
		}
		for c := range w.Columns {
			cell := w.cells[i][c]
			if cell == nil {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, formatCell(*cell, true))
		}
		out[i] = rec
	}
	return out
}

// Values returns row i aligned with Header: keys as int64 or string, metric
// and derived cells as float64, nulls as nil.
func (w *WideTable) Values(i int) []interface{} {
	row := &w.Rows[i]
	out := make([]interface{}, 0, len(w.Keys)+len(metrics.Columns())+len(w.Columns))
	for _, v := range row.Key {
		if n, ok := v.Int64(); ok {
			out = append(out, n)
		} else {
			out = append(out, v.String())
		}
	}
	for _, v := range metrics.Columns() {
		if val, ok := row.Variable(v); ok {
			out = append(out, val)
		} else {
			out = append(out, nil)
		}
	}
	for _, cell := range w.cells[i] {
		if cell == nil {
			out = append(out, nil)
		} else {
			out = append(out, *cell)
		}
	}
	return out
}

// RowsOf returns the indexes of the rows belonging to a hospital.
func (w *WideTable) RowsOf(hospital discharge.HospitalCode) []int {
	pos := discharge.IndexOf(w.Keys, discharge.FieldHospitalCode)
	if pos < 0 {
		return nil
	}
	var out []int
	for i := range w.Rows {
		if code, ok := w.Rows[i].Key[pos].Int64(); ok && discharge.HospitalCode(code) == hospital {
			out = append(out, i)
		}
	}
	return out
}

func formatCell(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
