package excel

import (
	"fmt"
	"time"

	"egresos/domain/discharge"
	"egresos/domain/run"
	"egresos/domain/strata"
	"egresos/internal/profiling"
	"egresos/internal/report"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names
const (
	SheetRanking  = "ranking"
	SheetHospital = "hospital"
	SheetStays    = "estadias"
	SheetRun      = "run"
)

// Workbook gathers what WriteWorkbook lays out.
type Workbook struct {
	Table    *report.WideTable
	Hospital discharge.HospitalCode
	ICD10    ICD10 // optional
	Stays    []profiling.StaySummary
	Manifest *run.Manifest
}

// WriteWorkbook saves the ranking workbook: the full wide table, the hospital
// of interest's rows with diagnosis labels, its stay profile and the run manifest.
func WriteWorkbook(path string, wb Workbook) error {
	if wb.Table == nil {
		return fmt.Errorf("workbook has no ranking table")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRanking); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	w := &sheetWriter{f: f, headerStyle: headerStyle}

	if err := w.rankingSheet(wb.Table); err != nil {
		return err
	}
	if err := w.hospitalSheet(wb); err != nil {
		return err
	}
	if len(wb.Stays) > 0 {
		if err := w.staysSheet(wb); err != nil {
			return err
		}
	}
	if wb.Manifest != nil {
		if err := w.runSheet(wb.Manifest); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

type sheetWriter struct {
	f           *excelize.File
	headerStyle int
}

func (w *sheetWriter) header(sheet string, headers []string) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := w.f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := w.f.SetCellStyle(sheet, "A1", last, w.headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := w.f.SetColWidth(sheet, "A", lastCol, 15); err != nil {
		return err
	}
	return w.f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (w *sheetWriter) row(sheet string, n int, values []interface{}) error {
	cell, _ := excelize.CoordinatesToCellName(1, n)
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, n, err)
	}
	return nil
}

func (w *sheetWriter) rankingSheet(t *report.WideTable) error {
	if err := w.header(SheetRanking, t.Header()); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		if err := w.row(SheetRanking, i+2, t.Values(i)); err != nil {
			return err
		}
	}
	return nil
}

// hospitalSheet keeps the key, metric and rank columns of the hospital's rows
// and appends the diagnosis label.
func (w *sheetWriter) hospitalSheet(wb Workbook) error {
	if _, err := w.f.NewSheet(SheetHospital); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	t := wb.Table
	header := t.Header()
	keep := make([]int, 0, len(header))
	for i := range header {
		if i < len(header)-len(t.Columns) {
			keep = append(keep, i)
			continue
		}
		if t.Columns[i-(len(header)-len(t.Columns))].Kind == report.KindRank {
			keep = append(keep, i)
		}
	}

	headers := make([]string, 0, len(keep)+1)
	for _, i := range keep {
		headers = append(headers, header[i])
	}
	diagPos := discharge.IndexOf(t.Keys, discharge.FieldDiagnosis)
	if diagPos >= 0 {
		headers = append(headers, "GLOSA_DIAG1")
	}
	if err := w.header(SheetHospital, headers); err != nil {
		return err
	}

	for n, i := range t.RowsOf(wb.Hospital) {
		values := t.Values(i)
		out := make([]interface{}, 0, len(headers))
		for _, k := range keep {
			out = append(out, values[k])
		}
		if diagPos >= 0 {
			out = append(out, wb.ICD10.Label(t.Rows[i].Key[diagPos].String()))
		}
		if err := w.row(SheetHospital, n+2, out); err != nil {
			return err
		}
	}
	return nil
}

func (w *sheetWriter) staysSheet(wb Workbook) error {
	if _, err := w.f.NewSheet(SheetStays); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	headers := []string{
		string(discharge.FieldYear), string(discharge.FieldDiagnosis), "GLOSA_DIAG1",
		"n", "mean", "std_dev", "min", "p10", "median", "p90", "max", "skewness",
		"long_stays", "national_n", "national_median",
	}
	if err := w.header(SheetStays, headers); err != nil {
		return err
	}
	for i, s := range wb.Stays {
		values := []interface{}{
			s.Year, s.Diagnosis, wb.ICD10.Label(s.Diagnosis),
			s.Count, s.Mean, s.StdDev, s.Min, s.P10, s.Median, s.P90, s.Max, s.Skewness,
			s.LongStays, s.NationalCount, s.NationalMedian,
		}
		if err := w.row(SheetStays, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (w *sheetWriter) runSheet(m *run.Manifest) error {
	if _, err := w.f.NewSheet(SheetRun); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := w.header(SheetRun, []string{"key", "value"}); err != nil {
		return err
	}
	pairs := [][]interface{}{
		{"run_id", m.RunID.String()},
		{"hospital", m.Hospital},
		{"reference_version", m.ReferenceVersion},
		{"input_rows", m.InputRows},
		{"output_rows", m.OutputRows},
		{"cohort_hash", m.CohortHash.String()},
		{"fingerprint", m.Fingerprint.Fingerprint.String()},
		{"created_at", m.CreatedAt.Time().Format(time.RFC3339)},
	}
	for _, name := range strata.Names() {
		if size, ok := m.StrataSizes[string(name)]; ok {
			pairs = append(pairs, []interface{}{"stratum_" + string(name), size})
		}
	}
	for i, p := range pairs {
		if err := w.row(SheetRun, i+2, p); err != nil {
			return err
		}
	}
	return nil
}
