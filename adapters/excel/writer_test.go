package excel

import (
	"context"
	"path/filepath"
	"testing"

	"egresos/internal"
	"egresos/internal/engine"
	"egresos/internal/profiling"
	"egresos/internal/ranking"
	"egresos/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func rankedFixture(t *testing.T) (*engine.Result, []profiling.StaySummary) {
	t.Helper()
	records := testkit.GenerateDischarges(testkit.DefaultGeneratorConfig())
	opts := engine.DefaultOptions(112103)
	opts.ZeroTotal = ranking.ZeroTotalNull
	res, err := engine.New(opts, internal.NewLogger(internal.LogLevelError)).Run(context.Background(), records)
	require.NoError(t, err)
	stays, err := profiling.NewStayProfiler().Profile(records, 112103)
	require.NoError(t, err)
	return res, stays
}

func TestWriteWorkbook(t *testing.T) {
	res, stays := rankedFixture(t)
	path := filepath.Join(t.TempDir(), "ranking.xlsx")

	err := WriteWorkbook(path, Workbook{
		Table:    res.Table,
		Hospital: 112103,
		ICD10:    ICD10{"J189": "Neumonía, no especificada"},
		Stays:    stays,
		Manifest: res.Manifest,
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetRanking, SheetHospital, SheetStays, SheetRun}, f.GetSheetList())

	rows, err := f.GetRows(SheetRanking)
	require.NoError(t, err)
	assert.Len(t, rows, res.Table.Len()+1)
	assert.Equal(t, res.Table.Header(), rows[0])

	hospital, err := f.GetRows(SheetHospital)
	require.NoError(t, err)
	assert.Len(t, hospital, len(res.Table.RowsOf(112103))+1)
	header := hospital[0]
	assert.Equal(t, "GLOSA_DIAG1", header[len(header)-1])
	assert.Contains(t, header, "rank_grd_count")
	assert.NotContains(t, header, "pct_grd_count")
	for _, row := range hospital[1:] {
		assert.Equal(t, "112103", row[1])
		if row[3] == "J189" {
			assert.Equal(t, "Neumonía, no especificada", row[len(row)-1])
		}
	}

	stayRows, err := f.GetRows(SheetStays)
	require.NoError(t, err)
	assert.Len(t, stayRows, len(stays)+1)

	runRows, err := f.GetRows(SheetRun)
	require.NoError(t, err)
	assert.Equal(t, []string{"run_id", res.Manifest.RunID.String()}, runRows[1])
	assert.Equal(t, "stratum_nacionales", runRows[9][0])
}

func TestWriteWorkbookWithoutOptionalSheets(t *testing.T) {
	res, _ := rankedFixture(t)
	path := filepath.Join(t.TempDir(), "ranking.xlsx")

	require.NoError(t, WriteWorkbook(path, Workbook{Table: res.Table, Hospital: 112103}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetRanking, SheetHospital}, f.GetSheetList())
}

func TestWriteWorkbookRequiresTable(t *testing.T) {
	assert.Error(t, WriteWorkbook(filepath.Join(t.TempDir(), "x.xlsx"), Workbook{}))
}
