package excel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

const deisHeader = "ANO_EGRESO;ESTABLECIMIENTO_SALUD;GLOSA_ESTABLECIMIENTO_SALUD;PERTENENCIA_ESTABLECIMIENTO_SALUD;SEXO;EDAD_A_OS;PREVISION;GLOSA_REGION_RESIDENCIA;DIAS_ESTADA;CONDICION_EGRESO;INTERV_Q;DIAG1;FECHA_EGRESO\n"

func writeLatin1(t *testing.T, path, content string) {
	t.Helper()
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))
}

func TestReadLatin1CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "egresos_2019.csv")
	writeLatin1(t, path, deisHeader+
		"2019;112103;Instituto Nacional del Tórax;Pertenecientes al SNSS;1;64;1;Metropolitana de Santiago;5;1;2;J189;2019-03-04\n")

	sheet, err := NewDataReader(path, DefaultReaderConfig()).ReadData()
	require.NoError(t, err)

	assert.Len(t, sheet.Headers, 13)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "Instituto Nacional del Tórax", sheet.Rows[0]["GLOSA_ESTABLECIMIENTO_SALUD"])
	assert.Equal(t, "J189", sheet.Rows[0]["DIAG1"])
	assert.Equal(t, path, sheet.Source)
}

func TestReadUTF8CSVWithComma(t *testing.T) {
	path := filepath.Join(t.TempDir(), "egresos.csv")
	require.NoError(t, os.WriteFile(path, []byte("\uFEFFANO_EGRESO, DIAG1 \n2019,J189\n2019,K359\n"), 0o644))

	sheet, err := NewDataReader(path, ReaderConfig{Delimiter: ',', Encoding: EncodingUTF8}).ReadData()
	require.NoError(t, err)
	assert.Equal(t, []string{"ANO_EGRESO", "DIAG1"}, sheet.Headers)
	assert.Len(t, sheet.Rows, 2)
	assert.Equal(t, "K359", sheet.Rows[1]["DIAG1"])
}

func TestReadXLSXFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "egresos.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Egresos"))
	require.NoError(t, f.SetSheetRow("Egresos", "A1", &[]interface{}{"ANO_EGRESO", "DIAG1"}))
	require.NoError(t, f.SetSheetRow("Egresos", "A2", &[]interface{}{2019, "J189"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	sheet, err := NewDataReader(path, DefaultReaderConfig()).ReadData()
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "2019", sheet.Rows[0]["ANO_EGRESO"])
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewDataReader(filepath.Join(dir, "missing.csv"), DefaultReaderConfig()).ReadData()
	assert.Error(t, err)

	headerOnly := filepath.Join(dir, "header.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte("ANO_EGRESO;DIAG1\n"), 0o644))
	_, err = NewDataReader(headerOnly, DefaultReaderConfig()).ReadData()
	assert.Error(t, err)
}

func TestReadPathDirectory(t *testing.T) {
	dir := t.TempDir()
	writeLatin1(t, filepath.Join(dir, "b_2019.csv"), "ANO_EGRESO;DIAG1\n2019;J189\n")
	writeLatin1(t, filepath.Join(dir, "a_2018.csv"), "ANO_EGRESO;DIAG1\n2018;J189\n2018;K359\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	sheets, err := ReadPath(dir, DefaultReaderConfig())
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, filepath.Join(dir, "a_2018.csv"), sheets[0].Source)
	assert.Len(t, sheets[0].Rows, 2)
	assert.Len(t, sheets[1].Rows, 1)

	_, err = ReadPath(t.TempDir(), DefaultReaderConfig())
	assert.Error(t, err)
}
