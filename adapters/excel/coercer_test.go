package excel

import (
	"testing"
	"time"

	"egresos/domain/core"
	"egresos/domain/discharge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deisRow(overrides map[string]string) RawRow {
	row := RawRow{
		"ANO_EGRESO":                        "2019",
		"ESTABLECIMIENTO_SALUD":             "112103",
		"GLOSA_ESTABLECIMIENTO_SALUD":       "Instituto Nacional del Tórax",
		"PERTENENCIA_ESTABLECIMIENTO_SALUD": "Pertenecientes al Sistema Nacional de Servicios de Salud, SNSS",
		"SEXO":                              "2",
		"EDAD_A_OS":                         "64",
		"PREVISION":                         "1",
		"GLOSA_REGION_RESIDENCIA":           "Del Libertador B. O'Higgins",
		"GLOSA_COMUNA_RESIDENCIA":           "Rancagua",
		"DIAS_ESTADA":                       "5",
		"CONDICION_EGRESO":                  "1",
		"INTERV_Q":                          "2",
		"DIAG1":                             "j189",
		"FECHA_EGRESO":                      "2019-03-04",
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func deisSheet(rows ...RawRow) *Sheet {
	headers := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		headers = append(headers, k)
	}
	return &Sheet{Headers: headers, Rows: rows, Source: "test.csv"}
}

func TestCoerceRow(t *testing.T) {
	c := NewCoercer(DefaultCoercionConfig())

	rec, err := c.CoerceRow(deisRow(nil))
	require.NoError(t, err)

	assert.Equal(t, 2019, rec.Year)
	assert.Equal(t, discharge.HospitalCode(112103), rec.HospitalCode)
	assert.Equal(t, "J189", rec.Diagnosis)
	assert.Equal(t, 5, rec.StayDays)
	assert.False(t, rec.Surgery)
	assert.False(t, rec.Died)
	assert.Equal(t, "Mujer", rec.Sex)
	assert.Equal(t, "FONASA", rec.Insurance)
	assert.Equal(t, "del Libertador General Bernardo O'Higgins", rec.Region)
	assert.Equal(t, 64, rec.Age)
	assert.Equal(t, "[60, 70)", rec.AgeBand)
	assert.Equal(t, time.Date(2019, 3, 4, 0, 0, 0, 0, time.UTC), rec.DischargeDate)
}

func TestCoerceRowCodeBooks(t *testing.T) {
	c := NewCoercer(DefaultCoercionConfig())

	tests := []struct {
		name    string
		row     map[string]string
		surgery bool
		died    bool
	}{
		{"surgery", map[string]string{"INTERV_Q": "1"}, true, false},
		{"death", map[string]string{"CONDICION_EGRESO": "2"}, false, true},
		{"float codes", map[string]string{"INTERV_Q": "1.0", "CONDICION_EGRESO": "2.0"}, true, true},
		{"blank flags", map[string]string{"INTERV_Q": "", "CONDICION_EGRESO": ""}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := c.CoerceRow(deisRow(tt.row))
			require.NoError(t, err)
			assert.Equal(t, tt.surgery, rec.Surgery)
			assert.Equal(t, tt.died, rec.Died)
		})
	}
}

func TestCoerceRowLenientFields(t *testing.T) {
	c := NewCoercer(DefaultCoercionConfig())

	rec, err := c.CoerceRow(deisRow(map[string]string{
		"SEXO":         "7",
		"EDAD_A_OS":    "",
		"FECHA_EGRESO": "sometime",
		"ANO_EGRESO":   "2019.0",
	}))
	require.NoError(t, err)
	assert.Equal(t, "7", rec.Sex)
	assert.Equal(t, -1, rec.Age)
	assert.Empty(t, rec.AgeBand)
	assert.True(t, rec.DischargeDate.IsZero())
	assert.Equal(t, 2019, rec.Year)
}

func TestCoerceRowRejects(t *testing.T) {
	c := NewCoercer(DefaultCoercionConfig())

	tests := []struct {
		name string
		row  map[string]string
	}{
		{"year", map[string]string{"ANO_EGRESO": "dos mil"}},
		{"hospital", map[string]string{"ESTABLECIMIENTO_SALUD": "0"}},
		{"diagnosis", map[string]string{"DIAG1": ""}},
		{"stay", map[string]string{"DIAS_ESTADA": "-3"}},
		{"fractional stay", map[string]string{"DIAS_ESTADA": "2.5"}},
		{"surgery code", map[string]string{"INTERV_Q": "9"}},
		{"condition code", map[string]string{"CONDICION_EGRESO": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CoerceRow(deisRow(tt.row))
			assert.Error(t, err)
		})
	}
}

func TestCoerceSkipsAndCounts(t *testing.T) {
	c := NewCoercer(DefaultCoercionConfig())
	sheet := deisSheet(
		deisRow(nil),
		deisRow(map[string]string{"DIAS_ESTADA": "n/a"}),
		deisRow(map[string]string{"ESTABLECIMIENTO_SALUD": "111195"}),
	)

	records, report, err := c.Coerce(sheet)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 2, report.Kept)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Reasons["DIAS_ESTADA"])
	assert.Equal(t, "DIAS_ESTADA=1", report.Summary())
}

func TestCoerceErrors(t *testing.T) {
	c := NewCoercer(DefaultCoercionConfig())

	t.Run("missing column", func(t *testing.T) {
		sheet := &Sheet{Headers: []string{"ANO_EGRESO", "DIAG1"}, Rows: []RawRow{{"ANO_EGRESO": "2019"}}}
		_, _, err := c.Coerce(sheet)
		assert.ErrorIs(t, err, core.ErrUnknownField)
	})

	t.Run("nothing usable", func(t *testing.T) {
		sheet := deisSheet(deisRow(map[string]string{"DIAG1": ""}))
		_, _, err := c.Coerce(sheet)
		assert.ErrorIs(t, err, core.ErrEmptyInput)
	})

	t.Run("mostly malformed", func(t *testing.T) {
		sheet := deisSheet(
			deisRow(nil),
			deisRow(map[string]string{"DIAG1": ""}),
			deisRow(map[string]string{"DIAG1": ""}),
		)
		_, report, err := c.Coerce(sheet)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 of 3 rows are malformed")
		assert.Equal(t, 2, report.Reasons["DIAG1"])
	})
}
