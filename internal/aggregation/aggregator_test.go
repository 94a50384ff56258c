package aggregation

import (
	"testing"

	"egresos/domain/core"
	"egresos/domain/discharge"
	"egresos/domain/metrics"
	"egresos/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var padreHurtado = testkit.Hospital{Code: 111195, Name: "Hospital Padre Hurtado", Ownership: "public"}

func findRow(t *testing.T, table *metrics.Table, key discharge.Key) metrics.Row {
	t.Helper()
	for _, r := range table.Rows {
		if discharge.CompareKeys(r.Key, key) == 0 {
			return r
		}
	}
	t.Fatalf("row %s not found", key)
	return metrics.Row{}
}

func TestAggregateScenario(t *testing.T) {
	records := testkit.Concat(
		testkit.Cell(padreHurtado, 2019, "J189", 10, 3, 1, 2, 5, 8),
		testkit.Cell(padreHurtado, 2019, "K359", 4, 4, 0, 3),
	)

	table, err := Aggregate(records, discharge.DefaultGrouping())
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	row := findRow(t, table, discharge.Key{
		discharge.Int(2019), discharge.Int(111195), discharge.Str("Hospital Padre Hurtado"), discharge.Str("J189"),
	})

	// stays cycle 2,5,8 over ten records: 2+5+8 three times plus 2
	assert.Equal(t, 10, row.Count)
	assert.Equal(t, 47, row.TotalDays)
	assert.Equal(t, 3, row.Surgeries)
	assert.Equal(t, 1, row.Deaths)
	require.NotNil(t, row.MeanDays)
	assert.InDelta(t, 4.7, *row.MeanDays, 1e-12)
}

func TestAggregateMatchesRawCounts(t *testing.T) {
	records := testkit.GenerateDischarges(testkit.DefaultGeneratorConfig())

	table, err := Aggregate(records, discharge.DefaultGrouping())
	require.NoError(t, err)

	total := 0
	for _, row := range table.Rows {
		code, _ := row.Key[1].Int64()
		diag := row.Key[3].String()
		year, _ := row.Key[0].Int64()

		count, surgeries := 0, 0
		for _, r := range records {
			if int64(r.HospitalCode) == code && r.Diagnosis == diag && int64(r.Year) == year {
				count++
				if r.Surgery {
					surgeries++
				}
			}
		}
		assert.Equal(t, count, row.Count, "count for %s", row.Key)
		assert.Equal(t, surgeries, row.Surgeries, "surgeries for %s", row.Key)
		total += row.Count
	}
	assert.Equal(t, len(records), total)
}

func TestAggregateSortedByKey(t *testing.T) {
	records := testkit.GenerateDischarges(testkit.DefaultGeneratorConfig())

	table, err := Aggregate(records, []discharge.Field{discharge.FieldDiagnosis, discharge.FieldYear})
	require.NoError(t, err)

	for i := 1; i < table.Len(); i++ {
		assert.Negative(t, discharge.CompareKeys(table.Rows[i-1].Key, table.Rows[i].Key))
	}
}

func TestAggregateErrors(t *testing.T) {
	_, err := Aggregate(nil, discharge.DefaultGrouping())
	assert.ErrorIs(t, err, core.ErrEmptyInput)

	records := testkit.Cell(padreHurtado, 2019, "J189", 1, 0, 0)
	_, err = Aggregate(records, []discharge.Field{discharge.FieldStayDays})
	assert.ErrorIs(t, err, core.ErrUnknownField)

	_, err = Aggregate(records, nil)
	assert.Error(t, err)
}

func TestWithMeanDaysLeavesEmptyGroupsUndefined(t *testing.T) {
	table := &metrics.Table{
		Keys: []discharge.Field{discharge.FieldYear},
		Rows: []metrics.Row{{Key: discharge.Key{discharge.Int(2019)}, Count: 0, TotalDays: 0}},
	}
	WithMeanDays(table)
	assert.Nil(t, table.Rows[0].MeanDays)

	_, ok := table.Rows[0].Variable(metrics.MeanDays)
	assert.False(t, ok)
}

func TestRestrictToHospitalDiagnoses(t *testing.T) {
	other := testkit.Hospital{Code: 900201, Name: "Clinica", Ownership: "private"}
	records := testkit.Concat(
		testkit.Cell(padreHurtado, 2019, "J189", 2, 0, 0),
		testkit.Cell(other, 2019, "J189", 3, 0, 0),
		testkit.Cell(other, 2019, "Z000", 5, 0, 0),
	)

	got := RestrictToHospitalDiagnoses(records, 111195)
	assert.Len(t, got, 5)
	for _, r := range got {
		assert.Equal(t, "J189", r.Diagnosis)
	}
}
