package metrics

import (
	"testing"

	"egresos/domain/core"
	"egresos/domain/discharge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariables(t *testing.T) {
	vars, err := ParseVariables([]string{"count", " mean_days "})
	require.NoError(t, err)
	assert.Equal(t, []Variable{Count, MeanDays}, vars)

	_, err = ParseVariables([]string{"count", "count"})
	assert.ErrorIs(t, err, core.ErrInvalidVariable)

	_, err = ParseVariable("n_egresos")
	assert.ErrorIs(t, err, core.ErrInvalidVariable)
}

func TestRowVariable(t *testing.T) {
	mean := 4.7
	row := Row{Count: 10, TotalDays: 47, MeanDays: &mean, Surgeries: 3, Deaths: 1}

	for v, want := range map[Variable]float64{
		Count: 10, TotalDays: 47, MeanDays: 4.7, Surgeries: 3, Deaths: 1,
	} {
		got, ok := row.Variable(v)
		assert.True(t, ok, v)
		assert.Equal(t, want, got, v)
	}

	empty := Row{}
	_, ok := empty.Variable(MeanDays)
	assert.False(t, ok)
	_, ok = row.Variable("other")
	assert.False(t, ok)
}

func TestTablePositions(t *testing.T) {
	table := &Table{Keys: discharge.DefaultGrouping()}

	pos, err := table.Positions(discharge.DefaultRankingGroup())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, pos)

	_, err = table.Positions([]discharge.Field{discharge.FieldSex})
	assert.ErrorIs(t, err, core.ErrUnknownField)
	assert.Equal(t, -1, table.Index(discharge.FieldRegion))
}
