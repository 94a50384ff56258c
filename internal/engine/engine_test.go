package engine

import (
	"context"
	"testing"

	"egresos/domain/core"
	"egresos/domain/discharge"
	"egresos/domain/metrics"
	"egresos/domain/strata"
	"egresos/internal"
	"egresos/internal/ranking"
	"egresos/internal/report"
	"egresos/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	torax        = testkit.Hospital{Code: 112103, Name: "Instituto Nacional del Torax", Ownership: strata.OwnershipPublic}
	padreHurtado = testkit.Hospital{Code: 111195, Name: "Hospital Padre Hurtado", Ownership: strata.OwnershipPublic}
	noe          = testkit.Hospital{Code: 101100, Name: "Hospital Dr. Juan Noe Crevanni", Ownership: strata.OwnershipPublic}
	clinica      = testkit.Hospital{Code: 900201, Name: "Clinica Privada Norte", Ownership: strata.OwnershipPrivate}
)

func quietLogger() *internal.Logger {
	return internal.NewLogger(internal.LogLevelError)
}

func scenario() []discharge.Record {
	return testkit.Concat(
		testkit.Cell(padreHurtado, 2019, "J189", 10, 3, 1, 2, 5, 8),
		testkit.Cell(torax, 2019, "J189", 6, 1, 1, 9),
		testkit.Cell(torax, 2019, "K359", 3, 3, 1, 2),
		testkit.Cell(noe, 2019, "J189", 15, 0, 2, 3),
		testkit.Cell(clinica, 2019, "J189", 50, 10, 1, 1),
	)
}

func rowIndex(t *testing.T, w *report.WideTable, code int64, diag string) int {
	t.Helper()
	codePos := discharge.IndexOf(w.Keys, discharge.FieldHospitalCode)
	diagPos := discharge.IndexOf(w.Keys, discharge.FieldDiagnosis)
	for i, row := range w.Rows {
		c, _ := row.Key[codePos].Int64()
		if c == code && row.Key[diagPos].String() == diag {
			return i
		}
	}
	t.Fatalf("no row for %d/%s", code, diag)
	return -1
}

func cell(t *testing.T, w *report.WideTable, row int, column string) *float64 {
	t.Helper()
	v, ok := w.Cell(row, column)
	require.True(t, ok, "unknown column %s", column)
	return v
}

func TestRunScenario(t *testing.T) {
	eng := New(DefaultOptions(112103), quietLogger())

	res, err := eng.Run(context.Background(), scenario())
	require.NoError(t, err)

	w := res.Table
	assert.Equal(t, 5, w.Len())
	assert.Equal(t, res.Metrics.Len(), w.Len())
	assert.Len(t, res.Passes, len(metrics.DefaultRankVariables())*len(strata.Names()))

	ph := rowIndex(t, w, 111195, "J189")
	assert.Equal(t, 2.0, *cell(t, w, ph, "rank_grd_count"))
	assert.InDelta(t, 10.0/31.0, *cell(t, w, ph, "pct_grd_count"), 1e-12)
	assert.Equal(t, 31.0, *cell(t, w, ph, "total_grd_count"))
	assert.Equal(t, 3.0, *cell(t, w, ph, "rank_nacionales_count"))
	require.NotNil(t, w.Rows[ph].MeanDays)
	assert.InDelta(t, 4.7, *w.Rows[ph].MeanDays, 1e-12)

	// the private clinic is outside the reference and public cohorts
	cl := rowIndex(t, w, 900201, "J189")
	assert.Nil(t, cell(t, w, cl, "rank_grd_count"))
	assert.Nil(t, cell(t, w, cl, "rank_publicos_count"))
	assert.Equal(t, 1.0, *cell(t, w, cl, "rank_nacionales_count"))
	assert.Equal(t, 1.0, *cell(t, w, cl, "rank_privados_count"))

	// interno ranks the hospital's own diagnoses against each other
	j189 := rowIndex(t, w, 112103, "J189")
	k359 := rowIndex(t, w, 112103, "K359")
	assert.Equal(t, 1.0, *cell(t, w, j189, "rank_interno_count"))
	assert.Equal(t, 2.0, *cell(t, w, k359, "rank_interno_count"))
	assert.InDelta(t, 6.0/9.0, *cell(t, w, j189, "pct_interno_count"), 1e-12)
	assert.Nil(t, cell(t, w, ph, "rank_interno_count"))
	assert.Equal(t, 2.0, *cell(t, w, j189, "rank_privados_count"))
}

func TestRunManifest(t *testing.T) {
	records := scenario()
	res, err := New(DefaultOptions(112103), quietLogger()).Run(context.Background(), records)
	require.NoError(t, err)

	m := res.Manifest
	require.NoError(t, m.Validate())
	assert.Equal(t, int64(112103), m.Hospital)
	assert.Equal(t, len(records), m.InputRows)
	assert.Equal(t, res.Table.Len(), m.OutputRows)
	assert.Equal(t, 4, m.StrataSizes[string(strata.National)])
	assert.Equal(t, 3, m.StrataSizes[string(strata.Reference)])
	assert.Equal(t, 2, m.StrataSizes[string(strata.Private)])
	assert.Equal(t, 1, m.StrataSizes[string(strata.Internal)])
	assert.Equal(t, []string{"count", "mean_days", "surgeries", "deaths"}, m.Variables)
	assert.Equal(t, core.ComputeCohortHash([]int64{900201, 112103, 111195, 101100}), m.CohortHash)

	again, err := New(DefaultOptions(112103), quietLogger()).Run(context.Background(), records)
	require.NoError(t, err)
	assert.NotEqual(t, m.RunID, again.Manifest.RunID)
	assert.Equal(t, m.Fingerprint.Fingerprint, again.Manifest.Fingerprint.Fingerprint)
}

func TestRunParallelMatchesSequential(t *testing.T) {
	records := testkit.GenerateDischarges(testkit.DefaultGeneratorConfig())

	opts := DefaultOptions(112103)
	opts.ZeroTotal = ranking.ZeroTotalNull
	opts.Variables = metrics.Columns()

	sequential, err := New(opts, quietLogger()).Run(context.Background(), records)
	require.NoError(t, err)

	opts.Parallelism = 8
	parallel, err := New(opts, quietLogger()).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, sequential.Table.Header(), parallel.Table.Header())
	assert.Equal(t, sequential.Table.Records(), parallel.Table.Records())
}

func TestRunProperties(t *testing.T) {
	records := testkit.GenerateDischarges(testkit.DefaultGeneratorConfig())
	opts := DefaultOptions(112103)
	opts.ZeroTotal = ranking.ZeroTotalNull
	opts.Parallelism = 4

	res, err := New(opts, quietLogger()).Run(context.Background(), records)
	require.NoError(t, err)

	national, _ := res.Strata.Codes(strata.National)
	for _, name := range res.Strata.Names() {
		codes, _ := res.Strata.Codes(name)
		for _, c := range codes.Sorted() {
			assert.True(t, national.Contains(c), "%s code %d not national", name, c)
		}
	}

	for _, pass := range res.Passes {
		sums := map[string]float64{}
		counts := map[string]int{}
		maxRank := map[string]int{}
		positions := make([]int, len(pass.GroupKeys))
		for i, f := range pass.GroupKeys {
			positions[i] = discharge.IndexOf(pass.Keys, f)
		}
		for _, r := range pass.Rows {
			g := r.Key.Project(positions).Encode()
			if r.Percentage != nil {
				sums[g] += *r.Percentage
			}
			counts[g]++
			if r.Rank > maxRank[g] {
				maxRank[g] = r.Rank
			}
			assert.GreaterOrEqual(t, r.Rank, 1)
		}
		for g, n := range counts {
			assert.Equal(t, n, maxRank[g], "%s ranks are not 1..N", pass.RankColumn())
			if sums[g] != 0 {
				assert.InDelta(t, 1.0, sums[g], 1e-9, "%s percentages", pass.PctColumn())
			}
		}
	}
}

func TestRunRestrictsToHospitalDiagnoses(t *testing.T) {
	records := append(scenario(), testkit.Cell(noe, 2019, "P073", 4, 0, 1, 7)...)

	res, err := New(DefaultOptions(112103), quietLogger()).Run(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Table.Len())

	opts := DefaultOptions(112103)
	opts.RestrictToHospitalDiagnoses = false
	opts.ZeroTotal = ranking.ZeroTotalNull
	res, err = New(opts, quietLogger()).Run(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Table.Len())
	// strata come from the full table in both cases
	assert.Equal(t, 4, res.Manifest.StrataSizes[string(strata.National)])
}

func TestRunZeroTotalFails(t *testing.T) {
	records := testkit.Concat(
		testkit.Cell(torax, 2019, "J189", 4, 0, 0, 3),
		testkit.Cell(noe, 2019, "J189", 2, 0, 0, 3),
	)
	opts := DefaultOptions(112103)
	opts.Variables = []metrics.Variable{metrics.Deaths}

	_, err := New(opts, quietLogger()).Run(context.Background(), records)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptySubgroup)

	opts.ZeroTotal = ranking.ZeroTotalNull
	res, err := New(opts, quietLogger()).Run(context.Background(), records)
	require.NoError(t, err)
	row := rowIndex(t, res.Table, 112103, "J189")
	// ties keep the aggregated order, where 101100 precedes 112103
	assert.Equal(t, 2.0, *cell(t, res.Table, row, "rank_nacionales_deaths"))
	assert.Nil(t, cell(t, res.Table, row, "pct_nacionales_deaths"))
}

func TestRunErrors(t *testing.T) {
	t.Run("unknown hospital", func(t *testing.T) {
		_, err := New(DefaultOptions(999999), quietLogger()).Run(context.Background(), scenario())
		assert.ErrorIs(t, err, core.ErrUnknownHospital)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := New(DefaultOptions(112103), quietLogger()).Run(context.Background(), nil)
		assert.ErrorIs(t, err, core.ErrEmptyInput)
	})

	t.Run("no variables", func(t *testing.T) {
		opts := DefaultOptions(112103)
		opts.Variables = nil
		_, err := New(opts, quietLogger()).Run(context.Background(), scenario())
		assert.Error(t, err)
	})

	t.Run("unknown ranking key", func(t *testing.T) {
		opts := DefaultOptions(112103)
		opts.RankingKeys = []discharge.Field{discharge.FieldYear, discharge.FieldSex}
		_, err := New(opts, quietLogger()).Run(context.Background(), scenario())
		assert.ErrorIs(t, err, core.ErrUnknownField)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(DefaultOptions(112103), quietLogger()).Run(ctx, scenario())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
