// Package engine runs the aggregate, partition, rank and assemble pipeline.
package engine

import (
	"context"
	"fmt"
	"time"

	"egresos/domain/core"
	"egresos/domain/discharge"
	"egresos/domain/metrics"
	"egresos/domain/run"
	"egresos/domain/strata"
	"egresos/internal"
	"egresos/internal/aggregation"
	"egresos/internal/partition"
	"egresos/internal/ranking"
	"egresos/internal/report"

	"golang.org/x/sync/errgroup"
)

// Options configures a ranking run.
type Options struct {
	Hospital     discharge.HospitalCode
	Strata       strata.Config
	GroupKeys    []discharge.Field
	RankingKeys  []discharge.Field
	IdentityKeys []discharge.Field // defaults to GroupKeys
	Variables    []metrics.Variable
	Parallelism  int
	ZeroTotal    ranking.ZeroTotalPolicy
	// RestrictToHospitalDiagnoses aggregates only the diagnoses the hospital
	// of interest discharged. Strata are still derived from the full table.
	RestrictToHospitalDiagnoses bool
}

// DefaultOptions ranks count, mean stay, surgeries and deaths per year and
// diagnosis against the built-in strata.
func DefaultOptions(hospital discharge.HospitalCode) Options {
	return Options{
		Hospital:                    hospital,
		Strata:                      strata.DefaultConfig(),
		GroupKeys:                   discharge.DefaultGrouping(),
		RankingKeys:                 discharge.DefaultRankingGroup(),
		Variables:                   metrics.DefaultRankVariables(),
		Parallelism:                 1,
		ZeroTotal:                   ranking.ZeroTotalFail,
		RestrictToHospitalDiagnoses: true,
	}
}

// Result bundles everything a run produced.
type Result struct {
	Table    *report.WideTable
	Metrics  *metrics.Table
	Strata   strata.Map
	Passes   []*ranking.Result
	Manifest *run.Manifest
}

// Engine executes ranking runs. It holds no state between runs.
type Engine struct {
	opts   Options
	logger *internal.Logger
}

// New creates an engine; a nil logger uses internal.DefaultLogger.
func New(opts Options, logger *internal.Logger) *Engine {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if len(opts.IdentityKeys) == 0 {
		opts.IdentityKeys = opts.GroupKeys
	}
	return &Engine{opts: opts, logger: logger}
}

type pass struct {
	stratum  strata.Name
	variable metrics.Variable
}

// Run computes the wide ranking table for the national records.
func (e *Engine) Run(ctx context.Context, national []discharge.Record) (*Result, error) {
	start := time.Now()
	opts := e.opts

	if len(opts.Variables) == 0 {
		return nil, core.NewValidationError("variables", "at least one variable to rank is required")
	}

	strataMap, err := partition.Partition(national, opts.Hospital, opts.Strata)
	if err != nil {
		return nil, err
	}
	for _, name := range strataMap.Names() {
		codes, _ := strataMap.Codes(name)
		e.logger.Debug("[Engine] stratum %s: %d hospitals", name, codes.Len())
	}

	records := national
	if opts.RestrictToHospitalDiagnoses {
		records = aggregation.RestrictToHospitalDiagnoses(national, opts.Hospital)
		e.logger.Info("[Engine] restricted %d national discharges to %d sharing diagnoses with hospital %d",
			len(national), len(records), opts.Hospital)
	}

	table, err := aggregation.Aggregate(records, opts.GroupKeys)
	if err != nil {
		return nil, err
	}
	e.logger.Info("[Engine] aggregated %d discharges into %d rows", len(records), table.Len())

	var passes []pass
	for _, v := range opts.Variables {
		for _, name := range strataMap.Names() {
			passes = append(passes, pass{stratum: name, variable: v})
		}
	}

	results := make([]*ranking.Result, len(passes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)

	for i, p := range passes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			codes, _ := strataMap.Codes(p.stratum)
			res, err := ranking.RankStratum(table, p.stratum, codes, opts.RankingKeys, p.variable,
				ranking.Options{ZeroTotal: opts.ZeroTotal})
			if err != nil {
				return err
			}
			e.logger.Trace("[Engine] %s: %d rows in %d subgroups", res.RankColumn(), len(res.Rows), res.Subgroups)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	wide, err := report.Assemble(table, results, opts.IdentityKeys)
	if err != nil {
		return nil, err
	}
	if wide.Len() != table.Len() {
		return nil, fmt.Errorf("assembled %d rows from %d aggregated rows", wide.Len(), table.Len())
	}

	manifest := e.manifest(national, strataMap, wide.Len())
	e.logger.Info("[Engine] run %s: %d passes, %d rows, %d columns in %s",
		manifest.RunID, len(passes), wide.Len(), len(wide.Header()), time.Since(start).Round(time.Millisecond))

	return &Result{
		Table:    wide,
		Metrics:  table,
		Strata:   strataMap,
		Passes:   results,
		Manifest: manifest,
	}, nil
}

func (e *Engine) manifest(national []discharge.Record, m strata.Map, outputRows int) *run.Manifest {
	nationalCodes, _ := m.Codes(strata.National)
	codes := make([]int64, 0, nationalCodes.Len())
	for _, c := range nationalCodes.Sorted() {
		codes = append(codes, int64(c))
	}

	sizes := make(map[string]int)
	for name, n := range m.Sizes() {
		sizes[string(name)] = n
	}

	variables := make([]string, len(e.opts.Variables))
	for i, v := range e.opts.Variables {
		variables[i] = string(v)
	}

	return run.NewManifest(
		core.NewRunID(),
		int64(e.opts.Hospital),
		e.opts.Strata.ReferenceVersion,
		codes,
		sizes,
		variables,
		discharge.FieldNames(e.opts.GroupKeys),
		discharge.FieldNames(e.opts.RankingKeys),
		len(national),
		outputRows,
	)
}
