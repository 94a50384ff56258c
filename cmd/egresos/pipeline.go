package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"egresos/adapters/excel"
	"egresos/adapters/markdown"
	"egresos/adapters/parquet"
	"egresos/domain/discharge"
	"egresos/domain/metrics"
	"egresos/domain/strata"
	"egresos/internal"
	"egresos/internal/config"
	"egresos/internal/engine"
	"egresos/internal/errors"
	"egresos/internal/partition"
	"egresos/internal/profiling"
	"egresos/internal/ranking"
	"egresos/internal/report"
)

// loadRecords reads and coerces the national discharge table.
func loadRecords(cfg *config.Config) ([]discharge.Record, error) {
	sheets, err := excel.ReadPath(cfg.Input.Path, excel.ReaderConfig{
		Delimiter: cfg.Input.Delimiter,
		Encoding:  cfg.Input.Encoding,
	})
	if err != nil {
		return nil, errors.IngestionError(cfg.Input.Path, err)
	}

	records, rep, err := excel.NewCoercer(excel.DefaultCoercionConfig()).Coerce(sheets...)
	if err != nil {
		return nil, errors.IngestionError(cfg.Input.Path, err)
	}
	internal.DefaultLogger.Info("[Pipeline] %d discharges loaded from %d files (%d rows skipped)",
		len(records), len(sheets), rep.Skipped)
	return records, nil
}

// engineOptions translates the validated configuration.
func engineOptions(cfg *config.Config) (engine.Options, error) {
	strataCfg, err := partition.LoadConfig(cfg.Analysis.StrataFile)
	if err != nil {
		return engine.Options{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	variables, err := metrics.ParseVariables(cfg.Analysis.Variables)
	if err != nil {
		return engine.Options{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	groupKeys, err := discharge.ParseFields(cfg.Analysis.GroupKeys)
	if err != nil {
		return engine.Options{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	rankingKeys, err := discharge.ParseFields(cfg.Analysis.RankingKeys)
	if err != nil {
		return engine.Options{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}

	opts := engine.DefaultOptions(discharge.HospitalCode(cfg.Analysis.Hospital))
	opts.Strata = strataCfg
	opts.Variables = variables
	opts.GroupKeys = groupKeys
	opts.RankingKeys = rankingKeys
	opts.Parallelism = cfg.Analysis.Parallelism
	opts.RestrictToHospitalDiagnoses = cfg.Analysis.RestrictDiagnoses
	if cfg.Analysis.ZeroTotal == config.ZeroTotalNull {
		opts.ZeroTotal = ranking.ZeroTotalNull
	}
	return opts, nil
}

func loadICD10(cfg *config.Config) (excel.ICD10, error) {
	if cfg.Input.ICD10File == "" {
		return nil, nil
	}
	dict, err := excel.ReadICD10(cfg.Input.ICD10File)
	if err != nil {
		return nil, errors.IngestionError(cfg.Input.ICD10File, err)
	}
	return dict, nil
}

func runRank(ctx context.Context, cfg *config.Config, out io.Writer) error {
	opts, err := engineOptions(cfg)
	if err != nil {
		return err
	}
	records, err := loadRecords(cfg)
	if err != nil {
		return err
	}
	icd10, err := loadICD10(cfg)
	if err != nil {
		return err
	}

	res, err := engine.New(opts, internal.DefaultLogger).Run(ctx, records)
	if err != nil {
		return errors.RankingError(err)
	}

	var stays []profiling.StaySummary
	if wantsAny(cfg.Output.Formats, config.FormatXLSX, config.FormatMD, config.FormatHTML) {
		if stays, err = profiling.NewStayProfiler().Profile(records, opts.Hospital); err != nil {
			return errors.RankingError(err)
		}
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return errors.OutputError(cfg.Output.Dir, err)
	}

	written, err := writeOutputs(cfg, res, opts, icd10, stays)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Fprintln(out, path)
	}
	return nil
}

// writeOutputs writes every configured format plus the run manifest and
// returns the paths written.
func writeOutputs(cfg *config.Config, res *engine.Result, opts engine.Options, icd10 excel.ICD10, stays []profiling.StaySummary) ([]string, error) {
	base := filepath.Join(cfg.Output.Dir, fmt.Sprintf("ranking_%d", cfg.Analysis.Hospital))
	summary := markdown.Summary{
		Table:     res.Table,
		Hospital:  opts.Hospital,
		Variables: opts.Variables,
		Stays:     stays,
		Manifest:  res.Manifest,
	}
	if icd10 != nil {
		summary.Labels = icd10
	}

	var written []string
	for _, format := range cfg.Output.Formats {
		path := base + "." + format
		var err error
		switch format {
		case config.FormatCSV:
			err = report.WriteCSVFile(path, res.Table, cfg.Input.Delimiter)
		case config.FormatXLSX:
			err = excel.WriteWorkbook(path, excel.Workbook{
				Table:    res.Table,
				Hospital: opts.Hospital,
				ICD10:    icd10,
				Stays:    stays,
				Manifest: res.Manifest,
			})
		case config.FormatParquet:
			err = writeParquet(path, res)
		case config.FormatMD:
			err = os.WriteFile(path, markdown.RenderMarkdown(summary), 0o644)
		case config.FormatHTML:
			err = os.WriteFile(path, markdown.RenderHTML(summary), 0o644)
		default:
			err = fmt.Errorf("unsupported output format %s", format)
		}
		if err != nil {
			return written, errors.OutputError(path, err)
		}
		written = append(written, path)
	}

	manifestPath := base + ".manifest.json"
	data, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return written, errors.OutputError(manifestPath, err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return written, errors.OutputError(manifestPath, err)
	}
	return append(written, manifestPath), nil
}

func writeParquet(path string, res *engine.Result) error {
	w, err := parquet.NewWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteTable(res.Manifest.RunID.String(), res.Table); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	internal.DefaultLogger.Debug("[Pipeline] %d ranking facts written to %s", w.Count(), path)
	return nil
}

func runStrata(cfg *config.Config, out io.Writer, showCodes bool) error {
	strataCfg, err := partition.LoadConfig(cfg.Analysis.StrataFile)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	records, err := loadRecords(cfg)
	if err != nil {
		return err
	}
	m, err := partition.Partition(records, discharge.HospitalCode(cfg.Analysis.Hospital), strataCfg)
	if err != nil {
		return errors.RankingError(err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "STRATUM\tHOSPITALS\n")
	for _, name := range strata.Names() {
		codes, _ := m.Codes(name)
		fmt.Fprintf(tw, "%s\t%d\n", name, codes.Len())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if showCodes {
		for _, name := range strata.Names() {
			codes, _ := m.Codes(name)
			parts := make([]string, 0, codes.Len())
			for _, c := range codes.Sorted() {
				parts = append(parts, fmt.Sprintf("%d", c))
			}
			fmt.Fprintf(out, "\n%s: %s\n", name, strings.Join(parts, " "))
		}
	}
	return nil
}

func runStays(cfg *config.Config, out io.Writer) error {
	records, err := loadRecords(cfg)
	if err != nil {
		return err
	}
	icd10, err := loadICD10(cfg)
	if err != nil {
		return err
	}
	profile, err := profiling.NewStayProfiler().Profile(records, discharge.HospitalCode(cfg.Analysis.Hospital))
	if err != nil {
		return errors.RankingError(err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "YEAR\tDIAG1\tN\tMEDIAN\tP10\tP90\tMEAN\tSTD\tNATIONAL_MEDIAN\tLABEL\t\n")
	for _, s := range profile {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f\t%.1f\t%.1f\t%.2f\t%.2f\t%.1f\t%s\t\n",
			s.Year, s.Diagnosis, s.Count, s.Median, s.P10, s.P90, s.Mean, s.StdDev, s.NationalMedian,
			icd10.Label(s.Diagnosis))
	}
	return tw.Flush()
}

func wantsAny(formats []string, want ...string) bool {
	for _, f := range formats {
		for _, w := range want {
			if f == w {
				return true
			}
		}
	}
	return false
}
