package main

import (
	"fmt"
	"os"
	"strings"

	"egresos/internal"
	"egresos/internal/config"
	"egresos/internal/errors"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", errors.GetCode(err), err)
		os.Exit(1)
	}
}

// flags holds command-line overrides; only flags the user set are applied.
type flags struct {
	envFile     string
	input       string
	hospital    int64
	encoding    string
	delimiter   string
	strataFile  string
	icd10File   string
	logLevel    string
	outputDir   string
	formats     []string
	variables   []string
	parallelism int
	zeroTotal   string
	restrict    bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "egresos",
		Short: "Rank a hospital's discharge metrics against national peer groups",
		Long: `Rank a hospital's discharge metrics (volume, mean length of stay,
surgeries, deaths) per year and diagnosis against five peer groups built from
the DEIS national discharge table: nacionales, publicos, privados, grd and
interno.

Configuration is read from the environment (and an optional .env file);
flags override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.envFile, "env-file", ".env", "Optional .env file")
	pf.StringVarP(&f.input, "input", "i", "", "DEIS discharge file or directory (EGRESOS_INPUT)")
	pf.Int64Var(&f.hospital, "hospital", config.DefaultHospital, "Establishment code of the hospital of interest (EGRESOS_HOSPITAL)")
	pf.StringVar(&f.encoding, "encoding", config.EncodingLatin1, "CSV encoding: latin1|utf8 (EGRESOS_ENCODING)")
	pf.StringVar(&f.delimiter, "delimiter", ";", "CSV delimiter (EGRESOS_CSV_DELIMITER)")
	pf.StringVar(&f.strataFile, "strata-file", "", "YAML strata definition (EGRESOS_STRATA_FILE)")
	pf.StringVar(&f.icd10File, "icd10", "", "ICD-10 dictionary xlsx (EGRESOS_ICD10_FILE)")
	pf.StringVar(&f.logLevel, "log-level", "INFO", "ERROR|WARN|INFO|DEBUG|TRACE (LOG_LEVEL)")
	pf.BoolVar(&f.restrict, "restrict-diagnoses", true, "Only aggregate diagnoses the hospital discharged (EGRESOS_RESTRICT_DIAGNOSES)")

	root.AddCommand(
		newRankCmd(f),
		newStrataCmd(f),
		newStaysCmd(f),
	)
	return root
}

func newRankCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Compute the ranking table and write the configured outputs",
		Long: `Aggregate the national discharges, rank every variable within every
stratum and write the wide ranking table.

Example: egresos rank -i data/egresos --hospital 112103 --formats csv,xlsx,html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runRank(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "output", "Output directory (EGRESOS_OUTPUT_DIR)")
	cmd.Flags().StringSliceVar(&f.formats, "formats", []string{config.FormatCSV}, "csv,xlsx,parquet,md,html (EGRESOS_FORMATS)")
	cmd.Flags().StringSliceVar(&f.variables, "variables", nil, "Variables to rank (EGRESOS_VARIABLES)")
	cmd.Flags().IntVar(&f.parallelism, "parallelism", 1, "Concurrent ranking passes (EGRESOS_PARALLELISM)")
	cmd.Flags().StringVar(&f.zeroTotal, "zero-total", config.ZeroTotalFail, "Zero subgroup totals: fail|null (EGRESOS_ZERO_TOTAL)")
	return cmd
}

func newStrataCmd(f *flags) *cobra.Command {
	var showCodes bool

	cmd := &cobra.Command{
		Use:   "strata",
		Short: "Print the peer groups of the hospital of interest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runStrata(cfg, cmd.OutOrStdout(), showCodes)
		},
	}

	cmd.Flags().BoolVar(&showCodes, "codes", false, "List the establishment codes of every stratum")
	return cmd
}

func newStaysCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "stays",
		Short: "Print the length-of-stay profile of the hospital of interest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runStays(cfg, cmd.OutOrStdout())
		},
	}
}

// loadConfig reads the environment, applies the flags the user set and
// validates the result.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, f, cfg)

	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	changed := func(name string) bool {
		fl := cmd.Flag(name)
		return fl != nil && fl.Changed
	}

	if changed("input") {
		cfg.Input.Path = f.input
	}
	if changed("hospital") {
		cfg.Analysis.Hospital = f.hospital
	}
	if changed("encoding") {
		cfg.Input.Encoding = strings.ToLower(f.encoding)
	}
	if changed("delimiter") {
		cfg.Input.Delimiter = 0
		if r := []rune(f.delimiter); len(r) == 1 {
			cfg.Input.Delimiter = r[0]
		}
	}
	if changed("strata-file") {
		cfg.Analysis.StrataFile = f.strataFile
	}
	if changed("icd10") {
		cfg.Input.ICD10File = f.icd10File
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("restrict-diagnoses") {
		cfg.Analysis.RestrictDiagnoses = f.restrict
	}
	if changed("output-dir") {
		cfg.Output.Dir = f.outputDir
	}
	if changed("formats") {
		cfg.Output.Formats = f.formats
	}
	if changed("variables") {
		cfg.Analysis.Variables = f.variables
	}
	if changed("parallelism") {
		cfg.Analysis.Parallelism = f.parallelism
	}
	if changed("zero-total") {
		cfg.Analysis.ZeroTotal = strings.ToLower(f.zeroTotal)
	}
}
