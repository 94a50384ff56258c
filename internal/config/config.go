package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"egresos/domain/discharge"
	"egresos/domain/metrics"
	"egresos/internal/errors"

	"github.com/joho/godotenv"
)

// DefaultHospital is the Instituto Nacional del Tórax.
const DefaultHospital int64 = 112103

// Zero-total policies
const (
	ZeroTotalFail = "fail"
	ZeroTotalNull = "null"
)

// Supported input encodings
const (
	EncodingLatin1 = "latin1"
	EncodingUTF8   = "utf8"
)

// Output formats
const (
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatParquet = "parquet"
	FormatHTML    = "html"
	FormatMD      = "md"
)

// Config represents the complete application configuration
type Config struct {
	Input    InputConfig
	Analysis AnalysisConfig
	Output   OutputConfig
	LogLevel string
}

// InputConfig describes where the DEIS discharge files live and how to decode them
type InputConfig struct {
	Path      string
	Delimiter rune
	Encoding  string
	ICD10File string
}

// AnalysisConfig holds ranking parameters
type AnalysisConfig struct {
	Hospital          int64
	StrataFile        string
	Variables         []string
	GroupKeys         []string
	RankingKeys       []string
	Parallelism       int
	ZeroTotal         string
	RestrictDiagnoses bool
}

// OutputConfig holds report destinations
type OutputConfig struct {
	Dir     string
	Formats []string
}

// Load reads an optional .env file, then configuration from environment variables.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	config := &Config{
		Input:    *loadInputConfig(),
		Analysis: *loadAnalysisConfig(),
		Output:   *loadOutputConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	return config, nil
}

func loadInputConfig() *InputConfig {
	delimiter, _ := utf8.DecodeRuneInString(getEnvOrDefault("EGRESOS_CSV_DELIMITER", ";"))
	return &InputConfig{
		Path:      getEnvOrDefault("EGRESOS_INPUT", ""),
		Delimiter: delimiter,
		Encoding:  strings.ToLower(getEnvOrDefault("EGRESOS_ENCODING", EncodingLatin1)),
		ICD10File: getEnvOrDefault("EGRESOS_ICD10_FILE", ""),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Hospital:          getEnvInt64OrDefault("EGRESOS_HOSPITAL", DefaultHospital),
		StrataFile:        getEnvOrDefault("EGRESOS_STRATA_FILE", ""),
		Variables:         getEnvListOrDefault("EGRESOS_VARIABLES", variableNames(metrics.DefaultRankVariables())),
		GroupKeys:         getEnvListOrDefault("EGRESOS_GROUP_KEYS", discharge.FieldNames(discharge.DefaultGrouping())),
		RankingKeys:       getEnvListOrDefault("EGRESOS_RANKING_KEYS", discharge.FieldNames(discharge.DefaultRankingGroup())),
		Parallelism:       getEnvIntOrDefault("EGRESOS_PARALLELISM", 1),
		ZeroTotal:         strings.ToLower(getEnvOrDefault("EGRESOS_ZERO_TOTAL", ZeroTotalFail)),
		RestrictDiagnoses: getEnvBoolOrDefault("EGRESOS_RESTRICT_DIAGNOSES", true),
	}
}

func loadOutputConfig() *OutputConfig {
	return &OutputConfig{
		Dir:     getEnvOrDefault("EGRESOS_OUTPUT_DIR", "output"),
		Formats: getEnvListOrDefault("EGRESOS_FORMATS", []string{FormatCSV}),
	}
}

// Validate checks the configuration for a ranking run
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return errors.ConfigInvalid("input path is required (EGRESOS_INPUT or --input)")
	}
	if c.Input.Encoding != EncodingLatin1 && c.Input.Encoding != EncodingUTF8 {
		return errors.ConfigInvalid("encoding must be latin1 or utf8, got " + c.Input.Encoding)
	}
	if c.Input.Delimiter == utf8.RuneError || c.Input.Delimiter == 0 {
		return errors.ConfigInvalid("CSV delimiter must be a single character")
	}
	if c.Analysis.Hospital <= 0 {
		return errors.ConfigInvalid("hospital of interest must be a positive establishment code")
	}
	if c.Analysis.Parallelism < 1 {
		return errors.ConfigInvalid("parallelism must be at least 1")
	}
	if c.Analysis.ZeroTotal != ZeroTotalFail && c.Analysis.ZeroTotal != ZeroTotalNull {
		return errors.ConfigInvalid("zero-total policy must be fail or null, got " + c.Analysis.ZeroTotal)
	}
	if _, err := metrics.ParseVariables(c.Analysis.Variables); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if len(c.Analysis.Variables) == 0 {
		return errors.ConfigInvalid("at least one ranking variable is required")
	}
	if _, err := discharge.ParseFields(c.Analysis.GroupKeys); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if _, err := discharge.ParseFields(c.Analysis.RankingKeys); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	for _, f := range c.Output.Formats {
		switch f {
		case FormatCSV, FormatXLSX, FormatParquet, FormatHTML, FormatMD:
		default:
			return errors.ConfigInvalid("unsupported output format " + f)
		}
	}
	return nil
}

func variableNames(vars []metrics.Variable) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = string(v)
	}
	return out
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma-separated variable.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
