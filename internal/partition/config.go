package partition

import (
	"fmt"
	"os"

	"egresos/domain/strata"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a strata definition file. Absent fields fall back to the
// built-in SNSS label and GRD cohort.
//
//	public_ownership: "Pertenecientes al Sistema Nacional de Servicios de Salud, SNSS"
//	reference_version: grd-2021
//	reference_codes: [112103, 111195]
func LoadConfig(path string) (strata.Config, error) {
	cfg := strata.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return strata.Config{}, fmt.Errorf("read strata file: %w", err)
	}

	var fileCfg strata.Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return strata.Config{}, fmt.Errorf("parse strata file %s: %w", path, err)
	}

	if fileCfg.PublicOwnership != "" {
		cfg.PublicOwnership = fileCfg.PublicOwnership
	}
	if len(fileCfg.ReferenceCodes) > 0 {
		cfg.ReferenceCodes = fileCfg.ReferenceCodes
		cfg.ReferenceVersion = fileCfg.ReferenceVersion
		if cfg.ReferenceVersion == "" {
			cfg.ReferenceVersion = "custom"
		}
	}

	seen := make(map[int64]bool, len(cfg.ReferenceCodes))
	for _, c := range cfg.ReferenceCodes {
		if c <= 0 {
			return strata.Config{}, fmt.Errorf("strata file %s: invalid reference code %d", path, c)
		}
		if seen[int64(c)] {
			return strata.Config{}, fmt.Errorf("strata file %s: duplicate reference code %d", path, c)
		}
		seen[int64(c)] = true
	}

	return cfg, nil
}
