package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrEmptyInput      = errors.New("empty input")
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidVariable = errors.New("invalid ranking variable")
	ErrUndefinedMetric = errors.New("metric undefined for row")

	// Strata errors
	ErrUnknownHospital = errors.New("hospital of interest not present in national table")

	// Ranking errors
	ErrEmptySubgroup = errors.New("empty ranking subgroup")

	// Assembly errors
	ErrJoinKeyMismatch = errors.New("join key mismatch")
)

// Error constructors with context
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewEmptyInputError(what string) error {
	return fmt.Errorf("%w: no %s to aggregate", ErrEmptyInput, what)
}

func NewUnknownFieldError(field string) error {
	return fmt.Errorf("%w: %q", ErrUnknownField, field)
}

func NewInvalidVariableError(name string) error {
	return fmt.Errorf("%w: %q", ErrInvalidVariable, name)
}

func NewUnknownHospitalError(code int64) error {
	return fmt.Errorf("%w: %d", ErrUnknownHospital, code)
}

// NewEmptySubgroupError reports the stratum pass and subgroup that could not
// be normalized. group may be empty when the whole stratum has no rows.
func NewEmptySubgroupError(stratum, variable, group, reason string) error {
	if group == "" {
		return fmt.Errorf("%w: stratum %s variable %s: %s", ErrEmptySubgroup, stratum, variable, reason)
	}
	return fmt.Errorf("%w: stratum %s variable %s group [%s]: %s", ErrEmptySubgroup, stratum, variable, group, reason)
}

func NewUndefinedMetricError(stratum, variable, key string) error {
	return fmt.Errorf("%w: stratum %s variable %s row [%s]", ErrUndefinedMetric, stratum, variable, key)
}

func NewJoinKeyMismatchError(source string, keys []string, detail string) error {
	return fmt.Errorf("%w: %s on (%s): %s", ErrJoinKeyMismatch, source, strings.Join(keys, ", "), detail)
}

// Error checking helpers
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrInvalidVariable)
}

func IsRankingError(err error) bool {
	return errors.Is(err, ErrEmptySubgroup) ||
		errors.Is(err, ErrUndefinedMetric)
}
