package excel

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"egresos/domain/core"
	"egresos/domain/discharge"
	"egresos/internal"
)

// CoercionConfig holds the DEIS code books applied while coercing rows.
type CoercionConfig struct {
	SurgeryCodes    map[int]bool // INTERV_Q
	DeathCodes      map[int]bool // CONDICION_EGRESO
	SexLabels       map[int]string
	InsuranceLabels map[int]string
	RegionLabels    map[string]string
	// MaxInvalidRatio aborts coercion when more than this share of rows is malformed.
	MaxInvalidRatio float64
}

// DefaultCoercionConfig returns the DEIS 2018+ code books.
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		SurgeryCodes: map[int]bool{1: true, 2: false},
		DeathCodes:   map[int]bool{1: false, 2: true},
		SexLabels:    map[int]string{1: "Hombre", 2: "Mujer", 3: "Intersex", 99: "Desconocido"},
		InsuranceLabels: map[int]string{
			1:  "FONASA",
			2:  "ISAPRE",
			3:  "CAPREDENA",
			4:  "DIPRECA",
			5:  "SISA",
			96: "NINGUNA",
			99: "DESCONOCIDO",
		},
		RegionLabels: map[string]string{
			"Del Libertador B. O'Higgins":            "del Libertador General Bernardo O'Higgins",
			"De Aisén del Gral. C. Ibáñez del Campo": "Aysén del General Carlos Ibáñez del Campo",
		},
		MaxInvalidRatio: 0.5,
	}
}

// CoercionReport counts what happened to the raw rows.
type CoercionReport struct {
	Rows    int
	Kept    int
	Skipped int
	Reasons map[string]int
}

// Coercer converts raw DEIS rows into discharge records.
type Coercer struct {
	config CoercionConfig
}

// NewCoercer creates a coercer with the given config
func NewCoercer(config CoercionConfig) *Coercer {
	return &Coercer{config: config}
}

var requiredFields = []discharge.Field{
	discharge.FieldYear,
	discharge.FieldHospitalCode,
	discharge.FieldDiagnosis,
	discharge.FieldStayDays,
}

// Coerce converts every sheet. Malformed rows are skipped and counted; a
// sheet missing a required column fails the whole call.
func (c *Coercer) Coerce(sheets ...*Sheet) ([]discharge.Record, CoercionReport, error) {
	report := CoercionReport{Reasons: map[string]int{}}
	var records []discharge.Record

	for _, sheet := range sheets {
		if err := checkHeaders(sheet); err != nil {
			return nil, report, err
		}
		for i, raw := range sheet.Rows {
			report.Rows++
			rec, err := c.CoerceRow(raw)
			if err != nil {
				report.Skipped++
				report.Reasons[reasonOf(err)]++
				internal.DefaultLogger.Trace("[Coercer] %s row %d skipped: %v", sheet.Source, i+2, err)
				continue
			}
			records = append(records, rec)
		}
	}
	report.Kept = len(records)

	if report.Skipped > 0 {
		internal.DefaultLogger.Warn("[Coercer] skipped %d of %d rows: %s", report.Skipped, report.Rows, report.Summary())
	}
	if len(records) == 0 {
		return nil, report, core.NewEmptyInputError("coerced discharges")
	}
	if c.config.MaxInvalidRatio > 0 && float64(report.Skipped)/float64(report.Rows) > c.config.MaxInvalidRatio {
		return nil, report, core.NewValidationError("rows",
			fmt.Sprintf("%d of %d rows are malformed (%s)", report.Skipped, report.Rows, report.Summary()))
	}
	return records, report, nil
}

// Summary renders the skip reasons as "reason=n" pairs in name order.
func (r CoercionReport) Summary() string {
	reasons := make([]string, 0, len(r.Reasons))
	for k := range r.Reasons {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	parts := make([]string, len(reasons))
	for i, k := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", k, r.Reasons[k])
	}
	return strings.Join(parts, ", ")
}

func checkHeaders(sheet *Sheet) error {
	present := make(map[string]bool, len(sheet.Headers))
	for _, h := range sheet.Headers {
		present[h] = true
	}
	for _, f := range requiredFields {
		if !present[string(f)] {
			return fmt.Errorf("%s: %w", sheet.Source, core.NewUnknownFieldError(string(f)))
		}
	}
	return nil
}

// rowError names the column that made a row unusable.
type rowError struct {
	field discharge.Field
	value string
}

func (e *rowError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.field, e.value)
}

func reasonOf(err error) string {
	if re, ok := err.(*rowError); ok {
		return string(re.field)
	}
	return "other"
}

// CoerceRow converts a single raw row.
func (c *Coercer) CoerceRow(raw RawRow) (discharge.Record, error) {
	var rec discharge.Record
	var err error

	if rec.Year, err = requiredInt(raw, discharge.FieldYear); err != nil {
		return rec, err
	}
	code, err := requiredInt(raw, discharge.FieldHospitalCode)
	if err != nil || code <= 0 {
		return rec, &rowError{field: discharge.FieldHospitalCode, value: raw[string(discharge.FieldHospitalCode)]}
	}
	rec.HospitalCode = discharge.HospitalCode(code)

	rec.Diagnosis = strings.ToUpper(raw[string(discharge.FieldDiagnosis)])
	if rec.Diagnosis == "" {
		return rec, &rowError{field: discharge.FieldDiagnosis}
	}

	if rec.StayDays, err = requiredInt(raw, discharge.FieldStayDays); err != nil || rec.StayDays < 0 {
		return rec, &rowError{field: discharge.FieldStayDays, value: raw[string(discharge.FieldStayDays)]}
	}

	if rec.Surgery, err = c.coded(raw, discharge.FieldSurgery, c.config.SurgeryCodes); err != nil {
		return rec, err
	}
	if rec.Died, err = c.coded(raw, discharge.FieldDischargeCondition, c.config.DeathCodes); err != nil {
		return rec, err
	}

	rec.HospitalName = raw[string(discharge.FieldHospitalName)]
	rec.Ownership = raw[string(discharge.FieldOwnership)]
	rec.Commune = raw[string(discharge.FieldCommune)]
	rec.Region = raw[string(discharge.FieldRegion)]
	if label, ok := c.config.RegionLabels[rec.Region]; ok {
		rec.Region = label
	}
	rec.Sex = label(raw, discharge.FieldSex, c.config.SexLabels)
	rec.Insurance = label(raw, discharge.FieldInsurance, c.config.InsuranceLabels)

	rec.Age = -1
	if v, ok := parseInt(raw[string(discharge.FieldAge)]); ok {
		rec.Age = v
	}
	rec.AgeBand = discharge.AgeBand(rec.Age)
	rec.DischargeDate = parseDate(raw[string(discharge.FieldDischargeDate)])

	return rec, nil
}

// coded maps a numeric flag column through a code book; blank means false.
func (c *Coercer) coded(raw RawRow, f discharge.Field, codes map[int]bool) (bool, error) {
	s := raw[string(f)]
	if s == "" {
		return false, nil
	}
	v, ok := parseInt(s)
	if !ok {
		return false, &rowError{field: f, value: s}
	}
	flag, ok := codes[v]
	if !ok {
		return false, &rowError{field: f, value: s}
	}
	return flag, nil
}

func label(raw RawRow, f discharge.Field, labels map[int]string) string {
	s := raw[string(f)]
	if v, ok := parseInt(s); ok {
		if l, ok := labels[v]; ok {
			return l
		}
	}
	return s
}

func requiredInt(raw RawRow, f discharge.Field) (int, error) {
	s := raw[string(f)]
	v, ok := parseInt(s)
	if !ok {
		return 0, &rowError{field: f, value: s}
	}
	return v, nil
}

// parseInt accepts integers and integral floats such as "2019.0".
func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
