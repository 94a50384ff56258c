package discharge

import (
	"fmt"
	"time"

	"egresos/domain/core"
)

// HospitalCode is the DEIS establishment code (ESTABLECIMIENTO_SALUD).
type HospitalCode int64

// Field names a column of the DEIS discharge table.
type Field string

// Groupable dimensions
const (
	FieldYear         Field = "ANO_EGRESO"
	FieldHospitalCode Field = "ESTABLECIMIENTO_SALUD"
	FieldHospitalName Field = "GLOSA_ESTABLECIMIENTO_SALUD"
	FieldOwnership    Field = "PERTENENCIA_ESTABLECIMIENTO_SALUD"
	FieldDiagnosis    Field = "DIAG1"
	FieldSex          Field = "SEXO"
	FieldAgeBand      Field = "EDAD_CATEGORIA"
	FieldRegion       Field = "GLOSA_REGION_RESIDENCIA"
	FieldCommune      Field = "GLOSA_COMUNA_RESIDENCIA"
	FieldInsurance    Field = "PREVISION"
)

// Raw measure columns, read by ingestion and never used as grouping keys.
const (
	FieldStayDays           Field = "DIAS_ESTADA"
	FieldSurgery            Field = "INTERV_Q"
	FieldDischargeCondition Field = "CONDICION_EGRESO"
	FieldAge                Field = "EDAD_A_OS"
	FieldDischargeDate      Field = "FECHA_EGRESO"
)

var dimensions = map[Field]struct{}{
	FieldYear:         {},
	FieldHospitalCode: {},
	FieldHospitalName: {},
	FieldOwnership:    {},
	FieldDiagnosis:    {},
	FieldSex:          {},
	FieldAgeBand:      {},
	FieldRegion:       {},
	FieldCommune:      {},
	FieldInsurance:    {},
}

// IsDimension reports whether f can be used as a grouping key.
func IsDimension(f Field) bool {
	_, ok := dimensions[f]
	return ok
}

// ParseField validates a column name as a grouping dimension.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if !IsDimension(f) {
		return "", core.NewUnknownFieldError(s)
	}
	return f, nil
}

// ParseFields validates a list of column names.
func ParseFields(names []string) ([]Field, error) {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		f, err := ParseField(n)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// FieldNames converts fields to their column names.
func FieldNames(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

// IndexOf returns the position of f in fields, or -1.
func IndexOf(fields []Field, f Field) int {
	for i, x := range fields {
		if x == f {
			return i
		}
	}
	return -1
}

// DefaultGrouping is the identity of an aggregated row: one row per year,
// hospital and principal diagnosis.
func DefaultGrouping() []Field {
	return []Field{FieldYear, FieldHospitalCode, FieldHospitalName, FieldDiagnosis}
}

// DefaultRankingGroup ranks hospitals against each other within a year and diagnosis.
func DefaultRankingGroup() []Field {
	return []Field{FieldYear, FieldDiagnosis}
}

// Record is one hospital discharge, already typed and normalized by ingestion.
type Record struct {
	Year          int
	HospitalCode  HospitalCode
	HospitalName  string
	Ownership     string
	Diagnosis     string
	StayDays      int
	Surgery       bool // true when the patient had a surgical intervention
	Died          bool // true when the discharge condition is death
	Sex           string
	Age           int
	AgeBand       string
	Region        string
	Commune       string
	Insurance     string
	DischargeDate time.Time
}

// Value returns the record's value for a grouping dimension.
func (r *Record) Value(f Field) (Value, error) {
	switch f {
	case FieldYear:
		return Int(int64(r.Year)), nil
	case FieldHospitalCode:
		return Int(int64(r.HospitalCode)), nil
	case FieldHospitalName:
		return Str(r.HospitalName), nil
	case FieldOwnership:
		return Str(r.Ownership), nil
	case FieldDiagnosis:
		return Str(r.Diagnosis), nil
	case FieldSex:
		return Str(r.Sex), nil
	case FieldAgeBand:
		return Str(r.AgeBand), nil
	case FieldRegion:
		return Str(r.Region), nil
	case FieldCommune:
		return Str(r.Commune), nil
	case FieldInsurance:
		return Str(r.Insurance), nil
	}
	return Value{}, core.NewUnknownFieldError(string(f))
}

// KeyOf builds the record's key over the given fields.
func (r *Record) KeyOf(fields []Field) (Key, error) {
	key := make(Key, len(fields))
	for i, f := range fields {
		v, err := r.Value(f)
		if err != nil {
			return nil, err
		}
		key[i] = v
	}
	return key, nil
}

// AgeBand buckets an age in years into ten-year bands, "[0, 10)" … "[110, 120)".
func AgeBand(age int) string {
	if age < 0 {
		return ""
	}
	if age >= 120 {
		return "[120, inf)"
	}
	lo := (age / 10) * 10
	return fmt.Sprintf("[%d, %d)", lo, lo+10)
}
