package excel

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ICD10 maps normalized four-character diagnosis codes to their labels.
type ICD10 map[string]string

// NormalizeICD10Code turns a dotted dictionary code into the DIAG1 form:
// "J18.9" becomes "J189" and "A09" becomes "A09X".
func NormalizeICD10Code(code string) string {
	c := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), ".", ""))
	for len(c) < 4 {
		c += "X"
	}
	return c
}

// Label returns the description of a diagnosis, or the code itself when unknown.
func (d ICD10) Label(diagnosis string) string {
	if l, ok := d[diagnosis]; ok {
		return l
	}
	if l, ok := d[NormalizeICD10Code(diagnosis)]; ok {
		return l
	}
	return diagnosis
}

var (
	icd10CodeHeaders  = []string{"Código", "Codigo", "CODIGO", "code"}
	icd10LabelHeaders = []string{"Descripción", "Descripcion", "DESCRIPCION", "Glosa", "description"}
)

// ReadICD10 loads the dictionary from the first sheet of an xlsx file. The
// code column is "Código"; the label is "Descripción" or, failing that, the
// first other column that is not "Versión".
func ReadICD10(path string) (ICD10, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ICD-10 file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("ICD-10 file %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read ICD-10 sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("ICD-10 file must have at least a header row and one data row")
	}

	header := rows[0]
	codeCol := findColumn(header, icd10CodeHeaders)
	if codeCol < 0 {
		return nil, fmt.Errorf("ICD-10 file %s has no code column", path)
	}
	labelCol := findColumn(header, icd10LabelHeaders)
	if labelCol < 0 {
		for i, h := range header {
			if i != codeCol && !strings.HasPrefix(strings.TrimSpace(h), "Versi") {
				labelCol = i
				break
			}
		}
	}
	if labelCol < 0 {
		return nil, fmt.Errorf("ICD-10 file %s has no label column", path)
	}

	dict := make(ICD10, len(rows)-1)
	for _, row := range rows[1:] {
		if codeCol >= len(row) || strings.TrimSpace(row[codeCol]) == "" {
			continue
		}
		label := ""
		if labelCol < len(row) {
			label = strings.TrimSpace(row[labelCol])
		}
		dict[NormalizeICD10Code(row[codeCol])] = label
	}
	return dict, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.TrimSpace(h)
		for _, n := range names {
			if strings.EqualFold(h, n) {
				return i
			}
		}
	}
	return -1
}
