// Package parquet writes ranking results as long-format Parquet facts.
package parquet

import (
	"fmt"
	"os"

	"egresos/domain/discharge"
	"egresos/internal/report"

	"github.com/parquet-go/parquet-go"
)

// RankingFact is one (row, stratum, variable) cell of the wide table. Only
// rows inside the pass's stratum produce facts.
type RankingFact struct {
	RunID        string   `parquet:"run_id"`
	Key          string   `parquet:"key"`
	Year         int32    `parquet:"year"`
	Hospital     int64    `parquet:"hospital"`
	HospitalName string   `parquet:"hospital_name"`
	Diagnosis    string   `parquet:"diagnosis"`
	Stratum      string   `parquet:"stratum"`
	Variable     string   `parquet:"variable"`
	Value        *float64 `parquet:"value,optional"`
	Rank         int32    `parquet:"rank"`
	Percentage   *float64 `parquet:"pct,optional"`
	Total        float64  `parquet:"total"`
}

const flushInterval = 100_000

// Writer streams facts to a Snappy-compressed Parquet file.
type Writer struct {
	file   *os.File
	writer *parquet.GenericWriter[RankingFact]
	count  int
}

// NewWriter creates a new Parquet file writer
func NewWriter(filename string) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[RankingFact](file,
		parquet.Compression(&parquet.Snappy),
		parquet.CreatedBy("egresos", "1.0", ""),
	)

	return &Writer{file: file, writer: writer}, nil
}

// Write appends facts, flushing a row group every flushInterval rows.
func (w *Writer) Write(facts []RankingFact) error {
	for start := 0; start < len(facts); {
		end := start + flushInterval - w.count%flushInterval
		if end > len(facts) {
			end = len(facts)
		}
		if _, err := w.writer.Write(facts[start:end]); err != nil {
			return fmt.Errorf("failed to write parquet records: %w", err)
		}
		w.count += end - start
		if w.count%flushInterval == 0 {
			if err := w.writer.Flush(); err != nil {
				return fmt.Errorf("failed to flush parquet row group: %w", err)
			}
		}
		start = end
	}
	return nil
}

// WriteTable writes the facts of a wide table.
func (w *Writer) WriteTable(runID string, t *report.WideTable) error {
	return w.Write(Facts(runID, t))
}

// Close flushes and closes the Parquet writer
func (w *Writer) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the number of facts written
func (w *Writer) Count() int {
	return w.count
}

// Facts flattens a wide table into one fact per ranked cell, in row order
// and then pass order.
func Facts(runID string, t *report.WideTable) []RankingFact {
	yearPos := discharge.IndexOf(t.Keys, discharge.FieldYear)
	codePos := discharge.IndexOf(t.Keys, discharge.FieldHospitalCode)
	namePos := discharge.IndexOf(t.Keys, discharge.FieldHospitalName)
	diagPos := discharge.IndexOf(t.Keys, discharge.FieldDiagnosis)

	var facts []RankingFact
	for i := range t.Rows {
		row := &t.Rows[i]
		base := RankingFact{RunID: runID, Key: row.Key.String()}
		if yearPos >= 0 {
			if y, ok := row.Key[yearPos].Int64(); ok {
				base.Year = int32(y)
			}
		}
		if codePos >= 0 {
			base.Hospital, _ = row.Key[codePos].Int64()
		}
		if namePos >= 0 {
			base.HospitalName = row.Key[namePos].String()
		}
		if diagPos >= 0 {
			base.Diagnosis = row.Key[diagPos].String()
		}

		for c, col := range t.Columns {
			if col.Kind != report.KindRank || c+2 >= len(t.Columns) {
				continue
			}
			rank, _ := t.Cell(i, col.Name)
			if rank == nil {
				continue
			}
			pct, _ := t.Cell(i, t.Columns[c+1].Name)
			total, _ := t.Cell(i, t.Columns[c+2].Name)

			fact := base
			fact.Stratum = string(col.Stratum)
			fact.Variable = string(col.Variable)
			fact.Rank = int32(*rank)
			fact.Percentage = pct
			if total != nil {
				fact.Total = *total
			}
			if v, ok := row.Variable(col.Variable); ok {
				fact.Value = &v
			}
			facts = append(facts, fact)
		}
	}
	return facts
}
