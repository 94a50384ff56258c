package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// WriteCSV writes the wide table with a header row.
func WriteCSV(w io.Writer, table *WideTable, delimiter rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write(table.Header()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(table.Records()); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// WriteCSVFile writes the wide table to path.
func WriteCSVFile(path string, table *WideTable, delimiter rune) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := WriteCSV(f, table, delimiter); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
