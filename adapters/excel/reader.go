package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"egresos/internal"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DataReader reads DEIS discharge exports from CSV or xlsx files.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	config   ReaderConfig
}

// NewDataReader creates a reader; the file type follows the extension.
func NewDataReader(filePath string, config ReaderConfig) *DataReader {
	fileType := "csv"
	if strings.EqualFold(filepath.Ext(filePath), ".xlsx") {
		fileType = "xlsx"
	}
	if config.Delimiter == 0 {
		config.Delimiter = ';'
	}
	return &DataReader{filePath: filePath, fileType: fileType, config: config}
}

// ReadData reads the whole file into a Sheet.
func (r *DataReader) ReadData() (*Sheet, error) {
	internal.DefaultLogger.Debug("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads the first sheet of the workbook.
func (r *DataReader) readExcelData() (*Sheet, error) {
	start := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file %s has no sheets", r.filePath)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	internal.DefaultLogger.Debug("[DataReader] %s read in %.2fms (%d rows)",
		sheets[0], float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

// readCSVData reads a delimited file, decoding latin-1 when configured.
func (r *DataReader) readCSVData() (*Sheet, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	var src io.Reader = file
	if r.config.Encoding == EncodingLatin1 {
		src = transform.NewReader(file, charmap.ISO8859_1.NewDecoder())
	}

	reader := csv.NewReader(src)
	reader.Comma = r.config.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	start := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	internal.DefaultLogger.Debug("[DataReader] CSV file read in %.2fms (%d rows)",
		float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

// processRows converts raw string rows into a Sheet.
func (r *DataReader) processRows(rows [][]string) (*Sheet, error) {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		// drop a UTF-8 BOM on the first header
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\uFEFF"))
	}

	data := make([]RawRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raw := make(RawRow, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				raw[headers[j]] = strings.TrimSpace(cell)
			}
		}
		data = append(data, raw)
	}

	internal.DefaultLogger.Debug("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(data))

	return &Sheet{Headers: headers, Rows: data, Source: r.filePath}, nil
}

// ReadPath reads a single file, or every *.csv and *.xlsx file of a
// directory in lexical order.
func ReadPath(path string, config ReaderConfig) ([]*Sheet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", path, err)
	}
	if !info.IsDir() {
		sheet, err := NewDataReader(path, config).ReadData()
		if err != nil {
			return nil, err
		}
		return []*Sheet{sheet}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no .csv or .xlsx files in %s", path)
	}

	sheets := make([]*Sheet, 0, len(files))
	for _, f := range files {
		sheet, err := NewDataReader(f, config).ReadData()
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}
	internal.DefaultLogger.Info("[DataReader] read %d files from %s", len(sheets), path)
	return sheets, nil
}
