package excel

// RawRow is one data row keyed by trimmed header name.
type RawRow map[string]string

// Sheet is a decoded table: headers in file order plus rows.
type Sheet struct {
	Headers []string
	Rows    []RawRow
	Source  string
}

// Supported CSV encodings
const (
	EncodingLatin1 = "latin1"
	EncodingUTF8   = "utf8"
)

// ReaderConfig controls CSV decoding; xlsx files ignore it.
type ReaderConfig struct {
	Delimiter rune
	Encoding  string
}

// DefaultReaderConfig matches the DEIS open-data exports.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{Delimiter: ';', Encoding: EncodingLatin1}
}
