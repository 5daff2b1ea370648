package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM lets spreadsheet tools detect the encoding of the rupee sign.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOption configures WriteCSV.
type CSVOption func(*csvWriter)

type csvWriter struct {
	delimiter rune
	bom       bool
}

// WithDelimiter sets the field delimiter (default is comma).
func WithDelimiter(d rune) CSVOption {
	return func(w *csvWriter) { w.delimiter = d }
}

// WithBOM prefixes the output with a UTF-8 byte order mark.
func WithBOM(bom bool) CSVOption {
	return func(w *csvWriter) { w.bom = bom }
}

// WriteCSV writes the header row followed by every data row.
func WriteCSV(w io.Writer, t Table, opts ...CSVOption) error {
	cfg := csvWriter{delimiter: ','}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = cfg.delimiter
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("row %d has %d fields, want %d", i+1, len(row), len(t.Headers))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
