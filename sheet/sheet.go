// Package sheet reads and writes the semicolon-separated tool spreadsheets.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docutag/linkaudit"
)

// Delimiter separates cells
const Delimiter = ';'

// headerMarkers identify the header row; exports often carry blank or title rows above it
var headerMarkers = []string{"App name", "Tool Name", "Kategorie"}

// ErrNoHeader is returned when the input has no usable header row
var ErrNoHeader = errors.New("no header row found")

// Sheet is a parsed spreadsheet
type Sheet struct {
	Header  []string
	Records []*linkaudit.ToolRecord
}

// Read parses a spreadsheet. The header is the first row containing a known marker
// cell, otherwise the first non-blank row. Blank rows are skipped and short rows
// read their missing cells as empty.
func Read(r io.Reader) (*Sheet, error) {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}

	headerIdx := findHeader(rows)
	if headerIdx < 0 {
		return nil, ErrNoHeader
	}

	header := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		header[i] = strings.TrimSpace(h)
	}

	s := &Sheet{Header: header}
	for _, row := range rows[headerIdx+1:] {
		if isBlank(row) {
			continue
		}
		values := make(map[string]string, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) {
				values[col] = row[i]
			}
		}
		s.Records = append(s.Records, linkaudit.NewToolRecord(header, values))
	}
	return s, nil
}

func findHeader(rows [][]string) int {
	for i, row := range rows {
		for _, cell := range row {
			for _, marker := range headerMarkers {
				if strings.TrimSpace(cell) == marker {
					return i
				}
			}
		}
	}
	for i, row := range rows {
		if !isBlank(row) {
			return i
		}
	}
	return -1
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ReadFile reads a spreadsheet from disk
func ReadFile(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Write writes the header and the records in header order
func Write(w io.Writer, header []string, records []*linkaudit.ToolRecord) error {
	writer := csv.NewWriter(w)
	writer.Comma = Delimiter

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			row[i] = rec.Get(col)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes atomically through a temp file in the target directory,
// so a checkpoint interrupted mid-write never leaves a truncated sheet.
func WriteFile(path string, header []string, records []*linkaudit.ToolRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".linkaudit-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, header, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// OutputPath derives the default output path: <dir>/<stem>_<suffix>.csv
func OutputPath(input, suffix string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	if ext == "" {
		ext = ".csv"
	}
	return filepath.Join(filepath.Dir(input), stem+"_"+suffix+ext)
}
