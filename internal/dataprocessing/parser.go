package dataprocessing

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"attendx/pkg/contracts/domain"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format identifies an upload encoding
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat maps a file name to its format. Legacy .xls workbooks are
// rejected because they use the binary BIFF encoding.
func DetectFormat(name string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".xls":
		return "", fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx", ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Parse reads an upload in the given format
func Parse(r io.Reader, format Format) (*Table, error) {
	switch format {
	case FormatXLSX:
		return ParseWorkbook(r)
	case FormatCSV:
		return ParseCSV(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ParseFile opens a local .xlsx or .csv file and parses it
func ParseFile(path string) (*Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Parse(f, format)
}

// ParseWorkbook reads the attendance sheet of an Excel workbook. The first
// sheet whose header row names the User column is used; otherwise the first
// sheet of the workbook.
func ParseWorkbook(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var fallback [][]string
	for _, name := range f.GetSheetList() {
		// raw values: a percent-formatted 0.856 must not come back as "86%"
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			slog.Debug("Skipping unreadable sheet", slog.String("sheet_name", name), slog.String("error", err.Error()))
			continue
		}
		rows = trimLeadingBlankRows(rows)
		if len(rows) == 0 {
			continue
		}
		if fallback == nil {
			fallback = rows
		}
		if containsCell(rows[0], domain.ColumnUser) {
			slog.Debug("Found attendance data", slog.String("sheet_name", name), slog.Int("total_rows", len(rows)))
			return NewTable(dropBlankRows(rows))
		}
	}

	if fallback == nil {
		return nil, ErrEmptyTable
	}
	return NewTable(dropBlankRows(fallback))
}

// ParseCSV reads a comma separated upload. A UTF-8 byte order mark is
// stripped from the header. Ragged and blank rows are handled as in
// workbooks, so both formats produce the same Table for the same data.
func ParseCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	records = trimLeadingBlankRows(records)
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}
	return NewTable(dropBlankRows(records))
}

func containsCell(row []string, value string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) == value {
			return true
		}
	}
	return false
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimLeadingBlankRows(rows [][]string) [][]string {
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	return rows
}

func dropBlankRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for i, row := range rows {
		if i > 0 && isBlank(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}
