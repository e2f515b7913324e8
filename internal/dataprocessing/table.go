package dataprocessing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrEmptyTable is returned when an upload carries no header row
var ErrEmptyTable = errors.New("table has no header row")

// Table is an uploaded dataset kept as raw strings. Every column is a string
// series; numeric interpretation happens in Coerce so malformed cells can be
// dropped per operation instead of failing the whole upload.
type Table struct {
	names []string
	df    dataframe.DataFrame
	rows  int
}

// NewTable builds a table from records whose first row is the header.
// Short rows are padded with empty cells and long rows are truncated.
func NewTable(records [][]string) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrEmptyTable
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	t := &Table{names: header}
	if len(records) == 1 {
		return t, nil
	}

	normalized := make([][]string, 0, len(records))
	normalized = append(normalized, header)
	for _, row := range records[1:] {
		normalized = append(normalized, fitRow(row, len(header)))
	}

	df := dataframe.LoadRecords(normalized,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("load records: %w", df.Err)
	}

	t.df = df
	t.rows = df.Nrow()
	return t, nil
}

func checkHeader(header []string) error {
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		if name == "" {
			return fmt.Errorf("header cell %d is empty", i+1)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func fitRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// Columns returns the column names in upload order
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// HasColumn reports whether the table carries a column with the given name
func (t *Table) HasColumn(name string) bool {
	for _, n := range t.names {
		if n == name {
			return true
		}
	}
	return false
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return t.rows
}

// Column returns the cells of a column, or nil if the column is absent.
func (t *Table) Column(name string) []string {
	if !t.HasColumn(name) {
		return nil
	}
	if t.rows == 0 {
		return []string{}
	}
	return t.df.Col(name).Records()
}

// Clone returns an owned copy that shares nothing with t
func (t *Table) Clone() *Table {
	c := &Table{names: t.Columns(), rows: t.rows}
	if t.rows > 0 {
		c.df = t.df.Copy()
	}
	return c
}

// Records returns the header followed by every data row
func (t *Table) Records() [][]string {
	if t.rows == 0 {
		return [][]string{t.Columns()}
	}
	return t.df.Records()
}

// Shuffle returns a copy of the table with rows in the given order.
// order must be a permutation of 0..Len()-1.
func (t *Table) Shuffle(order []int) (*Table, error) {
	if len(order) != t.rows {
		return nil, fmt.Errorf("permutation has %d entries, table has %d rows", len(order), t.rows)
	}
	if t.rows == 0 {
		return t.Clone(), nil
	}
	df := t.df.Subset(order)
	if df.Err != nil {
		return nil, df.Err
	}
	return &Table{names: t.Columns(), df: df, rows: df.Nrow()}, nil
}
