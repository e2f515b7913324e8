package dataprocessing

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"attendx/pkg/contracts/domain"
)

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}, order []string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseWorkbook(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"Notes": {{"generated by registry export"}},
		"Attendance": {
			{"User", "Level of Study", "Year of Course", "Course Code", "Quarter", "% Attendance", "Submitted", "Assessments"},
			{"u1", "UG", 1, "C1", 1, 0.9, 3, 4},
			{},
			{"u2", "PGT", 2, "C2", 4, 0.5},
		},
	}, []string{"Notes", "Attendance"})

	table, err := ParseWorkbook(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, domain.Columns, table.Columns())
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"u1", "u2"}, table.Column(domain.ColumnUser))
	// trailing cells of a short row are padded
	assert.Equal(t, []string{"4", ""}, table.Column(domain.ColumnAssessments))
}

func TestParseWorkbookReadsRawCellValues(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"User", "Quarter", "% Attendance", "Submitted"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"u1", 4, 0.856, 2}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"u2", 4, 0.5, 2.5}))

	percent, err := f.NewStyle(&excelize.Style{NumFmt: 9}) // 0%
	require.NoError(t, err)
	integer, err := f.NewStyle(&excelize.Style{NumFmt: 1}) // 0
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "C2", "C2", percent))
	require.NoError(t, f.SetCellStyle(sheet, "D3", "D3", integer))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := ParseWorkbook(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"0.856", "0.5"}, table.Column(domain.ColumnAttendance))
	assert.Equal(t, []string{"2", "2.5"}, table.Column(domain.ColumnSubmitted))

	frame, _ := Coerce(table, domain.ColumnAttendance)
	require.True(t, frame.NormalizeAttendance())
	require.Len(t, frame.Records, 2)
	got := map[string]float64{}
	for _, r := range frame.Records {
		got[r.User] = r.Attendance
	}
	assert.InDelta(t, 85.6, got["u1"], 1e-9)
	assert.InDelta(t, 50.0, got["u2"], 1e-9)
}

func TestParseWorkbookFallsBackToFirstSheet(t *testing.T) {
	data := buildWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"Student", "Quarter"},
			{"u1", 4},
		},
	}, []string{"Sheet1"})

	table, err := ParseWorkbook(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"Student", "Quarter"}, table.Columns())

	_, err = Validate(table, SummaryColumns...)
	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, domain.ColumnUser, missing.Column)
}

func TestParseWorkbookRejectsGarbage(t *testing.T) {
	_, err := ParseWorkbook(strings.NewReader("not a zip archive"))
	assert.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	input := "\xEF\xBB\xBFUser,Quarter,% Attendance\nu1,4,\"1,000\"\nu2,1,85%\n"

	table, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"User", "Quarter", "% Attendance"}, table.Columns())
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"1,000", "85%"}, table.Column(domain.ColumnAttendance))
}

func TestParseCSVMatchesWorkbookHandling(t *testing.T) {
	t.Run("header only", func(t *testing.T) {
		table, err := ParseCSV(strings.NewReader("User,Quarter\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"User", "Quarter"}, table.Columns())
		assert.Zero(t, table.Len())
	})

	t.Run("short and blank rows", func(t *testing.T) {
		table, err := ParseCSV(strings.NewReader("\nUser,Quarter,Submitted\nu1,4,3\n\nu2,1\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
		assert.Equal(t, []string{"3", ""}, table.Column(domain.ColumnSubmitted))
	})

	t.Run("duplicate header", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader("User,Quarter,User\nu1,4,u1\n"))
		assert.ErrorContains(t, err, `duplicate column "User"`)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyTable)
	})
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    Format
		wantErr bool
	}{
		{name: "workbook", file: "term1.xlsx", want: FormatXLSX},
		{name: "upper case", file: "TERM1.XLSX", want: FormatXLSX},
		{name: "csv", file: filepath.Join("exports", "term1.csv"), want: FormatCSV},
		{name: "legacy workbook", file: "term1.xls", wantErr: true},
		{name: "no extension", file: "term1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.file)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	data := buildWorkbook(t, map[string][][]interface{}{
		"Data": {
			{"User", "Quarter"},
			{"u1", 4},
		},
	}, []string{"Data"})

	path := filepath.Join(dir, "upload.xlsx")
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	table, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	_, err = ParseFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
