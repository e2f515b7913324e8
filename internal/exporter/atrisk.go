package exporter

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"attendx/pkg/contracts/domain"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for an export format other than csv or xlsx
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a query value to a Format; empty means csv
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the media type of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// AtRiskSheet is the worksheet name of workbook exports
const AtRiskSheet = "At Risk"

// AtRiskHeaders are the columns of every at-risk export
var AtRiskHeaders = []string{
	domain.ColumnUser,
	domain.ColumnLevelOfStudy,
	domain.ColumnYearOfCourse,
	domain.ColumnCourseCode,
	domain.ColumnAttendance,
	"Submission Rate",
	"Attendance (scaled)",
	"Submission Rate (scaled)",
	"Anomaly Score",
}

func atRiskRow(s domain.AtRiskStudent) []string {
	return []string{
		s.User,
		string(s.LevelOfStudy),
		formatInt(s.YearOfCourse),
		s.CourseCode,
		formatFloat(s.Attendance),
		formatFloat(s.SubmissionRate),
		formatScore(s.AttendanceScaled),
		formatScore(s.SubmissionRateScaled),
		formatScore(s.AnomalyScore),
	}
}

// AtRiskFilename names an export after its filter, e.g. at-risk_UG_1_C101.csv
func AtRiskFilename(filter domain.AtRiskFilter, format Format) string {
	parts := []string{"at-risk", string(filter.LevelOfStudy), formatInt(filter.YearOfCourse)}
	if filter.CourseCode != "" {
		parts = append(parts, sanitize(filter.CourseCode))
	}
	return strings.Join(parts, "_") + "." + string(format)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, s)
}

func atRiskOptions(students []domain.AtRiskStudent) WriteOptions {
	records := make([][]string, len(students))
	for i, s := range students {
		records[i] = atRiskRow(s)
	}
	return WriteOptions{Headers: AtRiskHeaders, Records: records, BOMPrefix: true}
}

// AtRiskCSV writes the students as CSV with a UTF-8 BOM
func (w *CSVWriter) AtRiskCSV(out io.Writer, students []domain.AtRiskStudent) error {
	return w.Write(out, atRiskOptions(students))
}

// AtRiskFile is AtRiskCSV to a file at path
func (w *CSVWriter) AtRiskFile(path string, students []domain.AtRiskStudent) error {
	return w.WriteFile(path, atRiskOptions(students))
}

// AtRiskWorkbook writes the students as a single-sheet workbook with a
// frozen, filterable header row. Numbers are stored as numbers.
func AtRiskWorkbook(out io.Writer, students []domain.AtRiskStudent) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AtRiskSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(AtRiskHeaders))
	for i, h := range AtRiskHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(AtRiskSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, s := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			s.User,
			string(s.LevelOfStudy),
			s.YearOfCourse,
			s.CourseCode,
			s.Attendance,
			s.SubmissionRate,
			s.AttendanceScaled,
			s.SubmissionRateScaled,
			s.AnomalyScore,
		}
		if err := f.SetSheetRow(AtRiskSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(AtRiskHeaders))
	if err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(AtRiskSheet, "A1", lastCol+"1", style); err != nil {
		return err
	}
	if err := f.SetColWidth(AtRiskSheet, "A", lastCol, 18); err != nil {
		return err
	}
	if err := f.SetPanes(AtRiskSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if err := f.AutoFilter(AtRiskSheet, fmt.Sprintf("A1:%s%d", lastCol, len(students)+1), nil); err != nil {
		return fmt.Errorf("failed to add filter: %w", err)
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
