// Package dataprocessing turns uploaded attendance spreadsheets into typed,
// cleaned records ready for aggregation.
//
// # Architecture
//
// The package is organized into four steps:
//
// 1. Parser: reads .xlsx workbooks (excelize) and .csv files (gota) into a Table
// 2. Schema: Validate checks the required columns of a statistic
// 3. Coercion: Coerce parses numeric cells and drops rows that do not parse
// 4. Normalization: Frame.NormalizeAttendance brings % Attendance to 0-100 once
//
// # Usage
//
//	table, err := dataprocessing.ParseFile("attendance.xlsx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	owned, err := dataprocessing.Validate(table, dataprocessing.SummaryColumns...)
//	if err != nil {
//	    return err // *MissingColumnError
//	}
//	frame, report := dataprocessing.Coerce(owned, domain.ColumnAttendance, domain.ColumnQuarter)
//	frame.NormalizeAttendance()
//
// # Data Flow
//
//	Upload → Parser → Table → Validate → Coerce → Frame → analytics / anomaly
//
// # Error Handling
//
// Schema problems are returned as *MissingColumnError wrapping
// ErrMissingColumn. Unparseable numeric cells are never errors: the row is
// dropped and counted in the CoercionReport.
package dataprocessing
