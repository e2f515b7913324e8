// Package exporter writes at-risk student lists as CSV or Excel files.
//
// CSVWriter streams rows with an optional UTF-8 BOM so Excel opens the file
// with the right encoding. AtRiskWorkbook builds a single-sheet .xlsx with a
// styled, frozen header row.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(logger)
//	err := w.AtRiskCSV(rw, students)
//
//	err = exporter.AtRiskWorkbook(rw, students)
package exporter
