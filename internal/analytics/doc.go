// Package analytics computes the descriptive statistics of an attendance
// upload: summary KPIs, quarter 4 enrolment, and attendance and submission
// rates per (level of study, year of course) cell.
//
// Every operation validates its own required columns, coerces and cleans an
// owned copy of the table, and never mutates its input. Zero denominators
// resolve to 0.
package analytics
