// Command attendx-report runs the attendance analytics against a local
// spreadsheet and prints the result as a table or JSON.
//
//	attendx-report -file attendance.xlsx summary
//	attendx-report -file attendance.csv -level UG -year 1 at-risk -export at-risk.xlsx
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"attendx/internal/anomaly"
	"attendx/internal/config"
	"attendx/internal/exporter"
	"attendx/internal/infrastructure"
	"attendx/internal/services"
	"attendx/internal/sessions"
	"attendx/internal/validation"
	"attendx/pkg/contracts"
	"attendx/pkg/contracts/domain"
)

const usage = `usage: attendx-report -file PATH [flags] OPERATION [flags]

operations:
  summary      headline statistics
  enrolment    quarter 4 enrolment for -level
  attendance   attendance by quarter for -level and -year
  submission   submission rate by course for -level and -year
  at-risk      at-risk students for -level and -year (optionally -course)
  dashboard    every statistic at once

flags:
`

type options struct {
	file      string
	level     string
	year      int
	course    string
	asJSON    bool
	export    string
	operation string
	version   bool
}

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("attendx-report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	opts := &options{}
	fs.StringVar(&opts.file, "file", "", "spreadsheet to analyse (.xlsx or .csv)")
	fs.StringVar(&opts.level, "level", string(domain.LevelUG), "level of study (UG or PGT)")
	fs.IntVar(&opts.year, "year", 1, "year of course")
	fs.StringVar(&opts.course, "course", "", "restrict at-risk students to one course code")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	fs.StringVar(&opts.export, "export", "", "also write at-risk students to this .csv or .xlsx file")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	// flags may follow the operation: flag stops at the first positional
	// argument, so parsing resumes after each one
	var positional []string
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	for fs.NArg() > 0 {
		positional = append(positional, fs.Arg(0))
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return nil, err
		}
	}

	if opts.version {
		return opts, nil
	}
	if opts.file == "" || len(positional) != 1 {
		fs.Usage()
		return nil, errors.New("a file and exactly one operation are required")
	}
	opts.operation = strings.ToLower(positional[0])
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		_, err := fmt.Fprintln(stdout, contracts.GetVersionInfo())
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := infrastructure.NewLogger(cfg.Logging, stderr)

	level, err := domain.ParseLevelOfStudy(strings.ToUpper(opts.level))
	if err != nil {
		return err
	}

	validator := validation.NewFileValidator(logger, cfg.Uploads.MaxBytes)
	if _, err := validator.ValidateFile(opts.file); err != nil {
		return err
	}

	uploads := services.NewUploadService(sessions.NewMemoryStore(logger), validator, cfg.Uploads.SessionTTL, nil, logger)
	detector := anomaly.NewDetector(anomaly.Config{
		Imputer: anomaly.ImputerConfig{
			MaxIterations: cfg.Analytics.ImputerMaxIterations,
			Tolerance:     cfg.Analytics.ImputerTolerance,
		},
		Forest: anomaly.ForestConfig{
			Trees:         cfg.Analytics.ForestTrees,
			MaxSamples:    cfg.Analytics.ForestMaxSamples,
			Contamination: cfg.Analytics.Contamination,
			Seed:          cfg.Analytics.Seed,
		},
	}, logger)
	analytics := services.NewAnalyticsService(uploads, detector, cfg.Analytics.Workers, nil, logger)

	id, err := load(ctx, uploads, opts.file)
	if err != nil {
		return err
	}
	logger.DebugContext(ctx, "Report input loaded", slog.String("file", opts.file), slog.String("upload_id", id))

	var result any
	var render func(io.Writer)

	switch opts.operation {
	case "summary":
		stats, err := analytics.Summary(ctx, id)
		if err != nil {
			return err
		}
		result, render = stats, func(w io.Writer) { renderSummary(w, stats) }
	case "enrolment":
		e, err := analytics.Enrolment(ctx, id, level)
		if err != nil {
			return err
		}
		result, render = e, func(w io.Writer) { renderEnrolment(w, e) }
	case "attendance":
		a, err := analytics.Attendance(ctx, id, level, opts.year)
		if err != nil {
			return err
		}
		result, render = a, func(w io.Writer) { renderAttendance(w, a) }
	case "submission":
		s, err := analytics.Submission(ctx, id, level, opts.year)
		if err != nil {
			return err
		}
		result, render = s, func(w io.Writer) { renderSubmission(w, s) }
	case "at-risk":
		filter := domain.AtRiskFilter{LevelOfStudy: level, YearOfCourse: opts.year, CourseCode: opts.course}
		students, err := analytics.AtRisk(ctx, id, filter)
		if err != nil {
			return err
		}
		if opts.export != "" {
			if err := export(opts.export, students, logger); err != nil {
				return err
			}
		}
		result, render = students, func(w io.Writer) { renderAtRisk(w, students) }
	case "dashboard":
		d, err := analytics.Dashboard(ctx, id)
		if err != nil {
			return err
		}
		result, render = d, func(w io.Writer) { renderDashboard(w, d) }
	default:
		return fmt.Errorf("unknown operation %q", opts.operation)
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	render(stdout)
	return nil
}

// load stores the file as an in-process upload session and returns its ID
func load(ctx context.Context, uploads *services.UploadService, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	resp, err := uploads.Upload(ctx, filepath.Base(path), size, f)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func export(path string, students []domain.AtRiskStudent, logger *slog.Logger) error {
	format, err := exporter.ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}
	if format == exporter.FormatCSV {
		return exporter.NewCSVWriter(logger).AtRiskFile(path, students)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := exporter.AtRiskWorkbook(out, students); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func renderSummary(w io.Writer, s *domain.SummaryStatistics) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Statistic", "Value"})
	table.Append([]string{"Total students", strconv.Itoa(s.TotalStudents)})
	table.Append([]string{"Dropout rate %", pct(s.DropoutRate)})
	table.Append([]string{"Average attendance %", pct(s.AverageAttendance)})
	table.Append([]string{"Average submission rate %", pct(s.AverageSubmissionRate)})
	if c := s.CourseWithHighestAttendance; c != nil {
		table.Append([]string{"Highest attendance", c.CourseCode + " (" + pct(c.Attendance) + ")"})
	}
	if c := s.CourseWithLowestAttendance; c != nil {
		table.Append([]string{"Lowest attendance", c.CourseCode + " (" + pct(c.Attendance) + ")"})
	}
	table.Render()
}

func renderEnrolment(w io.Writer, e *domain.EnrolmentBreakdown) {
	header := []string{"Course", "Students"}
	for _, y := range e.Years {
		header = append(header, "Year "+strconv.Itoa(y))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	for i, course := range e.Courses {
		row := []string{course, strconv.Itoa(e.StudentsPerCourse[course])}
		for _, y := range e.Years {
			row = append(row, strconv.Itoa(e.YearCounts[y][i]))
		}
		table.Append(row)
	}
	table.Render()
}

func renderAttendance(w io.Writer, a *domain.AttendanceByQuarter) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Course", "Q1", "Q2", "Q3", "Q4", "Average"})
	for _, course := range sortedKeys(a.Courses) {
		c := a.Courses[course]
		row := []string{course}
		for q := 1; q <= 4; q++ {
			if v, ok := c.ByQuarter[q]; ok {
				row = append(row, pct(v))
			} else {
				row = append(row, "-")
			}
		}
		table.Append(append(row, pct(c.AverageAttendance)))
	}
	table.Render()
}

func renderSubmission(w io.Writer, s *domain.SubmissionByCourse) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Course", "Year", "Submission rate %"})
	for _, course := range sortedKeys(s.Courses) {
		c := s.Courses[course]
		table.Append([]string{c.CourseCode, strconv.Itoa(c.YearOfCourse), pct(c.AverageSubmissionRate)})
	}
	table.Render()
}

func renderAtRisk(w io.Writer, students []domain.AtRiskStudent) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"User", "Course", "Attendance %", "Submission %", "Score"})
	for _, s := range students {
		table.Append([]string{
			s.User,
			s.CourseCode,
			pct(s.Attendance),
			pct(s.SubmissionRate),
			strconv.FormatFloat(s.AnomalyScore, 'f', 3, 64),
		})
	}
	table.SetFooter([]string{"", "", "", "Total", strconv.Itoa(len(students))})
	table.Render()
}

func renderDashboard(w io.Writer, d *domain.Dashboard) {
	if d.Summary != nil {
		renderSummary(w, d.Summary)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Cell", "Attendance courses", "Submission courses", "At risk"})
	seen := make(map[string]struct{})
	for key := range d.Attendance {
		seen[string(key)] = struct{}{}
	}
	for key := range d.Submission {
		seen[string(key)] = struct{}{}
	}
	for key := range d.AtRisk {
		seen[string(key)] = struct{}{}
	}
	for _, cell := range sortedKeys(seen) {
		key := domain.CellKey(cell)
		row := []string{cell, "-", "-", strconv.Itoa(len(d.AtRisk[key]))}
		if a := d.Attendance[key]; a != nil {
			row[1] = strconv.Itoa(len(a.Courses))
		}
		if s := d.Submission[key]; s != nil {
			row[2] = strconv.Itoa(len(s.Courses))
		}
		table.Append(row)
	}
	table.Render()

	if len(d.Errors) == 0 {
		return
	}
	errs := tablewriter.NewWriter(w)
	errs.SetHeader([]string{"Section", "Code", "Message"})
	for _, e := range d.Errors {
		errs.Append([]string{e.Section, e.Code, e.Message})
	}
	errs.Render()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
