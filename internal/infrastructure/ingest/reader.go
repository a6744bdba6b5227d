// Package ingest reads school datasets from CSV and Excel files into
// import rows. Format is sniffed from the file extension; both formats
// are reduced to a header-mapped grid before parsing, so the column
// rules live in one place.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/teamvidya/vidya-dropout/internal/application/command"
	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS & FORMATS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrUnsupportedFormat is returned for file extensions the reader
	// does not handle.
	ErrUnsupportedFormat = errors.New("ingest: unsupported file format")

	// ErrEmptyFile is returned when a file has no data rows.
	ErrEmptyFile = errors.New("ingest: file contains no data rows")

	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("ingest: required column missing")
)

// DateLayout is the expected date format in attendance files.
const DateLayout = "2006-01-02"

// Roster column headers. Matching is case-insensitive and ignores
// surrounding whitespace.
const (
	colRollNumber    = "roll_number"
	colFullName      = "full_name"
	colClass         = "class"
	colGuardianEmail = "guardian_email"
	colMentorEmail   = "mentor_email"
	colAverageScore  = "average_score"
	colExamAttempts  = "exam_attempts"
	colFeeStatus     = "fee_status"
	colDate          = "date"
	colStatus        = "status"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUBLIC API
// ══════════════════════════════════════════════════════════════════════════════

// ReadRosterFile reads a roster file (students and their metrics).
// Required columns: roll_number, full_name, class. Optional:
// guardian_email, mentor_email, average_score, exam_attempts, fee_status.
func ReadRosterFile(path string) ([]command.StudentImportRow, error) {
	grid, err := readGrid(path)
	if err != nil {
		return nil, err
	}
	return parseRoster(grid)
}

// ReadRoster reads a roster from a stream in the given format
// ("csv", "xlsx").
func ReadRoster(r io.Reader, format string) ([]command.StudentImportRow, error) {
	grid, err := readGridFrom(r, format)
	if err != nil {
		return nil, err
	}
	return parseRoster(grid)
}

// ReadAttendanceFile reads a historical attendance file.
// Required columns: roll_number, date, status.
func ReadAttendanceFile(path string) ([]command.AttendanceImportRow, error) {
	grid, err := readGrid(path)
	if err != nil {
		return nil, err
	}
	return parseAttendance(grid)
}

// ReadAttendance reads attendance rows from a stream in the given format.
func ReadAttendance(r io.Reader, format string) ([]command.AttendanceImportRow, error) {
	grid, err := readGridFrom(r, format)
	if err != nil {
		return nil, err
	}
	return parseAttendance(grid)
}

// ══════════════════════════════════════════════════════════════════════════════
// GRID READING
// ══════════════════════════════════════════════════════════════════════════════

// grid is a parsed spreadsheet: the header index plus data rows.
type grid struct {
	columns map[string]int
	rows    [][]string
}

func readGrid(path string) (*grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return readGridFrom(f, format)
}

func readGridFrom(r io.Reader, format string) (*grid, error) {
	var rows [][]string
	var err error

	switch format {
	case "csv":
		rows, err = readCSV(r)
	case "xlsx", "xlsm":
		rows, err = readExcel(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	columns := make(map[string]int, len(rows[0]))
	for i, header := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(header))
		if key != "" {
			columns[key] = i
		}
	}

	return &grid{columns: columns, rows: rows[1:]}, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Rows may have trailing blanks; length checks happen per cell.
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: read csv: %w", err)
	}
	return rows, nil
}

func readExcel(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: open excel: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("ingest: excel file contains no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("ingest: read sheet %q: %w", sheetName, err)
	}
	return rows, nil
}

// cell returns the trimmed value of a named column, or "" when the row
// is short or the column absent.
func (g *grid) cell(row []string, column string) string {
	idx, ok := g.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (g *grid) require(columns ...string) error {
	for _, c := range columns {
		if _, ok := g.columns[c]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
	}
	return nil
}

// blank reports whether a row has no content at all.
func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// ROW PARSING
// ══════════════════════════════════════════════════════════════════════════════

func parseRoster(g *grid) ([]command.StudentImportRow, error) {
	if err := g.require(colRollNumber, colFullName, colClass); err != nil {
		return nil, err
	}

	rows := make([]command.StudentImportRow, 0, len(g.rows))
	for i, raw := range g.rows {
		if blank(raw) {
			continue
		}
		line := i + 2 // 1-based, after the header

		roll, err := strconv.Atoi(g.cell(raw, colRollNumber))
		if err != nil {
			return nil, fmt.Errorf("ingest: line %d: invalid roll number %q", line, g.cell(raw, colRollNumber))
		}

		class, err := strconv.Atoi(g.cell(raw, colClass))
		if err != nil {
			return nil, fmt.Errorf("ingest: line %d: invalid class %q", line, g.cell(raw, colClass))
		}

		row := command.StudentImportRow{
			RollNumber:    roll,
			FullName:      g.cell(raw, colFullName),
			Class:         class,
			GuardianEmail: g.cell(raw, colGuardianEmail),
			MentorEmail:   g.cell(raw, colMentorEmail),
			FeeStatus:     strings.ToLower(g.cell(raw, colFeeStatus)),
		}

		if v := g.cell(raw, colAverageScore); v != "" {
			score, err := parseRoundedInt(v)
			if err != nil {
				return nil, fmt.Errorf("ingest: line %d: invalid average score %q", line, v)
			}
			row.AverageScore = &score
		}

		if v := g.cell(raw, colExamAttempts); v != "" {
			attempts, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("ingest: line %d: invalid exam attempts %q", line, v)
			}
			row.ExamAttempts = &attempts
		}

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func parseAttendance(g *grid) ([]command.AttendanceImportRow, error) {
	if err := g.require(colRollNumber, colDate, colStatus); err != nil {
		return nil, err
	}

	rows := make([]command.AttendanceImportRow, 0, len(g.rows))
	for i, raw := range g.rows {
		if blank(raw) {
			continue
		}
		line := i + 2

		roll, err := strconv.Atoi(g.cell(raw, colRollNumber))
		if err != nil {
			return nil, fmt.Errorf("ingest: line %d: invalid roll number %q", line, g.cell(raw, colRollNumber))
		}

		date, err := time.Parse(DateLayout, g.cell(raw, colDate))
		if err != nil {
			return nil, fmt.Errorf("ingest: line %d: invalid date %q (want %s)", line, g.cell(raw, colDate), DateLayout)
		}

		status := attendance.Status(strings.ToLower(g.cell(raw, colStatus)))
		if !status.IsValid() {
			return nil, fmt.Errorf("ingest: line %d: invalid status %q", line, g.cell(raw, colStatus))
		}

		rows = append(rows, command.AttendanceImportRow{
			RollNumber: roll,
			Date:       date,
			Status:     status,
		})
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

// parseRoundedInt accepts "72" and "72.4", rounding fractions to the
// nearest whole point the way the profile metrics store them.
func parseRoundedInt(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f >= 0 {
		return int(f + 0.5), nil
	}
	return int(f - 0.5), nil
}
