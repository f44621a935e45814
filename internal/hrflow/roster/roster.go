// Package roster reads employee rosters from CSV or XLSX uploads.
package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Columns is the header row of a roster file.
var Columns = []string{
	"name", "email", "phone", "dob", "designation", "department",
	"employment_type", "start_date", "ctc", "reporting_manager",
}

const (
	DefaultDepartment      = "Engineering"
	DefaultEmploymentType  = "Full-Time"
	DefaultProbationPeriod = "3 months"
	DefaultWorkLocation    = "Head Office"
	DefaultPFContribution  = 1800
)

// DefaultDocuments are queued for every imported employee.
var DefaultDocuments = []models.Category{models.OfferLetter, models.NDA, models.AppointmentLetter}

var emailPattern = regexp.MustCompile(`^\S+@\S+$`)

// Row is one data line of the roster. Employee is nil when the row is invalid.
type Row struct {
	Line     int               `json:"line"`
	Values   map[string]string `json:"values"`
	Valid    bool              `json:"valid"`
	Errors   []string          `json:"errors,omitempty"`
	Employee *models.Employee  `json:"employee,omitempty"`
}

type Options struct {
	Now time.Time
	// FirstSequence numbers the first valid employee; later ones follow on.
	FirstSequence int
}

// DetectFormat picks the parser from the file name, falling back to the
// zip signature every XLSX file starts with.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return FormatXLSX
	}
	return FormatCSV
}

// Parse reads every data row and validates it. Only structural problems
// with the file itself are returned as errors.
func Parse(data []byte, format Format, opts Options) ([]Row, error) {
	var (
		records []record
		err     error
	)
	switch format {
	case FormatXLSX:
		records, err = readXLSX(data)
	case FormatCSV, "":
		records, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: unsupported roster format %q", e.ErrInvalidInput, format)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: roster is empty", e.ErrInvalidInput)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.FirstSequence < 1 {
		opts.FirstSequence = 1
	}

	headers := make([]string, len(records[0].fields))
	for i, h := range records[0].fields {
		headers[i] = normalizeHeader(h)
	}

	seq := opts.FirstSequence
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec.fields) {
			continue
		}
		row := Row{Line: rec.line, Values: make(map[string]string, len(headers))}
		for j, h := range headers {
			if j < len(rec.fields) {
				row.Values[h] = strings.TrimSpace(rec.fields[j])
			} else {
				row.Values[h] = ""
			}
		}
		ctc, errs := validate(row.Values)
		row.Errors = errs
		row.Valid = len(errs) == 0
		if row.Valid {
			row.Employee = toEmployee(row.Values, ctc, fmt.Sprintf("EMP-%d-%03d", opts.Now.Year(), seq), opts.Now)
			seq++
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Employees returns the employees of the valid rows.
func Employees(rows []Row) []*models.Employee {
	var out []*models.Employee
	for _, r := range rows {
		if r.Valid && r.Employee != nil {
			out = append(out, r.Employee)
		}
	}
	return out
}

func validate(v map[string]string) (int64, []string) {
	var errs []string
	if v["name"] == "" {
		errs = append(errs, "Name required")
	}
	if !emailPattern.MatchString(v["email"]) {
		errs = append(errs, "Valid email required")
	}
	if v["designation"] == "" {
		errs = append(errs, "Designation required")
	}
	if v["start_date"] == "" {
		errs = append(errs, "Start date required")
	}
	var ctc int64
	if v["ctc"] == "" {
		errs = append(errs, "CTC required")
	} else {
		d, err := decimal.NewFromString(strings.ReplaceAll(v["ctc"], ",", ""))
		if err != nil || d.IsNegative() {
			errs = append(errs, "CTC must be a non-negative amount")
		} else {
			ctc = d.Round(0).IntPart()
		}
	}
	return ctc, errs
}

func toEmployee(v map[string]string, ctc int64, employeeID string, now time.Time) *models.Employee {
	emp := &models.Employee{
		ID:                  uuid.NewString(),
		FullName:            v["name"],
		Email:               v["email"],
		Phone:               v["phone"],
		DOB:                 v["dob"],
		EmployeeID:          employeeID,
		Designation:         v["designation"],
		Department:          orDefault(v["department"], DefaultDepartment),
		EmploymentType:      orDefault(v["employment_type"], DefaultEmploymentType),
		StartDate:           v["start_date"],
		ProbationPeriod:     DefaultProbationPeriod,
		ReportingManager:    v["reporting_manager"],
		WorkLocation:        DefaultWorkLocation,
		AnnualCTC:           ctc,
		PFContribution:      DefaultPFContribution,
		CreatedAt:           now.UTC(),
		DocumentsToGenerate: append([]models.Category(nil), DefaultDocuments...),
	}
	emp.Normalize()
	return emp
}

// record is one line of the source file with its 1-based line number.
type record struct {
	line   int
	fields []string
}

func readCSV(data []byte) ([]record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var out []record
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv: %w", e.ErrInvalidInput, err)
		}
		line, _ := r.FieldPos(0)
		out = append(out, record{line: line, fields: fields})
	}
	return out, nil
}

func readXLSX(data []byte) ([]record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %w", e.ErrInvalidInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", e.ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", e.ErrInvalidInput, sheets[0], err)
	}
	out := make([]record, len(rows))
	for i, fields := range rows {
		out[i] = record{line: i + 1, fields: fields}
	}
	return out, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
