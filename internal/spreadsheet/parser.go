package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrParse wraps every failure to turn an uploaded file into rows: unreadable
// or non-spreadsheet content, missing headers, or an oversize payload.
var ErrParse = errors.New("spreadsheet: parse failed")

// ErrTooLarge is returned when the upload exceeds the configured size limit.
// It matches ErrParse via errors.Is so callers can treat both as 4xx-class
// input failures while still distinguishing the oversize case.
var ErrTooLarge = fmt.Errorf("%w: file too large", ErrParse)

// UploadRow is one data row extracted from the workbook. RowIndex is the
// 1-based position among data rows (the header row is excluded). RawFields
// holds every cell keyed by normalized header, unrecognized columns included.
// Rows are never mutated after parsing; downstream stages attach their own
// records referencing them.
type UploadRow struct {
	RowIndex  int
	RawFields map[string]string
}

// Field returns the raw cell value for a canonical column, trimmed.
func (r UploadRow) Field(name string) string {
	return strings.TrimSpace(r.RawFields[name])
}

// Canonical column names produced by header normalization.
const (
	ColumnEmployeeCode = "employee_code"
	ColumnName         = "name"
	ColumnDepartment   = "department"
	ColumnBaseSalary   = "base_salary"
	ColumnOvertimePay  = "overtime_pay"
	ColumnAllowance    = "allowance"
	ColumnDeduction    = "deduction"
)

// headerAliases maps normalized header text to canonical column names. The
// source sheets circulate in both Japanese and English.
var headerAliases = map[string]string{
	"employee_code": ColumnEmployeeCode,
	"employeecode":  ColumnEmployeeCode,
	"code":          ColumnEmployeeCode,
	"社員番号":          ColumnEmployeeCode,
	"従業員番号":         ColumnEmployeeCode,
	"name":          ColumnName,
	"employee_name": ColumnName,
	"氏名":            ColumnName,
	"名前":            ColumnName,
	"department":    ColumnDepartment,
	"部署":            ColumnDepartment,
	"所属":            ColumnDepartment,
	"base_salary":   ColumnBaseSalary,
	"basesalary":    ColumnBaseSalary,
	"salary":        ColumnBaseSalary,
	"基本給":           ColumnBaseSalary,
	"overtime_pay":  ColumnOvertimePay,
	"overtime":      ColumnOvertimePay,
	"残業代":           ColumnOvertimePay,
	"残業手当":          ColumnOvertimePay,
	"allowance":     ColumnAllowance,
	"手当":            ColumnAllowance,
	"諸手当":           ColumnAllowance,
	"deduction":     ColumnDeduction,
	"deductions":    ColumnDeduction,
	"控除":            ColumnDeduction,
	"控除額":           ColumnDeduction,
}

// Parser extracts upload rows from xlsx workbooks.
type Parser struct {
	maxBytes int64
}

// NewParser constructs a parser enforcing the given upload size limit.
// A non-positive limit disables the check.
func NewParser(maxBytes int64) *Parser {
	return &Parser{maxBytes: maxBytes}
}

// Parse reads the workbook from r and returns its data rows in sheet order.
// The read is bounded: at most maxBytes+1 bytes are consumed, so an oversize
// upload is rejected without buffering the whole file. An empty sheet yields
// an empty slice, not an error. Parse honors ctx between row batches so an
// abandoned upload stops early.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]UploadRow, error) {
	counting := &countingReader{r: r}
	var reader io.Reader = counting
	if p.maxBytes > 0 {
		reader = io.LimitReader(counting, p.maxBytes+1)
	}

	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		// excelize buffers the stream internally; when the bounded reader ran
		// dry mid-archive the zip error it reports really means the upload
		// exceeded the limit.
		if p.maxBytes > 0 && counting.n > p.maxBytes {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer func() { _ = workbook.Close() }()

	sheetName := workbook.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: no worksheet found", ErrParse)
	}

	rows, err := workbook.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	records := make([]UploadRow, 0, 64)
	rowIndex := 0

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cells, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}

		if columns == nil {
			columns = normalizeHeaders(cells)
			if len(columns) == 0 {
				return nil, fmt.Errorf("%w: header row is empty", ErrParse)
			}
			continue
		}

		if isBlankRow(cells) {
			continue
		}

		rowIndex++
		fields := make(map[string]string, len(columns))
		for i, column := range columns {
			if column == "" {
				continue
			}
			if i < len(cells) {
				fields[column] = strings.TrimSpace(cells[i])
			} else {
				fields[column] = ""
			}
		}
		records = append(records, UploadRow{RowIndex: rowIndex, RawFields: fields})
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return records, nil
}

// CheckSize rejects a declared upload size above the limit before any byte is
// read. Callers with an unknown size (-1) defer to the bounded reader.
func (p *Parser) CheckSize(declared int64) error {
	if p.maxBytes > 0 && declared > p.maxBytes {
		return ErrTooLarge
	}
	return nil
}

// normalizeHeaders maps raw header cells to canonical column names. Unknown
// headers keep their normalized text so the raw value survives into
// RawFields; empty headers mark the column as ignored.
func normalizeHeaders(cells []string) []string {
	columns := make([]string, len(cells))
	any := false
	for i, cell := range cells {
		normalized := normalizeHeader(cell)
		if normalized == "" {
			continue
		}
		any = true
		if canonical, ok := headerAliases[normalized]; ok {
			columns[i] = canonical
		} else {
			columns[i] = normalized
		}
	}
	if !any {
		return nil
	}
	return columns
}

func normalizeHeader(header string) string {
	normalized := strings.ToLower(strings.TrimSpace(header))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "　", "")
	return normalized
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
