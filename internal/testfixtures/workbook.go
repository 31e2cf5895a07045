package testfixtures

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Workbook builds small xlsx payloads for parser and handler tests.
type Workbook struct {
	headers []string
	rows    [][]string
}

// NewWorkbook starts a workbook with the given header row.
func NewWorkbook(headers ...string) *Workbook {
	return &Workbook{headers: headers}
}

// AddRow appends one data row. Shorter rows leave trailing cells empty.
func (w *Workbook) AddRow(cells ...string) *Workbook {
	w.rows = append(w.rows, cells)
	return w
}

// Bytes renders the workbook to an in-memory xlsx file.
func (w *Workbook) Bytes() ([]byte, error) {
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	if err := w.writeRow(file, sheet, 1, w.headers); err != nil {
		return nil, err
	}
	for i, row := range w.rows {
		if err := w.writeRow(file, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Reader renders the workbook and wraps it for streaming consumers.
func (w *Workbook) Reader() (*bytes.Reader, error) {
	payload, err := w.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(payload), nil
}

func (w *Workbook) writeRow(file *excelize.File, sheet string, rowNumber int, cells []string) error {
	for i, cell := range cells {
		name, err := excelize.CoordinatesToCellName(i+1, rowNumber)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := file.SetCellValue(sheet, name, cell); err != nil {
			return fmt.Errorf("set cell %s: %w", name, err)
		}
	}
	return nil
}

// PayrollHeaders is the standard Japanese header row the upload sheets use.
func PayrollHeaders() []string {
	return []string{"社員番号", "氏名", "部署", "基本給", "残業代", "手当", "控除"}
}
