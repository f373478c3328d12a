// Package spreadsheet reads and writes the xlsx workbooks exchanged with the operations
// and research teams.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// XLSXMime is the content type of Office Open XML workbooks.
const XLSXMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column headers of the student roster export produced by the booking platform.
const (
	HeaderExternalID = "用户ID"
	HeaderNickname   = "昵称"
)

var (
	// ErrNotWorkbook indicates the upload is not an xlsx file.
	ErrNotWorkbook = errors.New("file is not an xlsx workbook")
	// ErrMissingColumns indicates the header row lacks a required column.
	ErrMissingColumns = errors.New("workbook is missing required columns")
	// ErrEmptyWorkbook indicates the workbook has no sheets or rows.
	ErrEmptyWorkbook = errors.New("workbook has no data")
)

// StudentRow is one data row of a roster workbook. Row is the 1-based sheet row.
type StudentRow struct {
	Row        int
	ExternalID string
	Name       string
}

// Detect confirms data is an xlsx workbook and returns the detected mime type.
func Detect(data []byte) (string, error) {
	mime := mimetype.Detect(data)
	if !mime.Is(XLSXMime) {
		return mime.String(), ErrNotWorkbook
	}
	return mime.String(), nil
}

// ReadRows returns every row of the named sheet, or of the first sheet when sheet is empty.
func ReadRows(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyWorkbook
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return rows, nil
}

// ParseStudentRows locates the roster columns by header and returns the data rows.
// Rows with an empty external id are reported in skipped by their sheet row number.
func ParseStudentRows(data []byte) (rows []StudentRow, skipped []int, err error) {
	raw, err := ReadRows(data, "")
	if err != nil {
		return nil, nil, err
	}

	idCol, nameCol := -1, -1
	for idx, header := range raw[0] {
		switch strings.TrimSpace(header) {
		case HeaderExternalID:
			idCol = idx
		case HeaderNickname:
			nameCol = idx
		}
	}
	if idCol < 0 || nameCol < 0 {
		return nil, nil, fmt.Errorf("%w: need %s and %s", ErrMissingColumns, HeaderExternalID, HeaderNickname)
	}

	for i, row := range raw[1:] {
		sheetRow := i + 2
		externalID := cell(row, idCol)
		if externalID == "" {
			if !blank(row) {
				skipped = append(skipped, sheetRow)
			}
			continue
		}
		rows = append(rows, StudentRow{Row: sheetRow, ExternalID: externalID, Name: cell(row, nameCol)})
	}
	return rows, skipped, nil
}

// Table is a single-sheet export.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]interface{}
}

// Write renders the table as an xlsx workbook.
func Write(table Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := table.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return nil, fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	headers := make([]interface{}, len(table.Headers))
	for i, header := range table.Headers {
		headers[i] = header
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range table.Rows {
		values := row
		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, anchor, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
