// Package spreadsheet turns uploaded workbook payloads into a header row
// and ordered data rows. It performs no I/O beyond reading the buffer.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrEmptyDocument     = errors.New("document needs a header row and at least one data row")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrUnreadable        = errors.New("file cannot be read as a spreadsheet")
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// FormatFromFileName derives the payload format from the upload file name
func FormatFromFileName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
}

// Row is a positional data row. Number is the 1-based line in the sheet,
// the header being line 1.
type Row struct {
	Number int      `json:"number"`
	Cells  []string `json:"cells"`
}

type Sheet struct {
	Name   string   `json:"name"`
	Header []string `json:"header"`
	Rows   []Row    `json:"rows"`
}

// Parse reads the sheet matching sheetName from data. An empty sheetName
// selects the first sheet; otherwise the first sheet whose name contains
// sheetName, ignoring case, is used.
func Parse(data []byte, format Format, sheetName string) (*Sheet, error) {
	var (
		name string
		rows [][]string
		err  error
	)

	switch format {
	case FormatXLSX, FormatXLS:
		name, rows, err = readWorkbook(data, sheetName)
	case FormatCSV:
		name = "csv"
		rows, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	return buildSheet(name, rows)
}

// SheetNames lists the sheets of a workbook in order
func SheetNames(data []byte, format Format) ([]string, error) {
	if format == FormatCSV {
		return []string{"csv"}, nil
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func readWorkbook(data []byte, sheetName string) (string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	name, ok := matchSheet(sheets, sheetName)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q, workbook has %s", ErrSheetNotFound, sheetName, strings.Join(sheets, ", "))
	}

	// Raw values keep date cells as serial numbers instead of
	// locale-formatted strings
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return name, rows, nil
}

func matchSheet(sheets []string, want string) (string, bool) {
	if len(sheets) == 0 {
		return "", false
	}
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return sheets[0], true
	}
	for _, s := range sheets {
		if strings.Contains(strings.ToLower(s), want) {
			return s, true
		}
	}
	return "", false
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func buildSheet(name string, rows [][]string) (*Sheet, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyDocument
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return nil, ErrEmptyDocument
	}

	sheet := &Sheet{Name: name, Header: header}
	for i, raw := range rows[1:] {
		if isBlank(raw) {
			continue
		}
		cells := make([]string, len(header))
		for j := range cells {
			if j < len(raw) {
				cells[j] = strings.TrimSpace(raw[j])
			}
		}
		sheet.Rows = append(sheet.Rows, Row{Number: i + 2, Cells: cells})
	}
	if len(sheet.Rows) == 0 {
		return nil, ErrEmptyDocument
	}
	return sheet, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
