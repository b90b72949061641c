package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheets map[string][][]interface{}, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseWorkbookSelectsSheetBySubstring(t *testing.T) {
	data := workbook(t, map[string][][]interface{}{
		"Resumen": {{"x"}, {"y"}},
		"Reporte Activaciones Enero": {
			{" VENDEDOR ", "CLIENTE", "ENSURE"},
			{"E56 - JUAN PEREZ", "TIENDA UNO", "Activado"},
			{"E57 - ANA RUIZ", "TIENDA DOS"},
		},
	}, "Resumen", "Reporte Activaciones Enero")

	sheet, err := Parse(data, FormatXLSX, "activaciones")
	require.NoError(t, err)

	assert.Equal(t, "Reporte Activaciones Enero", sheet.Name)
	assert.Equal(t, []string{"VENDEDOR", "CLIENTE", "ENSURE"}, sheet.Header)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, 2, sheet.Rows[0].Number)
	assert.Equal(t, []string{"E56 - JUAN PEREZ", "TIENDA UNO", "Activado"}, sheet.Rows[0].Cells)
	// short rows are padded to the header width
	assert.Equal(t, []string{"E57 - ANA RUIZ", "TIENDA DOS", ""}, sheet.Rows[1].Cells)
}

func TestParseWorkbookDefaultsToFirstSheet(t *testing.T) {
	data := workbook(t, map[string][][]interface{}{
		"Primera": {{"VENDEDOR"}, {"E1 - A"}},
		"Segunda": {{"CLIENTE"}, {"B"}},
	}, "Primera", "Segunda")

	sheet, err := Parse(data, FormatXLSX, "")
	require.NoError(t, err)
	assert.Equal(t, "Primera", sheet.Name)
}

func TestParseWorkbookSheetNotFound(t *testing.T) {
	data := workbook(t, map[string][][]interface{}{
		"Primera": {{"VENDEDOR"}, {"E1 - A"}},
	}, "Primera")

	_, err := Parse(data, FormatXLSX, "ventas")
	assert.ErrorIs(t, err, ErrSheetNotFound)
	assert.ErrorContains(t, err, "workbook has Primera")
}

func TestSheetNames(t *testing.T) {
	data := workbook(t, map[string][][]interface{}{
		"Resumen": {{"x"}, {"y"}},
		"Reporte": {{"VENDEDOR"}, {"E1 - A"}},
	}, "Resumen", "Reporte")

	names, err := SheetNames(data, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, []string{"Resumen", "Reporte"}, names)

	names, err = SheetNames([]byte("A,B\n1,2\n"), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"csv"}, names)

	_, err = SheetNames([]byte("not a zip archive"), FormatXLSX)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestParseEmptyDocument(t *testing.T) {
	data := workbook(t, map[string][][]interface{}{
		"Hoja": {{"VENDEDOR", "CLIENTE"}},
	}, "Hoja")

	_, err := Parse(data, FormatXLSX, "")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = Parse([]byte("VENDEDOR,CLIENTE\n"), FormatCSV, "")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestParseUnreadableWorkbook(t *testing.T) {
	_, err := Parse([]byte("not a zip archive"), FormatXLSX, "")
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestParseCSVKeepsLineNumbersAcrossBlankRows(t *testing.T) {
	data := []byte("\xef\xbb\xbfVENDEDOR;CLIENTE;FECHA\nE1 - A;UNO;01/02/2024\n;;\nE2 - B;;\n")

	sheet, err := Parse(data, FormatCSV, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"VENDEDOR", "CLIENTE", "FECHA"}, sheet.Header)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, 2, sheet.Rows[0].Number)
	assert.Equal(t, 4, sheet.Rows[1].Number)
	assert.Equal(t, []string{"E2 - B", "", ""}, sheet.Rows[1].Cells)
}

func TestFormatFromFileName(t *testing.T) {
	tests := []struct {
		name string
		want Format
		err  error
	}{
		{"reporte.XLSX", FormatXLSX, nil},
		{"reporte.xls", FormatXLS, nil},
		{"reporte.csv", FormatCSV, nil},
		{"reporte.pdf", "", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromFileName(tt.name)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
