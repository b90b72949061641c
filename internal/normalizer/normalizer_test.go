package normalizer

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"activation-backend/internal/models"
	"activation-backend/internal/spreadsheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var processingDate = time.Date(2024, 1, 20, 15, 30, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return New(Options{
		ProcessingDate: processingDate,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func wideSheet(rows ...[]string) *spreadsheet.Sheet {
	s := &spreadsheet.Sheet{
		Name:   "Reporte",
		Header: []string{"SUPERVISOR", "VENDEDOR", "RUTA", "CLIENTE", "FECHA", "ENSURE", "CHOCOLATE", "ALPINA", "SUPER DE ALIMENTOS", "OBSERVACIONES"},
	}
	for i, cells := range rows {
		s.Rows = append(s.Rows, spreadsheet.Row{Number: i + 2, Cells: cells})
	}
	return s
}

func TestMapHeadersOrderedRules(t *testing.T) {
	cols := MapHeaders([]string{
		" Cód. Cliente ", "Nombre Cliente", "Cod Ruta", "Ruta", "Vendedor", "Fecha Reporte",
		"Super de Alimentos", "Categoría", "CONDICIONATE", "Zona Comercial", "",
	}, nil)

	fields := make([]Field, len(cols))
	for i, c := range cols {
		fields[i] = c.Field
	}
	assert.Equal(t, []Field{
		FieldClientCode, FieldClientName, FieldRouteCode, FieldRouteName, FieldVendor, FieldReportDate,
		FieldCategoryState, FieldCategory, FieldOverallState, FieldExtra, FieldExtra,
	}, fields)

	assert.Equal(t, "SUPER DE ALIMENTOS", cols[6].Category)
	assert.Equal(t, "zona_comercial", cols[9].Key)
	assert.Equal(t, "column_11", cols[10].Key)
}

func TestMapHeadersRepeatedFieldBecomesExtra(t *testing.T) {
	cols := MapHeaders([]string{"VENDEDOR", "VENDEDOR ANTERIOR"}, nil)
	assert.Equal(t, FieldVendor, cols[0].Field)
	assert.Equal(t, FieldExtra, cols[1].Field)
	assert.Equal(t, "vendedor_anterior", cols[1].Key)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "zona_comercial_2", Slugify("  Zona -- Comercial (2) "))
	assert.Equal(t, "", Slugify("--"))
}

func TestSplitCodeName(t *testing.T) {
	tests := []struct {
		in, code, name string
	}{
		{"E56 - JUAN PEREZ", "E56", "JUAN PEREZ"},
		{"  s12-Maria  Lopez ", "S12", "Maria  Lopez"},
		{"JUAN PEREZ", "", "JUAN PEREZ"},
		{"", "", ""},
	}
	for _, tt := range tests {
		code, name := SplitCodeName(tt.in)
		assert.Equal(t, tt.code, code, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
	}
}

func TestParseActivation(t *testing.T) {
	tests := []struct {
		in    string
		state models.ActivationState
		known bool
	}{
		{"Activado", models.ActivationActivated, true},
		{"ACTIVADO", models.ActivationActivated, true},
		{" si ", models.ActivationActivated, true},
		{"1", models.ActivationActivated, true},
		{"0", models.ActivationMissing, true},
		{"", models.ActivationMissing, true},
		{"Pendiente", models.ActivationMissing, true},
		{"No aplica", models.ActivationMissing, true},
		{"FALTA", models.ActivationMissing, true},
		{"quizas", models.ActivationZero, false},
	}
	for _, tt := range tests {
		state, known := ParseActivation(tt.in)
		assert.Equal(t, tt.state, state, tt.in)
		assert.Equal(t, tt.known, known, tt.in)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-01-15", "15/01/2024", "15/1/2024", "15-01-2024", "15/01/24", "45306", "2024-01-15T10:00:00Z"} {
		got, err := ParseDate(in, processingDate)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}

	got, err := ParseDate("", processingDate)
	require.NoError(t, err)
	assert.True(t, DateOnly(processingDate).Equal(got))

	_, err = ParseDate("mañana", processingDate)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestNormalizeWideRow(t *testing.T) {
	n := newTestNormalizer()
	res := n.Normalize(wideSheet(
		[]string{"S01 - LAURA GOMEZ", "E56 - JUAN PEREZ", "R10 - CENTRO", "C100 - TIENDA DON PEPE", "15/01/2024", "Activado", "0", "", "raro", "nota"},
	))

	require.Len(t, res.Valid, 1)
	require.Empty(t, res.Rejected)

	row := res.Valid[0]
	assert.Equal(t, 2, row.Row)
	assert.Equal(t, "nota", row.Extras["observaciones"])
	assert.Equal(t, "E56 - JUAN PEREZ", row.Raw["VENDEDOR"])
	require.Len(t, row.Assignments, 4)

	a := row.Assignments[0]
	assert.Equal(t, "E56", a.VendorCode)
	assert.Equal(t, "JUAN PEREZ", a.VendorName)
	assert.Equal(t, "S01", a.SupervisorCode)
	assert.Equal(t, "LAURA GOMEZ", a.SupervisorName)
	assert.Equal(t, "R10", a.RouteCode)
	assert.Equal(t, "CENTRO", a.RouteName)
	assert.Equal(t, "C100", a.ClientCode)
	assert.Equal(t, "TIENDA DON PEPE", a.ClientName)
	assert.Equal(t, "ENSURE", a.CategoryName)
	assert.Equal(t, models.ActivationActivated, a.ActivationState)
	assert.Equal(t, "2024-01-15", a.ReportDate.Format("2006-01-02"))

	assert.Equal(t, models.ActivationMissing, row.Assignments[1].ActivationState)
	assert.Equal(t, models.ActivationMissing, row.Assignments[2].ActivationState)
	assert.Equal(t, "SUPER DE ALIMENTOS", row.Assignments[3].CategoryName)
	assert.Equal(t, models.ActivationZero, row.Assignments[3].ActivationState)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, models.ErrCodeUnknownActivationState, res.Warnings[0].Code)
}

func TestNormalizeSeparateVendorCodeColumn(t *testing.T) {
	cols := MapHeaders([]string{"CODIGO VENDEDOR", "Cód. Vendedor", "VENDEDOR", "CLIENTE", "ENSURE"}, nil)
	assert.Equal(t, FieldVendorCode, cols[0].Field)
	assert.Equal(t, FieldExtra, cols[1].Field)
	assert.Equal(t, FieldVendor, cols[2].Field)

	n := newTestNormalizer()
	res := n.Normalize(&spreadsheet.Sheet{
		Name:   "Reporte",
		Header: []string{"CODIGO VENDEDOR", "VENDEDOR", "CLIENTE", "ENSURE"},
		Rows:   []spreadsheet.Row{{Number: 2, Cells: []string{"e56", "JUAN PEREZ", "C100 - TIENDA UNO", "Activado"}}},
	})

	require.Empty(t, res.Rejected)
	require.Len(t, res.Valid, 1)
	a := res.Valid[0].Assignments[0]
	assert.Equal(t, "E56", a.VendorCode)
	assert.Equal(t, "JUAN PEREZ", a.VendorName)
	assert.Equal(t, "C100", a.ClientCode)
}

func TestNormalizeClientWithoutNumericCodeStaysWhole(t *testing.T) {
	n := newTestNormalizer()
	res := n.Normalize(wideSheet(
		[]string{"", "E56 - JUAN PEREZ", "", "DON PEPE - CENTRO", "", "Activado", "", "", "", ""},
	))

	require.Len(t, res.Valid, 1)
	a := res.Valid[0].Assignments[0]
	assert.Equal(t, "", a.ClientCode)
	assert.Equal(t, "DON PEPE - CENTRO", a.ClientName)
	assert.Equal(t, "", a.RouteCode)
	assert.Equal(t, "2024-01-20", a.ReportDate.Format("2006-01-02"))
}

func TestNormalizeLongFormat(t *testing.T) {
	n := newTestNormalizer()
	sheet := &spreadsheet.Sheet{
		Header: []string{"COD CLIENTE", "CLIENTE", "VENDEDOR", "CATEGORIA", "CONDICIONATE", "FECHA"},
		Rows: []spreadsheet.Row{
			{Number: 2, Cells: []string{"c-9", "TIENDA", "E1 - ANA", "Ensure", "si", "2024-01-03"}},
		},
	}
	res := n.Normalize(sheet)

	require.Len(t, res.Valid, 1)
	require.Len(t, res.Valid[0].Assignments, 1)
	a := res.Valid[0].Assignments[0]
	assert.Equal(t, "C-9", a.ClientCode)
	assert.Equal(t, "ENSURE", a.CategoryName)
	assert.Equal(t, models.ActivationActivated, a.ActivationState)
}

func TestNormalizeRejections(t *testing.T) {
	n := newTestNormalizer()
	res := n.Normalize(wideSheet(
		[]string{"", "E56 - JUAN PEREZ", "", "TIENDA UNO", "15/01/2024", "Activado", "", "", "", ""},
		[]string{"", "JUAN PEREZ", "", "", "15/01/2024", "Activado", "", "", "", ""},
		[]string{"", "E57 - ANA", "", "TIENDA DOS", "31/31/2024", "Activado", "", "", "", ""},
	))

	assert.Equal(t, 3, res.Total())
	require.Len(t, res.Valid, 1)
	require.Len(t, res.Rejected, 2)

	missing := res.Rejected[0]
	assert.Equal(t, 3, missing.Row)
	require.Len(t, missing.Errors, 1)
	assert.Equal(t, models.ErrCodeMissingRequiredField, missing.Errors[0].Code)
	assert.Equal(t, []string{"vendorCode", "clientName"}, missing.Errors[0].Fields)
	assert.Empty(t, missing.Assignments)

	badDate := res.Rejected[1]
	assert.Equal(t, 4, badDate.Row)
	assert.Equal(t, models.ErrCodeInvalidDate, badDate.Errors[0].Code)
}

func TestNormalizeMissingCategory(t *testing.T) {
	n := newTestNormalizer()
	sheet := &spreadsheet.Sheet{
		Header: []string{"VENDEDOR", "CLIENTE"},
		Rows:   []spreadsheet.Row{{Number: 2, Cells: []string{"E1 - ANA", "TIENDA"}}},
	}
	res := n.Normalize(sheet)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, []string{"categoryName"}, res.Rejected[0].Errors[0].Fields)
}

func TestNormalizePartitionCoversEveryRow(t *testing.T) {
	n := newTestNormalizer()
	var rows [][]string
	for i := 0; i < 50; i++ {
		vendor := "E1 - ANA"
		if i%3 == 0 {
			vendor = ""
		}
		date := "02/01/2024"
		if i%7 == 0 {
			date = "nope"
		}
		rows = append(rows, []string{"", vendor, "", "TIENDA", date, "si", "", "", "", ""})
	}
	res := n.Normalize(wideSheet(rows...))
	assert.Equal(t, 50, len(res.Valid)+len(res.Rejected))
}
