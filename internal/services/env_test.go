package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"activation-backend/internal/cache"
	"activation-backend/internal/models"
	"activation-backend/internal/repositories/memory"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testEnv struct {
	store     *memory.Store
	cache     *cache.Memory
	ledger    *RunLedger
	imports   *ImportService
	promotion *PromotionService
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.SaveReferences(context.Background(), models.ReferenceSet{
		Vendors: []models.Vendor{
			{Code: "V01", Name: "JUAN PEREZ", SupervisorCode: "S1"},
			{Code: "V02", Name: "ANA GOMEZ", SupervisorCode: "S1"},
		},
		Clients: []models.Client{
			{Code: "C100", Name: "TIENDA UNO"},
			{Code: "C200", Name: "TIENDA DOS"},
			{Code: "C300", Name: "TIENDA TRES"},
		},
		Routes: []models.Route{{Code: "R1", Name: "NORTE"}},
	}))

	c := cache.NewMemory()
	logger := quietLogger()
	stores := store.Stores()
	ledger := NewRunLedger(stores.Runs, stores.Staging, nil, logger)
	imports := NewImportService(ImportConfig{MaxFileBytes: 1 << 20, MaxRows: 50, PreviewRows: 5},
		ledger, nil, stores.ActionLogs, logger)
	imports.today = func() time.Time { return day("2024-03-10") }
	promotion := NewPromotionService(PromotionConfig{BatchSize: 3, Timeout: 5 * time.Second},
		stores.Promoter, stores.Runs, c, nil, stores.ActionLogs, logger)

	return &testEnv{store: store, cache: c, ledger: ledger, imports: imports, promotion: promotion}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func window(start, end string) *models.DateRange {
	return &models.DateRange{Start: day(start), End: day(end)}
}

const wideHeader = "VENDEDOR,CLIENTE,RUTA,FECHA,ENSURE,CHOCOLATE"

// csvFile joins lines into a CSV payload
func csvFile(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func xlsxFile(t *testing.T, sheet string, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func (e *testEnv) upload(t *testing.T, mode models.ImportMode, r *models.DateRange, data []byte) *UploadResult {
	t.Helper()
	res, err := e.imports.Upload(context.Background(), UploadRequest{
		FileName: "reporte.csv",
		Data:     data,
		Mode:     mode,
		Range:    r,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) assignments(t *testing.T) map[string]models.ActivationState {
	t.Helper()
	list, err := e.store.ListAssignments(context.Background(), models.AssignmentFilter{})
	require.NoError(t, err)
	out := make(map[string]models.ActivationState, len(list))
	for _, a := range list {
		out[fmt.Sprintf("%s/%s/%s/%s", a.VendorCode, a.ClientCode, a.CategoryCode, a.ReportDate.Format("2006-01-02"))] = a.ActivationState
	}
	return out
}
