package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"activation-backend/internal/models"
	"activation-backend/internal/timeutil"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf/v2"
)

// ReportService exports the ledger view of a run
type ReportService struct {
	ledger *RunLedger
}

func NewReportService(ledger *RunLedger) *ReportService {
	return &ReportService{ledger: ledger}
}

// RejectedCSV lists every rejected staging row of the run with its reasons
// and the raw cells it was read from
func (s *ReportService) RejectedCSV(ctx context.Context, runID uuid.UUID) ([]byte, error) {
	rows, err := s.ledger.Rows(ctx, runID, models.StagingRejected)
	if err != nil {
		return nil, err
	}

	columns := rawColumns(rows)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	// Header
	w.Write(append([]string{"Row", "Reasons"}, columns...))

	for _, r := range rows {
		record := []string{fmt.Sprintf("%d", r.RowNumber), reasonText(r.Reasons)}
		for _, c := range columns {
			record = append(record, r.Raw[c])
		}
		w.Write(record)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rawColumns(rows []*models.StagingRow) []string {
	seen := map[string]struct{}{}
	var cols []string
	for _, r := range rows {
		for k := range r.Raw {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func reasonText(reasons []models.RowError) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, "; ")
}

// RunPDF renders the run summary, its counters and the error summary
func (s *ReportService) RunPDF(ctx context.Context, runID uuid.UUID) ([]byte, error) {
	run, err := s.ledger.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Title
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Activation Import Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", timeutil.Now().Format(timeutil.DisplayLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Run details
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Run", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	window := "-"
	if run.Range != nil {
		window = run.Range.Start.Format(timeutil.DateLayout) + " to " + run.Range.End.Format(timeutil.DateLayout)
	}
	details := [][2]string{
		{"Run ID", run.ID.String()},
		{"File", tr(run.FileName)},
		{"Sheet", tr(run.SheetName)},
		{"SHA-256", run.FileSHA256},
		{"Mode", string(run.Mode)},
		{"Window", window},
		{"Status", strings.ToUpper(string(run.Status))},
		{"Created", run.CreatedAt.In(timeutil.Location()).Format(timeutil.DateTimeLayout)},
	}
	if run.CompletedAt != nil {
		details = append(details, [2]string{"Finished", run.CompletedAt.In(timeutil.Location()).Format(timeutil.DateTimeLayout)})
	}
	for _, d := range details {
		pdf.CellFormat(40, 7, d[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(150, 7, d[1], "1", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	// Counters
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Rows", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(63, 8, fmt.Sprintf("Total: %d", run.TotalRows), "1", 0, "C", false, 0, "")
	pdf.CellFormat(63, 8, fmt.Sprintf("Processed: %d", run.ProcessedRows), "1", 0, "C", false, 0, "")
	pdf.CellFormat(64, 8, fmt.Sprintf("Inserted: %d", run.InsertedRows), "1", 1, "C", false, 0, "")

	if len(run.ErrorSummary) > 0 {
		pdf.Ln(5)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(190, 8, fmt.Sprintf("Errors (%d)", len(run.ErrorSummary)), "1", 1, "L", true, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, line := range run.ErrorSummary {
			pdf.MultiCell(190, 5, tr(line), "1", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
