package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"activation-backend/internal/config"
	"activation-backend/internal/metrics"
	"activation-backend/internal/models"
	"activation-backend/internal/normalizer"
	"activation-backend/internal/repositories"
	"activation-backend/internal/spreadsheet"
	"activation-backend/internal/storage"
	"activation-backend/internal/timeutil"
)

type ImportConfig struct {
	MaxFileBytes int64
	MaxRows      int
	DefaultSheet string
	PreviewRows  int
}

func ImportConfigFrom(cfg *config.Config) ImportConfig {
	return ImportConfig{
		MaxFileBytes: cfg.MaxFileBytes(),
		MaxRows:      cfg.Import.MaxRows,
		DefaultSheet: cfg.Import.DefaultSheet,
		PreviewRows:  cfg.Import.PreviewRows,
	}
}

// ImportService turns an uploaded spreadsheet into a staged import run
type ImportService struct {
	cfg      ImportConfig
	ledger   *RunLedger
	archiver storage.Archiver
	actions  repositories.ActionLogStore
	log      *slog.Logger
	today    func() time.Time
}

func NewImportService(cfg ImportConfig, ledger *RunLedger, archiver storage.Archiver, actions repositories.ActionLogStore, logger *slog.Logger) *ImportService {
	if archiver == nil {
		archiver = storage.Nop{}
	}
	return &ImportService{
		cfg:      cfg,
		ledger:   ledger,
		archiver: archiver,
		actions:  actions,
		log:      logger.With("component", "import"),
		today:    timeutil.Today,
	}
}

type UploadRequest struct {
	FileName    string
	Data        []byte
	Sheet       string
	Mode        models.ImportMode
	Range       *models.DateRange
	PreviewRows int
	UploadedBy  *int
	IPAddress   string
}

type PreviewResult struct {
	FileName     string                 `json:"file_name"`
	SheetName    string                 `json:"sheet_name"`
	Sheets       []string               `json:"sheets"`
	Columns      []normalizer.Column    `json:"columns"`
	TotalRows    int                    `json:"total_rows"`
	ValidRows    int                    `json:"valid_rows"`
	RejectedRows int                    `json:"rejected_rows"`
	Preview      []normalizer.RowResult `json:"preview"`
	Rejected     []normalizer.RowResult `json:"rejected"`
	Warnings     []models.RowError      `json:"warnings,omitempty"`
}

type UploadResult struct {
	Run        *models.ImportRun      `json:"run"`
	Preview    []normalizer.RowResult `json:"preview"`
	Rejected   []normalizer.RowResult `json:"rejected"`
	Warnings   []models.RowError      `json:"warnings,omitempty"`
	ArchiveKey string                 `json:"archive_key,omitempty"`
}

type analysis struct {
	format spreadsheet.Format
	sheet  *spreadsheet.Sheet
	result normalizer.Result
}

// analyze parses and normalizes the payload without touching storage
func (s *ImportService) analyze(req UploadRequest) (*analysis, error) {
	if s.cfg.MaxFileBytes > 0 && int64(len(req.Data)) > s.cfg.MaxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(req.Data))
	}
	format, err := spreadsheet.FormatFromFileName(req.FileName)
	if err != nil {
		return nil, err
	}
	sheetName := req.Sheet
	if sheetName == "" {
		sheetName = s.cfg.DefaultSheet
	}
	sheet, err := spreadsheet.Parse(req.Data, format, sheetName)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxRows > 0 && len(sheet.Rows) > s.cfg.MaxRows {
		return nil, fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRows, len(sheet.Rows), s.cfg.MaxRows)
	}

	n := normalizer.New(normalizer.Options{ProcessingDate: s.today(), Logger: s.log})
	return &analysis{format: format, sheet: sheet, result: n.Normalize(sheet)}, nil
}

func (s *ImportService) previewRows(req UploadRequest, valid []normalizer.RowResult) []normalizer.RowResult {
	limit := req.PreviewRows
	if limit <= 0 {
		limit = s.cfg.PreviewRows
	}
	if limit <= 0 || limit > len(valid) {
		limit = len(valid)
	}
	return valid[:limit]
}

// Preview reports what an upload would stage. Nothing is written.
func (s *ImportService) Preview(ctx context.Context, req UploadRequest) (*PreviewResult, error) {
	a, err := s.analyze(req)
	if err != nil {
		return nil, err
	}
	sheets, err := spreadsheet.SheetNames(req.Data, a.format)
	if err != nil {
		return nil, err
	}
	res := a.result
	return &PreviewResult{
		FileName:     req.FileName,
		SheetName:    a.sheet.Name,
		Sheets:       sheets,
		Columns:      res.Columns,
		TotalRows:    res.Total(),
		ValidRows:    len(res.Valid),
		RejectedRows: len(res.Rejected),
		Preview:      nonNil(s.previewRows(req, res.Valid)),
		Rejected:     nonNil(res.Rejected),
		Warnings:     res.Warnings,
	}, nil
}

// Upload creates a run and stages every row of the sheet. Parse and
// limit errors are returned before the run is created.
func (s *ImportService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Mode == "" {
		req.Mode = models.ModeIncremental
	}
	if err := validateMode(req.Mode, req.Range); err != nil {
		return nil, err
	}
	a, err := s.analyze(req)
	if err != nil {
		return nil, err
	}
	res := a.result

	sum := sha256.Sum256(req.Data)
	run, err := s.ledger.BeginRun(ctx, BeginRunParams{
		FileName:   req.FileName,
		FileSHA256: hex.EncodeToString(sum[:]),
		SheetName:  a.sheet.Name,
		TotalRows:  res.Total(),
		UploadedBy: req.UploadedBy,
		Mode:       req.Mode,
		Range:      req.Range,
	})
	if err != nil {
		return nil, err
	}

	key, err := s.archiver.Archive(ctx, run.ID, req.FileName, req.Data)
	if err != nil {
		s.log.Warn("source archive failed", "run_id", run.ID, "error", err)
	}

	if err := s.ledger.WriteStagingRows(ctx, run.ID, res.Valid, res.Rejected); err != nil {
		metrics.ImportRunsTotal.WithLabelValues("failed").Inc()
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if ferr := s.ledger.FailRun(failCtx, run.ID, "staging failed: "+err.Error()); ferr != nil {
			s.log.Error("could not fail run after staging error", "run_id", run.ID, "error", ferr)
		}
		s.logAction(failCtx, req, models.ActionImportFail, run.ID.String(),
			fmt.Sprintf("Staging of %s failed: %v", req.FileName, err))
		return nil, err
	}
	metrics.ImportRunsTotal.WithLabelValues("staged").Inc()

	if run, err = s.ledger.GetRun(ctx, run.ID); err != nil {
		return nil, err
	}
	s.logAction(ctx, req, models.ActionImportUpload, run.ID.String(),
		fmt.Sprintf("Uploaded %s (%d rows, %d valid, mode %s)", req.FileName, run.TotalRows, run.ProcessedRows, run.Mode))

	return &UploadResult{
		Run:        run,
		Preview:    nonNil(s.previewRows(req, res.Valid)),
		Rejected:   nonNil(res.Rejected),
		Warnings:   res.Warnings,
		ArchiveKey: key,
	}, nil
}

func (s *ImportService) logAction(ctx context.Context, req UploadRequest, action, target, desc string) {
	if s.actions == nil {
		return
	}
	entry := &models.AdminActionLog{
		AdminUserID: req.UploadedBy,
		ActionType:  action,
		TargetType:  "import_run",
		TargetID:    target,
		Description: desc,
	}
	if req.IPAddress != "" {
		entry.IPAddress = &req.IPAddress
	}
	if err := s.actions.CreateActionLog(ctx, entry); err != nil {
		s.log.Warn("action log write failed", "action", action, "error", err)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
