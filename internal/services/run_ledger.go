package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"activation-backend/internal/events"
	"activation-backend/internal/metrics"
	"activation-backend/internal/models"
	"activation-backend/internal/normalizer"
	"activation-backend/internal/repositories"

	"github.com/google/uuid"
)

// StaleRunReason is recorded on runs failed by ExpireStale
const StaleRunReason = "timed out"

// RunLedger records every upload attempt and owns its staging rows
type RunLedger struct {
	runs    repositories.RunStore
	staging repositories.StagingStore
	events  events.Publisher
	log     *slog.Logger
	now     func() time.Time
}

func NewRunLedger(runs repositories.RunStore, staging repositories.StagingStore, pub events.Publisher, logger *slog.Logger) *RunLedger {
	if pub == nil {
		pub = events.Discard{}
	}
	return &RunLedger{
		runs:    runs,
		staging: staging,
		events:  pub,
		log:     logger.With("component", "ledger"),
		now:     time.Now,
	}
}

type BeginRunParams struct {
	FileName   string
	FileSHA256 string
	SheetName  string
	TotalRows  int
	UploadedBy *int
	Mode       models.ImportMode
	Range      *models.DateRange
}

func (l *RunLedger) BeginRun(ctx context.Context, p BeginRunParams) (*models.ImportRun, error) {
	if err := validateMode(p.Mode, p.Range); err != nil {
		return nil, err
	}
	run := &models.ImportRun{
		UploadedBy: p.UploadedBy,
		FileName:   p.FileName,
		FileSHA256: p.FileSHA256,
		SheetName:  p.SheetName,
		Mode:       p.Mode,
		Range:      p.Range,
		TotalRows:  p.TotalRows,
		Status:     models.RunPending,
	}
	if err := l.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}
	l.log.Info("import run created", "run_id", run.ID, "file", run.FileName, "mode", run.Mode, "total_rows", run.TotalRows)
	return run, nil
}

// WriteStagingRows stores every row of the run, valid and rejected, and
// moves the run to processing. Calling it again for the same run replaces
// the previous rows.
func (l *RunLedger) WriteStagingRows(ctx context.Context, runID uuid.UUID, valid, rejected []normalizer.RowResult) error {
	rows := make([]*models.StagingRow, 0, len(valid)+len(rejected))
	var summary []string
	for _, rr := range valid {
		rows = append(rows, stagingRow(runID, rr, true))
		for _, w := range rr.Warnings {
			summary = append(summary, w.String())
		}
	}
	for _, rr := range rejected {
		rows = append(rows, stagingRow(runID, rr, false))
		for _, e := range rr.Errors {
			summary = append(summary, e.String())
		}
	}

	processed := len(valid)
	upd := models.RunUpdate{
		ProcessedRows: &processed,
		ErrorSummary:  models.MergeErrorSummary(nil, summary...),
	}
	if err := l.staging.ReplaceStagingRows(ctx, runID, rows, upd); err != nil {
		return ledgerError(fmt.Errorf("write staging rows for %s: %w", runID, err))
	}

	metrics.StagingRowsTotal.WithLabelValues("true").Add(float64(len(valid)))
	metrics.StagingRowsTotal.WithLabelValues("false").Add(float64(len(rejected)))
	l.log.Info("staging rows written", "run_id", runID, "valid", len(valid), "rejected", len(rejected))
	l.events.Publish(events.Event{Type: events.RunStaged, RunIDs: []uuid.UUID{runID},
		Payload: map[string]int{"valid": len(valid), "rejected": len(rejected)}})
	return nil
}

func stagingRow(runID uuid.UUID, rr normalizer.RowResult, valid bool) *models.StagingRow {
	sr := &models.StagingRow{
		RunID:      runID,
		RowNumber:  rr.Row,
		Raw:        rr.Raw,
		Extras:     rr.Extras,
		Normalized: rr.Assignments,
		Valid:      valid,
		State:      models.StagingStaged,
	}
	if !valid {
		sr.State = models.StagingRejected
	}
	sr.Reasons = append(append(sr.Reasons, rr.Errors...), rr.Warnings...)
	return sr
}

// FailRun marks a non-terminal run failed with reason appended to its summary
func (l *RunLedger) FailRun(ctx context.Context, runID uuid.UUID, reason string) error {
	run, err := l.runs.GetRun(ctx, runID)
	if err != nil {
		return ledgerError(err)
	}
	if run.Status.Terminal() {
		return fmt.Errorf("%w: run is %s", ErrInvalidTransition, run.Status)
	}
	_, err = l.runs.TransitionRun(ctx, runID,
		[]models.ImportRunStatus{models.RunPending, models.RunProcessing}, models.RunFailed,
		models.RunUpdate{ErrorSummary: models.MergeErrorSummary(run.ErrorSummary, reason)})
	if err != nil {
		return ledgerError(err)
	}
	l.log.Warn("import run failed", "run_id", runID, "reason", reason)
	l.events.Publish(events.Event{Type: events.RunFailed, RunIDs: []uuid.UUID{runID}, Payload: reason})
	return nil
}

// ExpireStale fails pending or processing runs idle for longer than olderThan
func (l *RunLedger) ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	ids, err := l.runs.FailStaleRuns(ctx, l.now().Add(-olderThan), StaleRunReason)
	if err != nil {
		return 0, fmt.Errorf("expire stale runs: %w", err)
	}
	if len(ids) > 0 {
		metrics.StaleRunsExpired.Add(float64(len(ids)))
		l.log.Warn("stale import runs expired", "count", len(ids), "older_than", olderThan.String())
		l.events.Publish(events.Event{Type: events.RunExpired, RunIDs: ids})
	}
	return int64(len(ids)), nil
}

// StartExpiry runs ExpireStale every interval until ctx is done
func (l *RunLedger) StartExpiry(ctx context.Context, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.ExpireStale(ctx, olderThan); err != nil {
				l.log.Error("stale run sweep failed", "error", err)
			}
		}
	}
}

func (l *RunLedger) GetRun(ctx context.Context, runID uuid.UUID) (*models.ImportRun, error) {
	run, err := l.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return run, nil
}

func (l *RunLedger) ListRuns(ctx context.Context, limit int) ([]*models.ImportRun, error) {
	return l.runs.ListRuns(ctx, limit)
}

// Rows returns the staging rows of a run, optionally filtered by state
func (l *RunLedger) Rows(ctx context.Context, runID uuid.UUID, state models.StagingState) ([]*models.StagingRow, error) {
	if _, err := l.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	switch state {
	case "", models.StagingStaged, models.StagingPromoted, models.StagingRejected:
	default:
		return nil, fmt.Errorf("unknown staging state %q", state)
	}
	return l.staging.ListStagingRows(ctx, runID, state)
}

// ledgerError maps storage errors onto service errors
func ledgerError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrRunNotFound, err)
	case errors.Is(err, repositories.ErrStatusConflict):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return err
}

func validateMode(mode models.ImportMode, r *models.DateRange) error {
	switch mode {
	case models.ModeReplace:
		if r == nil {
			return ErrNoDateRange
		}
	case models.ModeIncremental:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if r != nil && !r.Valid() {
		return ErrInvalidDateRange
	}
	return nil
}
