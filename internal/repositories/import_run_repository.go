package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"activation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ImportRunRepository struct {
	DB *pgxpool.Pool
}

func NewImportRunRepository(db *pgxpool.Pool) *ImportRunRepository {
	return &ImportRunRepository{DB: db}
}

const runColumns = `id, uploaded_by, file_name, file_sha256, sheet_name, mode, range_start, range_end,
	total_rows, processed_rows, inserted_rows, status, error_summary, created_at, updated_at, completed_at`

func scanRun(row pgx.Row) (*models.ImportRun, error) {
	var (
		run          models.ImportRun
		start, end   *time.Time
		errorSummary []byte
	)
	err := row.Scan(&run.ID, &run.UploadedBy, &run.FileName, &run.FileSHA256, &run.SheetName, &run.Mode,
		&start, &end, &run.TotalRows, &run.ProcessedRows, &run.InsertedRows, &run.Status,
		&errorSummary, &run.CreatedAt, &run.UpdatedAt, &run.CompletedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if start != nil && end != nil {
		run.Range = &models.DateRange{Start: *start, End: *end}
	}
	if err := json.Unmarshal(errorSummary, &run.ErrorSummary); err != nil {
		return nil, err
	}
	return &run, nil
}

func rangeArgs(r *models.DateRange) (start, end *time.Time) {
	if r == nil {
		return nil, nil
	}
	return &r.Start, &r.End
}

func (r *ImportRunRepository) CreateRun(ctx context.Context, run *models.ImportRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = models.RunPending
	}
	if run.ErrorSummary == nil {
		run.ErrorSummary = []string{}
	}
	summary, err := json.Marshal(run.ErrorSummary)
	if err != nil {
		return err
	}
	start, end := rangeArgs(run.Range)

	return r.DB.QueryRow(ctx,
		`INSERT INTO import_runs(id, uploaded_by, file_name, file_sha256, sheet_name, mode, range_start, range_end,
		 total_rows, status, error_summary)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		run.ID, run.UploadedBy, run.FileName, run.FileSHA256, run.SheetName, string(run.Mode), start, end,
		run.TotalRows, string(run.Status), summary,
	).Scan(&run.CreatedAt, &run.UpdatedAt)
}

func (r *ImportRunRepository) GetRun(ctx context.Context, id uuid.UUID) (*models.ImportRun, error) {
	return scanRun(r.DB.QueryRow(ctx, `SELECT `+runColumns+` FROM import_runs WHERE id=$1`, id))
}

// ListRuns returns the most recent runs first
func (r *ImportRunRepository) ListRuns(ctx context.Context, limit int) ([]*models.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx,
		`SELECT `+runColumns+` FROM import_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.ImportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *ImportRunRepository) TransitionRun(ctx context.Context, id uuid.UUID, from []models.ImportRunStatus, to models.ImportRunStatus, upd models.RunUpdate) (*models.ImportRun, error) {
	return transitionRun(ctx, r.DB, id, from, to, upd)
}

func transitionRun(ctx context.Context, q querier, id uuid.UUID, from []models.ImportRunStatus, to models.ImportRunStatus, upd models.RunUpdate) (*models.ImportRun, error) {
	var summary []byte
	if upd.ErrorSummary != nil {
		b, err := json.Marshal(upd.ErrorSummary)
		if err != nil {
			return nil, err
		}
		summary = b
	}
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	run, err := scanRun(q.QueryRow(ctx,
		`UPDATE import_runs SET
		   status = $2::varchar,
		   processed_rows = COALESCE($3, processed_rows),
		   inserted_rows = COALESCE($4, inserted_rows),
		   error_summary = COALESCE($5::jsonb, error_summary),
		   updated_at = NOW(),
		   completed_at = CASE WHEN $2::varchar IN ('completed', 'failed') THEN NOW() ELSE completed_at END
		 WHERE id = $1 AND status = ANY($6::varchar[])
		 RETURNING `+runColumns,
		id, string(to), upd.ProcessedRows, upd.InsertedRows, summary, allowed,
	))
	if errors.Is(err, ErrNotFound) {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM import_runs WHERE id=$1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrStatusConflict
		}
		return nil, ErrNotFound
	}
	return run, err
}

func (r *ImportRunRepository) FailStaleRuns(ctx context.Context, before time.Time, reason string) ([]uuid.UUID, error) {
	rows, err := r.DB.Query(ctx,
		`UPDATE import_runs SET
		   status = 'failed',
		   error_summary = error_summary || jsonb_build_array($2::text),
		   updated_at = NOW(),
		   completed_at = NOW()
		 WHERE status IN ('pending', 'processing') AND updated_at < $1
		 RETURNING id`,
		before, reason)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
