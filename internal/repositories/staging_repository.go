package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"activation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StagingRepository struct {
	DB        *pgxpool.Pool
	BatchSize int
}

func NewStagingRepository(db *pgxpool.Pool, batchSize int) *StagingRepository {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &StagingRepository{DB: db, BatchSize: batchSize}
}

var stagingCopyColumns = []string{"run_id", "row_number", "raw", "extras", "normalized", "valid", "reasons", "state"}

const stagingColumns = `s.id, s.run_id, s.row_number, s.raw, s.extras, s.normalized, s.valid, s.reasons, s.state, s.created_at, s.promoted_at`

func scanStagingRow(row pgx.Row) (*models.StagingRow, error) {
	var sr models.StagingRow
	var raw, extras, normalized, reasons []byte
	if err := row.Scan(&sr.ID, &sr.RunID, &sr.RowNumber, &raw, &extras, &normalized, &sr.Valid, &reasons,
		&sr.State, &sr.CreatedAt, &sr.PromotedAt); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		data []byte
		dst  any
	}{{raw, &sr.Raw}, {extras, &sr.Extras}, {normalized, &sr.Normalized}, {reasons, &sr.Reasons}} {
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, fmt.Errorf("decode staging row %d: %w", sr.ID, err)
		}
	}
	return &sr, nil
}

func stagingCopyRow(runID uuid.UUID, sr *models.StagingRow) ([]any, error) {
	raw, err := json.Marshal(sr.Raw)
	if err != nil {
		return nil, err
	}
	extras, err := json.Marshal(nonNilMap(sr.Extras))
	if err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(nonNilSlice(sr.Normalized))
	if err != nil {
		return nil, err
	}
	reasons, err := json.Marshal(nonNilSlice(sr.Reasons))
	if err != nil {
		return nil, err
	}
	state := sr.State
	if state == "" {
		state = models.StagingStaged
	}
	return []any{runID, sr.RowNumber, raw, extras, normalized, sr.Valid, reasons, string(state)}, nil
}

// ReplaceStagingRows deletes the run's previous rows, copies the new ones
// in batches and moves the run to processing, all in one transaction, so
// a retried upload never duplicates rows.
func (r *StagingRepository) ReplaceStagingRows(ctx context.Context, runID uuid.UUID, rows []*models.StagingRow, upd models.RunUpdate) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status models.ImportRunStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM import_runs WHERE id=$1 FOR UPDATE`, runID).Scan(&status); err != nil {
		return notFound(err)
	}
	if status != models.RunPending && status != models.RunProcessing {
		return ErrStatusConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM staging_rows WHERE run_id=$1`, runID); err != nil {
		return fmt.Errorf("clear staging rows: %w", err)
	}

	for start := 0; start < len(rows); start += r.BatchSize {
		end := start + r.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		_, err := tx.CopyFrom(ctx, pgx.Identifier{"staging_rows"}, stagingCopyColumns,
			pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
				return stagingCopyRow(runID, batch[i])
			}))
		if err != nil {
			return fmt.Errorf("copy staging rows %d-%d: %w", start, end, err)
		}
	}

	if _, err := transitionRun(ctx, tx, runID,
		[]models.ImportRunStatus{models.RunPending, models.RunProcessing}, models.RunProcessing, upd); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *StagingRepository) ListStagingRows(ctx context.Context, runID uuid.UUID, state models.StagingState) ([]*models.StagingRow, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+stagingColumns+` FROM staging_rows s
		 WHERE s.run_id = $1 AND ($2::text = '' OR s.state = $2::text)
		 ORDER BY s.row_number`,
		runID, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.StagingRow
	for rows.Next() {
		sr, err := scanStagingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
