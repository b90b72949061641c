package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"activation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// promotionLockKey is the advisory lock held by every promotion transaction
const promotionLockKey int64 = 7_420_001

type PromotionRepository struct {
	DB *pgxpool.Pool
}

func NewPromotionRepository(db *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{DB: db}
}

// WithinPromotion runs fn in a transaction holding the promotion advisory
// lock. The context deadline, if any, also bounds every statement.
func (r *PromotionRepository) WithinPromotion(ctx context.Context, fn func(ctx context.Context, tx PromotionTx) error) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin promotion: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, promotionLockKey); err != nil {
		return fmt.Errorf("acquire promotion lock: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		ms := time.Until(deadline).Milliseconds()
		if ms < 1 {
			return context.DeadlineExceeded
		}
		if _, err := tx.Exec(ctx, `SELECT set_config('statement_timeout', $1, true)`, fmt.Sprintf("%d", ms)); err != nil {
			return fmt.Errorf("set statement timeout: %w", err)
		}
	}

	if err := fn(ctx, &pgPromotionTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgPromotionTx struct {
	tx pgx.Tx
}

func (p *pgPromotionTx) ReferenceSnapshot(ctx context.Context) (*models.ReferenceSnapshot, error) {
	return loadReferenceSnapshot(ctx, p.tx)
}

func (p *pgPromotionTx) ProcessingRuns(ctx context.Context) ([]*models.ImportRun, error) {
	rows, err := p.tx.Query(ctx,
		`SELECT `+runColumns+` FROM import_runs WHERE status = 'processing'
		 ORDER BY created_at, id FOR UPDATE`)
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

func (p *pgPromotionTx) PendingStagingRows(ctx context.Context) ([]*models.StagingRow, error) {
	rows, err := p.tx.Query(ctx,
		`SELECT `+stagingColumns+` FROM staging_rows s
		 JOIN import_runs r ON r.id = s.run_id
		 WHERE r.status = 'processing' AND s.state = 'staged' AND s.valid
		 ORDER BY r.created_at, r.id, s.row_number
		 FOR UPDATE OF s`)
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

func (p *pgPromotionTx) DeleteAssignmentsInRange(ctx context.Context, dr models.DateRange) (int64, error) {
	tag, err := p.tx.Exec(ctx,
		`DELETE FROM assignments WHERE report_date BETWEEN $1::date AND $2::date`,
		dr.Start.Format("2006-01-02"), dr.End.Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const assignmentInsertColumns = 13

// UpsertAssignments writes the batch in one statement. The batch must not
// repeat a natural key.
func (p *pgPromotionTx) UpsertAssignments(ctx context.Context, batch []*models.Assignment) (int, int, error) {
	if len(batch) == 0 {
		return 0, 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO assignments(supervisor_code, supervisor_name, vendor_code, vendor_name,
		route_code, route_name, client_code, client_name, category_code, category_name,
		activation_state, report_date, run_id) VALUES `)
	args := make([]any, 0, len(batch)*assignmentInsertColumns)
	for i, a := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * assignmentInsertColumns
		sb.WriteString("(")
		for c := 1; c <= assignmentInsertColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+c)
			if c == 12 {
				sb.WriteString("::date")
			}
		}
		sb.WriteString(")")
		args = append(args, a.SupervisorCode, a.SupervisorName, a.VendorCode, a.VendorName,
			a.RouteCode, a.RouteName, a.ClientCode, a.ClientName, a.CategoryCode, a.CategoryName,
			string(a.ActivationState), a.ReportDate.Format("2006-01-02"), a.RunID)
	}
	sb.WriteString(` ON CONFLICT ON CONSTRAINT uq_assignments_natural_key DO UPDATE SET
		supervisor_code = EXCLUDED.supervisor_code,
		supervisor_name = EXCLUDED.supervisor_name,
		vendor_name = EXCLUDED.vendor_name,
		route_code = EXCLUDED.route_code,
		route_name = EXCLUDED.route_name,
		client_name = EXCLUDED.client_name,
		category_name = EXCLUDED.category_name,
		activation_state = EXCLUDED.activation_state,
		run_id = EXCLUDED.run_id,
		updated_at = NOW()
		RETURNING (xmax = 0)`)

	rows, err := p.tx.Query(ctx, sb.String(), args...)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	inserted, updated := 0, 0
	for rows.Next() {
		var isInsert bool
		if err := rows.Scan(&isInsert); err != nil {
			return 0, 0, err
		}
		if isInsert {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, rows.Err()
}

func (p *pgPromotionTx) MarkStagingRows(ctx context.Context, ids []int64, state models.StagingState) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.tx.Exec(ctx,
		`UPDATE staging_rows SET state = $2::varchar,
		   promoted_at = CASE WHEN $2::varchar = 'promoted' THEN NOW() ELSE promoted_at END
		 WHERE id = ANY($1::bigint[])`,
		ids, string(state))
	return err
}

func (p *pgPromotionTx) RejectStagingRows(ctx context.Context, reasons map[int64][]models.RowError) error {
	if len(reasons) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for id, extra := range reasons {
		data, err := json.Marshal(nonNilSlice(extra))
		if err != nil {
			return err
		}
		batch.Queue(`UPDATE staging_rows SET state = 'rejected', reasons = reasons || $2::jsonb WHERE id = $1`, id, data)
	}
	return p.tx.SendBatch(ctx, batch).Close()
}

func (p *pgPromotionTx) CompleteRun(ctx context.Context, id uuid.UUID, insertedRows int, summary []string) error {
	_, err := transitionRun(ctx, p.tx, id,
		[]models.ImportRunStatus{models.RunProcessing}, models.RunCompleted,
		models.RunUpdate{InsertedRows: &insertedRows, ErrorSummary: nonNilSlice(summary)})
	return err
}
