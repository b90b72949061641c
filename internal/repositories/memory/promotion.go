package memory

import (
	"context"
	"sort"
	"time"

	"activation-backend/internal/models"
	"activation-backend/internal/repositories"

	"github.com/google/uuid"
)

// WithinPromotion runs fn against a private copy of the store and swaps it
// in only when fn succeeds
func (s *Store) WithinPromotion(ctx context.Context, fn func(ctx context.Context, tx repositories.PromotionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{st: s.st.clone(), hooks: s.Hooks, now: s.now()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

type memTx struct {
	st    *state
	hooks Hooks
	now   time.Time
}

func (t *memTx) ReferenceSnapshot(ctx context.Context) (*models.ReferenceSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.st.snapshot(), nil
}

func (t *memTx) ProcessingRuns(ctx context.Context) ([]*models.ImportRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*models.ImportRun
	for _, r := range t.st.orderedRuns() {
		if r.Status == models.RunProcessing {
			out = append(out, copyRun(r))
		}
	}
	return out, nil
}

func (t *memTx) PendingStagingRows(ctx context.Context) ([]*models.StagingRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*models.StagingRow
	for _, r := range t.st.orderedRuns() {
		if r.Status != models.RunProcessing {
			continue
		}
		rows := t.st.staging[r.ID]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].RowNumber < rows[j].RowNumber })
		for _, row := range rows {
			if row.State == models.StagingStaged && row.Valid {
				v := *row
				out = append(out, &v)
			}
		}
	}
	return out, nil
}

func (t *memTx) DeleteAssignmentsInRange(ctx context.Context, dr models.DateRange) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	for k, a := range t.st.assignments {
		if dr.Contains(a.ReportDate) {
			delete(t.st.assignments, k)
			n++
		}
	}
	return n, nil
}

func (t *memTx) UpsertAssignments(ctx context.Context, batch []*models.Assignment) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if t.hooks.BeforeUpsert != nil {
		if err := t.hooks.BeforeUpsert(batch); err != nil {
			return 0, 0, err
		}
	}
	inserted, updated := 0, 0
	for _, a := range batch {
		v := *a
		v.UpdatedAt = t.now
		key := v.Key()
		if existing, ok := t.st.assignments[key]; ok {
			v.ID = existing.ID
			updated++
		} else {
			t.st.nextAssignmentID++
			v.ID = t.st.nextAssignmentID
			inserted++
		}
		t.st.assignments[key] = &v
	}
	return inserted, updated, nil
}

func (t *memTx) MarkStagingRows(ctx context.Context, ids []int64, state models.StagingState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	now := t.now
	for _, rows := range t.st.staging {
		for _, row := range rows {
			if _, ok := want[row.ID]; !ok {
				continue
			}
			row.State = state
			if state == models.StagingPromoted {
				row.PromotedAt = &now
			}
		}
	}
	return nil
}

func (t *memTx) RejectStagingRows(ctx context.Context, reasons map[int64][]models.RowError) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rows := range t.st.staging {
		for _, row := range rows {
			extra, ok := reasons[row.ID]
			if !ok {
				continue
			}
			row.State = models.StagingRejected
			row.Reasons = append(append([]models.RowError{}, row.Reasons...), extra...)
		}
	}
	return nil
}

func (t *memTx) CompleteRun(ctx context.Context, id uuid.UUID, insertedRows int, summary []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if summary == nil {
		summary = []string{}
	}
	_, err := t.st.transition(t.now, id,
		[]models.ImportRunStatus{models.RunProcessing}, models.RunCompleted,
		models.RunUpdate{InsertedRows: &insertedRows, ErrorSummary: summary})
	return err
}

var _ repositories.PromotionTx = (*memTx)(nil)
