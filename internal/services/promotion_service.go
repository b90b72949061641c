package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"activation-backend/internal/cache"
	"activation-backend/internal/events"
	"activation-backend/internal/metrics"
	"activation-backend/internal/models"
	"activation-backend/internal/repositories"
	"activation-backend/internal/timeutil"

	"github.com/google/uuid"
)

type PromotionConfig struct {
	BatchSize int
	Timeout   time.Duration
}

// PromotionService moves staged rows of processing runs into production
type PromotionService struct {
	cfg      PromotionConfig
	promoter repositories.Promoter
	runs     repositories.RunStore
	cache    cache.Store
	events   events.Publisher
	actions  repositories.ActionLogStore
	log      *slog.Logger

	// mu serializes promotions in this process; storage adds its own lock
	mu sync.Mutex
}

func NewPromotionService(cfg PromotionConfig, promoter repositories.Promoter, runs repositories.RunStore,
	c cache.Store, pub events.Publisher, actions repositories.ActionLogStore, logger *slog.Logger) *PromotionService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if pub == nil {
		pub = events.Discard{}
	}
	return &PromotionService{
		cfg:      cfg,
		promoter: promoter,
		runs:     runs,
		cache:    c,
		events:   pub,
		actions:  actions,
		log:      logger.With("component", "promotion"),
	}
}

type PromoteRequest struct {
	RunID     *uuid.UUID
	Mode      models.ImportMode
	Range     *models.DateRange
	ActorID   *int
	IPAddress string
}

// errRunChanged aborts a promotion whose target run left processing
// between the precheck and the transaction
var errRunChanged = errors.New("run is no longer processing")

// Promote writes every valid staged row of every processing run to
// production in one transaction. Runs are applied oldest first, each with
// the mode and range it was staged with. A run id must itself be
// promotable and the request mode and range override that run only.
// Without a run id a requested mode and range must match every run.
func (s *PromotionService) Promote(ctx context.Context, req PromoteRequest) (*models.PromotionResult, error) {
	if req.RunID != nil {
		run, err := s.runs.GetRun(ctx, *req.RunID)
		if err != nil {
			return nil, ledgerError(err)
		}
		switch run.Status {
		case models.RunCompleted:
			return nil, fmt.Errorf("%w: %s", ErrRunAlreadyPromoted, run.ID)
		case models.RunFailed:
			return nil, fmt.Errorf("%w: %s", ErrRunFailed, run.ID)
		case models.RunPending:
			return nil, fmt.Errorf("%w: %s", ErrRunNotStaged, run.ID)
		}
		if req.Mode == "" {
			req.Mode = run.Mode
		}
		if req.Range == nil {
			req.Range = run.Range
		}
		if req.Mode == "" {
			req.Mode = models.ModeIncremental
		}
	}
	if req.Mode == "" && req.Range != nil {
		return nil, fmt.Errorf("%w: a date range needs a mode", ErrInvalidMode)
	}
	if req.Mode != "" {
		if err := validateMode(req.Mode, req.Range); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	p := &promotion{req: req, batchSize: s.cfg.BatchSize, result: &models.PromotionResult{
		RunIDs:               []uuid.UUID{},
		Runs:                 []models.RunPromotion{},
		UnresolvedReferences: []models.UnresolvedReference{},
	}}
	err := s.promoter.WithinPromotion(ctx, p.run)
	metrics.PromotionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, s.fail(ctx, req, p, err)
	}

	res := p.result
	metrics.PromotionsTotal.WithLabelValues(modeLabel(res.Mode), "completed").Inc()
	metrics.PromotedAssignmentsTotal.WithLabelValues("insert").Add(float64(res.InsertedCount))
	metrics.PromotedAssignmentsTotal.WithLabelValues("update").Add(float64(res.UpdatedCount))
	metrics.PromotedAssignmentsTotal.WithLabelValues("delete").Add(float64(res.DeletedCount))

	s.log.Info("promotion completed",
		"mode", modeLabel(res.Mode),
		"runs", len(res.RunIDs),
		"inserted", res.InsertedCount,
		"updated", res.UpdatedCount,
		"deleted", res.DeletedCount,
		"duplicates", res.DuplicateKeys,
		"unresolved", len(res.UnresolvedReferences),
	)

	if s.cache != nil {
		if err := s.cache.InvalidatePattern(ctx, cache.DashboardPattern); err != nil {
			s.log.Warn("dashboard cache invalidation failed", "error", err)
		}
	}
	s.events.Publish(events.Event{Type: events.PromotionCompleted, RunIDs: res.RunIDs, Payload: res})
	s.logAction(ctx, req, models.ActionImportPromote, fmt.Sprintf("Promoted %d runs in %s mode: %d inserted, %d updated, %d deleted",
		len(res.RunIDs), modeLabel(res.Mode), res.InsertedCount, res.UpdatedCount, res.DeletedCount))
	return res, nil
}

// fail marks every run the rolled back promotion touched as failed
func (s *PromotionService) fail(ctx context.Context, req PromoteRequest, p *promotion, cause error) error {
	metrics.PromotionsTotal.WithLabelValues(modeLabel(req.Mode), "failed").Inc()
	if errors.Is(cause, errRunChanged) {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, cause)
	}
	if errors.Is(cause, ErrPlanConflict) {
		return cause
	}

	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	reason := "promotion failed: " + cause.Error()
	var failed []uuid.UUID
	for _, run := range p.runs {
		_, err := s.runs.TransitionRun(failCtx, run.ID,
			[]models.ImportRunStatus{models.RunProcessing}, models.RunFailed,
			models.RunUpdate{ErrorSummary: models.MergeErrorSummary(run.ErrorSummary, reason)})
		if err != nil {
			s.log.Error("could not fail run after promotion error", "run_id", run.ID, "error", err)
			continue
		}
		failed = append(failed, run.ID)
	}

	s.log.Error("promotion rolled back", "mode", modeLabel(req.Mode), "failed_runs", len(failed), "error", cause)
	s.events.Publish(events.Event{Type: events.PromotionFailed, RunIDs: failed, Payload: reason})
	s.logAction(failCtx, req, models.ActionImportFail, reason)
	return fmt.Errorf("%w: %w", ErrTransactionFailure, cause)
}

func (s *PromotionService) logAction(ctx context.Context, req PromoteRequest, action, desc string) {
	if s.actions == nil {
		return
	}
	entry := &models.AdminActionLog{
		AdminUserID: req.ActorID,
		ActionType:  action,
		TargetType:  "promotion",
		Description: desc,
	}
	if req.RunID != nil {
		entry.TargetID = req.RunID.String()
	}
	if req.IPAddress != "" {
		entry.IPAddress = &req.IPAddress
	}
	if err := s.actions.CreateActionLog(ctx, entry); err != nil {
		s.log.Warn("action log write failed", "action", action, "error", err)
	}
}

// modeLabel names the mode of a promotion whose runs disagreed
func modeLabel(mode models.ImportMode) string {
	if mode == "" {
		return "mixed"
	}
	return string(mode)
}

// promotion is the state of one promotion transaction
type promotion struct {
	req       PromoteRequest
	batchSize int
	runs      []*models.ImportRun
	result    *models.PromotionResult
}

// runPlan is one run with the mode and window it is promoted with
type runPlan struct {
	run    *models.ImportRun
	mode   models.ImportMode
	window *models.DateRange
	rows   []*models.StagingRow
}

// candidate is a resolved assignment with the staging row it came from
type candidate struct {
	assignment *models.Assignment
	rowID      int64
}

func (p *promotion) run(ctx context.Context, tx repositories.PromotionTx) error {
	runs, err := tx.ProcessingRuns(ctx)
	if err != nil {
		return fmt.Errorf("lock processing runs: %w", err)
	}
	p.runs = runs

	if p.req.RunID != nil && !containsRun(runs, *p.req.RunID) {
		return errRunChanged
	}

	plans := make([]*runPlan, 0, len(runs))
	byRun := make(map[uuid.UUID]*runPlan, len(runs))
	for _, run := range runs {
		plan, err := p.planFor(run)
		if err != nil {
			return err
		}
		plans = append(plans, plan)
		byRun[run.ID] = plan
	}

	snap, err := tx.ReferenceSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load reference snapshot: %w", err)
	}
	rows, err := tx.PendingStagingRows(ctx)
	if err != nil {
		return fmt.Errorf("load staged rows: %w", err)
	}
	for _, row := range rows {
		if plan, ok := byRun[row.RunID]; ok {
			plan.rows = append(plan.rows, row)
		}
	}

	for _, plan := range plans {
		if err := p.apply(ctx, tx, snap, plan); err != nil {
			return err
		}
	}
	p.result.Mode, p.result.Range = p.commonPlan(plans)
	return nil
}

// planFor picks the mode and window of one run. The request overrides
// the named run; otherwise a requested plan must equal the staged one.
func (p *promotion) planFor(run *models.ImportRun) (*runPlan, error) {
	plan := &runPlan{run: run, mode: run.Mode, window: run.Range}
	switch {
	case p.req.RunID != nil:
		if run.ID == *p.req.RunID {
			plan.mode, plan.window = p.req.Mode, p.req.Range
		}
	case p.req.Mode != "":
		if !samePlan(run.Mode, run.Range, p.req.Mode, p.req.Range) {
			return nil, fmt.Errorf("%w: run %s was staged as %s", ErrPlanConflict, run.ID, describePlan(run.Mode, run.Range))
		}
	}
	if plan.mode == "" {
		plan.mode = models.ModeIncremental
	}
	if plan.mode == models.ModeReplace && plan.window == nil {
		return nil, fmt.Errorf("%w: run %s", ErrNoDateRange, run.ID)
	}
	return plan, nil
}

// apply promotes the rows of one run. A replace run clears its own window
// before its rows are written, so later runs win over earlier ones.
func (p *promotion) apply(ctx context.Context, tx repositories.PromotionTx, snap *models.ReferenceSnapshot, plan *runPlan) error {
	res := p.result
	share := models.RunPromotion{RunID: plan.run.ID, Mode: plan.mode, Range: plan.window}

	var (
		order      []models.NaturalKey
		byKey      = map[models.NaturalKey]candidate{}
		unresolved []string
		rejects    = map[int64][]models.RowError{}
	)
	for _, row := range plan.rows {
		var reasons []models.RowError
		resolvedAny := false
		for i := range row.Normalized {
			a, miss := resolve(snap, row.Normalized[i])
			if miss == nil && plan.mode == models.ModeReplace && !plan.window.Contains(a.ReportDate) {
				miss = &models.UnresolvedReference{
					Category: a.CategoryName,
					Reason:   models.UnresolvedOutsideWindow,
					Value:    a.ReportDate.Format(timeutil.DateLayout),
				}
			}
			if miss != nil {
				miss.RunID = row.RunID
				miss.Row = row.RowNumber
				res.UnresolvedReferences = append(res.UnresolvedReferences, *miss)
				unresolved = append(unresolved, unresolvedLine(*miss))
				reasons = append(reasons, unresolvedRowError(*miss))
				continue
			}

			resolvedAny = true
			runID := row.RunID
			a.RunID = &runID
			key := a.Key()
			if _, dup := byKey[key]; dup {
				res.DuplicateKeys++
			} else {
				order = append(order, key)
			}
			byKey[key] = candidate{assignment: a, rowID: row.ID}
		}
		if !resolvedAny {
			rejects[row.ID] = reasons
		}
	}

	if plan.mode == models.ModeReplace {
		deleted, err := tx.DeleteAssignmentsInRange(ctx, *plan.window)
		if err != nil {
			return fmt.Errorf("clear replace window of run %s: %w", plan.run.ID, err)
		}
		share.DeletedCount = deleted
	}

	writtenRows := map[int64]struct{}{}
	batch := make([]*models.Assignment, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, updated, err := tx.UpsertAssignments(ctx, batch)
		if err != nil {
			return fmt.Errorf("upsert assignments: %w", err)
		}
		share.InsertedCount += inserted
		share.UpdatedCount += updated
		batch = batch[:0]
		return nil
	}
	for _, key := range order {
		c := byKey[key]
		batch = append(batch, c.assignment)
		writtenRows[c.rowID] = struct{}{}
		if len(batch) == p.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	// a row whose assignments were all superseded by later duplicates
	// was still applied and counts as promoted, but not as inserted
	promoted := make([]int64, 0, len(plan.rows))
	for _, row := range plan.rows {
		if _, ok := rejects[row.ID]; ok {
			continue
		}
		promoted = append(promoted, row.ID)
		if _, ok := writtenRows[row.ID]; ok {
			share.InsertedRows++
		}
	}
	if err := tx.MarkStagingRows(ctx, promoted, models.StagingPromoted); err != nil {
		return fmt.Errorf("mark promoted rows: %w", err)
	}
	if err := tx.RejectStagingRows(ctx, rejects); err != nil {
		return fmt.Errorf("mark rejected rows: %w", err)
	}

	summary := models.MergeErrorSummary(plan.run.ErrorSummary, unresolved...)
	if err := tx.CompleteRun(ctx, plan.run.ID, share.InsertedRows, summary); err != nil {
		return fmt.Errorf("complete run %s: %w", plan.run.ID, err)
	}

	res.InsertedCount += share.InsertedCount
	res.UpdatedCount += share.UpdatedCount
	res.DeletedCount += share.DeletedCount
	res.RunIDs = append(res.RunIDs, plan.run.ID)
	res.Runs = append(res.Runs, share)
	return nil
}

// commonPlan is the plan every run shared. Mode is empty when they differ.
func (p *promotion) commonPlan(plans []*runPlan) (models.ImportMode, *models.DateRange) {
	if len(plans) == 0 {
		if p.req.Mode == "" {
			return models.ModeIncremental, nil
		}
		return p.req.Mode, p.req.Range
	}
	first := plans[0]
	for _, plan := range plans[1:] {
		if !samePlan(first.mode, first.window, plan.mode, plan.window) {
			return "", nil
		}
	}
	if first.mode != models.ModeReplace {
		return first.mode, nil
	}
	return first.mode, first.window
}

// samePlan compares modes and, for replace, their windows
func samePlan(am models.ImportMode, ar *models.DateRange, bm models.ImportMode, br *models.DateRange) bool {
	if am == "" {
		am = models.ModeIncremental
	}
	if bm == "" {
		bm = models.ModeIncremental
	}
	if am != bm {
		return false
	}
	if am != models.ModeReplace {
		return true
	}
	if ar == nil || br == nil {
		return ar == br
	}
	return ar.Start.Equal(br.Start) && ar.End.Equal(br.End)
}

func describePlan(mode models.ImportMode, r *models.DateRange) string {
	if mode == models.ModeReplace && r != nil {
		return fmt.Sprintf("replace %s..%s", r.Start.Format(timeutil.DateLayout), r.End.Format(timeutil.DateLayout))
	}
	return modeLabel(mode)
}

// resolve fills canonical codes and names from reference data. The
// returned reference is non-nil when the assignment cannot be promoted.
func resolve(snap *models.ReferenceSnapshot, in models.Assignment) (*models.Assignment, *models.UnresolvedReference) {
	a := in
	miss := func(reason models.UnresolvedReason, value string) *models.UnresolvedReference {
		return &models.UnresolvedReference{Category: in.CategoryName, Reason: reason, Value: value}
	}

	vendor, ok := snap.VendorsByCode[models.ReferenceKey(a.VendorCode)]
	if !ok {
		return nil, miss(models.UnresolvedVendor, a.VendorCode)
	}
	a.VendorCode = vendor.Code
	if vendor.Name != "" {
		a.VendorName = vendor.Name
	}
	if a.SupervisorCode == "" {
		a.SupervisorCode = vendor.SupervisorCode
	}

	var client models.Client
	if a.ClientCode != "" {
		client, ok = snap.ClientsByCode[models.ReferenceKey(a.ClientCode)]
	}
	if !ok || a.ClientCode == "" {
		client, ok = snap.ClientsByName[models.ReferenceKey(a.ClientName)]
	}
	if !ok {
		value := a.ClientName
		if a.ClientCode != "" {
			value = a.ClientCode
		}
		return nil, miss(models.UnresolvedClient, value)
	}
	a.ClientCode, a.ClientName = client.Code, client.Name

	category, ok := snap.CategoriesByKey[models.ReferenceKey(a.CategoryName)]
	if !ok && a.CategoryCode != "" {
		category, ok = snap.CategoriesByKey[models.ReferenceKey(a.CategoryCode)]
	}
	if !ok {
		return nil, miss(models.UnresolvedCategory, a.CategoryName)
	}
	a.CategoryCode, a.CategoryName = category.Code, category.Name

	if a.RouteCode != "" || a.RouteName != "" {
		route, ok := snap.RoutesByCode[models.ReferenceKey(a.RouteCode)]
		if !ok && a.RouteName != "" {
			route, ok = snap.RoutesByName[models.ReferenceKey(a.RouteName)]
		}
		if !ok {
			value := a.RouteName
			if a.RouteCode != "" {
				value = a.RouteCode
			}
			return nil, miss(models.UnresolvedRoute, value)
		}
		a.RouteCode, a.RouteName = route.Code, route.Name
	}
	return &a, nil
}

func unresolvedLine(u models.UnresolvedReference) string {
	if u.Category != "" {
		return fmt.Sprintf("row %d: %s %q (%s)", u.Row, u.Reason, u.Value, u.Category)
	}
	return fmt.Sprintf("row %d: %s %q", u.Row, u.Reason, u.Value)
}

// unresolvedRowError records an unresolved reference on its staging row
func unresolvedRowError(u models.UnresolvedReference) models.RowError {
	msg := fmt.Sprintf("%q", u.Value)
	if u.Category != "" {
		msg += " (" + u.Category + ")"
	}
	return models.RowError{Row: u.Row, Code: models.RowErrorCode(u.Reason), Message: msg}
}

func containsRun(runs []*models.ImportRun, id uuid.UUID) bool {
	for _, r := range runs {
		if r.ID == id {
			return true
		}
	}
	return false
}
