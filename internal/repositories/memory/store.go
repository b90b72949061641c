// Package memory is an in-process implementation of every repository
// interface. It backs the memory storage driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"activation-backend/internal/models"
	"activation-backend/internal/repositories"

	"github.com/google/uuid"
)

// Hooks inject failures into a promotion transaction
type Hooks struct {
	BeforeUpsert func(batch []*models.Assignment) error
}

type Store struct {
	// mu guards st. A promotion holds it for its whole transaction.
	mu    sync.Mutex
	st    *state
	Hooks Hooks
	now   func() time.Time
}

type state struct {
	runs        map[uuid.UUID]*models.ImportRun
	runSeq      map[uuid.UUID]int
	staging     map[uuid.UUID][]*models.StagingRow
	assignments map[models.NaturalKey]*models.Assignment
	supervisors map[string]models.Supervisor
	vendors     map[string]models.Vendor
	clients     map[string]models.Client
	routes      map[string]models.Route
	categories  map[string]models.Category
	users       map[int]*models.User
	logs        []*models.AdminActionLog

	seq, nextStagingID, nextAssignmentID int64
	nextUserID, nextLogID, nextRefID     int
}

// New returns an empty store seeded with the default categories
func New() *Store {
	s := &Store{
		st: &state{
			runs:        map[uuid.UUID]*models.ImportRun{},
			runSeq:      map[uuid.UUID]int{},
			staging:     map[uuid.UUID][]*models.StagingRow{},
			assignments: map[models.NaturalKey]*models.Assignment{},
			supervisors: map[string]models.Supervisor{},
			vendors:     map[string]models.Vendor{},
			clients:     map[string]models.Client{},
			routes:      map[string]models.Route{},
			categories:  map[string]models.Category{},
			users:       map[int]*models.User{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	s.st.saveReferences(models.ReferenceSet{Categories: append([]models.Category{}, models.KnownCategories...)})
	return s
}

// Stores exposes the store through every repository interface
func (s *Store) Stores() *repositories.Stores {
	return &repositories.Stores{
		Runs:        s,
		Staging:     s,
		Assignments: s,
		References:  s,
		Promoter:    s,
		Users:       s,
		ActionLogs:  s,
	}
}

func (st *state) clone() *state {
	c := *st
	c.runs = make(map[uuid.UUID]*models.ImportRun, len(st.runs))
	for id, r := range st.runs {
		c.runs[id] = copyRun(r)
	}
	c.runSeq = make(map[uuid.UUID]int, len(st.runSeq))
	for id, n := range st.runSeq {
		c.runSeq[id] = n
	}
	c.staging = make(map[uuid.UUID][]*models.StagingRow, len(st.staging))
	for id, rows := range st.staging {
		cp := make([]*models.StagingRow, len(rows))
		for i, r := range rows {
			v := *r
			cp[i] = &v
		}
		c.staging[id] = cp
	}
	c.assignments = make(map[models.NaturalKey]*models.Assignment, len(st.assignments))
	for k, a := range st.assignments {
		v := *a
		c.assignments[k] = &v
	}
	return &c
}

func copyRun(r *models.ImportRun) *models.ImportRun {
	v := *r
	v.ErrorSummary = append([]string{}, r.ErrorSummary...)
	if r.Range != nil {
		dr := *r.Range
		v.Range = &dr
	}
	return &v
}

func (s *Store) CreateRun(ctx context.Context, run *models.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if _, ok := s.st.runs[run.ID]; ok {
		return fmt.Errorf("import run %s already exists", run.ID)
	}
	if run.Status == "" {
		run.Status = models.RunPending
	}
	if run.ErrorSummary == nil {
		run.ErrorSummary = []string{}
	}
	run.CreatedAt = s.now()
	run.UpdatedAt = run.CreatedAt
	s.st.seq++
	s.st.runSeq[run.ID] = int(s.st.seq)
	s.st.runs[run.ID] = copyRun(run)
	return nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*models.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.st.runs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyRun(r), nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]*models.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	runs := s.st.orderedRuns()
	out := make([]*models.ImportRun, 0, len(runs))
	for i := len(runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyRun(runs[i]))
	}
	return out, nil
}

// orderedRuns returns runs oldest first
func (st *state) orderedRuns() []*models.ImportRun {
	runs := make([]*models.ImportRun, 0, len(st.runs))
	for _, r := range st.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.Before(runs[j].CreatedAt)
		}
		return st.runSeq[runs[i].ID] < st.runSeq[runs[j].ID]
	})
	return runs
}

func (s *Store) TransitionRun(ctx context.Context, id uuid.UUID, from []models.ImportRunStatus, to models.ImportRunStatus, upd models.RunUpdate) (*models.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.transition(s.now(), id, from, to, upd)
}

func (st *state) transition(now time.Time, id uuid.UUID, from []models.ImportRunStatus, to models.ImportRunStatus, upd models.RunUpdate) (*models.ImportRun, error) {
	r, ok := st.runs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	allowed := false
	for _, f := range from {
		if r.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, repositories.ErrStatusConflict
	}
	r.Status = to
	if upd.ProcessedRows != nil {
		r.ProcessedRows = *upd.ProcessedRows
	}
	if upd.InsertedRows != nil {
		r.InsertedRows = *upd.InsertedRows
	}
	if upd.ErrorSummary != nil {
		r.ErrorSummary = append([]string{}, upd.ErrorSummary...)
	}
	r.UpdatedAt = now
	if to.Terminal() {
		r.CompletedAt = &now
	}
	return copyRun(r), nil
}

func (s *Store) FailStaleRuns(ctx context.Context, before time.Time, reason string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var ids []uuid.UUID
	for _, r := range s.st.orderedRuns() {
		if r.Status.Terminal() || !r.UpdatedAt.Before(before) {
			continue
		}
		r.Status = models.RunFailed
		r.ErrorSummary = append(r.ErrorSummary, reason)
		r.UpdatedAt = now
		r.CompletedAt = &now
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *Store) ReplaceStagingRows(ctx context.Context, runID uuid.UUID, rows []*models.StagingRow, upd models.RunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.st.runs[runID]
	if !ok {
		return repositories.ErrNotFound
	}
	if r.Status != models.RunPending && r.Status != models.RunProcessing {
		return repositories.ErrStatusConflict
	}

	now := s.now()
	stored := make([]*models.StagingRow, len(rows))
	for i, row := range rows {
		v := *row
		s.st.nextStagingID++
		v.ID = s.st.nextStagingID
		v.RunID = runID
		v.CreatedAt = now
		if v.State == "" {
			v.State = models.StagingStaged
		}
		row.ID = v.ID
		stored[i] = &v
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].RowNumber < stored[j].RowNumber })
	s.st.staging[runID] = stored

	_, err := s.st.transition(now, runID,
		[]models.ImportRunStatus{models.RunPending, models.RunProcessing}, models.RunProcessing, upd)
	return err
}

func (s *Store) ListStagingRows(ctx context.Context, runID uuid.UUID, state models.StagingState) ([]*models.StagingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.StagingRow
	for _, r := range s.st.staging[runID] {
		if state != "" && r.State != state {
			continue
		}
		v := *r
		out = append(out, &v)
	}
	return out, nil
}

func (s *Store) ListAssignments(ctx context.Context, f models.AssignmentFilter) ([]*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Assignment
	for _, a := range s.st.assignments {
		if f.Range != nil && !f.Range.Contains(a.ReportDate) {
			continue
		}
		if f.VendorCode != "" && a.VendorCode != f.VendorCode {
			continue
		}
		v := *a
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ReportDate.Equal(b.ReportDate) {
			return a.ReportDate.Before(b.ReportDate)
		}
		ka, kb := a.Key(), b.Key()
		if ka.VendorCode != kb.VendorCode {
			return ka.VendorCode < kb.VendorCode
		}
		if ka.ClientCode != kb.ClientCode {
			return ka.ClientCode < kb.ClientCode
		}
		return ka.CategoryCode < kb.CategoryCode
	})
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LoadReferenceSnapshot(ctx context.Context) (*models.ReferenceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.snapshot(), nil
}

func (st *state) snapshot() *models.ReferenceSnapshot {
	vendors := make([]models.Vendor, 0, len(st.vendors))
	for _, v := range st.vendors {
		vendors = append(vendors, v)
	}
	clients := make([]models.Client, 0, len(st.clients))
	for _, c := range st.clients {
		clients = append(clients, c)
	}
	routes := make([]models.Route, 0, len(st.routes))
	for _, r := range st.routes {
		routes = append(routes, r)
	}
	categories := make([]models.Category, 0, len(st.categories))
	for _, c := range st.categories {
		categories = append(categories, c)
	}
	return models.NewReferenceSnapshot(vendors, clients, routes, categories)
}

func (s *Store) SaveReferences(ctx context.Context, set models.ReferenceSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.saveReferences(set)
	return nil
}

func (st *state) saveReferences(set models.ReferenceSet) {
	id := func(existing int) int {
		if existing != 0 {
			return existing
		}
		st.nextRefID++
		return st.nextRefID
	}
	for _, v := range set.Supervisors {
		v.ID = id(st.supervisors[v.Code].ID)
		st.supervisors[v.Code] = v
	}
	for _, v := range set.Vendors {
		v.ID = id(st.vendors[v.Code].ID)
		st.vendors[v.Code] = v
	}
	for _, c := range set.Clients {
		c.ID = id(st.clients[c.Code].ID)
		st.clients[c.Code] = c
	}
	for _, r := range set.Routes {
		r.ID = id(st.routes[r.Code].ID)
		st.routes[r.Code] = r
	}
	for _, c := range set.Categories {
		c.ID = id(st.categories[c.Code].ID)
		st.categories[c.Code] = c
	}
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("user %s already exists", u.Email)
		}
	}
	if u.Role == "" {
		u.Role = models.RoleVendor
	}
	u.IsActive = true
	s.st.nextUserID++
	u.ID = s.st.nextUserID
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	v := *u
	s.st.users[u.ID] = &v
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.st.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	v := *u
	return &v, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.st.users {
		if strings.EqualFold(u.Email, email) {
			v := *u
			return &v, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *Store) CreateActionLog(ctx context.Context, l *models.AdminActionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.nextLogID++
	l.ID = s.st.nextLogID
	l.CreatedAt = s.now()
	v := *l
	s.st.logs = append(s.st.logs, &v)
	return nil
}

func (s *Store) ListActionLogs(ctx context.Context, limit int) ([]*models.AdminActionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	var out []*models.AdminActionLog
	for i := len(s.st.logs) - 1; i >= 0 && len(out) < limit; i-- {
		v := *s.st.logs[i]
		out = append(out, &v)
	}
	return out, nil
}

var (
	_ repositories.RunStore         = (*Store)(nil)
	_ repositories.StagingStore     = (*Store)(nil)
	_ repositories.AssignmentReader = (*Store)(nil)
	_ repositories.ReferenceStore   = (*Store)(nil)
	_ repositories.Promoter         = (*Store)(nil)
	_ repositories.UserStore        = (*Store)(nil)
	_ repositories.ActionLogStore   = (*Store)(nil)
)
