package repositories

import (
	"context"
	"errors"
	"time"

	"activation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrStatusConflict = errors.New("run status does not allow this change")
)

// RunStore persists the import run ledger
type RunStore interface {
	CreateRun(ctx context.Context, run *models.ImportRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.ImportRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.ImportRun, error)
	// TransitionRun moves a run to status `to` only if its current status
	// is one of `from`, returning ErrStatusConflict otherwise
	TransitionRun(ctx context.Context, id uuid.UUID, from []models.ImportRunStatus, to models.ImportRunStatus, upd models.RunUpdate) (*models.ImportRun, error)
	// FailStaleRuns fails pending or processing runs not updated since before
	FailStaleRuns(ctx context.Context, before time.Time, reason string) ([]uuid.UUID, error)
}

// StagingStore persists staging rows
type StagingStore interface {
	// ReplaceStagingRows swaps every staging row of the run in one
	// transaction and moves the run to processing with upd applied
	ReplaceStagingRows(ctx context.Context, runID uuid.UUID, rows []*models.StagingRow, upd models.RunUpdate) error
	// ListStagingRows returns rows of a run in row order; an empty state
	// returns all of them
	ListStagingRows(ctx context.Context, runID uuid.UUID, state models.StagingState) ([]*models.StagingRow, error)
}

type AssignmentReader interface {
	ListAssignments(ctx context.Context, f models.AssignmentFilter) ([]*models.Assignment, error)
}

type ReferenceStore interface {
	LoadReferenceSnapshot(ctx context.Context) (*models.ReferenceSnapshot, error)
	SaveReferences(ctx context.Context, set models.ReferenceSet) error
}

// Promoter runs fn inside the single promotion critical section. fn's
// writes commit together when it returns nil and roll back otherwise.
type Promoter interface {
	WithinPromotion(ctx context.Context, fn func(ctx context.Context, tx PromotionTx) error) error
}

// PromotionTx is the view of storage available inside a promotion
type PromotionTx interface {
	ReferenceSnapshot(ctx context.Context) (*models.ReferenceSnapshot, error)
	// ProcessingRuns locks and returns every run in processing status,
	// oldest first
	ProcessingRuns(ctx context.Context) ([]*models.ImportRun, error)
	// PendingStagingRows returns valid staged rows of processing runs,
	// ordered by run creation then row number
	PendingStagingRows(ctx context.Context) ([]*models.StagingRow, error)
	DeleteAssignmentsInRange(ctx context.Context, r models.DateRange) (int64, error)
	UpsertAssignments(ctx context.Context, batch []*models.Assignment) (inserted, updated int, err error)
	MarkStagingRows(ctx context.Context, ids []int64, state models.StagingState) error
	// RejectStagingRows marks rows rejected and appends the reasons
	RejectStagingRows(ctx context.Context, reasons map[int64][]models.RowError) error
	CompleteRun(ctx context.Context, id uuid.UUID, insertedRows int, summary []string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type ActionLogStore interface {
	CreateActionLog(ctx context.Context, l *models.AdminActionLog) error
	ListActionLogs(ctx context.Context, limit int) ([]*models.AdminActionLog, error)
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Stores groups every storage dependency of the services
type Stores struct {
	Runs        RunStore
	Staging     StagingStore
	Assignments AssignmentReader
	References  ReferenceStore
	Promoter    Promoter
	Users       UserStore
	ActionLogs  ActionLogStore
}

// NewPostgresStores wires the pgx repositories over one pool
func NewPostgresStores(db *pgxpool.Pool, batchSize int) *Stores {
	return &Stores{
		Runs:        NewImportRunRepository(db),
		Staging:     NewStagingRepository(db, batchSize),
		Assignments: NewAssignmentRepository(db),
		References:  NewReferenceRepository(db),
		Promoter:    NewPromotionRepository(db),
		Users:       NewUserRepository(db),
		ActionLogs:  NewAdminActionLogRepository(db),
	}
}

var (
	_ RunStore         = (*ImportRunRepository)(nil)
	_ StagingStore     = (*StagingRepository)(nil)
	_ AssignmentReader = (*AssignmentRepository)(nil)
	_ ReferenceStore   = (*ReferenceRepository)(nil)
	_ Promoter         = (*PromotionRepository)(nil)
	_ PromotionTx      = (*pgPromotionTx)(nil)
	_ UserStore        = (*UserRepository)(nil)
	_ ActionLogStore   = (*AdminActionLogRepository)(nil)
)
