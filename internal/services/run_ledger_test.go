package services

import (
	"context"
	"testing"
	"time"

	"activation-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailRunRejectsTerminalRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	up := env.upload(t, models.ModeIncremental, nil, csvFile(wideHeader, "V01 - JUAN PEREZ,C100 - TIENDA UNO,,2024-03-01,Activado,no"))

	require.NoError(t, env.ledger.FailRun(ctx, up.Run.ID, "operator abort"))
	run := env.run(t, up.Run.ID)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Equal(t, "operator abort", run.ErrorSummary[len(run.ErrorSummary)-1])

	assert.ErrorIs(t, env.ledger.FailRun(ctx, up.Run.ID, "again"), ErrInvalidTransition)
}

func TestExpireStaleFailsIdleRuns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending, err := env.ledger.BeginRun(ctx, BeginRunParams{FileName: "idle.csv", Mode: models.ModeIncremental})
	require.NoError(t, err)
	done := env.upload(t, models.ModeIncremental, nil, csvFile(wideHeader, "V02 - ANA GOMEZ,C200 - TIENDA DOS,,2024-03-01,Activado,no"))
	env.promote(t, done.Run.ID)
	// staged after the promotion so it stays processing
	staged := env.upload(t, models.ModeIncremental, nil, csvFile(wideHeader, "V01 - JUAN PEREZ,C100 - TIENDA UNO,,2024-03-01,Activado,no"))
	require.Equal(t, models.RunProcessing, env.run(t, staged.Run.ID).Status)

	n, err := env.ledger.ExpireStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.ledger.now = func() time.Time { return time.Now().Add(7 * time.Hour) }
	n, err = env.ledger.ExpireStale(ctx, 6*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, run := range []*models.ImportRun{env.run(t, pending.ID), env.run(t, staged.Run.ID)} {
		assert.Equal(t, models.RunFailed, run.Status)
		assert.Contains(t, run.ErrorSummary, StaleRunReason)
	}
	assert.Equal(t, models.RunCompleted, env.run(t, done.Run.ID).Status)
}

func TestBeginRunValidatesMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.BeginRun(ctx, BeginRunParams{FileName: "a.csv", Mode: models.ModeReplace})
	assert.ErrorIs(t, err, ErrNoDateRange)

	_, err = env.ledger.BeginRun(ctx, BeginRunParams{FileName: "a.csv", Mode: "upsert"})
	assert.ErrorIs(t, err, ErrInvalidMode)

	run, err := env.ledger.BeginRun(ctx, BeginRunParams{FileName: "a.csv", Mode: models.ModeReplace, Range: window("2024-03-01", "2024-03-31")})
	require.NoError(t, err)
	assert.Equal(t, models.RunPending, run.Status)
}

func TestRowsRejectsUnknownState(t *testing.T) {
	env := newTestEnv(t)
	up := env.upload(t, models.ModeIncremental, nil, csvFile(wideHeader, "V01 - JUAN PEREZ,C100 - TIENDA UNO,,2024-03-01,Activado,no"))

	_, err := env.ledger.Rows(context.Background(), up.Run.ID, "archived")
	assert.Error(t, err)

	all, err := env.ledger.Rows(context.Background(), up.Run.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Valid)
	assert.Len(t, all[0].Normalized, 2)
}

func TestWriteStagingRowsAfterFailureIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	run, err := env.ledger.BeginRun(ctx, BeginRunParams{FileName: "a.csv", Mode: models.ModeIncremental})
	require.NoError(t, err)
	require.NoError(t, env.ledger.FailRun(ctx, run.ID, "abort"))

	err = env.ledger.WriteStagingRows(ctx, run.ID, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
