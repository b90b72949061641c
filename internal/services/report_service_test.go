package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"activation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectedCSVListsRejectedRows(t *testing.T) {
	env := newTestEnv(t)
	up := env.upload(t, models.ModeIncremental, nil, csvFile(
		wideHeader,
		"V01 - JUAN PEREZ,C100 - TIENDA UNO,,2024-03-01,Activado,no",
		"V01 - JUAN PEREZ,,,31/31/2024,Activado,no",
	))

	reports := NewReportService(env.ledger)
	data, err := reports.RejectedCSV(context.Background(), up.Run.ID)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Row", "Reasons", "CHOCOLATE", "CLIENTE", "ENSURE", "FECHA", "RUTA", "VENDEDOR"}, records[0])
	assert.Equal(t, "3", records[1][0])
	assert.Contains(t, records[1][1], "MissingRequiredField")
	assert.Contains(t, records[1][1], "InvalidDate")
	assert.Equal(t, "31/31/2024", records[1][5])
}

func TestRunPDF(t *testing.T) {
	env := newTestEnv(t)
	up := env.upload(t, models.ModeReplace, window("2024-03-01", "2024-03-31"), csvFile(
		wideHeader,
		"V01 - JUAN PEREZ,C100 - TIENDA UNO,,2024-03-01,Activado,no",
		"V01 - JUAN PEREZ,,,2024-03-01,Activado,no",
	))

	reports := NewReportService(env.ledger)
	data, err := reports.RunPDF(context.Background(), up.Run.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, err = reports.RunPDF(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}
