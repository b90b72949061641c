package services

import (
	"context"
	"testing"

	"activation-backend/internal/models"
	"activation-backend/internal/spreadsheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReferences(t *testing.T) {
	sheet := &spreadsheet.Sheet{
		Header: []string{"Tipo", "TYPE", "CODE", "NAME", "Supervisor"},
		Rows: []spreadsheet.Row{
			{Number: 2, Cells: []string{"", "supervisor", "s9", "Laura", ""}},
			{Number: 3, Cells: []string{"", "Vendedor", "v9", "Pedro", "s9"}},
			{Number: 4, Cells: []string{"", "CLIENTE", "c9", "Tienda Nueve", ""}},
			{Number: 5, Cells: []string{"", "ruta", "r9", "Oeste", ""}},
			{Number: 6, Cells: []string{"", "categoria", "NUT", "Nutricion", ""}},
		},
	}
	set, err := ParseReferences(sheet)
	require.NoError(t, err)
	assert.Equal(t, []models.Supervisor{{Code: "S9", Name: "Laura"}}, set.Supervisors)
	assert.Equal(t, []models.Vendor{{Code: "V9", Name: "Pedro", SupervisorCode: "S9"}}, set.Vendors)
	assert.Equal(t, []models.Client{{Code: "C9", Name: "Tienda Nueve"}}, set.Clients)
	assert.Equal(t, []models.Route{{Code: "R9", Name: "Oeste"}}, set.Routes)
	assert.Equal(t, []models.Category{{Code: "NUT", Name: "NUTRICION"}}, set.Categories)
}

func TestParseReferencesErrors(t *testing.T) {
	_, err := ParseReferences(&spreadsheet.Sheet{Header: []string{"CODE", "NAME"}})
	assert.ErrorIs(t, err, ErrInvalidReference)

	_, err = ParseReferences(&spreadsheet.Sheet{
		Header: []string{"TYPE", "CODE", "NAME"},
		Rows:   []spreadsheet.Row{{Number: 2, Cells: []string{"PLANETA", "X", "Marte"}}},
	})
	assert.ErrorIs(t, err, ErrInvalidReference)

	_, err = ParseReferences(&spreadsheet.Sheet{
		Header: []string{"TYPE", "CODE", "NAME"},
		Rows:   []spreadsheet.Row{{Number: 2, Cells: []string{"VENDOR", "V1"}}},
	})
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestReferenceImportMakesVendorPromotable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	refs := NewReferenceService(env.store, quietLogger())

	_, err := refs.Import(ctx, "maestros.csv", csvFile(
		"TYPE,CODE,NAME",
		"VENDOR,V77,Nuevo Vendedor",
	), "")
	require.NoError(t, err)

	up := env.upload(t, models.ModeIncremental, nil, csvFile(wideHeader, "V77 - NUEVO,C100 - TIENDA UNO,,2024-03-01,Activado,no"))
	res := env.promote(t, up.Run.ID)
	assert.Equal(t, 2, res.InsertedCount)
	assert.Empty(t, res.UnresolvedReferences)
}

func TestAssignmentListIsCachedUntilPromotion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewAssignmentService(env.store, env.cache, quietLogger())
	filter := models.AssignmentFilter{Range: window("2024-03-01", "2024-03-31")}

	list, err := svc.List(ctx, filter)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, cached := env.cache.GetCached(ctx, dashboardKey(filter))
	assert.True(t, cached)

	up := env.upload(t, models.ModeIncremental, nil, csvFile(wideHeader, "V01 - JUAN PEREZ,C100 - TIENDA UNO,,2024-03-01,Activado,no"))
	env.promote(t, up.Run.ID)

	_, cached = env.cache.GetCached(ctx, dashboardKey(filter))
	assert.False(t, cached)
	list, err = svc.List(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.List(ctx, models.AssignmentFilter{Range: window("2024-03-31", "2024-03-01")})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}
