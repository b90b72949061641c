package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveKey(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

	assert.Equal(t, "imports/7c9e6679-7425-40de-944b-e07fc1f90ae7/report.xlsx", ArchiveKey("", id, "report.xlsx"))
	assert.Equal(t, "prod/imports/7c9e6679-7425-40de-944b-e07fc1f90ae7/report.xlsx", ArchiveKey("/prod/", id, `C:\tmp\report.xlsx`))
	assert.Equal(t, "imports/7c9e6679-7425-40de-944b-e07fc1f90ae7/upload", ArchiveKey("", id, ""))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a.CSV"))
	assert.Equal(t, "application/vnd.ms-excel", contentType("a.xls"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}

func TestNopArchiver(t *testing.T) {
	key, err := Nop{}.Archive(context.Background(), uuid.New(), "a.xlsx", []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, key)
}
