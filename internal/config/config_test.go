package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 25, cfg.Import.MaxFileMB)
	assert.Equal(t, int64(25<<20), cfg.MaxFileBytes())
	assert.Equal(t, 5000, cfg.Import.MaxRows)
	assert.Equal(t, 100, cfg.Import.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Import.PromotionTimeout)
	assert.Equal(t, "test-secret", cfg.JWT.Secret)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
import:
  max_rows: 50
  default_sheet: Activaciones
jwt:
  secret: from-file
`), 0o600))

	t.Setenv("JWT_SECRET", "")
	t.Setenv("IMPORT_PROMOTION_TIMEOUT", "30s")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Import.MaxRows)
	assert.Equal(t, "Activaciones", cfg.Import.DefaultSheet)
	assert.Equal(t, 30*time.Second, cfg.Import.PromotionTimeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}
