package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SKETCH_CONFIG", "PORT", "ENV", "READ_TIMEOUT", "WRITE_TIMEOUT", "SKETCH_DB_PATH", "SKETCH_MIGRATIONS", "SKETCH_OPENAPI", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaults(), cfg)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "sketch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "4000"
env: staging
read_timeout: 30
db_path: /var/lib/sketch/db.sqlite
cors_origins: ["https://cad.example.com"]
`), 0o644))

	t.Setenv("SKETCH_CONFIG", path)
	t.Setenv("PORT", "5000")
	t.Setenv("WRITE_TIMEOUT", "not-a-number")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 30, cfg.ReadTimeout)
	assert.Equal(t, 10, cfg.WriteTimeout)
	assert.Equal(t, "/var/lib/sketch/db.sqlite", cfg.DBPath)
	assert.Equal(t, "migrations/001_init_sketches.sql", cfg.MigrationsPath)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o644))
	t.Setenv("SKETCH_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SKETCH_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}
