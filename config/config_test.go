package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "data/medicos.db", cfg.SQLitePath)
	assert.Equal(t, 5*time.Minute, cfg.ListCacheTTL)
	assert.Equal(t, "medico_events", cfg.KafkaTopic)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.RedisHost)
	assert.Empty(t, cfg.KafkaBroker)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/clinica")
	t.Setenv("LIST_CACHE_TTL", "30s")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173,https://clinica.example")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://u:p@localhost:5432/clinica", cfg.PostgresDSN())
	assert.Equal(t, 30*time.Second, cfg.ListCacheTTL)
	assert.Equal(t, []string{"http://localhost:5173", "https://clinica.example"}, cfg.CORSOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "medicos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\nsqlite_path: /tmp/x.db\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KAFKA_BROKER=broker:9092\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("KAFKA_BROKER") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "broker:9092", cfg.KafkaBroker)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite ok", Config{DBDriver: DriverSQLite, SQLitePath: "a.db"}, false},
		{"sqlite without path", Config{DBDriver: DriverSQLite}, true},
		{"postgres with url", Config{DBDriver: DriverPostgres, DatabaseURL: "postgres://x"}, false},
		{"postgres with host", Config{DBDriver: DriverPostgres, DBHost: "db"}, false},
		{"postgres without target", Config{DBDriver: DriverPostgres}, true},
		{"unknown driver", Config{DBDriver: "mysql"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostgresDSN_FromParts(t *testing.T) {
	cfg := Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "clinica", DBPort: "5432"}
	assert.Equal(t, "host=db user=u password=p dbname=clinica port=5432 sslmode=disable", cfg.PostgresDSN())
}
