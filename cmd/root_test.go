package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["consume"])
}

func TestMigrateCommand_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	dbPath := filepath.Join(dir, "data", "medicos.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", dbPath)

	rootCmd.SetArgs([]string{"migrate"})
	require.NoError(t, rootCmd.Execute())

	_, err := os.Stat(dbPath)
	assert.NoError(t, err, "migrate should create the sqlite file")
}

func TestConsumeCommand_RequiresBroker(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("KAFKA_BROKER", "")

	rootCmd.SetArgs([]string{"consume"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKER")
}

func TestInvalidDriverFailsBeforeRunning(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "oracle")

	rootCmd.SetArgs([]string{"migrate"})
	assert.Error(t, rootCmd.Execute())
}
