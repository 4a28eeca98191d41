package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/testflow/internal/history"
	"github.com/harrison/testflow/internal/models"
)

// writeRunConfig writes a config file whose state dir and history db live
// under a temp dir.
func writeRunConfig(t *testing.T) (configPath, stateDir string) {
	t.Helper()
	dir := t.TempDir()
	stateDir = filepath.Join(dir, ".testflow")
	configPath = filepath.Join(dir, "config.yaml")

	content := fmt.Sprintf(`
state_dir: %s
history:
  enabled: true
  db_path: %s
`, stateDir, filepath.Join(stateDir, "history.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath, stateDir
}

func executeRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunExecutesManifest(t *testing.T) {
	configPath, stateDir := writeRunConfig(t)
	manifest := writeManifest(t, `
id: smoke
priority: 5
suites:
  - id: auth
    name: Auth
    estimated_duration: 60ms
  - id: booking
    name: Booking
    estimated_duration: 60ms
    depends_on: [auth]
`)

	output, err := executeRun(t, "run", manifest, "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Session")
	assert.Contains(t, output, "completed")

	// Last-run summary was written atomically into the state dir.
	data, err := os.ReadFile(filepath.Join(stateDir, "last-run.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "status: completed")
	assert.Contains(t, string(data), "passed_suites: 2")

	// The session landed in the history database.
	store, err := history.NewStore(filepath.Join(stateDir, "history.db"))
	require.NoError(t, err)
	defer store.Close()

	records, err := store.ListSessions(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.SessionCompleted, records[0].Status)
	assert.Equal(t, "smoke", records[0].ConfigurationID)
	assert.Equal(t, 2, records[0].TotalSuites)
	assert.Equal(t, 2, records[0].PassedSuites)

	results, err := store.SuiteResults(records[0].ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRunNoHistorySkipsRecording(t *testing.T) {
	configPath, stateDir := writeRunConfig(t)
	manifest := writeManifest(t, `
id: smoke
suites:
  - id: auth
    name: Auth
`)

	_, err := executeRun(t, "run", manifest, "--config", configPath, "--no-history")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(stateDir, "history.db"))
	assert.True(t, os.IsNotExist(err), "history database should not be created")
}

func TestRunRejectsBadTimeout(t *testing.T) {
	configPath, _ := writeRunConfig(t)
	manifest := writeManifest(t, `
id: smoke
suites:
  - id: auth
    name: Auth
`)

	_, err := executeRun(t, "run", manifest, "--config", configPath, "--timeout", "whenever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout")
}

func TestRunMissingManifest(t *testing.T) {
	configPath, _ := writeRunConfig(t)

	_, err := executeRun(t, "run", filepath.Join(t.TempDir(), "nope.yaml"), "--config", configPath)
	require.Error(t, err)
}

func TestHistoryCommandListsSessions(t *testing.T) {
	configPath, stateDir := writeRunConfig(t)
	manifest := writeManifest(t, `
id: smoke
suites:
  - id: auth
    name: Auth
`)

	_, err := executeRun(t, "run", manifest, "--config", configPath)
	require.NoError(t, err)

	output, err := executeRun(t, "history", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, output, "smoke")
	assert.Contains(t, output, "completed")

	// Per-session detail view.
	store, err := history.NewStore(filepath.Join(stateDir, "history.db"))
	require.NoError(t, err)
	records, err := store.ListSessions(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	store.Close()

	output, err = executeRun(t, "history", "--config", configPath, "--session", records[0].ID)
	require.NoError(t, err)
	assert.Contains(t, output, "passed")
	assert.Contains(t, output, "auth")
}
