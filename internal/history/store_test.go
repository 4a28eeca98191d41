package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/testflow/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func terminalSession(id string, status models.SessionStatus) models.TestSession {
	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	started := created.Add(2 * time.Second)
	ended := started.Add(90 * time.Second)
	return models.TestSession{
		ID:              id,
		ConfigurationID: "firebase-regression",
		Status:          status,
		Progress: models.SessionProgress{
			TotalSuites:     3,
			CompletedSuites: 2,
			FailedSuites:    1,
			OverallProgress: 100,
		},
		Results: []models.TestResult{
			{SuiteID: "auth", Status: models.SuitePassed, Duration: 30 * time.Second},
			{SuiteID: "ui", Status: models.SuitePassed, Duration: 40 * time.Second},
			{SuiteID: "booking", Status: models.SuiteFailed, Message: "2 assertions failed", Duration: 20 * time.Second},
		},
		Metrics: models.SessionMetrics{
			QueueWait: 2 * time.Second,
			Execution: 90 * time.Second,
			PassRate:  2.0 / 3.0,
		},
		CreatedAt: created,
		StartedAt: &started,
		EndedAt:   &ended,
	}
}

func TestRecordAndGetSession(t *testing.T) {
	store := newTestStore(t)

	session := terminalSession("s1", models.SessionCompleted)
	require.NoError(t, store.RecordSession(session))

	rec, err := store.GetSession("s1")
	require.NoError(t, err)

	assert.Equal(t, "s1", rec.ID)
	assert.Equal(t, "firebase-regression", rec.ConfigurationID)
	assert.Equal(t, models.SessionCompleted, rec.Status)
	assert.Equal(t, 3, rec.TotalSuites)
	assert.Equal(t, 2, rec.PassedSuites)
	assert.Equal(t, 1, rec.FailedSuites)
	assert.InDelta(t, 2.0/3.0, rec.PassRate, 0.001)
	assert.Equal(t, 2*time.Second, rec.QueueWait)
	assert.Equal(t, 90*time.Second, rec.Execution)
	require.NotNil(t, rec.StartedAt)
	require.NotNil(t, rec.EndedAt)
}

func TestSuiteResults(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordSession(terminalSession("s1", models.SessionCompleted)))

	results, err := store.SuiteResults("s1")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "auth", results[0].SuiteID)
	assert.Equal(t, models.SuitePassed, results[0].Status)
	assert.Equal(t, 30*time.Second, results[0].Duration)
	assert.Equal(t, "2 assertions failed", results[2].Message)
}

func TestRecordSessionIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	session := terminalSession("s1", models.SessionCompleted)
	require.NoError(t, store.RecordSession(session))
	require.NoError(t, store.RecordSession(session))

	records, err := store.ListSessions(0)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	results, err := store.SuiteResults("s1")
	require.NoError(t, err)
	assert.Len(t, results, 3, "re-recording must not duplicate suite results")
}

func TestListSessionsOrderAndLimit(t *testing.T) {
	store := newTestStore(t)

	for i, id := range []string{"s1", "s2", "s3"} {
		session := terminalSession(id, models.SessionCompleted)
		session.CreatedAt = session.CreatedAt.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.RecordSession(session))
	}

	records, err := store.ListSessions(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "s3", records[0].ID, "newest first")
	assert.Equal(t, "s2", records[1].ID)
}

func TestGetSessionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession("missing")
	assert.Error(t, err)
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RecordSession(terminalSession("s1", models.SessionCancelled)))
	rec, err := store.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, rec.Status)
}
