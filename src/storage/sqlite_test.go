package storage

import (
	"testing"
	"time"

	"trade-agent/src/interfaces"
	"trade-agent/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemorySQLite(t *testing.T, maxBytes int) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(&models.MStorageConfig{DBPath: ":memory:", MaxStateBytes: maxBytes}, testLogger())
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

// -----------------------------------------------------------------------------

func TestSQLiteSaveLoadState(t *testing.T) {
	db := newMemorySQLite(t, 0)

	loaded, err := db.LoadState()
	require.NoError(t, err)
	assert.Nil(t, loaded, "fresh store has no snapshot")

	require.NoError(t, db.SaveState([]byte(`{"tick_count":1}`)))
	require.NoError(t, db.SaveState([]byte(`{"tick_count":2}`)))

	loaded, err = db.LoadState()
	require.NoError(t, err)
	assert.Equal(t, `{"tick_count":2}`, string(loaded), "snapshot is replaced, not appended")
}

// -----------------------------------------------------------------------------

func TestSQLiteSaveStateSizeLimit(t *testing.T) {
	db := newMemorySQLite(t, 16)

	err := db.SaveState(make([]byte, 17))
	require.ErrorIs(t, err, interfaces.ErrStateTooLarge)

	require.NoError(t, db.SaveState(make([]byte, 16)))
}

// -----------------------------------------------------------------------------

func TestSQLiteOrderLedger(t *testing.T) {
	db := newMemorySQLite(t, 0)

	rec, err := db.LookupOrder("missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	at := time.Date(2026, 4, 2, 15, 4, 0, 0, time.UTC)
	fresh, err := db.RecordOrder("buy|AAPL|1", interfaces.MOrderRecord{
		IdempotencyKey: "buy|AAPL|1", Action: "buy", Symbol: "AAPL",
		SubmissionState: models.SubmissionSubmitted, BrokerOrderID: "b-1", SubmittedAt: at,
	})
	require.NoError(t, err)
	assert.True(t, fresh)

	// Same key again: record kept, insert reported as duplicate.
	fresh, err = db.RecordOrder("buy|AAPL|1", interfaces.MOrderRecord{
		IdempotencyKey: "buy|AAPL|1", Action: "buy", Symbol: "AAPL",
		SubmissionState: models.SubmissionSubmitted, BrokerOrderID: "b-2", SubmittedAt: at,
	})
	require.NoError(t, err)
	assert.False(t, fresh)

	rec, err = db.LookupOrder("buy|AAPL|1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "b-1", rec.BrokerOrderID, "first writer wins")
	assert.Equal(t, at, rec.SubmittedAt)
}
