package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)

	require.NoError(t, db.CreateRun("run-1", start, 42))
	assert.Error(t, db.CreateRun("run-1", start, 42), "run IDs are unique")
	require.NoError(t, db.SetRunStatus("run-1", "terminated"))
}

func TestMessageRecorder(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateRun("run-1", start, 42))

	rec := db.Recorder("run-1", "primary")
	require.NoError(t, rec.RecordMessage(1, "user", "begin", false))
	require.NoError(t, rec.RecordMessage(2, "assistant", "ok", false))
	assert.Error(t, rec.RecordMessage(2, "assistant", "dupe", false), "sequence numbers are unique per agent")

	// The same seq under a different agent is a different row.
	sub := db.Recorder("run-1", "sub-1")
	require.NoError(t, sub.RecordMessage(2, "assistant", "fine", true))
}

func TestStateSeriesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateRun("run-1", start, 42))

	p1 := StatePoint{
		RecordedAt:    start.AddDate(0, 0, 1),
		Day:           1,
		CashOnHand:    498,
		CashInMachine: 0,
		UnitsSold:     0,
		NetWorth:      498,
		ToolCounts:    map[string]int{"wait_for_next_day": 1},
	}
	p2 := p1
	p2.RecordedAt = start.AddDate(0, 0, 2)
	p2.Day = 2
	p2.CashOnHand = 476
	p2.ToolCounts = map[string]int{"wait_for_next_day": 2, "send_email": 1}

	require.NoError(t, db.RecordState("run-1", p1))
	require.NoError(t, db.RecordState("run-1", p2))
	require.NoError(t, db.RecordState("run-other", p1))

	history, err := db.History("run-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, p1, history[0])
	assert.Equal(t, p2, history[1])
}

func TestSnapshotScratchpad(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateRun("run-1", start, 42))
	require.NoError(t, db.SnapshotScratchpad("run-1", start, "day 1 plan: order cola"))
	require.NoError(t, db.SnapshotScratchpad("run-1", start.Add(time.Hour), ""))
}
