package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordFrameClassifiesOutcomes(t *testing.T) {
	rec := NewRecorder()
	rec.RecordFrame("update", 200)
	rec.RecordFrame("update", 428)
	rec.RecordFrame("update", 202)
	rec.RecordFrame("update", 500)
	rec.RecordFrame("timer", 200)

	summary := rec.SnapshotSummary()
	byType := map[string]FrameStatus{}
	for _, entry := range summary.Frames {
		byType[entry.FrameType] = entry
	}
	update := byType["update"]
	require.Equal(t, uint64(4), update.Total)
	require.Equal(t, uint64(1), update.Accepted)
	require.Equal(t, uint64(1), update.Preconditons)
	require.Equal(t, uint64(1), update.Deferred)
	require.Equal(t, uint64(1), update.Errors)
	require.Equal(t, 500, update.LastStatus)
	require.Equal(t, uint64(1), byType["timer"].Accepted)
}

func TestRecordEventSplitsDeliveredAndDebounced(t *testing.T) {
	rec := NewRecorder()
	rec.RecordEvent("UPDATE", true)
	rec.RecordEvent("UPDATE", false)
	rec.RecordEvent("UPDATE", true)

	summary := rec.SnapshotSummary()
	require.Len(t, summary.Events, 1)
	require.Equal(t, uint64(2), summary.Events[0].Delivered)
	require.Equal(t, uint64(1), summary.Events[0].Debounced)
}

func TestRecordDatabaseAndTranslations(t *testing.T) {
	rec := NewRecorder()
	rec.RecordDatabase(120, 14)
	rec.RecordTranslations(3)

	summary := rec.SnapshotSummary()
	require.Equal(t, uint64(1), summary.Database.LoadCount)
	require.Equal(t, 120, summary.Database.AthleteCount)
	require.Equal(t, 14, summary.Database.TeamCount)
	require.NotZero(t, summary.Database.LastLoaded)
	require.Equal(t, 3, summary.Translations)
}

func TestRecordExtractionAccumulates(t *testing.T) {
	rec := NewRecorder()
	rec.RecordExtraction("flags", 180)
	rec.RecordExtraction("flags", 5)

	summary := rec.SnapshotSummary()
	require.Len(t, summary.Resources, 1)
	require.Equal(t, uint64(2), summary.Resources[0].Extractions)
	require.Equal(t, 5, summary.Resources[0].LastCount)
	require.Equal(t, uint64(185), summary.Resources[0].TotalWritten)
}

func TestConnectionLifecycle(t *testing.T) {
	rec := NewRecorder()
	rec.RecordConnect(false)
	rec.RecordConnect(true)
	rec.RecordAuthFailure()
	rec.RecordProtocolError()
	rec.RecordDisconnect()

	summary := rec.SnapshotSummary()
	require.Equal(t, uint64(2), summary.Connection.Connects)
	require.Equal(t, uint64(1), summary.Connection.Replaced)
	require.Equal(t, uint64(1), summary.Connection.AuthFailures)
	require.Equal(t, uint64(1), summary.Connection.ProtocolErrors)
	require.Equal(t, uint64(1), summary.Connection.Disconnects)
	require.False(t, summary.Connection.Connected)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.RecordFrame("update", 200)
	rec.RecordEvent("UPDATE", true)
	rec.RecordDatabase(1, 1)
	rec.RecordTranslations(1)
	rec.RecordExtraction("flags", 1)
	rec.RecordConnect(false)
	rec.RecordDisconnect()
	rec.RecordAuthFailure()
	rec.RecordProtocolError()
}
