package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return New(Options{Logger: noopLogger{}, LocalFilesDir: t.TempDir()})
}

func databasePayload(t *testing.T) map[string]any {
	t.Helper()
	return decodeJSON(t, `{
		"competition": {"competitionName": "Nationals", "platforms": ["A", "B"]},
		"teams": [{"id": 1, "name": "Oslo AK"}, {"id": 2, "name": "Bergen"}],
		"ageGroups": [{
			"code": "SR",
			"name": "Senior",
			"categories": [
				{"gender": "M", "maximumWeight": 89, "categoryName": "M 89"},
				{"gender": "M", "maximumWeight": 200, "categoryName": "M +109"}
			]
		}],
		"athletes": [
			{"key": "a1", "lastName": "Nordmann", "firstName": "Ola", "team": 1},
			{"key": "a2", "lastName": "Hansen", "firstName": "Kari", "team": 2}
		]
	}`)
}

func TestIngestDatabaseBuildsState(t *testing.T) {
	h := newTestHub(t)
	var kinds []EventKind
	h.Subscribe(EventDatabase, func(ev Event) { kinds = append(kinds, ev.Kind) })
	h.Subscribe(EventDatabaseReady, func(ev Event) { kinds = append(kinds, ev.Kind) })

	resp := h.IngestDatabase(databasePayload(t))
	require.Equal(t, 200, resp.Status)

	state := h.GetDatabaseState()
	require.NotNil(t, state)
	require.True(t, state.Initialized)
	require.Equal(t, "Nationals", state.Competition.Name)
	require.Len(t, state.Athletes, 2)
	require.Equal(t, "Oslo AK", state.Athletes[0].TeamName)
	require.Equal(t, []string{"A", "B"}, state.FOPs)
	require.Equal(t, []EventKind{EventDatabase, EventDatabaseReady}, kinds)
}

func TestIngestDatabaseDuplicateChecksum(t *testing.T) {
	h := newTestHub(t)
	require.Equal(t, 200, h.IngestDatabase(databasePayload(t)).Status)

	resp := h.IngestDatabase(databasePayload(t))
	require.Equal(t, 200, resp.Status)
	require.True(t, resp.Cached)
	require.Equal(t, "duplicate_checksum", resp.Reason)
}

func TestIngestDatabaseEmptyPayloadDefersToZip(t *testing.T) {
	h := newTestHub(t)
	resp := h.IngestDatabase(decodeJSON(t, `{}`))
	require.Equal(t, 202, resp.Status)
	require.Equal(t, "waiting_for_zip", resp.Reason)
	require.True(t, resp.Pending)
	require.Equal(t, int64(5000), resp.Timeout)

	h.mu.RLock()
	pending := h.pendingDatabaseZip
	h.mu.RUnlock()
	require.True(t, pending)
}

func TestIngestDatabaseDuplicateAthleteKeyFails(t *testing.T) {
	h := newTestHub(t)
	payload := decodeJSON(t, `{
		"athletes": [{"key": "a1"}, {"key": "a1"}]
	}`)
	resp := h.IngestDatabase(payload)
	require.Equal(t, 500, resp.Status)
	require.Contains(t, resp.Reason, "duplicate athlete key")
	require.Nil(t, h.GetDatabaseState())
}

func TestIngestDatabaseWrappedDocument(t *testing.T) {
	h := newTestHub(t)
	resp := h.IngestDatabase(map[string]any{"database": databasePayload(t)})
	require.Equal(t, 200, resp.Status)
	require.NotNil(t, h.GetDatabaseState())
}

func TestCategoryComputedCode(t *testing.T) {
	require.Equal(t, "SR_M89", categoryComputedCode("SR", "M", 89))
	require.Equal(t, "SR_F87", categoryComputedCode("SR", "F", 87.0))
	// Above the 130 kg cap the sentinel takes over.
	require.Equal(t, "SR_M999", categoryComputedCode("SR", "M", 200))
	require.Equal(t, "JR_M109", categoryComputedCode("JR", "M", 109.4))
}

func TestDatabaseCategoryIndexUsesComputedCodes(t *testing.T) {
	h := newTestHub(t)
	require.Equal(t, 200, h.IngestDatabase(databasePayload(t)).Status)

	h.mu.RLock()
	defer h.mu.RUnlock()
	require.Contains(t, h.idx.categories, "SR_M89")
	require.Contains(t, h.idx.categories, "SR_M999")
}

func TestExtractFOPsFallbacks(t *testing.T) {
	require.Equal(t, []string{"A"}, extractFOPs(map[string]any{}, nil))
	require.Equal(t, []string{"P1"}, extractFOPs(map[string]any{"platforms": []any{"P1"}}, nil))
	require.Equal(t, []string{"X"}, extractFOPs(map[string]any{}, map[string]any{
		"fops": []any{map[string]any{"name": "X"}},
	}))
}

func TestDatabaseReloadBumpsSnapshotVersions(t *testing.T) {
	h := newTestHub(t)
	require.Equal(t, 200, h.IngestDatabase(databasePayload(t)).Status)
	h.ApplyFrame("update", decodeJSON(t, `{"fop": "A", "groupName": "S1"}`))
	before := h.GetFopStateVersion("A")

	payload := databasePayload(t)
	payload["extraField"] = "changes the checksum"
	require.Equal(t, 200, h.IngestDatabase(payload).Status)
	require.Greater(t, h.GetFopStateVersion("A"), before)
}

func TestDatabaseReloadRefreshesDataTimestamps(t *testing.T) {
	h := newTestHub(t)
	base := time.Now()
	current := base
	h.now = func() time.Time { return current }

	require.Equal(t, 200, h.IngestDatabase(databasePayload(t)).Status)
	h.ApplyFrame("update", decodeJSON(t, `{"fop": "A", "groupName": "S1"}`))
	before := h.GetFopUpdate("A").LastDataUpdate

	current = base.Add(time.Minute)
	payload := databasePayload(t)
	payload["extraField"] = "changes the checksum"
	require.Equal(t, 200, h.IngestDatabase(payload).Status)

	after := h.GetFopUpdate("A").LastDataUpdate
	require.True(t, after.After(before))
	require.Equal(t, h.GetDatabaseState().LastUpdate, after)
}
