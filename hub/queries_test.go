package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sessionFixture(t *testing.T, h *Hub) {
	t.Helper()
	resp := h.ApplyFrame("update", decodeJSON(t, `{
		"fop": "A",
		"currentAthleteKey": "a1",
		"nextAthleteKey": "a2",
		"sessionAthletes": [
			{"key": "a1", "lastName": "Nordmann", "firstName": "Ola",
			 "snatch1Declaration": 100, "snatch1Change2": 104},
			{"key": "a2", "lastName": "Hansen", "firstName": "Kari",
			 "snatch1ActualLift": 80, "snatch2ActualLift": -84, "snatch3ActualLift": 84,
			 "cleanJerk1Declaration": 95}
		],
		"liftingOrderKeys": ["a1", {"isSpacer": true}, "a2"],
		"startOrderKeys": ["a1", "a2"]
	}`))
	require.Equal(t, 200, resp.Status)
}

func TestGetSessionAthletesSpacerHandling(t *testing.T) {
	h := readyHub(t)
	sessionFixture(t, h)

	withSpacers := h.GetSessionAthletes(SessionAthletesOptions{FopName: "A", IncludeSpacer: true})
	require.Len(t, withSpacers, 3)
	require.True(t, withSpacers[1].IsSpacer)

	without := h.GetSessionAthletes(SessionAthletesOptions{FopName: "A"})
	require.Len(t, without, 2)
	require.Equal(t, "a1", without[0].Athlete.Key)
	require.Equal(t, "a2", without[1].Athlete.Key)
}

func TestGetOrderEntriesSpacerHandling(t *testing.T) {
	h := readyHub(t)
	sessionFixture(t, h)

	withSpacers := h.GetLiftingOrderEntries(SessionAthletesOptions{FopName: "A", IncludeSpacer: true})
	require.Len(t, withSpacers, 3)
	require.True(t, withSpacers[1].IsSpacer)

	without := h.GetLiftingOrderEntries(SessionAthletesOptions{FopName: "A"})
	require.Len(t, without, 2)
	require.Equal(t, "a1", without[0].Athlete.Key)
	require.Equal(t, "a2", without[1].Athlete.Key)

	start := h.GetStartOrderEntries(SessionAthletesOptions{FopName: "A", IncludeSpacer: true})
	require.Len(t, start, 2)
	require.Nil(t, h.GetStartOrderEntries(SessionAthletesOptions{FopName: "Z"}))
}

func TestGetCurrentAthleteEnrichment(t *testing.T) {
	h := readyHub(t)
	sessionFixture(t, h)

	current := h.GetCurrentAthlete("A")
	require.NotNil(t, current)
	require.Equal(t, "a1", current.Key)
	require.Equal(t, LiftTypeSnatch, current.CurrentLiftType)
	require.Equal(t, 1, current.CurrentAttempt)
	// change2 beats declaration.
	require.Equal(t, float64(104), current.CurrentWeight)

	next := h.GetNextAthlete("A")
	require.NotNil(t, next)
	require.Equal(t, "a2", next.Key)
	// All snatches taken: the pending attempt is the first clean and jerk.
	require.Equal(t, LiftTypeCleanJerk, next.CurrentLiftType)
	require.Equal(t, 1, next.CurrentAttempt)
	require.Equal(t, float64(95), next.CurrentWeight)
}

func TestGetPreviousAthletePositionalFallback(t *testing.T) {
	h := readyHub(t)
	// Current is the second athlete in the despacered order; previous falls
	// back to position current-1 because no explicit key was sent.
	h.ApplyFrame("update", decodeJSON(t, `{
		"fop": "A",
		"currentAthleteKey": "a2",
		"sessionAthletes": [
			{"key": "a1", "lastName": "Nordmann"},
			{"key": "a2", "lastName": "Hansen"}
		],
		"liftingOrderKeys": ["a1", "a2"]
	}`))

	previous := h.GetPreviousAthlete("A")
	require.NotNil(t, previous)
	require.Equal(t, "a1", previous.Key)
	require.Nil(t, h.GetNextAthlete("A"))
}

func TestQueriesOnUnknownFOPReturnEmpty(t *testing.T) {
	h := readyHub(t)
	require.Nil(t, h.GetFopUpdate("Z"))
	require.Nil(t, h.GetCurrentAthlete("Z"))
	require.Empty(t, h.GetSessionAthletes(SessionAthletesOptions{FopName: "Z"}))
	require.Zero(t, h.GetFopStateVersion("Z"))
}

func TestGetFopUpdateReturnsIsolatedCopy(t *testing.T) {
	h := readyHub(t)
	sessionFixture(t, h)

	snapshot := h.GetFopUpdate("A")
	snapshot.SessionAthletes[0].FullName = "MUTATED"
	require.Equal(t, "NORDMANN, Ola", h.GetFopUpdate("A").SessionAthletes[0].FullName)
}

func TestGetTeamNameByID(t *testing.T) {
	h := readyHub(t)
	require.Equal(t, "Oslo AK", h.GetTeamNameByID(1))
	require.Equal(t, "", h.GetTeamNameByID(99))
}

func TestGetAvailableFOPsUnion(t *testing.T) {
	h := readyHub(t)
	h.ApplyFrame("timer", decodeJSON(t, `{"fop": "C1"}`))
	require.Equal(t, []string{"A", "B", "C1"}, h.GetAvailableFOPs())
}

func TestGetCategoryToAgeGroupMapMemoized(t *testing.T) {
	h := readyHub(t)
	first := h.GetCategoryToAgeGroupMap()
	require.Equal(t, "SR", first["SR_M89"].Code)

	// Memo is reused for the same database.
	second := h.GetCategoryToAgeGroupMap()
	require.Equal(t, first, second)

	payload := databasePayload(t)
	payload["extraField"] = "new checksum"
	require.Equal(t, 200, h.IngestDatabase(payload).Status)
	third := h.GetCategoryToAgeGroupMap()
	require.Equal(t, "SR", third["SR_M89"].Code)
}

func TestLocalDirAndPrefixAccessors(t *testing.T) {
	h := newTestHub(t)
	require.Equal(t, "/local", h.GetLocalURLPrefix())
	h.SetLocalURLPrefix("/static")
	require.Equal(t, "/static", h.GetLocalURLPrefix())

	dir := t.TempDir()
	h.SetLocalFilesDir(dir)
	require.Equal(t, dir, h.GetLocalFilesDir())
}
