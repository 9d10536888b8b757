package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisplayModeDecisionWins(t *testing.T) {
	f := &FopUpdate{
		CurrentAthleteKey: "a1",
		AthleteTimer:      AthleteTimerSlice{EventType: "StartTime"},
		Decision:          DecisionSlice{EventType: "DOWN_SIGNAL"},
	}
	require.Equal(t, DisplayDecision, f.DisplayMode())

	f.Decision = DecisionSlice{EventType: "RESET", DecisionsVisible: true}
	require.Equal(t, DisplayAthlete, f.DisplayMode())
}

func TestDisplayModeBreak(t *testing.T) {
	f := &FopUpdate{Break: true}
	require.Equal(t, DisplayBreak, f.DisplayMode())

	// A paused break with nothing else shows nothing.
	f.BreakTimer = BreakTimerSlice{EventType: "Pause"}
	require.Equal(t, DisplayNone, f.DisplayMode())

	// A running break clock always shows the break.
	f.BreakTimer = BreakTimerSlice{EventType: "StartTime"}
	require.Equal(t, DisplayBreak, f.DisplayMode())
}

func TestDisplayModeAthleteClockOverridesEndingBreak(t *testing.T) {
	f := &FopUpdate{
		Break:             true,
		CurrentAthleteKey: "a1",
		AthleteTimer:      AthleteTimerSlice{EventType: "StartTime"},
	}
	require.Equal(t, DisplayAthlete, f.DisplayMode())
}

func TestDisplayModeGroupDoneBreakHidden(t *testing.T) {
	f := &FopUpdate{Break: true, BreakType: "GROUP_DONE"}
	require.Equal(t, DisplayNone, f.DisplayMode())
}

func TestDisplayModeAthlete(t *testing.T) {
	f := &FopUpdate{
		CurrentAthleteKey: "a1",
		AthleteTimer:      AthleteTimerSlice{EventType: "StopTime"},
	}
	require.Equal(t, DisplayAthlete, f.DisplayMode())

	// No current athlete: the clock alone shows nothing.
	f.CurrentAthleteKey = ""
	require.Equal(t, DisplayNone, f.DisplayMode())
}

func TestDisplayModeNilSnapshot(t *testing.T) {
	var f *FopUpdate
	require.Equal(t, DisplayNone, f.DisplayMode())
}

func TestBreakLabelInterruption(t *testing.T) {
	f := &FopUpdate{Break: true, Mode: "INTERRUPTION"}
	require.Equal(t, "STOP", f.BreakLabel("en"))
	require.Equal(t, "STOPP", f.BreakLabel("nb-NO"))
	require.Equal(t, "STOPP", f.BreakLabel("no"))

	f.Mode = "LIFTING"
	require.Equal(t, "", f.BreakLabel("en"))
}

func TestNeighborAthleteExplicitKeyWins(t *testing.T) {
	a1 := Athlete{Key: "a1"}
	a2 := Athlete{Key: "a2"}
	a3 := Athlete{Key: "a3"}
	f := &FopUpdate{
		CurrentAthleteKey: "a2",
		NextAthleteKey:    "a1",
		SessionAthletes:   []Athlete{a1, a2, a3},
		LiftingOrderAthletes: []OrderEntry{
			{Athlete: &a1}, {IsSpacer: true}, {Athlete: &a2}, {Athlete: &a3},
		},
	}
	// Explicit next key overrides the positional neighbor a3.
	require.Equal(t, "a1", neighborAthlete(f, 1).Key)
	require.Equal(t, "a2", neighborAthlete(f, 0).Key)
	// Previous has no explicit key: positional across the spacer.
	require.Equal(t, "a1", neighborAthlete(f, -1).Key)
}

func TestEnrichAthleteAllAttemptsTaken(t *testing.T) {
	extra := map[string]any{
		"snatch1ActualLift": float64(90), "snatch2ActualLift": float64(-94), "snatch3ActualLift": float64(94),
		"cleanJerk1ActualLift": float64(110), "cleanJerk2ActualLift": float64(114), "cleanJerk3ActualLift": float64(-118),
	}
	enriched := enrichAthlete(&Athlete{Key: "a1", Extra: extra})
	require.Equal(t, LiftTypeCleanJerk, enriched.CurrentLiftType)
	require.Equal(t, 3, enriched.CurrentAttempt)
	require.Zero(t, enriched.CurrentWeight)
}

func TestEnrichAthleteNil(t *testing.T) {
	require.Nil(t, enrichAthlete(nil))
}
