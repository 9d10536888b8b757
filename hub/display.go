package hub

import "strings"

// DisplayMode is the "what to show" reduction of a platform snapshot.
type DisplayMode string

// Display modes in priority order.
const (
	DisplayDecision DisplayMode = "decision"
	DisplayBreak    DisplayMode = "break"
	DisplayAthlete  DisplayMode = "athlete"
	DisplayNone     DisplayMode = "none"
)

// Timer event types shared by the athlete and break clocks.
const (
	timerStartTime = "StartTime"
	timerStopTime  = "StopTime"
	timerSetTime   = "SetTime"
	timerPause     = "Pause"
)

// decisionVisible reports whether referee lights or the down signal should be
// on screen. A DOWN_SIGNAL alone counts; a RESET clears everything.
func (f *FopUpdate) decisionVisible() bool {
	if f.Decision.EventType == "RESET" {
		return false
	}
	if f.Decision.EventType == "DOWN_SIGNAL" {
		return true
	}
	return f.Decision.DecisionsVisible || f.Decision.Down
}

func (f *FopUpdate) inBreak() bool {
	return f.Break || f.FopState == "BREAK"
}

// DisplayMode reduces the orthogonal timer, break, and decision slices to the
// single thing a scoreboard should render right now.
func (f *FopUpdate) DisplayMode() DisplayMode {
	if f == nil {
		return DisplayNone
	}
	decision := f.decisionVisible()
	if decision {
		return DisplayDecision
	}

	// A running break clock wins whatever the other flags claim.
	if f.BreakTimer.EventType == timerStartTime {
		return DisplayBreak
	}

	athleteClockLive := f.CurrentAthleteKey != "" &&
		(f.AthleteTimer.EventType == timerStartTime ||
			f.AthleteTimer.EventType == timerStopTime ||
			f.AthleteTimer.EventType == timerSetTime)

	if f.inBreak() &&
		f.BreakTimer.EventType != timerPause &&
		f.BreakType != breakTypeGroupDone &&
		!(athleteClockLive && f.AthleteTimer.EventType == timerStartTime) {
		return DisplayBreak
	}

	if athleteClockLive {
		return DisplayAthlete
	}
	return DisplayNone
}

// BreakLabel returns the literal label to show instead of a countdown, or ""
// when the break clock should count down. Competition interruptions show
// "STOP" ("STOPP" for Norwegian locales).
func (f *FopUpdate) BreakLabel(locale string) string {
	if f == nil || !f.inBreak() || f.Mode != "INTERRUPTION" {
		return ""
	}
	lang := strings.ToLower(baseLocale(normalizeLocale(locale)))
	if lang == "" {
		lang = strings.ToLower(normalizeLocale(locale))
	}
	switch lang {
	case "no", "nb", "nn":
		return "STOPP"
	}
	return "STOP"
}

// despaceredLiftingOrder returns the lifting order without spacer rows.
func despaceredLiftingOrder(f *FopUpdate) []*Athlete {
	out := make([]*Athlete, 0, len(f.LiftingOrderAthletes))
	for i := range f.LiftingOrderAthletes {
		entry := &f.LiftingOrderAthletes[i]
		if entry.IsSpacer || entry.Athlete == nil {
			continue
		}
		out = append(out, entry.Athlete)
	}
	return out
}

// neighborAthlete resolves the athlete at the given offset from the current
// one in the lifting order. Offset 0 is the current athlete.
func neighborAthlete(f *FopUpdate, offset int) *Athlete {
	if f == nil {
		return nil
	}

	// Explicit keys win over positional lookup.
	key := ""
	switch offset {
	case 0:
		key = f.CurrentAthleteKey
	case 1:
		key = f.NextAthleteKey
	case -1:
		key = f.PreviousAthleteKey
	}
	order := despaceredLiftingOrder(f)
	if key != "" {
		for _, athlete := range order {
			if athlete.Key == key {
				return athlete
			}
		}
		for i := range f.SessionAthletes {
			if f.SessionAthletes[i].Key == key {
				return &f.SessionAthletes[i]
			}
		}
		if offset != 0 {
			return nil
		}
	}

	if f.CurrentAthleteKey == "" {
		return nil
	}
	for i, athlete := range order {
		if athlete.Key == f.CurrentAthleteKey {
			j := i + offset
			if j < 0 || j >= len(order) {
				return nil
			}
			return order[j]
		}
	}
	return nil
}

// Lift types reported on enriched athletes.
const (
	LiftTypeSnatch    = "snatch"
	LiftTypeCleanJerk = "cleanJerk"
)

// EnrichedAthlete is an athlete annotated with the attempt they are about to
// take and its requested weight.
type EnrichedAthlete struct {
	Athlete
	CurrentWeight   float64 `json:"currentWeight"`
	CurrentAttempt  int     `json:"currentAttempt"`
	CurrentLiftType string  `json:"currentLiftType"`
}

// enrichAthlete computes the pending attempt from the raw attempt columns:
// the first attempt of either lift without an actual result. The requested
// weight resolves change2 over change1 over declaration over automatic
// progression.
func enrichAthlete(a *Athlete) *EnrichedAthlete {
	if a == nil {
		return nil
	}
	enriched := &EnrichedAthlete{Athlete: *a, CurrentLiftType: LiftTypeSnatch, CurrentAttempt: 1}
	for _, lift := range []string{LiftTypeSnatch, LiftTypeCleanJerk} {
		for attempt := 1; attempt <= 3; attempt++ {
			base := lift + string(rune('0'+attempt))
			if actual, ok := numberField(a.Extra, base+"ActualLift"); ok && actual != 0 {
				continue
			}
			enriched.CurrentLiftType = lift
			enriched.CurrentAttempt = attempt
			for _, col := range weightColumns {
				if w, ok := numberField(a.Extra, base+col); ok && w != 0 {
					enriched.CurrentWeight = w
					return enriched
				}
			}
			return enriched
		}
	}
	// All six attempts taken; report the final clean & jerk attempt.
	enriched.CurrentLiftType = LiftTypeCleanJerk
	enriched.CurrentAttempt = 3
	return enriched
}
