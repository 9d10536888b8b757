package hub

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// jsonStringFields are envelope fields the producer occasionally delivers as
// JSON-encoded strings instead of objects. They are normalized at the frame
// boundary; the core never sees the string form.
var jsonStringFields = []string{
	"sessionAthletes",
	"startOrderKeys",
	"liftingOrderKeys",
	"startOrderAthletes",
	"liftingOrderAthletes",
	"leaders",
	"records",
}

func resolveFOPName(payload map[string]any) string {
	if name := stringField(payload, "fop"); name != "" {
		return name
	}
	if name := stringField(payload, "fopName"); name != "" {
		return name
	}
	return "A"
}

// parseEmbeddedJSON replaces JSON-string fields with their decoded value.
func parseEmbeddedJSON(payload map[string]any) {
	for _, field := range jsonStringFields {
		raw, ok := payload[field].(string)
		if !ok || raw == "" {
			continue
		}
		trimmed := strings.TrimSpace(raw)
		if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
			continue
		}
		var decoded any
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err == nil {
			payload[field] = decoded
		}
	}
}

// ApplyFrame folds an update, timer, or decision frame into the platform
// snapshot and returns the response envelope for the producer.
func (h *Hub) ApplyFrame(frameType string, payload map[string]any) Response {
	switch frameType {
	case "update", "timer", "decision":
	default:
		return Response{Status: 400, Message: "unknown frame type", Reason: frameType}
	}

	fopName := resolveFOPName(payload)
	parseEmbeddedJSON(payload)

	h.mu.Lock()
	h.confirmedFOPs[fopName] = struct{}{}
	fop := h.fops[fopName]
	if fop == nil {
		fop = &fopState{doc: make(map[string]any)}
		h.fops[fopName] = fop
	}

	merged, err := mergeFrame(fop.doc, payload)
	if err != nil {
		h.mu.Unlock()
		h.log().Warn(fmt.Sprintf("fop %s: merge failed: %v", fopName, err), "Fop")
		return Response{Status: 500, Message: "merge failed", Reason: err.Error()}
	}

	if frameType == "update" {
		if _, present := payload["currentAthleteKey"]; !present {
			// Prevent a ghost current athlete from an earlier session.
			delete(merged, "currentAthleteKey")
		}
	}
	if frameType == "timer" && stringField(payload, "breakTimerEventType") == "Pause" {
		// Pause clears the break clock; the event type is kept so readers can
		// tell a paused break from no break at all.
		delete(merged, "breakMillisRemaining")
		delete(merged, "breakStartTimeMillis")
	}
	fop.doc = merged

	previous := fop.snapshot
	snapshot := h.buildSnapshotLocked(fopName, fop, frameType)
	now := h.now()
	snapshot.LastUpdate = now
	if frameType == "update" {
		snapshot.LastDataUpdate = now
		if previous != nil {
			snapshot.Version = previous.Version + 1
		} else {
			snapshot.Version = 1
		}
		h.mergeSessionAthletesLocked(snapshot.SessionAthletes)
	} else if previous != nil {
		snapshot.LastDataUpdate = previous.LastDataUpdate
		snapshot.Version = previous.Version
	}
	fop.snapshot = snapshot

	events := h.sessionTransitionLocked(fopName, frameType, payload, snapshot)
	resp, requested := h.preconditionResponseLocked(frameType)
	h.mu.Unlock()

	frameEvent := Event{FopName: fopName}
	switch frameType {
	case "update":
		frameEvent.Kind = EventUpdate
		frameEvent.UIEvent = snapshot.UIEvent
	case "timer":
		frameEvent.Kind = EventTimer
	case "decision":
		frameEvent.Kind = EventDecision
	}
	h.emitAll(append([]Event{frameEvent}, events...))

	if h.telemetry != nil {
		h.telemetry.RecordFrame(frameType, resp.Status)
	}
	if requested {
		h.log().Info(fmt.Sprintf("requesting missing preconditions: %v", resp.Missing), "Preconditions")
	}
	return resp
}

// mergeFrame applies the payload as an RFC 7386 merge patch over the folded
// document: present fields overwrite, nulls delete, everything else is kept.
func mergeFrame(doc, payload map[string]any) (map[string]any, error) {
	original, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	patch, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	mergedBytes, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any)
	dec := json.NewDecoder(strings.NewReader(string(mergedBytes)))
	dec.UseNumber()
	if err := dec.Decode(&merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// buildSnapshotLocked derives the typed platform snapshot from the folded
// document. Update frames rebuild the denormalized athlete views.
func (h *Hub) buildSnapshotLocked(fopName string, fop *fopState, frameType string) *FopUpdate {
	doc := fop.doc
	snapshot := &FopUpdate{
		FopName:            fopName,
		Fields:             doc,
		UIEvent:            stringField(doc, "uiEvent"),
		CurrentAthleteKey:  NormalizeKey(doc["currentAthleteKey"]),
		NextAthleteKey:     NormalizeKey(doc["nextAthleteKey"]),
		PreviousAthleteKey: NormalizeKey(doc["previousAthleteKey"]),
		FopState:           stringField(doc, "fopState"),
		BreakType:          stringField(doc, "breakType"),
		Mode:               stringField(doc, "mode"),
		GroupName:          stringField(doc, "groupName"),
	}
	if b, ok := doc["break"].(bool); ok {
		snapshot.Break = b
	}

	snapshot.AthleteTimer = AthleteTimerSlice{
		EventType:       stringField(doc, "athleteTimerEventType"),
		MillisRemaining: int64Field(doc, "athleteMillisRemaining"),
		StartTimeMillis: int64Field(doc, "athleteStartTimeMillis"),
		TimeAllowed:     int64Field(doc, "timeAllowed"),
	}
	snapshot.BreakTimer = BreakTimerSlice{
		EventType:       stringField(doc, "breakTimerEventType"),
		MillisRemaining: int64Field(doc, "breakMillisRemaining"),
		StartTimeMillis: int64Field(doc, "breakStartTimeMillis"),
	}
	snapshot.Decision = DecisionSlice{
		EventType: stringField(doc, "decisionEventType"),
		D1:        boolField(doc, "d1"),
		D2:        boolField(doc, "d2"),
		D3:        boolField(doc, "d3"),
	}
	if v, ok := doc["decisionsVisible"].(bool); ok {
		snapshot.Decision.DecisionsVisible = v
	}
	if v, ok := doc["down"].(bool); ok {
		snapshot.Decision.Down = v
	}

	snapshot.StartOrderKeys = decodeOrderKeys(doc["startOrderKeys"])
	snapshot.LiftingOrderKeys = decodeOrderKeys(doc["liftingOrderKeys"])

	previous := fop.snapshot
	if frameType != "update" && previous != nil {
		// Timers and decisions never change the denormalized athlete views.
		snapshot.SessionAthletes = previous.SessionAthletes
		snapshot.StartOrderAthletes = previous.StartOrderAthletes
		snapshot.LiftingOrderAthletes = previous.LiftingOrderAthletes
		return snapshot
	}

	snapshot.SessionAthletes = h.normalizeSessionAthletesLocked(doc, snapshot)
	byKey := make(map[string]*Athlete, len(snapshot.SessionAthletes))
	for i := range snapshot.SessionAthletes {
		byKey[snapshot.SessionAthletes[i].Key] = &snapshot.SessionAthletes[i]
	}
	snapshot.StartOrderAthletes = h.resolveOrderLocked(snapshot.StartOrderKeys, byKey)
	snapshot.LiftingOrderAthletes = h.resolveOrderLocked(snapshot.LiftingOrderKeys, byKey)
	return snapshot
}

func (h *Hub) normalizeSessionAthletesLocked(doc map[string]any, snapshot *FopUpdate) []Athlete {
	raw, ok := doc["sessionAthletes"].([]any)
	if !ok {
		return nil
	}
	athletes := make([]Athlete, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		athlete := normalizeAthlete(entry, h.idx)
		if athlete.Classname == "" {
			switch athlete.Key {
			case snapshot.CurrentAthleteKey:
				athlete.Classname = "current"
			case snapshot.NextAthleteKey:
				athlete.Classname = "next"
			}
		}
		athletes = append(athletes, athlete)
	}
	return athletes
}

// resolveOrderLocked maps order keys to normalized athletes, keeping spacer
// sentinels in place. Keys missing from the session fall back to the
// database index.
func (h *Hub) resolveOrderLocked(keys []OrderKey, session map[string]*Athlete) []OrderEntry {
	if len(keys) == 0 {
		return nil
	}
	entries := make([]OrderEntry, 0, len(keys))
	for _, key := range keys {
		if key.IsSpacer {
			entries = append(entries, OrderEntry{IsSpacer: true})
			continue
		}
		if athlete, ok := session[key.AthleteKey]; ok {
			copied := *athlete
			entries = append(entries, OrderEntry{Athlete: &copied})
			continue
		}
		if i, ok := h.athleteIndex[key.AthleteKey]; ok && h.database != nil {
			copied := h.database.Athletes[i]
			entries = append(entries, OrderEntry{Athlete: &copied})
		}
	}
	return entries
}

// mergeSessionAthletesLocked folds session athletes back into the database so
// it stays current between full refreshes.
func (h *Hub) mergeSessionAthletesLocked(athletes []Athlete) {
	if len(athletes) == 0 {
		return
	}
	if h.database == nil {
		return
	}
	for _, athlete := range athletes {
		if athlete.Key == "" {
			continue
		}
		// Classname marks the current/next athlete of one moment; the
		// long-lived database rows must not carry it.
		athlete.Classname = ""
		if i, ok := h.athleteIndex[athlete.Key]; ok {
			h.database.Athletes[i] = athlete
		} else {
			h.database.Athletes = append(h.database.Athletes, athlete)
			h.athleteIndex[athlete.Key] = len(h.database.Athletes) - 1
		}
	}
}

func decodeOrderKeys(v any) []OrderKey {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var keys []OrderKey
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil
	}
	return keys
}

func int64Field(m map[string]any, key string) *int64 {
	n, ok := numberField(m, key)
	if !ok {
		return nil
	}
	v := int64(n)
	return &v
}

func boolField(m map[string]any, key string) *bool {
	v, ok := m[key].(bool)
	if !ok {
		return nil
	}
	return &v
}
