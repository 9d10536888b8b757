package hub

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/chalk-box/app/internal/config"
)

// computeChecksum derives a deduplication token from the payload when the
// producer did not supply one.
func computeChecksum(doc map[string]any) string {
	payload, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// categoryComputedCode builds the lookup key <ageGroupCode>_<gender><W> with
// the "999" sentinel for super-heavyweight classes.
func categoryComputedCode(ageGroupCode, gender string, maximumWeight float64) string {
	w := "999"
	if maximumWeight <= 130 {
		w = strconv.Itoa(int(math.Round(maximumWeight)))
	}
	return ageGroupCode + "_" + gender + w
}

// IngestDatabase processes a full-database text frame. An empty payload is
// answered with 202 while the binary database_zip is awaited.
func (h *Hub) IngestDatabase(payload map[string]any) Response {
	doc := databaseDoc(payload)
	if emptyDatabaseDoc(doc) {
		h.mu.Lock()
		h.pendingDatabaseZip = true
		h.mu.Unlock()
		return Response{
			Status:  202,
			Message: "waiting for database_zip",
			Reason:  "waiting_for_zip",
			Pending: true,
			Timeout: config.PendingDatabaseWindow.Milliseconds(),
		}
	}
	return h.ingestDatabaseDoc(doc)
}

func databaseDoc(payload map[string]any) map[string]any {
	if inner, ok := payload["database"].(map[string]any); ok {
		return inner
	}
	return payload
}

func emptyDatabaseDoc(doc map[string]any) bool {
	if doc == nil {
		return true
	}
	athletes, _ := doc["athletes"].([]any)
	teams, _ := doc["teams"].([]any)
	_, hasCompetition := doc["competition"]
	return len(athletes) == 0 && len(teams) == 0 && !hasCompetition
}

// ingestDatabaseDoc assembles and atomically commits a database snapshot.
func (h *Hub) ingestDatabaseDoc(doc map[string]any) Response {
	checksum := stringField(doc, "databaseChecksum")
	if checksum == "" {
		checksum = computeChecksum(doc)
	}

	h.mu.Lock()
	if h.database != nil && h.database.DatabaseChecksum == checksum {
		h.mu.Unlock()
		return Response{Status: 200, Message: "database unchanged", Reason: "duplicate_checksum", Cached: true}
	}
	if h.databaseLoading {
		h.mu.Unlock()
		return Response{Status: 202, Message: "database load in progress", Reason: "already_loading", Retry: true}
	}
	h.databaseLoading = true
	h.mu.Unlock()

	state, idx, err := assembleDatabase(doc)
	if err != nil {
		h.mu.Lock()
		h.databaseLoading = false
		h.mu.Unlock()
		h.log().Error(fmt.Sprintf("database assembly failed: %v", err), "Database")
		return Response{Status: 500, Message: "database assembly failed", Reason: err.Error()}
	}
	state.DatabaseChecksum = checksum

	h.mu.Lock()
	state.LastUpdate = h.now()
	state.Initialized = true
	h.database = state
	h.idx = idx
	h.athleteIndex = make(map[string]int, len(state.Athletes))
	for i, a := range state.Athletes {
		h.athleteIndex[a.Key] = i
	}
	// A database change invalidates every per-platform view and counts as
	// a data refresh for freshness tracking.
	for _, fop := range h.fops {
		if fop.snapshot != nil {
			next := *fop.snapshot
			next.Version++
			next.LastDataUpdate = state.LastUpdate
			fop.snapshot = &next
		}
	}
	h.databaseLoading = false
	h.pendingDatabaseZip = false
	h.categoryMemoChecksum = ""
	h.categoryMemo = nil
	events := []Event{{Kind: EventDatabase}, {Kind: EventDatabaseReady}}
	events = append(events, h.readyEventsLocked()...)
	h.mu.Unlock()

	h.emitAll(events)
	if h.telemetry != nil {
		h.telemetry.RecordDatabase(len(state.Athletes), len(state.Teams))
	}
	return Response{Status: 200, Message: "database processed"}
}

// assembleDatabase parses the raw snapshot into a normalized structure plus
// its lookup indexes.
func assembleDatabase(doc map[string]any) (*DatabaseState, *databaseIndexes, error) {
	state := &DatabaseState{}
	idx := &databaseIndexes{
		teamsByID:  make(map[int64]Team),
		categories: make(map[string]categoryInfo),
	}

	if comp, ok := doc["competition"].(map[string]any); ok {
		state.Competition = Competition{
			Name:   stringField(comp, "competitionName"),
			Date:   stringField(comp, "competitionDate"),
			Fields: comp,
		}
	}

	if teams, ok := doc["teams"].([]any); ok {
		state.Teams = make([]Team, 0, len(teams))
		for _, raw := range teams {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			id, ok := intField(entry, "id")
			if !ok {
				continue
			}
			team := Team{ID: id, Name: stringField(entry, "name")}
			state.Teams = append(state.Teams, team)
			idx.teamsByID[id] = team
		}
	}

	if groups, ok := doc["ageGroups"].([]any); ok {
		state.AgeGroups = make([]AgeGroup, 0, len(groups))
		for _, raw := range groups {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			group := AgeGroup{
				Code: stringField(entry, "code"),
				Name: stringField(entry, "name"),
			}
			if cats, ok := entry["categories"].([]any); ok {
				group.Categories = make([]Category, 0, len(cats))
				for _, rawCat := range cats {
					catEntry, ok := rawCat.(map[string]any)
					if !ok {
						continue
					}
					maxWeight, _ := numberField(catEntry, "maximumWeight")
					cat := Category{
						Gender:        stringField(catEntry, "gender"),
						MaximumWeight: maxWeight,
						CategoryName:  stringField(catEntry, "categoryName"),
					}
					cat.Code = categoryComputedCode(group.Code, cat.Gender, cat.MaximumWeight)
					group.Categories = append(group.Categories, cat)
					idx.categories[cat.Code] = categoryInfo{Category: cat, AgeGroupCode: group.Code}
				}
			}
			state.AgeGroups = append(state.AgeGroups, group)
		}
	}

	if athletes, ok := doc["athletes"].([]any); ok {
		state.Athletes = make([]Athlete, 0, len(athletes))
		seen := make(map[string]struct{}, len(athletes))
		for _, raw := range athletes {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			athlete := normalizeAthlete(entry, idx)
			if athlete.Key == "" {
				continue
			}
			if _, dup := seen[athlete.Key]; dup {
				return nil, nil, fmt.Errorf("duplicate athlete key %q", athlete.Key)
			}
			seen[athlete.Key] = struct{}{}
			state.Athletes = append(state.Athletes, athlete)
		}
	}

	if records, ok := doc["records"].([]any); ok {
		state.Records = make([]Record, 0, len(records))
		for _, raw := range records {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			rec := Record{
				LiftType:        stringField(entry, "liftType"),
				BodyWeightRange: stringField(entry, "bodyWeightRange"),
				RecordName:      stringField(entry, "recordName"),
				Federation:      stringField(entry, "federation"),
				GroupNameString: stringField(entry, "groupNameString"),
			}
			if v, ok := numberField(entry, "recordValue"); ok {
				rec.RecordValue = json.Number(formatNumber(v))
			}
			state.Records = append(state.Records, rec)
		}
	}

	state.FOPs = extractFOPs(doc, state.Competition.Fields)
	return state, idx, nil
}

// extractFOPs reads the platform list from the competition block, from a
// top-level platforms array, or infers the singleton "A".
func extractFOPs(doc map[string]any, competition map[string]any) []string {
	for _, source := range []any{
		fieldOf(competition, "fops"),
		fieldOf(competition, "platforms"),
		doc["platforms"],
	} {
		if names := fopNames(source); len(names) > 0 {
			return names
		}
	}
	return []string{"A"}
}

func fieldOf(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

func fopNames(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case string:
			if t != "" {
				names = append(names, t)
			}
		case map[string]any:
			if name := stringField(t, "name"); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
