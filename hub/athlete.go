package hub

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// attemptColumns lists the raw per-attempt columns in descending precedence
// for the requested weight.
var weightColumns = []string{"Change2", "Change1", "Declaration", "AutomaticProgression"}

// flattenAthlete unwraps the {athlete, displayInfo} envelope; displayInfo
// wins on overlap.
func flattenAthlete(raw map[string]any) map[string]any {
	flat := make(map[string]any, len(raw))
	inner, hasInner := raw["athlete"].(map[string]any)
	if hasInner {
		for k, v := range raw {
			if k == "athlete" || k == "displayInfo" {
				continue
			}
			flat[k] = v
		}
		for k, v := range inner {
			flat[k] = v
		}
	} else {
		for k, v := range raw {
			if k == "displayInfo" {
				continue
			}
			flat[k] = v
		}
	}
	if display, ok := raw["displayInfo"].(map[string]any); ok {
		for k, v := range display {
			flat[k] = v
		}
	}
	return flat
}

// normalizeAthlete flattens a raw producer record and fills in the derived
// display fields that the producer did not supply.
func normalizeAthlete(raw map[string]any, idx *databaseIndexes) Athlete {
	flat := flattenAthlete(raw)

	a := Athlete{Extra: flat}
	a.Key = athleteKeyOf(flat)
	a.FirstName = stringField(flat, "firstName")
	a.LastName = stringField(flat, "lastName")
	a.FullName = stringField(flat, "fullName")
	a.CategoryCode = stringField(flat, "categoryCode")
	a.Category = stringField(flat, "category")
	a.FullBirthDate = stringField(flat, "fullBirthDate")
	a.YearOfBirth = stringField(flat, "yearOfBirth")
	a.TeamName = stringField(flat, "teamName")
	a.Classname = stringField(flat, "classname")

	if bw, ok := numberField(flat, "bodyWeight"); ok {
		a.BodyWeight = json.Number(formatNumber(bw))
	}
	if sinclair, ok := numberField(flat, "sinclair"); ok {
		a.Sinclair = json.Number(formatNumber(sinclair))
	}
	if id, ok := intField(flat, "team"); ok {
		a.TeamID = &id
	}

	if a.FullName == "" {
		a.FullName = composeFullName(a.LastName, a.FirstName)
	}
	if a.TeamName == "" && a.TeamID != nil && idx != nil {
		if team, ok := idx.teamsByID[*a.TeamID]; ok {
			a.TeamName = team.Name
		}
	}
	if a.Category == "" && a.CategoryCode != "" {
		a.Category = a.CategoryCode
		if idx != nil {
			if info, ok := idx.categories[a.CategoryCode]; ok && info.CategoryName != "" {
				a.Category = info.CategoryName
			}
		}
	}
	if a.YearOfBirth == "" && len(a.FullBirthDate) >= 4 {
		a.YearOfBirth = a.FullBirthDate[:4]
	}

	a.SAttempts = normalizeAttempts(flat, "snatch", flat["sattempts"])
	a.CAttempts = normalizeAttempts(flat, "cleanJerk", flat["cattempts"])
	a.BestSnatch = bestLift(a.SAttempts)
	a.BestCleanJerk = bestLift(a.CAttempts)
	a.Total = totalString(flat)
	a.Participations = parseParticipations(flat["participations"])

	return a
}

func athleteKeyOf(flat map[string]any) string {
	for _, field := range []string{"key", "athleteKey", "id"} {
		if v, ok := flat[field]; ok {
			if key := NormalizeKey(v); key != "" {
				return key
			}
		}
	}
	return ""
}

func composeFullName(last, first string) string {
	last = strings.TrimSpace(last)
	first = strings.TrimSpace(first)
	switch {
	case last == "":
		return first
	case first == "":
		return strings.ToUpper(last)
	default:
		return strings.ToUpper(last) + ", " + first
	}
}

// normalizeAttempts returns exactly three attempt cells for one lift type,
// preferring a producer-supplied array over the raw attempt columns.
func normalizeAttempts(flat map[string]any, prefix string, provided any) []AttemptStatus {
	out := make([]AttemptStatus, 3)
	if list, ok := provided.([]any); ok {
		for i := 0; i < 3; i++ {
			if i < len(list) {
				out[i] = normalizeAttemptCell(list[i])
			} else {
				out[i] = AttemptStatus{StringValue: "-", LiftStatus: LiftEmpty}
			}
		}
		return out
	}
	for i := 0; i < 3; i++ {
		out[i] = attemptFromColumns(flat, prefix, i+1)
	}
	return out
}

// normalizeAttemptCell applies the attempt-cell rules; a cell that is already
// in {stringValue, liftStatus} form is a fixed point.
func normalizeAttemptCell(v any) AttemptStatus {
	empty := AttemptStatus{StringValue: "-", LiftStatus: LiftEmpty}
	switch cell := v.(type) {
	case nil:
		return empty
	case map[string]any:
		if sv, ok := cell["stringValue"]; ok {
			status := LiftStatus(stringOf(cell["liftStatus"]))
			if !validLiftStatus(status) {
				status = LiftRequest
			}
			value := stringOf(sv)
			if value == "" {
				value = "-"
			}
			if value == "-" && stringOf(cell["liftStatus"]) == string(LiftEmpty) {
				return empty
			}
			return AttemptStatus{StringValue: value, LiftStatus: status}
		}
		value, hasValue := cell["value"]
		if !hasValue || value == nil {
			return empty
		}
		n, ok := toNumber(value)
		if !ok {
			return normalizeAttemptCell(value)
		}
		status := LiftStatus(stringOf(cell["status"]))
		if !validLiftStatus(status) {
			status = LiftRequest
		}
		return AttemptStatus{StringValue: formatNumber(n), LiftStatus: status}
	case string:
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" || trimmed == "-" {
			return empty
		}
		if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
			return AttemptStatus{StringValue: strings.Trim(trimmed, "()"), LiftStatus: LiftBad}
		}
		if n, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64); err == nil {
			return legacyNumberCell(n)
		}
		return AttemptStatus{StringValue: trimmed, LiftStatus: LiftRequest}
	default:
		if n, ok := toNumber(v); ok {
			return legacyNumberCell(n)
		}
		return empty
	}
}

func legacyNumberCell(n float64) AttemptStatus {
	switch {
	case n > 0:
		return AttemptStatus{StringValue: formatNumber(n), LiftStatus: LiftGood}
	case n < 0:
		return AttemptStatus{StringValue: formatNumber(-n), LiftStatus: LiftBad}
	default:
		return AttemptStatus{StringValue: "-", LiftStatus: LiftEmpty}
	}
}

// attemptFromColumns derives one attempt cell from the raw declaration /
// change / actualLift columns. A signed actualLift decides good or bad; an
// outstanding request shows as "request".
func attemptFromColumns(flat map[string]any, prefix string, attempt int) AttemptStatus {
	base := prefix + strconv.Itoa(attempt)
	if actual, ok := numberField(flat, base+"ActualLift"); ok && actual != 0 {
		return legacyNumberCell(actual)
	}
	for _, col := range weightColumns {
		if w, ok := numberField(flat, base+col); ok && w != 0 {
			return AttemptStatus{StringValue: formatNumber(w), LiftStatus: LiftRequest}
		}
	}
	return AttemptStatus{StringValue: "-", LiftStatus: LiftEmpty}
}

// bestLift returns the heaviest good attempt, "-" when none succeeded.
func bestLift(attempts []AttemptStatus) string {
	best := math.Inf(-1)
	found := false
	for _, att := range attempts {
		if att.LiftStatus != LiftGood {
			continue
		}
		if n, err := strconv.ParseFloat(att.StringValue, 64); err == nil && n > best {
			best = n
			found = true
		}
	}
	if !found {
		return "-"
	}
	return formatNumber(best)
}

func totalString(flat map[string]any) string {
	if n, ok := numberField(flat, "total"); ok && n > 0 {
		return formatNumber(n)
	}
	return "-"
}

func parseParticipations(v any) []Participation {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	out := make([]Participation, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		p := Participation{
			CategoryCode: stringField(entry, "categoryCode"),
			CategoryName: stringField(entry, "categoryName"),
		}
		if ranks, ok := entry["ranks"].(map[string]any); ok {
			p.Ranks = ranks
		}
		out = append(out, p)
	}
	return out
}

// --- raw field helpers -----------------------------------------------------

func stringField(m map[string]any, key string) string {
	return stringOf(m[key])
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return toNumber(v)
}

func intField(m map[string]any, key string) (int64, bool) {
	n, ok := numberField(m, key)
	if !ok {
		return 0, false
	}
	return int64(n), true
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", "."), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// formatNumber renders a float the way the producer writes weights: integral
// values without a decimal part.
func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
