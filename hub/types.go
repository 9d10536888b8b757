package hub

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LiftStatus classifies a single attempt cell on a scoreboard.
type LiftStatus string

// The closed set of attempt statuses carried on the wire.
const (
	LiftGood    LiftStatus = "good"
	LiftBad     LiftStatus = "bad"
	LiftCurrent LiftStatus = "current"
	LiftNext    LiftStatus = "next"
	LiftRequest LiftStatus = "request"
	LiftEmpty   LiftStatus = "empty"
)

func validLiftStatus(s LiftStatus) bool {
	switch s {
	case LiftGood, LiftBad, LiftCurrent, LiftNext, LiftRequest, LiftEmpty:
		return true
	}
	return false
}

// AttemptStatus is the normalized shape of one attempt cell.
type AttemptStatus struct {
	StringValue string     `json:"stringValue"`
	LiftStatus  LiftStatus `json:"liftStatus"`
}

// Team identifies one club or national team.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Category is a bodyweight class nested inside an age group.
type Category struct {
	Gender        string  `json:"gender"`
	MaximumWeight float64 `json:"maximumWeight"`
	CategoryName  string  `json:"categoryName"`
	Code          string  `json:"code,omitempty"`
}

// AgeGroup holds the categories contested by one age bracket.
type AgeGroup struct {
	Code       string     `json:"code"`
	Name       string     `json:"name,omitempty"`
	Categories []Category `json:"categories"`
}

// Record is one federation record row. A non-empty GroupNameString marks a
// record set during the current competition.
type Record struct {
	LiftType        string      `json:"liftType"`
	BodyWeightRange string      `json:"bodyWeightRange,omitempty"`
	RecordValue     json.Number `json:"recordValue,omitempty"`
	RecordName      string      `json:"recordName,omitempty"`
	Federation      string      `json:"federation,omitempty"`
	GroupNameString string      `json:"groupNameString,omitempty"`
}

// Participation is one category membership with its per-category ranks.
type Participation struct {
	CategoryCode string         `json:"categoryCode,omitempty"`
	CategoryName string         `json:"categoryName,omitempty"`
	Ranks        map[string]any `json:"ranks,omitempty"`
}

// Athlete is a denormalized athlete row. Derived fields are filled in by the
// normalizer; Extra retains every raw producer field so display consumers
// lose nothing in the round trip.
type Athlete struct {
	Key            string          `json:"athleteKey"`
	FirstName      string          `json:"firstName,omitempty"`
	LastName       string          `json:"lastName,omitempty"`
	FullName       string          `json:"fullName,omitempty"`
	TeamID         *int64          `json:"team,omitempty"`
	TeamName       string          `json:"teamName,omitempty"`
	CategoryCode   string          `json:"categoryCode,omitempty"`
	Category       string          `json:"category,omitempty"`
	FullBirthDate  string          `json:"fullBirthDate,omitempty"`
	YearOfBirth    string          `json:"yearOfBirth,omitempty"`
	BodyWeight     json.Number     `json:"bodyWeight,omitempty"`
	SAttempts      []AttemptStatus `json:"sattempts"`
	CAttempts      []AttemptStatus `json:"cattempts"`
	BestSnatch     string          `json:"bestSnatch,omitempty"`
	BestCleanJerk  string          `json:"bestCleanJerk,omitempty"`
	Total          string          `json:"total,omitempty"`
	Sinclair       json.Number     `json:"sinclair,omitempty"`
	Participations []Participation `json:"participations,omitempty"`
	Classname      string          `json:"classname,omitempty"`

	// Extra holds the raw producer fields (attempt columns included) that the
	// typed fields above do not cover.
	Extra map[string]any `json:"-"`
}

// MarshalJSON emits the raw producer fields overlaid with the derived ones.
func (a Athlete) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(a.Extra)+16)
	for k, v := range a.Extra {
		merged[k] = v
	}
	type alias Athlete
	typed, err := json.Marshal(alias(a))
	if err != nil {
		return nil, err
	}
	var overlay map[string]any
	if err := json.Unmarshal(typed, &overlay); err != nil {
		return nil, err
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// OrderKey is one entry of a start or lifting order: either an athlete key or
// a spacer sentinel. The wire form may be a bare string, a number, or an
// object.
type OrderKey struct {
	AthleteKey string `json:"athleteKey,omitempty"`
	IsSpacer   bool   `json:"isSpacer,omitempty"`
}

// UnmarshalJSON accepts "key", 123, {"athleteKey":...}, {"key":...} and
// {"isSpacer":true}.
func (k *OrderKey) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*k = OrderKey{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = OrderKey{AthleteKey: s}
		return nil
	case '{':
		var obj struct {
			AthleteKey *json.RawMessage `json:"athleteKey"`
			Key        *json.RawMessage `json:"key"`
			IsSpacer   bool             `json:"isSpacer"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		raw := obj.AthleteKey
		if raw == nil {
			raw = obj.Key
		}
		key := ""
		if raw != nil {
			key = NormalizeKey(decodeScalar(*raw))
		}
		*k = OrderKey{AthleteKey: key, IsSpacer: obj.IsSpacer}
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*k = OrderKey{AthleteKey: n.String()}
		return nil
	}
}

func decodeScalar(raw json.RawMessage) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	return v
}

// NormalizeKey converts an opaque athlete key (string or number, possibly
// negative) to its canonical string form.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// OrderEntry is a resolved row of a start or lifting order: either a
// normalized athlete or a spacer marker.
type OrderEntry struct {
	IsSpacer bool     `json:"isSpacer,omitempty"`
	Label    string   `json:"label,omitempty"`
	Athlete  *Athlete `json:"athlete,omitempty"`
}

// AthleteTimerSlice is the athlete clock portion of a platform snapshot.
type AthleteTimerSlice struct {
	EventType       string `json:"athleteTimerEventType,omitempty"`
	MillisRemaining *int64 `json:"athleteMillisRemaining,omitempty"`
	StartTimeMillis *int64 `json:"athleteStartTimeMillis,omitempty"`
	TimeAllowed     *int64 `json:"timeAllowed,omitempty"`
}

// BreakTimerSlice is the break clock portion of a platform snapshot.
type BreakTimerSlice struct {
	EventType       string `json:"breakTimerEventType,omitempty"`
	MillisRemaining *int64 `json:"breakMillisRemaining,omitempty"`
	StartTimeMillis *int64 `json:"breakStartTimeMillis,omitempty"`
}

// DecisionSlice is the referee decision portion of a platform snapshot.
// Referee decisions are tristate: nil is undecided.
type DecisionSlice struct {
	EventType        string `json:"decisionEventType,omitempty"`
	DecisionsVisible bool   `json:"decisionsVisible,omitempty"`
	D1               *bool  `json:"d1,omitempty"`
	D2               *bool  `json:"d2,omitempty"`
	D3               *bool  `json:"d3,omitempty"`
	Down             bool   `json:"down,omitempty"`
}

// FopUpdate is the denormalized snapshot of one platform ("field of play").
type FopUpdate struct {
	FopName string `json:"fopName"`

	// Fields carries the raw folded envelope fields for display passthrough.
	Fields map[string]any `json:"fields,omitempty"`

	UIEvent string `json:"uiEvent,omitempty"`

	CurrentAthleteKey  string `json:"currentAthleteKey,omitempty"`
	NextAthleteKey     string `json:"nextAthleteKey,omitempty"`
	PreviousAthleteKey string `json:"previousAthleteKey,omitempty"`

	SessionAthletes  []Athlete  `json:"sessionAthletes,omitempty"`
	StartOrderKeys   []OrderKey `json:"startOrderKeys,omitempty"`
	LiftingOrderKeys []OrderKey `json:"liftingOrderKeys,omitempty"`

	StartOrderAthletes   []OrderEntry `json:"startOrderAthletes,omitempty"`
	LiftingOrderAthletes []OrderEntry `json:"liftingOrderAthletes,omitempty"`

	AthleteTimer AthleteTimerSlice `json:"athleteTimer"`
	BreakTimer   BreakTimerSlice   `json:"breakTimer"`
	Decision     DecisionSlice     `json:"decision"`

	FopState  string `json:"fopState,omitempty"`
	Break     bool   `json:"break,omitempty"`
	BreakType string `json:"breakType,omitempty"`
	Mode      string `json:"mode,omitempty"`

	GroupName string `json:"groupName,omitempty"`

	LastUpdate     time.Time `json:"lastUpdate"`
	LastDataUpdate time.Time `json:"lastDataUpdate"`
	Version        uint64    `json:"version"`
}

// SessionStatus tracks the done/active state of the session on one platform.
type SessionStatus struct {
	IsDone       bool      `json:"isDone"`
	SessionName  string    `json:"sessionName"`
	LastActivity time.Time `json:"lastActivity"`
}

// Competition carries the identification block of the database snapshot.
type Competition struct {
	Name   string         `json:"competitionName,omitempty"`
	Date   string         `json:"competitionDate,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// DatabaseState is the full competition snapshot, replaced atomically on each
// successful full-snapshot ingest.
type DatabaseState struct {
	Competition      Competition `json:"competition"`
	Athletes         []Athlete   `json:"athletes"`
	Teams            []Team      `json:"teams"`
	AgeGroups        []AgeGroup  `json:"ageGroups"`
	Records          []Record    `json:"records,omitempty"`
	FOPs             []string    `json:"fops"`
	DatabaseChecksum string      `json:"databaseChecksum,omitempty"`
	LastUpdate       time.Time   `json:"lastUpdate"`
	Initialized      bool        `json:"initialized"`
}
