// Package telemetry collects hub ingest and delivery statistics. The Recorder
// keeps an in-memory summary for diagnostics endpoints and mirrors the
// counters into Prometheus for scraping.
package telemetry

import (
	"sync"
	"time"
)

// FrameStatus captures outcomes for one frame type.
type FrameStatus struct {
	FrameType    string `json:"frameType"`
	Total        uint64 `json:"total"`
	Accepted     uint64 `json:"accepted"`
	Deferred     uint64 `json:"deferred"`
	Preconditons uint64 `json:"preconditionFailures"`
	Errors       uint64 `json:"errors"`
	LastStatus   int    `json:"lastStatus"`
	LastSeen     int64  `json:"lastSeen"`
}

// EventStatus captures delivery counts for one event kind.
type EventStatus struct {
	Kind      string `json:"kind"`
	Delivered uint64 `json:"delivered"`
	Debounced uint64 `json:"debounced"`
	LastEvent int64  `json:"lastEvent"`
}

// DatabaseStatus captures the most recent snapshot ingest.
type DatabaseStatus struct {
	LoadCount    uint64 `json:"loadCount"`
	AthleteCount int    `json:"athleteCount"`
	TeamCount    int    `json:"teamCount"`
	LastLoaded   int64  `json:"lastLoaded"`
}

// ResourceStatus captures archive extraction activity per resource kind.
type ResourceStatus struct {
	Kind         string `json:"kind"`
	Extractions  uint64 `json:"extractions"`
	LastCount    int    `json:"lastCount"`
	LastExtract  int64  `json:"lastExtract"`
	TotalWritten uint64 `json:"totalWritten"`
}

// ConnectionStatus summarises producer connection churn.
type ConnectionStatus struct {
	Connects       uint64 `json:"connects"`
	Disconnects    uint64 `json:"disconnects"`
	Replaced       uint64 `json:"replaced"`
	AuthFailures   uint64 `json:"authFailures"`
	ProtocolErrors uint64 `json:"protocolErrors"`
	Connected      bool   `json:"connected"`
	LastConnect    int64  `json:"lastConnect"`
	LastDisconnect int64  `json:"lastDisconnect"`
}

// Summary aggregates the telemetry story for diagnostics.
type Summary struct {
	Frames       []FrameStatus    `json:"frames"`
	Events       []EventStatus    `json:"events"`
	Database     DatabaseStatus   `json:"database"`
	Resources    []ResourceStatus `json:"resources"`
	Connection   ConnectionStatus `json:"connection"`
	Translations int              `json:"translationLocales"`
}

// Recorder collects ingest telemetry in-memory.
type Recorder struct {
	mu           sync.RWMutex
	frames       map[string]*FrameStatus
	events       map[string]*EventStatus
	resources    map[string]*ResourceStatus
	database     DatabaseStatus
	connection   ConnectionStatus
	translations int
}

// NewRecorder returns an empty telemetry recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		frames:    make(map[string]*FrameStatus),
		events:    make(map[string]*EventStatus),
		resources: make(map[string]*ResourceStatus),
	}
}

// RecordFrame logs the response status for one ingested frame.
func (r *Recorder) RecordFrame(frameType string, status int) {
	if r == nil || frameType == "" {
		return
	}
	r.mu.Lock()
	entry, ok := r.frames[frameType]
	if !ok {
		entry = &FrameStatus{FrameType: frameType}
		r.frames[frameType] = entry
	}
	entry.Total++
	entry.LastStatus = status
	entry.LastSeen = time.Now().UnixMilli()
	switch {
	case status == 428:
		entry.Preconditons++
	case status == 202:
		entry.Deferred++
	case status >= 400:
		entry.Errors++
	default:
		entry.Accepted++
	}
	r.mu.Unlock()

	framesTotal.WithLabelValues(frameType, statusClass(status)).Inc()
}

// RecordEvent logs an event emission; delivered is false for a debounced
// suppression.
func (r *Recorder) RecordEvent(kind string, delivered bool) {
	if r == nil || kind == "" {
		return
	}
	r.mu.Lock()
	entry, ok := r.events[kind]
	if !ok {
		entry = &EventStatus{Kind: kind}
		r.events[kind] = entry
	}
	if delivered {
		entry.Delivered++
		entry.LastEvent = time.Now().UnixMilli()
	} else {
		entry.Debounced++
	}
	r.mu.Unlock()

	eventsTotal.WithLabelValues(kind, outcomeLabel(delivered)).Inc()
}

// RecordDatabase logs a committed database snapshot.
func (r *Recorder) RecordDatabase(athletes, teams int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.database.LoadCount++
	r.database.AthleteCount = athletes
	r.database.TeamCount = teams
	r.database.LastLoaded = time.Now().UnixMilli()
	r.mu.Unlock()

	databaseLoads.Inc()
	databaseAthletes.Set(float64(athletes))
}

// RecordTranslations logs the locale count after a translations merge.
func (r *Recorder) RecordTranslations(locales int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.translations = locales
	r.mu.Unlock()

	translationLocales.Set(float64(locales))
}

// RecordExtraction logs an archive expansion for one resource kind.
func (r *Recorder) RecordExtraction(kind string, count int) {
	if r == nil || kind == "" {
		return
	}
	r.mu.Lock()
	entry, ok := r.resources[kind]
	if !ok {
		entry = &ResourceStatus{Kind: kind}
		r.resources[kind] = entry
	}
	entry.Extractions++
	entry.LastCount = count
	entry.TotalWritten += uint64(count)
	entry.LastExtract = time.Now().UnixMilli()
	r.mu.Unlock()

	extractedFiles.WithLabelValues(kind).Add(float64(count))
}

// RecordConnect logs a producer connection; replaced marks a takeover of an
// existing connection.
func (r *Recorder) RecordConnect(replaced bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.connection.Connects++
	if replaced {
		r.connection.Replaced++
	}
	r.connection.Connected = true
	r.connection.LastConnect = time.Now().UnixMilli()
	r.mu.Unlock()

	producerConnected.Set(1)
	connectsTotal.Inc()
}

// RecordDisconnect logs the producer going away.
func (r *Recorder) RecordDisconnect() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.connection.Disconnects++
	r.connection.Connected = false
	r.connection.LastDisconnect = time.Now().UnixMilli()
	r.mu.Unlock()

	producerConnected.Set(0)
}

// RecordAuthFailure logs a rejected connection or frame key.
func (r *Recorder) RecordAuthFailure() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.connection.AuthFailures++
	r.mu.Unlock()

	authFailures.Inc()
}

// RecordProtocolError logs an undecodable frame.
func (r *Recorder) RecordProtocolError() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.connection.ProtocolErrors++
	r.mu.Unlock()

	protocolErrors.Inc()
}

// SnapshotSummary returns a copy of the current telemetry summary.
func (r *Recorder) SnapshotSummary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Summary{
		Frames:       make([]FrameStatus, 0, len(r.frames)),
		Events:       make([]EventStatus, 0, len(r.events)),
		Resources:    make([]ResourceStatus, 0, len(r.resources)),
		Database:     r.database,
		Connection:   r.connection,
		Translations: r.translations,
	}
	for _, value := range r.frames {
		out.Frames = append(out.Frames, *value)
	}
	for _, value := range r.events {
		out.Events = append(out.Events, *value)
	}
	for _, value := range r.resources {
		out.Resources = append(out.Resources, *value)
	}
	return out
}

func statusClass(status int) string {
	switch {
	case status < 300:
		return "ok"
	case status == 428:
		return "precondition"
	case status < 500:
		return "client_error"
	default:
		return "server_error"
	}
}

func outcomeLabel(delivered bool) string {
	if delivered {
		return "delivered"
	}
	return "debounced"
}
