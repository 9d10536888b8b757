package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chalk-box/app/internal/config"
	"github.com/chalk-box/app/hub/telemetry"
)

// Response is the envelope returned for every ingested frame. The transport
// writes it back to the producer verbatim.
type Response struct {
	Status  int            `json:"status"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Missing []string       `json:"missing,omitempty"`
	Cached  bool           `json:"cached,omitempty"`
	Retry   bool           `json:"retry,omitempty"`
	Pending bool           `json:"pending,omitempty"`
	Timeout int64          `json:"timeout,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type categoryInfo struct {
	Category
	AgeGroupCode string
}

type databaseIndexes struct {
	teamsByID  map[int64]Team
	categories map[string]categoryInfo
}

type fopState struct {
	doc      map[string]any
	snapshot *FopUpdate
}

// Options configures a Hub.
type Options struct {
	// LocalFilesDir is the resource directory root; defaults to <cwd>/local.
	LocalFilesDir string
	// LocalURLPrefix is the URL path consumers prepend to resource names;
	// defaults to "/local".
	LocalURLPrefix string
	// UpdateKey, when set, must be carried by every inbound text payload.
	UpdateKey string
	Logger    Logger
	Telemetry *telemetry.Recorder
}

// Hub is the single-writer state store for one competition. All mutation
// happens on the frame dispatch path under the write lock; queries take the
// read lock and return copies or immutable snapshots.
type Hub struct {
	mu        sync.RWMutex
	logger    Logger
	telemetry *telemetry.Recorder
	bus       *eventBus

	database            *DatabaseState
	idx                 *databaseIndexes
	athleteIndex        map[string]int
	databaseLoading     bool
	pendingDatabaseZip  bool
	lastDatabaseRequest time.Time

	fops          map[string]*fopState
	sessions      map[string]*SessionStatus
	confirmedFOPs map[string]struct{}

	translations *translationStore

	flagsReady        bool
	logosReady        bool
	picturesReady     bool
	translationsReady bool
	hubReadyEmitted   bool

	firstConnectionDone bool

	localFilesDir  string
	localURLPrefix string
	updateKey      string

	requestSend func(Response) error
	watcher     *contentWatcher

	categoryMemoChecksum string
	categoryMemo         map[string]AgeGroup
	memoGroup            singleflight.Group

	now func() time.Time
}

// New creates an empty hub.
func New(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = stdLogger{}
	}
	dir := opts.LocalFilesDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		dir = filepath.Join(cwd, "local")
	}
	prefix := opts.LocalURLPrefix
	if prefix == "" {
		prefix = "/local"
	}
	h := &Hub{
		logger:         logger,
		telemetry:      opts.Telemetry,
		fops:           make(map[string]*fopState),
		sessions:       make(map[string]*SessionStatus),
		confirmedFOPs:  make(map[string]struct{}),
		translations:   newTranslationStore(),
		localFilesDir:  dir,
		localURLPrefix: prefix,
		updateKey:      opts.UpdateKey,
		now:            time.Now,
	}
	h.bus = newEventBus(logger)
	return h
}

// SetLogger installs a logging facade; passing nil restores the default.
func (h *Hub) SetLogger(logger Logger) {
	if logger == nil {
		logger = stdLogger{}
	}
	h.mu.Lock()
	h.logger = logger
	h.bus.logger = logger
	h.mu.Unlock()
}

func (h *Hub) log() Logger {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.logger
}

// UpdateKey returns the configured producer authentication key, empty when
// authentication is disabled.
func (h *Hub) UpdateKey() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.updateKey
}

// SetRequestResourcesSender installs the transport callback used to field
// resource requests toward the active producer. The transport registers it on
// connect and clears it with nil on disconnect; the hub never holds a
// connection object.
func (h *Hub) SetRequestResourcesSender(send func(Response) error) {
	h.mu.Lock()
	h.requestSend = send
	h.mu.Unlock()
}

// RequestResources asks the producer to send the listed frame types on behalf
// of a plugin or subscriber. Without an active connection this is a logged
// no-op.
func (h *Hub) RequestResources(types []string) {
	h.mu.RLock()
	send := h.requestSend
	h.mu.RUnlock()
	if send == nil {
		h.log().Info(fmt.Sprintf("no active producer connection, cannot request %v", types), "Hub")
		return
	}
	resp := Response{
		Status:  428,
		Message: "Precondition Required: Missing required data",
		Reason:  "plugin_preconditions",
		Missing: append([]string(nil), types...),
	}
	if err := send(resp); err != nil {
		h.log().Warn(fmt.Sprintf("resource request failed: %v", err), "Hub")
	}
}

// RequestPluginPreconditions is an alias kept for embedders using the
// upstream naming.
func (h *Hub) RequestPluginPreconditions(types []string) { h.RequestResources(types) }

// FirstConnectionReset wipes all state exactly once, on the first producer
// connection of this hub's lifetime. Later reconnects keep state and rely on
// precondition negotiation to re-fetch what is missing.
func (h *Hub) FirstConnectionReset() {
	h.mu.Lock()
	if h.firstConnectionDone {
		h.mu.Unlock()
		return
	}
	h.firstConnectionDone = true
	h.resetLocked()
	h.mu.Unlock()
	h.log().Info("first producer connection, state reset", "Hub")
}

// EnterWaitingState clears database and translation readiness after the
// producer disconnects and notifies subscribers. In-flight waiters observe
// the cleared state and fail fast.
func (h *Hub) EnterWaitingState() {
	h.mu.Lock()
	h.resetLocked()
	h.mu.Unlock()
	h.bus.emit(Event{Kind: EventWaiting})
	h.log().Info("producer disconnected, waiting for data", "Hub")
}

func (h *Hub) resetLocked() {
	h.database = nil
	h.idx = nil
	h.athleteIndex = nil
	h.databaseLoading = false
	h.pendingDatabaseZip = false
	h.lastDatabaseRequest = time.Time{}
	h.translations = newTranslationStore()
	h.translationsReady = false
	h.flagsReady = false
	h.logosReady = false
	h.picturesReady = false
	h.hubReadyEmitted = false
	h.categoryMemoChecksum = ""
	h.categoryMemo = nil
	h.bus.reset()
}

// isReadyLocked reports data completeness: a non-empty athlete set and at
// least one ingested locale.
func (h *Hub) isReadyLocked() bool {
	return h.database != nil && len(h.database.Athletes) > 0 && !h.translations.empty()
}

// readyEventsLocked returns the HUB_READY event when readiness was just
// reached for the first time since the last reset.
func (h *Hub) readyEventsLocked() []Event {
	if h.hubReadyEmitted || !h.isReadyLocked() {
		return nil
	}
	h.hubReadyEmitted = true
	return []Event{{Kind: EventHubReady}}
}

func (h *Hub) emitAll(events []Event) {
	for _, ev := range events {
		delivered := h.bus.emit(ev)
		if h.telemetry != nil {
			h.telemetry.RecordEvent(string(ev.Kind), delivered)
		}
	}
}

// WaitForDatabase blocks until DATABASE_READY fires or the timeout elapses.
// A producer disconnect aborts the wait immediately.
func (h *Hub) WaitForDatabase(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = config.WaitForDatabaseDefaultTimeout
	}

	done := make(chan struct{})
	aborted := make(chan struct{})
	var doneOnce, abortOnce sync.Once
	id := h.Subscribe(EventDatabaseReady, func(Event) {
		doneOnce.Do(func() { close(done) })
	})
	defer h.Unsubscribe(id)
	waitingID := h.Subscribe(EventWaiting, func(Event) {
		abortOnce.Do(func() { close(aborted) })
	})
	defer h.Unsubscribe(waitingID)

	h.mu.RLock()
	initialized := h.database != nil && h.database.Initialized
	h.mu.RUnlock()
	if initialized {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-aborted:
		return fmt.Errorf("database not ready, producer disconnected")
	case <-time.After(timeout):
		return fmt.Errorf("database not ready after %dms", timeout.Milliseconds())
	}
}

// defaultHub is a process-wide convenience instance for embedders that want
// the upstream singleton ergonomics.
var (
	defaultHub   *Hub
	defaultHubMu sync.Mutex
)

// Default returns the shared hub instance, creating it on first use.
func Default() *Hub {
	defaultHubMu.Lock()
	defer defaultHubMu.Unlock()
	if defaultHub == nil {
		defaultHub = New(Options{})
	}
	return defaultHub
}

// SetDefault replaces the shared hub instance.
func SetDefault(h *Hub) {
	defaultHubMu.Lock()
	defaultHub = h
	defaultHubMu.Unlock()
}
