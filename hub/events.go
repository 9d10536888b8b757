package hub

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chalk-box/app/internal/config"
)

// EventKind identifies one hub event stream.
type EventKind string

// The event kinds published by the hub.
const (
	EventDatabase           EventKind = "DATABASE"
	EventUpdate             EventKind = "UPDATE"
	EventTimer              EventKind = "TIMER"
	EventDecision           EventKind = "DECISION"
	EventFlagsLoaded        EventKind = "FLAGS_LOADED"
	EventLogosLoaded        EventKind = "LOGOS_LOADED"
	EventPicturesLoaded     EventKind = "PICTURES_LOADED"
	EventTranslationsLoaded EventKind = "TRANSLATIONS_LOADED"
	EventDatabaseReady      EventKind = "DATABASE_READY"
	EventHubReady           EventKind = "HUB_READY"
	EventSessionDone        EventKind = "SESSION_DONE"
	EventSessionReopened    EventKind = "SESSION_REOPENED"
	EventWaiting            EventKind = "WAITING"
)

// Event is one notification delivered to subscribers.
type Event struct {
	Kind    EventKind `json:"kind"`
	FopName string    `json:"fopName,omitempty"`
	UIEvent string    `json:"uiEvent,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// SubscriberFunc receives events. Callbacks run synchronously on the ingest
// path; a panicking subscriber is removed without disturbing the others.
type SubscriberFunc func(Event)

type subscriber struct {
	id   uint64
	kind EventKind
	fn   SubscriberFunc
	once bool
}

// eventBus fan-outs hub events with per-(platform, kind) debouncing.
type eventBus struct {
	logger Logger

	mu          sync.Mutex
	subscribers []*subscriber
	nextID      uint64
	lastEmitted map[string]time.Time
	now         func() time.Time
}

func newEventBus(logger Logger) *eventBus {
	if logger == nil {
		logger = noopLogger{}
	}
	return &eventBus{
		logger:      logger,
		lastEmitted: make(map[string]time.Time),
		now:         time.Now,
	}
}

func (b *eventBus) subscribe(kind EventKind, fn SubscriberFunc, once bool) uint64 {
	if fn == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := atomic.AddUint64(&b.nextID, 1)
	b.subscribers = append(b.subscribers, &subscriber{id: id, kind: kind, fn: fn, once: once})
	return id
}

func (b *eventBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

func (b *eventBus) removeLocked(id uint64) {
	for i, sub := range b.subscribers {
		if sub.id == id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// debounceKey tracks UPDATE emissions by their uiEvent so distinct UI events
// on the same platform never suppress each other.
func debounceKey(ev Event) string {
	kind := string(ev.Kind)
	if ev.Kind == EventUpdate && ev.UIEvent != "" {
		kind = ev.UIEvent
	}
	return ev.FopName + "|" + kind
}

// emit delivers the event to matching subscribers in registration order.
// Returns false when the emission was suppressed by the debounce window.
func (b *eventBus) emit(ev Event) bool {
	b.mu.Lock()
	key := debounceKey(ev)
	now := b.now()
	if last, ok := b.lastEmitted[key]; ok && now.Sub(last) < config.EventDebounceWindow {
		b.mu.Unlock()
		return false
	}
	b.lastEmitted[key] = now

	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.kind == ev.Kind {
			targets = append(targets, sub)
		}
	}
	for _, sub := range targets {
		if sub.once {
			b.removeLocked(sub.id)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		b.deliver(sub, ev)
	}
	return true
}

func (b *eventBus) deliver(sub *subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn(fmt.Sprintf("event bus: subscriber panicked on %s, removing: %v", ev.Kind, r), "EventBus")
			b.mu.Lock()
			b.removeLocked(sub.id)
			b.mu.Unlock()
		}
	}()
	sub.fn(ev)
}

// reset clears the debounce history, typically on a full hub reset.
func (b *eventBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastEmitted = make(map[string]time.Time)
}

// Subscribe registers a recurring subscriber for one event kind and returns
// its subscription id.
func (h *Hub) Subscribe(kind EventKind, fn SubscriberFunc) uint64 {
	return h.bus.subscribe(kind, fn, false)
}

// SubscribeOnce registers a subscriber that receives the next occurrence of
// the kind and is then removed.
func (h *Hub) SubscribeOnce(kind EventKind, fn SubscriberFunc) uint64 {
	return h.bus.subscribe(kind, fn, true)
}

// Unsubscribe removes a subscription by id.
func (h *Hub) Unsubscribe(id uint64) {
	h.bus.unsubscribe(id)
}
