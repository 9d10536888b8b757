package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus instruments mirrored by the Recorder. Registered with the
// default registerer at package init.
var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_frames_total",
		Help: "Ingested frames by type and outcome class.",
	}, []string{"type", "outcome"})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_events_total",
		Help: "Bus emissions by kind, split delivered vs debounced.",
	}, []string{"kind", "outcome"})

	databaseLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_database_loads_total",
		Help: "Committed full database snapshots.",
	})

	databaseAthletes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_database_athletes",
		Help: "Athletes in the current database snapshot.",
	})

	translationLocales = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_translation_locales",
		Help: "Locales available after the latest translations merge.",
	})

	extractedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_extracted_files_total",
		Help: "Files written from resource archives, by resource kind.",
	}, []string{"kind"})

	producerConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_producer_connected",
		Help: "1 while a producer websocket is attached.",
	})

	connectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_producer_connects_total",
		Help: "Producer websocket connections accepted.",
	})

	authFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_auth_failures_total",
		Help: "Connections or frames rejected for a bad update key.",
	})

	protocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_protocol_errors_total",
		Help: "Frames dropped because they could not be decoded.",
	})
)

// Handler returns the Prometheus scrape handler; mount it at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
