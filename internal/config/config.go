/*
 * internal/config/config.go
 *
 * Timing and sizing settings used across the competition hub.
 */

package config

import "time"

// Timing knobs used across the hub ingest and event paths.
const (
	// EventDebounceWindow suppresses repeated emissions of the same
	// (platform, event kind) pair. Scoreboard consumers repaint on every
	// event, so bursts from the producer are collapsed to the first one.
	EventDebounceWindow = 100 * time.Millisecond

	// DatabaseRequestDebounce stops a 428 storm: once the database has been
	// requested from the producer, further data frames inside this window are
	// answered with 202 instead of repeating the request.
	DatabaseRequestDebounce = 1000 * time.Millisecond

	// PendingDatabaseWindow is the advertised grace period between an empty
	// database text frame and the binary database_zip that should follow it.
	// It is surfaced in 202 envelopes; no timer enforces it.
	PendingDatabaseWindow = 5 * time.Second

	// ContentWatcherDebounceInterval batches filesystem notifications for the
	// local resource directory before re-announcing loaded resources.
	ContentWatcherDebounceInterval = 500 * time.Millisecond

	// WaitForDatabaseDefaultTimeout bounds WaitForDatabase when the caller
	// passes a non-positive timeout.
	WaitForDatabaseDefaultTimeout = 15 * time.Second
)

// Frame and extraction limits.
const (
	// BinaryHeaderMaxLength is the largest plausible leading length field in a
	// binary frame header. Anything above it is either garbage or a raw ZIP
	// whose magic bytes happen to sit where a length is expected.
	BinaryHeaderMaxLength = 10 * 1024 * 1024

	// BinaryVersionMaxLength is the longest leading length that can still
	// introduce a semver header in the versioned binary layout.
	BinaryVersionMaxLength = 20

	// ZipExtractConcurrency caps parallel file writes during ZIP extraction.
	ZipExtractConcurrency = 4
)

// Websocket transport settings.
const (
	// ProducerReadBufferSize and ProducerWriteBufferSize size the upgrader
	// buffers for the producer socket.
	ProducerReadBufferSize  = 32 * 1024
	ProducerWriteBufferSize = 32 * 1024

	// ProducerHandshakeTimeout prevents slow or stalled upgrades from hanging.
	ProducerHandshakeTimeout = 10 * time.Second

	// ProducerWriteTimeout bounds each response envelope write.
	ProducerWriteTimeout = 10 * time.Second
)
