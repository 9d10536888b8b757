package hub

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/chalk-box/app/internal/config"
)

// Fixed resource subdirectories under the local files dir.
const (
	SubdirFlags    = "flags"
	SubdirLogos    = "logos"
	SubdirPictures = "pictures"
	SubdirStyles   = "styles"
)

var resourceSubdirs = []string{SubdirFlags, SubdirLogos, SubdirPictures, SubdirStyles}

// EnsureLayout creates the fixed resource subdirectories.
func (h *Hub) EnsureLayout() error {
	h.mu.RLock()
	dir := h.localFilesDir
	h.mu.RUnlock()
	for _, sub := range resourceSubdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// IngestBinary processes a decoded binary frame. Extraction touches the disk
// and is expected to be called off the frame dispatch goroutine; readiness
// flags flip and *_LOADED events fire only after writes are durable.
func (h *Hub) IngestBinary(frameType string, payload []byte) Response {
	switch frameType {
	case "database_zip", "database":
		return h.ingestDatabaseZip(payload)
	case "translations_zip":
		return h.ingestTranslationsZip(payload)
	case "flags_zip", "flags":
		return h.ingestResourceZip(frameType, payload, SubdirFlags)
	case "logos_zip":
		return h.ingestResourceZip(frameType, payload, SubdirLogos)
	case "pictures_zip", "pictures":
		return h.ingestResourceZip(frameType, payload, SubdirPictures)
	default:
		h.log().Warn(fmt.Sprintf("ignoring unknown binary frame type %q", frameType), "Resources")
		return Response{Status: 200, Message: "ignored", Reason: "unknown_binary_type"}
	}
}

func (h *Hub) ingestDatabaseZip(payload []byte) Response {
	data, err := readZipEntry(payload, "competition.json")
	if err != nil {
		h.log().Error(fmt.Sprintf("database_zip: %v", err), "Resources")
		return Response{Status: 500, Message: "database_zip unreadable", Reason: err.Error()}
	}
	doc := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		h.log().Error(fmt.Sprintf("database_zip: invalid competition.json: %v", err), "Resources")
		return Response{Status: 500, Message: "invalid competition.json", Reason: err.Error()}
	}
	return h.ingestDatabaseDoc(databaseDoc(doc))
}

// translationsPayload matches both accepted shapes of translations.json.
type translationsPayload struct {
	Locales              map[string]map[string]string `json:"locales"`
	TranslationsChecksum string                       `json:"translationsChecksum"`
}

func (h *Hub) ingestTranslationsZip(payload []byte) Response {
	data, err := readZipEntry(payload, "translations.json")
	if err != nil {
		h.log().Error(fmt.Sprintf("translations_zip: %v", err), "Resources")
		return Response{Status: 500, Message: "translations_zip unreadable", Reason: err.Error()}
	}

	var wrapper translationsPayload
	if err := json.Unmarshal(data, &wrapper); err != nil || len(wrapper.Locales) == 0 {
		var direct map[string]map[string]string
		if err := json.Unmarshal(data, &direct); err != nil {
			h.log().Error(fmt.Sprintf("translations_zip: invalid translations.json: %v", err), "Resources")
			return Response{Status: 500, Message: "invalid translations.json", Reason: err.Error()}
		}
		wrapper = translationsPayload{Locales: direct}
	}

	h.mu.Lock()
	if wrapper.TranslationsChecksum != "" && wrapper.TranslationsChecksum == h.translations.checksum {
		h.mu.Unlock()
		return Response{Status: 200, Message: "translations unchanged", Reason: "duplicate_checksum", Cached: true}
	}
	events := h.mergeTranslationsLocked(wrapper.Locales, wrapper.TranslationsChecksum)
	locales := len(h.translations.merged)
	h.mu.Unlock()

	h.emitAll(events)
	if h.telemetry != nil {
		h.telemetry.RecordTranslations(locales)
	}
	return Response{Status: 200, Message: "translations_zip processed"}
}

func (h *Hub) ingestResourceZip(frameType string, payload []byte, subdir string) Response {
	h.mu.RLock()
	dir := h.localFilesDir
	h.mu.RUnlock()

	count, err := extractZip(payload, filepath.Join(dir, subdir))
	if err != nil {
		h.log().Error(fmt.Sprintf("%s: extraction failed: %v", frameType, err), "Resources")
		return Response{Status: 500, Message: frameType + " extraction failed", Reason: err.Error()}
	}

	h.mu.Lock()
	var event Event
	switch subdir {
	case SubdirFlags:
		h.flagsReady = true
		event = Event{Kind: EventFlagsLoaded}
	case SubdirLogos:
		h.logosReady = true
		event = Event{Kind: EventLogosLoaded}
	case SubdirPictures:
		h.picturesReady = true
		event = Event{Kind: EventPicturesLoaded}
	}
	h.mu.Unlock()

	h.bus.emit(event)
	if h.telemetry != nil {
		h.telemetry.RecordExtraction(subdir, count)
	}
	h.log().Info(fmt.Sprintf("%s: extracted %d files into %s", frameType, count, subdir), "Resources")
	return Response{Status: 200, Message: frameType + " processed"}
}

// extractZip expands an archive into dir, skipping directories and unsafe
// entry names. Files land via write-then-rename so readers never observe a
// partial file.
func extractZip(payload []byte, dir string) (int, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	var group errgroup.Group
	group.SetLimit(config.ZipExtractConcurrency)
	count := 0
	for _, entry := range reader.File {
		entry := entry
		if entry.FileInfo().IsDir() {
			continue
		}
		name := entry.Name
		if !safeEntryName(name) {
			continue
		}
		count++
		group.Go(func() error {
			return writeZipEntry(entry, filepath.Join(dir, filepath.FromSlash(name)))
		})
	}
	if err := group.Wait(); err != nil {
		return count, err
	}
	return count, nil
}

// safeEntryName rejects traversal components; the producer is trusted but
// archives are defended anyway.
func safeEntryName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return !filepath.IsAbs(name)
}

func writeZipEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), ".extract-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, target)
}

// readZipEntry returns the contents of the named entry, or the single file in
// a one-entry archive.
func readZipEntry(payload []byte, name string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, err
	}
	var fallback *zip.File
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if filepath.Base(entry.Name) == name {
			return readAll(entry)
		}
		if fallback == nil {
			fallback = entry
		}
	}
	if fallback != nil {
		return readAll(fallback)
	}
	return nil, errors.New(name + " not found in archive")
}

func readAll(entry *zip.File) ([]byte, error) {
	src, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

// contentWatcher re-announces resources when files under the local directory
// change outside the ZIP path (hand-edited styles, rsynced flags).
type contentWatcher struct {
	hub     *Hub
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// StartContentWatcher begins watching the resource subdirectories. It is
// idempotent per hub; Stop the previous watcher before moving the directory.
func (h *Hub) StartContentWatcher() error {
	if err := h.EnsureLayout(); err != nil {
		return err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	h.mu.Lock()
	if h.watcher != nil {
		h.mu.Unlock()
		fsWatcher.Close()
		return nil
	}
	dir := h.localFilesDir
	w := &contentWatcher{
		hub:     h,
		watcher: fsWatcher,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	h.watcher = w
	h.mu.Unlock()

	for _, sub := range resourceSubdirs {
		if err := fsWatcher.Add(filepath.Join(dir, sub)); err != nil {
			h.log().Warn(fmt.Sprintf("content watcher: cannot watch %s: %v", sub, err), "ContentWatcher")
		}
	}
	go w.eventLoop()
	return nil
}

// StopContentWatcher stops the filesystem watcher if one is running.
func (h *Hub) StopContentWatcher() {
	h.mu.Lock()
	w := h.watcher
	h.watcher = nil
	h.mu.Unlock()
	if w == nil {
		return
	}
	close(w.stopCh)
	w.watcher.Close()
	<-w.doneCh
}

func (w *contentWatcher) eventLoop() {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	changedSubdirs := make(map[string]struct{})

	flush := func() {
		for sub := range changedSubdirs {
			switch sub {
			case SubdirFlags:
				w.hub.bus.emit(Event{Kind: EventFlagsLoaded})
			case SubdirLogos:
				w.hub.bus.emit(Event{Kind: EventLogosLoaded})
			case SubdirPictures:
				w.hub.bus.emit(Event{Kind: EventPicturesLoaded})
			}
		}
		changedSubdirs = make(map[string]struct{})
	}

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".extract-") {
				// Skip our own temp files; the rename fires separately.
				continue
			}
			changedSubdirs[filepath.Base(filepath.Dir(event.Name))] = struct{}{}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(config.ContentWatcherDebounceInterval)
			debounceCh = debounceTimer.C

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.hub.log().Warn("content watcher error", "ContentWatcher")

		case <-debounceCh:
			debounceCh = nil
			flush()
		}
	}
}
