package hub

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestIngestFlagsZipExtractsAndAnnounces(t *testing.T) {
	h := newTestHub(t)
	var loaded int
	h.Subscribe(EventFlagsLoaded, func(Event) { loaded++ })

	payload := buildZip(t, map[string]string{
		"NOR.svg": "<svg/>",
		"SWE.svg": "<svg/>",
	})
	resp := h.IngestBinary("flags_zip", payload)
	require.Equal(t, 200, resp.Status)
	require.Equal(t, 1, loaded)

	for _, name := range []string{"NOR.svg", "SWE.svg"} {
		_, err := os.Stat(filepath.Join(h.GetLocalFilesDir(), "flags", name))
		require.NoError(t, err)
	}
}

func TestExtractZipSkipsTraversalEntries(t *testing.T) {
	dir := t.TempDir()
	payload := buildZip(t, map[string]string{
		"ok.png":           "data",
		"../escape.png":    "data",
		"nested/inner.png": "data",
	})
	count, err := extractZip(payload, dir)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = os.Stat(filepath.Join(dir, "ok.png"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "nested", "inner.png"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.png"))
	require.True(t, os.IsNotExist(err))
}

func TestIngestMalformedZipKeepsReadinessFalse(t *testing.T) {
	h := newTestHub(t)
	resp := h.IngestBinary("logos_zip", []byte("not a zip"))
	require.Equal(t, 500, resp.Status)

	h.mu.RLock()
	ready := h.logosReady
	h.mu.RUnlock()
	require.False(t, ready)
}

func TestIngestDatabaseZip(t *testing.T) {
	h := newTestHub(t)
	payload := buildZip(t, map[string]string{
		"competition.json": `{
			"athletes": [{"key": "a1", "lastName": "Nordmann"}],
			"teams": [{"id": 1, "name": "Oslo AK"}]
		}`,
	})
	resp := h.IngestBinary("database_zip", payload)
	require.Equal(t, 200, resp.Status)

	state := h.GetDatabaseState()
	require.NotNil(t, state)
	require.Len(t, state.Athletes, 1)
}

func TestIngestTranslationsZipWrapperShape(t *testing.T) {
	h := newTestHub(t)
	payload := buildZip(t, map[string]string{
		"translations.json": `{
			"translationsChecksum": "sum1",
			"locales": {"en": {"Hello": "Hello &amp; welcome"}}
		}`,
	})
	resp := h.IngestBinary("translations_zip", payload)
	require.Equal(t, 200, resp.Status)
	require.Equal(t, "Hello & welcome", h.GetTranslations("en")["Hello"])

	// Duplicate checksum is a cached no-op.
	resp = h.IngestBinary("translations_zip", payload)
	require.True(t, resp.Cached)
}

func TestIngestTranslationsZipDirectShape(t *testing.T) {
	h := newTestHub(t)
	payload := buildZip(t, map[string]string{
		"translations.json": `{"de": {"Hello": "Hallo"}}`,
	})
	resp := h.IngestBinary("translations_zip", payload)
	require.Equal(t, 200, resp.Status)
	require.Equal(t, "Hallo", h.GetTranslations("de")["Hello"])
}

func TestIngestBinaryUnknownTypeIgnored(t *testing.T) {
	h := newTestHub(t)
	resp := h.IngestBinary("mystery_zip", buildZip(t, map[string]string{"x": "y"}))
	require.Equal(t, 200, resp.Status)
	require.Equal(t, "unknown_binary_type", resp.Reason)
}

func TestReadZipEntryFallsBackToSingleFile(t *testing.T) {
	payload := buildZip(t, map[string]string{"renamed.json": `{"a": 1}`})
	data, err := readZipEntry(payload, "competition.json")
	require.NoError(t, err)
	require.JSONEq(t, `{"a": 1}`, string(data))
}

func TestEnsureLayoutCreatesSubdirectories(t *testing.T) {
	h := newTestHub(t)
	require.NoError(t, h.EnsureLayout())
	for _, sub := range []string{"flags", "logos", "pictures", "styles"} {
		info, err := os.Stat(filepath.Join(h.GetLocalFilesDir(), sub))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}
