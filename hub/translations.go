package hub

import (
	"strings"

	"golang.org/x/text/language"
)

// entityReplacer decodes the fixed set of HTML entities the producer emits in
// translated strings.
var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&#39;", "'",
	"&nbsp;", "\u00a0",
	"&ndash;", "–",
	"&mdash;", "—",
	"&hellip;", "…",
	"&copy;", "©",
	"&reg;", "®",
	"&trade;", "™",
)

func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityReplacer.Replace(s)
}

// normalizeLocale canonicalizes producer locale tags ("fr_FR" and "fr-fr"
// both become "fr-FR"); unparseable tags are kept as-is.
func normalizeLocale(locale string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(locale, "_", "-"))
	if trimmed == "" {
		return ""
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	return tag.String()
}

func baseLocale(locale string) string {
	if i := strings.Index(locale, "-"); i > 0 {
		return locale[:i]
	}
	return ""
}

// translationStore keeps per-locale key-value maps with base-locale fallback.
// Regional locales store the union base ∪ regional; the raw regional
// overrides are retained so a late-arriving base can be re-merged.
type translationStore struct {
	merged    map[string]map[string]string
	overrides map[string]map[string]string
	checksum  string
}

func newTranslationStore() *translationStore {
	return &translationStore{
		merged:    make(map[string]map[string]string),
		overrides: make(map[string]map[string]string),
	}
}

func (s *translationStore) empty() bool {
	return len(s.merged) == 0
}

func (s *translationStore) locales() []string {
	out := make([]string, 0, len(s.merged))
	for locale := range s.merged {
		out = append(out, locale)
	}
	return out
}

// put ingests one locale map, decoding entities and maintaining the
// base/regional merge invariant.
func (s *translationStore) put(locale string, values map[string]string) {
	locale = normalizeLocale(locale)
	if locale == "" {
		return
	}
	decoded := make(map[string]string, len(values))
	for k, v := range values {
		decoded[k] = decodeEntities(v)
	}

	base := baseLocale(locale)
	if base != "" {
		s.overrides[locale] = decoded
		s.merged[locale] = mergeMaps(s.merged[base], decoded)
		return
	}

	// Base language: store it and re-merge every regional variant on top of
	// the new base, regional overrides still winning.
	s.merged[locale] = decoded
	for regional, regionalOverrides := range s.overrides {
		if baseLocale(regional) == locale {
			s.merged[regional] = mergeMaps(decoded, regionalOverrides)
		}
	}
}

// get resolves a locale through the fallback chain
// lang-REGION → lang → "en" → {}.
func (s *translationStore) get(locale string) map[string]string {
	locale = normalizeLocale(locale)
	if m, ok := s.merged[locale]; ok {
		return m
	}
	if base := baseLocale(locale); base != "" {
		if m, ok := s.merged[base]; ok {
			return m
		}
	}
	if m, ok := s.merged["en"]; ok {
		return m
	}
	return map[string]string{}
}

func mergeMaps(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// mergeTranslations ingests a set of locale maps under the write lock and
// returns the events to emit once the lock is released.
func (h *Hub) mergeTranslations(locales map[string]map[string]string, checksum string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mergeTranslationsLocked(locales, checksum)
}

func (h *Hub) mergeTranslationsLocked(locales map[string]map[string]string, checksum string) []Event {
	if checksum != "" && checksum == h.translations.checksum {
		return nil
	}
	for locale, values := range locales {
		h.translations.put(locale, values)
	}
	h.translations.checksum = checksum
	if h.translations.empty() {
		return nil
	}
	h.translationsReady = true
	events := []Event{{Kind: EventTranslationsLoaded}}
	return append(events, h.readyEventsLocked()...)
}
