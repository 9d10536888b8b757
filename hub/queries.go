package hub

import (
	"sort"
)

// Queries return copies; callers can hold the results across later frames
// without observing concurrent mutation.

// GetDatabaseState returns a copy of the current database snapshot, or nil
// before the first successful ingest.
func (h *Hub) GetDatabaseState() *DatabaseState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.database == nil {
		return nil
	}
	copied := *h.database
	copied.Athletes = append([]Athlete(nil), h.database.Athletes...)
	copied.Teams = append([]Team(nil), h.database.Teams...)
	copied.AgeGroups = append([]AgeGroup(nil), h.database.AgeGroups...)
	copied.Records = append([]Record(nil), h.database.Records...)
	copied.FOPs = append([]string(nil), h.database.FOPs...)
	return &copied
}

// GetFopUpdate returns the current snapshot for a platform, or nil when no
// frame has been seen for it.
func (h *Hub) GetFopUpdate(fopName string) *FopUpdate {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fopSnapshotLocked(fopName)
}

func (h *Hub) fopSnapshotLocked(fopName string) *FopUpdate {
	fop, ok := h.fops[resolveQueryFOP(fopName)]
	if !ok || fop.snapshot == nil {
		return nil
	}
	copied := *fop.snapshot
	copied.SessionAthletes = append([]Athlete(nil), fop.snapshot.SessionAthletes...)
	copied.StartOrderKeys = append([]OrderKey(nil), fop.snapshot.StartOrderKeys...)
	copied.LiftingOrderKeys = append([]OrderKey(nil), fop.snapshot.LiftingOrderKeys...)
	copied.StartOrderAthletes = copyOrderEntries(fop.snapshot.StartOrderAthletes)
	copied.LiftingOrderAthletes = copyOrderEntries(fop.snapshot.LiftingOrderAthletes)
	return &copied
}

func copyOrderEntries(entries []OrderEntry) []OrderEntry {
	if entries == nil {
		return nil
	}
	out := make([]OrderEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry
		if entry.Athlete != nil {
			copied := *entry.Athlete
			out[i].Athlete = &copied
		}
	}
	return out
}

func filterOrderEntries(entries []OrderEntry, includeSpacer bool) []OrderEntry {
	if includeSpacer {
		return copyOrderEntries(entries)
	}
	if entries == nil {
		return nil
	}
	out := make([]OrderEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsSpacer {
			continue
		}
		if entry.Athlete != nil {
			copied := *entry.Athlete
			entry.Athlete = &copied
		}
		out = append(out, entry)
	}
	return out
}

func resolveQueryFOP(fopName string) string {
	if fopName == "" {
		return "A"
	}
	return fopName
}

// SessionAthletesOptions selects which platform to read and whether spacer
// rows survive into the result.
type SessionAthletesOptions struct {
	FopName       string
	IncludeSpacer bool
}

// GetSessionAthletes returns the session athletes for a platform in lifting
// order when one is known, start-list order otherwise.
func (h *Hub) GetSessionAthletes(opts SessionAthletesOptions) []OrderEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fop, ok := h.fops[resolveQueryFOP(opts.FopName)]
	if !ok || fop.snapshot == nil {
		return nil
	}
	source := fop.snapshot.LiftingOrderAthletes
	if len(source) == 0 {
		source = fop.snapshot.StartOrderAthletes
	}
	if len(source) == 0 {
		// No order arrived yet; fall back to the raw session list.
		out := make([]OrderEntry, 0, len(fop.snapshot.SessionAthletes))
		for i := range fop.snapshot.SessionAthletes {
			copied := fop.snapshot.SessionAthletes[i]
			out = append(out, OrderEntry{Athlete: &copied})
		}
		return out
	}
	out := make([]OrderEntry, 0, len(source))
	for _, entry := range source {
		if entry.IsSpacer && !opts.IncludeSpacer {
			continue
		}
		out = append(out, entry)
		if entry.Athlete != nil {
			copied := *entry.Athlete
			out[len(out)-1].Athlete = &copied
		}
	}
	return out
}

// GetStartOrderEntries returns the start-list order for a platform.
func (h *Hub) GetStartOrderEntries(opts SessionAthletesOptions) []OrderEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fop, ok := h.fops[resolveQueryFOP(opts.FopName)]
	if !ok || fop.snapshot == nil {
		return nil
	}
	return filterOrderEntries(fop.snapshot.StartOrderAthletes, opts.IncludeSpacer)
}

// GetLiftingOrderEntries returns the lifting order for a platform.
func (h *Hub) GetLiftingOrderEntries(opts SessionAthletesOptions) []OrderEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fop, ok := h.fops[resolveQueryFOP(opts.FopName)]
	if !ok || fop.snapshot == nil {
		return nil
	}
	return filterOrderEntries(fop.snapshot.LiftingOrderAthletes, opts.IncludeSpacer)
}

// GetCurrentAthlete returns the athlete on the platform with their pending
// attempt resolved, or nil when nobody is up.
func (h *Hub) GetCurrentAthlete(fopName string) *EnrichedAthlete {
	return h.enrichedNeighbor(fopName, 0)
}

// GetNextAthlete returns the athlete called after the current one.
func (h *Hub) GetNextAthlete(fopName string) *EnrichedAthlete {
	return h.enrichedNeighbor(fopName, 1)
}

// GetPreviousAthlete returns the athlete who lifted before the current one.
func (h *Hub) GetPreviousAthlete(fopName string) *EnrichedAthlete {
	return h.enrichedNeighbor(fopName, -1)
}

func (h *Hub) enrichedNeighbor(fopName string, offset int) *EnrichedAthlete {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fop, ok := h.fops[resolveQueryFOP(fopName)]
	if !ok || fop.snapshot == nil {
		return nil
	}
	return enrichAthlete(neighborAthlete(fop.snapshot, offset))
}

// GetTranslations resolves a locale's key-value map through the fallback
// chain; the result is a copy.
func (h *Hub) GetTranslations(locale string) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	resolved := h.translations.get(locale)
	out := make(map[string]string, len(resolved))
	for k, v := range resolved {
		out[k] = v
	}
	return out
}

// GetAvailableLocales lists the ingested locales, sorted.
func (h *Hub) GetAvailableLocales() []string {
	h.mu.RLock()
	locales := h.translations.locales()
	h.mu.RUnlock()
	sort.Strings(locales)
	return locales
}

// GetSessionStatus returns a copy of the done/active state for a platform.
func (h *Hub) GetSessionStatus(fopName string) SessionStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if status, ok := h.sessions[resolveQueryFOP(fopName)]; ok {
		return *status
	}
	return SessionStatus{}
}

// IsSessionDone reports whether the platform's session has finished.
func (h *Hub) IsSessionDone(fopName string) bool {
	return h.GetSessionStatus(fopName).IsDone
}

// GetTeamNameByID resolves a team display name; unknown ids return "".
func (h *Hub) GetTeamNameByID(id int64) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.idx == nil {
		return ""
	}
	return h.idx.teamsByID[id].Name
}

// IsReady reports whether the hub holds both athletes and translations.
func (h *Hub) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isReadyLocked()
}

// GetFopStateVersion returns the change counter for a platform snapshot.
// Consumers can cheaply poll it to skip unchanged renders.
func (h *Hub) GetFopStateVersion(fopName string) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if fop, ok := h.fops[resolveQueryFOP(fopName)]; ok && fop.snapshot != nil {
		return fop.snapshot.Version
	}
	return 0
}

// GetAvailableFOPs returns the union of database-declared platforms and
// platforms confirmed by live frames, sorted.
func (h *Hub) GetAvailableFOPs() []string {
	h.mu.RLock()
	names := make(map[string]struct{}, len(h.confirmedFOPs))
	if h.database != nil {
		for _, name := range h.database.FOPs {
			names[name] = struct{}{}
		}
	}
	for name := range h.confirmedFOPs {
		names[name] = struct{}{}
	}
	h.mu.RUnlock()

	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetCategoryToAgeGroupMap builds the category-code to age-group index,
// memoized per database checksum. Concurrent first calls share one build.
func (h *Hub) GetCategoryToAgeGroupMap() map[string]AgeGroup {
	h.mu.RLock()
	if h.database == nil {
		h.mu.RUnlock()
		return map[string]AgeGroup{}
	}
	checksum := h.database.DatabaseChecksum
	if h.categoryMemo != nil && h.categoryMemoChecksum == checksum {
		memo := h.categoryMemo
		h.mu.RUnlock()
		return memo
	}
	groups := append([]AgeGroup(nil), h.database.AgeGroups...)
	h.mu.RUnlock()

	built, _, _ := h.memoGroup.Do(checksum, func() (any, error) {
		memo := make(map[string]AgeGroup)
		for _, group := range groups {
			for _, cat := range group.Categories {
				memo[cat.Code] = group
			}
		}
		h.mu.Lock()
		h.categoryMemo = memo
		h.categoryMemoChecksum = checksum
		h.mu.Unlock()
		return memo, nil
	})
	return built.(map[string]AgeGroup)
}

// GetLocalFilesDir returns the resource directory root.
func (h *Hub) GetLocalFilesDir() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.localFilesDir
}

// SetLocalFilesDir changes the resource directory root. Restart the content
// watcher afterwards if one is running.
func (h *Hub) SetLocalFilesDir(dir string) {
	h.mu.Lock()
	h.localFilesDir = dir
	h.mu.Unlock()
}

// GetLocalURLPrefix returns the URL prefix consumers use for resource links.
func (h *Hub) GetLocalURLPrefix() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.localURLPrefix
}

// SetLocalURLPrefix changes the resource URL prefix.
func (h *Hub) SetLocalURLPrefix(prefix string) {
	h.mu.Lock()
	h.localURLPrefix = prefix
	h.mu.Unlock()
}
