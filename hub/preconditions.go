package hub

import (
	"github.com/chalk-box/app/internal/config"
)

// Required precondition frame types. Resource ZIPs are requested on demand
// via RequestResources, never automatically.
const (
	preconditionDatabase     = "database"
	preconditionTranslations = "translations_zip"
)

func (h *Hub) missingPreconditionsLocked() []string {
	var missing []string
	if h.database == nil || len(h.database.Athletes) == 0 {
		missing = append(missing, preconditionDatabase)
	}
	if h.translations.empty() {
		missing = append(missing, preconditionTranslations)
	}
	return missing
}

// preconditionResponseLocked decides the envelope for a data frame after its
// merge has been applied. A 428 lists what the producer must resend; while a
// database request is already outstanding the answer degrades to 202 so a
// burst of frames cannot trigger a 428 storm. The second return value
// reports whether a fresh request was issued.
func (h *Hub) preconditionResponseLocked(frameType string) (Response, bool) {
	missing := h.missingPreconditionsLocked()
	if len(missing) == 0 {
		return Response{Status: 200, Message: frameType + " processed"}, false
	}

	databaseMissing := false
	for _, entry := range missing {
		if entry == preconditionDatabase {
			databaseMissing = true
			break
		}
	}
	if databaseMissing {
		now := h.now()
		if !h.lastDatabaseRequest.IsZero() && now.Sub(h.lastDatabaseRequest) < config.DatabaseRequestDebounce {
			return Response{
				Status:  202,
				Message: "database already requested",
				Reason:  "waiting_for_database",
				Retry:   true,
			}, false
		}
		h.lastDatabaseRequest = now
	}

	return Response{
		Status:  428,
		Message: "Precondition Required: Missing required data",
		Reason:  "missing_preconditions",
		Missing: missing,
	}, true
}
