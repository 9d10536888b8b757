package hub

// The GroupDone sentinel arrives either as the update's uiEvent or as the
// break type while the platform winds down.
const (
	uiEventGroupDone   = "GroupDone"
	breakTypeGroupDone = "GROUP_DONE"
)

func (h *Hub) sessionLocked(fopName string) *SessionStatus {
	status, ok := h.sessions[fopName]
	if !ok {
		status = &SessionStatus{}
		h.sessions[fopName] = status
	}
	return status
}

// sessionTransitionLocked drives the per-platform done/active state machine
// and returns the lifecycle events for edge transitions only. The done
// decision reads the incoming frame fields, not the folded document, so a
// stale GROUP_DONE break type cannot re-finish a reopened session.
func (h *Hub) sessionTransitionLocked(fopName, frameType string, payload map[string]any, snapshot *FopUpdate) []Event {
	status := h.sessionLocked(fopName)
	status.LastActivity = h.now()
	if snapshot.GroupName != "" {
		status.SessionName = snapshot.GroupName
	}

	done := frameType == "update" &&
		(stringField(payload, "uiEvent") == uiEventGroupDone ||
			stringField(payload, "breakType") == breakTypeGroupDone)

	eventPayload := map[string]any{"fopName": fopName, "sessionName": status.SessionName}
	if done {
		if status.IsDone {
			return nil
		}
		status.IsDone = true
		return []Event{{Kind: EventSessionDone, FopName: fopName, Payload: eventPayload}}
	}

	// Any other activity reopens a finished session: a timer event, a
	// decision event, or an update whose uiEvent is not GroupDone (an absent
	// uiEvent included).
	if !status.IsDone {
		return nil
	}
	status.IsDone = false
	return []Event{{Kind: EventSessionReopened, FopName: fopName, Payload: eventPayload}}
}
