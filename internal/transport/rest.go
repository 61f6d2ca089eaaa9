package transport

import (
	"net/http"

	"github.com/masc-dev/masc/internal/dispatch"
	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/telemetry"
	"github.com/masc-dev/masc/internal/tools"
)

// restHandler serves the read-only REST mirror under /api/v1,
// grounded on internal/api/*.go's handler-per-resource shape and
// internal/api/response.go's {"data": ...}/{"error": ...} envelope.
type restHandler struct {
	store *room.Store
}

func (h *restHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := tools.Health(r.Context(), h.store)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeRESTOk(w, snap)
}

func (h *restHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	status := room.TaskStatus(r.URL.Query().Get("status"))
	list, err := h.store.Tasks(r.Context(), status)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeRESTOk(w, list)
}

func (h *restHandler) Agents(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.Agents(r.Context())
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeRESTOk(w, list)
}

func (h *restHandler) Messages(w http.ResponseWriter, r *http.Request) {
	var sinceSeq int64
	if v := r.URL.Query().Get("since_seq"); v != "" {
		sinceSeq = parseInt64(v)
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n := int(parseInt64(v)); n > 0 {
			limit = n
		}
	}
	list, err := h.store.Messages(r.Context(), sinceSeq, limit)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeRESTOk(w, list)
}

func (h *restHandler) Credits(w http.ResponseWriter, r *http.Request) {
	rec := h.store.Telemetry()
	if rec == nil {
		writeRESTOk(w, []any{})
		return
	}
	events, err := rec.Events(r.Context())
	if err != nil {
		writeRESTError(w, err)
		return
	}
	creditMap := telemetry.AllCredits(events)
	credits := make([]*telemetry.Credits, 0, len(creditMap))
	for _, c := range creditMap {
		credits = append(credits, c)
	}
	writeRESTOk(w, credits)
}

func parseInt64(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}

func writeRESTOk(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, map[string]any{"data": payload})
}

func writeRESTError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch room.KindOf(err) {
	case room.KindNotFound:
		status = http.StatusNotFound
	case room.KindInvalidArgument:
		status = http.StatusBadRequest
	case room.KindConflict:
		status = http.StatusConflict
	case room.KindUnauthorized:
		status = http.StatusUnauthorized
	case room.KindForbidden:
		status = http.StatusForbidden
	case room.KindRateLimited:
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, map[string]any{"error": map[string]any{"message": dispatch.MessageForError(err)}})
}
