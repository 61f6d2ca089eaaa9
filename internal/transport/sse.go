package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/masc-dev/masc/internal/bus"
)

// heartbeatInterval is the idle keepalive cadence spec.md §4.4 requires
// (15s comment-line pings so intermediaries don't time out the
// connection).
const heartbeatInterval = 15 * time.Second

// SSEHub serves the notification stream over Server-Sent Events.
// Grounded on the register/unregister + per-connection goroutine shape
// of other_examples' skyhook-io-radar SSEBroadcaster, generalized from
// a map of raw channels to the Bus's own Subscriber (which already
// carries the seq-ordered ring buffer needed for resume-by-seq, per
// teradata-labs-loom's StreamResumption).
type SSEHub struct {
	bus  *bus.Bus
	room string
}

// NewSSEHub wires an SSEHub to b, scoped to one room.
func NewSSEHub(b *bus.Bus, room string) *SSEHub {
	return &SSEHub{bus: b, room: room}
}

func (h *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	subID := r.Header.Get("X-Subscriber-Id")
	if subID == "" {
		subID = fmt.Sprintf("sse-%d", time.Now().UnixNano())
	}
	sub := h.bus.Subscribe(subID, nil, h.room)
	defer h.bus.Unsubscribe(sub)

	// Resume contract: Last-Event-ID (header, per the SSE spec, or a
	// query param fallback for clients that can't set headers) replays
	// every buffered event with Seq > lastSeq. If lastSeq is older than
	// the ring buffer's floor, emit resume_gap so the client knows it
	// must re-sync from a full snapshot instead of trusting the
	// replay, per spec.md §4.4.
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = r.URL.Query().Get("last_event_id")
	}
	if lastEventID != "" {
		if lastSeq, err := strconv.ParseInt(lastEventID, 10, 64); err == nil {
			events, ok := sub.SinceSeq(lastSeq)
			if !ok {
				writeSSEEvent(w, "resume_gap", 0, map[string]any{"after_seq": lastSeq})
			}
			for _, e := range events {
				writeSSERaw(w, e)
			}
			flusher.Flush()
		}
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Closed():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			writeSSERaw(w, e)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSERaw(w http.ResponseWriter, e bus.Event) {
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Kind, e.Data)
}

func writeSSEEvent(w http.ResponseWriter, kind string, seq int64, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, kind, payload)
}
