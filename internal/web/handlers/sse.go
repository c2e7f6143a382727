package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jsvoboda/photo-curator/internal/jobs"
)

// setupSSEConnection sets the SSE headers and returns the flusher. On
// failure it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}
	return flusher, true
}

// sendSSEEvent writes one named event in SSE wire format and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}

// streamEvents relays broadcaster events to the client until it
// disconnects. An optional project filter drops events for other
// projects; events without a project always pass.
func streamEvents(w http.ResponseWriter, r *http.Request, broadcaster *jobs.Broadcaster, project string) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := broadcaster.AddListener()
	defer broadcaster.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "connected", map[string]string{"status": "listening"})

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-eventCh:
			if !open {
				return
			}
			if project != "" && event.Project != "" && event.Project != project {
				continue
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}
