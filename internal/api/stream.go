package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// heartbeatInterval is the interval for sending SSE heartbeat comments.
const heartbeatInterval = 20 * time.Second

// handleStream handles GET /api/v1/stream (SSE)
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Check for streaming support
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Last-Event-ID header, or the query parameter for manual reconnects.
	// Messages still in the hub history after that id are replayed first.
	sub := s.hub.SubscribeAfter(parseLastEventID(r))
	defer s.hub.Unsubscribe(sub)

	// Send initial comment to establish connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()

	for {
		select {
		case m, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeSSEEvent(w, m); err != nil {
				s.logger.Debug("sse write failed", "error", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprintf(w, ":\n\n")
			flusher.Flush()

		case <-ctx.Done():
			// Client disconnected
			return

		case <-sub.Done():
			// Subscriber removed (hub stopped)
			return
		}
	}
}

// parseLastEventID returns the reconnect cursor, or 0 for a fresh stream.
// Unparseable ids start fresh.
func parseLastEventID(r *http.Request) uint64 {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		v = r.URL.Query().Get("last_event_id")
	}
	if v == "" {
		return 0
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// writeSSEEvent writes a single message in SSE format.
func writeSSEEvent(w http.ResponseWriter, m Message) error {
	data, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", m.ID, m.Kind, data)
	return err
}
