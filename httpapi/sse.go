package httpapi

import (
	"net/http"
	"strings"

	"github.com/freshgrlc/freshgrlc-indexer/events"
)

// handleSubscribe serves the SSE event stream, grounded on sse.py's
// subscriber generator and the framing api.py sets on the response.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var channels []string
	if raw := r.URL.Query().Get("channels"); raw != "" {
		channels = strings.Split(raw, ",")
	}

	sub := s.hub.Subscribe(channels)
	defer s.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		event, ok := sub.Read()
		if !ok {
			return
		}
		frame, err := events.Serialize(event)
		if err != nil {
			continue
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
