package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// SSEWriter writes Server-Sent Events with increasing ids. It is safe for
// concurrent use.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// NewSSEWriter commits a 200 event-stream response on w.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends one named event with a JSON payload.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends a terminal error event.
func (s *SSEWriter) WriteError(message string) {
	_ = s.WriteEvent("error", map[string]string{"error": message})
}

// WriteComplete sends the terminal completion event for a run.
func (s *SSEWriter) WriteComplete(runID, status string) {
	_ = s.WriteEvent("complete", map[string]string{"run_id": runID, "status": status})
}
