package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSESink writes events to an HTTP response as server-sent events,
// flushing after every frame so intermediaries cannot batch the stream.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSESink prepares w for an SSE response and returns the sink. The
// headers disable caching and proxy buffering so pacing stays visible to
// the client.
func NewSSESink(w http.ResponseWriter) *SSESink {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	s := &SSESink{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Send writes one event as a data line and flushes it.
func (s *SSESink) Send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
