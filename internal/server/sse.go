package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opencode-ai/toolrun/internal/event"
	"github.com/opencode-ai/toolrun/internal/logging"
)

// SSEHeartbeatInterval is the interval for SSE heartbeats.
const SSEHeartbeatInterval = 30 * time.Second

// streamEvent is the wire form of a bus event: {"type": ..., "properties": ...}.
type streamEvent struct {
	Type       event.EventType `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

var errStreamingUnsupported = errors.New("streaming not supported")

// sseWriter writes text/event-stream frames and flushes after each one.
type sseWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, errStreamingUnsupported
	}
	// ResponseController reaches through middleware wrappers.
	return &sseWriter{w: w, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) frame(format string, args ...any) error {
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		return err
	}
	return s.rc.Flush()
}

// writeEvent encodes data as JSON and writes it as one data frame.
func (s *sseWriter) writeEvent(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.frame("data: %s\n\n", b)
}

// writeHeartbeat writes a comment frame that keeps proxies from closing
// an idle stream.
func (s *sseWriter) writeHeartbeat() error {
	return s.frame(": heartbeat\n\n")
}

// allEvents handles GET /event. The optional sessionID query parameter
// limits the stream to events of that session.
func (s *Server) allEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionID")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	messages, err := event.Stream(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	if err := sse.writeEvent(map[string]any{"type": "server.connected", "properties": map[string]any{}}); err != nil {
		return
	}

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			msg.Ack()
			if sessionID != "" && msg.Metadata.Get(event.MetadataSession) != sessionID {
				continue
			}

			var e struct {
				Type event.EventType `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				logging.Warn().Err(err).Msg("SSE event dropped: malformed payload")
				continue
			}
			if err := sse.writeEvent(streamEvent{Type: e.Type, Properties: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.writeHeartbeat(); err != nil {
				return
			}
		}
	}
}
