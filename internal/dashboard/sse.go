package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rtsched/internal/sched"
)

var heartbeatInterval = 15 * time.Second

type eventPayload struct {
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment,omitempty"`
	sched.Snapshot
}

func (s *Server) payload() eventPayload {
	src, cfg := s.current()
	p := eventPayload{Timestamp: time.Now().UTC(), Snapshot: src.Snapshot(defaultHistoryLimit)}
	if cfg != nil {
		p.Environment = cfg.Environment
	}
	return p
}

// handleEvents streams an init snapshot, then one update per batch of
// scheduler notifications.
// GET /api/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	events, cancel := s.hub.Subscribe()
	defer cancel()

	if err := sendSSEEvent(w, flusher, "init", s.payload()); err != nil {
		s.logger.Debug("sse client disconnected", "error", err)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			// coalesce whatever queued up meanwhile
			event := "update"
			if ev.Kind == sched.StatusReset {
				event = "reset"
			}
		drain:
			for {
				select {
				case more, ok := <-events:
					if !ok {
						break drain
					}
					if more.Kind == sched.StatusReset {
						event = "reset"
					}
				default:
					break drain
				}
			}
			if err := sendSSEEvent(w, flusher, event, s.payload()); err != nil {
				s.logger.Debug("sse client disconnected", "error", err)
				return
			}
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
