package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/events"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

const keepAliveInterval = 25 * time.Second

type EventHandler struct {
	responder
	bus *events.Bus
}

func NewEventHandler(bus *events.Bus, logger *utils.Logger) *EventHandler {
	return &EventHandler{responder: responder{logger: logger}, bus: bus}
}

// Stream relays bus events as Server-Sent Events until the client goes
// away. Each frame is "event: <name>" followed by one JSON data line.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, utils.NewInternalError("Streaming unsupported"))
		return
	}

	ch, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("Failed to encode event", "event", ev.Name, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
