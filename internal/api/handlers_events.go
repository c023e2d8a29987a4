package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/solardesk/webhookd/internal/dispatch"
	"github.com/solardesk/webhookd/internal/models"
)

// EventHandler is the HTTP surface domain services use to emit events.
type EventHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewEventHandler(d *dispatch.Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: d}
}

type emitEventRequest struct {
	EventType models.EventType  `json:"event_type"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

const maxPayloadSize = 256 * 1024 // 256KB

func (h *EventHandler) Emit(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadSize)
	var req emitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.EventType.Valid() {
		writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}
	if len(req.Data) == 0 {
		writeError(w, http.StatusBadRequest, "data is required")
		return
	}

	deliveries, err := h.dispatcher.Send(r.Context(), tenantID, req.EventType, req.Data, req.Metadata)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to dispatch event")
		return
	}

	ids := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		ids = append(ids, d.ID)
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"event_type": req.EventType,
		"deliveries": ids,
	})
}
