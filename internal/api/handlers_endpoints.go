package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/solardesk/webhookd/internal/models"
	"github.com/solardesk/webhookd/internal/registry"
)

type EndpointHandler struct {
	registry *registry.Registry
}

func NewEndpointHandler(reg *registry.Registry) *EndpointHandler {
	return &EndpointHandler{registry: reg}
}

type createEndpointRequest struct {
	URL    string             `json:"url"`
	Events []models.EventType `json:"events"`
	Secret string             `json:"secret,omitempty"`
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req createEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ep, err := h.registry.Register(r.Context(), tenantID, req.URL, req.Events, req.Secret)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The secret is included in this response only; it is never exposed on
	// subsequent reads.
	writeJSON(w, http.StatusCreated, ep)
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	ep := h.tenantEndpoint(w, r)
	if ep == nil {
		return
	}
	ep.Secret = ""
	writeJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	eps, err := h.registry.List(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list endpoints")
		return
	}
	for i := range eps {
		eps[i].Secret = ""
	}
	if eps == nil {
		eps = []models.Endpoint{}
	}
	writeJSON(w, http.StatusOK, eps)
}

type updateEndpointRequest struct {
	URL    *string            `json:"url"`
	Events []models.EventType `json:"events"`
	Active *bool              `json:"active"`
}

func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	ep := h.tenantEndpoint(w, r)
	if ep == nil {
		return
	}

	var req updateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.registry.Update(r.Context(), ep.ID, registry.Update{
		URL:    req.URL,
		Events: req.Events,
		Active: req.Active,
	})
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated.Secret = ""
	writeJSON(w, http.StatusOK, updated)
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ep := h.tenantEndpoint(w, r)
	if ep == nil {
		return
	}

	if err := h.registry.Delete(r.Context(), ep.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete endpoint")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tenantEndpoint loads the endpoint from the URL and checks it belongs to
// the tenant in the path. Writes the error response itself on failure.
func (h *EndpointHandler) tenantEndpoint(w http.ResponseWriter, r *http.Request) *models.Endpoint {
	tenantID := chi.URLParam(r, "tenantID")
	id := chi.URLParam(r, "id")

	ep, err := h.registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get endpoint")
		return nil
	}
	if ep == nil || ep.TenantID != tenantID {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return nil
	}
	return ep
}
