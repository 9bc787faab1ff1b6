package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type SystemHandler struct {
	responder
	service services.SystemService
}

func NewSystemHandler(service services.SystemService, logger *utils.Logger) *SystemHandler {
	return &SystemHandler{responder: responder{logger: logger}, service: service}
}

func (h *SystemHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context(), r.URL.Query().Get("scope")); err != nil {
		h.respondError(w, err)
		return
	}
	h.noContent(w)
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health(r.Context())
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	h.respondJSON(w, status, health)
}
