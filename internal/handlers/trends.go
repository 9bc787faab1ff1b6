package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type TrendHandler struct {
	responder
	service services.TrendService
}

func NewTrendHandler(service services.TrendService, logger *utils.Logger) *TrendHandler {
	return &TrendHandler{responder: responder{logger: logger}, service: service}
}

func (h *TrendHandler) Project(w http.ResponseWriter, r *http.Request) {
	trend, err := h.service.Project(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, trend)
}

func (h *TrendHandler) All(w http.ResponseWriter, r *http.Request) {
	trends, err := h.service.All(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, trends)
}
