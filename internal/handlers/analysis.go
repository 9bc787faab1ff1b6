package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type AnalysisHandler struct {
	responder
	service services.AnalysisService
}

func NewAnalysisHandler(service services.AnalysisService, logger *utils.Logger) *AnalysisHandler {
	return &AnalysisHandler{responder: responder{logger: logger}, service: service}
}

func (h *AnalysisHandler) Start(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Start(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, resp)
}

func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.service.List(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, analyses)
}

func (h *AnalysisHandler) History(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.respondError(w, err)
		return
	}
	size, err := queryInt(r, "page_size", services.DefaultPageSize)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out, err := h.service.History(r.Context(), page, size)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *AnalysisHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateContentRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	a, err := h.service.UpdateContent(r.Context(), pathID(r), req.Content)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, a)
}
