package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type RecordHandler struct {
	responder
	service services.RecordService
}

func NewRecordHandler(service services.RecordService, logger *utils.Logger) *RecordHandler {
	return &RecordHandler{responder: responder{logger: logger}, service: service}
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, records)
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, record)
}

func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRecordRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	record, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, record)
}

func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRecordRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	record, err := h.service.Update(r.Context(), pathID(r), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, record)
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), pathID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	h.noContent(w)
}
