package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type OCRHandler struct {
	responder
	service services.OCRService
}

func NewOCRHandler(service services.OCRService, logger *utils.Logger) *OCRHandler {
	return &OCRHandler{responder: responder{logger: logger}, service: service}
}

// Start queues a batch and answers 202; progress arrives on the event stream.
func (h *OCRHandler) Start(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Start(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, resp)
}

func (h *OCRHandler) Retry(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Retry(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, resp)
}

func (h *OCRHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(r.Context(), pathID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	h.noContent(w)
}

func (h *OCRHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, status)
}

func (h *OCRHandler) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, results)
}

func (h *OCRHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		h.respondError(w, utils.NewBadRequestError("Item index must be an integer"))
		return
	}
	var item models.Reading
	if err := decode(w, r, &item); err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.service.UpdateItem(r.Context(), pathID(r), index, item)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}
