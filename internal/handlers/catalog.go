package handlers

import (
	"context"
	"net/http"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type ProjectHandler struct {
	responder
	service services.ProjectService
}

func NewProjectHandler(service services.ProjectService, logger *utils.Logger) *ProjectHandler {
	return &ProjectHandler{responder: responder{logger: logger}, service: service}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProjectRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), pathID(r), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), pathID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	h.noContent(w)
}

type IndicatorHandler struct {
	responder
	service services.IndicatorService
}

func NewIndicatorHandler(service services.IndicatorService, logger *utils.Logger) *IndicatorHandler {
	return &IndicatorHandler{responder: responder{logger: logger}, service: service}
}

func (h *IndicatorHandler) List(w http.ResponseWriter, r *http.Request) {
	indicators, err := h.service.List(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, indicators)
}

func (h *IndicatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.service.Create, http.StatusCreated)
}

// Ensure answers 200 whether the indicator was created or already existed.
func (h *IndicatorHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.service.Ensure, http.StatusOK)
}

type createIndicatorFunc func(context.Context, *models.CreateIndicatorRequest) (*models.Indicator, error)

func (h *IndicatorHandler) create(w http.ResponseWriter, r *http.Request, fn createIndicatorFunc, status int) {
	var req models.CreateIndicatorRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	req.ProjectID = pathID(r)

	ind, err := fn(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, status, ind)
}

func (h *IndicatorHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateIndicatorRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	ind, err := h.service.Update(r.Context(), pathID(r), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, ind)
}

func (h *IndicatorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), pathID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	h.noContent(w)
}
