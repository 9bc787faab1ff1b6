package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type settingBody struct {
	Value *string `json:"value" validate:"required"`
}

type settingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type SettingsHandler struct {
	responder
	service services.SettingsService
}

func NewSettingsHandler(service services.SettingsService, logger *utils.Logger) *SettingsHandler {
	return &SettingsHandler{responder: responder{logger: logger}, service: service}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	value, err := h.service.Get(r.Context(), key)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, settingResponse{Key: key, Value: value})
}

func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var body settingBody
	if err := decode(w, r, &body); err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.service.Save(r.Context(), key, *body.Value); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, settingResponse{Key: key, Value: *body.Value})
}
