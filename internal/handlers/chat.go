package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

const defaultChatLimit = 50

type ChatHandler struct {
	responder
	service services.ChatService
}

func NewChatHandler(service services.ChatService, logger *utils.Logger) *ChatHandler {
	return &ChatHandler{responder: responder{logger: logger}, service: service}
}

// Send answers 202 with the assistant message id; the reply streams as
// chat_stream_* events.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	resp, err := h.service.Send(r.Context(), req.Message)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, resp)
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultChatLimit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.respondError(w, err)
		return
	}
	msgs, err := h.service.History(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, msgs)
}

func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	h.noContent(w)
}
