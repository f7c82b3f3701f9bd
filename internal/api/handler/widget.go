package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/edvin/sitehelper/internal/api/request"
	"github.com/edvin/sitehelper/internal/api/response"
	"github.com/edvin/sitehelper/internal/core"
)

// Widget serves the unauthenticated endpoints the embedded chat widget
// calls from visitors' browsers.
type Widget struct {
	chat *core.ChatService
}

func NewWidget(chat *core.ChatService) *Widget {
	return &Widget{chat: chat}
}

// Chat relays one visitor message and returns the assistant's answer.
func (h *Widget) Chat(w http.ResponseWriter, r *http.Request) {
	var req request.WidgetChat
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The widget surface is unauthenticated; ids that can't be uuids are
	// indistinguishable from unknown ones.
	if !isUUID(req.WebsiteID) || (req.ConversationID != "" && !isUUID(req.ConversationID)) {
		response.WriteError(w, http.StatusNotFound, "not found")
		return
	}

	reply, err := h.chat.HandleVisitorMessage(r.Context(), req.WebsiteID, req.ConversationID, req.VisitorID, req.Message)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, reply)
}

// Config returns the widget appearance settings for a website.
func (h *Widget) Config(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "websiteID")
	if !isUUID(websiteID) {
		response.WriteError(w, http.StatusNotFound, "not found")
		return
	}

	cfg, err := h.chat.WidgetBootstrap(r.Context(), websiteID)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cfg)
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
