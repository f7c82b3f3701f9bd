package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/sitehelper/internal/api/request"
	"github.com/edvin/sitehelper/internal/api/response"
	"github.com/edvin/sitehelper/internal/core"
	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/rbac"
)

type Website struct {
	svc           *core.WebsiteService
	knowledge     *core.KnowledgeBaseService
	conversations *core.ConversationService
}

func NewWebsite(svc *core.WebsiteService, knowledge *core.KnowledgeBaseService, conversations *core.ConversationService) *Website {
	return &Website{svc: svc, knowledge: knowledge, conversations: conversations}
}

func (h *Website) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req request.CreateWebsite
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	site, err := h.svc.Create(r.Context(), req.BusinessAccountID, claims.Sub, req.Name, req.URL)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, site)
}

func (h *Website) ListByAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	sites, err := h.svc.List(r.Context(), chi.URLParam(r, "id"), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": sites})
}

func (h *Website) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	site, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), claims.Sub, rbac.PermViewWebsites)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, site)
}

func (h *Website) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), claims.Sub); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Website) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req request.UpdateWebsite
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	site, err := h.svc.Rename(r.Context(), chi.URLParam(r, "id"), claims.Sub, req.Name)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, site)
}

// UpdateWidgetConfig replaces the widget appearance settings.
func (h *Website) UpdateWidgetConfig(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req request.UpdateWidgetConfig
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	site, err := h.svc.UpdateWidgetConfig(r.Context(), chi.URLParam(r, "id"), claims.Sub, model.WidgetConfig{
		Theme:        req.Theme,
		PrimaryColor: req.PrimaryColor,
		Position:     req.Position,
		Greeting:     req.Greeting,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, site)
}

// Scrape re-runs content extraction for the website.
func (h *Website) Scrape(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	site, err := h.svc.Scrape(r.Context(), chi.URLParam(r, "id"), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, site)
}

// GetKnowledgeBase returns the website's knowledge base.
func (h *Website) GetKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	kb, err := h.knowledge.Get(r.Context(), chi.URLParam(r, "id"), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, kb)
}

// UpdateKnowledgeBase replaces the knowledge base content by hand.
func (h *Website) UpdateKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req request.UpdateKnowledgeBase
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	kb, err := h.knowledge.Update(r.Context(), chi.URLParam(r, "id"), claims.Sub, req.Content, req.Summary)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, kb)
}

// ClearKnowledgeBase empties the knowledge base content.
func (h *Website) ClearKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.knowledge.Clear(r.Context(), chi.URLParam(r, "id"), claims.Sub); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListConversations returns a website's widget conversations.
func (h *Website) ListConversations(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	conversations, err := h.conversations.ListByWebsite(r.Context(), chi.URLParam(r, "id"), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": conversations})
}

// ListMessages returns a conversation's transcript.
func (h *Website) ListMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	messages, err := h.conversations.Messages(r.Context(), chi.URLParam(r, "id"), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": messages})
}

// DeleteConversation removes a conversation and its messages.
func (h *Website) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.conversations.Delete(r.Context(), chi.URLParam(r, "id"), claims.Sub); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
