package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/sitehelper/internal/api/handler"
	mw "github.com/edvin/sitehelper/internal/api/middleware"
	"github.com/edvin/sitehelper/internal/config"
	"github.com/edvin/sitehelper/internal/core"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, cfg *config.Config, services *core.Services) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(chimw.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics
	s.router.Handle("/metrics", promhttp.Handler())

	// Health checks
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// Widget endpoints: unauthenticated, called from visitors' browsers on
	// arbitrary customer domains.
	widget := handler.NewWidget(s.services.Chat)
	s.router.Group(func(r chi.Router) {
		r.Use(mw.WidgetCORS)
		r.Post("/widget/chat", widget.Chat)
		r.Options("/widget/chat", widget.Chat)
		r.Get("/widget/{websiteID}/config", widget.Config)
	})

	// Dashboard API
	s.router.Group(func(r chi.Router) {
		r.Use(mw.CORS(s.cfg.CORSOrigins))

		auth := handler.NewAuth(s.services.Auth, s.services.BusinessAccount)
		r.Post("/api/v1/auth/signup", auth.Signup)
		r.Post("/api/v1/auth/login", auth.Login)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(mw.Auth(s.services.Auth))

			r.Get("/me", auth.Me)

			account := handler.NewAccount(s.services.BusinessAccount, s.services.Team, s.services.Audit)
			r.Get("/accounts/{id}", account.Get)
			r.Put("/accounts/{id}", account.Update)
			r.Delete("/accounts/{id}", account.Delete)
			r.Get("/accounts/{id}/members", account.ListMembers)
			r.Put("/accounts/{id}/members/{memberID}/role", account.ChangeMemberRole)
			r.Delete("/accounts/{id}/members/{memberID}", account.RemoveMember)
			r.Post("/accounts/{id}/members/{memberID}/suspend", account.SuspendMember)
			r.Post("/accounts/{id}/members/{memberID}/reactivate", account.ReactivateMember)
			r.Get("/accounts/{id}/audit-logs", account.ListAuditLogs)

			invitation := handler.NewInvitation(s.services.Invitation)
			r.Post("/invitations", invitation.Send)
			r.Post("/invitations/accept", invitation.Accept)
			r.Post("/invitations/{id}/revoke", invitation.Revoke)
			r.Post("/invitations/{id}/resend", invitation.Resend)
			r.Get("/accounts/{id}/invitations", invitation.ListByAccount)

			website := handler.NewWebsite(s.services.Website, s.services.KnowledgeBase, s.services.Conversation)
			r.Post("/websites", website.Create)
			r.Get("/accounts/{id}/websites", website.ListByAccount)
			r.Get("/websites/{id}", website.Get)
			r.Put("/websites/{id}", website.Update)
			r.Delete("/websites/{id}", website.Delete)
			r.Put("/websites/{id}/widget-config", website.UpdateWidgetConfig)
			r.Post("/websites/{id}/scrape", website.Scrape)
			r.Get("/websites/{id}/knowledge-base", website.GetKnowledgeBase)
			r.Put("/websites/{id}/knowledge-base", website.UpdateKnowledgeBase)
			r.Delete("/websites/{id}/knowledge-base", website.ClearKnowledgeBase)
			r.Get("/websites/{id}/conversations", website.ListConversations)
			r.Get("/conversations/{id}/messages", website.ListMessages)
			r.Delete("/conversations/{id}", website.DeleteConversation)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
