// Package api exposes the engine's state and edit operations over a
// small JSON API. Handlers read the published snapshot and forward
// writes to the syncer and the outbound action service.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"leadsync/pkg/actions"
	"leadsync/pkg/config"
	"leadsync/pkg/logging"
	"leadsync/pkg/syncer"
	"leadsync/pkg/utils"
)

type server struct {
	sync *syncer.Syncer
	acts *actions.Service
}

// Handler builds the router. Everything under /v1 except login requires
// an authenticated session.
func Handler(s *syncer.Syncer, acts *actions.Service, cfg *config.Config) http.Handler {
	srv := &server{sync: s, acts: acts}

	r := mux.NewRouter()
	r.Use(logging.AccessLog)
	r.Use(rateLimit(&limiterPool{rps: cfg.RateLimit.RPS, burst: cfg.RateLimit.Burst}))

	r.HandleFunc("/healthz", srv.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/login", srv.login).Methods(http.MethodPost)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(srv.requireSession)
	v1.HandleFunc("/logout", srv.logout).Methods(http.MethodPost)
	v1.HandleFunc("/state", srv.state).Methods(http.MethodGet)
	v1.HandleFunc("/stats", srv.stats).Methods(http.MethodGet)
	v1.HandleFunc("/chats", srv.listChats).Methods(http.MethodGet)
	v1.HandleFunc("/chats/{id}", srv.deleteChat).Methods(http.MethodDelete)
	v1.HandleFunc("/chats/{id}/restore", srv.restoreChat).Methods(http.MethodPost)
	v1.HandleFunc("/chats/{id}/messages", srv.chatMessages).Methods(http.MethodGet)
	v1.HandleFunc("/chats/{id}/crm", srv.getCRM).Methods(http.MethodGet)
	v1.HandleFunc("/chats/{id}/crm", srv.patchCRM).Methods(http.MethodPatch)
	v1.HandleFunc("/chats/{id}/read", srv.markRead).Methods(http.MethodPost)
	v1.HandleFunc("/chats/{id}/reply", srv.reply).Methods(http.MethodPost)
	v1.HandleFunc("/chats/{id}/automation", srv.toggleChat).Methods(http.MethodPost)
	v1.HandleFunc("/automation", srv.toggleGlobal).Methods(http.MethodPost)
	v1.HandleFunc("/training", srv.training).Methods(http.MethodGet)
	v1.HandleFunc("/training", srv.sendTraining).Methods(http.MethodPost)
	v1.HandleFunc("/training", srv.clearTraining).Methods(http.MethodDelete)
	v1.HandleFunc("/adjustments", srv.requestAdjustment).Methods(http.MethodPost)

	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireSession rejects requests made before a successful login.
func (s *server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sync.User() == nil {
			utils.JSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}
