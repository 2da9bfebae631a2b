// Package api exposes the account service over HTTP: registration, login and
// per-user account CRUD behind bearer tokens. Handlers are deliberately thin;
// all ledger semantics live behind the services package, this surface only
// stores and returns what it is given.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"finledger/internal/auth"
	"finledger/internal/storage"
)

type Server struct {
	http.Server
	store *storage.Store
	auth  *auth.Service
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, store *storage.Store, authSvc *auth.Service) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store: store,
		auth:  authSvc,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/accounts", s.withAuth(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.withAuth(s.handleCreateAccount))

	return s
}

// withAuth resolves the bearer token to a user id and passes it through.
func (s *Server) withAuth(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		userID, err := s.auth.ParseToken(token)
		if err != nil {
			slog.WarnContext(r.Context(), "Rejected token", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, userID)
	}
}
