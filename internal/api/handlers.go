package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finledger/internal/auth"
	"finledger/internal/core"
)

const (
	defaultCurrency = "COP"
	defaultLocale   = "es-CO"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "email, password and name are required")
		return
	}

	if existing, err := s.store.UserByEmail(r.Context(), req.Email); err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	} else if existing != nil {
		writeError(w, http.StatusBadRequest, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.ErrorContext(r.Context(), "Hash password failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := core.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Currency:     defaultCurrency,
		Locale:       defaultLocale,
		Theme:        core.ThemeLight,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		slog.ErrorContext(r.Context(), "Create user failed", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Issue token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	slog.InfoContext(r.Context(), "User registered", "user", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Unknown email and wrong password answer identically.
	user, err := s.store.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Issue token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: *user})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, userID string) {
	accounts, err := s.store.Accounts(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list accounts failed")
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

type createAccountRequest struct {
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, userID string) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}

	now := time.Now().UTC()
	account := core.Account{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           strings.TrimSpace(req.Name),
		Type:           core.AccountType(req.Type),
		Currency:       req.Currency,
		OpeningBalance: req.InitialBalance,
		CurrentBalance: req.InitialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := account.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		slog.ErrorContext(r.Context(), "Create account failed", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "create account failed")
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
