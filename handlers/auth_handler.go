package handlers

import (
	"context"
	"net/http"
	"time"

	"friendsAPI/internal/user"
	"friendsAPI/services"

	"go.uber.org/zap"
)

type AuthHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

func NewAuthHandler(userService *services.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
	}
}

// POST /api/v1/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req user.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	u, err := h.userService.Signup(ctx, &req)
	if err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, u.Public())
}

// POST /api/v1/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req user.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	pair, err := h.userService.Login(ctx, &req)
	if err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, pair)
}

// POST /api/v1/token/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req user.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	pair, err := h.userService.Refresh(ctx, &req)
	if err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, pair)
}
