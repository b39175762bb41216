package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"friendsAPI/internal/apperr"
	"friendsAPI/internal/friendrequest"
	"friendsAPI/internal/user"
	"friendsAPI/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FriendRequestHandler struct {
	friendRequestService *services.FriendRequestService
	logger               *zap.Logger
}

func NewFriendRequestHandler(friendRequestService *services.FriendRequestService, logger *zap.Logger) *FriendRequestHandler {
	return &FriendRequestHandler{
		friendRequestService: friendRequestService,
		logger:               logger,
	}
}

// POST /api/v1/friend-request/send
func (h *FriendRequestHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req friendrequest.SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	toUserID, err := uuid.Parse(strings.TrimSpace(req.ToUserID))
	if err != nil {
		respondWithAppError(w, h.logger, r, apperr.NotFound("user not found"))
		return
	}

	if _, err := h.friendRequestService.SendRequest(ctx, userID, toUserID); err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, detailResponse{Detail: "Friend request sent."})
}

// POST /api/v1/friend-request/accept
func (h *FriendRequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req friendrequest.RespondRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	if err := h.friendRequestService.AcceptRequest(ctx, userID, req.FromUserEmail); err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, detailResponse{Detail: "Friend request accepted."})
}

// POST /api/v1/friend-request/reject
func (h *FriendRequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req friendrequest.RespondRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	if err := h.friendRequestService.RejectRequest(ctx, userID, req.FromUserEmail); err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, detailResponse{Detail: "Friend request rejected."})
}

// GET /api/v1/friends
func (h *FriendRequestHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	friends, err := h.friendRequestService.ListFriends(ctx, userID)
	if err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	resp := make([]user.Friend, 0, len(friends))
	for _, f := range friends {
		resp = append(resp, f.Public())
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// GET /api/v1/friend-requests/pending
func (h *FriendRequestHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	pending, err := h.friendRequestService.ListPendingRequests(ctx, userID)
	if err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}
	if pending == nil {
		pending = []*friendrequest.Pending{}
	}
	respondWithJSON(w, http.StatusOK, pending)
}
