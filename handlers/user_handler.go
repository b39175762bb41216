package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"friendsAPI/internal/apperr"
	"friendsAPI/internal/user"
	"friendsAPI/services"

	"go.uber.org/zap"
)

type UserHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

type searchResponse struct {
	Count    int           `json:"count"`
	Next     *string       `json:"next"`
	Previous *string       `json:"previous"`
	Results  []user.Friend `json:"results"`
}

// GET /api/v1/users/search?q=&page=
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := currentUser(w, r); !ok {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithAppError(w, h.logger, r, apperr.NotFound("Invalid page."))
			return
		}
		page = n
	}

	result, err := h.userService.SearchUsers(ctx, r.URL.Query().Get("q"), page)
	if err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	resp := searchResponse{
		Count:   result.Count,
		Results: make([]user.Friend, 0, len(result.Results)),
	}
	for _, u := range result.Results {
		resp.Results = append(resp.Results, u.Public())
	}
	if result.HasNext() {
		next := pageURL(r, result.Page+1)
		resp.Next = &next
	}
	if result.Page > 1 {
		prev := pageURL(r, result.Page-1)
		resp.Previous = &prev
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// pageURL rebuilds the request URL pointing at page. The first page carries
// no page parameter.
func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// GET /api/v1/users/me/qr
func (h *UserHandler) InviteCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	code, err := h.userService.InviteCode(ctx, userID)
	if err != nil {
		respondWithAppError(w, h.logger, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, code)
}
