package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"friendsAPI/internal/apperr"
	"friendsAPI/middleware"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type detailResponse struct {
	Detail string `json:"detail"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal","detail":"Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, kind apperr.Kind, message string) {
	respondWithJSON(w, code, map[string]string{"error": string(kind), "detail": message})
}

// respondWithAppError maps err to its status code. Internal errors are
// logged with their cause and answered with a generic message.
func respondWithAppError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondWithError(w, apperr.HTTPStatus(kind), kind, apperr.MessageOf(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is empty")
		}
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// currentUser writes a 401 and returns false when the request carries no
// authenticated user.
func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "User not authenticated")
	}
	return userID, ok
}
