package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/middleware"
	"github.com/AnshRaj112/storefront-backend/internal/models"
)

// maxBodyBytes caps JSON request bodies at 10kb.
const maxBodyBytes = 10 << 10

const statusSuccess = "success"

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err and logs the cause of unexpected failures.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindUnexpected {
		log.Error(e.Message,
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("path", middleware.LogPath(r)),
			zap.Error(e.Cause),
		)
	}
	apperr.Write(w, e)
}

// decodeJSON reads a JSON object body into v. An empty body leaves v
// untouched; any other non-object value, null included, is rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var raw json.RawMessage
	err := json.NewDecoder(r.Body).Decode(&raw)
	if errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("Request body too large")
	}
	if err != nil {
		return apperr.Validation("Invalid request body")
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return apperr.Validation("Request body must be a JSON object")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// objectIDParam parses the chi URL parameter name as an ObjectID.
func objectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("Invalid " + name + ": " + raw)
	}
	return id, nil
}

// requireUser returns the user attached by middleware.Protect.
func requireUser(r *http.Request) (*models.User, error) {
	u := middleware.CurrentUser(r.Context())
	if u == nil {
		return nil, apperr.Auth("You are not logged in! Please log in to get access.")
	}
	return u, nil
}
