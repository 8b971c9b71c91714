package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/services"
)

// Reviews is the ReviewService surface the HTTP layer uses.
type Reviews interface {
	List(ctx context.Context, productID primitive.ObjectID, params url.Values) ([]models.Review, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	Create(ctx context.Context, author *models.User, productID primitive.ObjectID, in services.ReviewInput) (*models.Review, error)
	Update(ctx context.Context, actor *models.User, id primitive.ObjectID, in services.ReviewInput) (*models.Review, error)
	Delete(ctx context.Context, actor *models.User, id primitive.ObjectID) error
}

// ReviewHandler serves /reviews and /products/{productID}/reviews.
type ReviewHandler struct {
	reviews Reviews
	log     *zap.Logger
}

func NewReviewHandler(reviews Reviews, log *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, log: log}
}

type ReviewResponse struct {
	Status string     `json:"status"`
	Data   ReviewData `json:"data"`
}

type ReviewData struct {
	Doc *models.Review `json:"doc"`
}

// productID returns the nested product id, or NilObjectID on /reviews.
func productID(r *http.Request) (primitive.ObjectID, error) {
	if chi.URLParam(r, "productID") == "" {
		return primitive.NilObjectID, nil
	}
	return objectIDParam(r, "productID")
}

// List handles GET /
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	pid, err := productID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	reviews, err := h.reviews.List(r.Context(), pid, r.URL.Query())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Status:      statusSuccess,
		RequestedAt: time.Now().UTC(),
		Results:     len(reviews),
		Data:        ListData{Docs: reviews},
	})
}

// Get handles GET /{id}
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	review, err := h.reviews.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ReviewResponse{Status: statusSuccess, Data: ReviewData{Doc: review}})
}

// Create handles POST /
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	pid, err := productID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in services.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	review, err := h.reviews.Create(r.Context(), u, pid, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, ReviewResponse{Status: statusSuccess, Data: ReviewData{Doc: review}})
}

// Update handles PATCH /{id}
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in services.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	review, err := h.reviews.Update(r.Context(), u, id, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ReviewResponse{Status: statusSuccess, Data: ReviewData{Doc: review}})
}

// Delete handles DELETE /{id}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.reviews.Delete(r.Context(), u, id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
