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

// Orders is the OrderService surface the HTTP layer uses.
type Orders interface {
	Place(ctx context.Context, buyer *models.User, in services.OrderInput) (*models.Order, error)
	Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Order, error)
	Track(ctx context.Context, number string) (*models.Order, error)
	List(ctx context.Context, actor *models.User, params url.Values) ([]models.Order, error)
	ListByStatus(ctx context.Context, status string, params url.Values) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, in services.StatusInput) (*models.Order, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// OrderHandler serves /orders.
type OrderHandler struct {
	orders Orders
	log    *zap.Logger
}

func NewOrderHandler(orders Orders, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

type OrderResponse struct {
	Status string    `json:"status"`
	Data   OrderData `json:"data"`
}

type OrderData struct {
	Order *models.Order `json:"order"`
}

func (h *OrderHandler) place(w http.ResponseWriter, r *http.Request, buyer *models.User) {
	var in services.OrderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	o, err := h.orders.Place(r.Context(), buyer, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, OrderResponse{Status: statusSuccess, Data: OrderData{Order: o}})
}

// PlaceGuest handles POST /guest
func (h *OrderHandler) PlaceGuest(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, nil)
}

// Place handles POST /
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	u, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.place(w, r, u)
}

// Track handles GET /track/{orderNumber}
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Track(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderResponse{Status: statusSuccess, Data: OrderData{Order: o}})
}

func (h *OrderHandler) writeList(w http.ResponseWriter, orders []models.Order) {
	writeJSON(w, http.StatusOK, ListResponse{
		Status:      statusSuccess,
		RequestedAt: time.Now().UTC(),
		Results:     len(orders),
		Data:        ListData{Docs: orders},
	})
}

// List handles GET /
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	u, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	orders, err := h.orders.List(r.Context(), u, r.URL.Query())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.writeList(w, orders)
}

// ByStatus handles GET /status/{status}
func (h *OrderHandler) ByStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByStatus(r.Context(), chi.URLParam(r, "status"), r.URL.Query())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.writeList(w, orders)
}

// Get handles GET /{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	o, err := h.orders.Get(r.Context(), u, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderResponse{Status: statusSuccess, Data: OrderData{Order: o}})
}

// UpdateStatus handles PATCH /{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var in services.StatusInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderResponse{Status: statusSuccess, Data: OrderData{Order: o}})
}

// Delete handles DELETE /{id}
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.orders.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
