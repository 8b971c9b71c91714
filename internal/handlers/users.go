package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/audit"
	"github.com/AnshRaj112/storefront-backend/internal/models"
)

// Profiles is the UserService surface the HTTP layer uses.
type Profiles interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateMe(ctx context.Context, id primitive.ObjectID, body map[string]interface{}) (*models.User, error)
	DeleteMe(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, params url.Values) ([]models.User, error)
}

// AuthEvents reads the audit log. A nil AuthEvents disables the endpoint.
type AuthEvents interface {
	Recent(ctx context.Context, userID string, limit int) ([]audit.Event, error)
}

type UserHandler struct {
	users  Profiles
	events AuthEvents
	log    *zap.Logger
}

func NewUserHandler(users Profiles, events AuthEvents, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, events: events, log: log}
}

type UserResponse struct {
	Status string   `json:"status"`
	Data   UserData `json:"data"`
}

type UserData struct {
	User *models.User `json:"user"`
}

type UserListResponse struct {
	Status  string       `json:"status"`
	Results int          `json:"results"`
	Data    UserListData `json:"data"`
}

type UserListData struct {
	Users []models.User `json:"users"`
}

type AuthEventsResponse struct {
	Status  string         `json:"status"`
	Results int            `json:"results"`
	Data    AuthEventsData `json:"data"`
}

type AuthEventsData struct {
	Events []audit.Event `json:"events"`
}

// Me handles GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Status: statusSuccess, Data: UserData{User: u}})
}

// UpdateMe handles PATCH /updateMe
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	body := map[string]interface{}{}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	updated, err := h.users.UpdateMe(r.Context(), u.ID, body)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Status: statusSuccess, Data: UserData{User: updated}})
}

// DeleteMe handles DELETE /deleteMe
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	u, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.users.DeleteMe(r.Context(), u.ID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET / (admin)
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), r.URL.Query())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{
		Status:  statusSuccess,
		Results: len(users),
		Data:    UserListData{Users: users},
	})
}

// Get handles GET /{id} (admin)
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Status: statusSuccess, Data: UserData{User: u}})
}

// AuthEvents handles GET /{id}/authEvents (admin)
func (h *UserHandler) AuthEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, r, h.log, apperr.NotFound("Audit log is not enabled"))
		return
	}
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.events.Recent(r.Context(), id.Hex(), limit)
	if err != nil {
		writeError(w, r, h.log, apperr.Unexpected("could not read audit log", err))
		return
	}
	writeJSON(w, http.StatusOK, AuthEventsResponse{
		Status:  statusSuccess,
		Results: len(events),
		Data:    AuthEventsData{Events: events},
	})
}
