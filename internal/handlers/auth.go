package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/services"
)

// Authenticator is the AuthService surface the HTTP layer uses.
type Authenticator interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, password, confirm string) (*services.Session, error)
	ChangePassword(ctx context.Context, userID primitive.ObjectID, current, password, confirm string) (*services.Session, error)
}

type AuthHandler struct {
	auth Authenticator
	log  *zap.Logger
}

func NewAuthHandler(auth Authenticator, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

// SessionResponse is returned by every endpoint that issues a token.
type SessionResponse struct {
	Status string      `json:"status"`
	Token  string      `json:"token"`
	Data   SessionData `json:"data"`
}

type SessionData struct {
	User *models.User `json:"user"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, code int, s *services.Session) {
	writeJSON(w, code, SessionResponse{
		Status: statusSuccess,
		Token:  s.Token,
		Data:   SessionData{User: s.User},
	})
}

// Signup handles POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	s, err := h.auth.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.writeSession(w, http.StatusCreated, s)
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	s, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.writeSession(w, http.StatusOK, s)
}

// ForgotPassword handles POST /forgotPassword
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Token sent to email!"})
}

// ResetPassword handles PATCH /resetPassword/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	s, err := h.auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password, req.PasswordConfirm)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.writeSession(w, http.StatusOK, s)
}

// UpdatePassword handles PATCH /updateMyPassword for the logged-in user.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	u, err := requireUser(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req UpdatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	s, err := h.auth.ChangePassword(r.Context(), u.ID, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.writeSession(w, http.StatusOK, s)
}
