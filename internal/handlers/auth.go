package handlers

import (
	"net/http"
	"time"

	"github.com/shrimpsizemoose/studentbulle/internal/app"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

type AuthHandler struct {
	service *app.Service
}

func NewAuthHandler(service *app.Service) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	CSRFToken string      `json:"csrf_token"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type registerRequest struct {
	Username string      `json:"username" validate:"required"`
	Password string      `json:"password" validate:"required"`
	Confirm  string      `json:"confirm" validate:"required,eqfield=Password"`
	Role     models.Role `json:"role"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := models.ValidateStruct(&req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.service.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.service.Config.Auth.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.service.Config.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		CSRFToken: session.CSRFToken,
		Username:  session.Username,
		Role:      session.Role,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if session := SessionFrom(r.Context()); session != nil {
		if err := h.service.Auth.Logout(r.Context(), session.Token); err != nil {
			writeError(w, r, err)
			return
		}
	}

	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SessionFrom(r.Context()))
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := models.ValidateStruct(&req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	user, err := h.service.Auth.Register(r.Context(), SessionFrom(r.Context()), req.Username, req.Password, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.service.Config.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.service.Config.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
