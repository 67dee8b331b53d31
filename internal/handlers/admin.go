package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/studentbulle/internal/app"
	"github.com/shrimpsizemoose/studentbulle/internal/apperrors"
)

type AdminHandler struct {
	service *app.Service
	auth    *AuthHandler
}

func NewAdminHandler(service *app.Service, auth *AuthHandler) *AdminHandler {
	return &AdminHandler{
		service: service,
		auth:    auth,
	}
}

type reinitializeRequest struct {
	Confirm bool `json:"confirm"`
}

// HandleReinitialize drops and recreates every table. The caller's own
// session goes away with all the others.
func (h *AdminHandler) HandleReinitialize(w http.ResponseWriter, r *http.Request) {
	var req reinitializeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Confirm {
		writeError(w, r, apperrors.NewValidationError("confirm", "must be true to wipe the database"))
		return
	}

	if err := h.service.Reinitialize(r.Context(), SessionFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}

	h.auth.clearCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "reinitialized"})
}
