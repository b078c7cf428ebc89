package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/crucial707/audit-search/internal/middleware"
	"github.com/crucial707/audit-search/internal/repo"
)

// ==========================
// UserHandler
// ==========================
type UserHandler struct {
	Repo *repo.UserRepo
}

// ==========================
// Me (the authenticated principal)
// ==========================
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.Repo.GetByID(r.Context(), id)
	if errors.Is(err, repo.ErrUserNotFound) {
		JSONError(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", id).Msg("load current user")
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
