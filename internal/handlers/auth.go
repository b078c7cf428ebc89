package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/crucial707/audit-search/internal/middleware"
	"github.com/crucial707/audit-search/internal/models"
	"github.com/crucial707/audit-search/internal/registry"
	"github.com/crucial707/audit-search/internal/repo"
)

// DefaultTokenTTL is used when AuthHandler.TokenTTL is zero.
const DefaultTokenTTL = 24 * time.Hour

// PrincipalTypes resolves the content type id of the principal type, so logins
// can be recorded against the user entity.
type PrincipalTypes interface {
	Principal() registry.TypeHandle
	Identity(ctx context.Context, h registry.TypeHandle) (int, error)
}

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	UserRepo *repo.UserRepo
	// AuditRepo and Types are optional; when both are set every login is
	// appended to the audit log as an access entry.
	AuditRepo *repo.AuditRepo
	Types     PrincipalTypes
	Secret    []byte
	TokenTTL  time.Duration
}

// ==========================
// Login (staff principals with a password only)
// ==========================
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Login    string `json:"login"`
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	login := input.Login
	if login == "" {
		login = input.Username
	}
	if login == "" || input.Password == "" {
		JSONValidationError(w, "validation failed", map[string]string{"login": "required", "password": "required"}, http.StatusBadRequest)
		return
	}

	user, err := h.UserRepo.GetByLogin(r.Context(), login)
	if errors.Is(err, repo.ErrUserNotFound) {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("login: load user")
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if !user.IsStaff {
		JSONError(w, "audit log access requires a staff account", http.StatusForbidden)
		return
	}

	ttl := h.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	expires := time.Now().Add(ttl)
	signed, err := middleware.NewToken(h.Secret, user.ID, user.Login(h.UserRepo.LoginField()), jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	if err != nil {
		JSONError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	h.recordLogin(r, user)

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      signed,
		"expires_at": expires.UTC(),
		"user":       user,
	})
}

func (h *AuthHandler) recordLogin(r *http.Request, user *models.User) {
	if h.AuditRepo == nil || h.Types == nil {
		return
	}
	ctx := r.Context()
	ctID, err := h.Types.Identity(ctx, h.Types.Principal())
	if err != nil {
		log.Warn().Err(err).Msg("login: principal content type")
		return
	}
	_, err = h.AuditRepo.Log(ctx, repo.LogInput{
		ActorID:       &user.ID,
		ObjectRepr:    user.Login(h.UserRepo.LoginField()),
		ContentTypeID: ctID,
		ObjectID:      user.ID,
		CID:           chimw.GetReqID(ctx),
		Action:        models.ActionAccess,
		RemoteAddr:    r.RemoteAddr,
	})
	if err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("login: audit entry")
	}
}
