package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cityshare/cityshare/internal/auth"
	"github.com/cityshare/cityshare/internal/identity"
	"github.com/cityshare/cityshare/internal/store"
)

// AuthHandler is the built-in identity provider: it registers users with a
// local password and issues the same tokens an external provider would.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
	Resolver  *identity.Resolver
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if local, domain, ok := strings.Cut(email, "@"); !ok || local == "" || domain == "" {
		jsonError(w, http.StatusBadRequest, "valid email required")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	principal := auth.Principal{Email: email, DisplayName: strings.TrimSpace(req.DisplayName)}
	user, err := h.Resolver.Register(r.Context(), principal, hash)
	if errors.Is(err, identity.ErrEmailTaken) {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to register user", "email", email, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	principal.DisplayName = identity.DefaultDisplayName(principal)
	token, err := auth.GenerateToken(h.JWTSecret, principal)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user registered", "user_id", user.ID)
	jsonResponse(w, http.StatusCreated, tokenResponse{Token: token})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !user.HasPassword() || !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	principal := auth.Principal{Email: user.Email}
	profile, err := store.GetProfile(r.Context(), h.DB, user.ID)
	if err != nil {
		slog.Error("failed to get profile", "user_id", user.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if profile != nil {
		principal.DisplayName = profile.DisplayName
		principal.AvatarURL = profile.AvatarURL
	}

	token, err := auth.GenerateToken(h.JWTSecret, principal)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user logged in", "user_id", user.ID)
	jsonResponse(w, http.StatusOK, tokenResponse{Token: token})
}

// ChangePassword handles POST /auth/password. Users who signed in through
// an external provider have no current password and may set one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if user.HasPassword() && !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		slog.Warn("password change rejected", "user_id", user.ID, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := store.SetUserPassword(r.Context(), h.DB, user.ID, hash); err != nil {
		slog.Error("failed to set password", "user_id", user.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	slog.Info("password changed", "user_id", user.ID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// Logout handles POST /auth/logout by revoking the caller's token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if claims.ID != "" {
		expiresAt := time.Now().Add(auth.TokenExpiry)
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
		if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expiresAt); err != nil {
			slog.Error("failed to revoke token", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to log out")
			return
		}
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}
