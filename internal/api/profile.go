package api

import (
	"cmp"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/cityshare/cityshare/internal/store"
)

// ProfileHandler handles the caller's own profile.
type ProfileHandler struct {
	DB *sql.DB
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Username    *string `json:"username"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	AvatarURL   *string `json:"avatar_url"`
	IsStudent   *bool   `json:"is_student"`

	DisplayNameAlias *string `json:"displayName"`
	AvatarURLAlias   *string `json:"avatarUrl"`
	IsStudentAlias   *bool   `json:"isStudent"`
}

// Me handles GET /profile/me. The profile is null if the user has none.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	profile, err := store.GetProfile(r.Context(), h.DB, user.ID)
	if err != nil {
		slog.Error("failed to get profile", "user_id", user.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to fetch profile")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"profile": profile})
}

// Update handles POST /profile. Omitted fields are left unchanged.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := store.UpsertProfile(r.Context(), h.DB, user.ID, store.ProfileUpdate{
		DisplayName: cmp.Or(req.DisplayName, req.DisplayNameAlias),
		Username:    req.Username,
		Bio:         req.Bio,
		Location:    req.Location,
		AvatarURL:   cmp.Or(req.AvatarURL, req.AvatarURLAlias),
		IsStudent:   cmp.Or(req.IsStudent, req.IsStudentAlias),
	})
	if store.IsUniqueViolation(err) {
		jsonError(w, http.StatusBadRequest, "username already taken")
		return
	}
	if err != nil {
		slog.Error("failed to update profile", "user_id", user.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	slog.Info("profile updated", "user_id", user.ID)
	jsonResponse(w, http.StatusOK, map[string]any{"profile": profile})
}
