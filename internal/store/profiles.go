package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cityshare/cityshare/internal/model"
)

// ProfileUpdate holds the profile fields to change. Nil fields are left as
// they are; a pointer to "" clears the field.
type ProfileUpdate struct {
	DisplayName *string
	Username    *string
	Bio         *string
	Location    *string
	AvatarURL   *string
	IsStudent   *bool
}

// GetProfile returns a user's profile.
func GetProfile(ctx context.Context, db Querier, userID int64) (*model.Profile, error) {
	p := &model.Profile{}
	var displayName, username, bio, location, avatarURL sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT user_id, display_name, username, bio, location, avatar_url, is_student, updated_at
		 FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &displayName, &username, &bio, &location, &avatarURL, &p.IsStudent, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	p.DisplayName = displayName.String
	p.Username = username.String
	p.Bio = bio.String
	p.Location = location.String
	p.AvatarURL = avatarURL.String
	return p, nil
}

// UpsertProfile creates the user's profile if missing and applies the update.
func UpsertProfile(ctx context.Context, db Querier, userID int64, u ProfileUpdate) (*model.Profile, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO profiles (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	var sets []string
	var args []any
	set := func(column string, v *string) {
		if v == nil {
			return
		}
		sets = append(sets, column+" = ?")
		args = append(args, nullString(strings.TrimSpace(*v)))
	}
	set("display_name", u.DisplayName)
	set("username", u.Username)
	set("bio", u.Bio)
	set("location", u.Location)
	set("avatar_url", u.AvatarURL)
	if u.IsStudent != nil {
		sets = append(sets, "is_student = ?")
		args = append(args, *u.IsStudent)
	}

	if len(sets) > 0 {
		args = append(args, userID)
		_, err = db.ExecContext(ctx,
			`UPDATE profiles SET `+strings.Join(sets, ", ")+`, updated_at = CURRENT_TIMESTAMP
			 WHERE user_id = ?`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("updating profile: %w", err)
		}
	}

	return GetProfile(ctx, db, userID)
}
