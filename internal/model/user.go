package model

import "time"

// User is an account, keyed by email address. Identity is owned by the
// external provider; PasswordHash is only set for locally registered users.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPassword reports whether the user registered with a local password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Profile carries a user's public details. Every field is optional.
type Profile struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Username    string    `json:"username,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Location    string    `json:"location,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsStudent   bool      `json:"is_student"`
	UpdatedAt   time.Time `json:"updated_at"`
}
