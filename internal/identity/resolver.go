// Package identity maps identity-provider principals onto local users.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cityshare/cityshare/internal/auth"
	"github.com/cityshare/cityshare/internal/model"
	"github.com/cityshare/cityshare/internal/store"
)

// ErrEmailTaken is returned by Register when the email already has a user.
var ErrEmailTaken = errors.New("email already registered")

// Resolver looks up the local user for a principal, provisioning a user and
// profile on first sight of a new email.
type Resolver struct {
	DB     *sql.DB
	Logger *slog.Logger

	// OnProvision, if set, is called after a new user is created.
	OnProvision func(*model.User)
}

// NewResolver creates a Resolver.
func NewResolver(db *sql.DB, logger *slog.Logger) *Resolver {
	return &Resolver{DB: db, Logger: logger}
}

// ResolveOrCreateUser returns the user for p.Email. If none exists, it
// creates one together with a profile seeded from the principal's metadata.
func (r *Resolver) ResolveOrCreateUser(ctx context.Context, p auth.Principal) (*model.User, error) {
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return nil, fmt.Errorf("principal has no email")
	}

	user, err := store.GetUserByEmail(ctx, r.DB, email)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = r.provision(ctx, email, "", p)
	if store.IsUniqueViolation(err) {
		// Another request provisioned the same email first.
		user, err = store.GetUserByEmail(ctx, r.DB, email)
		if err == nil && user == nil {
			err = fmt.Errorf("user %q vanished after conflict", email)
		}
		if err != nil {
			return nil, fmt.Errorf("resolving user: %w", err)
		}
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("provisioning user: %w", err)
	}

	r.provisioned(user)
	return user, nil
}

// Register creates a user with a local password, for the built-in identity
// provider.
func (r *Resolver) Register(ctx context.Context, p auth.Principal, passwordHash string) (*model.User, error) {
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return nil, fmt.Errorf("principal has no email")
	}

	existing, err := store.GetUserByEmail(ctx, r.DB, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	user, err := r.provision(ctx, email, passwordHash, p)
	if store.IsUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}

	r.provisioned(user)
	return user, nil
}

func (r *Resolver) provisioned(user *model.User) {
	r.Logger.Info("user provisioned", "user_id", user.ID, "email", user.Email)
	if r.OnProvision != nil {
		r.OnProvision(user)
	}
}

// provision creates the user and profile rows in one transaction.
func (r *Resolver) provision(ctx context.Context, email, passwordHash string, p auth.Principal) (*model.User, error) {
	displayName := DefaultDisplayName(p)

	var user *model.User
	err := store.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		user, err = store.CreateUser(ctx, tx, email, passwordHash)
		if err != nil {
			return err
		}

		update := store.ProfileUpdate{DisplayName: &displayName}
		if p.AvatarURL != "" {
			update.AvatarURL = &p.AvatarURL
		}
		_, err = store.UpsertProfile(ctx, tx, user.ID, update)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DefaultDisplayName picks the principal's display name, falling back to the
// local part of the email and then to "User".
func DefaultDisplayName(p auth.Principal) string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(p.Email, "@"); ok && local != "" {
		return local
	}
	return "User"
}
