package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
    password_hash TEXT,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS profiles (
    user_id      INTEGER PRIMARY KEY REFERENCES users(id),
    display_name TEXT,
    username     TEXT COLLATE NOCASE,
    bio          TEXT,
    location     TEXT,
    avatar_url   TEXT,
    is_student   INTEGER NOT NULL DEFAULT 0,
    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username
    ON profiles(username) WHERE username IS NOT NULL;

CREATE TABLE IF NOT EXISTS categories (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE COLLATE NOCASE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS listings (
    id                  INTEGER PRIMARY KEY,
    listing_number      INTEGER NOT NULL UNIQUE,
    user_id             INTEGER NOT NULL REFERENCES users(id),
    item_name           TEXT NOT NULL CHECK (length(trim(item_name)) > 0),
    description         TEXT,
    category_id         INTEGER REFERENCES categories(id),
    type                TEXT NOT NULL CHECK (type IN ('sell', 'donate', 'borrow')),
    condition           TEXT,
    price_cents         INTEGER,
    image_url           TEXT,
    status              TEXT NOT NULL DEFAULT 'active'
                        CHECK (status IN ('active', 'paused', 'closed', 'sold', 'deleted')),
    usage_status        TEXT NOT NULL DEFAULT 'available'
                        CHECK (usage_status IN ('available', 'reserved', 'borrowed')),
    borrowed_by_user_id INTEGER REFERENCES users(id),
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK ((type = 'sell' AND price_cents IS NOT NULL AND price_cents > 0)
        OR (type <> 'sell' AND price_cents IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_listings_status_created
    ON listings(status, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_listings_user ON listings(user_id);
CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category_id);

CREATE TABLE IF NOT EXISTS listing_images (
    id         INTEGER PRIMARY KEY,
    listing_id INTEGER NOT NULL REFERENCES listings(id),
    url        TEXT NOT NULL,
    position   INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_listing_images_listing
    ON listing_images(listing_id, position);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
