package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cityshare/cityshare/internal/model"
)

// DefaultCategories are seeded into a new database.
var DefaultCategories = []string{
	"Clothing",
	"Tools",
	"Furniture",
	"Electronics",
	"Books",
	"Toys",
	"Sports Equipment",
	"Kitchen",
	"Decor",
	"Other",
}

// GetOrCreateCategory returns the category with the given name, creating it
// if needed. Names match case-insensitively; an existing category keeps the
// casing it was created with.
func GetOrCreateCategory(ctx context.Context, db Querier, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name required")
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO categories (name) VALUES (?) ON CONFLICT (name) DO NOTHING`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	c, err := GetCategoryByName(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %q missing after insert", name)
	}
	return c, nil
}

// GetCategory returns a category by ID.
func GetCategory(ctx context.Context, db Querier, id int64) (*model.Category, error) {
	c := &model.Category{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// GetCategoryByName returns a category by name (case-insensitive).
func GetCategoryByName(ctx context.Context, db Querier, name string) (*model.Category, error) {
	c := &model.Category{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM categories WHERE name = ?`, strings.TrimSpace(name),
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category by name: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, db Querier) ([]model.Category, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, created_at FROM categories ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SeedCategories creates any of the named categories that don't exist yet.
func SeedCategories(ctx context.Context, db Querier, names []string) error {
	for _, name := range names {
		if _, err := GetOrCreateCategory(ctx, db, name); err != nil {
			return fmt.Errorf("seeding category %q: %w", name, err)
		}
	}
	return nil
}
