package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cityshare/cityshare/internal/model"
)

// ListingFilter selects listings. Zero values mean "any".
type ListingFilter struct {
	Query        string
	CategoryID   int64
	CategoryName string
	Kind         string
	UsageStatus  string
	Status       string
	OwnerID      int64

	// Limit 0 returns every matching row.
	Limit  int
	Offset int
}

// where builds the WHERE clause. Queries using it must join categories as c.
func (f ListingFilter) where() (string, []any) {
	query := ` WHERE 1=1`
	var args []any

	if f.Query != "" {
		pattern := "%" + escapeLike(f.Query) + "%"
		query += ` AND (l.item_name LIKE ? ESCAPE '\' OR l.description LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	if f.CategoryID > 0 {
		query += ` AND l.category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.CategoryName != "" {
		query += ` AND c.name = ?`
		args = append(args, f.CategoryName)
	}
	if f.Kind != "" {
		query += ` AND l.type = ?`
		args = append(args, f.Kind)
	}
	if f.UsageStatus != "" {
		query += ` AND l.usage_status = ?`
		args = append(args, f.UsageStatus)
	}
	if f.Status != "" {
		query += ` AND l.status = ?`
		args = append(args, f.Status)
	}
	if f.OwnerID > 0 {
		query += ` AND l.user_id = ?`
		args = append(args, f.OwnerID)
	}

	return query, args
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

const listingColumns = `
	l.id, l.listing_number, l.user_id, l.item_name, l.description, l.category_id, l.type,
	l.condition, l.price_cents, l.image_url, l.status, l.usage_status, l.borrowed_by_user_id,
	l.created_at, l.updated_at,
	c.name, c.created_at,
	p.display_name, p.username, p.avatar_url, p.location`

const listingFrom = `
	FROM listings l
	LEFT JOIN categories c ON c.id = l.category_id
	LEFT JOIN profiles p ON p.user_id = l.user_id`

// InsertListing inserts a listing row and assigns it the next listing number.
// Returns the new listing ID.
func InsertListing(ctx context.Context, db Querier, l *model.Listing) (int64, error) {
	base, err := ListingNumberBase(ctx, db)
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO listings (listing_number, user_id, item_name, description, category_id, type,
		                       condition, price_cents, image_url, status, usage_status)
		 VALUES ((SELECT COALESCE(MAX(listing_number), ?) + 1 FROM listings),
		         ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		base, l.UserID, l.ItemName, nullString(l.Description), l.CategoryID, l.Kind,
		nullString(l.Condition), l.PriceCents, nullString(l.ImageURL), l.Status, l.UsageStatus,
	)
	if err != nil {
		return 0, fmt.Errorf("creating listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting listing id: %w", err)
	}
	return id, nil
}

// GetListing returns a listing by ID with its category, owner profile
// (including location) and every image in order.
func GetListing(ctx context.Context, db Querier, id int64) (*model.Listing, error) {
	row := db.QueryRowContext(ctx,
		`SELECT`+listingColumns+listingFrom+` WHERE l.id = ?`, id,
	)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}

	images, err := ListListingImages(ctx, db, id)
	if err != nil {
		return nil, err
	}
	l.Images = images
	return l, nil
}

// ListListings returns one page of listings matching f, newest first, each
// with at most its primary image.
func ListListings(ctx context.Context, db Querier, f ListingFilter) ([]model.Listing, error) {
	where, args := f.where()
	query := `SELECT` + listingColumns + listingFrom + where +
		` ORDER BY l.created_at DESC, l.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		l.Owner.Location = ""
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	// Release the connection before the image query.
	rows.Close()

	if len(listings) == 0 {
		return listings, nil
	}

	ids := make([]int64, len(listings))
	for i := range listings {
		ids[i] = listings[i].ID
	}
	primary, err := PrimaryImages(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		listings[i].Images = []model.ListingImage{}
		if img, ok := primary[listings[i].ID]; ok {
			listings[i].Images = append(listings[i].Images, img)
		}
	}
	return listings, nil
}

// CountListings returns the number of listings matching f, ignoring
// Limit and Offset.
func CountListings(ctx context.Context, db Querier, f ListingFilter) (int, error) {
	where, args := f.where()
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings l LEFT JOIN categories c ON c.id = l.category_id`+where,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting listings: %w", err)
	}
	return count, nil
}

// UpdateListing writes every mutable column of l.
func UpdateListing(ctx context.Context, db Querier, l *model.Listing) error {
	_, err := db.ExecContext(ctx,
		`UPDATE listings
		 SET item_name = ?, description = ?, category_id = ?, type = ?, condition = ?,
		     price_cents = ?, image_url = ?, status = ?, usage_status = ?,
		     borrowed_by_user_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		l.ItemName, nullString(l.Description), l.CategoryID, l.Kind, nullString(l.Condition),
		l.PriceCents, nullString(l.ImageURL), l.Status, l.UsageStatus,
		l.BorrowedByUserID, l.ID,
	)
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}
	return nil
}

// SetListingStatus changes a listing's lifecycle status.
func SetListingStatus(ctx context.Context, db Querier, id int64, status string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("setting listing status: %w", err)
	}
	return nil
}

// SetListingImageURL changes a listing's primary image reference.
func SetListingImageURL(ctx context.Context, db Querier, id int64, url string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE listings SET image_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullString(url), id,
	)
	if err != nil {
		return fmt.Errorf("setting listing image: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(s scanner) (*model.Listing, error) {
	l := &model.Listing{Owner: &model.ListingOwner{}}
	var description, condition, imageURL sql.NullString
	var categoryName sql.NullString
	var categoryCreated *time.Time
	var displayName, username, avatarURL, location sql.NullString

	err := s.Scan(
		&l.ID, &l.ListingNumber, &l.UserID, &l.ItemName, &description, &l.CategoryID, &l.Kind,
		&condition, &l.PriceCents, &imageURL, &l.Status, &l.UsageStatus, &l.BorrowedByUserID,
		&l.CreatedAt, &l.UpdatedAt,
		&categoryName, &categoryCreated,
		&displayName, &username, &avatarURL, &location,
	)
	if err != nil {
		return nil, err
	}

	l.Description = description.String
	l.Condition = condition.String
	l.ImageURL = imageURL.String
	if l.CategoryID != nil && categoryName.Valid {
		l.Category = &model.Category{ID: *l.CategoryID, Name: categoryName.String}
		if categoryCreated != nil {
			l.Category.CreatedAt = *categoryCreated
		}
	}
	l.Owner.ID = l.UserID
	l.Owner.DisplayName = displayName.String
	l.Owner.Username = username.String
	l.Owner.AvatarURL = avatarURL.String
	l.Owner.Location = location.String
	return l, nil
}
