package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cityshare/cityshare/internal/model"
)

// AddListingImages appends images to a listing after any it already has,
// keeping the given order.
func AddListingImages(ctx context.Context, db Querier, listingID int64, urls []string) ([]model.ListingImage, error) {
	var next int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM listing_images WHERE listing_id = ?`,
		listingID,
	).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("getting next image position: %w", err)
	}

	for i, url := range urls {
		_, err := db.ExecContext(ctx,
			`INSERT INTO listing_images (listing_id, url, position) VALUES (?, ?, ?)`,
			listingID, url, next+i,
		)
		if err != nil {
			return nil, fmt.Errorf("adding listing image: %w", err)
		}
	}

	return ListListingImages(ctx, db, listingID)
}

// ListListingImages returns a listing's images in order.
func ListListingImages(ctx context.Context, db Querier, listingID int64) ([]model.ListingImage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, listing_id, url, position, created_at
		 FROM listing_images WHERE listing_id = ?
		 ORDER BY position, id`, listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	images := []model.ListingImage{}
	for rows.Next() {
		var img model.ListingImage
		if err := rows.Scan(&img.ID, &img.ListingID, &img.URL, &img.Position, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// GetListingImage returns an image by ID.
func GetListingImage(ctx context.Context, db Querier, id int64) (*model.ListingImage, error) {
	img := &model.ListingImage{}
	err := db.QueryRowContext(ctx,
		`SELECT id, listing_id, url, position, created_at FROM listing_images WHERE id = ?`, id,
	).Scan(&img.ID, &img.ListingID, &img.URL, &img.Position, &img.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting image: %w", err)
	}
	return img, nil
}

// DeleteListingImage removes an image row.
func DeleteListingImage(ctx context.Context, db Querier, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM listing_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

// ImageURLInUse reports whether any listing still refers to url, either as
// one of its images or as its primary image.
func ImageURLInUse(ctx context.Context, db Querier, url string) (bool, error) {
	var used bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM listing_images WHERE url = ?)
		     OR EXISTS (SELECT 1 FROM listings WHERE image_url = ?)`,
		url, url,
	).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("checking image url: %w", err)
	}
	return used, nil
}

// PrimaryImages returns the first image of each listing that has one.
func PrimaryImages(ctx context.Context, db Querier, listingIDs []int64) (map[int64]model.ListingImage, error) {
	primary := make(map[int64]model.ListingImage, len(listingIDs))
	if len(listingIDs) == 0 {
		return primary, nil
	}

	placeholders := strings.Repeat("?,", len(listingIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(listingIDs))
	for i, id := range listingIDs {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, listing_id, url, position, created_at
		 FROM listing_images WHERE listing_id IN (`+placeholders+`)
		 ORDER BY listing_id, position, id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting primary images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img model.ListingImage
		if err := rows.Scan(&img.ID, &img.ListingID, &img.URL, &img.Position, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		if _, seen := primary[img.ListingID]; !seen {
			primary[img.ListingID] = img
		}
	}
	return primary, rows.Err()
}
