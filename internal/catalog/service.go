// Package catalog implements listing creation, browsing and maintenance on
// top of the store.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cityshare/cityshare/internal/blob"
	"github.com/cityshare/cityshare/internal/model"
	"github.com/cityshare/cityshare/internal/store"
)

// Pagination bounds for ListListings.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Service is the listing catalog.
type Service struct {
	db  *sql.DB
	log *slog.Logger

	// OnCreate, if set, is called after a listing is committed.
	OnCreate func(*model.Listing)

	// Blobs, if set, receives deletes for uploaded images no listing
	// refers to any more.
	Blobs blob.Store
}

// NewService creates a Service.
func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{db: db, log: logger}
}

// CreateListingInput is the caller-supplied part of a new listing.
type CreateListingInput struct {
	ItemName    string
	Description string
	// Category is a category ID or a category name.
	Category  string
	Kind      string
	Condition string
	// Price is the raw price in cents. Only used for sell listings.
	Price  string
	Images []string
	// ImageURL overrides the primary image. Defaults to the first image.
	ImageURL string
}

// CreateListing validates in and stores the listing, its category and its
// images in one transaction.
func (s *Service) CreateListing(ctx context.Context, user *model.User, in CreateListingInput) (*model.Listing, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	name := strings.TrimSpace(in.ItemName)
	if name == "" {
		return nil, invalidInput(ReasonItemNameRequired)
	}
	kind := normalizeEnum(in.Kind)
	if !model.ValidKind(kind) {
		return nil, invalidInput(ReasonInvalidKind)
	}
	price, err := parsePrice(kind, in.Price)
	if err != nil {
		return nil, err
	}

	images := cleanURLs(in.Images)
	l := &model.Listing{
		UserID:      user.ID,
		ItemName:    name,
		Description: strings.TrimSpace(in.Description),
		Kind:        kind,
		Condition:   model.NormalizeCondition(in.Condition),
		PriceCents:  price,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Status:      model.StatusActive,
		UsageStatus: model.UsageAvailable,
	}
	if l.ImageURL == "" && len(images) > 0 {
		l.ImageURL = images[0]
	}

	var id int64
	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		categoryID, err := resolveCategory(ctx, tx, in.Category)
		if err != nil {
			return err
		}
		l.CategoryID = categoryID

		id, err = store.InsertListing(ctx, tx, l)
		if err != nil {
			return err
		}
		if len(images) > 0 {
			if _, err := store.AddListingImages(ctx, tx, id, images); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("creating listing", err)
	}

	created, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("listing created",
		"listing_id", created.ID,
		"listing_number", created.ListingNumber,
		"user_id", user.ID,
		"type", created.Kind,
	)
	if s.OnCreate != nil {
		s.OnCreate(created)
	}
	return created, nil
}

// ListFilter is a browse request. Empty fields mean "any", except Status
// which defaults to active. Unknown enum values are ignored.
type ListFilter struct {
	Query string
	// Category is a category ID or a category name.
	Category    string
	Kind        string
	UsageStatus string
	Status      string
	Limit       int
	Offset      int
}

// Page is one page of browse results.
type Page struct {
	Listings   []model.Listing `json:"listings"`
	Pagination Pagination      `json:"pagination"`
}

// Pagination describes where a Page sits in the full result set.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// ListListings returns one page of listings matching f, newest first.
func (s *Service) ListListings(ctx context.Context, f ListFilter) (*Page, error) {
	sf := store.ListingFilter{
		Query:  strings.TrimSpace(f.Query),
		Status: model.StatusActive,
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	if category := strings.TrimSpace(f.Category); category != "" {
		if id, err := strconv.ParseInt(category, 10, 64); err == nil && id > 0 {
			sf.CategoryID = id
		} else {
			sf.CategoryName = category
		}
	}
	if kind := normalizeEnum(f.Kind); model.ValidKind(kind) {
		sf.Kind = kind
	}
	if usage := normalizeEnum(f.UsageStatus); model.ValidUsageStatus(usage) {
		sf.UsageStatus = usage
	}
	// Deleted listings are only visible to their owner.
	if status := normalizeEnum(f.Status); model.ValidStatus(status) && status != model.StatusDeleted {
		sf.Status = status
	}

	if sf.Limit <= 0 {
		sf.Limit = DefaultLimit
	}
	if sf.Limit > MaxLimit {
		sf.Limit = MaxLimit
	}
	if sf.Offset < 0 {
		sf.Offset = 0
	}

	total, err := store.CountListings(ctx, s.db, sf)
	if err != nil {
		return nil, s.fail("counting listings", err)
	}
	listings, err := store.ListListings(ctx, s.db, sf)
	if err != nil {
		return nil, s.fail("listing listings", err)
	}
	if listings == nil {
		listings = []model.Listing{}
	}

	return &Page{
		Listings: listings,
		Pagination: Pagination{
			Total:   total,
			Limit:   sf.Limit,
			Offset:  sf.Offset,
			HasMore: sf.Offset < total-sf.Limit,
		},
	}, nil
}

// ParseID parses a listing or image ID from request text.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidInput(ReasonInvalidID)
	}
	return id, nil
}

// GetListing returns a listing with all of its images and its owner's
// full public profile.
func (s *Service) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	if id <= 0 {
		return nil, invalidInput(ReasonInvalidID)
	}
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id int64) (*model.Listing, error) {
	l, err := store.GetListing(ctx, s.db, id)
	if err != nil {
		return nil, s.fail("getting listing", err)
	}
	if l == nil {
		return nil, ErrListingNotFound
	}
	return l, nil
}

// ListOwnedListings returns every listing the user owns, in any status.
func (s *Service) ListOwnedListings(ctx context.Context, user *model.User) ([]model.Listing, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	listings, err := store.ListListings(ctx, s.db, store.ListingFilter{OwnerID: user.ID})
	if err != nil {
		return nil, s.fail("listing owned listings", err)
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	return listings, nil
}

// UpdateListingInput holds the fields to change. Nil fields are left alone.
type UpdateListingInput struct {
	ItemName    *string
	Description *string
	Category    *string
	Kind        *string
	Condition   *string
	Price       *string
	Status      *string
	UsageStatus *string
	// BorrowedByUserID of 0 clears the borrower.
	BorrowedByUserID *int64
}

// UpdateListing applies in to a listing owned by user.
func (s *Service) UpdateListing(ctx context.Context, user *model.User, id int64, in UpdateListingInput) (*model.Listing, error) {
	err := s.withOwnedListing(ctx, user, id, func(tx *sql.Tx, l *model.Listing) error {
		if in.ItemName != nil {
			name := strings.TrimSpace(*in.ItemName)
			if name == "" {
				return invalidInput(ReasonItemNameRequired)
			}
			l.ItemName = name
		}
		if in.Description != nil {
			l.Description = strings.TrimSpace(*in.Description)
		}
		if in.Condition != nil {
			l.Condition = model.NormalizeCondition(*in.Condition)
		}
		if in.Kind != nil {
			kind := normalizeEnum(*in.Kind)
			if !model.ValidKind(kind) {
				return invalidInput(ReasonInvalidKind)
			}
			l.Kind = kind
		}
		if in.Status != nil {
			status := normalizeEnum(*in.Status)
			if !model.ValidStatus(status) {
				return invalidInput(ReasonInvalidStatus)
			}
			l.Status = status
		}
		if in.UsageStatus != nil {
			usage := normalizeEnum(*in.UsageStatus)
			if !model.ValidUsageStatus(usage) {
				return invalidInput(ReasonInvalidUsage)
			}
			l.UsageStatus = usage
		}

		switch {
		case l.Kind != model.KindSell:
			l.PriceCents = nil
		case in.Price != nil:
			price, err := parsePrice(l.Kind, *in.Price)
			if err != nil {
				return err
			}
			l.PriceCents = price
		case l.PriceCents == nil:
			return invalidInput(ReasonPriceRequired)
		}

		if in.Category != nil {
			categoryID, err := resolveCategory(ctx, tx, *in.Category)
			if err != nil {
				return err
			}
			l.CategoryID = categoryID
		}

		if in.BorrowedByUserID != nil {
			l.BorrowedByUserID = nil
			if borrower := *in.BorrowedByUserID; borrower != 0 {
				u, err := store.GetUser(ctx, tx, borrower)
				if err != nil {
					return err
				}
				if u == nil {
					return invalidInput(ReasonUnknownUser)
				}
				l.BorrowedByUserID = &u.ID
			}
		}
		if l.Kind != model.KindBorrow {
			l.BorrowedByUserID = nil
		}

		return store.UpdateListing(ctx, tx, l)
	})
	if err != nil {
		return nil, s.fail("updating listing", err)
	}

	s.log.Info("listing updated", "listing_id", id, "user_id", user.ID)
	return s.get(ctx, id)
}

// DeleteListing marks a listing owned by user as deleted. Deleted listings
// drop out of browsing but stay visible to their owner.
func (s *Service) DeleteListing(ctx context.Context, user *model.User, id int64) error {
	err := s.withOwnedListing(ctx, user, id, func(tx *sql.Tx, l *model.Listing) error {
		return store.SetListingStatus(ctx, tx, l.ID, model.StatusDeleted)
	})
	if err != nil {
		return s.fail("deleting listing", err)
	}

	s.log.Info("listing deleted", "listing_id", id, "user_id", user.ID)
	return nil
}

// AddListingImages appends images to a listing owned by user.
func (s *Service) AddListingImages(ctx context.Context, user *model.User, id int64, urls []string) (*model.Listing, error) {
	urls = cleanURLs(urls)
	if len(urls) == 0 {
		return nil, invalidInput(ReasonNoImages)
	}

	err := s.withOwnedListing(ctx, user, id, func(tx *sql.Tx, l *model.Listing) error {
		if _, err := store.AddListingImages(ctx, tx, l.ID, urls); err != nil {
			return err
		}
		if l.ImageURL == "" {
			return store.SetListingImageURL(ctx, tx, l.ID, urls[0])
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("adding listing images", err)
	}
	return s.get(ctx, id)
}

// DeleteListingImage removes one image from a listing owned by user. When
// the removed image was the primary one, the next image takes its place.
func (s *Service) DeleteListingImage(ctx context.Context, user *model.User, listingID, imageID int64) (*model.Listing, error) {
	if imageID <= 0 {
		return nil, invalidInput(ReasonInvalidID)
	}

	var removed string
	err := s.withOwnedListing(ctx, user, listingID, func(tx *sql.Tx, l *model.Listing) error {
		img, err := store.GetListingImage(ctx, tx, imageID)
		if err != nil {
			return err
		}
		if img == nil || img.ListingID != l.ID {
			return ErrImageNotFound
		}
		if err := store.DeleteListingImage(ctx, tx, img.ID); err != nil {
			return err
		}
		removed = img.URL
		if l.ImageURL != img.URL {
			return nil
		}

		remaining, err := store.ListListingImages(ctx, tx, l.ID)
		if err != nil {
			return err
		}
		primary := ""
		if len(remaining) > 0 {
			primary = remaining[0].URL
		}
		return store.SetListingImageURL(ctx, tx, l.ID, primary)
	})
	if err != nil {
		return nil, s.fail("deleting listing image", err)
	}

	s.removeObject(ctx, removed)
	return s.get(ctx, listingID)
}

// removeObject deletes an uploaded image from the blob store once nothing
// refers to it. Failures are logged, not returned.
func (s *Service) removeObject(ctx context.Context, url string) {
	if s.Blobs == nil {
		return
	}
	key, ok := s.Blobs.Key(url)
	if !ok {
		return
	}

	used, err := store.ImageURLInUse(ctx, s.db, url)
	if err != nil {
		s.log.Error("failed to check image references", "url", url, "error", err)
		return
	}
	if used {
		return
	}
	if err := s.Blobs.Delete(ctx, key); err != nil {
		s.log.Warn("failed to remove image object", "key", key, "error", err)
		return
	}
	s.log.Info("image object removed", "key", key)
}

// ListCategories returns every category ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := store.ListCategories(ctx, s.db)
	if err != nil {
		return nil, s.fail("listing categories", err)
	}
	if categories == nil {
		categories = []model.Category{}
	}
	return categories, nil
}

// withOwnedListing loads listing id inside a transaction and runs fn if user
// owns it.
func (s *Service) withOwnedListing(ctx context.Context, user *model.User, id int64, fn func(tx *sql.Tx, l *model.Listing) error) error {
	if user == nil {
		return ErrUnauthorized
	}
	if id <= 0 {
		return invalidInput(ReasonInvalidID)
	}

	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		l, err := store.GetListing(ctx, tx, id)
		if err != nil {
			return err
		}
		if l == nil {
			return ErrListingNotFound
		}
		if l.UserID != user.ID {
			return ErrForbidden
		}
		return fn(tx, l)
	})
}

// fail passes domain errors through and turns anything else into a logged
// storage failure.
func (s *Service) fail(op string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrUnauthorized):
		return err
	}
	s.log.Error("catalog operation failed", "op", op, "error", err)
	return storageError(op, err)
}

// resolveCategory maps a category reference to an ID. Numeric references
// must name an existing category; anything else is looked up by name and
// created if missing.
func resolveCategory(ctx context.Context, q store.Querier, ref string) (*int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		c, err := store.GetCategory(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, invalidInput(ReasonUnknownCategory)
		}
		return &c.ID, nil
	}

	c, err := store.GetOrCreateCategory(ctx, q, ref)
	if err != nil {
		return nil, err
	}
	return &c.ID, nil
}

// parsePrice returns the price for a listing of the given kind. Sell
// listings need a positive integer; every other kind has no price.
func parsePrice(kind, raw string) (*int64, error) {
	if kind != model.KindSell {
		return nil, nil
	}
	price, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || price <= 0 {
		return nil, invalidInput(ReasonPriceRequired)
	}
	return &price, nil
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// cleanURLs trims urls and drops empty entries, keeping order.
func cleanURLs(urls []string) []string {
	var out []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
