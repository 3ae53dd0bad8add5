package model

import (
	"strings"
	"time"
)

// Listing is one postable item: something to sell, give away, or lend.
type Listing struct {
	ID               int64     `json:"id"`
	ListingNumber    int64     `json:"listing_number"`
	UserID           int64     `json:"user_id"`
	ItemName         string    `json:"item_name"`
	Description      string    `json:"description,omitempty"`
	CategoryID       *int64    `json:"category_id"`
	Kind             string    `json:"type"`
	Condition        string    `json:"condition,omitempty"`
	PriceCents       *int64    `json:"price_cents"`
	ImageURL         string    `json:"image_url,omitempty"`
	Status           string    `json:"status"`
	UsageStatus      string    `json:"usage_status"`
	BorrowedByUserID *int64    `json:"borrowed_by_user_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	Category *Category      `json:"category"`
	Owner    *ListingOwner  `json:"user,omitempty"`
	Images   []ListingImage `json:"images"`
}

// ListingOwner is the public slice of the owner's profile shown on a listing.
type ListingOwner struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Username    string `json:"username,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Location    string `json:"location,omitempty"`
}

// ListingImage is one uploaded image bound to a listing.
type ListingImage struct {
	ID        int64     `json:"id"`
	ListingID int64     `json:"listing_id"`
	URL       string    `json:"url"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// PrimaryImage returns the first image of the collection, falling back to
// ImageURL when the collection is empty.
func (l *Listing) PrimaryImage() string {
	if len(l.Images) > 0 {
		return l.Images[0].URL
	}
	return l.ImageURL
}

// Listing kinds.
const (
	KindSell   = "sell"
	KindDonate = "donate"
	KindBorrow = "borrow"
)

// Listing lifecycle statuses.
const (
	StatusActive  = "active"
	StatusPaused  = "paused"
	StatusClosed  = "closed"
	StatusSold    = "sold"
	StatusDeleted = "deleted"
)

// Usage statuses for borrowable items.
const (
	UsageAvailable = "available"
	UsageReserved  = "reserved"
	UsageBorrowed  = "borrowed"
)

// Canonical item conditions. Other text is stored as given.
const (
	ConditionNew     = "new"
	ConditionLikeNew = "like_new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
	ConditionPoor    = "poor"
)

// ValidKind reports whether kind is one of the listing kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindSell, KindDonate, KindBorrow:
		return true
	}
	return false
}

// ValidStatus reports whether status is a lifecycle status.
func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusPaused, StatusClosed, StatusSold, StatusDeleted:
		return true
	}
	return false
}

// ValidUsageStatus reports whether usage is a usage status.
func ValidUsageStatus(usage string) bool {
	switch usage {
	case UsageAvailable, UsageReserved, UsageBorrowed:
		return true
	}
	return false
}

// NormalizeCondition maps spellings like "Like New" or "like-new" onto the
// canonical condition values. Unrecognised text is returned trimmed.
func NormalizeCondition(condition string) string {
	condition = strings.TrimSpace(condition)
	key := strings.ToLower(condition)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return key
	}
	return condition
}
