package models

import (
	"time"
)

type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingSold      ListingStatus = "sold"
)

// Listing is a book offered for sale in the shared marketplace. The
// available -> sold transition happens exactly once, through the catalog.
type Listing struct {
	ID              string        `json:"id" db:"id"`
	Title           string        `json:"title" db:"title"`
	Author          string        `json:"author" db:"author"`
	Price           int64         `json:"price" db:"price"` // in centimes
	SellerID        string        `json:"sellerId" db:"seller_id"`
	SellerPhone     string        `json:"sellerPhone" db:"seller_phone"`
	City            string        `json:"city" db:"city"`
	ImageURL        string        `json:"imageUrl,omitempty" db:"image_url"`
	Description     string        `json:"description,omitempty" db:"description"`
	Status          ListingStatus `json:"status" db:"status"`
	IsAdvertisement bool          `json:"isAdvertisement" db:"is_advertisement"`
	AdDurationDays  int           `json:"advertisementDuration,omitempty" db:"advertisement_duration"`
	AdExpiresAt     *time.Time    `json:"advertisementExpiresAt,omitempty" db:"advertisement_expires_at"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`
}

// AdLive reports whether the listing still gets advertisement placement at
// the given instant. Expired advertisements sort as ordinary listings but the
// record is kept.
func (l *Listing) AdLive(now time.Time) bool {
	if !l.IsAdvertisement {
		return false
	}
	return l.AdExpiresAt == nil || l.AdExpiresAt.After(now)
}

// LibraryItem is a book a user personally owns, optionally mirrored into a
// marketplace listing. The mirror has no foreign key; the catalog keeps both
// sides consistent.
type LibraryItem struct {
	ID               string    `json:"id" db:"id"`
	OwnerID          string    `json:"ownerId" db:"user_id"`
	Title            string    `json:"title" db:"title"`
	Author           string    `json:"author" db:"author"`
	City             string    `json:"city" db:"city"`
	Condition        string    `json:"condition" db:"condition"`
	ImageURL         string    `json:"imageUrl,omitempty" db:"image_url"`
	Description      string    `json:"description,omitempty" db:"description"`
	InMarketplace    bool      `json:"inMarketplace" db:"is_in_marketplace"`
	MarketplacePrice *int64    `json:"marketplacePrice,omitempty" db:"marketplace_price"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

type PurchaseStatus string

const (
	PurchaseOwned   PurchaseStatus = "owned"
	PurchaseForSale PurchaseStatus = "for_sale"
	PurchaseSold    PurchaseStatus = "sold"
)

// PurchaseRecord is created exactly once per successful purchase and is
// immutable except for Status.
type PurchaseRecord struct {
	ID           string         `json:"id" db:"id"`
	BuyerID      string         `json:"userId" db:"user_id"`
	ListingID    string         `json:"bookId" db:"book_id"`
	Title        string         `json:"originalTitle" db:"original_title"`
	Author       string         `json:"originalAuthor" db:"original_author"`
	Price        int64          `json:"purchasePrice" db:"purchase_price"` // in centimes
	Status       PurchaseStatus `json:"status" db:"status"`
	PurchaseDate time.Time      `json:"purchaseDate" db:"purchase_date"`
}
