package store

import (
	"context"
	"errors"

	"github.com/kitabpay/backend/internal/models"
)

// The backing store is reached through independent per-record requests; there
// is no multi-record transaction. Every implementation method must map to a
// single atomic store operation, and conditional updates (debit-if-sufficient,
// mark-sold-if-available, claim-if-new) are the only serialization points
// available to callers.

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when a conditional update did not apply because
	// the record's current state failed the precondition.
	ErrConflict = errors.New("store: conditional update did not apply")
	// ErrInsufficientBalance is returned by DebitBalance when the account
	// exists but holds less than the requested amount.
	ErrInsufficientBalance = errors.New("store: balance below requested debit")
)

// AccountStore is the durable mapping of user id to balance and book count,
// plus the append-only transaction log and the applied-operation registry
// used for idempotent retries.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error)

	// DebitBalance conditionally decrements the balance and returns the new
	// value. ErrInsufficientBalance when the condition fails, ErrNotFound
	// when the account is missing.
	DebitBalance(ctx context.Context, id string, amount int64) (int64, error)
	// CreditBalance unconditionally increments the balance and returns the
	// new value.
	CreditBalance(ctx context.Context, id string, amount int64) (int64, error)
	IncrementBooksOwned(ctx context.Context, id string) error

	AppendEntry(ctx context.Context, entry *models.LedgerEntry) error
	EntriesForUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)

	// ClaimOperation registers a caller-generated operation id. It returns
	// false when the id was already claimed, which callers must treat as
	// "this operation already applied".
	ClaimOperation(ctx context.Context, operationID string) (bool, error)
	// ReleaseOperation removes a claimed id again. Callers release a claim
	// when the operation did not apply, so the same id stays retryable.
	ReleaseOperation(ctx context.Context, operationID string) error
}

// ListingStore holds marketplace listings, personal-library items and
// purchase records. Cross-record consistency between a LibraryItem and its
// mirrored Listing is the catalog's responsibility, not the store's.
type ListingStore interface {
	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	// MarkListingSold applies only while the listing is still available;
	// ErrConflict reports a lost claim race, ErrNotFound a missing listing.
	MarkListingSold(ctx context.Context, id string) error
	RevertListingAvailable(ctx context.Context, id string) error
	// DeleteListingBySellerTitleAuthor removes the listing mirroring a
	// library item. Matching is by value since no foreign key exists; the
	// number of removed rows is reported so callers can log inconsistencies.
	DeleteListingBySellerTitleAuthor(ctx context.Context, sellerID, title, author string) (int64, error)
	// ListAvailableListings returns available listings with live
	// advertisements first, then newest first. city == "" means all cities.
	ListAvailableListings(ctx context.Context, city string, limit int) ([]models.Listing, error)

	CreateLibraryItem(ctx context.Context, item *models.LibraryItem) error
	GetLibraryItem(ctx context.Context, id string) (*models.LibraryItem, error)
	ListLibraryItems(ctx context.Context, ownerID string) ([]models.LibraryItem, error)
	SetLibraryMarketplaceState(ctx context.Context, itemID string, inMarketplace bool, price *int64) error
	DeleteLibraryItem(ctx context.Context, id string) error

	CreatePurchaseRecord(ctx context.Context, record *models.PurchaseRecord) error
	ListPurchases(ctx context.Context, userID string) ([]models.PurchaseRecord, error)
	CountPurchasesForListing(ctx context.Context, listingID string) (int, error)
}
