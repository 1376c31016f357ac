package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kitabpay/backend/internal/models"
	"github.com/kitabpay/backend/internal/store"
)

var advertisementDays = map[int]bool{3: true, 7: true, 14: true, 30: true}

// maxMarketplacePage caps a single marketplace read regardless of
// configuration.
const maxMarketplacePage = 200

// CatalogService owns the lifecycle of listings and personal-library items.
// A LibraryItem and its mirrored Listing are one aggregate: every mutation of
// either side goes through here, never through direct store writes, because
// the store enforces no foreign key between them.
type CatalogService struct {
	listings store.ListingStore
	accounts store.AccountStore
	pageSize int
	log      *logrus.Logger
	now      func() time.Time
}

func NewCatalogService(listings store.ListingStore, accounts store.AccountStore, pageSize int, log *logrus.Logger) *CatalogService {
	if pageSize <= 0 || pageSize > maxMarketplacePage {
		pageSize = 50
	}
	return &CatalogService{
		listings: listings,
		accounts: accounts,
		pageSize: pageSize,
		log:      log,
		now:      time.Now,
	}
}

// LibraryItemInput carries the user-editable fields of a library book.
type LibraryItemInput struct {
	Title       string `json:"title" validate:"required,min=1"`
	Author      string `json:"author" validate:"required,min=1"`
	City        string `json:"city" validate:"required"`
	Condition   string `json:"condition" validate:"required"`
	ImageURL    string `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Description string `json:"description,omitempty"`
}

// ListingInput carries the fields of a book offered directly for sale,
// without a backing library item.
type ListingInput struct {
	Title       string `json:"title" validate:"required,min=1"`
	Author      string `json:"author" validate:"required,min=1"`
	Price       int64  `json:"price" validate:"required,gt=0"`
	City        string `json:"city" validate:"required"`
	ImageURL    string `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Description string `json:"description,omitempty"`
}

// AdvertisementOptions requests premium placement for a listing.
type AdvertisementOptions struct {
	DurationDays int `json:"durationDays" validate:"required"`
}

func (s *CatalogService) CreateLibraryItem(ctx context.Context, ownerID string, in LibraryItemInput) (*models.LibraryItem, error) {
	item := &models.LibraryItem{
		OwnerID:     ownerID,
		Title:       in.Title,
		Author:      in.Author,
		City:        in.City,
		Condition:   in.Condition,
		ImageURL:    in.ImageURL,
		Description: in.Description,
	}
	if err := s.listings.CreateLibraryItem(ctx, item); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"item_id": item.ID, "owner_id": ownerID}).
		Info("[CATALOG] library item created")
	return item, nil
}

// PublishToMarketplace mirrors a library item into a listing. The item side
// is updated after the listing exists, so a failure between the two leaves a
// listing without the flag set; Unpublish tolerates the inverse.
func (s *CatalogService) PublishToMarketplace(ctx context.Context, itemID string, price int64, ad *AdvertisementOptions) (*models.Listing, error) {
	if price <= 0 {
		return nil, ErrInvalidAmount
	}

	item, err := s.listings.GetLibraryItem(ctx, itemID)
	if err == store.ErrNotFound {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if item.InMarketplace {
		return nil, ErrAlreadyPublished
	}

	listing := &models.Listing{
		Title:       item.Title,
		Author:      item.Author,
		Price:       price,
		SellerID:    item.OwnerID,
		City:        item.City,
		ImageURL:    item.ImageURL,
		Description: item.Description,
		Status:      models.ListingAvailable,
	}
	if listing.Description == "" {
		listing.Description = fmt.Sprintf("book in %s condition", item.Condition)
	}
	if err := s.applyAdvertisement(listing, ad); err != nil {
		return nil, err
	}
	if err := s.fillSellerPhone(ctx, listing); err != nil {
		return nil, err
	}
	if err := s.listings.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	if err := s.listings.SetLibraryMarketplaceState(ctx, itemID, true, &price); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"item_id":    itemID,
			"listing_id": listing.ID,
		}).Error("[CATALOG] listing created but library item not flagged, aggregate out of sync")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"item_id":       itemID,
		"listing_id":    listing.ID,
		"price":         price,
		"advertisement": listing.IsAdvertisement,
	}).Info("[CATALOG] library item published to marketplace")
	return listing, nil
}

// Unpublish removes the listing mirroring a library item. A missing listing
// is logged as an inconsistency but not raised: the item side must still be
// corrected so the user can republish.
func (s *CatalogService) Unpublish(ctx context.Context, itemID string) error {
	item, err := s.listings.GetLibraryItem(ctx, itemID)
	if err == store.ErrNotFound {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}

	removed, err := s.listings.DeleteListingBySellerTitleAuthor(ctx, item.OwnerID, item.Title, item.Author)
	if err != nil {
		return err
	}
	if removed == 0 {
		s.log.WithFields(logrus.Fields{
			"item_id":  itemID,
			"owner_id": item.OwnerID,
			"title":    item.Title,
		}).Warn("[CATALOG] no marketplace listing matched library item on unpublish")
	}

	return s.listings.SetLibraryMarketplaceState(ctx, itemID, false, nil)
}

// CreateDirectListing offers a book for sale that was never tracked as a
// library item.
func (s *CatalogService) CreateDirectListing(ctx context.Context, sellerID string, in ListingInput, ad *AdvertisementOptions) (*models.Listing, error) {
	if in.Price <= 0 {
		return nil, ErrInvalidAmount
	}
	listing := &models.Listing{
		Title:       in.Title,
		Author:      in.Author,
		Price:       in.Price,
		SellerID:    sellerID,
		City:        in.City,
		ImageURL:    in.ImageURL,
		Description: in.Description,
		Status:      models.ListingAvailable,
	}
	if err := s.applyAdvertisement(listing, ad); err != nil {
		return nil, err
	}
	if err := s.fillSellerPhone(ctx, listing); err != nil {
		return nil, err
	}
	if err := s.listings.CreateListing(ctx, listing); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"listing_id":    listing.ID,
		"seller_id":     sellerID,
		"advertisement": listing.IsAdvertisement,
	}).Info("[CATALOG] direct listing created")
	return listing, nil
}

func (s *CatalogService) applyAdvertisement(listing *models.Listing, ad *AdvertisementOptions) error {
	if ad == nil {
		return nil
	}
	if !advertisementDays[ad.DurationDays] {
		return ErrInvalidDuration
	}
	expires := s.now().Add(time.Duration(ad.DurationDays) * 24 * time.Hour)
	listing.IsAdvertisement = true
	listing.AdDurationDays = ad.DurationDays
	listing.AdExpiresAt = &expires
	return nil
}

func (s *CatalogService) fillSellerPhone(ctx context.Context, listing *models.Listing) error {
	seller, err := s.accounts.GetAccount(ctx, listing.SellerID)
	if err == store.ErrNotFound {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	listing.SellerPhone = seller.Phone
	return nil
}

func (s *CatalogService) GetListing(ctx context.Context, listingID string) (*models.Listing, error) {
	listing, err := s.listings.GetListing(ctx, listingID)
	if err == store.ErrNotFound {
		return nil, ErrListingNotFound
	}
	return listing, err
}

// MarkSold claims the listing for a purchase. Only the transaction
// orchestrator calls this, before any money moves; ErrAlreadySold means the
// caller lost the race and must not proceed.
func (s *CatalogService) MarkSold(ctx context.Context, listingID string) error {
	err := s.listings.MarkListingSold(ctx, listingID)
	switch err {
	case store.ErrConflict:
		return ErrAlreadySold
	case store.ErrNotFound:
		return ErrListingNotFound
	default:
		return err
	}
}

// RevertAvailable undoes a claim after a failed purchase. A conflict here
// means the listing was not sold, which is already the desired state.
func (s *CatalogService) RevertAvailable(ctx context.Context, listingID string) error {
	err := s.listings.RevertListingAvailable(ctx, listingID)
	if err == store.ErrConflict {
		return nil
	}
	return err
}

// Marketplace lists available books: live advertisements first, then newest
// first. Expired advertisements sort as ordinary listings.
func (s *CatalogService) Marketplace(ctx context.Context, city string, limit int) ([]models.Listing, error) {
	if limit <= 0 || limit > maxMarketplacePage {
		limit = s.pageSize
	}
	return s.listings.ListAvailableListings(ctx, city, limit)
}

func (s *CatalogService) Library(ctx context.Context, ownerID string) ([]models.LibraryItem, error) {
	return s.listings.ListLibraryItems(ctx, ownerID)
}

func (s *CatalogService) GetLibraryItem(ctx context.Context, itemID string) (*models.LibraryItem, error) {
	item, err := s.listings.GetLibraryItem(ctx, itemID)
	if err == store.ErrNotFound {
		return nil, ErrItemNotFound
	}
	return item, err
}

// DeleteLibraryItem removes a book from the owner's library, unpublishing it
// first when it is mirrored in the marketplace.
func (s *CatalogService) DeleteLibraryItem(ctx context.Context, itemID string) error {
	item, err := s.listings.GetLibraryItem(ctx, itemID)
	if err == store.ErrNotFound {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}
	if item.InMarketplace {
		if err := s.Unpublish(ctx, itemID); err != nil {
			return err
		}
	}
	err = s.listings.DeleteLibraryItem(ctx, itemID)
	if err == store.ErrNotFound {
		return ErrItemNotFound
	}
	return err
}

func (s *CatalogService) Purchases(ctx context.Context, userID string) ([]models.PurchaseRecord, error) {
	return s.listings.ListPurchases(ctx, userID)
}
