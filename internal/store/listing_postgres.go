package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kitabpay/backend/internal/models"
)

type PostgresListingStore struct {
	db *sql.DB
}

func NewPostgresListingStore(db *sql.DB) *PostgresListingStore {
	return &PostgresListingStore{db: db}
}

func (s *PostgresListingStore) CreateListing(ctx context.Context, listing *models.Listing) error {
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	now := time.Now()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books
		(id, title, author, price, seller_id, seller_phone, city, image_url, description,
		 status, is_advertisement, advertisement_duration, advertisement_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, NULLIF($12, 0), $13, $14, $15)`,
		listing.ID, listing.Title, listing.Author, listing.Price, listing.SellerID, listing.SellerPhone,
		listing.City, listing.ImageURL, listing.Description, string(listing.Status),
		listing.IsAdvertisement, listing.AdDurationDays, listing.AdExpiresAt, listing.CreatedAt, listing.UpdatedAt)
	return err
}

func (s *PostgresListingStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, author, price, seller_id, seller_phone, city,
		       COALESCE(image_url, ''), COALESCE(description, ''), status,
		       is_advertisement, COALESCE(advertisement_duration, 0), advertisement_expires_at,
		       created_at, updated_at
		FROM books WHERE id = $1`, id)
	return scanListing(row.Scan)
}

func scanListing(scan func(dest ...any) error) (*models.Listing, error) {
	var l models.Listing
	var status string
	err := scan(&l.ID, &l.Title, &l.Author, &l.Price, &l.SellerID, &l.SellerPhone, &l.City,
		&l.ImageURL, &l.Description, &status, &l.IsAdvertisement, &l.AdDurationDays,
		&l.AdExpiresAt, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Status = models.ListingStatus(status)
	return &l, nil
}

// MarkListingSold is the conditional claim that serializes concurrent
// purchases of the same listing: the UPDATE applies only while the row still
// reads available, and the loser sees zero rows affected.
func (s *PostgresListingStore) MarkListingSold(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET status = 'sold', updated_at = NOW()
		WHERE id = $1 AND status = 'available'`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, getErr := s.GetListing(ctx, id); getErr != nil {
			return getErr
		}
		return ErrConflict
	}
	return nil
}

func (s *PostgresListingStore) RevertListingAvailable(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET status = 'available', updated_at = NOW()
		WHERE id = $1 AND status = 'sold'`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresListingStore) DeleteListingBySellerTitleAuthor(ctx context.Context, sellerID, title, author string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM books
		WHERE seller_id = $1 AND title = $2 AND author = $3 AND status = 'available'`,
		sellerID, title, author)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *PostgresListingStore) ListAvailableListings(ctx context.Context, city string, limit int) ([]models.Listing, error) {
	// Live advertisements first; expired ones fall back into the ordinary
	// newest-first ordering without being deleted.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, author, price, seller_id, seller_phone, city,
		       COALESCE(image_url, ''), COALESCE(description, ''), status,
		       is_advertisement, COALESCE(advertisement_duration, 0), advertisement_expires_at,
		       created_at, updated_at
		FROM books
		WHERE status = 'available' AND ($1 = '' OR city = $1)
		ORDER BY (is_advertisement AND (advertisement_expires_at IS NULL OR advertisement_expires_at > NOW())) DESC,
		         created_at DESC
		LIMIT $2`, city, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows.Scan)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *PostgresListingStore) CreateLibraryItem(ctx context.Context, item *models.LibraryItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_library
		(id, user_id, title, author, city, condition, image_url, description,
		 is_in_marketplace, marketplace_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12)`,
		item.ID, item.OwnerID, item.Title, item.Author, item.City, item.Condition,
		item.ImageURL, item.Description, item.InMarketplace, item.MarketplacePrice,
		item.CreatedAt, item.UpdatedAt)
	return err
}

func (s *PostgresListingStore) GetLibraryItem(ctx context.Context, id string) (*models.LibraryItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, author, city, condition,
		       COALESCE(image_url, ''), COALESCE(description, ''),
		       is_in_marketplace, marketplace_price, created_at, updated_at
		FROM user_library WHERE id = $1`, id)
	return scanLibraryItem(row.Scan)
}

func scanLibraryItem(scan func(dest ...any) error) (*models.LibraryItem, error) {
	var it models.LibraryItem
	err := scan(&it.ID, &it.OwnerID, &it.Title, &it.Author, &it.City, &it.Condition,
		&it.ImageURL, &it.Description, &it.InMarketplace, &it.MarketplacePrice,
		&it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *PostgresListingStore) ListLibraryItems(ctx context.Context, ownerID string) ([]models.LibraryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, author, city, condition,
		       COALESCE(image_url, ''), COALESCE(description, ''),
		       is_in_marketplace, marketplace_price, created_at, updated_at
		FROM user_library
		WHERE user_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.LibraryItem{}
	for rows.Next() {
		it, err := scanLibraryItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (s *PostgresListingStore) SetLibraryMarketplaceState(ctx context.Context, itemID string, inMarketplace bool, price *int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_library
		SET is_in_marketplace = $1, marketplace_price = $2, updated_at = NOW()
		WHERE id = $3`, inMarketplace, price, itemID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresListingStore) DeleteLibraryItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM user_library WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresListingStore) CreatePurchaseRecord(ctx context.Context, record *models.PurchaseRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.PurchaseDate.IsZero() {
		record.PurchaseDate = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchased_books
		(id, user_id, book_id, original_title, original_author, purchase_price, status, purchase_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.BuyerID, record.ListingID, record.Title, record.Author,
		record.Price, string(record.Status), record.PurchaseDate)
	return err
}

func (s *PostgresListingStore) ListPurchases(ctx context.Context, userID string) ([]models.PurchaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, book_id, original_title, original_author, purchase_price, status, purchase_date
		FROM purchased_books
		WHERE user_id = $1
		ORDER BY purchase_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.PurchaseRecord{}
	for rows.Next() {
		var r models.PurchaseRecord
		var status string
		if err := rows.Scan(&r.ID, &r.BuyerID, &r.ListingID, &r.Title, &r.Author, &r.Price, &status, &r.PurchaseDate); err != nil {
			return nil, err
		}
		r.Status = models.PurchaseStatus(status)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresListingStore) CountPurchasesForListing(ctx context.Context, listingID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM purchased_books WHERE book_id = $1`, listingID).Scan(&count)
	return count, err
}
