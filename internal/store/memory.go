package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kitabpay/backend/internal/models"
)

// MemoryStore implements AccountStore and ListingStore in memory with the
// same per-record conditional semantics as the Postgres implementation. It
// backs service tests and local development without a database.
type MemoryStore struct {
	mu         sync.Mutex
	accounts   map[string]*models.Account
	listings   map[string]*models.Listing
	library    map[string]*models.LibraryItem
	purchases  map[string]*models.PurchaseRecord
	entries    []models.LedgerEntry
	operations map[string]bool

	// FailCreditFor simulates an unreachable record on the credit leg; tests
	// use it to force the compensation path. FailAppendFor does the same for
	// the transaction log, keyed by the entry's user id.
	FailCreditFor map[string]error
	FailAppendFor map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[string]*models.Account),
		listings:      make(map[string]*models.Listing),
		library:       make(map[string]*models.LibraryItem),
		purchases:     make(map[string]*models.PurchaseRecord),
		operations:    make(map[string]bool),
		FailCreditFor: make(map[string]error),
		FailAppendFor: make(map[string]error),
	}
}

// SeedAccount registers an account with an opening balance.
func (s *MemoryStore) SeedAccount(id, phone string, balance int64) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &models.Account{ID: id, Phone: phone, Balance: balance, UpdatedAt: time.Now()}
	s.accounts[id] = acc
	return acc
}

func (s *MemoryStore) SeedAdmin(id, phone string, balance int64) *models.Account {
	acc := s.SeedAccount(id, phone, balance)
	s.mu.Lock()
	defer s.mu.Unlock()
	acc.IsAdmin = true
	return acc
}

func (s *MemoryStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *acc
	return &copied, nil
}

func (s *MemoryStore) GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.Phone == phone {
			copied := *acc
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) DebitBalance(ctx context.Context, id string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return 0, ErrNotFound
	}
	if acc.Balance < amount {
		return 0, ErrInsufficientBalance
	}
	acc.Balance -= amount
	acc.UpdatedAt = time.Now()
	return acc.Balance, nil
}

func (s *MemoryStore) CreditBalance(ctx context.Context, id string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailCreditFor[id]; ok {
		return 0, err
	}
	acc, ok := s.accounts[id]
	if !ok {
		return 0, ErrNotFound
	}
	acc.Balance += amount
	acc.UpdatedAt = time.Now()
	return acc.Balance, nil
}

func (s *MemoryStore) IncrementBooksOwned(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.BooksOwned++
	return nil
}

func (s *MemoryStore) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailAppendFor[entry.UserID]; ok {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryStore) EntriesForUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.LedgerEntry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].UserID == userID {
			out = append(out, s.entries[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) ClaimOperation(ctx context.Context, operationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.operations[operationID] {
		return false, nil
	}
	s.operations[operationID] = true
	return true, nil
}

func (s *MemoryStore) ReleaseOperation(ctx context.Context, operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.operations, operationID)
	return nil
}

func (s *MemoryStore) CreateListing(ctx context.Context, listing *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	now := time.Now()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now
	copied := *listing
	s.listings[listing.ID] = &copied
	return nil
}

func (s *MemoryStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *l
	return &copied, nil
}

func (s *MemoryStore) MarkListingSold(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return ErrNotFound
	}
	if l.Status != models.ListingAvailable {
		return ErrConflict
	}
	l.Status = models.ListingSold
	l.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) RevertListingAvailable(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return ErrNotFound
	}
	if l.Status != models.ListingSold {
		return ErrConflict
	}
	l.Status = models.ListingAvailable
	l.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteListingBySellerTitleAuthor(ctx context.Context, sellerID, title, author string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, l := range s.listings {
		if l.SellerID == sellerID && l.Status == models.ListingAvailable &&
			strings.EqualFold(l.Title, title) && strings.EqualFold(l.Author, author) {
			delete(s.listings, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) ListAvailableListings(ctx context.Context, city string, limit int) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := []models.Listing{}
	for _, l := range s.listings {
		if l.Status != models.ListingAvailable {
			continue
		}
		if city != "" && l.City != city {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		liveI, liveJ := out[i].AdLive(now), out[j].AdLive(now)
		if liveI != liveJ {
			return liveI
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateLibraryItem(ctx context.Context, item *models.LibraryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	copied := *item
	s.library[item.ID] = &copied
	return nil
}

func (s *MemoryStore) GetLibraryItem(ctx context.Context, id string) (*models.LibraryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.library[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *it
	return &copied, nil
}

func (s *MemoryStore) ListLibraryItems(ctx context.Context, ownerID string) ([]models.LibraryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.LibraryItem{}
	for _, it := range s.library {
		if it.OwnerID == ownerID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetLibraryMarketplaceState(ctx context.Context, itemID string, inMarketplace bool, price *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.library[itemID]
	if !ok {
		return ErrNotFound
	}
	it.InMarketplace = inMarketplace
	it.MarketplacePrice = price
	it.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteLibraryItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.library[id]; !ok {
		return ErrNotFound
	}
	delete(s.library, id)
	return nil
}

func (s *MemoryStore) CreatePurchaseRecord(ctx context.Context, record *models.PurchaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.PurchaseDate.IsZero() {
		record.PurchaseDate = time.Now()
	}
	copied := *record
	s.purchases[record.ID] = &copied
	return nil
}

func (s *MemoryStore) ListPurchases(ctx context.Context, userID string) ([]models.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PurchaseRecord{}
	for _, r := range s.purchases {
		if r.BuyerID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchaseDate.After(out[j].PurchaseDate) })
	return out, nil
}

func (s *MemoryStore) CountPurchasesForListing(ctx context.Context, listingID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.purchases {
		if r.ListingID == listingID {
			count++
		}
	}
	return count, nil
}
