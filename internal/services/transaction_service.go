package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kitabpay/backend/internal/events"
	"github.com/kitabpay/backend/internal/models"
	"github.com/kitabpay/backend/internal/store"
)

// TransactionService orchestrates the multi-step money flows: book purchase,
// peer transfer and admin top-up. Each flow is a sequence of single-record
// store operations with explicit compensation, ordered so that the cheap
// reversible step (claiming the listing) happens before money moves.
// maxHistoryPage caps a single history read regardless of configuration.
const maxHistoryPage = 100

type TransactionService struct {
	ledger       *LedgerService
	catalog      *CatalogService
	accounts     store.AccountStore
	publisher    *events.Publisher
	historyLimit int
	log          *logrus.Logger
}

func NewTransactionService(ledger *LedgerService, catalog *CatalogService, accounts store.AccountStore, publisher *events.Publisher, historyLimit int, log *logrus.Logger) *TransactionService {
	if historyLimit <= 0 || historyLimit > maxHistoryPage {
		historyLimit = 50
	}
	return &TransactionService{
		ledger:       ledger,
		catalog:      catalog,
		accounts:     accounts,
		publisher:    publisher,
		historyLimit: historyLimit,
		log:          log,
	}
}

// RecipientIdentity names a transfer target by user id, phone number, or
// both. Transfer resolves it against the account store.
type RecipientIdentity struct {
	UserID string `json:"userId,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// PurchaseResult reports the outcome of a completed purchase.
type PurchaseResult struct {
	Listing      *models.Listing `json:"listing"`
	BuyerBalance int64           `json:"buyerBalance"`
}

// Purchase buys a listing for its asking price. Order of operations:
//
//  1. preconditions (listing available, not the buyer's own, balance covers
//     the price) checked against current reads,
//  2. mark the listing sold, the conditional claim that serializes racing
//     buyers,
//  3. move the money debit-then-credit with compensation on failure,
//  4. record the purchase for the buyer's shelf.
//
// A failure in step 3 reverts the claim from step 2 and reports
// PurchaseFailedError. Step 4 failures are logged, not reverted: the money
// and the listing state are already correct.
func (ts *TransactionService) Purchase(ctx context.Context, buyerID, listingID, operationID string) (*PurchaseResult, error) {
	listing, err := ts.catalog.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingAvailable {
		return nil, ErrListingUnavailable
	}
	if listing.SellerID == buyerID {
		return nil, ErrSelfPurchaseNotAllowed
	}

	buyer, err := ts.accounts.GetAccount(ctx, buyerID)
	if err == store.ErrNotFound {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if buyer.Balance < listing.Price {
		return nil, ErrInsufficientFunds
	}

	if err := ts.catalog.MarkSold(ctx, listingID); err != nil {
		if err == ErrAlreadySold {
			return nil, ErrListingUnavailable
		}
		return nil, err
	}

	err = ts.ledger.TransferAtomic(ctx, TransferSpec{
		OperationID:       operationID,
		FromID:            buyerID,
		ToID:              listing.SellerID,
		Amount:            listing.Price,
		DebitKind:         models.EntryPurchase,
		CreditKind:        models.EntrySale,
		DebitDescription:  fmt.Sprintf("purchase of %s", listing.Title),
		CreditDescription: fmt.Sprintf("sale of %s", listing.Title),
		ListingID:         listing.ID,
	})
	if err != nil {
		if revertErr := ts.catalog.RevertAvailable(ctx, listingID); revertErr != nil {
			ts.log.WithError(revertErr).WithField("listing_id", listingID).
				Error("[TRANSACTION] listing stuck sold after failed purchase")
		}
		switch err.(type) {
		case *TransferFailedError:
			return nil, &PurchaseFailedError{Cause: err}
		}
		return nil, err
	}

	ts.recordPurchaseArtifacts(ctx, buyerID, listing)
	ts.publish(ctx, events.WalletEvent{
		OperationID: operationID,
		Kind:        "purchase",
		UserID:      buyerID,
		PeerID:      listing.SellerID,
		Amount:      listing.Price,
	})

	updated, err := ts.accounts.GetAccount(ctx, buyerID)
	if err != nil {
		return &PurchaseResult{Listing: listing}, nil
	}
	listing.Status = models.ListingSold
	return &PurchaseResult{Listing: listing, BuyerBalance: updated.Balance}, nil
}

// recordPurchaseArtifacts writes the bookkeeping that follows a settled
// purchase. Neither write can fail the purchase any more, so errors only log.
func (ts *TransactionService) recordPurchaseArtifacts(ctx context.Context, buyerID string, listing *models.Listing) {
	record := &models.PurchaseRecord{
		BuyerID:   buyerID,
		ListingID: listing.ID,
		Title:     listing.Title,
		Author:    listing.Author,
		Price:     listing.Price,
		Status:    models.PurchaseOwned,
	}
	if err := ts.catalog.listings.CreatePurchaseRecord(ctx, record); err != nil {
		ts.log.WithError(err).WithFields(logrus.Fields{
			"buyer_id":   buyerID,
			"listing_id": listing.ID,
		}).Error("[TRANSACTION] purchase settled but shelf record not written")
	}
	if err := ts.accounts.IncrementBooksOwned(ctx, buyerID); err != nil {
		ts.log.WithError(err).WithField("buyer_id", buyerID).
			Error("[TRANSACTION] purchase settled but books count not incremented")
	}
}

// Transfer moves money between two users identified by id or phone.
func (ts *TransactionService) Transfer(ctx context.Context, senderID string, recipient RecipientIdentity, amount int64, operationID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	to, err := ts.resolveRecipient(ctx, recipient)
	if err != nil {
		return 0, err
	}
	if to.ID == senderID {
		return 0, ErrSelfTransferNotAllowed
	}

	sender, err := ts.accounts.GetAccount(ctx, senderID)
	if err == store.ErrNotFound {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	if sender.Balance < amount {
		return 0, ErrInsufficientFunds
	}

	err = ts.ledger.TransferAtomic(ctx, TransferSpec{
		OperationID:       operationID,
		FromID:            senderID,
		ToID:              to.ID,
		Amount:            amount,
		DebitKind:         models.EntryTransferSent,
		CreditKind:        models.EntryTransferReceived,
		DebitDescription:  fmt.Sprintf("transfer to %s", to.Phone),
		CreditDescription: fmt.Sprintf("transfer from %s", sender.Phone),
	})
	if err != nil {
		return 0, err
	}

	ts.publish(ctx, events.WalletEvent{
		OperationID: operationID,
		Kind:        "transfer",
		UserID:      senderID,
		PeerID:      to.ID,
		Amount:      amount,
	})

	updated, err := ts.accounts.GetAccount(ctx, senderID)
	if err != nil {
		return sender.Balance - amount, nil
	}
	return updated.Balance, nil
}

func (ts *TransactionService) resolveRecipient(ctx context.Context, recipient RecipientIdentity) (*models.Account, error) {
	if recipient.UserID != "" {
		acc, err := ts.accounts.GetAccount(ctx, recipient.UserID)
		if err == nil {
			return acc, nil
		}
		if err != store.ErrNotFound {
			return nil, err
		}
	}
	if recipient.Phone != "" {
		acc, err := ts.accounts.GetAccountByPhone(ctx, recipient.Phone)
		if err == nil {
			return acc, nil
		}
		if err != store.ErrNotFound {
			return nil, err
		}
	}
	return nil, ErrRecipientNotFound
}

// AddBalance credits a user's wallet from outside the system. Only admins may
// call it; the credit produces a balance_add ledger entry.
func (ts *TransactionService) AddBalance(ctx context.Context, adminID, targetID string, amount int64, operationID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	admin, err := ts.accounts.GetAccount(ctx, adminID)
	if err == store.ErrNotFound {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	if !admin.IsAdmin {
		return 0, ErrNotAuthorized
	}

	if operationID != "" {
		claimed, err := ts.accounts.ClaimOperation(ctx, operationID)
		if err != nil {
			return 0, err
		}
		if !claimed {
			ts.log.WithField("operation_id", operationID).
				Info("[TRANSACTION] duplicate top-up ignored")
			target, err := ts.accounts.GetAccount(ctx, targetID)
			if err != nil {
				return 0, err
			}
			return target.Balance, nil
		}
	}

	balance, err := ts.ledger.Credit(ctx, targetID, amount)
	if err != nil {
		// Nothing was credited; free the id so the admin can retry it.
		if operationID != "" {
			if releaseErr := ts.accounts.ReleaseOperation(ctx, operationID); releaseErr != nil {
				ts.log.WithError(releaseErr).WithField("operation_id", operationID).
					Error("[TRANSACTION] failed to release operation id of an unapplied top-up")
			}
		}
		return 0, err
	}
	entry := &models.LedgerEntry{
		UserID:      targetID,
		Kind:        models.EntryBalanceAdd,
		Amount:      amount,
		Description: "balance top-up",
	}
	if err := ts.ledger.RecordEntry(ctx, entry); err != nil {
		ts.log.WithError(err).WithField("user_id", targetID).
			Error("[TRANSACTION] top-up credited but entry not recorded")
	}

	ts.publish(ctx, events.WalletEvent{
		OperationID: operationID,
		Kind:        "balance_add",
		UserID:      targetID,
		PeerID:      adminID,
		Amount:      amount,
	})
	return balance, nil
}

// History returns the user's most recent ledger entries, newest first.
func (ts *TransactionService) History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > maxHistoryPage {
		limit = ts.historyLimit
	}
	return ts.accounts.EntriesForUser(ctx, userID, limit)
}

// Balance reads the current balance of an account.
func (ts *TransactionService) Balance(ctx context.Context, userID string) (*models.Account, error) {
	acc, err := ts.accounts.GetAccount(ctx, userID)
	if err == store.ErrNotFound {
		return nil, ErrAccountNotFound
	}
	return acc, err
}

func (ts *TransactionService) publish(ctx context.Context, ev events.WalletEvent) {
	if ts.publisher == nil {
		return
	}
	ts.publisher.Publish(ctx, ev)
}
