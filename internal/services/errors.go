package services

import (
	"errors"
	"fmt"
)

// Validation and precondition failures: reported immediately, no state change.
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidDuration   = errors.New("advertisement duration must be 3, 7, 14 or 30 days")
	ErrMalformedPayload  = errors.New("malformed transfer payload")
	ErrWrongPayloadKind  = errors.New("payload is not a wallet transfer code")
	ErrAccountNotFound   = errors.New("account not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotAuthorized     = errors.New("operation requires admin rights")

	ErrListingNotFound        = errors.New("listing not found")
	ErrListingUnavailable     = errors.New("listing is no longer available")
	ErrSelfPurchaseNotAllowed = errors.New("cannot buy your own listing")
	ErrSelfTransferNotAllowed = errors.New("cannot transfer to yourself")

	ErrItemNotFound     = errors.New("library item not found")
	ErrAlreadyPublished = errors.New("item is already in the marketplace")
)

// ErrAlreadySold reports a lost claim race: another purchase marked the
// listing sold first. No money moved, so no compensation is needed.
var ErrAlreadySold = errors.New("listing already sold")

// TransferFailedError wraps the cause of a transfer whose credit leg failed
// after the debit succeeded. By the time the caller sees it, the compensating
// credit has already restored the sender's balance.
type TransferFailedError struct {
	Cause error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer failed: %v", e.Cause)
}

func (e *TransferFailedError) Unwrap() error { return e.Cause }

// PurchaseFailedError wraps a purchase that failed after the listing was
// claimed; the listing has been reverted to available.
type PurchaseFailedError struct {
	Cause error
}

func (e *PurchaseFailedError) Error() string {
	return fmt.Sprintf("purchase failed: %v", e.Cause)
}

func (e *PurchaseFailedError) Unwrap() error { return e.Cause }
