package models

import (
	"time"
)

type EntryKind string

const (
	EntryPurchase         EntryKind = "purchase"
	EntrySale             EntryKind = "sale"
	EntryBalanceAdd       EntryKind = "balance_add"
	EntryTransferSent     EntryKind = "transfer_sent"
	EntryTransferReceived EntryKind = "transfer_received"
)

// LedgerEntry is one immutable line in the transaction log. Amount is signed:
// negative = debit, positive = credit.
type LedgerEntry struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Kind        EntryKind `json:"type" db:"type"`
	Amount      int64     `json:"amount" db:"amount"` // in centimes
	Description string    `json:"description,omitempty" db:"description"`
	ListingID   string    `json:"bookId,omitempty" db:"book_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
