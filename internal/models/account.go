package models

import (
	"time"
)

// Account is the wallet-facing view of a user row. Balances are stored in
// centimes and only mutated through the ledger service.
type Account struct {
	ID          string    `json:"id" db:"id"`
	Phone       string    `json:"phone" db:"phone"`
	DisplayName string    `json:"displayName,omitempty" db:"display_name"`
	Balance     int64     `json:"balance" db:"balance"` // in centimes
	BooksOwned  int       `json:"booksOwned" db:"books_count"`
	IsAdmin     bool      `json:"isAdmin" db:"is_admin"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
