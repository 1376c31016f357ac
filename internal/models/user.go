package models

import "time"

// User is the authentication-facing view of a user row; Account covers the
// wallet side of the same record.
type User struct {
	ID           string     `json:"id"`
	Phone        string     `json:"phone" example:"0612345678"`
	DisplayName  string     `json:"displayName,omitempty"`
	PasswordHash string     `json:"-"`
	Balance      int64      `json:"balance"` // in centimes
	BooksCount   int        `json:"booksCount"`
	IsAdmin      bool       `json:"isAdmin"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
