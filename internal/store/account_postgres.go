package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kitabpay/backend/internal/models"
)

// PostgresAccountStore issues exactly one statement per call. Nothing here
// opens a database transaction: the remote store contract is independent
// single-record operations, and the conditional UPDATEs below are the only
// atomicity callers get.
type PostgresAccountStore struct {
	db *sql.DB
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

func (s *PostgresAccountStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, phone, COALESCE(display_name, ''), balance, books_count, is_admin, updated_at
		FROM users WHERE id = $1`, id))
}

func (s *PostgresAccountStore) GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, phone, COALESCE(display_name, ''), balance, books_count, is_admin, updated_at
		FROM users WHERE phone = $1`, phone))
}

func (s *PostgresAccountStore) scanAccount(row *sql.Row) (*models.Account, error) {
	var acc models.Account
	err := row.Scan(&acc.ID, &acc.Phone, &acc.DisplayName, &acc.Balance, &acc.BooksOwned, &acc.IsAdmin, &acc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *PostgresAccountStore) DebitBalance(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance`, amount, id).Scan(&balance)
	if err == sql.ErrNoRows {
		// Condition failed: either the account is missing or the balance is
		// short. One follow-up read to tell them apart.
		if _, getErr := s.GetAccount(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, ErrInsufficientBalance
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *PostgresAccountStore) CreditBalance(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance`, amount, id).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *PostgresAccountStore) IncrementBooksOwned(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET books_count = books_count + 1, updated_at = NOW()
		WHERE id = $1`, id)
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

func (s *PostgresAccountStore) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, description, book_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		entry.ID, entry.UserID, string(entry.Kind), entry.Amount, entry.Description, entry.ListingID, entry.CreatedAt)
	return err
}

func (s *PostgresAccountStore) EntriesForUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, COALESCE(description, ''), COALESCE(book_id::text, ''), created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.UserID, &kind, &e.Amount, &e.Description, &e.ListingID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = models.EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresAccountStore) ClaimOperation(ctx context.Context, operationID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO applied_operations (operation_id, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (operation_id) DO NOTHING`, operationID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *PostgresAccountStore) ReleaseOperation(ctx context.Context, operationID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM applied_operations WHERE operation_id = $1`, operationID)
	return err
}
