package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/kitabpay/backend/internal/models"
)

func TestPostgresAccountStore_DebitBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresAccountStore(db)
	ctx := context.Background()

	t.Run("sufficient balance", func(t *testing.T) {
		mock.ExpectQuery("UPDATE users").
			WithArgs(int64(3000), "alice").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(7000))

		balance, err := s.DebitBalance(ctx, "alice", 3000)
		assert.NoError(t, err)
		assert.Equal(t, int64(7000), balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("condition fails on short balance", func(t *testing.T) {
		mock.ExpectQuery("UPDATE users").
			WithArgs(int64(3000), "alice").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))

		// Follow-up read finds the account, so the failure was the balance.
		mock.ExpectQuery("SELECT id, phone").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id", "phone", "display_name", "balance", "books_count", "is_admin", "updated_at"}).
				AddRow("alice", "+998900000001", "", 1000, 0, false, time.Now()))

		_, err := s.DebitBalance(ctx, "alice", 3000)
		assert.Equal(t, ErrInsufficientBalance, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("condition fails on missing account", func(t *testing.T) {
		mock.ExpectQuery("UPDATE users").
			WithArgs(int64(3000), "ghost").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))

		mock.ExpectQuery("SELECT id, phone").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "phone", "display_name", "balance", "books_count", "is_admin", "updated_at"}))

		_, err := s.DebitBalance(ctx, "ghost", 3000)
		assert.Equal(t, ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountStore_CreditBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresAccountStore(db)
	ctx := context.Background()

	t.Run("credit returns new balance", func(t *testing.T) {
		mock.ExpectQuery("UPDATE users").
			WithArgs(int64(500), "bob").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(1500))

		balance, err := s.CreditBalance(ctx, "bob", 500)
		assert.NoError(t, err)
		assert.Equal(t, int64(1500), balance)
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery("UPDATE users").
			WithArgs(int64(500), "ghost").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))

		_, err := s.CreditBalance(ctx, "ghost", 500)
		assert.Equal(t, ErrNotFound, err)
	})
}

func TestPostgresAccountStore_ClaimOperation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresAccountStore(db)
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO applied_operations").
			WithArgs("op-1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		claimed, err := s.ClaimOperation(ctx, "op-1")
		assert.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("duplicate claim loses", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO applied_operations").
			WithArgs("op-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		claimed, err := s.ClaimOperation(ctx, "op-1")
		assert.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("release frees the id for a new claim", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM applied_operations").
			WithArgs("op-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO applied_operations").
			WithArgs("op-1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		assert.NoError(t, s.ReleaseOperation(ctx, "op-1"))
		claimed, err := s.ClaimOperation(ctx, "op-1")
		assert.NoError(t, err)
		assert.True(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresAccountStore_AppendEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresAccountStore(db)
	ctx := context.Background()

	entry := &models.LedgerEntry{
		UserID:      "alice",
		Kind:        models.EntryTransferSent,
		Amount:      -2000,
		Description: "transfer to +998900000002",
	}

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "alice", "transfer_sent", int64(-2000), "transfer to +998900000002", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, s.AppendEntry(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
