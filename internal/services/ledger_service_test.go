package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitabpay/backend/internal/models"
	"github.com/kitabpay/backend/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestLedgerService_TransferAtomic(t *testing.T) {
	ctx := context.Background()

	t.Run("successful transfer moves balance and records both entries", func(t *testing.T) {
		mem := store.NewMemoryStore()
		mem.SeedAccount("alice", "+998900000001", 10_000)
		mem.SeedAccount("bob", "+998900000002", 2_000)
		ledger := NewLedgerService(mem, testLogger())

		err := ledger.TransferAtomic(ctx, TransferSpec{
			OperationID:       "op-1",
			FromID:            "alice",
			ToID:              "bob",
			Amount:            3_000,
			DebitKind:         models.EntryTransferSent,
			CreditKind:        models.EntryTransferReceived,
			DebitDescription:  "transfer to +998900000002",
			CreditDescription: "transfer from +998900000001",
		})
		require.NoError(t, err)

		alice, _ := mem.GetAccount(ctx, "alice")
		bob, _ := mem.GetAccount(ctx, "bob")
		assert.Equal(t, int64(7_000), alice.Balance)
		assert.Equal(t, int64(5_000), bob.Balance)

		aliceEntries, _ := mem.EntriesForUser(ctx, "alice", 10)
		bobEntries, _ := mem.EntriesForUser(ctx, "bob", 10)
		require.Len(t, aliceEntries, 1)
		require.Len(t, bobEntries, 1)
		assert.Equal(t, int64(-3_000), aliceEntries[0].Amount)
		assert.Equal(t, models.EntryTransferSent, aliceEntries[0].Kind)
		assert.Equal(t, int64(3_000), bobEntries[0].Amount)
		assert.Equal(t, models.EntryTransferReceived, bobEntries[0].Kind)
	})

	t.Run("insufficient funds leaves both balances untouched", func(t *testing.T) {
		mem := store.NewMemoryStore()
		mem.SeedAccount("alice", "+998900000001", 5_000)
		mem.SeedAccount("bob", "+998900000002", 0)
		ledger := NewLedgerService(mem, testLogger())

		err := ledger.TransferAtomic(ctx, TransferSpec{
			OperationID: "op-2",
			FromID:      "alice",
			ToID:        "bob",
			Amount:      8_000,
			DebitKind:   models.EntryTransferSent,
			CreditKind:  models.EntryTransferReceived,
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		alice, _ := mem.GetAccount(ctx, "alice")
		bob, _ := mem.GetAccount(ctx, "bob")
		assert.Equal(t, int64(5_000), alice.Balance)
		assert.Equal(t, int64(0), bob.Balance)

		entries, _ := mem.EntriesForUser(ctx, "alice", 10)
		assert.Empty(t, entries)
	})

	t.Run("failed credit leg compensates the debit", func(t *testing.T) {
		mem := store.NewMemoryStore()
		mem.SeedAccount("alice", "+998900000001", 5_000)
		mem.SeedAccount("bob", "+998900000002", 0)
		mem.FailCreditFor["bob"] = errors.New("record unreachable")
		ledger := NewLedgerService(mem, testLogger())

		err := ledger.TransferAtomic(ctx, TransferSpec{
			OperationID: "op-3",
			FromID:      "alice",
			ToID:        "bob",
			Amount:      2_000,
			DebitKind:   models.EntryTransferSent,
			CreditKind:  models.EntryTransferReceived,
		})
		require.Error(t, err)
		var failed *TransferFailedError
		assert.ErrorAs(t, err, &failed)

		// Sender made whole, no ledger entries for the compensated attempt.
		alice, _ := mem.GetAccount(ctx, "alice")
		assert.Equal(t, int64(5_000), alice.Balance)
		entries, _ := mem.EntriesForUser(ctx, "alice", 10)
		assert.Empty(t, entries)
	})

	t.Run("compensated attempt leaves the operation id retryable", func(t *testing.T) {
		mem := store.NewMemoryStore()
		mem.SeedAccount("alice", "+998900000001", 5_000)
		mem.SeedAccount("bob", "+998900000002", 0)
		mem.FailCreditFor["bob"] = errors.New("record unreachable")
		ledger := NewLedgerService(mem, testLogger())

		spec := TransferSpec{
			OperationID: "op-retry-1",
			FromID:      "alice",
			ToID:        "bob",
			Amount:      2_000,
			DebitKind:   models.EntryTransferSent,
			CreditKind:  models.EntryTransferReceived,
		}
		require.Error(t, ledger.TransferAtomic(ctx, spec))

		// The credit path recovers; the retry with the same id must actually
		// move the money, not read as already applied.
		delete(mem.FailCreditFor, "bob")
		require.NoError(t, ledger.TransferAtomic(ctx, spec))

		alice, _ := mem.GetAccount(ctx, "alice")
		bob, _ := mem.GetAccount(ctx, "bob")
		assert.Equal(t, int64(3_000), alice.Balance)
		assert.Equal(t, int64(2_000), bob.Balance)

		aliceEntries, _ := mem.EntriesForUser(ctx, "alice", 10)
		bobEntries, _ := mem.EntriesForUser(ctx, "bob", 10)
		assert.Len(t, aliceEntries, 1)
		assert.Len(t, bobEntries, 1)
	})

	t.Run("failed debit leaves the operation id retryable", func(t *testing.T) {
		mem := store.NewMemoryStore()
		mem.SeedAccount("alice", "+998900000001", 1_000)
		mem.SeedAccount("bob", "+998900000002", 0)
		ledger := NewLedgerService(mem, testLogger())

		spec := TransferSpec{
			OperationID: "op-retry-2",
			FromID:      "alice",
			ToID:        "bob",
			Amount:      3_000,
			DebitKind:   models.EntryTransferSent,
			CreditKind:  models.EntryTransferReceived,
		}
		require.ErrorIs(t, ledger.TransferAtomic(ctx, spec), ErrInsufficientFunds)

		// Funds arrive, the retry with the same id applies.
		_, err := mem.CreditBalance(ctx, "alice", 5_000)
		require.NoError(t, err)
		require.NoError(t, ledger.TransferAtomic(ctx, spec))

		bob, _ := mem.GetAccount(ctx, "bob")
		assert.Equal(t, int64(3_000), bob.Balance)
	})

	t.Run("settled transfer is not failed by a short log", func(t *testing.T) {
		mem := store.NewMemoryStore()
		mem.SeedAccount("alice", "+998900000001", 5_000)
		mem.SeedAccount("bob", "+998900000002", 0)
		mem.FailAppendFor["alice"] = errors.New("log unreachable")
		mem.FailAppendFor["bob"] = errors.New("log unreachable")
		ledger := NewLedgerService(mem, testLogger())

		// Both legs settle; the missing log lines are a reconciliation
		// finding, not a transfer failure.
		err := ledger.TransferAtomic(ctx, TransferSpec{
			OperationID: "op-shortlog",
			FromID:      "alice",
			ToID:        "bob",
			Amount:      2_000,
			DebitKind:   models.EntryTransferSent,
			CreditKind:  models.EntryTransferReceived,
		})
		require.NoError(t, err)

		alice, _ := mem.GetAccount(ctx, "alice")
		bob, _ := mem.GetAccount(ctx, "bob")
		assert.Equal(t, int64(3_000), alice.Balance)
		assert.Equal(t, int64(2_000), bob.Balance)
	})

	t.Run("duplicate operation id applies only once", func(t *testing.T) {
		mem := store.NewMemoryStore()
		mem.SeedAccount("alice", "+998900000001", 10_000)
		mem.SeedAccount("bob", "+998900000002", 0)
		ledger := NewLedgerService(mem, testLogger())

		spec := TransferSpec{
			OperationID: "op-4",
			FromID:      "alice",
			ToID:        "bob",
			Amount:      1_000,
			DebitKind:   models.EntryTransferSent,
			CreditKind:  models.EntryTransferReceived,
		}
		require.NoError(t, ledger.TransferAtomic(ctx, spec))
		require.NoError(t, ledger.TransferAtomic(ctx, spec))

		alice, _ := mem.GetAccount(ctx, "alice")
		bob, _ := mem.GetAccount(ctx, "bob")
		assert.Equal(t, int64(9_000), alice.Balance)
		assert.Equal(t, int64(1_000), bob.Balance)

		entries, _ := mem.EntriesForUser(ctx, "alice", 10)
		assert.Len(t, entries, 1)
	})

	t.Run("non positive amount is rejected", func(t *testing.T) {
		mem := store.NewMemoryStore()
		ledger := NewLedgerService(mem, testLogger())

		err := ledger.TransferAtomic(ctx, TransferSpec{FromID: "a", ToID: "b", Amount: 0})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		err = ledger.TransferAtomic(ctx, TransferSpec{FromID: "a", ToID: "b", Amount: -5})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestLedgerService_DebitCredit(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mem.SeedAccount("alice", "+998900000001", 1_000)
	ledger := NewLedgerService(mem, testLogger())

	t.Run("debit returns new balance", func(t *testing.T) {
		balance, err := ledger.Debit(ctx, "alice", 400)
		require.NoError(t, err)
		assert.Equal(t, int64(600), balance)
	})

	t.Run("debit of unknown account", func(t *testing.T) {
		_, err := ledger.Debit(ctx, "ghost", 100)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("credit returns new balance", func(t *testing.T) {
		balance, err := ledger.Credit(ctx, "alice", 150)
		require.NoError(t, err)
		assert.Equal(t, int64(750), balance)
	})

	t.Run("credit of unknown account", func(t *testing.T) {
		_, err := ledger.Credit(ctx, "ghost", 100)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}
